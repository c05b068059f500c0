package ticket

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zapdesk/pkg/entities"
	"gorm.io/gorm"
)

func (s *service) GetSlaConfig(ctx context.Context, sectorID uint) (*entities.SlaConfig, error) {
	var config entities.SlaConfig
	err := s.db.WithContext(ctx).Where("sector_id = ?", sectorID).First(&config).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("no SLA config for sector %d", sectorID)
		}
		return nil, err
	}
	return &config, nil
}

func (s *service) SetSlaConfig(ctx context.Context, sectorID uint, firstResponseMin, resolutionMin int) (*entities.SlaConfig, error) {
	var sector entities.Sector
	if err := s.db.WithContext(ctx).First(&sector, sectorID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSectorNotFound
		}
		return nil, err
	}

	var config entities.SlaConfig
	err := s.db.WithContext(ctx).Where("sector_id = ?", sectorID).First(&config).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		config = entities.SlaConfig{
			SectorID:             sectorID,
			FirstResponseMinutes: firstResponseMin,
			ResolutionMinutes:    resolutionMin,
		}
		if err := s.db.WithContext(ctx).Create(&config).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		config.FirstResponseMinutes = firstResponseMin
		config.ResolutionMinutes = resolutionMin
		if err := s.db.WithContext(ctx).Save(&config).Error; err != nil {
			return nil, err
		}
	}
	return &config, nil
}

func (s *service) ListViolations(ctx context.Context, ticketID *uint) ([]entities.SlaViolation, error) {
	query := s.db.WithContext(ctx).Model(&entities.SlaViolation{}).Order("created_at DESC")
	if ticketID != nil {
		query = query.Where("ticket_id = ?", *ticketID)
	}
	var violations []entities.SlaViolation
	if err := query.Find(&violations).Error; err != nil {
		return nil, err
	}
	return violations, nil
}

// Sweep walks every active ticket and records a violation the first
// time a budget is exceeded. Sectors without an SLA config opt out.
// Re-running the sweep over an already-violating ticket is a no-op: the
// (ticket, kind) existence check plus the unique index guarantee one
// violation per kind.
func (s *service) Sweep(ctx context.Context) (int, error) {
	var tickets []entities.Ticket
	err := s.db.WithContext(ctx).
		Where("status <> ?", entities.TicketFinalizado).
		Find(&tickets).Error
	if err != nil {
		return 0, err
	}

	configs := make(map[uint]*entities.SlaConfig)
	recorded := 0
	now := time.Now()

	for i := range tickets {
		ticket := &tickets[i]

		config, ok := configs[ticket.SectorID]
		if !ok {
			var loaded entities.SlaConfig
			err := s.db.WithContext(ctx).Where("sector_id = ?", ticket.SectorID).First(&loaded).Error
			if err == gorm.ErrRecordNotFound {
				configs[ticket.SectorID] = nil
				continue
			}
			if err != nil {
				log.Printf("[error] sla: config lookup for sector %d: %v", ticket.SectorID, err)
				continue
			}
			config = &loaded
			configs[ticket.SectorID] = config
		}
		if config == nil {
			continue
		}

		if ticket.FirstResponseAt == nil {
			deadline := ticket.CreatedAt.Add(time.Duration(config.FirstResponseMinutes) * time.Minute)
			if now.After(deadline) {
				if s.recordViolation(ctx, ticket, entities.ViolationFirstResponse, now.Sub(deadline)) {
					recorded++
				}
			}
		}

		deadline := ticket.CreatedAt.Add(time.Duration(config.ResolutionMinutes) * time.Minute)
		if now.After(deadline) {
			if s.recordViolation(ctx, ticket, entities.ViolationResolution, now.Sub(deadline)) {
				recorded++
			}
		}
	}

	if recorded > 0 {
		log.Printf("[info] sla: sweep recorded %d new violation(s)", recorded)
	}
	return recorded, nil
}

// recordViolation inserts at most once per (ticket, kind); a concurrent
// sweep losing the race on the unique index is treated as already
// recorded.
func (s *service) recordViolation(ctx context.Context, ticket *entities.Ticket, kind entities.ViolationKind, exceededBy time.Duration) bool {
	var existing entities.SlaViolation
	err := s.db.WithContext(ctx).
		Where("ticket_id = ? AND kind = ?", ticket.ID, kind).
		First(&existing).Error
	if err == nil {
		return false
	}
	if err != gorm.ErrRecordNotFound {
		log.Printf("[error] sla: violation lookup for ticket #%d: %v", ticket.Number, err)
		return false
	}

	violation := entities.SlaViolation{
		TicketID:   ticket.ID,
		Kind:       kind,
		ExceededBy: int64(exceededBy.Seconds()),
	}
	if err := s.db.WithContext(ctx).Create(&violation).Error; err != nil {
		log.Printf("[warn] sla: violation insert for ticket #%d lost race or failed: %v", ticket.Number, err)
		return false
	}

	log.Printf("[info] sla: ticket #%d violated %s budget by %s", ticket.Number, kind, exceededBy.Round(time.Second))
	return true
}

// StartSweeper schedules the periodic SLA sweep. The returned cron is
// already running; stop it on shutdown.
func StartSweeper(s Service, interval time.Duration) *cron.Cron {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			log.Printf("[error] sla: sweep failed: %v", err)
		}
	}); err != nil {
		log.Printf("[error] sla: failed to schedule sweep: %v", err)
		return c
	}
	c.Start()
	log.Printf("[info] sla: sweeper started with interval %s", interval)
	return c
}
