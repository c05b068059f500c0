package ticket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zapdesk/pkg/domains/outbound"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/hub"
	"gorm.io/gorm"
)

// Typed errors for invariant violations. These are rejected
// synchronously with no partial state change.
var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrSectorNotFound     = errors.New("sector not found for conversation")
	ErrSectorDisabled     = errors.New("sector does not generate tickets")
	ErrInvalidTransition  = errors.New("invalid ticket status transition")
	ErrActiveTicketExists = errors.New("conversation already has an active ticket")
)

// validTransitions encodes the attendance lifecycle. Reopening is only
// reachable from finalizado; a reopened ticket goes back through
// em_atendimento.
var validTransitions = map[entities.TicketStatus][]entities.TicketStatus{
	entities.TicketAberto:        {entities.TicketEmAtendimento, entities.TicketFinalizado},
	entities.TicketEmAtendimento: {entities.TicketFinalizado},
	entities.TicketFinalizado:    {entities.TicketReaberto},
	entities.TicketReaberto:      {entities.TicketEmAtendimento, entities.TicketFinalizado},
}

func transitionAllowed(from, to entities.TicketStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Service interface {
	Create(ctx context.Context, conversationID uint, sectorID *uint, actor *uint) (*entities.Ticket, error)
	Transition(ctx context.Context, ticketID uint, to entities.TicketStatus, actor *uint) (*entities.Ticket, error)
	Get(ctx context.Context, ticketID uint) (*entities.Ticket, error)
	List(ctx context.Context, status string, page int) ([]entities.Ticket, int, error)
	HandleInbound(ctx context.Context, conversation *entities.Conversation, contact *entities.Contact)

	GetSlaConfig(ctx context.Context, sectorID uint) (*entities.SlaConfig, error)
	SetSlaConfig(ctx context.Context, sectorID uint, firstResponseMin, resolutionMin int) (*entities.SlaConfig, error)
	ListViolations(ctx context.Context, ticketID *uint) ([]entities.SlaViolation, error)
	Sweep(ctx context.Context) (int, error)
}

type service struct {
	db       *gorm.DB
	outbound outbound.Service
	hub      *hub.Hub
}

func NewService(db *gorm.DB, out outbound.Service, h *hub.Hub) Service {
	return &service{
		db:       db,
		outbound: out,
		hub:      h,
	}
}

// Create opens a ticket explicitly. The sector must generate tickets
// and the conversation must not already hold a non-terminal one.
func (s *service) Create(ctx context.Context, conversationID uint, sectorID *uint, actor *uint) (*entities.Ticket, error) {
	var conversation entities.Conversation
	if err := s.db.WithContext(ctx).Preload("Contact").First(&conversation, conversationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("conversation not found")
		}
		return nil, err
	}

	resolvedSector := conversation.SectorID
	if sectorID != nil {
		resolvedSector = sectorID
	}
	if resolvedSector == nil {
		return nil, ErrSectorNotFound
	}

	var sector entities.Sector
	if err := s.db.WithContext(ctx).First(&sector, *resolvedSector).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSectorNotFound
		}
		return nil, err
	}
	if !sector.GeraTicket {
		return nil, ErrSectorDisabled
	}

	var active entities.Ticket
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND status <> ?", conversationID, entities.TicketFinalizado).
		First(&active).Error
	if err == nil {
		return nil, ErrActiveTicketExists
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	ticket, err := s.open(ctx, &conversation, &sector, actor)
	if err != nil {
		return nil, err
	}

	s.sendSectorMessage(&conversation, &sector, sector.MensagemBoasVindas, &conversation.Contact)
	return ticket, nil
}

// open persists a new aberto ticket with the next sequential number and
// appends the timeline marker, all inside one transaction. The unique
// indexes are the real guards: a lost insert race on the open-ticket
// index means another open won the conversation, a number collision
// just retries against a fresh MAX.
func (s *service) open(ctx context.Context, conversation *entities.Conversation, sector *entities.Sector, actor *uint) (*entities.Ticket, error) {
	var ticket entities.Ticket
	var err error

	for attempt := 0; attempt < 3; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var maxNumber int64
			if err := tx.Model(&entities.Ticket{}).Select("COALESCE(MAX(number), 0)").Scan(&maxNumber).Error; err != nil {
				return err
			}

			ticket = entities.Ticket{
				ConversationID: conversation.ID,
				SectorID:       sector.ID,
				Number:         maxNumber + 1,
				Status:         entities.TicketAberto,
				AssignedUserID: actor,
			}
			return tx.Create(&ticket).Error
		})
		if err == nil {
			break
		}

		var active entities.Ticket
		findErr := s.db.WithContext(ctx).
			Where("conversation_id = ? AND status <> ?", conversation.ID, entities.TicketFinalizado).
			First(&active).Error
		if findErr == nil {
			return nil, ErrActiveTicketExists
		}
	}
	if err != nil {
		return nil, err
	}

	s.appendMarker(conversation.ID, entities.MarkerTicketCreated,
		fmt.Sprintf("Ticket #%d aberto", ticket.Number))
	s.publishTicket(&ticket, conversation.ID)

	log.Printf("Ticket #%d opened for conversation %d", ticket.Number, conversation.ID)
	return &ticket, nil
}

// Transition moves a ticket along the lifecycle. Closing stamps
// closed_at/closed_by; reopening clears both and flips the conversation
// back to active. Side-effect messages are best-effort and never roll
// back the transition.
func (s *service) Transition(ctx context.Context, ticketID uint, to entities.TicketStatus, actor *uint) (*entities.Ticket, error) {
	var ticket entities.Ticket
	if err := s.db.WithContext(ctx).First(&ticket, ticketID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	if !transitionAllowed(ticket.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ticket.Status, to)
	}

	var conversation entities.Conversation
	if err := s.db.WithContext(ctx).Preload("Contact").First(&conversation, ticket.ConversationID).Error; err != nil {
		return nil, err
	}

	from := ticket.Status
	now := time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket.Status = to
		switch to {
		case entities.TicketEmAtendimento:
			if actor != nil {
				ticket.AssignedUserID = actor
			}
			if ticket.FirstResponseAt == nil {
				ticket.FirstResponseAt = &now
			}
		case entities.TicketFinalizado:
			ticket.ClosedAt = &now
			ticket.ClosedBy = actor
			if err := tx.Model(&entities.Conversation{}).Where("id = ?", conversation.ID).
				Update("status", entities.ConversationClosed).Error; err != nil {
				return err
			}
		case entities.TicketReaberto:
			ticket.ClosedAt = nil
			ticket.ClosedBy = nil
			if err := tx.Model(&entities.Conversation{}).Where("id = ?", conversation.ID).
				Update("status", entities.ConversationActive).Error; err != nil {
				return err
			}
		}
		return tx.Save(&ticket).Error
	})
	if err != nil {
		return nil, err
	}

	switch to {
	case entities.TicketEmAtendimento:
		if from == entities.TicketAberto {
			var sector entities.Sector
			if err := s.db.First(&sector, ticket.SectorID).Error; err == nil {
				s.sendSectorMessage(&conversation, &sector, sector.MensagemBoasVindas, &conversation.Contact)
			}
		}
	case entities.TicketFinalizado:
		s.appendMarker(conversation.ID, entities.MarkerTicketClosed,
			fmt.Sprintf("Ticket #%d finalizado", ticket.Number))
	case entities.TicketReaberto:
		s.appendMarker(conversation.ID, entities.MarkerConversationReopened,
			fmt.Sprintf("Ticket #%d reaberto", ticket.Number))
		var sector entities.Sector
		if err := s.db.First(&sector, ticket.SectorID).Error; err == nil {
			template := sector.MensagemReabertura
			if template == "" {
				template = sector.MensagemBoasVindas
			}
			s.sendSectorMessage(&conversation, &sector, template, &conversation.Contact)
		}
	}

	s.publishTicket(&ticket, conversation.ID)
	return &ticket, nil
}

func (s *service) Get(ctx context.Context, ticketID uint) (*entities.Ticket, error) {
	var ticket entities.Ticket
	if err := s.db.WithContext(ctx).First(&ticket, ticketID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (s *service) List(ctx context.Context, status string, page int) ([]entities.Ticket, int, error) {
	query := s.db.WithContext(ctx).Model(&entities.Ticket{}).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := 20
	if page < 1 {
		page = 1
	}
	var tickets []entities.Ticket
	if err := query.Limit(limit).Offset((page - 1) * limit).Find(&tickets).Error; err != nil {
		return nil, 0, err
	}
	return tickets, int(total), nil
}

// HandleInbound is called by the normalizer after every persisted
// inbound message. It opens a ticket for fresh conversations and
// reopens the finalized one when a closed conversation gets traffic.
// Never blocks ingestion on side-effect failures.
func (s *service) HandleInbound(ctx context.Context, conversation *entities.Conversation, contact *entities.Contact) {
	if conversation.SectorID == nil {
		return
	}

	var sector entities.Sector
	if err := s.db.WithContext(ctx).First(&sector, *conversation.SectorID).Error; err != nil {
		log.Printf("[warn] ticket: sector %d lookup failed for conversation %d: %v",
			*conversation.SectorID, conversation.ID, err)
		return
	}
	if !sector.GeraTicket {
		return
	}

	var latest entities.Ticket
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversation.ID).
		Order("created_at DESC").
		First(&latest).Error

	switch {
	case err == gorm.ErrRecordNotFound:
		full := *conversation
		full.Contact = *contact
		if _, err := s.open(ctx, &full, &sector, nil); err != nil {
			log.Printf("[error] ticket: auto-open failed for conversation %d: %v", conversation.ID, err)
			return
		}
		s.sendSectorMessage(conversation, &sector, sector.MensagemBoasVindas, contact)
	case err != nil:
		log.Printf("[error] ticket: lookup failed for conversation %d: %v", conversation.ID, err)
	case latest.Status == entities.TicketFinalizado:
		if _, err := s.Transition(ctx, latest.ID, entities.TicketReaberto, nil); err != nil {
			log.Printf("[error] ticket: auto-reopen failed for ticket #%d: %v", latest.Number, err)
		}
	}
}

// sendSectorMessage fires the configured template at the contact as a
// detached task. Failure is observable only via logs.
func (s *service) sendSectorMessage(conversation *entities.Conversation, sector *entities.Sector, template string, contact *entities.Contact) {
	if template == "" {
		return
	}

	conversationID := conversation.ID
	templateCtx := map[string]string{
		"clienteNome": contact.Name,
		"setor":       sector.Name,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.outbound.Send(ctx, outbound.SendRequest{
			ConversationID:  conversationID,
			Content:         template,
			Type:            entities.MessageText,
			TemplateContext: templateCtx,
		}); err != nil {
			log.Printf("[warn] ticket: side-effect message failed for conversation %d: %v", conversationID, err)
		}
	}()
}

func (s *service) appendMarker(conversationID uint, kind entities.MarkerKind, content string) {
	if _, err := s.outbound.InsertMarker(context.Background(), conversationID, kind, content); err != nil {
		log.Printf("[warn] ticket: marker insert failed for conversation %d: %v", conversationID, err)
	}
}

func (s *service) publishTicket(ticket *entities.Ticket, conversationID uint) {
	s.hub.Publish(hub.NewEvent(hub.EventTicketUpdated, ticket, hub.ConversationRoom(conversationID)))
}
