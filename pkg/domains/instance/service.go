package instance

import (
	"context"
	"fmt"
	"log"

	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/domains/provider"
	"github.com/zapdesk/pkg/domains/session"
	"github.com/zapdesk/pkg/dtos"
	"github.com/zapdesk/pkg/entities"
	"gorm.io/gorm"
)

// Service provisions instances and routes lifecycle calls to the right
// backend: the in-process session manager for embedded instances, the
// hosted gateway for external ones.
type Service interface {
	Create(ctx context.Context, req dtos.CreateInstanceDTO) (*entities.Instance, error)
	List(ctx context.Context) ([]entities.Instance, error)
	Get(ctx context.Context, id uint) (*entities.Instance, error)
	Delete(ctx context.Context, id uint) error
	QR(ctx context.Context, id uint) (string, error)
}

type service struct {
	db          *gorm.DB
	gateway     *provider.GatewayClient
	sessions    *session.Manager
	webhookBase string
}

func NewService(db *gorm.DB, gateway *provider.GatewayClient, sessions *session.Manager, webhookBase string) Service {
	return &service{
		db:          db,
		gateway:     gateway,
		sessions:    sessions,
		webhookBase: webhookBase,
	}
}

func (s *service) Create(ctx context.Context, req dtos.CreateInstanceDTO) (*entities.Instance, error) {
	kind := entities.ProviderKind(req.ProviderKind)
	if kind == "" {
		kind = entities.ProviderEmbedded
	}

	inst := entities.Instance{
		Name:         req.Name,
		ProviderKind: kind,
		Status:       entities.InstanceDisconnected,
		SectorID:     req.SectorID,
	}
	if err := s.db.WithContext(ctx).Create(&inst).Error; err != nil {
		return nil, err
	}

	if kind == entities.ProviderHosted {
		webhookURL := fmt.Sprintf("%s/api/v1/webhook/%d", s.webhookBase, inst.ID)
		externalID, err := s.gateway.CreateSession(ctx, &inst, webhookURL)
		if err != nil {
			s.db.WithContext(ctx).Delete(&inst)
			return nil, fmt.Errorf("failed to provision hosted session: %v", err)
		}
		inst.ExternalID = externalID
		if err := s.db.WithContext(ctx).Model(&inst).Update("external_id", externalID).Error; err != nil {
			return nil, err
		}
	}

	log.Printf("Instance %d (%s) provisioned with %s provider", inst.ID, inst.Name, kind)
	return &inst, nil
}

func (s *service) List(ctx context.Context) ([]entities.Instance, error) {
	var instances []entities.Instance
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

func (s *service) Get(ctx context.Context, id uint) (*entities.Instance, error) {
	var inst entities.Instance
	if err := s.db.WithContext(ctx).First(&inst, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf(constant.CANT_FIND, "Instance")
		}
		return nil, err
	}
	return &inst, nil
}

// Delete tears the session down, purges persisted credential material
// and removes the row.
func (s *service) Delete(ctx context.Context, id uint) error {
	inst, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	switch inst.ProviderKind {
	case entities.ProviderEmbedded:
		if err := s.sessions.Logout(ctx, inst.ID); err != nil {
			log.Printf("[warn] instance: logout during delete failed for %d: %v", inst.ID, err)
		}
	case entities.ProviderHosted:
		if err := s.gateway.DeleteSession(ctx, inst); err != nil {
			log.Printf("[warn] instance: gateway session delete failed for %d: %v", inst.ID, err)
		}
	}

	return s.db.WithContext(ctx).Delete(&entities.Instance{}, id).Error
}

func (s *service) QR(ctx context.Context, id uint) (string, error) {
	inst, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if inst.Status != entities.InstanceQR || inst.QRCode == "" {
		return "", fmt.Errorf("no live QR code for instance %d, start the session first", id)
	}
	return inst.QRCode, nil
}
