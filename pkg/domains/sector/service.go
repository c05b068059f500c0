package sector

import (
	"context"
	"fmt"

	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/dtos"
	"github.com/zapdesk/pkg/entities"
	"gorm.io/gorm"
)

// Service manages sectors: the attendance teams that own conversations,
// generate tickets and provide the automatic message templates.
type Service interface {
	Create(ctx context.Context, req dtos.CreateSectorDTO) (*entities.Sector, error)
	Update(ctx context.Context, id uint, req dtos.UpdateSectorDTO) (*entities.Sector, error)
	List(ctx context.Context) ([]entities.Sector, error)
	Get(ctx context.Context, id uint) (*entities.Sector, error)
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) Service {
	return &service{db: db}
}

func (s *service) Create(ctx context.Context, req dtos.CreateSectorDTO) (*entities.Sector, error) {
	sector := entities.Sector{
		Name:               req.Name,
		GeraTicket:         true,
		MensagemBoasVindas: req.MensagemBoasVindas,
		MensagemReabertura: req.MensagemReabertura,
	}
	if req.GeraTicket != nil {
		sector.GeraTicket = *req.GeraTicket
	}
	if err := s.db.WithContext(ctx).Create(&sector).Error; err != nil {
		return nil, err
	}
	return &sector, nil
}

func (s *service) Update(ctx context.Context, id uint, req dtos.UpdateSectorDTO) (*entities.Sector, error) {
	sector, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		sector.Name = *req.Name
	}
	if req.GeraTicket != nil {
		sector.GeraTicket = *req.GeraTicket
	}
	if req.MensagemBoasVindas != nil {
		sector.MensagemBoasVindas = *req.MensagemBoasVindas
	}
	if req.MensagemReabertura != nil {
		sector.MensagemReabertura = *req.MensagemReabertura
	}

	if err := s.db.WithContext(ctx).Save(sector).Error; err != nil {
		return nil, err
	}
	return sector, nil
}

func (s *service) List(ctx context.Context) ([]entities.Sector, error) {
	var sectors []entities.Sector
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&sectors).Error; err != nil {
		return nil, err
	}
	return sectors, nil
}

func (s *service) Get(ctx context.Context, id uint) (*entities.Sector, error) {
	var sector entities.Sector
	if err := s.db.WithContext(ctx).First(&sector, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf(constant.CANT_FIND, "Sector")
		}
		return nil, err
	}
	return &sector, nil
}
