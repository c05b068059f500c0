package contact

import (
	"context"
	"fmt"

	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/dtos"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/utils"
	"gorm.io/gorm"
)

// Service manages manually registered contacts. Contacts discovered
// through inbound traffic are created by the ingest pipeline instead.
type Service interface {
	Create(ctx context.Context, req dtos.CreateContactDTO) (*entities.Contact, error)
	List(ctx context.Context, instanceID uint, page int) ([]entities.Contact, int, error)
	Get(ctx context.Context, id uint) (*entities.Contact, error)
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) Service {
	return &service{db: db}
}

func (s *service) Create(ctx context.Context, req dtos.CreateContactDTO) (*entities.Contact, error) {
	var instance entities.Instance
	if err := s.db.WithContext(ctx).First(&instance, req.InstanceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf(constant.CANT_FIND, "Instance")
		}
		return nil, err
	}

	var existing entities.Contact
	err := s.db.WithContext(ctx).
		Where("instance_id = ? AND phone = ?", req.InstanceID, req.Phone).
		First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf(constant.ALREADY_EXISTS, "Contact")
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	contact := entities.Contact{
		InstanceID: req.InstanceID,
		Phone:      req.Phone,
		Name:       req.Name,
	}
	if err := s.db.WithContext(ctx).Create(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func (s *service) List(ctx context.Context, instanceID uint, page int) ([]entities.Contact, int, error) {
	var contacts []entities.Contact
	totalPages, err := utils.Pagination(&contacts, page, s.db, ctx, "instance_id = ?", instanceID)
	if err != nil {
		return nil, 0, err
	}
	return contacts, totalPages, nil
}

func (s *service) Get(ctx context.Context, id uint) (*entities.Contact, error) {
	var contact entities.Contact
	if err := s.db.WithContext(ctx).First(&contact, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf(constant.CANT_FIND, "Contact")
		}
		return nil, err
	}
	return &contact, nil
}
