package conversation

import (
	"context"
	"fmt"

	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/hub"
	"gorm.io/gorm"
)

// Service covers the operator-facing conversation mutations:
// assignment, mode switching and listing. Traffic-driven mutations live
// in the normalizer.
type Service interface {
	List(ctx context.Context, instanceID *uint, status string, page int) ([]entities.Conversation, int, error)
	Get(ctx context.Context, id uint) (*entities.Conversation, error)
	Assign(ctx context.Context, id uint, userID uint) (*entities.Conversation, error)
	SetMode(ctx context.Context, id uint, mode entities.ConversationMode) (*entities.Conversation, error)
	Close(ctx context.Context, id uint) (*entities.Conversation, error)
	Messages(ctx context.Context, id uint, page int) ([]entities.Message, error)
}

type service struct {
	db  *gorm.DB
	hub *hub.Hub
}

func NewService(db *gorm.DB, h *hub.Hub) Service {
	return &service{db: db, hub: h}
}

func (s *service) List(ctx context.Context, instanceID *uint, status string, page int) ([]entities.Conversation, int, error) {
	query := s.db.WithContext(ctx).Model(&entities.Conversation{}).
		Preload("Contact").
		Order("last_message_at DESC NULLS LAST")
	if instanceID != nil {
		query = query.Where("instance_id = ?", *instanceID)
	}
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
	var conversations []entities.Conversation
	if err := query.Limit(limit).Offset((page - 1) * limit).Find(&conversations).Error; err != nil {
		return nil, 0, err
	}
	return conversations, int(total), nil
}

func (s *service) Get(ctx context.Context, id uint) (*entities.Conversation, error) {
	var conversation entities.Conversation
	err := s.db.WithContext(ctx).Preload("Contact").Preload("Sector").First(&conversation, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf(constant.CANT_FIND, "Conversation")
		}
		return nil, err
	}
	return &conversation, nil
}

func (s *service) Assign(ctx context.Context, id uint, userID uint) (*entities.Conversation, error) {
	conversation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var user entities.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf(constant.CANT_FIND, "User")
		}
		return nil, err
	}

	conversation.AssignedUserID = &userID
	if err := s.db.WithContext(ctx).Model(conversation).Update("assigned_user_id", userID).Error; err != nil {
		return nil, err
	}

	s.publish(conversation, map[string]any{
		"conversation_id":  conversation.ID,
		"assigned_user_id": userID,
	})
	return conversation, nil
}

func (s *service) SetMode(ctx context.Context, id uint, mode entities.ConversationMode) (*entities.Conversation, error) {
	conversation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	conversation.Mode = mode
	if err := s.db.WithContext(ctx).Model(conversation).Update("mode", mode).Error; err != nil {
		return nil, err
	}

	s.publish(conversation, map[string]any{
		"conversation_id": conversation.ID,
		"mode":            mode,
	})
	return conversation, nil
}

// Close marks a conversation closed. A conversation with an open
// ticket cannot be closed directly; the ticket must be finalized first,
// which closes the conversation as part of the transition.
func (s *service) Close(ctx context.Context, id uint) (*entities.Conversation, error) {
	conversation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var open int64
	err = s.db.WithContext(ctx).Model(&entities.Ticket{}).
		Where("conversation_id = ? AND status <> ?", id, entities.TicketFinalizado).
		Count(&open).Error
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, fmt.Errorf(constant.CONVERSATION_HAS_OPEN_TICKET)
	}

	conversation.Status = entities.ConversationClosed
	if err := s.db.WithContext(ctx).Model(conversation).Update("status", entities.ConversationClosed).Error; err != nil {
		return nil, err
	}

	s.publish(conversation, map[string]any{
		"conversation_id": conversation.ID,
		"status":          entities.ConversationClosed,
	})
	return conversation, nil
}

// Messages returns a page of the conversation timeline ordered by the
// stored timestamp, not arrival order.
func (s *service) Messages(ctx context.Context, id uint, page int) ([]entities.Message, error) {
	limit := 50
	if page < 1 {
		page = 1
	}

	var messages []entities.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("timestamp DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *service) publish(conversation *entities.Conversation, payload map[string]any) {
	s.hub.Publish(hub.NewEvent(hub.EventConversationUpdated, payload,
		hub.ConversationRoom(conversation.ID), hub.InstanceRoom(conversation.InstanceID)))
}
