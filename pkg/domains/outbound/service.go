package outbound

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/domains/provider"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/hub"
	"gorm.io/gorm"
)

// ErrNoSender is returned when an instance's provider backend has no
// sender wired (e.g. embedded sessions before the manager attached).
var ErrNoSender = fmt.Errorf("no sender available for instance provider")

type SendRequest struct {
	ConversationID  uint
	Content         string
	Type            entities.MessageType
	Media           *provider.Media
	QuotedMessageID string
	TemplateContext map[string]string
}

// Service is the single choke point for outbound messages: operator
// sends and automatic side-effect messages both pass through here.
type Service interface {
	Send(ctx context.Context, req SendRequest) (*entities.Message, error)
	InsertMarker(ctx context.Context, conversationID uint, kind entities.MarkerKind, content string) (*entities.Message, error)
	MarkRead(ctx context.Context, instance *entities.Instance, remoteJID string, messageIDs []string) error
	AttachEmbedded(sender provider.Sender)
}

type service struct {
	db       *gorm.DB
	hub      *hub.Hub
	hosted   provider.Sender
	embedded provider.Sender
	media    provider.MediaStore
}

func NewService(db *gorm.DB, h *hub.Hub, hosted provider.Sender, media provider.MediaStore) Service {
	return &service{
		db:     db,
		hub:    h,
		hosted: hosted,
		media:  media,
	}
}

// AttachEmbedded wires the in-process session manager as the sender for
// embedded instances. Attached once during startup, before traffic.
func (s *service) AttachEmbedded(sender provider.Sender) {
	s.embedded = sender
}

func (s *service) senderFor(instance *entities.Instance) (provider.Sender, error) {
	switch instance.ProviderKind {
	case entities.ProviderHosted:
		if s.hosted == nil {
			return nil, ErrNoSender
		}
		return s.hosted, nil
	default:
		if s.embedded == nil {
			return nil, ErrNoSender
		}
		return s.embedded, nil
	}
}

func (s *service) Send(ctx context.Context, req SendRequest) (*entities.Message, error) {
	var conversation entities.Conversation
	if err := s.db.WithContext(ctx).Preload("Contact").Preload("Instance").
		First(&conversation, req.ConversationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf(constant.CANT_FIND, "Conversation")
		}
		return nil, err
	}

	if conversation.Instance.Status != entities.InstanceOpen && conversation.Instance.ProviderKind == entities.ProviderEmbedded {
		return nil, fmt.Errorf(constant.INSTANCE_NOT_CONNECTED)
	}

	sender, err := s.senderFor(&conversation.Instance)
	if err != nil {
		return nil, err
	}

	destination, err := ResolveDestination(&conversation.Contact)
	if err != nil {
		return nil, fmt.Errorf(constant.INVALID_PHONE_NUMBER+": %v", err)
	}

	content := ApplyTemplate(req.Content, req.TemplateContext)

	var result provider.Result
	var media provider.Media
	if req.Media != nil {
		media = *req.Media
		if media.Caption == "" {
			media.Caption = content
		}
		// The hosted gateway pulls media by URL; raw uploads go through
		// the media store first.
		if conversation.Instance.ProviderKind == entities.ProviderHosted && media.URL == "" && len(media.Data) > 0 {
			if s.media == nil {
				return nil, fmt.Errorf(constant.MEDIA_UPLOAD_FAILED)
			}
			url, uploadErr := s.media.Upload(ctx, media.Data, media.MimeType, media.FileName)
			if uploadErr != nil {
				return nil, fmt.Errorf(constant.MEDIA_UPLOAD_FAILED+": %v", uploadErr)
			}
			media.URL = url
		}
		result, err = sender.SendMedia(ctx, &conversation.Instance, destination.String(), media)
	} else {
		result, err = sender.SendText(ctx, &conversation.Instance, destination.String(), content, req.QuotedMessageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %v", err)
	}

	messageType := req.Type
	if messageType == "" {
		messageType = entities.MessageText
	}

	message := entities.Message{
		ConversationID:    conversation.ID,
		ProviderMessageID: result.ProviderMessageID,
		FromMe:            true,
		Type:              messageType,
		Content:           content,
		Status:            entities.StatusSent,
		QuotedMessageID:   req.QuotedMessageID,
		Timestamp:         result.Timestamp,
	}
	if req.Media != nil {
		message.MediaURL = media.URL
		message.MimeType = media.MimeType
		message.FileName = media.FileName
	}

	// The message row and the conversation preview move together.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		now := message.Timestamp
		return tx.Model(&entities.Conversation{}).Where("id = ?", conversation.ID).
			Updates(map[string]any{
				"last_message":    preview(content, messageType),
				"last_message_at": &now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.hub.Publish(hub.NewEvent(hub.EventMessageCreated, message, hub.ConversationRoom(conversation.ID)))
	s.hub.Publish(hub.NewEvent(hub.EventConversationUpdated, map[string]any{
		"conversation_id": conversation.ID,
		"last_message":    preview(content, messageType),
	}, hub.ConversationRoom(conversation.ID), hub.InstanceRoom(conversation.InstanceID)))

	log.Printf("Message sent on conversation %d. Provider ID: %s", conversation.ID, result.ProviderMessageID)
	return &message, nil
}

// InsertMarker appends a synthetic event message to the conversation
// timeline. The timestamp always comes from the server clock so
// concurrent clients converge on one ordering.
func (s *service) InsertMarker(ctx context.Context, conversationID uint, kind entities.MarkerKind, content string) (*entities.Message, error) {
	var conversation entities.Conversation
	if err := s.db.WithContext(ctx).First(&conversation, conversationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf(constant.CANT_FIND, "Conversation")
		}
		return nil, err
	}

	marker := entities.Message{
		ConversationID:    conversation.ID,
		ProviderMessageID: "evt-" + uuid.New().String(),
		FromMe:            false,
		Type:              entities.MessageEvent,
		MarkerKind:        kind,
		Content:           content,
		Status:            entities.StatusSent,
		Timestamp:         time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&marker).Error; err != nil {
		return nil, err
	}

	s.hub.Publish(hub.NewEvent(hub.EventMessageCreated, marker, hub.ConversationRoom(conversation.ID)))
	return &marker, nil
}

func (s *service) MarkRead(ctx context.Context, instance *entities.Instance, remoteJID string, messageIDs []string) error {
	sender, err := s.senderFor(instance)
	if err != nil {
		return err
	}
	return sender.MarkRead(ctx, instance, remoteJID, messageIDs)
}

func preview(content string, messageType entities.MessageType) string {
	if content != "" {
		if len(content) > 120 {
			return content[:120]
		}
		return content
	}
	return "[" + string(messageType) + "]"
}
