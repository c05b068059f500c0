package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zapdesk/pkg/domains/outbound"
	"github.com/zapdesk/pkg/domains/provider"
	"github.com/zapdesk/pkg/domains/ticket"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/hub"
	"go.mau.fi/whatsmeow/types/events"
	"gorm.io/gorm"
)

// Service normalizes provider payloads into canonical records. Both
// provider backends funnel through Ingest; everything after that point
// is provider-agnostic.
type Service interface {
	Ingest(ctx context.Context, instance *entities.Instance, event InboundEvent) error
	HandleEmbeddedMessage(ctx context.Context, instance *entities.Instance, evt *events.Message)
	HandleEmbeddedReceipt(ctx context.Context, instance *entities.Instance, evt *events.Receipt)
	HandleWebhook(ctx context.Context, instance *entities.Instance, payload provider.WebhookPayload) error
	MarkConversationRead(ctx context.Context, conversationID uint) error
}

type service struct {
	db       *gorm.DB
	tickets  ticket.Service
	outbound outbound.Service
	hub      *hub.Hub
}

func NewService(db *gorm.DB, tickets ticket.Service, out outbound.Service, h *hub.Hub) Service {
	return &service{
		db:       db,
		tickets:  tickets,
		outbound: out,
		hub:      h,
	}
}

func (s *service) HandleEmbeddedMessage(ctx context.Context, instance *entities.Instance, evt *events.Message) {
	if err := s.Ingest(ctx, instance, FromEmbedded(evt)); err != nil {
		log.Printf("[error] ingest: instance %d message %s: %v", instance.ID, evt.Info.ID, err)
	}
}

func (s *service) HandleEmbeddedReceipt(ctx context.Context, instance *entities.Instance, evt *events.Receipt) {
	for _, event := range FromEmbeddedReceipt(evt) {
		if err := s.Ingest(ctx, instance, event); err != nil {
			log.Printf("[error] ingest: instance %d receipt %s: %v", instance.ID, event.ProviderMessageID, err)
		}
	}
}

func (s *service) HandleWebhook(ctx context.Context, instance *entities.Instance, payload provider.WebhookPayload) error {
	if payload.Event == provider.WebhookConnectionUpdate && payload.Connection != nil {
		return s.applyConnectionUpdate(ctx, instance, payload.Connection.State)
	}

	for _, event := range FromWebhook(payload) {
		if err := s.Ingest(ctx, instance, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Ingest(ctx context.Context, instance *entities.Instance, event InboundEvent) error {
	switch event.Kind {
	case KindMessage:
		return s.ingestMessage(ctx, instance, event)
	case KindStatus:
		return s.applyStatus(ctx, event)
	case KindEdit:
		return s.applyEdit(ctx, event)
	case KindDelete:
		return s.applyDelete(ctx, event)
	default:
		return fmt.Errorf("unknown inbound event kind: %s", event.Kind)
	}
}

func (s *service) ingestMessage(ctx context.Context, instance *entities.Instance, event InboundEvent) error {
	if event.ProviderMessageID == "" {
		return fmt.Errorf("inbound message without provider id")
	}

	// Dedup: re-delivery of the same provider event is a no-op.
	var existing entities.Message
	err := s.db.WithContext(ctx).
		Where("provider_message_id = ?", event.ProviderMessageID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	contact, err := s.resolveContact(ctx, instance, event)
	if err != nil {
		return err
	}
	conversation, err := s.resolveConversation(ctx, instance, contact)
	if err != nil {
		return err
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	message := entities.Message{
		ConversationID:    conversation.ID,
		ProviderMessageID: event.ProviderMessageID,
		FromMe:            event.FromMe,
		Type:              event.Type,
		Content:           event.Content,
		MediaURL:          event.MediaURL,
		MimeType:          event.MimeType,
		FileName:          event.FileName,
		Status:            entities.StatusSent,
		QuotedMessageID:   event.QuotedID,
		Timestamp:         timestamp,
	}

	updates := map[string]any{
		"last_message":    messagePreview(&message),
		"last_message_at": &timestamp,
	}
	if !event.FromMe {
		updates["unread_count"] = gorm.Expr("unread_count + 1")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		return tx.Model(&entities.Conversation{}).Where("id = ?", conversation.ID).
			Updates(updates).Error
	})
	if err != nil {
		// A concurrent delivery may have won the unique index race;
		// treat that exactly like the dedup hit above.
		var race entities.Message
		if lookupErr := s.db.WithContext(ctx).
			Where("provider_message_id = ?", event.ProviderMessageID).
			First(&race).Error; lookupErr == nil {
			return nil
		}
		return err
	}

	s.hub.Publish(hub.NewEvent(hub.EventMessageCreated, message, hub.ConversationRoom(conversation.ID)))
	s.hub.Publish(hub.NewEvent(hub.EventConversationUpdated, map[string]any{
		"conversation_id": conversation.ID,
		"last_message":    messagePreview(&message),
	}, hub.ConversationRoom(conversation.ID), hub.InstanceRoom(instance.ID)))

	if !event.FromMe {
		s.tickets.HandleInbound(ctx, conversation, contact)
	}
	return nil
}

// resolveContact looks up by provider-native id first, then by
// normalized phone, creating on miss. A lost insert race on the unique
// (instance, phone) index means another ingestion created it; re-fetch.
func (s *service) resolveContact(ctx context.Context, instance *entities.Instance, event InboundEvent) (*entities.Contact, error) {
	var contact entities.Contact
	err := s.db.WithContext(ctx).
		Where("instance_id = ? AND remote_jid = ?", instance.ID, event.RemoteJID).
		First(&contact).Error
	if err == nil {
		return s.refreshContact(ctx, &contact, event), nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	phone, isGroup := phoneFromJID(event.RemoteJID)
	err = s.db.WithContext(ctx).
		Where("instance_id = ? AND phone = ?", instance.ID, phone).
		First(&contact).Error
	if err == nil {
		if contact.RemoteJID == "" {
			contact.RemoteJID = event.RemoteJID
			s.db.WithContext(ctx).Model(&contact).Update("remote_jid", event.RemoteJID)
		}
		return s.refreshContact(ctx, &contact, event), nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	contact = entities.Contact{
		InstanceID: instance.ID,
		Phone:      phone,
		RemoteJID:  event.RemoteJID,
		Name:       event.PushName,
		IsGroup:    isGroup,
	}
	if err := s.db.WithContext(ctx).Create(&contact).Error; err != nil {
		var raced entities.Contact
		if lookupErr := s.db.WithContext(ctx).
			Where("instance_id = ? AND phone = ?", instance.ID, phone).
			First(&raced).Error; lookupErr == nil {
			return &raced, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (s *service) refreshContact(ctx context.Context, contact *entities.Contact, event InboundEvent) *entities.Contact {
	if event.PushName != "" && event.PushName != contact.Name && !event.FromMe {
		contact.Name = event.PushName
		s.db.WithContext(ctx).Model(contact).Update("name", event.PushName)
	}
	return contact
}

// resolveConversation enforces the one-conversation-per-contact
// invariant: upsert on miss, unique index on contact_id, re-fetch on a
// lost race.
func (s *service) resolveConversation(ctx context.Context, instance *entities.Instance, contact *entities.Contact) (*entities.Conversation, error) {
	var conversation entities.Conversation
	err := s.db.WithContext(ctx).
		Where("contact_id = ?", contact.ID).
		First(&conversation).Error
	if err == nil {
		return &conversation, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	conversation = entities.Conversation{
		InstanceID: instance.ID,
		ContactID:  contact.ID,
		SectorID:   instance.SectorID,
		Mode:       entities.ModeAI,
		Status:     entities.ConversationActive,
	}
	if err := s.db.WithContext(ctx).Create(&conversation).Error; err != nil {
		var raced entities.Conversation
		if lookupErr := s.db.WithContext(ctx).
			Where("contact_id = ?", contact.ID).
			First(&raced).Error; lookupErr == nil {
			return &raced, nil
		}
		return nil, err
	}
	return &conversation, nil
}

// applyStatus matches delivery receipts to an existing message by
// provider id. Unmatched receipts are dropped: the message may not have
// synced yet.
func (s *service) applyStatus(ctx context.Context, event InboundEvent) error {
	var message entities.Message
	err := s.db.WithContext(ctx).
		Where("provider_message_id = ?", event.ProviderMessageID).
		First(&message).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if statusRank(event.Status) <= statusRank(message.Status) {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&message).Update("status", event.Status).Error; err != nil {
		return err
	}

	s.hub.Publish(hub.NewEvent(hub.EventMessageStatus, map[string]any{
		"message_id":          message.ID,
		"provider_message_id": message.ProviderMessageID,
		"conversation_id":     message.ConversationID,
		"status":              event.Status,
	}, hub.ConversationRoom(message.ConversationID)))
	return nil
}

func (s *service) applyEdit(ctx context.Context, event InboundEvent) error {
	var message entities.Message
	err := s.db.WithContext(ctx).
		Where("provider_message_id = ?", event.ProviderMessageID).
		First(&message).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&message).Updates(map[string]any{
		"content":   event.NewContent,
		"edited_at": &now,
	}).Error; err != nil {
		return err
	}

	message.Content = event.NewContent
	message.EditedAt = &now
	s.hub.Publish(hub.NewEvent(hub.EventMessageUpdated, message, hub.ConversationRoom(message.ConversationID)))
	return nil
}

func (s *service) applyDelete(ctx context.Context, event InboundEvent) error {
	var message entities.Message
	err := s.db.WithContext(ctx).
		Where("provider_message_id = ?", event.ProviderMessageID).
		First(&message).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&message).Update("revoked_at", &now).Error; err != nil {
		return err
	}

	s.hub.Publish(hub.NewEvent(hub.EventMessageDeleted, map[string]any{
		"message_id":          message.ID,
		"provider_message_id": message.ProviderMessageID,
		"conversation_id":     message.ConversationID,
	}, hub.ConversationRoom(message.ConversationID)))
	return nil
}

// MarkConversationRead zeroes the unread counter and fires a detached
// best-effort read receipt at the provider. A provider failure never
// rolls back the local read state.
func (s *service) MarkConversationRead(ctx context.Context, conversationID uint) error {
	var conversation entities.Conversation
	err := s.db.WithContext(ctx).Preload("Contact").Preload("Instance").
		First(&conversation, conversationID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("conversation not found")
		}
		return err
	}

	// Synthetic timeline markers carry fabricated provider ids and are
	// never relayed to the provider.
	var unreadIDs []string
	s.db.WithContext(ctx).Model(&entities.Message{}).
		Where("conversation_id = ? AND from_me = ? AND status <> ? AND type <> ?",
			conversationID, false, entities.StatusRead, entities.MessageEvent).
		Order("timestamp DESC").Limit(50).
		Pluck("provider_message_id", &unreadIDs)

	if err := s.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ?", conversationID).
		Update("unread_count", 0).Error; err != nil {
		return err
	}

	s.hub.Publish(hub.NewEvent(hub.EventConversationUpdated, map[string]any{
		"conversation_id": conversationID,
		"unread_count":    0,
	}, hub.ConversationRoom(conversationID), hub.InstanceRoom(conversation.InstanceID)))

	if len(unreadIDs) > 0 {
		instance := conversation.Instance
		remoteJID := conversation.Contact.RemoteJID
		go func() {
			readCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.outbound.MarkRead(readCtx, &instance, remoteJID, unreadIDs); err != nil {
				log.Printf("[warn] ingest: read receipt relay failed for conversation %d: %v", conversationID, err)
			}
		}()
	}
	return nil
}

func (s *service) applyConnectionUpdate(ctx context.Context, instance *entities.Instance, state string) error {
	status := entities.InstanceDisconnected
	switch state {
	case "open":
		status = entities.InstanceOpen
	case "connecting":
		status = entities.InstanceConnecting
	}

	if err := s.db.WithContext(ctx).Model(&entities.Instance{}).
		Where("id = ?", instance.ID).
		Update("status", status).Error; err != nil {
		return err
	}

	s.hub.Publish(hub.NewEvent(hub.EventInstanceStatus, map[string]any{
		"instance_id": instance.ID,
		"status":      status,
	}, hub.InstanceRoom(instance.ID)))
	return nil
}

func statusRank(status entities.MessageStatus) int {
	switch status {
	case entities.StatusSent:
		return 1
	case entities.StatusDelivered:
		return 2
	case entities.StatusRead:
		return 3
	case entities.StatusFailed:
		return 4
	default:
		return 0
	}
}

func messagePreview(message *entities.Message) string {
	if message.Content != "" {
		if len(message.Content) > 120 {
			return message.Content[:120]
		}
		return message.Content
	}
	return "[" + string(message.Type) + "]"
}

func phoneFromJID(jid string) (phone string, isGroup bool) {
	user := jid
	if at := strings.Index(jid, "@"); at >= 0 {
		user = jid[:at]
		isGroup = strings.HasSuffix(jid, "@g.us")
	}
	if colon := strings.Index(user, ":"); colon >= 0 {
		user = user[:colon]
	}
	return user, isGroup
}
