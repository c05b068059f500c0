package ingest

import (
	"time"

	"github.com/zapdesk/pkg/domains/provider"
	"github.com/zapdesk/pkg/entities"
	"go.mau.fi/whatsmeow/types/events"
	waProto "go.mau.fi/whatsmeow/binary/proto"
)

// EventKind discriminates the canonical inbound event variants.
type EventKind string

const (
	KindMessage EventKind = "message"
	KindStatus  EventKind = "status"
	KindEdit    EventKind = "edit"
	KindDelete  EventKind = "delete"
)

// InboundEvent is the canonical shape every provider payload is
// normalized into. Downstream consumers (ticket engine, hub) never see
// provider-specific shapes.
type InboundEvent struct {
	Provider          entities.ProviderKind
	Kind              EventKind
	ProviderMessageID string
	RemoteJID         string
	FromMe            bool
	PushName          string
	Type              entities.MessageType
	Content           string
	MediaURL          string
	MimeType          string
	FileName          string
	QuotedID          string
	Timestamp         time.Time

	// Status carries the new delivery state for KindStatus.
	Status entities.MessageStatus
	// NewContent carries the replacement body for KindEdit.
	NewContent string
}

// FromEmbedded normalizes a whatsmeow message event. Protocol messages
// (revoke, edit) become their own event kinds targeting the original
// provider message id.
func FromEmbedded(evt *events.Message) InboundEvent {
	base := InboundEvent{
		Provider:          entities.ProviderEmbedded,
		Kind:              KindMessage,
		ProviderMessageID: evt.Info.ID,
		RemoteJID:         evt.Info.Chat.String(),
		FromMe:            evt.Info.IsFromMe,
		PushName:          evt.Info.PushName,
		Timestamp:         evt.Info.Timestamp,
	}

	if protocol := evt.Message.GetProtocolMessage(); protocol != nil {
		switch protocol.GetType() {
		case waProto.ProtocolMessage_REVOKE:
			base.Kind = KindDelete
			base.ProviderMessageID = protocol.GetKey().GetID()
			return base
		case waProto.ProtocolMessage_MESSAGE_EDIT:
			base.Kind = KindEdit
			base.ProviderMessageID = protocol.GetKey().GetID()
			content, _, _, _ := ExtractContent(protocol.GetEditedMessage())
			base.NewContent = content
			return base
		}
	}

	content, messageType, mimeType, fileName := ExtractContent(evt.Message)
	base.Content = content
	base.Type = messageType
	base.MimeType = mimeType
	base.FileName = fileName

	if quoted := evt.Message.GetExtendedTextMessage().GetContextInfo(); quoted != nil {
		base.QuotedID = quoted.GetStanzaID()
	}
	return base
}

// FromEmbeddedReceipt expands a whatsmeow receipt into one status event
// per message id.
func FromEmbeddedReceipt(evt *events.Receipt) []InboundEvent {
	status := entities.StatusDelivered
	if evt.Type == events.ReceiptTypeRead || evt.Type == events.ReceiptTypeReadSelf {
		status = entities.StatusRead
	}

	out := make([]InboundEvent, 0, len(evt.MessageIDs))
	for _, id := range evt.MessageIDs {
		out = append(out, InboundEvent{
			Provider:          entities.ProviderEmbedded,
			Kind:              KindStatus,
			ProviderMessageID: id,
			RemoteJID:         evt.Chat.String(),
			Status:            status,
			Timestamp:         evt.Timestamp,
		})
	}
	return out
}

// FromWebhook normalizes a hosted-gateway callback. Unknown event names
// yield no events; the webhook handler answers 200 regardless so the
// gateway stops retrying.
func FromWebhook(payload provider.WebhookPayload) []InboundEvent {
	switch payload.Event {
	case provider.WebhookMessageUpsert:
		if payload.Message == nil {
			return nil
		}
		m := payload.Message
		return []InboundEvent{{
			Provider:          entities.ProviderHosted,
			Kind:              KindMessage,
			ProviderMessageID: m.ID,
			RemoteJID:         m.RemoteJID,
			FromMe:            m.FromMe,
			PushName:          m.PushName,
			Type:              webhookMessageType(m.Type),
			Content:           m.Content,
			MediaURL:          m.MediaURL,
			MimeType:          m.MimeType,
			FileName:          m.FileName,
			QuotedID:          m.QuotedID,
			Timestamp:         webhookTimestamp(m.Timestamp),
		}}
	case provider.WebhookMessageUpdate:
		if payload.Status == nil {
			return nil
		}
		return []InboundEvent{{
			Provider:          entities.ProviderHosted,
			Kind:              KindStatus,
			ProviderMessageID: payload.Status.MessageID,
			Status:            webhookStatus(payload.Status.Status),
			Timestamp:         time.Now(),
		}}
	case provider.WebhookMessageDelete:
		if payload.Message == nil {
			return nil
		}
		return []InboundEvent{{
			Provider:          entities.ProviderHosted,
			Kind:              KindDelete,
			ProviderMessageID: payload.Message.ID,
			RemoteJID:         payload.Message.RemoteJID,
			Timestamp:         time.Now(),
		}}
	}
	return nil
}

func webhookMessageType(raw string) entities.MessageType {
	switch raw {
	case "image":
		return entities.MessageImage
	case "video":
		return entities.MessageVideo
	case "audio":
		return entities.MessageAudio
	case "document":
		return entities.MessageDocument
	case "sticker":
		return entities.MessageSticker
	case "location":
		return entities.MessageLocation
	case "contact":
		return entities.MessageContact
	default:
		return entities.MessageText
	}
}

func webhookStatus(raw string) entities.MessageStatus {
	switch raw {
	case "READ":
		return entities.StatusRead
	case "ERROR":
		return entities.StatusFailed
	case "SERVER_ACK":
		return entities.StatusSent
	default: // DELIVERY_ACK
		return entities.StatusDelivered
	}
}

func webhookTimestamp(unix int64) time.Time {
	if unix <= 0 {
		return time.Now()
	}
	return time.Unix(unix, 0)
}
