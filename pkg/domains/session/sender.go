package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/domains/provider"
	"github.com/zapdesk/pkg/entities"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	waTypes "go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

// The manager is the provider.Sender for embedded instances: sends go
// straight through the instance's live socket.

func (m *Manager) liveClient(instance *entities.Instance) (*whatsmeow.Client, error) {
	session, ok := m.session(instance.ID)
	if !ok || session.Client == nil {
		return nil, fmt.Errorf(constant.INSTANCE_NOT_CONNECTED)
	}
	if session.Client.Store.ID == nil {
		return nil, fmt.Errorf("instance %d is not paired, scan the QR code first", instance.ID)
	}
	if !session.Client.IsConnected() {
		return nil, fmt.Errorf(constant.INSTANCE_NOT_CONNECTED)
	}
	return session.Client, nil
}

func (m *Manager) SendText(ctx context.Context, instance *entities.Instance, toJID, content, quotedID string) (provider.Result, error) {
	client, err := m.liveClient(instance)
	if err != nil {
		return provider.Result{}, err
	}

	recipient, err := waTypes.ParseJID(toJID)
	if err != nil {
		return provider.Result{}, fmt.Errorf(constant.INVALID_PHONE_NUMBER+": %v", err)
	}

	var msg *waProto.Message
	if quotedID != "" {
		msg = &waProto.Message{
			ExtendedTextMessage: &waProto.ExtendedTextMessage{
				Text: proto.String(content),
				ContextInfo: &waProto.ContextInfo{
					StanzaID:    proto.String(quotedID),
					Participant: proto.String(recipient.String()),
				},
			},
		}
	} else {
		msg = &waProto.Message{
			Conversation: proto.String(content),
		}
	}

	resp, err := client.SendMessage(ctx, recipient, msg)
	if err != nil {
		return provider.Result{}, fmt.Errorf("failed to send message: %v", err)
	}
	return provider.Result{ProviderMessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func (m *Manager) SendMedia(ctx context.Context, instance *entities.Instance, toJID string, media provider.Media) (provider.Result, error) {
	client, err := m.liveClient(instance)
	if err != nil {
		return provider.Result{}, err
	}

	recipient, err := waTypes.ParseJID(toJID)
	if err != nil {
		return provider.Result{}, fmt.Errorf(constant.INVALID_PHONE_NUMBER+": %v", err)
	}

	var mediaType whatsmeow.MediaType
	switch {
	case strings.HasPrefix(media.MimeType, "image/"):
		mediaType = whatsmeow.MediaImage
	case strings.HasPrefix(media.MimeType, "video/"):
		mediaType = whatsmeow.MediaVideo
	case strings.HasPrefix(media.MimeType, "audio/"):
		mediaType = whatsmeow.MediaAudio
	default:
		mediaType = whatsmeow.MediaDocument
	}

	uploaded, err := client.Upload(ctx, media.Data, mediaType)
	if err != nil {
		return provider.Result{}, fmt.Errorf(constant.MEDIA_UPLOAD_FAILED+": %v", err)
	}

	var msg *waProto.Message
	switch mediaType {
	case whatsmeow.MediaImage:
		msg = &waProto.Message{
			ImageMessage: &waProto.ImageMessage{
				URL:           &uploaded.URL,
				Mimetype:      &media.MimeType,
				Caption:       &media.Caption,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    &uploaded.FileLength,
				DirectPath:    &uploaded.DirectPath,
				MediaKey:      uploaded.MediaKey,
				FileEncSHA256: uploaded.FileEncSHA256,
			},
		}
	case whatsmeow.MediaVideo:
		msg = &waProto.Message{
			VideoMessage: &waProto.VideoMessage{
				URL:           &uploaded.URL,
				Mimetype:      &media.MimeType,
				Caption:       &media.Caption,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    &uploaded.FileLength,
				DirectPath:    &uploaded.DirectPath,
				MediaKey:      uploaded.MediaKey,
				FileEncSHA256: uploaded.FileEncSHA256,
			},
		}
	case whatsmeow.MediaAudio:
		msg = &waProto.Message{
			AudioMessage: &waProto.AudioMessage{
				URL:           &uploaded.URL,
				Mimetype:      &media.MimeType,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    &uploaded.FileLength,
				DirectPath:    &uploaded.DirectPath,
				MediaKey:      uploaded.MediaKey,
				FileEncSHA256: uploaded.FileEncSHA256,
			},
		}
	default:
		msg = &waProto.Message{
			DocumentMessage: &waProto.DocumentMessage{
				URL:           &uploaded.URL,
				Mimetype:      &media.MimeType,
				Title:         &media.Caption,
				FileName:      &media.FileName,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    &uploaded.FileLength,
				DirectPath:    &uploaded.DirectPath,
				MediaKey:      uploaded.MediaKey,
				FileEncSHA256: uploaded.FileEncSHA256,
			},
		}
	}

	resp, err := client.SendMessage(ctx, recipient, msg)
	if err != nil {
		return provider.Result{}, fmt.Errorf("failed to send media message: %v", err)
	}
	return provider.Result{ProviderMessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func (m *Manager) MarkRead(ctx context.Context, instance *entities.Instance, remoteJID string, messageIDs []string) error {
	client, err := m.liveClient(instance)
	if err != nil {
		return err
	}

	chat, err := waTypes.ParseJID(remoteJID)
	if err != nil {
		return fmt.Errorf("invalid remote jid: %v", err)
	}

	ids := make([]waTypes.MessageID, 0, len(messageIDs))
	for _, id := range messageIDs {
		ids = append(ids, waTypes.MessageID(id))
	}
	return client.MarkRead(ids, time.Now(), chat, chat)
}
