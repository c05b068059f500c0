package outbound

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdesk/pkg/domains/provider"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/hub"
	"gorm.io/gorm"
)

type fakeSender struct {
	sentTexts []sentText
	sentMedia []provider.Media
	markReads [][]string
	failWith  error
}

type sentText struct {
	toJID    string
	content  string
	quotedID string
}

func (f *fakeSender) SendText(ctx context.Context, instance *entities.Instance, toJID, content, quotedID string) (provider.Result, error) {
	if f.failWith != nil {
		return provider.Result{}, f.failWith
	}
	f.sentTexts = append(f.sentTexts, sentText{toJID: toJID, content: content, quotedID: quotedID})
	return provider.Result{ProviderMessageID: "3EB0TEST", Timestamp: time.Now()}, nil
}

func (f *fakeSender) SendMedia(ctx context.Context, instance *entities.Instance, toJID string, media provider.Media) (provider.Result, error) {
	if f.failWith != nil {
		return provider.Result{}, f.failWith
	}
	f.sentMedia = append(f.sentMedia, media)
	return provider.Result{ProviderMessageID: "3EB0MEDIA", Timestamp: time.Now()}, nil
}

func (f *fakeSender) MarkRead(ctx context.Context, instance *entities.Instance, remoteJID string, messageIDs []string) error {
	f.markReads = append(f.markReads, messageIDs)
	return f.failWith
}

type fakeMediaStore struct {
	uploads int
	url     string
}

func (f *fakeMediaStore) Upload(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	f.uploads++
	return f.url, nil
}

func (f *fakeMediaStore) ResolveURL(ctx context.Context, ref string) (string, error) {
	return ref, nil
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entities.Instance{},
		&entities.Contact{},
		&entities.Conversation{},
		&entities.Message{},
	))
	return db
}

func seedConversation(t *testing.T, db *gorm.DB, kind entities.ProviderKind, status entities.InstanceStatus) *entities.Conversation {
	t.Helper()
	instance := entities.Instance{Name: "test", ProviderKind: kind, Status: status}
	require.NoError(t, db.Create(&instance).Error)
	contact := entities.Contact{
		InstanceID: instance.ID,
		Phone:      "5511999998888",
		RemoteJID:  "5511999998888@s.whatsapp.net",
		Name:       "Ana",
	}
	require.NoError(t, db.Create(&contact).Error)
	conversation := entities.Conversation{
		InstanceID: instance.ID,
		ContactID:  contact.ID,
		Mode:       entities.ModeAI,
		Status:     entities.ConversationActive,
	}
	require.NoError(t, db.Create(&conversation).Error)
	return &conversation
}

func TestSendPersistsMessageAndPreview(t *testing.T) {
	db := testDB(t)
	conversation := seedConversation(t, db, entities.ProviderEmbedded, entities.InstanceOpen)

	sender := &fakeSender{}
	service := NewService(db, hub.New(), nil, nil)
	service.AttachEmbedded(sender)

	message, err := service.Send(context.Background(), SendRequest{
		ConversationID: conversation.ID,
		Content:        "Olá {{clienteNome}}",
		TemplateContext: map[string]string{
			"clienteNome": "Ana",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Olá Ana", message.Content)
	assert.Equal(t, "3EB0TEST", message.ProviderMessageID)
	assert.True(t, message.FromMe)
	assert.Equal(t, entities.StatusSent, message.Status)

	require.Len(t, sender.sentTexts, 1)
	assert.Equal(t, "5511999998888@s.whatsapp.net", sender.sentTexts[0].toJID)
	assert.Equal(t, "Olá Ana", sender.sentTexts[0].content)

	var stored entities.Conversation
	require.NoError(t, db.First(&stored, conversation.ID).Error)
	assert.Equal(t, "Olá Ana", stored.LastMessage)
	require.NotNil(t, stored.LastMessageAt)
}

func TestSendRejectsDisconnectedEmbeddedInstance(t *testing.T) {
	db := testDB(t)
	conversation := seedConversation(t, db, entities.ProviderEmbedded, entities.InstanceDisconnected)

	service := NewService(db, hub.New(), nil, nil)
	service.AttachEmbedded(&fakeSender{})

	_, err := service.Send(context.Background(), SendRequest{
		ConversationID: conversation.ID,
		Content:        "hello",
	})
	assert.Error(t, err)

	var count int64
	db.Model(&entities.Message{}).Count(&count)
	assert.Zero(t, count)
}

func TestSendHostedIgnoresInstanceStatus(t *testing.T) {
	db := testDB(t)
	conversation := seedConversation(t, db, entities.ProviderHosted, entities.InstanceDisconnected)

	hosted := &fakeSender{}
	service := NewService(db, hub.New(), hosted, nil)

	_, err := service.Send(context.Background(), SendRequest{
		ConversationID: conversation.ID,
		Content:        "hello",
	})
	require.NoError(t, err)
	assert.Len(t, hosted.sentTexts, 1)
}

func TestSendWithoutAttachedSenderFails(t *testing.T) {
	db := testDB(t)
	conversation := seedConversation(t, db, entities.ProviderEmbedded, entities.InstanceOpen)

	service := NewService(db, hub.New(), nil, nil)

	_, err := service.Send(context.Background(), SendRequest{
		ConversationID: conversation.ID,
		Content:        "hello",
	})
	assert.ErrorIs(t, err, ErrNoSender)
}

func TestSendMediaUsesContentAsCaption(t *testing.T) {
	db := testDB(t)
	conversation := seedConversation(t, db, entities.ProviderEmbedded, entities.InstanceOpen)

	sender := &fakeSender{}
	service := NewService(db, hub.New(), nil, nil)
	service.AttachEmbedded(sender)

	message, err := service.Send(context.Background(), SendRequest{
		ConversationID: conversation.ID,
		Content:        "legenda",
		Type:           entities.MessageImage,
		Media: &provider.Media{
			Data:     []byte{0xFF, 0xD8},
			MimeType: "image/jpeg",
			FileName: "foto.jpg",
		},
	})
	require.NoError(t, err)

	require.Len(t, sender.sentMedia, 1)
	assert.Equal(t, "legenda", sender.sentMedia[0].Caption)
	assert.Equal(t, entities.MessageImage, message.Type)
	assert.Equal(t, "image/jpeg", message.MimeType)
}

func TestSendHostedUploadsRawMedia(t *testing.T) {
	db := testDB(t)
	conversation := seedConversation(t, db, entities.ProviderHosted, entities.InstanceOpen)

	hosted := &fakeSender{}
	store := &fakeMediaStore{url: "http://localhost:8080/media/abc.jpg"}
	service := NewService(db, hub.New(), hosted, store)

	message, err := service.Send(context.Background(), SendRequest{
		ConversationID: conversation.ID,
		Content:        "legenda",
		Type:           entities.MessageImage,
		Media: &provider.Media{
			Data:     []byte{0xFF, 0xD8},
			MimeType: "image/jpeg",
			FileName: "foto.jpg",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, store.uploads)
	require.Len(t, hosted.sentMedia, 1)
	assert.Equal(t, store.url, hosted.sentMedia[0].URL)
	assert.Equal(t, store.url, message.MediaURL)
}

func TestSendHostedRawMediaWithoutStoreFails(t *testing.T) {
	db := testDB(t)
	conversation := seedConversation(t, db, entities.ProviderHosted, entities.InstanceOpen)

	service := NewService(db, hub.New(), &fakeSender{}, nil)

	_, err := service.Send(context.Background(), SendRequest{
		ConversationID: conversation.ID,
		Type:           entities.MessageImage,
		Media: &provider.Media{
			Data:     []byte{0xFF, 0xD8},
			MimeType: "image/jpeg",
		},
	})
	assert.Error(t, err)
}

func TestInsertMarkerUsesServerClock(t *testing.T) {
	db := testDB(t)
	conversation := seedConversation(t, db, entities.ProviderEmbedded, entities.InstanceOpen)

	service := NewService(db, hub.New(), nil, nil)

	before := time.Now()
	marker, err := service.InsertMarker(context.Background(), conversation.ID, entities.MarkerTicketCreated, "Ticket #1 aberto")
	require.NoError(t, err)
	after := time.Now()

	assert.Equal(t, entities.MessageEvent, marker.Type)
	assert.Equal(t, entities.MarkerTicketCreated, marker.MarkerKind)
	assert.True(t, strings.HasPrefix(marker.ProviderMessageID, "evt-"))
	assert.False(t, marker.Timestamp.Before(before))
	assert.False(t, marker.Timestamp.After(after))
}

func TestPreviewTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("a", 200)
	assert.Len(t, preview(long, entities.MessageText), 120)
	assert.Equal(t, "[image]", preview("", entities.MessageImage))
}
