package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/hub"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entities.User{},
		&entities.Instance{},
		&entities.Contact{},
		&entities.Conversation{},
		&entities.Message{},
		&entities.Sector{},
		&entities.Ticket{},
	))
	return db
}

func seed(t *testing.T, db *gorm.DB) (*entities.Instance, *entities.Conversation) {
	t.Helper()
	instance := entities.Instance{Name: "main", ProviderKind: entities.ProviderEmbedded}
	require.NoError(t, db.Create(&instance).Error)

	contact := entities.Contact{InstanceID: instance.ID, Phone: "5511999998888", Name: "Ana"}
	require.NoError(t, db.Create(&contact).Error)

	conversation := entities.Conversation{
		InstanceID: instance.ID,
		ContactID:  contact.ID,
		Mode:       entities.ModeAI,
		Status:     entities.ConversationActive,
	}
	require.NoError(t, db.Create(&conversation).Error)
	return &instance, &conversation
}

func TestListFiltersByInstanceAndStatus(t *testing.T) {
	db := testDB(t)
	service := NewService(db, hub.New())
	instance, conversation := seed(t, db)

	other := entities.Instance{Name: "other", ProviderKind: entities.ProviderHosted}
	require.NoError(t, db.Create(&other).Error)
	otherContact := entities.Contact{InstanceID: other.ID, Phone: "5511777776666"}
	require.NoError(t, db.Create(&otherContact).Error)
	closed := entities.Conversation{
		InstanceID: other.ID,
		ContactID:  otherContact.ID,
		Status:     entities.ConversationClosed,
	}
	require.NoError(t, db.Create(&closed).Error)

	all, total, err := service.List(context.Background(), nil, "", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	mine, total, err := service.List(context.Background(), &instance.ID, "", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, mine, 1)
	assert.Equal(t, conversation.ID, mine[0].ID)

	active, total, err := service.List(context.Background(), nil, string(entities.ConversationActive), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, conversation.ID, active[0].ID)
}

func TestGetPreloadsContact(t *testing.T) {
	db := testDB(t)
	service := NewService(db, hub.New())
	_, conversation := seed(t, db)

	found, err := service.Get(context.Background(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", found.Contact.Name)

	_, err = service.Get(context.Background(), 9999)
	assert.Error(t, err)
}

func TestAssignRequiresExistingUser(t *testing.T) {
	db := testDB(t)
	service := NewService(db, hub.New())
	_, conversation := seed(t, db)

	_, err := service.Assign(context.Background(), conversation.ID, 42)
	assert.Error(t, err)

	user := entities.User{Email: "agente@example.com", Name: "Bruno"}
	require.NoError(t, db.Create(&user).Error)

	updated, err := service.Assign(context.Background(), conversation.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedUserID)
	assert.Equal(t, user.ID, *updated.AssignedUserID)
}

func TestSetMode(t *testing.T) {
	db := testDB(t)
	service := NewService(db, hub.New())
	_, conversation := seed(t, db)

	updated, err := service.SetMode(context.Background(), conversation.ID, entities.ModeHuman)
	require.NoError(t, err)
	assert.Equal(t, entities.ModeHuman, updated.Mode)

	var stored entities.Conversation
	require.NoError(t, db.First(&stored, conversation.ID).Error)
	assert.Equal(t, entities.ModeHuman, stored.Mode)
}

func TestMessagesOrderedByTimestampDescending(t *testing.T) {
	db := testDB(t)
	service := NewService(db, hub.New())
	_, conversation := seed(t, db)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		message := entities.Message{
			ConversationID:    conversation.ID,
			ProviderMessageID: string(rune('A' + i)),
			Type:              entities.MessageText,
			Content:           "msg",
			Status:            entities.StatusSent,
			Timestamp:         base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&message).Error)
	}

	messages, err := service.Messages(context.Background(), conversation.ID, 1)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.True(t, messages[0].Timestamp.After(messages[1].Timestamp))
	assert.True(t, messages[1].Timestamp.After(messages[2].Timestamp))
}

func TestCloseRejectsOpenTicket(t *testing.T) {
	db := testDB(t)
	service := NewService(db, hub.New())
	_, conversation := seed(t, db)

	sector := entities.Sector{Name: "Suporte", GeraTicket: true}
	require.NoError(t, db.Create(&sector).Error)
	ticket := entities.Ticket{
		ConversationID: conversation.ID,
		SectorID:       sector.ID,
		Number:         1,
		Status:         entities.TicketAberto,
	}
	require.NoError(t, db.Create(&ticket).Error)

	_, err := service.Close(context.Background(), conversation.ID)
	assert.Error(t, err)

	var stored entities.Conversation
	require.NoError(t, db.First(&stored, conversation.ID).Error)
	assert.Equal(t, entities.ConversationActive, stored.Status)
}

func TestCloseWithoutOpenTicket(t *testing.T) {
	db := testDB(t)
	service := NewService(db, hub.New())
	_, conversation := seed(t, db)

	sector := entities.Sector{Name: "Suporte", GeraTicket: true}
	require.NoError(t, db.Create(&sector).Error)
	ticket := entities.Ticket{
		ConversationID: conversation.ID,
		SectorID:       sector.ID,
		Number:         1,
		Status:         entities.TicketFinalizado,
	}
	require.NoError(t, db.Create(&ticket).Error)

	closed, err := service.Close(context.Background(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ConversationClosed, closed.Status)
}
