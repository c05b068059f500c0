package ticket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdesk/pkg/domains/outbound"
	"github.com/zapdesk/pkg/domains/provider"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/hub"
	"gorm.io/gorm"
)

type markerCall struct {
	conversationID uint
	kind           entities.MarkerKind
	content        string
}

// fakeOutbound records every call; ticket side effects run detached so
// all access is mutex guarded.
type fakeOutbound struct {
	mu      sync.Mutex
	sends   []outbound.SendRequest
	markers []markerCall
}

func (f *fakeOutbound) Send(ctx context.Context, req outbound.SendRequest) (*entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, req)
	return &entities.Message{Content: req.Content}, nil
}

func (f *fakeOutbound) InsertMarker(ctx context.Context, conversationID uint, kind entities.MarkerKind, content string) (*entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers = append(f.markers, markerCall{conversationID: conversationID, kind: kind, content: content})
	return &entities.Message{Type: entities.MessageEvent, MarkerKind: kind, Content: content}, nil
}

func (f *fakeOutbound) MarkRead(ctx context.Context, instance *entities.Instance, remoteJID string, messageIDs []string) error {
	return nil
}

func (f *fakeOutbound) AttachEmbedded(sender provider.Sender) {}

func (f *fakeOutbound) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeOutbound) lastSend() outbound.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[len(f.sends)-1]
}

func (f *fakeOutbound) markerKinds() []entities.MarkerKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]entities.MarkerKind, 0, len(f.markers))
	for _, m := range f.markers {
		kinds = append(kinds, m.kind)
	}
	return kinds
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entities.Instance{},
		&entities.Sector{},
		&entities.Contact{},
		&entities.Conversation{},
		&entities.Ticket{},
		&entities.SlaConfig{},
		&entities.SlaViolation{},
	))
	return db
}

type fixture struct {
	db           *gorm.DB
	out          *fakeOutbound
	service      Service
	sector       *entities.Sector
	conversation *entities.Conversation
	contact      *entities.Contact
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)

	sector := entities.Sector{
		Name:               "Suporte",
		GeraTicket:         true,
		MensagemBoasVindas: "Olá {{clienteNome}}, bem-vindo ao {{setor}}!",
	}
	require.NoError(t, db.Create(&sector).Error)

	instance := entities.Instance{Name: "main", ProviderKind: entities.ProviderEmbedded, Status: entities.InstanceOpen}
	require.NoError(t, db.Create(&instance).Error)

	contact := entities.Contact{InstanceID: instance.ID, Phone: "5511999998888", Name: "Ana"}
	require.NoError(t, db.Create(&contact).Error)

	conversation := entities.Conversation{
		InstanceID: instance.ID,
		ContactID:  contact.ID,
		SectorID:   &sector.ID,
		Status:     entities.ConversationActive,
	}
	require.NoError(t, db.Create(&conversation).Error)

	out := &fakeOutbound{}
	return &fixture{
		db:           db,
		out:          out,
		service:      NewService(db, out, hub.New()),
		sector:       &sector,
		conversation: &conversation,
		contact:      &contact,
	}
}

func TestCreateOpensTicketWithSequentialNumber(t *testing.T) {
	f := setup(t)

	ticket, err := f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), ticket.Number)
	assert.Equal(t, entities.TicketAberto, ticket.Status)
	assert.Equal(t, f.sector.ID, ticket.SectorID)

	assert.Contains(t, f.out.markerKinds(), entities.MarkerTicketCreated)

	require.Eventually(t, func() bool { return f.out.sentCount() == 1 }, time.Second, 10*time.Millisecond)
	sent := f.out.lastSend()
	assert.Equal(t, "Olá {{clienteNome}}, bem-vindo ao {{setor}}!", sent.Content)
	assert.Equal(t, "Ana", sent.TemplateContext["clienteNome"])
	assert.Equal(t, "Suporte", sent.TemplateContext["setor"])
}

func TestCreateRejectsSecondActiveTicket(t *testing.T) {
	f := setup(t)

	_, err := f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	require.NoError(t, err)

	_, err = f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	assert.ErrorIs(t, err, ErrActiveTicketExists)
}

func TestCreateRejectsNonGeneratingSector(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Model(f.sector).Update("gera_ticket", false).Error)

	_, err := f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	assert.ErrorIs(t, err, ErrSectorDisabled)
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		from    entities.TicketStatus
		to      entities.TicketStatus
		allowed bool
	}{
		{entities.TicketAberto, entities.TicketEmAtendimento, true},
		{entities.TicketAberto, entities.TicketFinalizado, true},
		{entities.TicketAberto, entities.TicketReaberto, false},
		{entities.TicketEmAtendimento, entities.TicketFinalizado, true},
		{entities.TicketEmAtendimento, entities.TicketAberto, false},
		{entities.TicketFinalizado, entities.TicketReaberto, true},
		{entities.TicketFinalizado, entities.TicketEmAtendimento, false},
		{entities.TicketReaberto, entities.TicketEmAtendimento, true},
		{entities.TicketReaberto, entities.TicketFinalizado, true},
		{entities.TicketReaberto, entities.TicketAberto, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, transitionAllowed(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTransitionToAtendimentoStampsFirstResponse(t *testing.T) {
	f := setup(t)
	ticket, err := f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	require.NoError(t, err)

	agent := uint(7)
	updated, err := f.service.Transition(context.Background(), ticket.ID, entities.TicketEmAtendimento, &agent)
	require.NoError(t, err)

	assert.Equal(t, entities.TicketEmAtendimento, updated.Status)
	require.NotNil(t, updated.FirstResponseAt)
	require.NotNil(t, updated.AssignedUserID)
	assert.Equal(t, agent, *updated.AssignedUserID)

	first := *updated.FirstResponseAt
	closed, err := f.service.Transition(context.Background(), updated.ID, entities.TicketFinalizado, &agent)
	require.NoError(t, err)
	reopened, err := f.service.Transition(context.Background(), closed.ID, entities.TicketReaberto, nil)
	require.NoError(t, err)
	again, err := f.service.Transition(context.Background(), reopened.ID, entities.TicketEmAtendimento, &agent)
	require.NoError(t, err)

	// First response survives the whole lifecycle.
	require.NotNil(t, again.FirstResponseAt)
	assert.Equal(t, first.Unix(), again.FirstResponseAt.Unix())
}

func TestFinalizadoClosesConversation(t *testing.T) {
	f := setup(t)
	ticket, err := f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	require.NoError(t, err)

	agent := uint(3)
	closed, err := f.service.Transition(context.Background(), ticket.ID, entities.TicketFinalizado, &agent)
	require.NoError(t, err)

	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, agent, *closed.ClosedBy)

	var conversation entities.Conversation
	require.NoError(t, f.db.First(&conversation, f.conversation.ID).Error)
	assert.Equal(t, entities.ConversationClosed, conversation.Status)

	assert.Contains(t, f.out.markerKinds(), entities.MarkerTicketClosed)
}

func TestReabertoKeepsNumberAndReactivatesConversation(t *testing.T) {
	f := setup(t)
	ticket, err := f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	require.NoError(t, err)

	_, err = f.service.Transition(context.Background(), ticket.ID, entities.TicketFinalizado, nil)
	require.NoError(t, err)

	reopened, err := f.service.Transition(context.Background(), ticket.ID, entities.TicketReaberto, nil)
	require.NoError(t, err)

	assert.Equal(t, ticket.Number, reopened.Number)
	assert.Nil(t, reopened.ClosedAt)
	assert.Nil(t, reopened.ClosedBy)

	var conversation entities.Conversation
	require.NoError(t, f.db.First(&conversation, f.conversation.ID).Error)
	assert.Equal(t, entities.ConversationActive, conversation.Status)

	assert.Contains(t, f.out.markerKinds(), entities.MarkerConversationReopened)
}

func TestReabertoFallsBackToWelcomeTemplate(t *testing.T) {
	f := setup(t)
	ticket, err := f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.out.sentCount() == 1 }, time.Second, 10*time.Millisecond)

	_, err = f.service.Transition(context.Background(), ticket.ID, entities.TicketFinalizado, nil)
	require.NoError(t, err)
	_, err = f.service.Transition(context.Background(), ticket.ID, entities.TicketReaberto, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.out.sentCount() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, f.sector.MensagemBoasVindas, f.out.lastSend().Content)
}

func TestInvalidTransitionLeavesTicketUntouched(t *testing.T) {
	f := setup(t)
	ticket, err := f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	require.NoError(t, err)

	_, err = f.service.Transition(context.Background(), ticket.ID, entities.TicketReaberto, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := f.service.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TicketAberto, stored.Status)
}

func TestHandleInboundOpensTicketOnce(t *testing.T) {
	f := setup(t)

	f.service.HandleInbound(context.Background(), f.conversation, f.contact)

	var count int64
	f.db.Model(&entities.Ticket{}).Count(&count)
	assert.Equal(t, int64(1), count)

	// Further traffic on an active ticket is a no-op.
	f.service.HandleInbound(context.Background(), f.conversation, f.contact)
	f.db.Model(&entities.Ticket{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestHandleInboundReopensFinalizedTicket(t *testing.T) {
	f := setup(t)

	ticket, err := f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	require.NoError(t, err)
	_, err = f.service.Transition(context.Background(), ticket.ID, entities.TicketFinalizado, nil)
	require.NoError(t, err)

	f.service.HandleInbound(context.Background(), f.conversation, f.contact)

	stored, err := f.service.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TicketReaberto, stored.Status)
	assert.Equal(t, ticket.Number, stored.Number)
}

func TestHandleInboundRespectsSectorFlag(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Model(f.sector).Update("gera_ticket", false).Error)

	f.service.HandleInbound(context.Background(), f.conversation, f.contact)

	var count int64
	f.db.Model(&entities.Ticket{}).Count(&count)
	assert.Zero(t, count)
}

func TestTicketNumbersAreGloballySequential(t *testing.T) {
	f := setup(t)

	contact2 := entities.Contact{InstanceID: f.conversation.InstanceID, Phone: "5511888887777", Name: "Bruno"}
	require.NoError(t, f.db.Create(&contact2).Error)
	conversation2 := entities.Conversation{
		InstanceID: f.conversation.InstanceID,
		ContactID:  contact2.ID,
		SectorID:   &f.sector.ID,
		Status:     entities.ConversationActive,
	}
	require.NoError(t, f.db.Create(&conversation2).Error)

	first, err := f.service.Create(context.Background(), f.conversation.ID, nil, nil)
	require.NoError(t, err)
	second, err := f.service.Create(context.Background(), conversation2.ID, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Number)
	assert.Equal(t, int64(2), second.Number)
}

func TestOpenTicketIndexesGuardRaces(t *testing.T) {
	f := setup(t)

	first := entities.Ticket{
		ConversationID: f.conversation.ID,
		SectorID:       f.sector.ID,
		Number:         1,
		Status:         entities.TicketAberto,
	}
	require.NoError(t, f.db.Create(&first).Error)

	// Second non-terminal ticket for the same conversation is rejected
	// at the index level, not just by the service pre-check.
	second := entities.Ticket{
		ConversationID: f.conversation.ID,
		SectorID:       f.sector.ID,
		Number:         2,
		Status:         entities.TicketReaberto,
	}
	assert.Error(t, f.db.Create(&second).Error)

	// A duplicate global number is rejected even across conversations.
	otherContact := entities.Contact{InstanceID: f.conversation.InstanceID, Phone: "5511777776666"}
	require.NoError(t, f.db.Create(&otherContact).Error)
	otherConversation := entities.Conversation{
		InstanceID: f.conversation.InstanceID,
		ContactID:  otherContact.ID,
		SectorID:   &f.sector.ID,
		Status:     entities.ConversationActive,
	}
	require.NoError(t, f.db.Create(&otherConversation).Error)
	duplicateNumber := entities.Ticket{
		ConversationID: otherConversation.ID,
		SectorID:       f.sector.ID,
		Number:         1,
		Status:         entities.TicketAberto,
	}
	assert.Error(t, f.db.Create(&duplicateNumber).Error)

	// Finalized history does not block a fresh ticket.
	require.NoError(t, f.db.Model(&first).Update("status", entities.TicketFinalizado).Error)
	fresh := entities.Ticket{
		ConversationID: f.conversation.ID,
		SectorID:       f.sector.ID,
		Number:         2,
		Status:         entities.TicketAberto,
	}
	assert.NoError(t, f.db.Create(&fresh).Error)
}

func TestOpenLosingInsertRaceReportsActiveTicket(t *testing.T) {
	f := setup(t)
	svc := f.service.(*service)

	// Calling open directly bypasses Create's pre-check, the same way a
	// concurrent open that passed the check before the winner committed
	// would. The unique index turns the insert into ErrActiveTicketExists.
	_, err := svc.open(context.Background(), f.conversation, f.sector, nil)
	require.NoError(t, err)

	_, err = svc.open(context.Background(), f.conversation, f.sector, nil)
	assert.ErrorIs(t, err, ErrActiveTicketExists)

	var count int64
	f.db.Model(&entities.Ticket{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
