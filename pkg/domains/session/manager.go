package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zapdesk/pkg/config"
	"github.com/zapdesk/pkg/domains/ingest"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/hub"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

var timeAfter = time.After

// Session is one live socket for an instance. Exactly one may exist per
// instance at a time; the manager's registry is the guard.
type Session struct {
	InstanceID uint
	Client     *whatsmeow.Client
	Container  *sqlstore.Container
	Ctx        context.Context
	Cancel     context.CancelFunc

	mu           sync.Mutex
	retries      int
	reconnecting bool
}

// Manager owns the registry of embedded provider sessions and drives
// the per-instance connection state machine:
// disconnected -> connecting -> {qr <-> connecting} -> open.
type Manager struct {
	mutex    sync.RWMutex
	sessions map[uint]*Session

	db     *gorm.DB
	cfg    config.WhatsApp
	ingest ingest.Service
	hub    *hub.Hub
}

func NewManager(db *gorm.DB, cfg config.WhatsApp, ing ingest.Service, h *hub.Hub) *Manager {
	return &Manager{
		sessions: make(map[uint]*Session),
		db:       db,
		cfg:      cfg,
		ingest:   ing,
		hub:      h,
	}
}

// Start brings up the socket for an instance. Idempotent: if a session
// is already open or holds a live QR, the current state is returned
// instead of a second socket being created.
func (m *Manager) Start(ctx context.Context, instanceID uint) (*entities.Instance, error) {
	var instance entities.Instance
	if err := m.db.WithContext(ctx).First(&instance, instanceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("instance not found")
		}
		return nil, err
	}
	if instance.ProviderKind != entities.ProviderEmbedded {
		return nil, fmt.Errorf("instance %d is not an embedded-provider instance", instanceID)
	}

	m.mutex.Lock()
	if existing, ok := m.sessions[instanceID]; ok {
		m.mutex.Unlock()
		if existing.Client.IsConnected() || instance.Status == entities.InstanceQR {
			log.Printf("Instance %d already has a live session (status %s)", instanceID, instance.Status)
			return &instance, nil
		}
		// Dead leftover session: tear it down and start fresh. The
		// targeted teardown leaves a replacement from a concurrent
		// Start untouched.
		m.teardownLeftover(instanceID, existing)
		m.mutex.Lock()
		if _, ok := m.sessions[instanceID]; ok {
			// A concurrent Start rebuilt the session while the lock
			// was released; that socket is the live one.
			m.mutex.Unlock()
			m.db.WithContext(ctx).First(&instance, instanceID)
			return &instance, nil
		}
	}

	session, err := m.initSession(&instance)
	if err != nil {
		m.mutex.Unlock()
		return nil, err
	}
	m.sessions[instanceID] = session
	m.mutex.Unlock()

	m.setStatus(instanceID, entities.InstanceConnecting, "")

	if session.Client.Store.ID == nil {
		// Never paired: run the QR flow.
		qrChan, err := session.Client.GetQRChannel(session.Ctx)
		if err != nil {
			m.teardown(instanceID, false)
			return nil, fmt.Errorf("failed to get QR channel: %v", err)
		}
		if err := session.Client.Connect(); err != nil {
			m.teardown(instanceID, false)
			return nil, fmt.Errorf("failed to connect: %v", err)
		}
		go m.consumeQR(session, qrChan)
	} else {
		if err := session.Client.Connect(); err != nil {
			m.teardown(instanceID, false)
			return nil, fmt.Errorf("failed to connect: %v", err)
		}
	}

	m.db.WithContext(ctx).First(&instance, instanceID)
	return &instance, nil
}

// initSession opens the per-instance credential store and builds the
// whatsmeow client. Caller holds the registry lock.
func (m *Manager) initSession(instance *entities.Instance) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())

	if err := os.MkdirAll(m.cfg.StoreDir, 0o755); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create store dir: %v", err)
	}

	clientLog := waLog.Stdout(fmt.Sprintf("Instance_%d", instance.ID), "INFO", true)
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", m.storePath(instance.ID))
	container, err := sqlstore.New(ctx, "sqlite", dsn, clientLog)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open credential store: %v", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		cancel()
		return nil, fmt.Errorf("failed to get device: %v", err)
	}

	session := &Session{
		InstanceID: instance.ID,
		Container:  container,
		Ctx:        ctx,
		Cancel:     cancel,
	}
	session.Client = whatsmeow.NewClient(deviceStore, clientLog)
	session.Client.AddEventHandler(func(evt interface{}) {
		m.handleEvent(session, evt)
	})

	return session, nil
}

func (m *Manager) storePath(instanceID uint) string {
	return filepath.Join(m.cfg.StoreDir, fmt.Sprintf("instance-%d.db", instanceID))
}

// consumeQR persists each QR code transactionally with the instance
// status and fans it out, until pairing succeeds or times out.
func (m *Manager) consumeQR(session *Session, qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			log.Printf("QR code issued for instance %d", session.InstanceID)
			m.setStatus(session.InstanceID, entities.InstanceQR, evt.Code)
			m.hub.Publish(hub.NewEvent(hub.EventInstanceQR, map[string]any{
				"instance_id": session.InstanceID,
				"qr_code":     evt.Code,
			}, hub.InstanceRoom(session.InstanceID)))
		case "success":
			log.Printf("Instance %d paired via QR code", session.InstanceID)
			return
		case "timeout":
			log.Printf("QR code expired for instance %d", session.InstanceID)
			m.teardown(session.InstanceID, false)
			return
		case "error":
			log.Printf("QR flow error for instance %d: %v", session.InstanceID, evt.Error)
			m.teardown(session.InstanceID, false)
			return
		}
	}
}

func (m *Manager) handleEvent(session *Session, evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		var instance entities.Instance
		if err := m.db.First(&instance, session.InstanceID).Error; err != nil {
			log.Printf("[error] session: instance %d lookup during ingest: %v", session.InstanceID, err)
			return
		}
		m.ingest.HandleEmbeddedMessage(session.Ctx, &instance, v)

	case *events.Receipt:
		var instance entities.Instance
		if err := m.db.First(&instance, session.InstanceID).Error; err != nil {
			return
		}
		m.ingest.HandleEmbeddedReceipt(session.Ctx, &instance, v)

	case *events.Connected:
		session.mu.Lock()
		session.retries = 0
		session.reconnecting = false
		session.mu.Unlock()
		m.setStatus(session.InstanceID, entities.InstanceOpen, "")
		log.Printf("Instance %d connected", session.InstanceID)

	case *events.LoggedOut:
		// Remote logout is unrecoverable: purge credentials so the
		// instance requires re-provisioning.
		log.Printf("Instance %d logged out remotely (reason %v), purging credentials", session.InstanceID, v.Reason)
		m.teardown(session.InstanceID, true)

	case *events.StreamReplaced:
		log.Printf("Instance %d stream replaced by another connection", session.InstanceID)
		m.teardown(session.InstanceID, false)

	case *events.Disconnected:
		log.Printf("Instance %d disconnected, scheduling reconnect", session.InstanceID)
		m.scheduleReconnect(session)
	}
}

// scheduleReconnect retries the socket with a fixed delay and a fixed
// attempt cap before giving up and marking the instance disconnected.
func (m *Manager) scheduleReconnect(session *Session) {
	session.mu.Lock()
	if session.reconnecting {
		session.mu.Unlock()
		return
	}
	session.reconnecting = true
	session.mu.Unlock()

	m.setStatus(session.InstanceID, entities.InstanceConnecting, "")

	go func() {
		defer func() {
			session.mu.Lock()
			session.reconnecting = false
			session.mu.Unlock()
		}()

		for {
			session.mu.Lock()
			if session.retries >= m.cfg.ReconnectAttempts {
				session.mu.Unlock()
				log.Printf("Instance %d exhausted %d reconnect attempts", session.InstanceID, m.cfg.ReconnectAttempts)
				m.setStatus(session.InstanceID, entities.InstanceDisconnected, "")
				return
			}
			session.retries++
			attempt := session.retries
			session.mu.Unlock()

			select {
			case <-session.Ctx.Done():
				return
			case <-timeAfter(m.cfg.ReconnectDelay()):
			}

			if session.Client.IsConnected() {
				return
			}
			log.Printf("Instance %d reconnect attempt %d/%d", session.InstanceID, attempt, m.cfg.ReconnectAttempts)
			if err := session.Client.Connect(); err != nil {
				log.Printf("[warn] session: instance %d reconnect failed: %v", session.InstanceID, err)
				continue
			}
			return
		}
	}()
}

// Logout explicitly ends the session and purges credential material.
func (m *Manager) Logout(ctx context.Context, instanceID uint) error {
	m.mutex.RLock()
	session, ok := m.sessions[instanceID]
	m.mutex.RUnlock()

	if ok && session.Client.Store.ID != nil {
		if err := session.Client.Logout(ctx); err != nil {
			log.Printf("[warn] session: instance %d logout call failed: %v", instanceID, err)
		}
	}
	m.teardown(instanceID, true)
	return nil
}

// Stop disconnects without purging credentials; the session can resume
// on the next start or process boot.
func (m *Manager) Stop(instanceID uint) {
	m.teardown(instanceID, false)
}

// teardownLeftover closes a dead session, removing it from the registry
// only while it is still the registered one. A concurrent restart that
// already replaced it keeps its fresh socket.
func (m *Manager) teardownLeftover(instanceID uint, leftover *Session) {
	m.mutex.Lock()
	if m.sessions[instanceID] == leftover {
		delete(m.sessions, instanceID)
	}
	m.mutex.Unlock()

	leftover.Cancel()
	if leftover.Client != nil {
		leftover.Client.Disconnect()
	}
	if leftover.Container != nil {
		leftover.Container.Close()
	}
}

// teardown removes the session from the registry, closes its resources
// and optionally purges the persisted credential store.
func (m *Manager) teardown(instanceID uint, purgeCredentials bool) {
	m.mutex.Lock()
	session, ok := m.sessions[instanceID]
	if ok {
		delete(m.sessions, instanceID)
	}
	m.mutex.Unlock()

	if ok {
		session.Cancel()
		if session.Client != nil {
			session.Client.Disconnect()
		}
		if session.Container != nil {
			session.Container.Close()
		}
	}

	if purgeCredentials {
		if err := os.Remove(m.storePath(instanceID)); err != nil && !os.IsNotExist(err) {
			log.Printf("[warn] session: failed to purge credentials for instance %d: %v", instanceID, err)
		}
	}

	m.setStatus(instanceID, entities.InstanceDisconnected, "")
}

// ResumeAll restarts every embedded instance with persisted
// credentials. Best-effort on boot: failures are logged, never fatal.
func (m *Manager) ResumeAll(ctx context.Context) {
	var instances []entities.Instance
	if err := m.db.WithContext(ctx).
		Where("provider_kind = ?", entities.ProviderEmbedded).
		Find(&instances).Error; err != nil {
		log.Printf("[error] session: resume scan failed: %v", err)
		return
	}

	resumed := 0
	for i := range instances {
		instance := &instances[i]
		if _, err := os.Stat(m.storePath(instance.ID)); err != nil {
			continue
		}
		if _, err := m.Start(ctx, instance.ID); err != nil {
			log.Printf("[warn] session: failed to resume instance %d: %v", instance.ID, err)
			continue
		}
		resumed++
	}
	if resumed > 0 {
		log.Printf("[info] session: resumed %d instance(s) from persisted credentials", resumed)
	}
}

// Shutdown disconnects every live session without purging credentials.
func (m *Manager) Shutdown() {
	m.mutex.RLock()
	ids := make([]uint, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mutex.RUnlock()

	for _, id := range ids {
		m.Stop(id)
	}
}

// SessionCount reports the number of live sessions in the registry.
func (m *Manager) SessionCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) session(instanceID uint) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, ok := m.sessions[instanceID]
	return session, ok
}

// setStatus persists the connection state and QR artifact together and
// fans the change out.
func (m *Manager) setStatus(instanceID uint, status entities.InstanceStatus, qrCode string) {
	err := m.db.Model(&entities.Instance{}).Where("id = ?", instanceID).
		Updates(map[string]any{
			"status":  status,
			"qr_code": qrCode,
		}).Error
	if err != nil {
		log.Printf("[error] session: failed to persist status %s for instance %d: %v", status, instanceID, err)
		return
	}

	m.hub.Publish(hub.NewEvent(hub.EventInstanceStatus, map[string]any{
		"instance_id": instanceID,
		"status":      status,
	}, hub.InstanceRoom(instanceID)))
}
