/*
Package chat contains the core logic of the chat room.

This file defines the Manager, which owns the shared Registry and Hub, tracks every live
Session, and tears them all down on shutdown.
*/
package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"chatroom/internal/pkg/clock"
	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/logx"
)

// ErrChatUnavailable is returned by Serve once shutdown has begun.
var ErrChatUnavailable = errs.NewError(errs.ErrChatUnavailable)

// ManagerConfig holds the tunables of the chat core.
type ManagerConfig struct {
	// HubBufferSize is the per-subscriber event buffer.
	HubBufferSize int

	// Session configures every session created by the manager.
	Session SessionConfig

	// Clock stamps events. Nil selects the system clock.
	Clock clock.Clock
}

// Stats is a point-in-time view of the room.
type Stats struct {
	// Online is the number of joined users.
	Online int `json:"online"`

	// Sessions is the number of open connections, joined or not.
	Sessions int `json:"sessions"`

	// Subscribers is the number of hub subscriptions, sessions plus taps such as the relay.
	Subscribers int `json:"subscribers"`
}

// Manager coordinates the sessions of the single chat room.
type Manager struct {
	registry *Registry
	hub      *Hub
	clock    clock.Clock
	config   SessionConfig

	// ctx is the parent of every session context; cancel ends them all.
	ctx    context.Context
	cancel context.CancelFunc

	// mu protects sessions and closed.
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	// wg tracks running sessions so Shutdown can wait for their teardown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewManager constructs a Manager with an empty registry and a fresh hub.
func NewManager(cfg ManagerConfig) *Manager {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		registry: NewRegistry(clk),
		hub:      NewHub(cfg.HubBufferSize),
		clock:    clk,
		config:   cfg.Session,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
		logger:   logx.Component("Manager"),
	}
}

// Registry returns the shared user registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Hub returns the shared broadcast hub.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Accepting reports whether new connections are still admitted.
func (m *Manager) Accepting() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return !m.closed
}

// Stats returns the current online and connection counts.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	sessions := len(m.sessions)
	m.mu.RUnlock()

	return Stats{
		Online:      m.registry.Len(),
		Sessions:    sessions,
		Subscribers: m.hub.Subscribers(),
	}
}

// Serve runs a session on conn and blocks until it ends. The connection is
// always closed on return. After Shutdown it returns ErrChatUnavailable.
func (m *Manager) Serve(conn Conn, remoteAddr string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return ErrChatUnavailable
	}

	sess := NewSession(conn, remoteAddr, m.registry, m.hub, m.clock, m.config)
	m.sessions[sess.ID] = sess
	m.wg.Add(1)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.sessions, sess.ID)
		m.mu.Unlock()
		m.wg.Done()
	}()

	m.logger.Debug().Str("conn_id", sess.ID).Msg("Session registered.")

	err := sess.Run(m.ctx)

	m.logger.Debug().Str("conn_id", sess.ID).Err(err).Msg("Session finished.")
	return nil
}

// Shutdown stops admitting connections, ends every session and waits for their
// teardown until ctx expires, then closes the hub.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	active := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info().Int("sessions", active).Msg("Shutting down chat sessions...")

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		m.logger.Warn().Err(err).Msg("Timed out waiting for sessions to stop.")
	}

	m.hub.Close()

	m.logger.Info().Msg("Manager shutdown complete.")
	return err
}
