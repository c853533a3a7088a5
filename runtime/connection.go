package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/domain/event"
	"salon-sync/errors"
	"salon-sync/runtime/workers"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultReconnectDelay    = 5 * time.Second
	DefaultHeartbeatInterval = 4 * time.Second
)

type ConnectionConfig struct {
	ReconnectDelay     time.Duration
	HeartbeatInterval  time.Duration
	HeartbeatTolerance time.Duration
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HeartbeatTolerance <= 0 {
		c.HeartbeatTolerance = 2 * c.HeartbeatInterval
	}
	return c
}

// ConnectionManager owns the broker connection of the active identity.
//
// Connect returns immediately; the session itself runs in a supervised worker
// that dials, re-applies the registry subscriptions and then reads frames until
// the connection fails. Failures are logged and retried after ReconnectDelay
// for as long as the identity stays set. Callers observe connectivity through
// IsConnected or the connection-change event only.
type ConnectionManager struct {
	log      *slog.Logger
	dialer   contract.Dialer
	registry *Registry
	emitter  contract.Emitter
	cfg      ConnectionConfig

	mu       sync.Mutex
	identity domain.Identity
	cancel   context.CancelFunc
	done     chan struct{}

	connMu    sync.RWMutex
	conn      contract.BrokerConn
	connected atomic.Bool
}

func NewConnectionManager(
	log *slog.Logger,
	dialer contract.Dialer,
	registry *Registry,
	emitter contract.Emitter,
	cfg ConnectionConfig,
) *ConnectionManager {
	return &ConnectionManager{
		log:      log,
		dialer:   dialer,
		registry: registry,
		emitter:  emitter,
		cfg:      cfg.withDefaults(),
	}
}

// Connect starts a session for identity. It is a no-op when that identity is
// already set; a different identity tears the current session down first.
// The session lives until Disconnect is called or ctx is canceled.
func (m *ConnectionManager) Connect(ctx context.Context, identity domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		if m.identity.Same(identity) {
			return
		}
		m.stopLocked()
	}

	m.identity = identity
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	sup := workers.NewSupervisor(m.log, m.cfg.ReconnectDelay)
	sup.Add(&connectionWorker{manager: m, identity: identity})
	go func() {
		defer close(done)
		sup.Run(runCtx)
	}()
	m.cancel, m.done = cancel, done
	m.log.Info("Connecting", "identity", identity.String())
}

// Disconnect stops the session and waits for it to be torn down.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.identity = domain.Identity{}
}

// ReconnectDelay is the pause between two connection attempts.
func (m *ConnectionManager) ReconnectDelay() time.Duration {
	return m.cfg.ReconnectDelay
}

func (m *ConnectionManager) IsConnected() bool {
	return m.connected.Load()
}

// Identity returns the identity currently set, connected or not.
func (m *ConnectionManager) Identity() (domain.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, m.cancel != nil
}

// Send publishes body to destination on the current connection.
func (m *ConnectionManager) Send(ctx context.Context, destination string, body []byte) error {
	m.connMu.RLock()
	conn := m.conn
	m.connMu.RUnlock()
	if conn == nil || !m.connected.Load() {
		return errors.ErrNotConnected
	}
	return conn.Send(ctx, destination, body)
}

func (m *ConnectionManager) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel, m.done = nil, nil
	m.log.Info("Disconnected", "identity", m.identity.String())
}

func (m *ConnectionManager) setConn(conn contract.BrokerConn) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.conn = conn
}

// setConnected publishes connection-change only on transitions.
func (m *ConnectionManager) setConnected(ctx context.Context, identity domain.Identity, connected bool) {
	if m.connected.Swap(connected) == connected {
		return
	}
	m.emitter.Emit(ctx, event.ConnectionChanged{Connected: connected, Identity: identity})
}

// connectionWorker is one connection generation: dial, subscribe, read.
// It returns an error whenever the session is lost so that the supervisor
// reconnects it.
type connectionWorker struct {
	manager  *ConnectionManager
	identity domain.Identity
}

func (w *connectionWorker) Run(ctx context.Context) error {
	m := w.manager
	conn, err := m.dialer.Dial(ctx, w.identity)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			m.log.Debug("Closing broker connection failed", "error", err)
		}
	}()

	// Subscriptions first: the session is only ready once they are applied.
	if err := m.registry.Attach(ctx, conn); err != nil {
		m.registry.Detach()
		return err
	}
	defer m.registry.Detach()

	var lastSeen atomic.Int64
	lastSeen.Store(time.Now().UnixNano())

	m.setConn(conn)
	m.setConnected(ctx, w.identity, true)
	m.log.Info("Connected to broker", "identity", w.identity.String())
	defer func() {
		m.setConn(nil)
		m.setConnected(context.WithoutCancel(ctx), w.identity, false)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			frame, err := conn.Receive(gctx)
			if stderrors.Is(err, errors.ErrUnexpectedFrame) {
				// One websocket message is one frame, the next one is readable.
				lastSeen.Store(time.Now().UnixNano())
				m.log.Warn("Dropping garbled frame", "error", err)
				continue
			}
			if err != nil {
				return err
			}
			lastSeen.Store(time.Now().UnixNano())
			if frame.Heartbeat {
				continue
			}
			m.registry.Dispatch(gctx, frame)
		}
	})
	heartbeat := workers.NewHeartbeatWorker(m.log, conn,
		m.cfg.HeartbeatInterval, m.cfg.HeartbeatTolerance,
		func() time.Time { return time.Unix(0, lastSeen.Load()) })
	g.Go(func() error { return heartbeat.Run(gctx) })

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("broker session lost: %w", err)
}
