package runtime

import (
	"context"
	"errors"
	"salon-sync/contract"
	"salon-sync/domain"
	"sync"
)

// fakeConn is an in-memory broker session fed through its frames channel.
type fakeConn struct {
	mu           sync.Mutex
	subscribed   []string
	ids          map[string]string
	unsubscribed []string
	sent         []string
	frames       chan contract.Frame
	errs         chan error
	closed       chan struct{}
	closeOnce    sync.Once
	failOn       string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		ids:    make(map[string]string),
		frames: make(chan contract.Frame, 16),
		errs:   make(chan error, 4),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Subscribe(_ context.Context, id, destination string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if destination == c.failOn {
		return errors.New("subscribe refused")
	}
	c.subscribed = append(c.subscribed, destination)
	c.ids[id] = destination
	return nil
}

func (c *fakeConn) Unsubscribe(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, c.ids[id])
	delete(c.ids, id)
	return nil
}

func (c *fakeConn) Send(_ context.Context, destination string, _ []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, destination)
	return nil
}

func (c *fakeConn) Heartbeat(context.Context) error { return nil }

func (c *fakeConn) Receive(ctx context.Context) (contract.Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.errs:
		return contract.Frame{}, err
	case <-c.closed:
		return contract.Frame{}, errors.New("connection closed")
	case <-ctx.Done():
		return contract.Frame{}, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) idOf(destination string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, d := range c.ids {
		if d == destination {
			return id
		}
	}
	return ""
}

func (c *fakeConn) sentTo() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribed...)
}

// fakeDialer refuses the first failures dials, then hands out fresh fakeConns.
type fakeDialer struct {
	mu         sync.Mutex
	failures   int
	attempts   int
	identities []domain.Identity
	conns      []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, identity domain.Identity) (contract.BrokerConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	d.identities = append(d.identities, identity)
	if d.attempts <= d.failures {
		return nil, errors.New("broker unreachable")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) connCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}
