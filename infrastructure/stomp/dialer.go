package stomp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/errors"
	"strings"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

// Dialer opens STOMP sessions on the backend broker endpoint.
type Dialer struct {
	log               *slog.Logger
	endpoint          string
	heartbeatInterval time.Duration
	handshakeTimeout  time.Duration
	ws                *websocket.Dialer
}

var _ contract.Dialer = (*Dialer)(nil)

// NewDialer targets baseURL (http, https, ws or wss) plus the broker
// endpoint path. SockJS endpoints accept raw websockets under "/websocket".
func NewDialer(log *slog.Logger, baseURL string, heartbeatInterval, handshakeTimeout time.Duration) (*Dialer, error) {
	endpoint, err := brokerURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Dialer{
		log:               log,
		endpoint:          endpoint,
		heartbeatInterval: heartbeatInterval,
		handshakeTimeout:  handshakeTimeout,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			Subprotocols:     []string{"v12.stomp", "v11.stomp"},
		},
	}, nil
}

func (d *Dialer) Dial(ctx context.Context, identity domain.Identity) (contract.BrokerConn, error) {
	header := http.Header{}
	if identity.Token != "" {
		header.Set("Authorization", "Bearer "+identity.Token)
	}
	ws, _, err := d.ws.DialContext(ctx, d.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.endpoint, err)
	}
	conn := newConn(d.log, ws)

	if err := d.handshake(ctx, conn, identity); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return conn, nil
}

func (d *Dialer) handshake(ctx context.Context, conn *Conn, identity domain.Identity) error {
	ms := d.heartbeatInterval.Milliseconds()
	connect := frame.New(cmdConnect,
		"accept-version", "1.2,1.1",
		"host", hostOf(d.endpoint),
		"heart-beat", fmt.Sprintf("%d,%d", ms, ms),
	)
	if identity.Token != "" {
		connect.Header.Add("Authorization", "Bearer "+identity.Token)
	}
	if err := conn.write(ctx, connect); err != nil {
		return fmt.Errorf("send CONNECT: %w", err)
	}

	if err := conn.ws.SetReadDeadline(time.Now().Add(d.handshakeTimeout)); err != nil {
		return err
	}
	_, data, err := conn.ws.ReadMessage()
	if err != nil {
		return fmt.Errorf("read CONNECTED: %w", err)
	}
	if err := conn.ws.SetReadDeadline(time.Time{}); err != nil {
		return err
	}

	f, err := decode(data)
	if err != nil {
		return err
	}
	if f.Command != cmdConnected {
		return fmt.Errorf("%w: expected %s", errors.ErrUnexpectedFrame, cmdConnected)
	}
	return nil
}

func brokerURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse broker url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported broker url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + domain.Endpoint + "/websocket"
	return u.String(), nil
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
