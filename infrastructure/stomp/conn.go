// Package stomp speaks STOMP 1.2 over a websocket, one frame per websocket
// message, the way SockJS/STOMP brokers expect it on their raw websocket path.
package stomp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

const (
	cmdConnect     = "CONNECT"
	cmdConnected   = "CONNECTED"
	cmdSend        = "SEND"
	cmdSubscribe   = "SUBSCRIBE"
	cmdUnsubscribe = "UNSUBSCRIBE"
	cmdDisconnect  = "DISCONNECT"
	cmdMessage     = "MESSAGE"
	cmdReceipt     = "RECEIPT"
	cmdError       = "ERROR"

	hdrDestination  = "destination"
	hdrID           = "id"
	hdrSubscription = "subscription"
	hdrMessageID    = "message-id"
	hdrContentType  = "content-type"
	hdrContentLen   = "content-length"
	hdrMessage      = "message"

	contentTypeJSON = "application/json"
	closeTimeout    = time.Second
)

var heartbeatPayload = []byte{'\n'}

// Conn is an established STOMP session over a websocket.
// Writes are serialized; Receive must be called from a single goroutine.
type Conn struct {
	log       *slog.Logger
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

var _ contract.BrokerConn = (*Conn)(nil)

func newConn(log *slog.Logger, ws *websocket.Conn) *Conn {
	return &Conn{log: log, ws: ws}
}

func (c *Conn) Subscribe(ctx context.Context, id, destination string) error {
	return c.write(ctx, frame.New(cmdSubscribe, hdrID, id, hdrDestination, destination, "ack", "auto"))
}

func (c *Conn) Unsubscribe(ctx context.Context, id string) error {
	return c.write(ctx, frame.New(cmdUnsubscribe, hdrID, id))
}

func (c *Conn) Send(ctx context.Context, destination string, body []byte) error {
	f := frame.New(cmdSend, hdrDestination, destination, hdrContentType, contentTypeJSON)
	f.Body = body
	return c.write(ctx, f)
}

func (c *Conn) Heartbeat(ctx context.Context) error {
	return c.writeRaw(ctx, heartbeatPayload)
}

// Receive blocks until the next frame. Heart-beats and receipts come back as
// heartbeat frames, an ERROR frame ends the session with an error.
func (c *Conn) Receive(ctx context.Context) (contract.Frame, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.Close() })
	defer stop()

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return contract.Frame{}, ctx.Err()
		}
		return contract.Frame{}, err
	}
	return decode(data)
}

// Close sends DISCONNECT when possible and closes the websocket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := c.write(ctx, frame.New(cmdDisconnect)); err != nil {
			c.log.Debug("DISCONNECT not sent", "error", err)
		}
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) write(ctx context.Context, f *frame.Frame) error {
	data, err := encode(f)
	if err != nil {
		return err
	}
	return c.writeRaw(ctx, data)
}

func (c *Conn) writeRaw(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func encode(f *frame.Frame) ([]byte, error) {
	if len(f.Body) > 0 {
		f.Header.Set(hdrContentLen, strconv.Itoa(len(f.Body)))
	}
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Command, err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (contract.Frame, error) {
	data = bytes.TrimLeft(data, "\r\n")
	if len(data) == 0 {
		return contract.Frame{Heartbeat: true}, nil
	}
	f, err := frame.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return contract.Frame{}, fmt.Errorf("%w: %v", errors.ErrUnexpectedFrame, err)
	}
	if f == nil {
		return contract.Frame{Heartbeat: true}, nil
	}

	switch f.Command {
	case cmdMessage:
		return contract.Frame{
			Command:        f.Command,
			Destination:    f.Header.Get(hdrDestination),
			SubscriptionID: f.Header.Get(hdrSubscription),
			MessageID:      f.Header.Get(hdrMessageID),
			Body:           f.Body,
		}, nil
	case cmdReceipt, cmdConnected:
		return contract.Frame{Command: f.Command, Heartbeat: true}, nil
	case cmdError:
		return contract.Frame{}, fmt.Errorf("%w: %s %s", errors.ErrBrokerError,
			f.Header.Get(hdrMessage), string(f.Body))
	default:
		return contract.Frame{}, fmt.Errorf("%w: %s", errors.ErrUnexpectedFrame, f.Command)
	}
}
