// Package stream implements the Branch real-time event channel.
//
// The server pushes queue events ({type, data} JSON envelopes) over a
// WebSocket at /ws; the client sends small advisory frames (ping, viewing,
// typing) on the same connection.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// Inbound event types pushed by the server.
const (
	EventNewMessage         = "new_message"
	EventConversationUpdate = "conversation_update"
	EventNewConversation    = "new_conversation"
)

// Outbound advisory frame types.
const (
	SendPing        = "ping"
	SendViewing     = "viewing"
	SendStopViewing = "stop_viewing"
	SendTyping      = "typing"
)

// DefaultPingInterval is how often keep-alive pings are sent while connected.
const DefaultPingInterval = 30 * time.Second

// DefaultReadTimeout is how long we wait without receiving any frame before
// treating the connection as dead.
var DefaultReadTimeout = 90 * time.Second

// ErrReadTimeout is returned when no frames are received within the read timeout.
var ErrReadTimeout = errors.New("read timeout: no frames received")

// Frame is a single {type, data} envelope from the server.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is a frame received from the server, or a terminal read error.
type Event struct {
	Frame Frame
	Err   error // non-nil on read error or disconnect
}

// Conn is a live event-channel connection for one agent.
type Conn struct {
	conn    *websocket.Conn
	url     string
	agentID int
}

// maxReadSize caps the maximum WebSocket frame size to 1 MB.
// Queue events are small JSON; anything larger is likely malformed.
const maxReadSize = 1 << 20 // 1 MB

// BuildURL converts an http(s) base URL into the ws(s) endpoint for an agent.
func BuildURL(baseURL string, agentID int) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("agent_id", strconv.Itoa(agentID))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the event channel for the given agent.
func Connect(ctx context.Context, baseURL string, agentID int) (*Conn, error) {
	wsURL, err := BuildURL(baseURL, agentID)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(maxReadSize)

	return &Conn{conn: conn, url: wsURL, agentID: agentID}, nil
}

// Close gracefully closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// Send writes an outbound advisory frame. data may be nil for bare frames
// like ping.
func (c *Conn) Send(ctx context.Context, frameType string, data any) error {
	f := struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{Type: frameType, Data: data}

	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("write %s: %w", frameType, err)
	}
	return nil
}

// SendViewing reports that the agent is viewing a conversation.
func (c *Conn) SendViewing(ctx context.Context, conversationID int) error {
	return c.Send(ctx, SendViewing, map[string]int{"conversation_id": conversationID})
}

// SendStopViewing reports that the agent stopped viewing a conversation.
func (c *Conn) SendStopViewing(ctx context.Context, conversationID int) error {
	return c.Send(ctx, SendStopViewing, map[string]int{"conversation_id": conversationID})
}

// SendTyping reports a typing indicator for a conversation.
func (c *Conn) SendTyping(ctx context.Context, conversationID int) error {
	return c.Send(ctx, SendTyping, map[string]int{"conversation_id": conversationID})
}

// StartPing sends keep-alive pings at the given interval until ctx is
// cancelled. If onError is non-nil, it is called once on the first write
// failure before the goroutine exits (useful for logging).
func (c *Conn) StartPing(ctx context.Context, interval time.Duration, onError func(error)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Send(ctx, SendPing, nil); err != nil {
					if onError != nil && ctx.Err() == nil {
						onError(fmt.Errorf("ping write: %w", err))
					}
					return
				}
			}
		}
	}()
}

// Listen starts the read loop and returns a channel of events.
// Malformed frames are skipped silently. The channel closes when the
// connection drops or ctx is cancelled.
//
// A rolling read timeout detects half-dead connections: if no frame
// arrives within DefaultReadTimeout, the connection is treated as dead
// and an ErrReadTimeout is emitted.
func (c *Conn) Listen(ctx context.Context) <-chan Event {
	return c.ListenWithTimeout(ctx, DefaultReadTimeout)
}

// ListenWithTimeout is like Listen but with a configurable read timeout.
// Use 0 to disable the timeout (not recommended in production).
func (c *Conn) ListenWithTimeout(ctx context.Context, readTimeout time.Duration) <-chan Event {
	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		for {
			// Create a per-read context with a deadline so that half-dead
			// connections (no FIN/RST, just silence) get detected.
			readCtx := ctx
			var readCancel context.CancelFunc
			if readTimeout > 0 {
				readCtx, readCancel = context.WithTimeout(ctx, readTimeout)
			}

			_, data, err := c.conn.Read(readCtx)

			if readCancel != nil {
				readCancel()
			}

			if err != nil {
				// Distinguish read timeout from parent context cancellation.
				if readTimeout > 0 && ctx.Err() == nil && readCtx.Err() != nil {
					err = ErrReadTimeout
				}
				select {
				case ch <- Event{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue // skip malformed frames
			}
			if f.Type == "" {
				continue
			}

			select {
			case ch <- Event{Frame: f}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
