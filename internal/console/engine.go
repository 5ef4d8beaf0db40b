// Package console runs the agent messaging session: it keeps the event
// channel alive, reconciles pushed events into the conversation queue, and
// backs the open-conversation view.
//
// One engine goroutine owns the connection lifecycle. Every (re)connect is
// followed by an authoritative REST snapshot, since events may have been
// missed while the channel was down. Decoded frames flow through the queue
// reconciler and detail view first, then fan out to hub subscribers (the UI).
package console

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/assign"
	"github.com/branchlabs/branch-cli/internal/detail"
	"github.com/branchlabs/branch-cli/internal/livecache"
	"github.com/branchlabs/branch-cli/internal/queue"
	"github.com/branchlabs/branch-cli/internal/stream"
)

const (
	dialTimeout    = 10 * time.Second
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
	// stableAfter is how long a session must survive before the reconnect
	// backoff resets to its initial value.
	stableAfter = 60 * time.Second

	persistInterval = 30 * time.Second
)

// ErrNotConnected is returned by advisory sends while the channel is down.
var ErrNotConnected = errors.New("event channel not connected")

// Options configures an Engine. Client and AgentID are required.
type Options struct {
	Client  *api.Client
	AgentID int

	// Live is the optional Redis warm-start store. A nil or disabled store
	// turns warm starts and snapshot persistence off.
	Live *livecache.Store

	// ListParams filter the snapshot listing (status/priority).
	ListParams api.ListConversationsParams

	// ReadTimeout and PingInterval default to the stream package values.
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// Engine owns the live session state for one agent.
type Engine struct {
	client       *api.Client
	agentID      int
	live         *livecache.Store
	listParams   api.ListConversationsParams
	readTimeout  time.Duration
	pingInterval time.Duration

	queue  *queue.Reconciler
	detail *detail.ViewModel
	assign *assign.Controller
	hub    *stream.Hub

	mu         sync.Mutex
	conn       *stream.Conn
	stats      *api.ConversationStats
	snapshotAt time.Time
	warm       bool // queue holds warm-cache data, no snapshot yet
}

// New assembles an engine and its session state. It does not connect;
// call Run.
func New(opts Options) *Engine {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = stream.DefaultReadTimeout
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = stream.DefaultPingInterval
	}

	q := queue.New()
	e := &Engine{
		client:       opts.Client,
		agentID:      opts.AgentID,
		live:         opts.Live,
		listParams:   opts.ListParams,
		readTimeout:  opts.ReadTimeout,
		pingInterval: opts.PingInterval,
		queue:        q,
		hub:          stream.NewHub(),
	}
	e.detail = detail.New(opts.Client.Conversations(), opts.Client.Messages(), nil, q, opts.AgentID)
	e.assign = assign.New(opts.Client.Conversations(), q, opts.AgentID)
	return e
}

// Queue returns the live conversation queue.
func (e *Engine) Queue() *queue.Reconciler { return e.queue }

// Detail returns the open-conversation view model.
func (e *Engine) Detail() *detail.ViewModel { return e.detail }

// Assignments returns the claim/release controller.
func (e *Engine) Assignments() *assign.Controller { return e.assign }

// Hub returns the event fan-out for UI subscribers.
func (e *Engine) Hub() *stream.Hub { return e.hub }

// Stats returns the queue statistics from the last snapshot, or nil.
func (e *Engine) Stats() *api.ConversationStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stats == nil {
		return nil
	}
	s := *e.stats
	return &s
}

// WarmStart seeds the queue from the Redis snapshot so the console can render
// before the first REST snapshot lands. It reports whether warm data was
// loaded; a miss or disabled store is not an error.
func (e *Engine) WarmStart(ctx context.Context) (time.Time, bool) {
	if e.live == nil || !e.live.Enabled() {
		return time.Time{}, false
	}
	items, cachedAt, err := e.live.LoadQueue(ctx, e.client.BaseURL, e.agentID)
	if err != nil {
		if !errors.Is(err, livecache.ErrMiss) {
			slog.Debug("warm start unavailable", "error", err)
		}
		return time.Time{}, false
	}

	e.queue.LoadSnapshot(items)
	e.mu.Lock()
	e.warm = true
	e.mu.Unlock()
	return cachedAt, true
}

// RefreshSnapshot replaces the queue with an authoritative listing and
// refreshes queue statistics. The two fetches run in parallel.
func (e *Engine) RefreshSnapshot(ctx context.Context) error {
	var (
		items []api.ConversationListItem
		stats *api.ConversationStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = e.client.Conversations().List(gctx, e.listParams)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = e.client.Conversations().Stats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	e.queue.LoadSnapshot(items)
	e.mu.Lock()
	e.stats = stats
	e.snapshotAt = time.Now()
	e.warm = false
	e.mu.Unlock()

	e.persist(ctx)
	return nil
}

// WarmOnly reports whether the queue still holds only warm-cache data.
func (e *Engine) WarmOnly() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.warm
}

// SendTyping forwards a typing advisory on the live connection.
func (e *Engine) SendTyping(ctx context.Context, conversationID int) error {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.SendTyping(ctx, conversationID)
}

// Run connects and processes events until ctx is cancelled, reconnecting
// with exponential backoff after failures. The backoff starts at 2s, doubles
// to a 30s cap, and resets once a session stays up for a minute.
func (e *Engine) Run(ctx context.Context) error {
	go e.persistLoop(ctx)

	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		err := e.runSession(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(started) >= stableAfter {
			backoff = initialBackoff
		}
		slog.Warn("event channel down, reconnecting",
			"error", err,
			"retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runSession dials once and pumps events until the connection dies.
func (e *Engine) runSession(ctx context.Context) error {
	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	conn, err := stream.Connect(dialCtx, e.client.BaseURL, e.agentID)
	cancelDial()
	if err != nil {
		return err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { _ = conn.Close() }()

	e.mu.Lock()
	e.conn = conn
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.conn = nil
		e.mu.Unlock()
	}()

	e.hub.SetConnected(true)
	defer e.hub.SetConnected(false)
	e.detail.SetAdvisor(conn)
	defer e.detail.SetAdvisor(nil)

	conn.StartPing(sessCtx, e.pingInterval, func(err error) {
		slog.Debug("keep-alive ping failed", "error", err)
	})

	// Events may have been missed while disconnected; replace the queue with
	// server truth before processing the live feed.
	if err := e.RefreshSnapshot(sessCtx); err != nil {
		slog.Warn("snapshot refresh failed", "error", err)
	}

	slog.Debug("event channel connected", "agent_id", e.agentID)

	for ev := range conn.ListenWithTimeout(sessCtx, e.readTimeout) {
		if ev.Err != nil {
			return ev.Err
		}
		e.handleFrame(ev.Frame)
	}
	return ctx.Err()
}

// handleFrame reconciles one decoded frame into local state, then publishes
// it to hub subscribers. Undecodable payloads are dropped with a warning.
func (e *Engine) handleFrame(f stream.Frame) {
	switch f.Type {
	case stream.EventNewMessage:
		ev, err := stream.DecodeNewMessage(f.Data)
		if err != nil {
			slog.Warn("dropping malformed event", "type", f.Type, "error", err)
			return
		}
		outcome := e.queue.ApplyNewMessage(ev)
		e.detail.Append(ev.Message())
		slog.Debug("new_message",
			"conversation_id", ev.ConversationID,
			"outcome", outcome.String())

	case stream.EventConversationUpdate:
		ev, err := stream.DecodeConversationUpdate(f.Data)
		if err != nil {
			slog.Warn("dropping malformed event", "type", f.Type, "error", err)
			return
		}
		outcome, err := e.queue.ApplyUpdate(ev)
		if err != nil {
			slog.Warn("dropping malformed event", "type", f.Type, "error", err)
			return
		}
		slog.Debug("conversation_update",
			"conversation_id", ev.ID,
			"outcome", outcome.String())

	case stream.EventNewConversation:
		ev, err := stream.DecodeNewConversation(f.Data)
		if err != nil {
			slog.Warn("dropping malformed event", "type", f.Type, "error", err)
			return
		}
		outcome := e.queue.ApplyNewConversation(ev)
		slog.Debug("new_conversation",
			"conversation_id", ev.ID,
			"outcome", outcome.String())

	default:
		slog.Debug("unhandled event type", "type", f.Type)
	}

	e.hub.Publish(f)
}

// persistLoop snapshots the queue into the live cache periodically so a
// restarted console can warm-start.
func (e *Engine) persistLoop(ctx context.Context) {
	if e.live == nil || !e.live.Enabled() {
		return
	}
	ticker := time.NewTicker(persistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.WarmOnly() {
				continue // never persist warm data back over itself
			}
			e.persist(ctx)
		}
	}
}

func (e *Engine) persist(ctx context.Context) {
	if e.live == nil || !e.live.Enabled() {
		return
	}
	if err := e.live.SaveQueue(ctx, e.client.BaseURL, e.agentID, e.queue.Items()); err != nil {
		slog.Debug("queue snapshot persist failed", "error", err)
	}
}
