package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	cws "github.com/coder/websocket"

	"timercard/internal/protocol"
)

const redialDelay = 2 * time.Second

// WSBus is a Bus backed by a WebSocket event channel to the backend daemon.
// It redials in the background when the connection drops; Ready reflects
// the current link state so the card's sync loops can gate on it.
type WSBus struct {
	url    string
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	conn *cws.Conn

	ready   atomic.Bool
	events  chan protocol.Response
	dropped atomic.Uint64
	done    chan struct{}
}

// DialWS starts a bus against the given ws:// URL. The initial dial happens
// asynchronously: the bus is returned immediately and becomes Ready once
// connected.
func DialWS(ctx context.Context, url string, buffer int) *WSBus {
	if buffer <= 0 {
		buffer = 16
	}
	busCtx, cancel := context.WithCancel(ctx)
	b := &WSBus{
		url:    url,
		ctx:    busCtx,
		cancel: cancel,
		events: make(chan protocol.Response, buffer),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *WSBus) Send(cmd protocol.Command) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil || !b.ready.Load() {
		return ErrNotReady
	}
	raw, err := cmd.Encode()
	if err != nil {
		return err
	}
	if err := conn.Write(b.ctx, cws.MessageText, raw); err != nil {
		return fmt.Errorf("transport: send %s: %w", cmd.Action, err)
	}
	return nil
}

func (b *WSBus) Events() <-chan protocol.Response { return b.events }

func (b *WSBus) Ready() bool { return b.ready.Load() }

// Dropped counts events discarded because the consumer fell behind.
func (b *WSBus) Dropped() uint64 { return b.dropped.Load() }

func (b *WSBus) Close() error {
	b.cancel()
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()
	if conn != nil {
		_ = conn.Close(cws.StatusNormalClosure, "")
	}
	<-b.done
	return nil
}

func (b *WSBus) run() {
	defer close(b.done)
	defer close(b.events)
	for {
		if b.ctx.Err() != nil {
			return
		}
		conn, _, err := cws.Dial(b.ctx, b.url, nil)
		if err != nil {
			select {
			case <-b.ctx.Done():
				return
			case <-time.After(redialDelay):
				continue
			}
		}
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()
		b.ready.Store(true)

		b.readLoop(conn)

		b.ready.Store(false)
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
		}
		b.mu.Unlock()
		_ = conn.Close(cws.StatusNormalClosure, "")
	}
}

func (b *WSBus) readLoop(conn *cws.Conn) {
	for {
		_, raw, err := conn.Read(b.ctx)
		if err != nil {
			return
		}
		// Shape validation is the card's job: malformed payloads arrive
		// with an unrecognized (or empty) action tag and get flagged as a
		// sync failure there, never dropped silently here.
		var resp protocol.Response
		_ = json.Unmarshal(raw, &resp)
		select {
		case b.events <- resp:
		default:
			b.dropped.Add(1)
		}
	}
}
