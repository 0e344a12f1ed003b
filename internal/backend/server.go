package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	cws "github.com/coder/websocket"

	"timercard/internal/protocol"
)

// Server accepts card connections over WebSocket and fans responses out to
// all of them. Commands from any card go to the one shared Service.
type Server struct {
	svc *Service
	log *slog.Logger

	mu    sync.Mutex
	conns map[*cws.Conn]context.Context
}

// NewServer builds a server without a service; the service needs the
// server as its broadcaster, so the pair is tied together with SetService
// after both exist.
func NewServer(svc *Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		svc:   svc,
		log:   log,
		conns: make(map[*cws.Conn]context.Context),
	}
	return s
}

func (s *Server) SetService(svc *Service) {
	s.svc = svc
}

// broadcastWriteTimeout bounds each fan-out write. A connection's request
// context stays live while the socket is open, so without a deadline a
// client that stops reading would block Broadcast under s.mu forever.
var broadcastWriteTimeout = 2 * time.Second

// Broadcast implements Broadcaster. A slow client loses the message rather
// than stalling the rest; the card's polling loops recover the state.
func (s *Server) Broadcast(resp protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("response not encodable", "action", resp.Action, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ctx := range s.conns {
		wctx, cancel := context.WithTimeout(ctx, broadcastWriteTimeout)
		if err := conn.Write(wctx, cws.MessageText, data); err != nil {
			s.log.Warn("broadcast write failed", "error", err)
		}
		cancel()
	}
}

// ServeHTTP upgrades one card connection and pumps its commands until it
// goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	ctx := r.Context()

	s.mu.Lock()
	s.conns[conn] = ctx
	total := len(s.conns)
	s.mu.Unlock()
	s.log.Info("card connected", "remote", r.RemoteAddr, "connections", total)

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close(cws.StatusNormalClosure, "")
		s.log.Info("card disconnected", "remote", r.RemoteAddr)
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if cws.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				s.log.Warn("read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			s.log.Warn("bad command payload", "remote", r.RemoteAddr, "error", err)
			s.Broadcast(protocol.Response{Action: protocol.ActionError, Error: err.Error()})
			continue
		}
		s.svc.HandleCommand(ctx, cmd)
	}
}

// Run consumes the engine's due events until the context ends. It is the
// only goroutine that touches the service from the engine side.
func (s *Server) Run(ctx context.Context, engine *Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-engine.C():
			if !ok {
				return
			}
			s.svc.OnFire(ctx, ev)
		}
	}
}
