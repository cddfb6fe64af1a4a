package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/omochice/linechat/internal/chat"
)

// Server exposes the relay over HTTP: WebSocket peers on /ws and a health
// probe on /healthz.
type Server struct {
	address  string
	hub      *chat.Hub
	log      zerolog.Logger
	listener net.Listener
	ready    chan struct{}
	wg       sync.WaitGroup

	// ctx is the Serve context, handed to hijacked peers so they stop with it.
	ctx context.Context
}

// New creates a WebSocket relay server that uses the provided Hub.
func New(address string, hub *chat.Hub, log zerolog.Logger) *Server {
	return &Server{
		address: address,
		hub:     hub,
		log:     log,
		ready:   make(chan struct{}),
		ctx:     context.Background(),
	}
}

// Handler builds the relay HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	return r
}

// Serve listens until ctx is cancelled, then shuts the HTTP server down and
// waits for upgraded peers to finish.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	s.listener = listener
	s.ctx = ctx
	close(s.ready)

	s.log.Info().Str("addr", listener.Addr().String()).Msg("WebSocket relay listening")

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(listener) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			s.log.Warn().Err(err).Msg("http shutdown")
		}
	}
	s.wg.Wait()
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := chat.NewClient(NewConn(conn))
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer close(client.Outgoing)
		s.hub.HandleClient(s.ctx, client)
	}()
	go func() {
		defer s.wg.Done()
		for data := range client.Outgoing {
			if err := client.Conn.Write(context.Background(), data); err != nil {
				s.log.Debug().Err(err).Str("peer", client.ID).Msg("failed to write to client")
				for range client.Outgoing {
				}
				return
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"peers": s.hub.ClientCount()})
}
