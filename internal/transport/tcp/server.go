package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/linechat/internal/chat"
)

// Server accepts TCP line peers and hands them to a Hub.
type Server struct {
	address  string
	listener net.Listener
	hub      *chat.Hub
	log      zerolog.Logger
	ready    chan struct{}
	wg       sync.WaitGroup
}

// New creates a TCP server that uses the provided Hub.
func New(address string, hub *chat.Hub, log zerolog.Logger) *Server {
	return &Server{
		address: address,
		hub:     hub,
		log:     log,
		ready:   make(chan struct{}),
	}
}

// Serve accepts connections until ctx is cancelled, then closes the listener
// and waits for every peer handler to finish.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener
	close(s.ready)

	s.log.Info().Str("addr", listener.Addr().String()).Msg("TCP relay listening")

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn().Err(err).Msg("failed to accept TCP connection")
			continue
		}

		client := chat.NewClient(NewConn(conn))
		s.wg.Add(2)
		go s.handleClient(ctx, client)
		go s.writeLoop(client)
	}
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

func (s *Server) handleClient(ctx context.Context, client *chat.Client) {
	defer s.wg.Done()
	defer close(client.Outgoing)
	s.hub.HandleClient(ctx, client)
}

func (s *Server) writeLoop(client *chat.Client) {
	defer s.wg.Done()
	for data := range client.Outgoing {
		if err := client.Conn.Write(context.Background(), data); err != nil {
			s.log.Debug().Err(err).Str("peer", client.ID).Msg("failed to write to client")
			// Drain so the hub stops reporting drops for a dead peer.
			for range client.Outgoing {
			}
			return
		}
	}
}
