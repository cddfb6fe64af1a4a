package chat

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/omochice/linechat/internal/frame"
	"github.com/omochice/linechat/pkg/protocol"
)

// outgoingBuffer is the per-peer queue depth before the hub starts dropping
// lines for that peer.
const outgoingBuffer = 64

// Client is a relay peer with a transport-agnostic connection.
type Client struct {
	ID       string
	Conn     Conn
	Outgoing chan []byte
}

// NewClient wraps conn with a fresh ID and outgoing queue.
func NewClient(conn Conn) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Outgoing: make(chan []byte, outgoingBuffer),
	}
}

// Hub manages all connected peers and relays every line to all of them.
// TCP and WebSocket listeners share a single Hub instance.
type Hub struct {
	clients  map[*Client]bool
	mu       sync.RWMutex
	log      zerolog.Logger
	maxFrame int
}

// NewHub creates a new Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:  make(map[*Client]bool),
		log:      log,
		maxFrame: frame.DefaultMaxFrameSize,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues line for every registered client, the sender included.
// A client whose queue is full misses the line rather than stalling the hub.
func (h *Hub) Broadcast(line []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.Outgoing <- line:
		default:
			h.log.Warn().Str("peer", c.ID).Msg("outgoing queue full, dropping line")
		}
	}
}

// HandleClient registers client, relays its lines until the connection ends
// and unregisters it. The caller owns closing client.Outgoing afterwards.
func (h *Hub) HandleClient(ctx context.Context, client *Client) {
	h.Register(client)
	defer h.Unregister(client)
	defer client.Conn.Close()

	log := h.log.With().Str("peer", client.ID).Str("addr", client.Conn.RemoteAddr()).Logger()
	log.Info().Int("peers", h.ClientCount()).Msg("peer connected")

	asm := frame.New(h.maxFrame)
	for {
		chunk, err := client.Conn.Read(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Warn().Err(err).Msg("read failed")
			}
			break
		}
		frames, err := asm.Push(chunk)
		for _, f := range frames {
			h.relay(log, f)
		}
		if err != nil {
			log.Warn().Err(err).Msg("dropping peer")
			break
		}
	}

	log.Info().Msg("peer disconnected")
}

func (h *Hub) relay(log zerolog.Logger, f []byte) {
	ev, ok := protocol.Decode(f)
	if !ok {
		return
	}
	switch e := ev.(type) {
	case protocol.TextEvent:
		log.Debug().Str("author", e.Author).Int("bytes", len(e.Body)).Msg("text")
	case protocol.ImageEvent:
		log.Debug().Str("author", e.Author).Str("file", e.Filename).Int("bytes", len(e.Payload)).Msg("image")
	default:
		log.Debug().Msg("notice")
	}

	line := make([]byte, len(f)+1)
	copy(line, f)
	line[len(f)] = '\n'
	h.Broadcast(line)
}
