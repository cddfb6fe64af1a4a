// Package chat holds the pieces shared by the client and the relay: the
// transport-neutral connection contract, the local session, and the relay hub.
package chat

import (
	"context"
	"errors"
)

// ErrPartialWrite marks a Write that failed after some of the data reached
// the peer. The stream is out of frame and must not be written to again.
var ErrPartialWrite = errors.New("partial write")

// Conn abstracts a bidirectional byte stream for both TCP and WebSocket.
// Reads return whatever bytes are available; framing is done by the caller.
type Conn interface {
	// Read returns the next chunk of bytes.
	// Returns io.EOF when the peer closed the connection.
	Read(ctx context.Context) ([]byte, error)

	// Write sends data in full or returns an error. An error after some bytes
	// went out wraps ErrPartialWrite.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection and unblocks a pending Read.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
