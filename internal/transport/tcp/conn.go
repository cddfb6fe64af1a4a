// Package tcp provides the raw TCP transport for the chat client and relay.
package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/omochice/linechat/internal/chat"
)

// DefaultReadSize is the largest chunk a single Read returns.
const DefaultReadSize = 4096

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn net.Conn
	buf  []byte
}

// NewConn wraps a net.Conn with the default read size.
func NewConn(conn net.Conn) *Conn {
	return NewConnSize(conn, DefaultReadSize)
}

// NewConnSize wraps a net.Conn reading at most size bytes per call.
func NewConnSize(conn net.Conn, size int) *Conn {
	if size <= 0 {
		size = DefaultReadSize
	}
	return &Conn{conn: conn, buf: make([]byte, size)}
}

// Dial opens a TCP connection to address.
func Dial(ctx context.Context, address string, readSize int) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}
	return NewConnSize(conn, readSize), nil
}

// Read implements chat.Conn.
// Reads available bytes from the TCP connection. Cancelling ctx unblocks the
// read by expiring its deadline. The returned slice is a copy.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	n, err := c.conn.Read(c.buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[:n])
	return out, nil
}

// Write implements chat.Conn.
// A deadline on ctx becomes the write deadline. Hitting it mid-frame yields
// an error wrapping chat.ErrPartialWrite.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	n, err := c.conn.Write(data)
	if err != nil && n > 0 {
		return fmt.Errorf("%w: %d of %d bytes sent: %w", chat.ErrPartialWrite, n, len(data), err)
	}
	return err
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
