// Package ws lets WebSocket peers join the relay. Each text message carries
// exactly one wire line without its trailing newline.
package ws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// closeTimeout bounds how long Close waits for an in-flight write before it
// sends the close frame.
const closeTimeout = time.Second

// Conn adapts a server-side gobwas WebSocket connection to chat.Conn.
// Writes and the close frame share writeMu so frames never interleave.
type Conn struct {
	conn    net.Conn
	writeMu sync.Mutex
	closing atomic.Bool
}

// NewConn wraps an already upgraded connection.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Read implements chat.Conn.
// Returns one message with a newline appended so the relay can frame it like
// any stream chunk. A close frame is reported as io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	data, _, err := wsutil.ReadClientData(c.conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var closed wsutil.ClosedError
		if errors.As(err, &closed) {
			return nil, io.EOF
		}
		return nil, err
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		data = append(data, '\n')
	}
	return data, nil
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	// Checked after the deadline is set so Close's short deadline is never
	// overwritten by a write that then blocks.
	if c.closing.Load() {
		return net.ErrClosed
	}
	return wsutil.WriteServerText(c.conn, bytes.TrimSuffix(data, []byte("\n")))
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	// Cut short a write stuck on a slow peer, then wait for it to finish.
	c.closing.Store(true)
	_ = c.conn.SetWriteDeadline(time.Now().Add(closeTimeout))
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(closeTimeout))
	_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
