// Package client owns the connection to the chat relay: connect, send,
// the background receive loop and teardown.
package client

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/internal/frame"
	"github.com/omochice/linechat/internal/transport/tcp"
	"github.com/omochice/linechat/pkg/protocol"
)

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger used by the receive loop.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Transport) { t.log = log }
}

// WithReadBufferSize caps the bytes taken from the socket per read.
func WithReadBufferSize(n int) Option {
	return func(t *Transport) { t.readSize = n }
}

// WithMaxFrameSize bounds a single incoming frame; 0 disables the limit.
func WithMaxFrameSize(n int) Option {
	return func(t *Transport) { t.maxFrame = n }
}

// WithCodec replaces the legacy wire codec.
func WithCodec(c protocol.Codec) Option {
	return func(t *Transport) { t.codec = c }
}

// WithWriteTimeout bounds each SendLine that has no deadline of its own.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Transport) { t.writeTimeout = d }
}

// WithOnClosed registers fn to run exactly once when the transport closes.
// cause is nil for an explicit Close. fn runs on the goroutine that caused
// the close and must not block on Done.
func WithOnClosed(fn func(cause error)) Option {
	return func(t *Transport) { t.onClosed = fn }
}

// Transport is a connection to the relay.
//
// Start launches the receive loop on its own goroutine. SendLine may be
// called from any goroutine; writes are serialized so frames never
// interleave. Close may be called from anywhere, any number of times.
type Transport struct {
	conn         chat.Conn
	codec        protocol.Codec
	log          zerolog.Logger
	readSize     int
	maxFrame     int
	writeTimeout time.Duration
	onClosed     func(error)

	state lifecycle

	// mu orders Start against shutdown.
	mu      sync.Mutex
	started bool
	cause   error

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

func newTransport(opts []Option) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		log:      zerolog.Nop(),
		readSize: tcp.DefaultReadSize,
		maxFrame: frame.DefaultMaxFrameSize,
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dial connects to host:port. It does not retry; a failure is a
// *ConnectionError and leaves nothing to clean up.
func Dial(ctx context.Context, host string, port int, opts ...Option) (*Transport, error) {
	t := newTransport(opts)
	t.state.advance(StateDisconnected, StateConnecting)

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := tcp.Dial(ctx, addr, t.readSize)
	if err != nil {
		t.state.advance(StateConnecting, StateDisconnected)
		t.cancel()
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	t.conn = conn
	t.state.advance(StateConnecting, StateConnected)
	t.log.Info().Str("addr", addr).Msg("connected")
	return t, nil
}

// New wraps an established connection.
func New(conn chat.Conn, opts ...Option) *Transport {
	t := newTransport(opts)
	t.conn = conn
	t.state.advance(StateDisconnected, StateConnecting)
	t.state.advance(StateConnecting, StateConnected)
	return t
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	return t.state.load()
}

// IsConnected returns whether the transport can still send.
func (t *Transport) IsConnected() bool {
	return t.State() == StateConnected
}

// Err returns why the transport closed: nil while open or after an explicit
// Close, otherwise a *ReceiveError or *SendError.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// Done is closed once the transport is closed and its receive loop, if any,
// has exited.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// SendLine writes one fully encoded frame.
func (t *Transport) SendLine(ctx context.Context, line []byte) error {
	if !t.IsConnected() {
		return &SendError{Err: ErrNotConnected}
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, ok := ctx.Deadline(); !ok && t.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.writeTimeout)
		defer cancel()
	}

	if err := t.conn.Write(ctx, line); err != nil {
		sendErr := &SendError{Err: err}
		// A closed socket is gone; a partial frame leaves the stream out of
		// sync. Either way nothing more can be sent.
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, chat.ErrPartialWrite) {
			t.shutdown(sendErr)
		}
		return sendErr
	}
	return nil
}

// Send encodes msg as author and writes it.
func (t *Transport) Send(ctx context.Context, msg protocol.Outbound, author string) error {
	line := t.codec.Encode(msg, author)
	if line == nil {
		return &SendError{Err: ErrUnknownMessage}
	}
	return t.SendLine(ctx, line)
}

// Join announces username to the room.
func (t *Transport) Join(ctx context.Context, username string) error {
	return t.Send(ctx, protocol.JoinAnnouncement(username), username)
}

// Leave tells the room username is going away.
func (t *Transport) Leave(ctx context.Context, username string) error {
	return t.Send(ctx, protocol.LeaveAnnouncement(username), username)
}

// Start launches the receive loop. onEvent runs on the loop's goroutine for
// every decoded event and must hand the event off rather than touch
// presentation state. Start reports false if the loop was already started or
// the transport is no longer connected.
func (t *Transport) Start(onEvent func(protocol.Event)) bool {
	t.mu.Lock()
	if t.started || t.State() != StateConnected {
		t.mu.Unlock()
		return false
	}
	t.started = true
	t.mu.Unlock()

	go t.receiveLoop(onEvent)
	return true
}

// Close tears the connection down and unblocks the receive loop. It does not
// wait for the loop; use Done for that.
func (t *Transport) Close() error {
	t.shutdown(nil)
	return t.closeErr
}

// shutdown runs teardown once. Concurrent callers block until the first
// one has finished, so the state is Closed when any of them returns.
func (t *Transport) shutdown(cause error) {
	first := false
	t.closeOnce.Do(func() {
		first = true

		t.mu.Lock()
		t.state.advance(StateConnected, StateClosing)
		t.cause = cause
		loopRunning := t.started
		t.started = true
		t.mu.Unlock()

		t.cancel()
		t.closeErr = t.conn.Close()
		t.state.advance(StateClosing, StateClosed)

		if !loopRunning {
			close(t.done)
		}
	})
	if !first {
		return
	}

	if cause != nil {
		t.log.Info().Err(cause).Msg("connection closed")
	} else {
		t.log.Info().Msg("connection closed")
	}
	if t.onClosed != nil {
		t.onClosed(cause)
	}
}

// receiveLoop reads until EOF or error, framing and decoding as it goes.
func (t *Transport) receiveLoop(onEvent func(protocol.Event)) {
	defer close(t.done)

	asm := frame.New(t.maxFrame)
	for {
		chunk, err := t.conn.Read(t.ctx)
		if err == nil && len(chunk) == 0 {
			err = io.EOF
		}
		if err != nil {
			if t.ctx.Err() != nil {
				// Closed locally: wait for that teardown to finish.
				t.shutdown(nil)
				return
			}
			if !errors.Is(err, io.EOF) {
				t.log.Warn().Err(err).Msg("error reading from server")
			}
			t.shutdown(&ReceiveError{Err: err})
			return
		}

		frames, err := asm.Push(chunk)
		for _, f := range frames {
			if ev, ok := t.codec.Decode(f); ok {
				onEvent(ev)
			}
		}
		if err != nil {
			t.log.Warn().Err(err).Int("limit", t.maxFrame).Msg("dropping connection")
			t.shutdown(&ReceiveError{Err: err})
			return
		}
	}
}
