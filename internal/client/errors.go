package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is wrapped by SendError when the transport is not in
	// the Connected state.
	ErrNotConnected = errors.New("not connected to server")

	// ErrUnknownMessage is wrapped by SendError for an Outbound the codec
	// cannot render.
	ErrUnknownMessage = errors.New("unknown outbound message")
)

// ConnectionError reports that the connection could not be established.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError reports a failed write of one frame.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError is why the receive loop stopped. Err is io.EOF when the peer
// closed the connection cleanly.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("receive loop stopped: %v", e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }
