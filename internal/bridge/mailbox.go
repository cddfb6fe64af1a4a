// Package bridge hands values from producer goroutines to a single consumer
// loop. Producers only ever enqueue; the consumer decides when to look.
package bridge

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Wait once the mailbox is closed and empty.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO. Post never blocks, so a network goroutine can
// never stall on a slow consumer, and nothing posted before Close is lost.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	closed bool
}

// NewMailbox returns an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{notify: make(chan struct{}, 1)}
}

// Post enqueues v. Posts after Close are discarded and reported as false.
func (m *Mailbox[T]) Post(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, v)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	m.mu.Unlock()
	return true
}

// Drain removes and returns everything queued, without blocking.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

// Wait blocks until at least one item is queued and returns all of them.
// It returns ErrClosed once the mailbox is closed and drained, or ctx.Err().
func (m *Mailbox[T]) Wait(ctx context.Context) ([]T, error) {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			items := m.items
			m.items = nil
			m.mu.Unlock()
			return items, nil
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return nil, ErrClosed
		}

		select {
		case <-m.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len reports the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops accepting posts and wakes a pending Wait. Already queued items
// can still be drained. Close is idempotent.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.notify)
}
