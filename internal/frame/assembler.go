// Package frame splits a byte stream into newline-delimited frames.
package frame

import (
	"bytes"
	"errors"
)

// DefaultMaxFrameSize bounds a single pending frame. Images travel inline as
// base64, so the limit is generous.
const DefaultMaxFrameSize = 16 << 20

// ErrFrameTooLarge is returned when an unterminated frame outgrows the limit.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Assembler accumulates stream chunks and yields complete frames.
//
// It keeps one growable buffer and an offset to the first unconsumed byte, so
// a long-lived connection never re-copies everything it has already framed.
// An Assembler is not safe for concurrent use; it belongs to a single
// receive loop.
type Assembler struct {
	buf      []byte
	off      int
	maxFrame int
}

// New returns an Assembler. maxFrame <= 0 disables the size limit.
func New(maxFrame int) *Assembler {
	return &Assembler{maxFrame: maxFrame}
}

// Push appends chunk and returns every frame completed by it, in order.
// Frames have the newline and surrounding whitespace trimmed and never alias
// the internal buffer. Whatever follows the last newline stays buffered for
// the next call.
func (a *Assembler) Push(chunk []byte) ([][]byte, error) {
	if len(chunk) == 0 {
		return nil, nil
	}
	a.buf = append(a.buf, chunk...)

	var frames [][]byte
	for {
		i := bytes.IndexByte(a.buf[a.off:], '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(a.buf[a.off : a.off+i])
		frames = append(frames, bytes.Clone(line))
		a.off += i + 1
	}

	a.compact()

	if a.maxFrame > 0 && a.Buffered() > a.maxFrame {
		a.Reset()
		return frames, ErrFrameTooLarge
	}
	return frames, nil
}

// Buffered reports how many bytes are waiting for a newline.
func (a *Assembler) Buffered() int {
	return len(a.buf) - a.off
}

// Reset drops any partial frame.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.off = 0
}

// compact reclaims the consumed prefix once it dominates the buffer.
func (a *Assembler) compact() {
	switch {
	case a.off == len(a.buf):
		a.buf = a.buf[:0]
		a.off = 0
	case a.off > len(a.buf)/2:
		n := copy(a.buf, a.buf[a.off:])
		a.buf = a.buf[:n]
		a.off = 0
	}
}
