// Package protocol implements the line-oriented chat wire format.
//
// Every message is a single newline-terminated line whose fields are joined
// with '@':
//
//	TEXT@<author>@<body>
//	IMAGE@<author>@<filename>@<base64 payload>
//
// Any other line is a system notice from the relay.
package protocol

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the tag in front of a wire line.
type Kind string

const (
	KindText  Kind = "TEXT"
	KindImage Kind = "IMAGE"
)

// SystemAuthor is the author name used for locally generated notices.
const SystemAuthor = "SYSTEM"

const (
	separator = "@"
	maxFields = 4
)

// Event is a decoded unit of information destined for display.
type Event interface {
	event()
}

// TextEvent is a chat line from another participant.
type TextEvent struct {
	Author string
	Body   string
}

// ImageEvent is an image sent by a participant.
type ImageEvent struct {
	Author   string
	Filename string
	Payload  []byte
	MIME     string
}

// SystemEvent is a notice: an untagged relay line or a locally reported
// failure.
type SystemEvent struct {
	Body string
}

// MalformedEvent is a tagged line with the wrong number of fields.
type MalformedEvent struct {
	Raw    string
	Reason string
}

func (TextEvent) event()      {}
func (ImageEvent) event()     {}
func (SystemEvent) event()    {}
func (MalformedEvent) event() {}

// Outbound is a user-originated message destined for the wire.
type Outbound interface {
	outbound()
}

// OutboundText is a text message typed by the local user.
type OutboundText struct {
	Body string
}

// OutboundImage is an image picked by the local user.
type OutboundImage struct {
	Filename string
	Payload  []byte
}

func (OutboundText) outbound()  {}
func (OutboundImage) outbound() {}

// Codec encodes and decodes wire lines.
//
// With EscapeFields unset the codec is byte-compatible with peers that do not
// escape anything, which means an '@' inside a body shifts the field split.
// With EscapeFields set, '%', '@', '\n' and '\r' in free-text fields are
// percent-encoded so any body survives the trip.
type Codec struct {
	EscapeFields bool
}

var legacy = Codec{}

// Encode renders msg with the legacy (unescaped) codec.
func Encode(msg Outbound, author string) []byte {
	return legacy.Encode(msg, author)
}

// Decode parses frame with the legacy (unescaped) codec.
func Decode(frame []byte) (Event, bool) {
	return legacy.Decode(frame)
}

// Encode renders msg as a newline-terminated wire line.
func (c Codec) Encode(msg Outbound, author string) []byte {
	var b bytes.Buffer
	switch m := msg.(type) {
	case OutboundText:
		b.WriteString(string(KindText))
		b.WriteString(separator)
		b.WriteString(c.escape(author))
		b.WriteString(separator)
		b.WriteString(c.escape(m.Body))
	case OutboundImage:
		b.WriteString(string(KindImage))
		b.WriteString(separator)
		b.WriteString(c.escape(author))
		b.WriteString(separator)
		b.WriteString(c.escape(m.Filename))
		b.WriteString(separator)
		b.WriteString(base64.StdEncoding.EncodeToString(m.Payload))
	default:
		return nil
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// Decode parses one frame. It reports false for an empty frame, which
// carries no event. Decode never fails: bad input becomes a MalformedEvent
// or a SystemEvent describing the problem.
func (c Codec) Decode(frame []byte) (Event, bool) {
	line := strings.TrimSpace(string(frame))
	if line == "" {
		return nil, false
	}

	parts := strings.SplitN(line, separator, maxFields)
	switch Kind(parts[0]) {
	case KindText:
		if len(parts) != 3 {
			return MalformedEvent{
				Raw:    line,
				Reason: fmt.Sprintf("TEXT wants 3 fields, got %d", len(parts)),
			}, true
		}
		return TextEvent{
			Author: c.unescape(parts[1]),
			Body:   c.unescape(parts[2]),
		}, true
	case KindImage:
		if len(parts) != 4 {
			return MalformedEvent{
				Raw:    line,
				Reason: fmt.Sprintf("IMAGE wants 4 fields, got %d", len(parts)),
			}, true
		}
		return decodeImage(c.unescape(parts[1]), c.unescape(parts[2]), parts[3]), true
	default:
		return SystemEvent{Body: line}, true
	}
}

func decodeImage(author, filename, encoded string) Event {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return SystemEvent{Body: fmt.Sprintf("image %q from %s: %v", filename, author, err)}
	}
	mtype := mimetype.Detect(payload)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return SystemEvent{Body: fmt.Sprintf("image %q from %s: not an image (%s)", filename, author, mtype.String())}
	}
	return ImageEvent{
		Author:   author,
		Filename: filename,
		Payload:  payload,
		MIME:     mtype.String(),
	}
}

// ValidAuthor reports whether name survives a trip through this codec. An
// unescaping codec cannot carry '@' or line breaks in the author field.
func (c Codec) ValidAuthor(name string) bool {
	return c.EscapeFields || !strings.ContainsAny(name, "@\r\n")
}

// JoinAnnouncement is the line sent right after connecting.
func JoinAnnouncement(username string) OutboundText {
	return OutboundText{Body: fmt.Sprintf("[%s] %s joined the chat!", SystemAuthor, username)}
}

// LeaveAnnouncement is the line sent before a graceful disconnect.
func LeaveAnnouncement(username string) OutboundText {
	return OutboundText{Body: fmt.Sprintf("[%s] %s left the chat.", SystemAuthor, username)}
}

var (
	fieldEscaper   = strings.NewReplacer("%", "%25", "@", "%40", "\n", "%0A", "\r", "%0D")
	fieldUnescaper = strings.NewReplacer("%40", "@", "%0A", "\n", "%0D", "\r", "%25", "%")
)

func (c Codec) escape(s string) string {
	if !c.EscapeFields {
		return s
	}
	return fieldEscaper.Replace(s)
}

func (c Codec) unescape(s string) string {
	if !c.EscapeFields {
		return s
	}
	return fieldUnescaper.Replace(s)
}
