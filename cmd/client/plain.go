package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/omochice/linechat/internal/bridge"
	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/internal/ui"
	"github.com/omochice/linechat/pkg/protocol"
)

const pollInterval = 100 * time.Millisecond

// runPlain reads messages from in and prints incoming events to out. Events
// are drained from the mailbox on a ticker so printing stays on this
// goroutine.
func runPlain(ctx context.Context, in io.Reader, out io.Writer, sender ui.Sender, session *chat.Session, events *bridge.Mailbox[protocol.Event]) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	flush := func() {
		for _, ev := range events.Drain() {
			if s, ok := formatEvent(ev, session); ok {
				fmt.Fprintln(out, s)
			}
		}
	}
	leave := func() {
		flush()
		if sender != nil && sender.IsConnected() {
			if err := sender.Leave(ctx, session.Username()); err != nil {
				fmt.Fprintf(out, "Failed to send leave message: %v\n", err)
			}
		}
	}

	fmt.Fprintln(out, "Type your messages (or 'quit' to exit):")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil

		case <-ticker.C:
			flush()

		case line, ok := <-lines:
			if !ok {
				leave()
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("failed to read input: %w", err)
					}
				default:
				}
				return nil
			}

			text := strings.TrimSpace(line)
			switch text {
			case "":
				continue
			case "quit", "exit", "/quit":
				leave()
				return nil
			}

			if sender == nil || !sender.IsConnected() {
				fmt.Fprintln(out, "Not connected: message not sent")
				continue
			}
			if err := sender.Send(ctx, protocol.OutboundText{Body: text}, session.Username()); err != nil {
				fmt.Fprintf(out, "Send error: %v\n", err)
			}
		}
	}
}

// formatEvent renders ev as one line. It reports false for the local user's
// own messages coming back from the relay.
func formatEvent(ev protocol.Event, session *chat.Session) (string, bool) {
	switch ev := ev.(type) {
	case protocol.TextEvent:
		if session.IsSelf(ev.Author) {
			return "", false
		}
		return fmt.Sprintf("[%s]: %s", ev.Author, ev.Body), true
	case protocol.ImageEvent:
		if session.IsSelf(ev.Author) {
			return "", false
		}
		return fmt.Sprintf("[%s] sent an image: %s (%s, %d bytes)", ev.Author, ev.Filename, ev.MIME, len(ev.Payload)), true
	case protocol.SystemEvent:
		return "*** " + ev.Body + " ***", true
	case protocol.MalformedEvent:
		return fmt.Sprintf("!!! malformed message (%s): %s", ev.Reason, ev.Raw), true
	}
	return "", false
}
