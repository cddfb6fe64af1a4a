package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/linechat/internal/bridge"
	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/internal/config"
	"github.com/omochice/linechat/pkg/protocol"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	left []string
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg protocol.Outbound, author string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if text, ok := msg.(protocol.OutboundText); ok {
		r.sent = append(r.sent, author+": "+text.Body)
	}
	return r.err
}

func (r *recordingSender) Leave(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = append(r.left, name)
	return nil
}

func (r *recordingSender) IsConnected() bool { return true }

func TestFormatEvent(t *testing.T) {
	session := chat.NewSession("alice")

	tests := []struct {
		name string
		ev   protocol.Event
		want string
		ok   bool
	}{
		{"text", protocol.TextEvent{Author: "bob", Body: "hi"}, "[bob]: hi", true},
		{"own text", protocol.TextEvent{Author: "alice", Body: "hi"}, "", false},
		{"image", protocol.ImageEvent{Author: "bob", Filename: "a.png", MIME: "image/png", Payload: make([]byte, 17)}, "[bob] sent an image: a.png (image/png, 17 bytes)", true},
		{"own image", protocol.ImageEvent{Author: "alice", Filename: "a.png"}, "", false},
		{"system", protocol.SystemEvent{Body: "welcome"}, "*** welcome ***", true},
		{"malformed", protocol.MalformedEvent{Raw: "TEXT@x", Reason: "short"}, "!!! malformed message (short): TEXT@x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := formatEvent(tt.ev, session)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunPlainSendsAndLeaves(t *testing.T) {
	sender := &recordingSender{}
	session := chat.NewSession("alice")
	events := bridge.NewMailbox[protocol.Event]()
	events.Post(protocol.TextEvent{Author: "bob", Body: "hello alice"})
	events.Post(protocol.TextEvent{Author: "alice", Body: "my own echo"})

	var out bytes.Buffer
	err := runPlain(context.Background(), strings.NewReader("hi bob\n\n  \nquit\nnever sent\n"), &out, sender, session, events)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice: hi bob"}, sender.sent)
	assert.Equal(t, []string{"alice"}, sender.left)
	assert.Contains(t, out.String(), "[bob]: hello alice")
	assert.NotContains(t, out.String(), "my own echo")
}

func TestRunPlainEOFLeaves(t *testing.T) {
	sender := &recordingSender{}
	events := bridge.NewMailbox[protocol.Event]()

	var out bytes.Buffer
	err := runPlain(context.Background(), strings.NewReader("bye"), &out, sender, chat.NewSession("alice"), events)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice: bye"}, sender.sent)
	assert.Equal(t, []string{"alice"}, sender.left)
}

func TestRunPlainSendError(t *testing.T) {
	sender := &recordingSender{err: errors.New("boom")}

	var out bytes.Buffer
	err := runPlain(context.Background(), strings.NewReader("hi\n"), &out, sender, chat.NewSession("alice"), bridge.NewMailbox[protocol.Event]())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Send error: boom")
}

func TestRunPlainOffline(t *testing.T) {
	var out bytes.Buffer
	err := runPlain(context.Background(), strings.NewReader("hi\n"), &out, nil, chat.NewSession("alice"), bridge.NewMailbox[protocol.Event]())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Not connected: message not sent")
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&host, "host", "", "")
	cmd.Flags().IntVar(&port, "port", 0, "")
	cmd.Flags().StringVar(&username, "username", "", "")
	cmd.Flags().BoolVar(&escape, "escape", false, "")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9000", "--username", "carol"}))

	cfg := config.Default()
	applyFlags(cmd, cfg)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "carol", cfg.User.Name)
	assert.False(t, cfg.Wire.EscapeFields)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestClosedNotice(t *testing.T) {
	assert.Equal(t, "Disconnected from server", closedNotice(nil))
	assert.Equal(t, "Disconnected from server: EOF", closedNotice(errors.New("EOF")))
}
