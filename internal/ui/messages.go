package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/omochice/linechat/internal/bridge"
	"github.com/omochice/linechat/pkg/protocol"
)

// eventsMsg is a batch of events drained from the transport mailbox.
type eventsMsg []protocol.Event

// mailboxClosedMsg reports that no more events will arrive.
type mailboxClosedMsg struct{}

// sendResultMsg carries the outcome of a send command.
type sendResultMsg struct {
	err error
}

// WaitForEvents blocks on mb from a bubbletea command goroutine and hands the
// batch to Update. Update re-arms it after every batch, so events are only
// ever applied on the UI loop.
func WaitForEvents(mb *bridge.Mailbox[protocol.Event]) tea.Cmd {
	return func() tea.Msg {
		items, err := mb.Wait(context.Background())
		if err != nil {
			return mailboxClosedMsg{}
		}
		return eventsMsg(items)
	}
}
