// Package ui is the terminal front end. All model state lives on the
// bubbletea loop; network events reach it only through the bridge mailbox.
package ui

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/omochice/linechat/internal/bridge"
	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/pkg/protocol"
)

// Sender is the part of the transport the UI needs.
type Sender interface {
	Send(ctx context.Context, msg protocol.Outbound, author string) error
	Leave(ctx context.Context, username string) error
	IsConnected() bool
}

var (
	authorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	selfStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	noticeStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(lipgloss.Color("57")).Foreground(lipgloss.Color("230"))
)

const defaultSendTimeout = 10 * time.Second

type entryKind int

const (
	entryChat entryKind = iota
	entryNotice
	entryError
)

type entry struct {
	kind   entryKind
	author string
	text   string
	self   bool
	at     time.Time
}

// Options configures a Model.
type Options struct {
	Session *chat.Session
	// Sender is nil when the client is offline.
	Sender      Sender
	Events      *bridge.Mailbox[protocol.Event]
	// Codec decides which usernames /nick accepts.
	Codec       protocol.Codec
	Title       string
	SendTimeout time.Duration
}

// Model is the chat screen.
type Model struct {
	session     *chat.Session
	sender      Sender
	events      *bridge.Mailbox[protocol.Event]
	codec       protocol.Codec
	title       string
	sendTimeout time.Duration

	avatars  *avatarCache
	entries  []entry
	viewport viewport.Model
	input    textinput.Model
	now      func() time.Time
	readFile func(string) ([]byte, error)
}

// New builds the model. It opens with a welcome notice, plus an offline
// notice when there is no sender.
func New(opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message, /image <path>, /nick <name> or /quit"
	ti.CharLimit = 0
	ti.Focus()

	vp := viewport.New(80, 20)
	// The input has focus; letters and space must reach it, not scroll.
	vp.KeyMap = viewport.KeyMap{
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		Up:       key.NewBinding(key.WithKeys("up")),
		Down:     key.NewBinding(key.WithKeys("down")),
	}

	m := &Model{
		session:     opts.Session,
		sender:      opts.Sender,
		events:      opts.Events,
		codec:       opts.Codec,
		title:       opts.Title,
		sendTimeout: opts.SendTimeout,
		avatars:     newAvatarCache(),
		input:       ti,
		viewport:    vp,
		now:         time.Now,
		readFile:    os.ReadFile,
	}
	if m.session == nil {
		m.session = chat.NewSession("")
	}
	if m.sendTimeout <= 0 {
		m.sendTimeout = defaultSendTimeout
	}
	m.notice("Welcome to the chat!")
	if m.sender == nil {
		m.notice("Offline: not connected to a server. Messages will not be sent.")
	}
	return m
}

// Init starts the cursor blink and the first wait on the mailbox.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.events != nil {
		cmds = append(cmds, WaitForEvents(m.events))
	}
	return tea.Batch(cmds...)
}

// Update applies one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, m.quit()
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.SetValue("")
			cmd := m.handleInput(line)
			m.refresh()
			return m, cmd
		}

	case eventsMsg:
		for _, ev := range msg {
			m.receive(ev)
		}
		m.refresh()
		cmds = append(cmds, WaitForEvents(m.events))

	case mailboxClosedMsg:
		// Nothing else will arrive; stop re-arming.

	case sendResultMsg:
		if msg.err != nil {
			m.failure("Send error: " + msg.err.Error())
			m.refresh()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the screen.
func (m *Model) View() string {
	header := headerStyle.Render(m.header())
	return header + "\n" + m.viewport.View() + "\n" + m.input.View()
}

func (m *Model) header() string {
	title := m.title
	if title == "" {
		title = "linechat"
	}
	name := m.session.Username()
	if name == "" {
		name = "(no name)"
	}
	status := "online"
	if m.sender == nil || !m.sender.IsConnected() {
		status = "offline"
	}
	return fmt.Sprintf("%s  %s  [%s]", title, name, status)
}

func (m *Model) resize(width, height int) {
	// header and input line
	h := height - 2
	if h < 1 {
		h = 1
	}
	m.viewport.Width = width
	m.viewport.Height = h
	m.input.Width = width - 3
	m.refresh()
}

func (m *Model) refresh() {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.render(e))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *Model) render(e entry) string {
	stamp := timeStyle.Render(e.at.Format("15:04"))
	switch e.kind {
	case entryNotice:
		return stamp + " " + m.avatars.get(protocol.SystemAuthor, false) + " " + noticeStyle.Render(e.text)
	case entryError:
		return stamp + " " + m.avatars.get(protocol.SystemAuthor, false) + " " + errorStyle.Render(e.text)
	}
	name := authorStyle.Render(e.author)
	if e.self {
		name = selfStyle.Render(e.author)
	}
	return stamp + " " + m.avatars.get(e.author, e.self) + " " + name + ": " + e.text
}

func (m *Model) handleInput(line string) tea.Cmd {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit":
		return m.quit()
	case "/nick":
		return m.nick(arg)
	case "/image":
		return m.sendImage(arg)
	}

	author := m.session.Username()
	m.echo(author, line)
	return m.send(protocol.OutboundText{Body: line}, author)
}

func (m *Model) nick(name string) tea.Cmd {
	if name == "" {
		m.failure("usage: /nick <name>")
		return nil
	}
	if !m.codec.ValidAuthor(name) {
		m.failure(fmt.Sprintf("Name %q cannot be sent: '@' and line breaks are not allowed", name))
		return nil
	}
	old := m.session.Username()
	m.session.SetUsername(name)
	m.notice(fmt.Sprintf("You are now %s (was %s)", name, old))
	return nil
}

func (m *Model) sendImage(path string) tea.Cmd {
	if path == "" {
		m.failure("usage: /image <path>")
		return nil
	}
	payload, err := m.readFile(path)
	if err != nil {
		m.failure("Send error: " + err.Error())
		return nil
	}
	name := filepath.Base(path)
	author := m.session.Username()
	m.echo(author, describeImage(name, "", payload))
	return m.send(protocol.OutboundImage{Filename: name, Payload: payload}, author)
}

// send runs the write on a command goroutine. The closure captures only
// values, never the model.
func (m *Model) send(msg protocol.Outbound, author string) tea.Cmd {
	if m.sender == nil || !m.sender.IsConnected() {
		m.failure("Not connected: message not sent")
		return nil
	}
	sender, timeout := m.sender, m.sendTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return sendResultMsg{err: sender.Send(ctx, msg, author)}
	}
}

func (m *Model) quit() tea.Cmd {
	if m.sender == nil || !m.sender.IsConnected() {
		return tea.Quit
	}
	return tea.Sequence(m.leave(), tea.Quit)
}

func (m *Model) leave() tea.Cmd {
	sender, timeout, name := m.sender, m.sendTimeout, m.session.Username()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		// The process is exiting; a failed goodbye is not worth reporting.
		_ = sender.Leave(ctx, name)
		return nil
	}
}

func (m *Model) receive(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.TextEvent:
		if m.session.IsSelf(ev.Author) {
			return
		}
		m.append(entry{kind: entryChat, author: ev.Author, text: ev.Body})
	case protocol.ImageEvent:
		if m.session.IsSelf(ev.Author) {
			return
		}
		m.append(entry{kind: entryChat, author: ev.Author, text: describeImage(ev.Filename, ev.MIME, ev.Payload)})
	case protocol.SystemEvent:
		m.notice(ev.Body)
	case protocol.MalformedEvent:
		m.failure(fmt.Sprintf("Malformed message (%s): %s", ev.Reason, ev.Raw))
	}
}

func (m *Model) echo(author, text string) {
	m.append(entry{kind: entryChat, author: author, text: text, self: true})
}

func (m *Model) notice(text string) {
	m.append(entry{kind: entryNotice, author: protocol.SystemAuthor, text: text})
}

func (m *Model) failure(text string) {
	m.append(entry{kind: entryError, author: protocol.SystemAuthor, text: text})
}

func (m *Model) append(e entry) {
	e.at = m.now()
	m.entries = append(m.entries, e)
}

func describeImage(filename, mime string, payload []byte) string {
	var details []string
	if mime != "" {
		details = append(details, mime)
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(payload)); err == nil {
		details = append(details, fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
	}
	details = append(details, humanSize(len(payload)))
	return fmt.Sprintf("[image] %s (%s)", filename, strings.Join(details, ", "))
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
