package ui

import (
	"hash/fnv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/omochice/linechat/pkg/protocol"
)

var avatarPalette = []lipgloss.Color{"39", "170", "214", "78", "204", "141", "45", "220"}

var (
	selfAvatar   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("45")).Render(" me ")
	systemAvatar = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250")).Background(lipgloss.Color("238")).Render(" ** ")
)

// avatarCache maps author names to rendered badges. It is only touched from
// the bubbletea loop, so it needs no locking.
type avatarCache struct {
	badges map[string]string
}

func newAvatarCache() *avatarCache {
	return &avatarCache{badges: make(map[string]string)}
}

func (c *avatarCache) get(author string, self bool) string {
	switch {
	case self:
		return selfAvatar
	case author == protocol.SystemAuthor:
		return systemAvatar
	}
	if badge, ok := c.badges[author]; ok {
		return badge
	}
	badge := renderAvatar(author)
	c.badges[author] = badge
	return badge
}

func (c *avatarCache) len() int {
	return len(c.badges)
}

func renderAvatar(author string) string {
	initial := "?"
	if r, _ := utf8.DecodeRuneInString(author); r != utf8.RuneError && !unicode.IsSpace(r) {
		initial = strings.ToUpper(string(r))
	}
	h := fnv.New32a()
	h.Write([]byte(author))
	color := avatarPalette[h.Sum32()%uint32(len(avatarPalette))]
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(color).
		Render(" " + initial + "  ")
}
