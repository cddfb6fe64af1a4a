package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omochice/linechat/internal/chat"
)

func TestSession(t *testing.T) {
	s := chat.NewSession("")
	assert.Equal(t, "", s.Username())
	assert.False(t, s.IsSelf(""), "unset name matches nobody")

	s.SetUsername("alice")
	assert.Equal(t, "alice", s.Username())
	assert.True(t, s.IsSelf("alice"))
	assert.False(t, s.IsSelf("bob"))
}
