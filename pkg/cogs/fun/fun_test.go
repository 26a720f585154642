package fun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInviteURL(t *testing.T) {
	assert.Equal(t, "https://discord.com/oauth2/authorize?client_id=42&scope=bot%20applications.commands", InviteURL("42"))
}

func TestHelpHidesWhisper(t *testing.T) {
	help := New("42", nil).GetMemberHelp()
	assert.Len(t, help, 3)
	for _, line := range help {
		assert.NotContains(t, line, "szept")
	}
}

func TestRollStaysInRange(t *testing.T) {
	c := New("42", nil)
	for range 100 {
		v := c.roll(6)
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, 6)
	}
}
