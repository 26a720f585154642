package discord

import (
	"strings"

	"github.com/rbrabson/chronicles/pkg/msg"
)

// memberHelp gets help about member commands from all cogs.
func (b *Bot) memberHelp() string {
	var sb strings.Builder
	for _, cog := range b.cogs {
		writeHelp(&sb, cog.GetMemberHelp())
	}
	writeHelp(&sb, msg.Help("Pomoc", helpCommand))
	return sb.String()
}

// adminHelp returns help about administrative commands for all cogs.
func (b *Bot) adminHelp() string {
	var sb strings.Builder
	sb.WriteString("__**Komendy administracyjne**__\n")
	for _, cog := range b.cogs {
		writeHelp(&sb, cog.GetAdminHelp())
	}
	return sb.String()
}

func writeHelp(sb *strings.Builder, lines []string) {
	if len(lines) == 0 {
		return
	}
	if sb.Len() != 0 {
		sb.WriteString("\n")
	}
	for _, line := range lines {
		sb.WriteString(line)
	}
}
