package msg

import (
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"
)

// Help returns one line per command, or per sub-command for commands that group them, headed
// by the title.
func Help(title string, commands ...*discordgo.ApplicationCommand) []string {
	help := make([]string, 0, len(commands))
	for _, command := range commands {
		subcommands := 0
		for _, option := range command.Options {
			if option.Type == discordgo.ApplicationCommandOptionSubCommand {
				help = append(help, fmt.Sprintf("- **/%s %s**:  %s\n", command.Name, option.Name, option.Description))
				subcommands++
			}
		}
		if subcommands == 0 {
			help = append(help, fmt.Sprintf("- **/%s**:  %s\n", command.Name, command.Description))
		}
	}
	sort.Strings(help)
	return append([]string{"**" + title + "**\n"}, help...)
}
