package msg

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Printer returns a printer for the locale of the interaction, falling back to Polish.
func Printer(i *discordgo.InteractionCreate) *message.Printer {
	return PrinterFor(string(i.Locale))
}

// PrinterFor returns a printer for the locale.
func PrinterFor(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		log.WithField("locale", locale).Debug("unable to parse locale, using Polish")
		tag = language.Polish
	}
	return message.NewPrinter(tag)
}

// Table renders the rows as a borderless, left aligned text table for a code block.
func Table(header []string, rows [][]string) string {
	var tableBuffer strings.Builder
	table := tablewriter.NewWriter(&tableBuffer)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
	return tableBuffer.String()
}

// MemberName returns the name to show for a member.
func MemberName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		if m.User.GlobalName != "" {
			return m.User.GlobalName
		}
		return m.User.Username
	}
	return ""
}

// Invoker returns the member that issued the interaction.
func Invoker(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
