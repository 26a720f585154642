package economy

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/rbrabson/chronicles/pkg/msg"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/message"
)

const rankingSize = 10

type rankingEntry struct {
	name    string
	balance int64
}

// memberName returns the server name of the member, or the id when Discord does not know it.
func memberName(s *discordgo.Session, guildID, memberID string) string {
	if member, err := s.State.Member(guildID, memberID); err == nil {
		return msg.MemberName(member)
	}
	member, err := s.GuildMember(guildID, memberID)
	if err != nil {
		log.WithFields(log.Fields{"member": memberID, "error": err}).Debug("unable to look up member")
		return memberID
	}
	return msg.MemberName(member)
}

// formatRanking formats the ranking to be sent to a Discord server
func formatRanking(p *message.Printer, title string, entries []rankingEntry) []*discordgo.MessageEmbed {
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, []string{strconv.Itoa(i + 1), entry.name, p.Sprintf("%d", entry.balance)})
	}
	value := "Nikt jeszcze nic nie zgromadził."
	if len(rows) != 0 {
		value = p.Sprintf("```\n%s```\n", msg.Table([]string{"#", "Imię", "Saldo"}, rows))
	}
	return []*discordgo.MessageEmbed{
		{
			Type:   discordgo.EmbedTypeRich,
			Title:  title,
			Fields: []*discordgo.MessageEmbedField{{Name: p.Sprintf("Top %d", rankingSize), Value: value}},
		},
	}
}
