package msg

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestTable(t *testing.T) {
	out := Table([]string{"#", "Name"}, [][]string{{"1", "Ala"}, {"2", "Ola"}})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Ala")
	assert.Contains(t, lines[2], "Ola")
}

func TestPrinterFallsBackToPolish(t *testing.T) {
	p := PrinterFor("not a locale!")
	assert.NotEqual(t, "1,000", p.Sprintf("%d", 1000))
	assert.Equal(t, "1,000", PrinterFor("en-US").Sprintf("%d", 1000))
}

func TestMemberName(t *testing.T) {
	user := &discordgo.User{ID: "1", Username: "ala"}
	assert.Equal(t, "ala", MemberName(&discordgo.Member{User: user}))
	assert.Equal(t, "Ala K.", MemberName(&discordgo.Member{User: user, Nick: "Ala K."}))
	assert.Equal(t, "", MemberName(nil))

	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Member: &discordgo.Member{User: user}}}
	assert.Equal(t, "1", Invoker(i).ID)
}

func TestHelp(t *testing.T) {
	help := Help("Sklep",
		&discordgo.ApplicationCommand{Name: "inventory", Description: "Ekwipunek"},
		&discordgo.ApplicationCommand{Name: "shop", Options: []*discordgo.ApplicationCommandOption{
			{Name: "list", Description: "Lista", Type: discordgo.ApplicationCommandOptionSubCommand},
			{Name: "buy", Description: "Kup", Type: discordgo.ApplicationCommandOptionSubCommand},
		}},
	)
	assert.Equal(t, []string{
		"**Sklep**\n",
		"- **/inventory**:  Ekwipunek\n",
		"- **/shop buy**:  Kup\n",
		"- **/shop list**:  Lista\n",
	}, help)
}
