package economy

import (
	"strings"
	"testing"

	"github.com/rbrabson/chronicles/pkg/msg"
	"github.com/rbrabson/chronicles/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRanking(t *testing.T) {
	p := msg.PrinterFor("en-US")
	embeds := formatRanking(p, "Ranking", []rankingEntry{{name: "Ala", balance: 1500}, {name: "Ola", balance: 20}})
	require.Len(t, embeds, 1)
	value := embeds[0].Fields[0].Value
	assert.Contains(t, value, "Ala")
	assert.Contains(t, value, "1,500")
	assert.Less(t, strings.Index(value, "Ala"), strings.Index(value, "Ola"))

	empty := formatRanking(p, "Ranking", nil)
	assert.NotContains(t, empty[0].Fields[0].Value, "```")
}

func TestCurrencyName(t *testing.T) {
	assert.Equal(t, "Dukaty", CurrencyName(store.Primary))
	assert.Equal(t, "Gwiezdne Kryształy", CurrencyName(store.Premium))
}
