package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbrabson/chronicles/pkg/cycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Len(t, c.Missions, 7)
	assert.Len(t, c.ShopItems, 5)
	assert.Len(t, c.Packages, 3)
	assert.Equal(t, cycle.Schedule{DailyHour: 4, WeeklyDay: time.Monday, WeeklyHour: 4}, c.Schedule())
	assert.Equal(t, 22*time.Hour, c.Daily.Cooldown())

	m, ok := c.Mission("tygodniowa_aktywnosc_duza")
	require.True(t, ok)
	assert.Equal(t, cycle.Weekly, m.Recurrence)
	assert.Equal(t, int64(5), m.Rewards.Premium)

	p, ok := c.Package("krysztaly_pakiet_550")
	require.True(t, ok)
	assert.Equal(t, int64(550), p.Amount)

	categories := c.CategoriesFor(MetricMessages)
	require.Len(t, categories, 1)
	assert.Len(t, categories[0].Tiers, 4)
}

func TestMissionWithoutConditionsIsRejected(t *testing.T) {
	_, err := ParseCatalog([]byte(`
missions:
  - id: empty
    name: Empty
    recurrence: daily
    conditions: []
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCatalog)
	assert.Contains(t, err.Error(), `"empty" has no conditions`)
}

func TestInvalidCatalogReportsEveryProblem(t *testing.T) {
	_, err := ParseCatalog([]byte(`
schedule:
  weekly_weekday: someday
missions:
  - id: a
    recurrence: monthly
    conditions:
      - type: messages_since_reset
        required: 0
  - id: a
    recurrence: daily
    conditions:
      - type: teleports
        required: 1
achievements:
  - id: lonely
    metric: messages
    tiers: []
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCatalog)
	for _, want := range []string{
		`unknown weekday "someday"`,
		`unknown recurrence "monthly"`,
		`must require a positive value`,
		`duplicate mission id "a"`,
		`unknown condition type "teleports"`,
		`"lonely" has no tiers`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadCatalogFallsBackToDefault(t *testing.T) {
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, c.Missions)
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schedule:
  daily_hour_utc: 6
  weekly_weekday: sunday
  weekly_hour_utc: 0
missions:
  - id: chatty
    name: Chatty
    recurrence: daily
    conditions:
      - type: messages_since_reset
        required: 3
    rewards: {xp: 10}
`), 0644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, cycle.Schedule{DailyHour: 6, WeeklyDay: time.Sunday, WeeklyHour: 0}, c.Schedule())
	assert.Equal(t, int64(50), c.Daily.Amount, "unset sections keep their defaults")
	require.Len(t, c.Missions, 1)
	assert.Equal(t, int64(3), c.Missions[0].Conditions[0].Required)
}
