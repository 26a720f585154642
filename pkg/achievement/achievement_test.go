package achievement

import (
	"context"
	"testing"
	"time"

	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRewarder struct {
	rewards []config.Rewards
}

func (f *fakeRewarder) Reward(ctx context.Context, guildID, memberID string, r config.Rewards) error {
	f.rewards = append(f.rewards, r)
	return nil
}

const testCatalog = `
achievements:
  - id: slowa
    name: Słowa
    metric: messages
    tiers:
      - {id: msg_10, name: Bravo, threshold: 10, rewards: {xp: 25, primary: 20}}
      - {id: msg_50, name: Alpha, threshold: 50, rewards: {xp: 75}}
  - id: sekret
    name: Sekret
    metric: messages
    hidden: true
    tiers:
      - {id: secret_msgs, name: Charlie, threshold: 5}
  - id: szept
    name: Szept
    metric: special_command
    hidden: true
    tiers:
      - {id: whisper, name: Delta, threshold: 1, rewards: {primary: 100}}
  - id: inwestor
    name: Inwestor
    metric: premium_purchase
    tiers:
      - {id: first_purchase, name: Echo, threshold: 1}
  - id: kanal
    name: Kanał
    metric: channel_messages
    scope: "123"
    tiers:
      - {id: channel_3, name: Foxtrot, threshold: 3}
`

func setup(t *testing.T) (*Evaluator, *Granter, *fakeRewarder, store.Store) {
	t.Helper()
	catalog, err := config.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	s := store.NewMemoryStore()
	r := &fakeRewarder{}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return NewEvaluator(s, catalog), NewGranter(s, catalog, r, WithClock(func() time.Time { return now })), r, s
}

func byTier(statuses []*TierStatus) map[string]*TierStatus {
	m := make(map[string]*TierStatus, len(statuses))
	for _, s := range statuses {
		m[s.TierID] = s
	}
	return m
}

func TestHiddenTierProgressIsConcealed(t *testing.T) {
	ctx := context.Background()
	evaluator, _, _, s := setup(t)

	_, err := s.IncrementStats(ctx, "g", "m", store.StatsDelta{Messages: 30})
	require.NoError(t, err)

	statuses, err := evaluator.Evaluate(ctx, "g", "m")
	require.NoError(t, err)
	tiers := byTier(statuses)

	assert.False(t, tiers["secret_msgs"].Unlocked)
	assert.Nil(t, tiers["secret_msgs"].Progress)
	assert.Nil(t, tiers["whisper"].Progress)

	require.NotNil(t, tiers["msg_10"].Progress)
	assert.Equal(t, int64(10), *tiers["msg_10"].Progress)
	assert.Equal(t, int64(30), *tiers["msg_50"].Progress)

	// Evaluating never unlocks anything.
	unlocks, err := s.ListUnlocks(ctx, "g", "m")
	require.NoError(t, err)
	assert.Empty(t, unlocks)
}

func TestEvaluateOrdering(t *testing.T) {
	ctx := context.Background()
	evaluator, granter, _, s := setup(t)

	_, err := s.IncrementStats(ctx, "g", "m", store.StatsDelta{Messages: 12, Channel: "123"})
	require.NoError(t, err)
	_, err = granter.CheckAndGrant(ctx, "g", "m", config.MetricMessages)
	require.NoError(t, err)

	statuses, err := evaluator.Evaluate(ctx, "g", "m")
	require.NoError(t, err)
	var names []string
	for _, s := range statuses {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Bravo", "Charlie", "Alpha", "Delta", "Echo", "Foxtrot"}, names)
	assert.True(t, statuses[0].Unlocked)
	assert.NotNil(t, statuses[0].UnlockedAt)
	assert.Nil(t, statuses[0].Progress)

	tiers := byTier(statuses)
	assert.Equal(t, int64(3), *tiers["channel_3"].Progress)
}

func TestCheckAndGrantIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, granter, rewarder, s := setup(t)

	_, err := s.IncrementStats(ctx, "g", "m", store.StatsDelta{Messages: 9})
	require.NoError(t, err)
	unlocked, err := granter.CheckAndGrant(ctx, "g", "m", config.MetricMessages)
	require.NoError(t, err)
	assert.Equal(t, []string{"secret_msgs"}, unlocked)

	_, err = s.IncrementStats(ctx, "g", "m", store.StatsDelta{Messages: 1})
	require.NoError(t, err)
	unlocked, err = granter.CheckAndGrant(ctx, "g", "m", config.MetricMessages)
	require.NoError(t, err)
	assert.Equal(t, []string{"msg_10"}, unlocked)

	unlocked, err = granter.CheckAndGrant(ctx, "g", "m", config.MetricMessages)
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	require.Len(t, rewarder.rewards, 2)
	assert.Equal(t, config.Rewards{XP: 25, Primary: 20}, rewarder.rewards[1])

	unlocked, err = granter.CheckAndGrant(ctx, "g", "m", config.MetricContestWins)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestGrantBinaryMetric(t *testing.T) {
	ctx := context.Background()
	_, granter, rewarder, _ := setup(t)

	unlocked, err := granter.Grant(ctx, "g", "m", config.MetricSpecialCommand)
	require.NoError(t, err)
	assert.Equal(t, []string{"whisper"}, unlocked)
	unlocked, err = granter.Grant(ctx, "g", "m", config.MetricSpecialCommand)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
	assert.Len(t, rewarder.rewards, 1)

	_, err = granter.Grant(ctx, "g", "m", config.MetricMessages)
	assert.ErrorIs(t, err, ErrNotBinary)
}

func TestPremiumPurchaseFromTransactions(t *testing.T) {
	ctx := context.Background()
	evaluator, granter, _, s := setup(t)

	statuses, err := evaluator.Evaluate(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(0), *byTier(statuses)["first_purchase"].Progress)

	require.NoError(t, s.InsertTransaction(ctx, &store.Transaction{
		ID: "tx", GuildID: "g", MemberID: "m", Kind: store.TxPremiumPackage, Currency: store.Premium, Amount: 100, ExternalID: "ext",
	}))
	statuses, err = evaluator.Evaluate(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(1), *byTier(statuses)["first_purchase"].Progress)

	unlocked, err := granter.CheckAndGrant(ctx, "g", "m", config.MetricPremiumPurchase)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_purchase"}, unlocked)
}
