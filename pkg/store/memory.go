package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ledger is the complete in-memory state. Its fields are exported so it can be snapshotted.
type ledger struct {
	Wallets      map[string]*Wallet            `json:"wallets"`
	Items        map[string]*ShopItem          `json:"items"`
	Possessions  []*Possession                 `json:"possessions"`
	RoleGrants   map[string]*RoleGrant         `json:"role_grants"`
	Transactions []*Transaction                `json:"transactions"`
	Progress     map[string]*MissionProgress   `json:"progress"`
	Completions  map[string]*MissionCompletion `json:"completions"`
	Unlocks      map[string]*AchievementUnlock `json:"unlocks"`
	Stats        map[string]*MemberStats       `json:"stats"`
	Warnings     map[string]*Warning           `json:"warnings"`
}

func newLedger() *ledger {
	l := &ledger{}
	l.init()
	return l
}

// init allocates any map left nil, e.g. after loading an older snapshot.
func (l *ledger) init() {
	if l.Wallets == nil {
		l.Wallets = make(map[string]*Wallet)
	}
	if l.Items == nil {
		l.Items = make(map[string]*ShopItem)
	}
	if l.RoleGrants == nil {
		l.RoleGrants = make(map[string]*RoleGrant)
	}
	if l.Progress == nil {
		l.Progress = make(map[string]*MissionProgress)
	}
	if l.Completions == nil {
		l.Completions = make(map[string]*MissionCompletion)
	}
	if l.Unlocks == nil {
		l.Unlocks = make(map[string]*AchievementUnlock)
	}
	if l.Stats == nil {
		l.Stats = make(map[string]*MemberStats)
	}
	if l.Warnings == nil {
		l.Warnings = make(map[string]*Warning)
	}
}

// memoryStore is a Store that keeps everything in process memory. All operations are
// serialized by a single mutex, which makes every operation atomic.
type memoryStore struct {
	mu       sync.Mutex
	data     *ledger
	snapshot *snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() Store {
	return &memoryStore{data: newLedger()}
}

// commit runs after every mutation while the lock is held. When the snapshot cannot be
// written the ledger is put back to the last saved state and the mutation fails.
func (m *memoryStore) commit() error {
	if m.snapshot == nil {
		return nil
	}
	err := m.snapshot.save(m.data)
	if err == nil {
		return nil
	}
	if l, rerr := m.snapshot.restore(); rerr == nil {
		m.data = l
	} else {
		log.WithField("error", rerr).Error("unable to restore the ledger from the last snapshot")
	}
	return fmt.Errorf("%w: saving snapshot: %v", ErrUnavailable, err)
}

func (m *memoryStore) Ping(ctx context.Context) error  { return nil }
func (m *memoryStore) Close(ctx context.Context) error { return nil }

func (m *memoryStore) wallet(guildID, memberID string) *Wallet {
	key := walletKey(guildID, memberID)
	w, ok := m.data.Wallets[key]
	if !ok {
		w = &Wallet{GuildID: guildID, MemberID: memberID, CreatedAt: time.Now().UTC()}
		m.data.Wallets[key] = w
	}
	return w
}

func (m *memoryStore) GetWallet(ctx context.Context, guildID, memberID string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.data.Wallets[walletKey(guildID, memberID)]
	w := m.wallet(guildID, memberID)
	if !existed {
		if err := m.commit(); err != nil {
			return nil, err
		}
	}
	out := *w
	return &out, nil
}

func (m *memoryStore) AdjustWallet(ctx context.Context, guildID, memberID string, currency Currency, delta int64) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallet(guildID, memberID)
	balance := balanceField(w, currency)
	if *balance+delta < 0 {
		return nil, ErrInsufficientFunds
	}
	*balance += delta
	if err := m.commit(); err != nil {
		return nil, err
	}
	out := *w
	return &out, nil
}

func (m *memoryStore) SetWallet(ctx context.Context, guildID, memberID string, currency Currency, amount int64) (*Wallet, error) {
	if amount < 0 {
		return nil, ErrInsufficientFunds
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallet(guildID, memberID)
	*balanceField(w, currency) = amount
	if err := m.commit(); err != nil {
		return nil, err
	}
	out := *w
	return &out, nil
}

func (m *memoryStore) ListWallets(ctx context.Context, guildID string) ([]*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wallets := make([]*Wallet, 0, len(m.data.Wallets))
	for _, w := range m.data.Wallets {
		if w.GuildID == guildID {
			out := *w
			wallets = append(wallets, &out)
		}
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].MemberID < wallets[j].MemberID })
	return wallets, nil
}

func balanceField(w *Wallet, currency Currency) *int64 {
	if currency == Premium {
		return &w.Premium
	}
	return &w.Primary
}

func (m *memoryStore) GetItem(ctx context.Context, itemID string) (*ShopItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.data.Items[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *item
	return &out, nil
}

func (m *memoryStore) InsertItem(ctx context.Context, item *ShopItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.Items[item.ID]; ok {
		return ErrConflict
	}
	out := *item
	m.data.Items[item.ID] = &out
	return m.commit()
}

func (m *memoryStore) ReplaceItem(ctx context.Context, item *ShopItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.Items[item.ID]; !ok {
		return ErrNotFound
	}
	out := *item
	m.data.Items[item.ID] = &out
	return m.commit()
}

func (m *memoryStore) DeleteItem(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.Items[itemID]; !ok {
		return ErrNotFound
	}
	delete(m.data.Items, itemID)
	return m.commit()
}

func (m *memoryStore) ListItems(ctx context.Context) ([]*ShopItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]*ShopItem, 0, len(m.data.Items))
	for _, item := range m.data.Items {
		out := *item
		items = append(items, &out)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *memoryStore) SettlePurchase(ctx context.Context, debit Debit) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.data.Items[debit.ItemID]
	if !ok {
		return nil, ErrNotFound
	}
	if item.Stock != UnlimitedStock && item.Stock <= 0 {
		return nil, ErrOutOfStock
	}
	w := m.wallet(debit.GuildID, debit.MemberID)
	balance := balanceField(w, debit.Currency)
	if *balance < debit.Cost {
		return nil, ErrInsufficientFunds
	}
	*balance -= debit.Cost
	if item.Stock != UnlimitedStock {
		item.Stock--
	}
	if p := debit.Possession; p != nil {
		out := *p
		m.data.Possessions = append(m.data.Possessions, &out)
	}
	if g := debit.RoleGrant; g != nil {
		out := *g
		m.data.RoleGrants[g.Key()] = &out
	}
	if tx := debit.Transaction; tx != nil {
		tx.PrimaryAfter, tx.PremiumAfter = w.Primary, w.Premium
		out := *tx
		m.data.Transactions = append(m.data.Transactions, &out)
	}
	if err := m.commit(); err != nil {
		return nil, err
	}
	out := *w
	return &out, nil
}

func (m *memoryStore) InsertPossession(ctx context.Context, p *Possession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.Possessions {
		if existing.ID == p.ID {
			return ErrConflict
		}
	}
	out := *p
	m.data.Possessions = append(m.data.Possessions, &out)
	return m.commit()
}

func (m *memoryStore) ListPossessions(ctx context.Context, guildID, memberID string) ([]*Possession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var possessions []*Possession
	for _, p := range m.data.Possessions {
		if p.GuildID == guildID && p.MemberID == memberID {
			out := *p
			possessions = append(possessions, &out)
		}
	}
	return possessions, nil
}

func (m *memoryStore) UpsertRoleGrant(ctx context.Context, g *RoleGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *g
	m.data.RoleGrants[g.Key()] = &out
	return m.commit()
}

func (m *memoryStore) ListExpiredRoleGrants(ctx context.Context, now time.Time) ([]*RoleGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var grants []*RoleGrant
	for _, g := range m.data.RoleGrants {
		if !g.ExpiresAt.After(now) {
			out := *g
			grants = append(grants, &out)
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].ExpiresAt.Before(grants[j].ExpiresAt) })
	return grants, nil
}

func (m *memoryStore) DeleteRoleGrant(ctx context.Context, g *RoleGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.RoleGrants[g.Key()]; !ok {
		return ErrNotFound
	}
	delete(m.data.RoleGrants, g.Key())
	return m.commit()
}

func (m *memoryStore) InsertTransaction(ctx context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ExternalID != "" {
		for _, existing := range m.data.Transactions {
			if existing.ExternalID == tx.ExternalID {
				return ErrConflict
			}
		}
	}
	out := *tx
	m.data.Transactions = append(m.data.Transactions, &out)
	return m.commit()
}

func (m *memoryStore) ListTransactions(ctx context.Context, guildID, memberID string) ([]*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []*Transaction
	for _, tx := range m.data.Transactions {
		if tx.GuildID == guildID && tx.MemberID == memberID {
			out := *tx
			txs = append(txs, &out)
		}
	}
	return txs, nil
}

func (m *memoryStore) progress(key ProgressKey, now time.Time) (*MissionProgress, bool) {
	p, ok := m.data.Progress[key.String()]
	if !ok {
		p = &MissionProgress{ProgressKey: key, UpdatedAt: now}
		m.data.Progress[key.String()] = p
	}
	return p, !ok
}

func (m *memoryStore) GetOrCreateProgress(ctx context.Context, key ProgressKey, now time.Time) (*MissionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, created := m.progress(key, now)
	if created {
		if err := m.commit(); err != nil {
			return nil, err
		}
	}
	out := *p
	return &out, nil
}

func (m *memoryStore) IncrementProgress(ctx context.Context, key ProgressKey, delta int64, now time.Time) (*MissionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, _ := m.progress(key, now)
	p.Value += delta
	p.UpdatedAt = now
	if err := m.commit(); err != nil {
		return nil, err
	}
	out := *p
	return &out, nil
}

func (m *memoryStore) RaiseProgress(ctx context.Context, key ProgressKey, value int64, now time.Time) (*MissionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, created := m.progress(key, now)
	if value > p.Value {
		p.Value = value
		p.UpdatedAt = now
	} else if !created {
		out := *p
		return &out, nil
	}
	if err := m.commit(); err != nil {
		return nil, err
	}
	out := *p
	return &out, nil
}

func (m *memoryStore) InsertCompletion(ctx context.Context, c *MissionCompletion) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.Completions[c.Key()]; ok {
		return false, nil
	}
	out := *c
	m.data.Completions[c.Key()] = &out
	if err := m.commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memoryStore) CompletionExists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data.Completions[key]
	return ok, nil
}

func (m *memoryStore) ListCompletions(ctx context.Context, guildID, memberID string) ([]*MissionCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var completions []*MissionCompletion
	for _, c := range m.data.Completions {
		if c.GuildID == guildID && c.MemberID == memberID {
			out := *c
			completions = append(completions, &out)
		}
	}
	sort.Slice(completions, func(i, j int) bool { return completions[i].CompletedAt.After(completions[j].CompletedAt) })
	return completions, nil
}

func (m *memoryStore) InsertUnlock(ctx context.Context, u *AchievementUnlock) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.Unlocks[u.Key()]; ok {
		return false, nil
	}
	out := *u
	m.data.Unlocks[u.Key()] = &out
	if err := m.commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memoryStore) ListUnlocks(ctx context.Context, guildID, memberID string) ([]*AchievementUnlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var unlocks []*AchievementUnlock
	for _, u := range m.data.Unlocks {
		if u.GuildID == guildID && u.MemberID == memberID {
			out := *u
			unlocks = append(unlocks, &out)
		}
	}
	sort.Slice(unlocks, func(i, j int) bool { return unlocks[i].UnlockedAt.Before(unlocks[j].UnlockedAt) })
	return unlocks, nil
}

func (m *memoryStore) stats(guildID, memberID string) *MemberStats {
	key := walletKey(guildID, memberID)
	s, ok := m.data.Stats[key]
	if !ok {
		s = &MemberStats{GuildID: guildID, MemberID: memberID}
		m.data.Stats[key] = s
	}
	if s.CommandUsage == nil {
		s.CommandUsage = make(map[string]int64)
	}
	if s.ChannelMessages == nil {
		s.ChannelMessages = make(map[string]int64)
	}
	if s.Cooldowns == nil {
		s.Cooldowns = make(map[string]time.Time)
	}
	return s
}

func cloneStats(s *MemberStats) *MemberStats {
	out := *s
	out.CommandUsage = make(map[string]int64, len(s.CommandUsage))
	for k, v := range s.CommandUsage {
		out.CommandUsage[k] = v
	}
	out.ChannelMessages = make(map[string]int64, len(s.ChannelMessages))
	for k, v := range s.ChannelMessages {
		out.ChannelMessages[k] = v
	}
	out.Cooldowns = make(map[string]time.Time, len(s.Cooldowns))
	for k, v := range s.Cooldowns {
		out.Cooldowns[k] = v
	}
	return &out
}

func (m *memoryStore) GetStats(ctx context.Context, guildID, memberID string) (*MemberStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data.Stats[walletKey(guildID, memberID)]
	if !ok {
		s = &MemberStats{GuildID: guildID, MemberID: memberID}
	}
	return cloneStats(s), nil
}

func (m *memoryStore) ListStats(ctx context.Context, guildID string) ([]*MemberStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats []*MemberStats
	for _, s := range m.data.Stats {
		if s.GuildID == guildID {
			stats = append(stats, cloneStats(s))
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].MemberID < stats[j].MemberID })
	return stats, nil
}

func (m *memoryStore) IncrementStats(ctx context.Context, guildID, memberID string, delta StatsDelta) (*MemberStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats(guildID, memberID)
	s.XP += delta.XP
	s.Messages += delta.Messages
	s.Reactions += delta.Reactions
	s.VoiceSeconds += delta.VoiceSeconds
	s.ContestWins += delta.ContestWins
	if delta.Category != "" {
		s.CommandUsage[delta.Category]++
	}
	if delta.Channel != "" && delta.Messages > 0 {
		s.ChannelMessages[delta.Channel] += delta.Messages
	}
	if err := m.commit(); err != nil {
		return nil, err
	}
	return cloneStats(s), nil
}

func (m *memoryStore) RaiseLevel(ctx context.Context, guildID, memberID string, level int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats(guildID, memberID)
	previous := s.Level
	if level > previous {
		s.Level = level
		if err := m.commit(); err != nil {
			return 0, err
		}
	}
	return previous, nil
}

func (m *memoryStore) RecordActiveDay(ctx context.Context, guildID, memberID string, day time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats(guildID, memberID)
	day = truncateDay(day)
	switch {
	case s.LastActiveDay.Equal(day):
		return s.Streak, nil
	case s.LastActiveDay.AddDate(0, 0, 1).Equal(day):
		s.Streak++
	default:
		s.Streak = 1
	}
	s.LastActiveDay = day
	if err := m.commit(); err != nil {
		return 0, err
	}
	return s.Streak, nil
}

func (m *memoryStore) TouchCooldown(ctx context.Context, guildID, memberID, name string, now time.Time, cooldown time.Duration) (bool, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats(guildID, memberID)
	if last, ok := s.Cooldowns[name]; ok && now.Sub(last) < cooldown {
		return false, last.Add(cooldown), nil
	}
	s.Cooldowns[name] = now
	if err := m.commit(); err != nil {
		return false, time.Time{}, err
	}
	return true, time.Time{}, nil
}

func (m *memoryStore) InsertWarning(ctx context.Context, w *Warning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.Warnings[w.ID]; ok {
		return ErrConflict
	}
	out := *w
	m.data.Warnings[w.ID] = &out
	return m.commit()
}

func (m *memoryStore) DeleteWarning(ctx context.Context, warnID string) (*Warning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.data.Warnings[warnID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.data.Warnings, warnID)
	if err := m.commit(); err != nil {
		return nil, err
	}
	return w, nil
}

func (m *memoryStore) ListWarnings(ctx context.Context, guildID, memberID string) ([]*Warning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var warnings []*Warning
	for _, w := range m.data.Warnings {
		if w.GuildID == guildID && w.MemberID == memberID {
			out := *w
			warnings = append(warnings, &out)
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].CreatedAt.Before(warnings[j].CreatedAt) })
	return warnings, nil
}

// truncateDay returns midnight UTC of the day containing t.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
