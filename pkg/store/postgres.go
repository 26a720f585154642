package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	log "github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
	guild_id        TEXT NOT NULL,
	member_id       TEXT NOT NULL,
	primary_balance BIGINT NOT NULL DEFAULT 0 CHECK (primary_balance >= 0),
	premium_balance BIGINT NOT NULL DEFAULT 0 CHECK (premium_balance >= 0),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (guild_id, member_id)
);
CREATE TABLE IF NOT EXISTS shop_items (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	cost_primary     BIGINT,
	cost_premium     BIGINT,
	emoji            TEXT NOT NULL DEFAULT '',
	item_type        TEXT NOT NULL,
	bonus_value      DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_seconds BIGINT,
	role_id          TEXT NOT NULL DEFAULT '',
	stock            BIGINT NOT NULL DEFAULT -1
);
CREATE TABLE IF NOT EXISTS possessions (
	id           TEXT PRIMARY KEY,
	guild_id     TEXT NOT NULL,
	member_id    TEXT NOT NULL,
	item_id      TEXT NOT NULL,
	purchased_at TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ,
	bonus_type   TEXT NOT NULL,
	bonus_value  DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS possessions_member_idx ON possessions (guild_id, member_id);
CREATE TABLE IF NOT EXISTS role_grants (
	guild_id   TEXT NOT NULL,
	member_id  TEXT NOT NULL,
	role_id    TEXT NOT NULL,
	item_id    TEXT NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (guild_id, member_id, role_id, item_id)
);
CREATE TABLE IF NOT EXISTS transactions (
	id            TEXT PRIMARY KEY,
	guild_id      TEXT NOT NULL,
	member_id     TEXT NOT NULL,
	kind          TEXT NOT NULL,
	item_id       TEXT NOT NULL DEFAULT '',
	currency      TEXT NOT NULL,
	amount        BIGINT NOT NULL,
	primary_after BIGINT NOT NULL,
	premium_after BIGINT NOT NULL,
	external_id   TEXT,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS transactions_external_idx ON transactions (external_id) WHERE external_id IS NOT NULL;
CREATE TABLE IF NOT EXISTS mission_progress (
	guild_id    TEXT NOT NULL,
	member_id   TEXT NOT NULL,
	mission_id  TEXT NOT NULL,
	condition   TEXT NOT NULL,
	cycle_start TIMESTAMPTZ NOT NULL,
	value       BIGINT NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (guild_id, member_id, mission_id, condition, cycle_start)
);
CREATE TABLE IF NOT EXISTS mission_completions (
	completion_key TEXT PRIMARY KEY,
	guild_id       TEXT NOT NULL,
	member_id      TEXT NOT NULL,
	mission_id     TEXT NOT NULL,
	one_time       BOOLEAN NOT NULL,
	cycle_start    TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS mission_completions_member_idx ON mission_completions (guild_id, member_id);
CREATE TABLE IF NOT EXISTS achievement_unlocks (
	guild_id    TEXT NOT NULL,
	member_id   TEXT NOT NULL,
	tier_id     TEXT NOT NULL,
	unlocked_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (guild_id, member_id, tier_id)
);
CREATE TABLE IF NOT EXISTS member_stats (
	guild_id        TEXT NOT NULL,
	member_id       TEXT NOT NULL,
	xp              BIGINT NOT NULL DEFAULT 0,
	level           BIGINT NOT NULL DEFAULT 0,
	messages        BIGINT NOT NULL DEFAULT 0,
	reactions       BIGINT NOT NULL DEFAULT 0,
	voice_seconds   BIGINT NOT NULL DEFAULT 0,
	contest_wins    BIGINT NOT NULL DEFAULT 0,
	streak          BIGINT NOT NULL DEFAULT 0,
	last_active_day TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	PRIMARY KEY (guild_id, member_id)
);
CREATE TABLE IF NOT EXISTS member_counters (
	guild_id  TEXT NOT NULL,
	member_id TEXT NOT NULL,
	scope     TEXT NOT NULL,
	name      TEXT NOT NULL,
	value     BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (guild_id, member_id, scope, name)
);
CREATE TABLE IF NOT EXISTS member_cooldowns (
	guild_id  TEXT NOT NULL,
	member_id TEXT NOT NULL,
	name      TEXT NOT NULL,
	used_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (guild_id, member_id, name)
);
CREATE TABLE IF NOT EXISTS warnings (
	id           TEXT PRIMARY KEY,
	guild_id     TEXT NOT NULL,
	member_id    TEXT NOT NULL,
	moderator_id TEXT NOT NULL,
	reason       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS warnings_member_idx ON warnings (guild_id, member_id);
`

const (
	scopeCommand = "command"
	scopeChannel = "channel"
)

// postgresStore is a Store backed by PostgreSQL. Conditional updates enforce the balance
// and stock rules inside the database.
type postgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and creates the schema if needed.
func NewPostgresStore(ctx context.Context, url string) (Store, error) {
	log.Trace("--> NewPostgresStore")
	defer log.Trace("<-- NewPostgresStore")

	if url == "" {
		return nil, errors.New("you must set your 'DATABASE_URL' environmental variable")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: unable to ping the database: %v", ErrUnavailable, err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: unable to create the schema: %v", ErrUnavailable, err)
	}
	log.Info("connected to PostgreSQL")
	return &postgresStore{db: pool}, nil
}

func (p *postgresStore) Ping(ctx context.Context) error {
	return pgErr(p.db.Ping(ctx))
}

func (p *postgresStore) Close(ctx context.Context) error {
	p.db.Close()
	return nil
}

// pgErr maps driver errors onto the store error kinds.
func pgErr(err error) error {
	var pgError *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case errors.As(err, &pgError) && pgError.Code == "23505":
		return ErrConflict
	case errors.As(err, &pgError) && pgError.Code == "23514":
		return ErrInsufficientFunds
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func balanceColumn(c Currency) string {
	if c == Premium {
		return "premium_balance"
	}
	return "primary_balance"
}

const walletColumns = `guild_id, member_id, primary_balance, premium_balance, created_at`

func scanWallet(row pgx.Row) (*Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.GuildID, &w.MemberID, &w.Primary, &w.Premium, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func ensureWallet(ctx context.Context, q querier, guildID, memberID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO wallets (guild_id, member_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, guildID, memberID)
	return err
}

func (p *postgresStore) GetWallet(ctx context.Context, guildID, memberID string) (*Wallet, error) {
	if err := ensureWallet(ctx, p.db, guildID, memberID); err != nil {
		return nil, pgErr(err)
	}
	w, err := scanWallet(p.db.QueryRow(ctx, `
		SELECT `+walletColumns+` FROM wallets WHERE guild_id = $1 AND member_id = $2
	`, guildID, memberID))
	return w, pgErr(err)
}

func (p *postgresStore) AdjustWallet(ctx context.Context, guildID, memberID string, currency Currency, delta int64) (*Wallet, error) {
	if err := ensureWallet(ctx, p.db, guildID, memberID); err != nil {
		return nil, pgErr(err)
	}
	col := balanceColumn(currency)
	w, err := scanWallet(p.db.QueryRow(ctx, `
		UPDATE wallets SET `+col+` = `+col+` + $3
		WHERE guild_id = $1 AND member_id = $2 AND `+col+` + $3 >= 0
		RETURNING `+walletColumns, guildID, memberID, delta))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInsufficientFunds
	}
	return w, pgErr(err)
}

func (p *postgresStore) SetWallet(ctx context.Context, guildID, memberID string, currency Currency, amount int64) (*Wallet, error) {
	if amount < 0 {
		return nil, ErrInsufficientFunds
	}
	col := balanceColumn(currency)
	w, err := scanWallet(p.db.QueryRow(ctx, `
		INSERT INTO wallets (guild_id, member_id, `+col+`) VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, member_id) DO UPDATE SET `+col+` = EXCLUDED.`+col+`
		RETURNING `+walletColumns, guildID, memberID, amount))
	return w, pgErr(err)
}

func (p *postgresStore) ListWallets(ctx context.Context, guildID string) ([]*Wallet, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+walletColumns+` FROM wallets WHERE guild_id = $1 ORDER BY member_id
	`, guildID)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()
	var wallets []*Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, pgErr(err)
		}
		wallets = append(wallets, w)
	}
	return wallets, pgErr(rows.Err())
}

const itemColumns = `id, name, description, cost_primary, cost_premium, emoji, item_type, bonus_value, duration_seconds, role_id, stock`

func scanItem(row pgx.Row) (*ShopItem, error) {
	var item ShopItem
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.CostPrimary, &item.CostPremium,
		&item.Emoji, &item.Type, &item.BonusValue, &item.DurationSeconds, &item.RoleID, &item.Stock)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (p *postgresStore) GetItem(ctx context.Context, itemID string) (*ShopItem, error) {
	item, err := scanItem(p.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM shop_items WHERE id = $1`, itemID))
	return item, pgErr(err)
}

func (p *postgresStore) InsertItem(ctx context.Context, item *ShopItem) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO shop_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, item.ID, item.Name, item.Description, item.CostPrimary, item.CostPremium,
		item.Emoji, item.Type, item.BonusValue, item.DurationSeconds, item.RoleID, item.Stock)
	return pgErr(err)
}

func (p *postgresStore) ReplaceItem(ctx context.Context, item *ShopItem) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE shop_items
		SET name = $2, description = $3, cost_primary = $4, cost_premium = $5, emoji = $6,
			item_type = $7, bonus_value = $8, duration_seconds = $9, role_id = $10, stock = $11
		WHERE id = $1
	`, item.ID, item.Name, item.Description, item.CostPrimary, item.CostPremium,
		item.Emoji, item.Type, item.BonusValue, item.DurationSeconds, item.RoleID, item.Stock)
	if err != nil {
		return pgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *postgresStore) DeleteItem(ctx context.Context, itemID string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM shop_items WHERE id = $1`, itemID)
	if err != nil {
		return pgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *postgresStore) ListItems(ctx context.Context) ([]*ShopItem, error) {
	rows, err := p.db.Query(ctx, `SELECT `+itemColumns+` FROM shop_items ORDER BY id`)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()
	var items []*ShopItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, pgErr(err)
		}
		items = append(items, item)
	}
	return items, pgErr(rows.Err())
}

// SettlePurchase decrements stock, debits the wallet and writes the purchase records in one
// transaction.
func (p *postgresStore) SettlePurchase(ctx context.Context, debit Debit) (*Wallet, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, pgErr(err)
	}
	defer tx.Rollback(ctx)

	if err := ensureWallet(ctx, tx, debit.GuildID, debit.MemberID); err != nil {
		return nil, pgErr(err)
	}

	var stock int64
	err = tx.QueryRow(ctx, `
		UPDATE shop_items SET stock = CASE WHEN stock = -1 THEN -1 ELSE stock - 1 END
		WHERE id = $1 AND (stock = -1 OR stock > 0)
		RETURNING stock
	`, debit.ItemID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM shop_items WHERE id = $1)`, debit.ItemID).Scan(&exists); err != nil {
			return nil, pgErr(err)
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrOutOfStock
	}
	if err != nil {
		return nil, pgErr(err)
	}

	col := balanceColumn(debit.Currency)
	w, err := scanWallet(tx.QueryRow(ctx, `
		UPDATE wallets SET `+col+` = `+col+` - $3
		WHERE guild_id = $1 AND member_id = $2 AND `+col+` >= $3
		RETURNING `+walletColumns, debit.GuildID, debit.MemberID, debit.Cost))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, pgErr(err)
	}

	if debit.Possession != nil {
		if err := insertPossession(ctx, tx, debit.Possession); err != nil {
			return nil, pgErr(err)
		}
	}
	if debit.RoleGrant != nil {
		if err := upsertRoleGrant(ctx, tx, debit.RoleGrant); err != nil {
			return nil, pgErr(err)
		}
	}
	if debit.Transaction != nil {
		debit.Transaction.PrimaryAfter, debit.Transaction.PremiumAfter = w.Primary, w.Premium
		if err := insertTransaction(ctx, tx, debit.Transaction); err != nil {
			return nil, pgErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pgErr(err)
	}
	return w, nil
}

func (p *postgresStore) InsertPossession(ctx context.Context, ps *Possession) error {
	return pgErr(insertPossession(ctx, p.db, ps))
}

func insertPossession(ctx context.Context, q querier, ps *Possession) error {
	_, err := q.Exec(ctx, `
		INSERT INTO possessions (id, guild_id, member_id, item_id, purchased_at, expires_at, bonus_type, bonus_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ps.ID, ps.GuildID, ps.MemberID, ps.ItemID, ps.PurchasedAt, ps.ExpiresAt, ps.BonusType, ps.BonusValue)
	return err
}

func (p *postgresStore) ListPossessions(ctx context.Context, guildID, memberID string) ([]*Possession, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, guild_id, member_id, item_id, purchased_at, expires_at, bonus_type, bonus_value
		FROM possessions WHERE guild_id = $1 AND member_id = $2
		ORDER BY purchased_at
	`, guildID, memberID)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()
	var possessions []*Possession
	for rows.Next() {
		var ps Possession
		if err := rows.Scan(&ps.ID, &ps.GuildID, &ps.MemberID, &ps.ItemID, &ps.PurchasedAt, &ps.ExpiresAt, &ps.BonusType, &ps.BonusValue); err != nil {
			return nil, pgErr(err)
		}
		possessions = append(possessions, &ps)
	}
	return possessions, pgErr(rows.Err())
}

func (p *postgresStore) UpsertRoleGrant(ctx context.Context, g *RoleGrant) error {
	return pgErr(upsertRoleGrant(ctx, p.db, g))
}

func upsertRoleGrant(ctx context.Context, q querier, g *RoleGrant) error {
	_, err := q.Exec(ctx, `
		INSERT INTO role_grants (guild_id, member_id, role_id, item_id, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (guild_id, member_id, role_id, item_id)
		DO UPDATE SET granted_at = EXCLUDED.granted_at, expires_at = EXCLUDED.expires_at
	`, g.GuildID, g.MemberID, g.RoleID, g.ItemID, g.GrantedAt, g.ExpiresAt)
	return err
}

func (p *postgresStore) ListExpiredRoleGrants(ctx context.Context, now time.Time) ([]*RoleGrant, error) {
	rows, err := p.db.Query(ctx, `
		SELECT guild_id, member_id, role_id, item_id, granted_at, expires_at
		FROM role_grants WHERE expires_at <= $1 ORDER BY expires_at
	`, now)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()
	var grants []*RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.GuildID, &g.MemberID, &g.RoleID, &g.ItemID, &g.GrantedAt, &g.ExpiresAt); err != nil {
			return nil, pgErr(err)
		}
		grants = append(grants, &g)
	}
	return grants, pgErr(rows.Err())
}

func (p *postgresStore) DeleteRoleGrant(ctx context.Context, g *RoleGrant) error {
	tag, err := p.db.Exec(ctx, `
		DELETE FROM role_grants WHERE guild_id = $1 AND member_id = $2 AND role_id = $3 AND item_id = $4
	`, g.GuildID, g.MemberID, g.RoleID, g.ItemID)
	if err != nil {
		return pgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *postgresStore) InsertTransaction(ctx context.Context, tx *Transaction) error {
	return pgErr(insertTransaction(ctx, p.db, tx))
}

func insertTransaction(ctx context.Context, q querier, tx *Transaction) error {
	var externalID *string
	if tx.ExternalID != "" {
		externalID = &tx.ExternalID
	}
	_, err := q.Exec(ctx, `
		INSERT INTO transactions (id, guild_id, member_id, kind, item_id, currency, amount, primary_after, premium_after, external_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, tx.ID, tx.GuildID, tx.MemberID, tx.Kind, tx.ItemID, tx.Currency, tx.Amount, tx.PrimaryAfter, tx.PremiumAfter, externalID, tx.CreatedAt)
	return err
}

func (p *postgresStore) ListTransactions(ctx context.Context, guildID, memberID string) ([]*Transaction, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, guild_id, member_id, kind, item_id, currency, amount, primary_after, premium_after, COALESCE(external_id, ''), created_at
		FROM transactions WHERE guild_id = $1 AND member_id = $2
		ORDER BY created_at
	`, guildID, memberID)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()
	var txs []*Transaction
	for rows.Next() {
		var tx Transaction
		err := rows.Scan(&tx.ID, &tx.GuildID, &tx.MemberID, &tx.Kind, &tx.ItemID, &tx.Currency,
			&tx.Amount, &tx.PrimaryAfter, &tx.PremiumAfter, &tx.ExternalID, &tx.CreatedAt)
		if err != nil {
			return nil, pgErr(err)
		}
		txs = append(txs, &tx)
	}
	return txs, pgErr(rows.Err())
}

func (p *postgresStore) GetOrCreateProgress(ctx context.Context, key ProgressKey, now time.Time) (*MissionProgress, error) {
	_, err := p.db.Exec(ctx, `
		INSERT INTO mission_progress (guild_id, member_id, mission_id, condition, cycle_start, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		ON CONFLICT DO NOTHING
	`, key.GuildID, key.MemberID, key.MissionID, key.Condition, key.CycleStart, now)
	if err != nil {
		return nil, pgErr(err)
	}
	mp := MissionProgress{ProgressKey: key}
	err = p.db.QueryRow(ctx, `
		SELECT value, updated_at FROM mission_progress
		WHERE guild_id = $1 AND member_id = $2 AND mission_id = $3 AND condition = $4 AND cycle_start = $5
	`, key.GuildID, key.MemberID, key.MissionID, key.Condition, key.CycleStart).Scan(&mp.Value, &mp.UpdatedAt)
	if err != nil {
		return nil, pgErr(err)
	}
	return &mp, nil
}

func (p *postgresStore) IncrementProgress(ctx context.Context, key ProgressKey, delta int64, now time.Time) (*MissionProgress, error) {
	mp := MissionProgress{ProgressKey: key}
	err := p.db.QueryRow(ctx, `
		INSERT INTO mission_progress (guild_id, member_id, mission_id, condition, cycle_start, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (guild_id, member_id, mission_id, condition, cycle_start)
		DO UPDATE SET value = mission_progress.value + EXCLUDED.value, updated_at = EXCLUDED.updated_at
		RETURNING value, updated_at
	`, key.GuildID, key.MemberID, key.MissionID, key.Condition, key.CycleStart, delta, now).Scan(&mp.Value, &mp.UpdatedAt)
	if err != nil {
		return nil, pgErr(err)
	}
	return &mp, nil
}

func (p *postgresStore) RaiseProgress(ctx context.Context, key ProgressKey, value int64, now time.Time) (*MissionProgress, error) {
	mp := MissionProgress{ProgressKey: key}
	err := p.db.QueryRow(ctx, `
		INSERT INTO mission_progress (guild_id, member_id, mission_id, condition, cycle_start, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, GREATEST($6, 0), $7)
		ON CONFLICT (guild_id, member_id, mission_id, condition, cycle_start)
		DO UPDATE SET value = GREATEST(mission_progress.value, EXCLUDED.value), updated_at = EXCLUDED.updated_at
		RETURNING value, updated_at
	`, key.GuildID, key.MemberID, key.MissionID, key.Condition, key.CycleStart, value, now).Scan(&mp.Value, &mp.UpdatedAt)
	if err != nil {
		return nil, pgErr(err)
	}
	return &mp, nil
}

func (p *postgresStore) InsertCompletion(ctx context.Context, c *MissionCompletion) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		INSERT INTO mission_completions (completion_key, guild_id, member_id, mission_id, one_time, cycle_start, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
	`, c.Key(), c.GuildID, c.MemberID, c.MissionID, c.OneTime, c.CycleStart, c.CompletedAt)
	if err != nil {
		return false, pgErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *postgresStore) CompletionExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM mission_completions WHERE completion_key = $1)`, key).Scan(&exists)
	return exists, pgErr(err)
}

func (p *postgresStore) ListCompletions(ctx context.Context, guildID, memberID string) ([]*MissionCompletion, error) {
	rows, err := p.db.Query(ctx, `
		SELECT guild_id, member_id, mission_id, one_time, cycle_start, completed_at
		FROM mission_completions WHERE guild_id = $1 AND member_id = $2
		ORDER BY completed_at DESC
	`, guildID, memberID)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()
	var completions []*MissionCompletion
	for rows.Next() {
		var c MissionCompletion
		if err := rows.Scan(&c.GuildID, &c.MemberID, &c.MissionID, &c.OneTime, &c.CycleStart, &c.CompletedAt); err != nil {
			return nil, pgErr(err)
		}
		completions = append(completions, &c)
	}
	return completions, pgErr(rows.Err())
}

func (p *postgresStore) InsertUnlock(ctx context.Context, u *AchievementUnlock) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		INSERT INTO achievement_unlocks (guild_id, member_id, tier_id, unlocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, u.GuildID, u.MemberID, u.TierID, u.UnlockedAt)
	if err != nil {
		return false, pgErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *postgresStore) ListUnlocks(ctx context.Context, guildID, memberID string) ([]*AchievementUnlock, error) {
	rows, err := p.db.Query(ctx, `
		SELECT guild_id, member_id, tier_id, unlocked_at
		FROM achievement_unlocks WHERE guild_id = $1 AND member_id = $2
		ORDER BY unlocked_at
	`, guildID, memberID)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()
	var unlocks []*AchievementUnlock
	for rows.Next() {
		var u AchievementUnlock
		if err := rows.Scan(&u.GuildID, &u.MemberID, &u.TierID, &u.UnlockedAt); err != nil {
			return nil, pgErr(err)
		}
		unlocks = append(unlocks, &u)
	}
	return unlocks, pgErr(rows.Err())
}

func ensureStats(ctx context.Context, q querier, guildID, memberID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO member_stats (guild_id, member_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, guildID, memberID)
	return err
}

func (p *postgresStore) GetStats(ctx context.Context, guildID, memberID string) (*MemberStats, error) {
	s := &MemberStats{
		GuildID:         guildID,
		MemberID:        memberID,
		CommandUsage:    make(map[string]int64),
		ChannelMessages: make(map[string]int64),
		Cooldowns:       make(map[string]time.Time),
	}
	err := p.db.QueryRow(ctx, `
		SELECT xp, level, messages, reactions, voice_seconds, contest_wins, streak, last_active_day
		FROM member_stats WHERE guild_id = $1 AND member_id = $2
	`, guildID, memberID).Scan(&s.XP, &s.Level, &s.Messages, &s.Reactions, &s.VoiceSeconds, &s.ContestWins, &s.Streak, &s.LastActiveDay)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return nil, pgErr(err)
	}

	rows, err := p.db.Query(ctx, `
		SELECT scope, name, value FROM member_counters WHERE guild_id = $1 AND member_id = $2
	`, guildID, memberID)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var scope, name string
		var value int64
		if err := rows.Scan(&scope, &name, &value); err != nil {
			return nil, pgErr(err)
		}
		switch scope {
		case scopeCommand:
			s.CommandUsage[name] = value
		case scopeChannel:
			s.ChannelMessages[name] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr(err)
	}

	cooldowns, err := p.db.Query(ctx, `
		SELECT name, used_at FROM member_cooldowns WHERE guild_id = $1 AND member_id = $2
	`, guildID, memberID)
	if err != nil {
		return nil, pgErr(err)
	}
	defer cooldowns.Close()
	for cooldowns.Next() {
		var name string
		var usedAt time.Time
		if err := cooldowns.Scan(&name, &usedAt); err != nil {
			return nil, pgErr(err)
		}
		s.Cooldowns[name] = usedAt
	}
	return s, pgErr(cooldowns.Err())
}

func incrementCounter(ctx context.Context, q querier, guildID, memberID, scope, name string, delta int64) error {
	_, err := q.Exec(ctx, `
		INSERT INTO member_counters (guild_id, member_id, scope, name, value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id, member_id, scope, name)
		DO UPDATE SET value = member_counters.value + EXCLUDED.value
	`, guildID, memberID, scope, name, delta)
	return err
}

// ListStats returns the counters only. Command and channel breakdowns are left empty.
func (p *postgresStore) ListStats(ctx context.Context, guildID string) ([]*MemberStats, error) {
	rows, err := p.db.Query(ctx, `
		SELECT member_id, xp, level, messages, reactions, voice_seconds, contest_wins, streak, last_active_day
		FROM member_stats WHERE guild_id = $1 ORDER BY member_id
	`, guildID)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()
	var stats []*MemberStats
	for rows.Next() {
		s := &MemberStats{GuildID: guildID}
		if err := rows.Scan(&s.MemberID, &s.XP, &s.Level, &s.Messages, &s.Reactions, &s.VoiceSeconds, &s.ContestWins, &s.Streak, &s.LastActiveDay); err != nil {
			return nil, pgErr(err)
		}
		stats = append(stats, s)
	}
	return stats, pgErr(rows.Err())
}

func (p *postgresStore) IncrementStats(ctx context.Context, guildID, memberID string, delta StatsDelta) (*MemberStats, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, pgErr(err)
	}
	defer tx.Rollback(ctx)

	if err := ensureStats(ctx, tx, guildID, memberID); err != nil {
		return nil, pgErr(err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE member_stats
		SET xp = xp + $3, messages = messages + $4, reactions = reactions + $5,
			voice_seconds = voice_seconds + $6, contest_wins = contest_wins + $7
		WHERE guild_id = $1 AND member_id = $2
	`, guildID, memberID, delta.XP, delta.Messages, delta.Reactions, delta.VoiceSeconds, delta.ContestWins)
	if err != nil {
		return nil, pgErr(err)
	}
	if delta.Category != "" {
		if err := incrementCounter(ctx, tx, guildID, memberID, scopeCommand, delta.Category, 1); err != nil {
			return nil, pgErr(err)
		}
	}
	if delta.Channel != "" && delta.Messages > 0 {
		if err := incrementCounter(ctx, tx, guildID, memberID, scopeChannel, delta.Channel, delta.Messages); err != nil {
			return nil, pgErr(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, pgErr(err)
	}
	return p.GetStats(ctx, guildID, memberID)
}

func (p *postgresStore) RaiseLevel(ctx context.Context, guildID, memberID string, level int64) (int64, error) {
	if err := ensureStats(ctx, p.db, guildID, memberID); err != nil {
		return 0, pgErr(err)
	}
	// The subquery sees the row as it was before the update.
	var previous int64
	err := p.db.QueryRow(ctx, `
		UPDATE member_stats s SET level = $3
		FROM (SELECT level FROM member_stats WHERE guild_id = $1 AND member_id = $2 FOR UPDATE) old
		WHERE s.guild_id = $1 AND s.member_id = $2 AND s.level < $3
		RETURNING old.level
	`, guildID, memberID, level).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		err = p.db.QueryRow(ctx, `
			SELECT level FROM member_stats WHERE guild_id = $1 AND member_id = $2
		`, guildID, memberID).Scan(&previous)
	}
	return previous, pgErr(err)
}

func (p *postgresStore) RecordActiveDay(ctx context.Context, guildID, memberID string, day time.Time) (int64, error) {
	if err := ensureStats(ctx, p.db, guildID, memberID); err != nil {
		return 0, pgErr(err)
	}
	day = truncateDay(day)
	var streak int64
	err := p.db.QueryRow(ctx, `
		UPDATE member_stats SET
			streak = CASE
				WHEN last_active_day = $3 THEN streak
				WHEN last_active_day = $3 - interval '1 day' THEN streak + 1
				ELSE 1
			END,
			last_active_day = $3
		WHERE guild_id = $1 AND member_id = $2
		RETURNING streak
	`, guildID, memberID, day).Scan(&streak)
	return streak, pgErr(err)
}

func (p *postgresStore) TouchCooldown(ctx context.Context, guildID, memberID, name string, now time.Time, cooldown time.Duration) (bool, time.Time, error) {
	var usedAt time.Time
	err := p.db.QueryRow(ctx, `
		INSERT INTO member_cooldowns (guild_id, member_id, name, used_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, member_id, name)
		DO UPDATE SET used_at = EXCLUDED.used_at
		WHERE member_cooldowns.used_at <= $5
		RETURNING used_at
	`, guildID, memberID, name, now, now.Add(-cooldown)).Scan(&usedAt)
	if err == nil {
		return true, time.Time{}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, time.Time{}, pgErr(err)
	}
	err = p.db.QueryRow(ctx, `
		SELECT used_at FROM member_cooldowns WHERE guild_id = $1 AND member_id = $2 AND name = $3
	`, guildID, memberID, name).Scan(&usedAt)
	if err != nil {
		return false, time.Time{}, pgErr(err)
	}
	return false, usedAt.Add(cooldown), nil
}

func (p *postgresStore) InsertWarning(ctx context.Context, w *Warning) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO warnings (id, guild_id, member_id, moderator_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.ID, w.GuildID, w.MemberID, w.ModeratorID, w.Reason, w.CreatedAt)
	return pgErr(err)
}

func (p *postgresStore) DeleteWarning(ctx context.Context, warnID string) (*Warning, error) {
	var w Warning
	err := p.db.QueryRow(ctx, `
		DELETE FROM warnings WHERE id = $1
		RETURNING id, guild_id, member_id, moderator_id, reason, created_at
	`, warnID).Scan(&w.ID, &w.GuildID, &w.MemberID, &w.ModeratorID, &w.Reason, &w.CreatedAt)
	if err != nil {
		return nil, pgErr(err)
	}
	return &w, nil
}

func (p *postgresStore) ListWarnings(ctx context.Context, guildID, memberID string) ([]*Warning, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, guild_id, member_id, moderator_id, reason, created_at
		FROM warnings WHERE guild_id = $1 AND member_id = $2
		ORDER BY created_at
	`, guildID, memberID)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()
	var warnings []*Warning
	for rows.Next() {
		var w Warning
		if err := rows.Scan(&w.ID, &w.GuildID, &w.MemberID, &w.ModeratorID, &w.Reason, &w.CreatedAt); err != nil {
			return nil, pgErr(err)
		}
		warnings = append(warnings, &w)
	}
	return warnings, pgErr(rows.Err())
}
