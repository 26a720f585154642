package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	log "github.com/sirupsen/logrus"
)

const (
	defaultMongoDatabase = "Chronicles"
	mongoTimeout         = 10 * time.Second
	casRetries           = 5
)

const (
	walletCollection      = "wallets"
	itemCollection        = "shop_items"
	possessionCollection  = "possessions"
	roleGrantCollection   = "role_grants"
	transactionCollection = "transactions"
	progressCollection    = "mission_progress"
	completionCollection  = "mission_completions"
	unlockCollection      = "achievement_unlocks"
	statsCollection       = "member_stats"
	warningCollection     = "warnings"
)

// mongoStore is a Store backed by a MongoDB database. Documents are keyed by their natural
// key so inserts of an existing record fail with a duplicate key error.
type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

type roleGrantDoc struct {
	ID        string `bson:"_id"`
	RoleGrant `bson:",inline"`
}

type completionDoc struct {
	ID                string `bson:"_id"`
	MissionCompletion `bson:",inline"`
}

type unlockDoc struct {
	ID                string `bson:"_id"`
	AchievementUnlock `bson:",inline"`
}

// NewMongoStore connects to the MongoDB database and prepares its indexes.
func NewMongoStore(ctx context.Context, uri string, database string) (Store, error) {
	log.Trace("--> NewMongoStore")
	defer log.Trace("<-- NewMongoStore")

	if uri == "" {
		return nil, errors.New("you must set your 'MONGODB_URI' environmental variable")
	}
	if database == "" {
		database = defaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect to the MongoDB database: %v", ErrUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%w: unable to ping the MongoDB database: %v", ErrUnavailable, err)
	}

	m := &mongoStore{client: client, db: client.Database(database)}
	if err := m.createIndexes(ctx); err != nil {
		return nil, err
	}
	log.WithField("database", database).Info("connected to MongoDB")
	return m, nil
}

func (m *mongoStore) createIndexes(ctx context.Context) error {
	indexes := map[string]mongo.IndexModel{
		transactionCollection: {
			Keys: bson.D{{Key: "external_id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"external_id": bson.M{"$exists": true}}),
		},
		possessionCollection: {Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "member_id", Value: 1}}},
		roleGrantCollection:  {Keys: bson.D{{Key: "expires_at", Value: 1}}},
		completionCollection: {Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "member_id", Value: 1}}},
		warningCollection:    {Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "member_id", Value: 1}}},
	}
	for collection, index := range indexes {
		if _, err := m.db.Collection(collection).Indexes().CreateOne(ctx, index); err != nil {
			return fmt.Errorf("%w: failed to create index on %s: %v", ErrUnavailable, collection, err)
		}
	}
	return nil
}

func (m *mongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	return mongoErr(m.client.Ping(ctx, nil))
}

func (m *mongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// mongoErr maps driver errors onto the store error kinds.
func mongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func after() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func upsertAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
}

func currencyField(c Currency) string {
	if c == Premium {
		return "premium"
	}
	return "primary"
}

func otherCurrency(c Currency) Currency {
	if c == Premium {
		return Primary
	}
	return Premium
}

func (m *mongoStore) GetWallet(ctx context.Context, guildID, memberID string) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	update := bson.M{"$setOnInsert": bson.M{
		"guild_id":   guildID,
		"member_id":  memberID,
		"primary":    0,
		"premium":    0,
		"created_at": time.Now().UTC(),
	}}
	var w Wallet
	res := m.db.Collection(walletCollection).FindOneAndUpdate(ctx, bson.M{"_id": walletKey(guildID, memberID)}, update, upsertAfter())
	if err := res.Decode(&w); err != nil {
		return nil, mongoErr(err)
	}
	return &w, nil
}

func (m *mongoStore) AdjustWallet(ctx context.Context, guildID, memberID string, currency Currency, delta int64) (*Wallet, error) {
	if _, err := m.GetWallet(ctx, guildID, memberID); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	field := currencyField(currency)
	filter := bson.M{"_id": walletKey(guildID, memberID)}
	if delta < 0 {
		filter[field] = bson.M{"$gte": -delta}
	}
	var w Wallet
	res := m.db.Collection(walletCollection).FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{field: delta}}, after())
	if err := res.Decode(&w); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInsufficientFunds
		}
		return nil, mongoErr(err)
	}
	return &w, nil
}

func (m *mongoStore) SetWallet(ctx context.Context, guildID, memberID string, currency Currency, amount int64) (*Wallet, error) {
	if amount < 0 {
		return nil, ErrInsufficientFunds
	}
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	onInsert := bson.M{
		"guild_id":   guildID,
		"member_id":  memberID,
		"created_at": time.Now().UTC(),
	}
	onInsert[currencyField(otherCurrency(currency))] = 0
	update := bson.M{
		"$set":         bson.M{currencyField(currency): amount},
		"$setOnInsert": onInsert,
	}
	var w Wallet
	res := m.db.Collection(walletCollection).FindOneAndUpdate(ctx, bson.M{"_id": walletKey(guildID, memberID)}, update, upsertAfter())
	if err := res.Decode(&w); err != nil {
		return nil, mongoErr(err)
	}
	return &w, nil
}

func (m *mongoStore) ListWallets(ctx context.Context, guildID string) ([]*Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "member_id", Value: 1}})
	cur, err := m.db.Collection(walletCollection).Find(ctx, bson.M{"guild_id": guildID}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var wallets []*Wallet
	if err := cur.All(ctx, &wallets); err != nil {
		return nil, mongoErr(err)
	}
	return wallets, nil
}

func (m *mongoStore) GetItem(ctx context.Context, itemID string) (*ShopItem, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	var item ShopItem
	if err := m.db.Collection(itemCollection).FindOne(ctx, bson.M{"_id": itemID}).Decode(&item); err != nil {
		return nil, mongoErr(err)
	}
	return &item, nil
}

func (m *mongoStore) InsertItem(ctx context.Context, item *ShopItem) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	_, err := m.db.Collection(itemCollection).InsertOne(ctx, item)
	return mongoErr(err)
}

func (m *mongoStore) ReplaceItem(ctx context.Context, item *ShopItem) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	res, err := m.db.Collection(itemCollection).ReplaceOne(ctx, bson.M{"_id": item.ID}, item)
	if err != nil {
		return mongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *mongoStore) DeleteItem(ctx context.Context, itemID string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	res, err := m.db.Collection(itemCollection).DeleteOne(ctx, bson.M{"_id": itemID})
	if err != nil {
		return mongoErr(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *mongoStore) ListItems(ctx context.Context) ([]*ShopItem, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	cur, err := m.db.Collection(itemCollection).Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mongoErr(err)
	}
	var items []*ShopItem
	if err := cur.All(ctx, &items); err != nil {
		return nil, mongoErr(err)
	}
	return items, nil
}

// SettlePurchase reserves a unit of limited stock, debits the wallet and inserts the purchase
// records. A failed step undoes the steps before it.
func (m *mongoStore) SettlePurchase(ctx context.Context, debit Debit) (*Wallet, error) {
	if _, err := m.GetWallet(ctx, debit.GuildID, debit.MemberID); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	items := m.db.Collection(itemCollection)

	reserved := false
	res, err := items.UpdateOne(ctx, bson.M{"_id": debit.ItemID, "stock": bson.M{"$gt": 0}}, bson.M{"$inc": bson.M{"stock": -1}})
	if err != nil {
		return nil, mongoErr(err)
	}
	if res.ModifiedCount == 1 {
		reserved = true
	} else {
		var item ShopItem
		if err := items.FindOne(ctx, bson.M{"_id": debit.ItemID}).Decode(&item); err != nil {
			return nil, mongoErr(err)
		}
		if item.Stock != UnlimitedStock {
			return nil, ErrOutOfStock
		}
	}
	restock := func() {
		if !reserved {
			return
		}
		if _, rerr := items.UpdateOne(ctx, bson.M{"_id": debit.ItemID}, bson.M{"$inc": bson.M{"stock": 1}}); rerr != nil {
			log.WithFields(log.Fields{"item": debit.ItemID, "error": rerr}).Error("failed to return reserved stock")
		}
	}

	field := currencyField(debit.Currency)
	wallets := m.db.Collection(walletCollection)
	walletID := walletKey(debit.GuildID, debit.MemberID)
	var w Wallet
	err = wallets.FindOneAndUpdate(ctx, bson.M{"_id": walletID, field: bson.M{"$gte": debit.Cost}}, bson.M{"$inc": bson.M{field: -debit.Cost}}, after()).Decode(&w)
	if err != nil {
		restock()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInsufficientFunds
		}
		return nil, mongoErr(err)
	}

	if err := m.insertPurchaseRecords(ctx, debit, &w); err != nil {
		if _, rerr := wallets.UpdateOne(ctx, bson.M{"_id": walletID}, bson.M{"$inc": bson.M{field: debit.Cost}}); rerr != nil {
			log.WithFields(log.Fields{"guild": debit.GuildID, "member": debit.MemberID, "cost": debit.Cost, "error": rerr}).Error("failed to refund purchase")
		}
		restock()
		return nil, err
	}
	return &w, nil
}

// insertPurchaseRecords writes the records of a settled purchase, removing the ones already
// written when a later one fails.
func (m *mongoStore) insertPurchaseRecords(ctx context.Context, debit Debit, w *Wallet) error {
	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
	remove := func(collection, id string) func() {
		return func() {
			if _, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
				log.WithFields(log.Fields{"collection": collection, "id": id, "error": err}).Error("failed to remove purchase record")
			}
		}
	}

	if p := debit.Possession; p != nil {
		if _, err := m.db.Collection(possessionCollection).InsertOne(ctx, p); err != nil {
			return mongoErr(err)
		}
		undo = append(undo, remove(possessionCollection, p.ID))
	}
	if g := debit.RoleGrant; g != nil {
		doc := roleGrantDoc{ID: g.Key(), RoleGrant: *g}
		if _, err := m.db.Collection(roleGrantCollection).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
			rollback()
			return mongoErr(err)
		}
		undo = append(undo, remove(roleGrantCollection, doc.ID))
	}
	if tx := debit.Transaction; tx != nil {
		tx.PrimaryAfter, tx.PremiumAfter = w.Primary, w.Premium
		if _, err := m.db.Collection(transactionCollection).InsertOne(ctx, tx); err != nil {
			rollback()
			return mongoErr(err)
		}
	}
	return nil
}

func (m *mongoStore) InsertPossession(ctx context.Context, p *Possession) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	_, err := m.db.Collection(possessionCollection).InsertOne(ctx, p)
	return mongoErr(err)
}

func (m *mongoStore) ListPossessions(ctx context.Context, guildID, memberID string) ([]*Possession, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "purchased_at", Value: 1}})
	cur, err := m.db.Collection(possessionCollection).Find(ctx, bson.M{"guild_id": guildID, "member_id": memberID}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var possessions []*Possession
	if err := cur.All(ctx, &possessions); err != nil {
		return nil, mongoErr(err)
	}
	return possessions, nil
}

func (m *mongoStore) UpsertRoleGrant(ctx context.Context, g *RoleGrant) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	doc := roleGrantDoc{ID: g.Key(), RoleGrant: *g}
	_, err := m.db.Collection(roleGrantCollection).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return mongoErr(err)
}

func (m *mongoStore) ListExpiredRoleGrants(ctx context.Context, now time.Time) ([]*RoleGrant, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}})
	cur, err := m.db.Collection(roleGrantCollection).Find(ctx, bson.M{"expires_at": bson.M{"$lte": now}}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var grants []*RoleGrant
	if err := cur.All(ctx, &grants); err != nil {
		return nil, mongoErr(err)
	}
	return grants, nil
}

func (m *mongoStore) DeleteRoleGrant(ctx context.Context, g *RoleGrant) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	res, err := m.db.Collection(roleGrantCollection).DeleteOne(ctx, bson.M{"_id": g.Key()})
	if err != nil {
		return mongoErr(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *mongoStore) InsertTransaction(ctx context.Context, tx *Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	_, err := m.db.Collection(transactionCollection).InsertOne(ctx, tx)
	return mongoErr(err)
}

func (m *mongoStore) ListTransactions(ctx context.Context, guildID, memberID string) ([]*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := m.db.Collection(transactionCollection).Find(ctx, bson.M{"guild_id": guildID, "member_id": memberID}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var txs []*Transaction
	if err := cur.All(ctx, &txs); err != nil {
		return nil, mongoErr(err)
	}
	return txs, nil
}

func progressOnInsert(key ProgressKey) bson.M {
	return bson.M{
		"guild_id":    key.GuildID,
		"member_id":   key.MemberID,
		"mission_id":  key.MissionID,
		"condition":   key.Condition,
		"cycle_start": key.CycleStart,
	}
}

func (m *mongoStore) GetOrCreateProgress(ctx context.Context, key ProgressKey, now time.Time) (*MissionProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	onInsert := progressOnInsert(key)
	onInsert["value"] = 0
	onInsert["updated_at"] = now
	var p MissionProgress
	res := m.db.Collection(progressCollection).FindOneAndUpdate(ctx, bson.M{"_id": key.String()}, bson.M{"$setOnInsert": onInsert}, upsertAfter())
	if err := res.Decode(&p); err != nil {
		return nil, mongoErr(err)
	}
	return &p, nil
}

func (m *mongoStore) IncrementProgress(ctx context.Context, key ProgressKey, delta int64, now time.Time) (*MissionProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	update := bson.M{
		"$inc":         bson.M{"value": delta},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": progressOnInsert(key),
	}
	var p MissionProgress
	res := m.db.Collection(progressCollection).FindOneAndUpdate(ctx, bson.M{"_id": key.String()}, update, upsertAfter())
	if err := res.Decode(&p); err != nil {
		return nil, mongoErr(err)
	}
	return &p, nil
}

func (m *mongoStore) RaiseProgress(ctx context.Context, key ProgressKey, value int64, now time.Time) (*MissionProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	update := bson.M{
		"$max":         bson.M{"value": value},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": progressOnInsert(key),
	}
	var p MissionProgress
	res := m.db.Collection(progressCollection).FindOneAndUpdate(ctx, bson.M{"_id": key.String()}, update, upsertAfter())
	if err := res.Decode(&p); err != nil {
		return nil, mongoErr(err)
	}
	return &p, nil
}

func (m *mongoStore) InsertCompletion(ctx context.Context, c *MissionCompletion) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	_, err := m.db.Collection(completionCollection).InsertOne(ctx, completionDoc{ID: c.Key(), MissionCompletion: *c})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, mongoErr(err)
	}
	return true, nil
}

func (m *mongoStore) CompletionExists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	n, err := m.db.Collection(completionCollection).CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, mongoErr(err)
	}
	return n > 0, nil
}

func (m *mongoStore) ListCompletions(ctx context.Context, guildID, memberID string) ([]*MissionCompletion, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}})
	cur, err := m.db.Collection(completionCollection).Find(ctx, bson.M{"guild_id": guildID, "member_id": memberID}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var completions []*MissionCompletion
	if err := cur.All(ctx, &completions); err != nil {
		return nil, mongoErr(err)
	}
	return completions, nil
}

func (m *mongoStore) InsertUnlock(ctx context.Context, u *AchievementUnlock) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	_, err := m.db.Collection(unlockCollection).InsertOne(ctx, unlockDoc{ID: u.Key(), AchievementUnlock: *u})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, mongoErr(err)
	}
	return true, nil
}

func (m *mongoStore) ListUnlocks(ctx context.Context, guildID, memberID string) ([]*AchievementUnlock, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "unlocked_at", Value: 1}})
	cur, err := m.db.Collection(unlockCollection).Find(ctx, bson.M{"guild_id": guildID, "member_id": memberID}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var unlocks []*AchievementUnlock
	if err := cur.All(ctx, &unlocks); err != nil {
		return nil, mongoErr(err)
	}
	return unlocks, nil
}

// ensureStats creates the stats document if the member has none and returns it.
func (m *mongoStore) ensureStats(ctx context.Context, guildID, memberID string) (*MemberStats, error) {
	update := bson.M{"$setOnInsert": bson.M{
		"guild_id":        guildID,
		"member_id":       memberID,
		"level":           0,
		"streak":          0,
		"last_active_day": time.Time{},
	}}
	var s MemberStats
	res := m.db.Collection(statsCollection).FindOneAndUpdate(ctx, bson.M{"_id": walletKey(guildID, memberID)}, update, upsertAfter())
	if err := res.Decode(&s); err != nil {
		return nil, mongoErr(err)
	}
	return &s, nil
}

func (m *mongoStore) GetStats(ctx context.Context, guildID, memberID string) (*MemberStats, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	var s MemberStats
	err := m.db.Collection(statsCollection).FindOne(ctx, bson.M{"_id": walletKey(guildID, memberID)}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &MemberStats{GuildID: guildID, MemberID: memberID}, nil
	}
	if err != nil {
		return nil, mongoErr(err)
	}
	return &s, nil
}

func (m *mongoStore) ListStats(ctx context.Context, guildID string) ([]*MemberStats, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "member_id", Value: 1}})
	cur, err := m.db.Collection(statsCollection).Find(ctx, bson.M{"guild_id": guildID}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var stats []*MemberStats
	if err := cur.All(ctx, &stats); err != nil {
		return nil, mongoErr(err)
	}
	return stats, nil
}

func (m *mongoStore) IncrementStats(ctx context.Context, guildID, memberID string, delta StatsDelta) (*MemberStats, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	inc := bson.M{
		"xp":            delta.XP,
		"messages":      delta.Messages,
		"reactions":     delta.Reactions,
		"voice_seconds": delta.VoiceSeconds,
		"contest_wins":  delta.ContestWins,
	}
	if delta.Category != "" {
		inc["command_usage."+delta.Category] = 1
	}
	if delta.Channel != "" && delta.Messages > 0 {
		inc["channel_messages."+delta.Channel] = delta.Messages
	}
	update := bson.M{
		"$inc":         inc,
		"$setOnInsert": bson.M{"guild_id": guildID, "member_id": memberID},
	}
	var s MemberStats
	res := m.db.Collection(statsCollection).FindOneAndUpdate(ctx, bson.M{"_id": walletKey(guildID, memberID)}, update, upsertAfter())
	if err := res.Decode(&s); err != nil {
		return nil, mongoErr(err)
	}
	return &s, nil
}

func (m *mongoStore) RaiseLevel(ctx context.Context, guildID, memberID string, level int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	current, err := m.ensureStats(ctx, guildID, memberID)
	if err != nil {
		return 0, err
	}
	if current.Level >= level {
		return current.Level, nil
	}
	filter := bson.M{"_id": walletKey(guildID, memberID), "level": bson.M{"$lt": level}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before MemberStats
	err = m.db.Collection(statsCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"level": level}}, opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Raised concurrently to at least level.
		return level, nil
	}
	if err != nil {
		return 0, mongoErr(err)
	}
	return before.Level, nil
}

func (m *mongoStore) RecordActiveDay(ctx context.Context, guildID, memberID string, day time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	day = truncateDay(day)
	for i := 0; i < casRetries; i++ {
		s, err := m.ensureStats(ctx, guildID, memberID)
		if err != nil {
			return 0, err
		}
		last := truncateDay(s.LastActiveDay)
		var streak int64
		switch {
		case last.Equal(day):
			return s.Streak, nil
		case last.AddDate(0, 0, 1).Equal(day):
			streak = s.Streak + 1
		default:
			streak = 1
		}
		filter := bson.M{"_id": walletKey(guildID, memberID), "last_active_day": s.LastActiveDay}
		res, err := m.db.Collection(statsCollection).UpdateOne(ctx, filter, bson.M{"$set": bson.M{"streak": streak, "last_active_day": day}})
		if err != nil {
			return 0, mongoErr(err)
		}
		if res.MatchedCount == 1 {
			return streak, nil
		}
	}
	return 0, fmt.Errorf("%w: streak update kept conflicting", ErrConflict)
}

func (m *mongoStore) TouchCooldown(ctx context.Context, guildID, memberID, name string, now time.Time, cooldown time.Duration) (bool, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	if _, err := m.ensureStats(ctx, guildID, memberID); err != nil {
		return false, time.Time{}, err
	}
	field := "cooldowns." + name
	filter := bson.M{
		"_id": walletKey(guildID, memberID),
		"$or": bson.A{
			bson.M{field: bson.M{"$exists": false}},
			bson.M{field: bson.M{"$lte": now.Add(-cooldown)}},
		},
	}
	var s MemberStats
	err := m.db.Collection(statsCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{field: now}}, after()).Decode(&s)
	if err == nil {
		return true, time.Time{}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return false, time.Time{}, mongoErr(err)
	}
	if err := m.db.Collection(statsCollection).FindOne(ctx, bson.M{"_id": walletKey(guildID, memberID)}).Decode(&s); err != nil {
		return false, time.Time{}, mongoErr(err)
	}
	return false, s.Cooldowns[name].Add(cooldown), nil
}

func (m *mongoStore) InsertWarning(ctx context.Context, w *Warning) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	_, err := m.db.Collection(warningCollection).InsertOne(ctx, w)
	return mongoErr(err)
}

func (m *mongoStore) DeleteWarning(ctx context.Context, warnID string) (*Warning, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	var w Warning
	if err := m.db.Collection(warningCollection).FindOneAndDelete(ctx, bson.M{"_id": warnID}).Decode(&w); err != nil {
		return nil, mongoErr(err)
	}
	return &w, nil
}

func (m *mongoStore) ListWarnings(ctx context.Context, guildID, memberID string) ([]*Warning, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := m.db.Collection(warningCollection).Find(ctx, bson.M{"guild_id": guildID, "member_id": memberID}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var warnings []*Warning
	if err := cur.All(ctx, &warnings); err != nil {
		return nil, mongoErr(err)
	}
	return warnings, nil
}
