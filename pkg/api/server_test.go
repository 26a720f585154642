package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rbrabson/chronicles/pkg/achievement"
	"github.com/rbrabson/chronicles/pkg/activity"
	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/economy"
	"github.com/rbrabson/chronicles/pkg/mission"
	"github.com/rbrabson/chronicles/pkg/moderation"
	"github.com/rbrabson/chronicles/pkg/shop"
	"github.com/rbrabson/chronicles/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey   = "secret"
	testGuild = "guild"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog, err := config.DefaultCatalog()
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s := store.NewMemoryStore()
	bank := economy.NewBank(s, catalog, economy.WithClock(clock))
	granter := achievement.NewGranter(s, catalog, bank, achievement.WithClock(clock))
	bank.SetGranter(granter)
	engine := shop.NewEngine(s, nil, shop.WithClock(clock))
	require.NoError(t, engine.Seed(context.Background(), catalog.ShopItems))
	tracker := mission.NewTracker(s, catalog, bank, mission.WithClock(clock))
	recorder := activity.NewRecorder(s, catalog, activity.Services{
		Bank:         bank,
		Missions:     tracker,
		Achievements: granter,
		Bonuses:      engine,
	}, activity.WithClock(clock))

	server := NewServer(Services{
		Store:        s,
		Catalog:      catalog,
		Bank:         bank,
		Shop:         engine,
		Missions:     tracker,
		Achievements: achievement.NewEvaluator(s, catalog),
		Moderation:   moderation.NewModerator(s, moderation.WithClock(clock)),
		Activity:     recorder,
	}, Options{Port: "0", APIKey: testKey, GuildID: testGuild})
	return server, s
}

func do(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, testKey)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthAndAuth(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/shop/items", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, server, http.MethodGet, "/api/shop/items", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	assert.Len(t, items, 5)
}

func TestBuyItem(t *testing.T) {
	ctx := context.Background()
	server, s := newTestServer(t)

	w := do(t, server, http.MethodPost, "/api/shop/buy/sredni_boost_xp_1h", gin.H{"member_id": "m", "currency": "premium"})
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(10), body["cost"])
	assert.Equal(t, float64(0), body["balance"])

	_, err := s.AdjustWallet(ctx, testGuild, "m", store.Premium, 10)
	require.NoError(t, err)
	w = do(t, server, http.MethodPost, "/api/shop/buy/sredni_boost_xp_1h", gin.H{"member_id": "m", "currency": "premium"})
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["new_balance_premium"])

	w = do(t, server, http.MethodPost, "/api/shop/buy/missing", gin.H{"member_id": "m"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, server, http.MethodPost, "/api/shop/buy/sredni_boost_xp_1h", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, server, http.MethodPost, "/api/shop/buy/sredni_boost_xp_1h", gin.H{"member_id": "m", "currency": "gold"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, server, http.MethodGet, "/api/user_inventory/m", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)
}

func TestBuyTimedRoleWithoutPlatform(t *testing.T) {
	ctx := context.Background()
	server, s := newTestServer(t)

	_, err := s.AdjustWallet(ctx, testGuild, "m", store.Primary, 500)
	require.NoError(t, err)
	w := do(t, server, http.MethodPost, "/api/shop/buy/rola_patrona_7d", gin.H{"member_id": "m"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["grant_error"])
	assert.Equal(t, float64(0), body["new_balance_primary"])
}

func TestOutOfStock(t *testing.T) {
	ctx := context.Background()
	server, s := newTestServer(t)

	w := do(t, server, http.MethodPost, "/api/admin/shop-items", gin.H{
		"id": "rare", "name": "Rare", "description": "Only one", "item_type": "cosmetic", "cost_primary": 1, "stock": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	_, err := s.AdjustWallet(ctx, testGuild, "m", store.Primary, 10)
	require.NoError(t, err)

	w = do(t, server, http.MethodPost, "/api/shop/buy/rare", gin.H{"member_id": "m"})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, server, http.MethodPost, "/api/shop/buy/rare", gin.H{"member_id": "m"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminShopItems(t *testing.T) {
	server, _ := newTestServer(t)
	item := gin.H{"id": "ramka", "name": "Ramka", "description": "Złota ramka", "item_type": "cosmetic", "cost_premium": 5}

	w := do(t, server, http.MethodPost, "/api/admin/shop-items", item)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(-1), decode(t, w)["stock"])

	w = do(t, server, http.MethodPost, "/api/admin/shop-items", item)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, server, http.MethodPost, "/api/admin/shop-items", gin.H{"id": "role", "name": "Rola", "description": "Rola", "item_type": "timed_role", "cost_primary": 5})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "role_id_to_grant", decode(t, w)["field"])

	item["name"] = "Srebrna ramka"
	w = do(t, server, http.MethodPut, "/api/admin/shop-items/ramka", item)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, server, http.MethodGet, "/api/admin/shop-items/ramka", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Srebrna ramka", decode(t, w)["name"])

	w = do(t, server, http.MethodPut, "/api/admin/shop-items/missing", item)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, server, http.MethodDelete, "/api/admin/shop-items/ramka", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, server, http.MethodDelete, "/api/admin/shop-items/ramka", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateKeepsOmittedFields(t *testing.T) {
	server, _ := newTestServer(t)

	w := do(t, server, http.MethodPost, "/api/admin/shop-items", gin.H{
		"id": "rare", "name": "Rare", "description": "Only three", "item_type": "cosmetic", "cost_primary": 1, "stock": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, server, http.MethodPut, "/api/admin/shop-items/rare", gin.H{"name": "Very rare"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, server, http.MethodGet, "/api/admin/shop-items/rare", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Very rare", body["name"])
	assert.Equal(t, float64(3), body["stock"])
	assert.Equal(t, float64(1), body["cost_primary"])

	w = do(t, server, http.MethodPut, "/api/admin/shop-items/rare", gin.H{"stock": -1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(-1), decode(t, w)["stock"])
}

func TestFinalizePackage(t *testing.T) {
	server, _ := newTestServer(t)
	body := gin.H{"member_id": "m", "transaction_id": "ext-1"}

	w := do(t, server, http.MethodPost, "/api/premium/finalize/krysztaly_pakiet_100", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(100), decode(t, w)["new_balance_premium"])

	w = do(t, server, http.MethodPost, "/api/premium/finalize/krysztaly_pakiet_100", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, server, http.MethodPost, "/api/premium/finalize/unknown", gin.H{"member_id": "m", "transaction_id": "ext-2"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, server, http.MethodGet, "/api/user_achievements/"+testGuild+"/m", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)["achievements"].([]any)[0].(map[string]any)
	assert.Equal(t, "krysztaly_pierwszy_zakup", first["tier_id"])
	assert.Equal(t, true, first["unlocked"])
}

func TestWarnings(t *testing.T) {
	server, _ := newTestServer(t)

	w := do(t, server, http.MethodPost, "/api/warnings", gin.H{"guild_id": "g", "member_id": "m", "moderator_id": "mod", "reason": "spam"})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["user_total_warnings"])
	id := body["warn_id"].(string)

	w = do(t, server, http.MethodPost, "/api/warnings", gin.H{"guild_id": "g", "member_id": "m", "moderator_id": "mod"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, server, http.MethodGet, "/api/warnings/g/m", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["warnings"], 1)

	w = do(t, server, http.MethodDelete, "/api/warnings/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["user_total_warnings_remaining"])

	w = do(t, server, http.MethodDelete, "/api/warnings/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMissionsAndStats(t *testing.T) {
	ctx := context.Background()
	server, s := newTestServer(t)

	for range 3 {
		_, err := s.IncrementProgress(ctx, store.ProgressKey{
			GuildID: "g", MemberID: "m", MissionID: "dzienna_aktywnosc_1", Condition: config.CondMessages,
			CycleStart: time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC),
		}, 1, time.Now())
		require.NoError(t, err)
	}

	w := do(t, server, http.MethodGet, "/api/missions/progress/g/m", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)["missions"].([]any)[0].(map[string]any)
	assert.Equal(t, "active", first["status"])
	cond := first["conditions"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(3), cond["current"])
	assert.Equal(t, float64(15), cond["required"])

	w = do(t, server, http.MethodGet, "/api/missions/definitions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["missions"], 7)

	w = do(t, server, http.MethodGet, "/api/missions/completed/g/m", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["completed"])

	_, err := s.AdjustWallet(ctx, testGuild, "a", store.Primary, 30)
	require.NoError(t, err)
	_, err = s.AdjustWallet(ctx, testGuild, "b", store.Primary, 50)
	require.NoError(t, err)
	w = do(t, server, http.MethodGet, "/api/ranking/primary?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ranking := decode(t, w)["ranking"].([]any)
	require.Len(t, ranking, 1)
	assert.Equal(t, "b", ranking[0].(map[string]any)["member_id"])

	w = do(t, server, http.MethodGet, "/api/ranking/gold", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, server, http.MethodGet, "/api/user_stats/b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(50), body["currency"])
	assert.Equal(t, float64(100), body["xp_for_next_level"])
}

func TestRateLimiterWithoutRedisFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter("", "", 0)
	r := gin.New()
	r.GET("/limited", limiter.Middleware(1, time.Minute), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.NoError(t, limiter.Close())
}

func TestContestWin(t *testing.T) {
	server, s := newTestServer(t)

	w := do(t, server, http.MethodPost, "/api/contests/win", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, server, http.MethodPost, "/api/contests/win", map[string]string{"member_id": "m"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m", decode(t, w)["member_id"])

	stats, err := s.GetStats(context.Background(), testGuild, "m")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ContestWins)
}

func TestStatRankingsAndServerViews(t *testing.T) {
	ctx := context.Background()
	server, s := newTestServer(t)

	_, err := s.IncrementStats(ctx, testGuild, "a", store.StatsDelta{XP: 300, Messages: 2, VoiceSeconds: 900})
	require.NoError(t, err)
	_, err = s.IncrementStats(ctx, testGuild, "b", store.StatsDelta{XP: 100, Messages: 9, VoiceSeconds: 60})
	require.NoError(t, err)
	_, err = s.AdjustWallet(ctx, testGuild, "a", store.Primary, 40)
	require.NoError(t, err)

	tests := []struct {
		kind  string
		first string
		value float64
	}{
		{"xp", "a", 300},
		{"messages", "b", 9},
		{"voicetime", "a", 900},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			w := do(t, server, http.MethodGet, "/api/ranking/"+tt.kind, nil)
			require.Equal(t, http.StatusOK, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.kind, body["stat"])
			ranking := body["ranking"].([]any)
			require.Len(t, ranking, 2)
			top := ranking[0].(map[string]any)
			assert.Equal(t, tt.first, top["member_id"])
			assert.Equal(t, tt.value, top["value"])
		})
	}

	w := do(t, server, http.MethodGet, "/api/server_stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["tracked_members"])
	assert.Equal(t, float64(11), body["total_messages"])
	assert.Equal(t, float64(960), body["total_voice_time_seconds"])
	assert.Equal(t, float64(40), body["total_currency"])

	w = do(t, server, http.MethodGet, "/api/config/"+testGuild, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	schedule := body["mission_schedule"].(map[string]any)
	assert.Equal(t, float64(4), schedule["daily_hour_utc"])
	assert.Equal(t, "monday", schedule["weekly_weekday"])
	assert.Equal(t, float64(150), body["xp"].(map[string]any)["currency_per_level"])
}
