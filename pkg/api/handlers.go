package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rbrabson/chronicles/pkg/economy"
	"github.com/rbrabson/chronicles/pkg/store"
)

const (
	defaultRankingLimit = 10
	maxRankingLimit     = 100
)

type userStatsResponse struct {
	MemberID       string `json:"member_id"`
	GuildID        string `json:"guild_id"`
	Level          int64  `json:"level"`
	XP             int64  `json:"xp"`
	XPForNextLevel int64  `json:"xp_for_next_level"`
	Primary        int64  `json:"currency"`
	Premium        int64  `json:"premium_currency"`
	Messages       int64  `json:"message_count"`
	VoiceSeconds   int64  `json:"voice_time_seconds"`
	Reactions      int64  `json:"reaction_count"`
	Streak         int64  `json:"current_streak_days"`
	LastActiveDay  string `json:"streak_last_active_day_iso,omitempty"`
}

func (s *Server) userStats(c *gin.Context) {
	ctx := c.Request.Context()
	member := c.Param("member")

	stats, err := s.services.Store.GetStats(ctx, s.opts.GuildID, member)
	if err != nil {
		writeError(c, err)
		return
	}
	wallet, err := s.services.Bank.Balance(ctx, s.opts.GuildID, member)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := userStatsResponse{
		MemberID:       member,
		GuildID:        s.opts.GuildID,
		Level:          stats.Level,
		XP:             stats.XP,
		XPForNextLevel: economy.TotalXPForLevel(stats.Level+1) - stats.XP,
		Primary:        wallet.Primary,
		Premium:        wallet.Premium,
		Messages:       stats.Messages,
		VoiceSeconds:   stats.VoiceSeconds,
		Reactions:      stats.Reactions,
		Streak:         stats.Streak,
	}
	if !stats.LastActiveDay.IsZero() {
		resp.LastActiveDay = stats.LastActiveDay.Format("2006-01-02")
	}
	c.JSON(http.StatusOK, resp)
}

type rankingEntry struct {
	Rank     int    `json:"rank"`
	MemberID string `json:"member_id"`
	Value    int64  `json:"value"`
}

// ranking ranks the guild by a currency balance or by an activity stat.
func (s *Server) ranking(c *gin.Context) {
	kind := c.Param("kind")
	currency, stat := store.Currency(kind), economy.Stat(kind)
	if !currency.Valid() && !stat.Valid() {
		badRequest(c, "ranking must be one of primary, premium, xp, messages, voicetime")
		return
	}
	limit := defaultRankingLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive number")
			return
		}
		limit = min(n, maxRankingLimit)
	}
	ctx := c.Request.Context()

	if currency.Valid() {
		wallets, err := s.services.Bank.Ranking(ctx, s.opts.GuildID, currency, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		entries := make([]rankingEntry, 0, len(wallets))
		for i, w := range wallets {
			entries = append(entries, rankingEntry{Rank: i + 1, MemberID: w.MemberID, Value: w.Balance(currency)})
		}
		c.JSON(http.StatusOK, gin.H{"currency": currency, "ranking": entries})
		return
	}

	stats, err := s.services.Bank.StatRanking(ctx, s.opts.GuildID, stat, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	entries := make([]rankingEntry, 0, len(stats))
	for i, ms := range stats {
		entries = append(entries, rankingEntry{Rank: i + 1, MemberID: ms.MemberID, Value: stat.Value(ms)})
	}
	c.JSON(http.StatusOK, gin.H{"stat": stat, "ranking": entries})
}

func (s *Server) serverStats(c *gin.Context) {
	summary, err := s.services.Bank.Summary(c.Request.Context(), s.opts.GuildID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// guildConfig shows the settings in effect for the guild. They come from the catalog and are
// the same for every guild.
func (s *Server) guildConfig(c *gin.Context) {
	catalog := s.services.Catalog
	c.JSON(http.StatusOK, gin.H{
		"guild_id":         c.Param("guild"),
		"mission_schedule": catalog.ResetSchedule,
		"xp":               catalog.XP,
		"daily":            catalog.Daily,
		"currencies":       []store.Currency{store.Primary, store.Premium},
	})
}

func (s *Server) userInventory(c *gin.Context) {
	owned, err := s.services.Shop.ListActive(c.Request.Context(), s.opts.GuildID, c.Param("member"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": owned})
}

func (s *Server) userAchievements(c *gin.Context) {
	statuses, err := s.services.Achievements.Evaluate(c.Request.Context(), c.Param("guild"), c.Param("member"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": statuses})
}

func (s *Server) listPackages(c *gin.Context) {
	c.JSON(http.StatusOK, s.services.Catalog.Packages)
}

type finalizeRequest struct {
	MemberID      string `json:"member_id" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
}

func (s *Server) finalizePackage(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "member_id and transaction_id are required")
		return
	}
	wallet, err := s.services.Bank.FinalizePackage(c.Request.Context(), s.opts.GuildID, req.MemberID, c.Param("package"), req.TransactionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"package_id":          c.Param("package"),
		"new_balance_premium": wallet.Premium,
	})
}

type warningRequest struct {
	GuildID     string `json:"guild_id" binding:"required"`
	MemberID    string `json:"member_id" binding:"required"`
	ModeratorID string `json:"moderator_id" binding:"required"`
	Reason      string `json:"reason"`
}

func (s *Server) addWarning(c *gin.Context) {
	var req warningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "guild_id, member_id and moderator_id are required")
		return
	}
	w, total, err := s.services.Moderation.AddWarning(c.Request.Context(), req.GuildID, req.MemberID, req.ModeratorID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"warn_id": w.ID, "user_total_warnings": total})
}

func (s *Server) removeWarning(c *gin.Context) {
	w, remaining, err := s.services.Moderation.RemoveWarning(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warn_id": w.ID, "member_id": w.MemberID, "user_total_warnings_remaining": remaining})
}

func (s *Server) listWarnings(c *gin.Context) {
	warnings, err := s.services.Moderation.ListWarnings(c.Request.Context(), c.Param("guild"), c.Param("member"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warnings": warnings})
}

type contestWinRequest struct {
	GuildID  string `json:"guild_id"`
	MemberID string `json:"member_id" binding:"required"`
}

func (s *Server) contestWin(c *gin.Context) {
	var req contestWinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "member_id is required")
		return
	}
	if req.GuildID == "" {
		req.GuildID = s.opts.GuildID
	}
	result, err := s.services.Activity.ContestWin(c.Request.Context(), req.GuildID, req.MemberID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_id": req.MemberID, "achievements_unlocked": result.Achievements})
}

func (s *Server) missionDefinitions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"missions": s.services.Catalog.Missions})
}

func (s *Server) missionProgress(c *gin.Context) {
	statuses, err := s.services.Missions.Statuses(c.Request.Context(), c.Param("guild"), c.Param("member"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"missions": statuses})
}

func (s *Server) missionsCompleted(c *gin.Context) {
	completed, err := s.services.Missions.Completed(c.Request.Context(), c.Param("guild"), c.Param("member"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": completed})
}
