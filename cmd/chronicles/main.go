package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rbrabson/chronicles/pkg/achievement"
	"github.com/rbrabson/chronicles/pkg/activity"
	"github.com/rbrabson/chronicles/pkg/api"
	"github.com/rbrabson/chronicles/pkg/cogs/achievements"
	cogeconomy "github.com/rbrabson/chronicles/pkg/cogs/economy"
	"github.com/rbrabson/chronicles/pkg/cogs/fun"
	"github.com/rbrabson/chronicles/pkg/cogs/missions"
	cogmoderation "github.com/rbrabson/chronicles/pkg/cogs/moderation"
	cogshop "github.com/rbrabson/chronicles/pkg/cogs/shop"
	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/discord"
	"github.com/rbrabson/chronicles/pkg/economy"
	"github.com/rbrabson/chronicles/pkg/mission"
	"github.com/rbrabson/chronicles/pkg/moderation"
	"github.com/rbrabson/chronicles/pkg/shop"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	cfg.SetupLogging()

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal("Failed to load the catalog, error:", err)
	}

	ctx := context.Background()
	db, err := store.New(ctx, cfg.Store)
	if err != nil {
		log.Fatal("Failed to open the store, error:", err)
	}
	defer db.Close(ctx)

	bank := economy.NewBank(db, catalog)
	granter := achievement.NewGranter(db, catalog, bank)
	bank.SetGranter(granter)
	tracker := mission.NewTracker(db, catalog, bank)
	shopEngine := shop.NewEngine(db, nil)
	moderator := moderation.NewModerator(db)
	recorder := activity.NewRecorder(db, catalog, activity.Services{
		Bank:         bank,
		Missions:     tracker,
		Achievements: granter,
		Bonuses:      shopEngine,
	})
	bank.OnLevelUp(recorder.OnLevelUp)

	if err := shopEngine.Seed(ctx, catalog.ShopItems); err != nil {
		log.Fatal("Failed to seed the shop, error:", err)
	}

	limiter := api.NewRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer limiter.Close()
	evaluator := achievement.NewEvaluator(db, catalog)
	server := api.NewServer(api.Services{
		Store:        db,
		Catalog:      catalog,
		Bank:         bank,
		Shop:         shopEngine,
		Missions:     tracker,
		Achievements: evaluator,
		Moderation:   moderator,
		Activity:     recorder,
	}, api.Options{
		Port:        cfg.APIPort,
		APIKey:      cfg.APIKey,
		GuildID:     cfg.MainServerID,
		RateLimit:   cfg.APIRateLimit,
		RateWindow:  cfg.APIRateWindow,
		RateLimiter: limiter,
	})

	var bot *discord.Bot
	if cfg.BotToken == "" {
		log.Warn("BOT_TOKEN is not set, running the API only")
	} else {
		bot, err = discord.NewBot(discord.Options{
			Token:       cfg.BotToken,
			AppID:       cfg.AppID,
			GuildID:     cfg.GuildID,
			Activity:    recorder,
			Roles:       shopEngine,
			SweepPeriod: cfg.RoleSweepPeriod,
		},
			cogeconomy.New(bank, db),
			cogshop.New(shopEngine),
			missions.New(tracker),
			achievements.New(evaluator),
			cogmoderation.New(moderator),
			fun.New(cfg.AppID, recorder),
		)
		if err != nil {
			log.Fatal("Failed to create the bot, error:", err)
		}
		shopEngine.SetRoleGateway(discord.NewRoleGateway(bot.Session))
	}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Fatal("API server failed, error:", err)
		}
	}()

	if bot != nil {
		if err := bot.Start(); err != nil {
			log.Fatal("Failed to start the bot, error:", err)
		}
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	log.Info("Press Ctrl+C to exit")
	<-sc

	if bot != nil {
		if err := bot.Stop(); err != nil {
			log.Error("Failed to close the Discord session, error:", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to stop the API server, error:", err)
	}
}
