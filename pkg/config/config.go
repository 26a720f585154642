// Package config loads the process configuration from the environment and the static
// game catalog from YAML.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

// Config holds the settings read from the environment.
type Config struct {
	Store store.Options

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	APIPort         string
	APIKey          string
	APIRateLimit    int
	APIRateWindow   time.Duration
	MainServerID    string
	BotToken        string
	AppID           string
	GuildID         string
	CatalogPath     string
	LogLevel        string
	LogFormat       string
	RoleSweepPeriod time.Duration
}

// Load reads the configuration from the environment, after loading a .env file if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Store: store.Options{
			Type:          strings.ToLower(os.Getenv("CHRONICLES_STORE")),
			FileDir:       os.Getenv("CHRONICLES_FILE_STORE_DIR"),
			MongoURI:      os.Getenv("MONGODB_URI"),
			MongoDatabase: getenv("MONGODB_DATABASE", "Chronicles"),
			PostgresURL:   os.Getenv("DATABASE_URL"),
		},
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getint("REDIS_DB", 0),
		APIPort:         getenv("API_PORT", "8080"),
		APIKey:          os.Getenv("API_KEY"),
		APIRateLimit:    getint("API_RATE_LIMIT", 60),
		APIRateWindow:   time.Duration(getint("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		MainServerID:    os.Getenv("MAIN_SERVER_ID"),
		BotToken:        os.Getenv("BOT_TOKEN"),
		AppID:           os.Getenv("APP_ID"),
		GuildID:         os.Getenv("CHRONICLES_GUILD_ID"),
		CatalogPath:     getenv("CHRONICLES_CATALOG", "catalog.yaml"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       os.Getenv("LOG_FORMAT"),
		RoleSweepPeriod: time.Duration(getint("ROLE_SWEEP_MINUTES", 5)) * time.Minute,
	}
}

// SetupLogging applies the configured log level and format.
func (c *Config) SetupLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.WithFields(log.Fields{"key": key, "value": v}).Warn("invalid number, using default")
		return def
	}
	return n
}
