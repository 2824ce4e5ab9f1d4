package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies EXCHANGED_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known EXCHANGED_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "EXCHANGED_DATABASE_DSN")
	setStr(&cfg.Database.Host, "EXCHANGED_DATABASE_HOST")
	setInt(&cfg.Database.Port, "EXCHANGED_DATABASE_PORT")
	setStr(&cfg.Database.Database, "EXCHANGED_DATABASE_NAME")
	setStr(&cfg.Database.User, "EXCHANGED_DATABASE_USER")
	setStr(&cfg.Database.Password, "EXCHANGED_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "EXCHANGED_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "EXCHANGED_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "EXCHANGED_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "EXCHANGED_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "EXCHANGED_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EXCHANGED_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EXCHANGED_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EXCHANGED_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "EXCHANGED_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "EXCHANGED_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "EXCHANGED_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "EXCHANGED_S3_REGION")
	setStr(&cfg.S3.Bucket, "EXCHANGED_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "EXCHANGED_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "EXCHANGED_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "EXCHANGED_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "EXCHANGED_S3_FORCE_PATH_STYLE")

	// ── Exchange ──
	setInt(&cfg.Exchange.DefaultFeeBps, "EXCHANGED_EXCHANGE_DEFAULT_FEE_BPS")
	setInt(&cfg.Exchange.MaxSlippageBps, "EXCHANGED_EXCHANGE_MAX_SLIPPAGE_BPS")
	setInt(&cfg.Exchange.DepositToleranceBps, "EXCHANGED_EXCHANGE_DEPOSIT_TOLERANCE_BPS")
	setBool(&cfg.Exchange.AllowDisproportionateDeposits, "EXCHANGED_EXCHANGE_ALLOW_DISPROPORTIONATE_DEPOSITS")
	setDuration(&cfg.Exchange.PoolCacheTTL, "EXCHANGED_EXCHANGE_POOL_CACHE_TTL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "EXCHANGED_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "EXCHANGED_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "EXCHANGED_ARCHIVE_INTERVAL")
	setBool(&cfg.Archive.DeleteAfterUpload, "EXCHANGED_ARCHIVE_DELETE_AFTER_UPLOAD")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "EXCHANGED_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "EXCHANGED_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "EXCHANGED_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "EXCHANGED_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "EXCHANGED_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "EXCHANGED_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "EXCHANGED_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "EXCHANGED_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "EXCHANGED_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "EXCHANGED_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "EXCHANGED_MODE")
	setStr(&cfg.LogLevel, "EXCHANGED_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
