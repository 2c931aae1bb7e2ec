package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config はサーバーとバッチ共通の設定
type Config struct {
	Port   string
	Debug  bool
	APIKey string // ASTRA_API_KEY, 空なら認証なし

	// LLM
	LLMProvider   string
	LLMModel      string
	LLMBaseURL    string
	LLMAPIKey     string
	LLMTimeout    time.Duration
	LLMMaxRetries int
	LLMRetryDelay time.Duration

	// 永続化
	DatabaseDriver string
	DatabaseURL    string
	SQLitePath     string
	TurnStore      string
	DynamoEndpoint string
	DynamoRegion   string
	DynamoTable    string

	// 会話
	HistoryLimit    int
	DefaultLanguage string
	DefaultTimezone string
	PersonasFile    string

	// ジオコーディング
	GeocoderURL     string
	GeocoderTimeout time.Duration

	// 同一性ガード
	IdentityGuard     bool
	IdentityThreshold float64
	EmbeddingModel    string
	EmbeddingAPIKey   string

	// 記憶の統合
	ConsolidationSchedule    string
	ConsolidationQuietPeriod time.Duration
	ConsolidationLookback    time.Duration
	ConsolidationMinMessages int
}

// Load は環境変数 (と .env) から設定を読み込む
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		Debug:  getEnvBool("DEBUG", false),
		APIKey: os.Getenv("ASTRA_API_KEY"),

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:      os.Getenv("LLM_MODEL"),
		LLMBaseURL:    os.Getenv("LLM_BASE_URL"),
		LLMTimeout:    getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxRetries: getEnvInt("LLM_MAX_RETRIES", 2),
		LLMRetryDelay: getEnvDuration("LLM_RETRY_DELAY", time.Second),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", "astra.db"),
		TurnStore:      strings.ToLower(getEnv("TURN_STORE", "sql")),
		DynamoEndpoint: getEnv("DYNAMODB_ENDPOINT", "http://localhost:8000"),
		DynamoRegion:   getEnv("DYNAMODB_REGION", "us-east-1"),
		DynamoTable:    getEnv("DYNAMODB_TABLE", "Conversations"),

		HistoryLimit:    getEnvInt("HISTORY_LIMIT", 20),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "Hinglish"),
		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "Asia/Kolkata"),
		PersonasFile:    os.Getenv("PERSONAS_FILE"),

		GeocoderURL:     getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderTimeout: getEnvDuration("GEOCODER_TIMEOUT", 10*time.Second),

		IdentityGuard:     getEnvBool("IDENTITY_GUARD", false),
		IdentityThreshold: getEnvFloat("IDENTITY_THRESHOLD", 0.80),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingAPIKey:   os.Getenv("OPENAI_API_KEY"),

		ConsolidationSchedule:    getEnv("CONSOLIDATION_SCHEDULE", "@every 10m"),
		ConsolidationQuietPeriod: getEnvDuration("CONSOLIDATION_QUIET_PERIOD", 30*time.Minute),
		ConsolidationLookback:    getEnvDuration("CONSOLIDATION_LOOKBACK", 72*time.Hour),
		ConsolidationMinMessages: getEnvInt("CONSOLIDATION_MIN_MESSAGES", 2),
	}
	cfg.LLMAPIKey = providerAPIKey(cfg.LLMProvider)

	return cfg, cfg.Validate()
}

// providerAPIKey はプロバイダ名から API キーの環境変数を決める
// 例: groq -> GROQ_API_KEY
func providerAPIKey(provider string) string {
	switch provider {
	case "claude", "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		if v := os.Getenv(strings.ToUpper(provider) + "_API_KEY"); v != "" {
			return v
		}
		return os.Getenv("LLM_API_KEY")
	}
}

func (c *Config) Validate() error {
	if c.HistoryLimit < 1 || c.HistoryLimit > 100 {
		return fmt.Errorf("HISTORY_LIMIT must be 1-100, got %d", c.HistoryLimit)
	}
	if c.LLMMaxRetries < 0 || c.LLMMaxRetries > 10 {
		return fmt.Errorf("LLM_MAX_RETRIES must be 0-10, got %d", c.LLMMaxRetries)
	}
	if c.IdentityThreshold < 0 || c.IdentityThreshold > 1 {
		return fmt.Errorf("IDENTITY_THRESHOLD must be 0-1, got %f", c.IdentityThreshold)
	}
	if c.IdentityGuard && c.EmbeddingAPIKey == "" {
		return fmt.Errorf("IDENTITY_GUARD requires OPENAI_API_KEY for embeddings")
	}
	if c.ConsolidationMinMessages < 0 {
		return fmt.Errorf("CONSOLIDATION_MIN_MESSAGES must not be negative, got %d", c.ConsolidationMinMessages)
	}
	switch c.DatabaseDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	switch c.TurnStore {
	case "sql", "dynamodb":
	default:
		return fmt.Errorf("TURN_STORE must be sql or dynamodb, got %q", c.TurnStore)
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	return nil
}

// Addr は gin.Run に渡すアドレス
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
