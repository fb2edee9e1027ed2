package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Database
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Auth
	JWTSecret          string
	JWTAlgorithm       string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	PasswordScheme     string

	// Food database (Edamam)
	FoodDatabaseAppID  string
	FoodDatabaseAppKey string
	EdamamURL          string
	EdamamTimeout      time.Duration

	// Open Food Facts
	OpenFoodFactsURL     string
	OpenFoodFactsTimeout time.Duration

	// LLM
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	OpenAITimeout         time.Duration
	OpenAIMaxOutputTokens int

	// Housekeeping
	SessionRetention time.Duration
	LogRetention     time.Duration

	// Server
	Port        string
	CORSOrigins string
	LogLevel    string
	SentryDSN   string
	AppEnv      string
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBHost:      v.GetString("DB_HOST"),
		DBPort:      v.GetString("DB_PORT"),
		DBUser:      v.GetString("DB_USER"),
		DBPassword:  v.GetString("DB_PASSWORD"),
		DBName:      v.GetString("DB_NAME"),
		DBSSLMode:   v.GetString("DB_SSLMODE"),

		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTAlgorithm:       strings.ToUpper(v.GetString("JWT_ALG")),
		AccessTokenExpiry:  time.Duration(v.GetInt("ACCESS_TOKEN_MINUTES")) * time.Minute,
		RefreshTokenExpiry: time.Duration(v.GetInt("REFRESH_TOKEN_DAYS")) * 24 * time.Hour,
		PasswordScheme:     v.GetString("PASSWORD_SCHEME"),

		FoodDatabaseAppID:  v.GetString("FOOD_DATABASE_API_ID"),
		FoodDatabaseAppKey: v.GetString("FOOD_DATABASE_API_KEY"),
		EdamamURL:          strings.TrimRight(v.GetString("EDAMAM_URL"), "/"),
		EdamamTimeout:      v.GetDuration("EDAMAM_TIMEOUT"),

		OpenFoodFactsURL:     strings.TrimRight(v.GetString("OPEN_FOOD_FACTS_BASE_URL"), "/"),
		OpenFoodFactsTimeout: time.Duration(v.GetFloat64("OPEN_FOOD_FACTS_TIMEOUT_SECONDS") * float64(time.Second)),

		OpenAIAPIKey:          v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:         strings.TrimRight(v.GetString("OPENAI_BASE_URL"), "/"),
		OpenAIModel:           v.GetString("OPENAI_MODEL"),
		OpenAITimeout:         v.GetDuration("OPENAI_TIMEOUT"),
		OpenAIMaxOutputTokens: v.GetInt("OPENAI_MAX_OUTPUT_TOKENS"),

		SessionRetention: v.GetDuration("SESSION_RETENTION"),
		LogRetention:     v.GetDuration("LOG_RETENTION"),

		Port:        v.GetString("PORT"),
		CORSOrigins: v.GetString("CORS_ORIGINS"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		SentryDSN:   v.GetString("SENTRY_DSN"),
		AppEnv:      v.GetString("APP_ENV"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "torvix")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("JWT_ALG", "HS256")
	v.SetDefault("ACCESS_TOKEN_MINUTES", 60)
	v.SetDefault("REFRESH_TOKEN_DAYS", 30)
	v.SetDefault("PASSWORD_SCHEME", "pbkdf2_sha256")

	v.SetDefault("EDAMAM_URL", "https://api.edamam.com")
	v.SetDefault("EDAMAM_TIMEOUT", "15s")

	v.SetDefault("OPEN_FOOD_FACTS_BASE_URL", "https://world.openfoodfacts.org")
	v.SetDefault("OPEN_FOOD_FACTS_TIMEOUT_SECONDS", 10)

	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4.1-mini")
	v.SetDefault("OPENAI_TIMEOUT", "60s")
	v.SetDefault("OPENAI_MAX_OUTPUT_TOKENS", 1200)

	v.SetDefault("SESSION_RETENTION", "720h")
	v.SetDefault("LOG_RETENTION", "720h")

	v.SetDefault("PORT", "8080")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALG %q", c.JWTAlgorithm)
	}
	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}
