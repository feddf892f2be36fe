package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Google  GoogleConfig
	OAuth   OAuthStateConfig
	Tokens  TokensConfig
	Booking BookingConfig
	Retry   RetryConfig
	Twilio  TwilioConfig
	API     APIConfig
}

type AppConfig struct {
	Port        string
	Env         string
	DebugRoutes bool
	DebugKey    string
}

type DBConfig struct {
	Dialect     string // "sqlite" or "postgres"
	SQLitePath  string
	DatabaseURL string
}

type RedisConfig struct {
	Addr     string // empty disables redis
	Password string
	DB       int
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timeout      time.Duration
}

type OAuthStateConfig struct {
	Secret string
	TTL    time.Duration
}

type TokensConfig struct {
	EncKeyHex    string
	RunMigration bool
}

type BookingConfig struct {
	HoldMinutes int
}

type RetryConfig struct {
	RunWorker    bool
	TickInterval time.Duration
	BatchSize    int
	LockTTL      time.Duration
}

type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	FromNumber     string
	EmergencyPhone string // fallback technician phone
}

type APIConfig struct {
	Key string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// .env is optional; env vars alone are a valid configuration.
	_ = viper.ReadInConfig()

	setDefaults()

	config := &Config{
		App: AppConfig{
			Port:        viper.GetString("PORT"),
			Env:         viper.GetString("NODE_ENV"),
			DebugRoutes: viper.GetBool("DEBUG_ROUTES"),
			DebugKey:    viper.GetString("DEBUG_ADMIN_KEY"),
		},
		DB: DBConfig{
			Dialect:     viper.GetString("DB_DIALECT"),
			SQLitePath:  viper.GetString("SQLITE_PATH"),
			DatabaseURL: viper.GetString("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Google: GoogleConfig{
			ClientID:     viper.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: viper.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  viper.GetString("GOOGLE_REDIRECT_URI"),
			Timeout:      time.Duration(viper.GetInt("GOOGLE_API_TIMEOUT_MS")) * time.Millisecond,
		},
		OAuth: OAuthStateConfig{
			Secret: viper.GetString("OAUTH_STATE_SECRET"),
			TTL:    time.Duration(viper.GetInt("OAUTH_STATE_TTL_SEC")) * time.Second,
		},
		Tokens: TokensConfig{
			EncKeyHex:    viper.GetString("TOKENS_ENC_KEY"),
			RunMigration: viper.GetString("RUN_TOKEN_MIGRATION") == "1",
		},
		Booking: BookingConfig{
			HoldMinutes: viper.GetInt("BOOKING_HOLD_MINUTES"),
		},
		Retry: RetryConfig{
			RunWorker:    viper.GetString("RUN_RETRY_WORKER") == "1",
			TickInterval: time.Duration(viper.GetInt("RETRY_TICK_SEC")) * time.Second,
			BatchSize:    viper.GetInt("RETRY_BATCH_SIZE"),
			LockTTL:      time.Duration(viper.GetInt("RETRY_WORKER_LOCK_TTL_SEC")) * time.Second,
		},
		Twilio: TwilioConfig{
			AccountSID:     viper.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:      viper.GetString("TWILIO_AUTH_TOKEN"),
			FromNumber:     viper.GetString("TWILIO_FROM_NUMBER"),
			EmergencyPhone: viper.GetString("EMERGENCY_PHONE"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("NODE_ENV", "development")
	viper.SetDefault("DB_DIALECT", "sqlite")
	viper.SetDefault("SQLITE_PATH", "bookings.db")
	viper.SetDefault("GOOGLE_API_TIMEOUT_MS", 10000)
	viper.SetDefault("OAUTH_STATE_TTL_SEC", 600)
	viper.SetDefault("BOOKING_HOLD_MINUTES", 5)
	viper.SetDefault("RETRY_TICK_SEC", 15)
	viper.SetDefault("RETRY_BATCH_SIZE", 20)
	viper.SetDefault("RETRY_WORKER_LOCK_TTL_SEC", 60)
}

func (c *Config) validate() error {
	if c.DB.Dialect != "sqlite" && c.DB.Dialect != "postgres" {
		return fmt.Errorf("unsupported DB_DIALECT %q", c.DB.Dialect)
	}
	if c.DB.Dialect == "postgres" && c.DB.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_DIALECT=postgres")
	}
	if c.IsProduction() && c.Tokens.EncKeyHex == "" {
		return fmt.Errorf("TOKENS_ENC_KEY is required in production")
	}
	if c.Tokens.EncKeyHex != "" {
		raw, err := hex.DecodeString(c.Tokens.EncKeyHex)
		if err != nil || len(raw) != 32 {
			return fmt.Errorf("TOKENS_ENC_KEY must be 64 hex characters (32 bytes)")
		}
	}
	return nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
