package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret      string        // JWT署名シークレット
	AccessTokenTTL time.Duration // アクセストークンの有効期限

	GoEnv    string // dev/prod
	LogLevel string // debug/info/warn/error

	// 金額表示（例: "Rp 50.000"）
	CurrencyPrefix   string
	CurrencyLocale   string
	CurrencyDecimals int

	// チェックアウトの引き渡し先（wa.me）
	HandoffBaseURL     string
	CheckoutClearDelay time.Duration

	// 商品画像（空なら画像アップロード無効）
	GCSBucket          string
	GCSPublicBaseURL   string
	GCSCredentialsFile string // 空ならADC

	// チェックアウトイベント（空なら送らない）
	RabbitMQURL      string
	CheckoutExchange string
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiOr("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	decimals, err := atoiOr("CURRENCY_DECIMALS", 0)
	if err != nil {
		return Config{}, err
	}
	accessTTL, err := durationOr("ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return Config{}, err
	}
	clearDelay, err := durationOr("CHECKOUT_CLEAR_DELAY", time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "marketplace"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: accessTTL,

		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		CurrencyPrefix:   getenv("CURRENCY_PREFIX", "Rp"),
		CurrencyLocale:   getenv("CURRENCY_LOCALE", "id"),
		CurrencyDecimals: decimals,

		HandoffBaseURL:     getenv("HANDOFF_BASE_URL", "https://wa.me/"),
		CheckoutClearDelay: clearDelay,

		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSPublicBaseURL:   os.Getenv("GCS_PUBLIC_BASE_URL"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),

		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		CheckoutExchange: getenv("CHECKOUT_EXCHANGE", "marketplace.events"),
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.CurrencyDecimals < 0 || cfg.CurrencyDecimals > 4 {
		return Config{}, fmt.Errorf("CURRENCY_DECIMALS must be between 0 and 4")
	}
	if cfg.CheckoutClearDelay < 0 {
		return Config{}, fmt.Errorf("CHECKOUT_CLEAR_DELAY must be >= 0")
	}
	if !strings.HasPrefix(cfg.HandoffBaseURL, "https://") && !strings.HasPrefix(cfg.HandoffBaseURL, "http://") {
		return Config{}, fmt.Errorf("HANDOFF_BASE_URL must be an http(s) URL")
	}
	if !strings.HasSuffix(cfg.HandoffBaseURL, "/") {
		cfg.HandoffBaseURL += "/"
	}

	return cfg, nil
}

// Postgres接続文字列（DATABASE_URLがあればそれ）
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod" || c.GoEnv == "production"
}

func getenv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func atoiOr(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 1s): %w", key, err)
	}
	return d, nil
}
