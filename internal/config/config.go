package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	Timezone      string `envconfig:"TIMEZONE" default:"Local"`
	Production    bool   `envconfig:"PRODUCTION" default:"false"`

	LoginRateLimit    int `envconfig:"LOGIN_RATE_LIMIT" default:"5"`
	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"5"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"1h"`

	AuthSecret     string        `envconfig:"AUTH_SECRET"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`
	LoginTokenTTL  time.Duration `envconfig:"LOGIN_TOKEN_TTL" default:"1m"`
	BcryptCost     int           `envconfig:"BCRYPT_COST" default:"10"`

	SeedAdminUsername string `envconfig:"SEED_ADMIN_USERNAME" default:"admin"`
	SeedAdminEmail    string `envconfig:"SEED_ADMIN_EMAIL" default:"admin@retailpos.local"`
	SeedAdminPassword string `envconfig:"SEED_ADMIN_PASSWORD"`

	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://127.0.0.1:8080"`
	FrontendURL   string `envconfig:"FRONTEND_URL" default:"http://127.0.0.1:3000"`

	InvoiceDir   string `envconfig:"INVOICE_DIR" default:"invoices"`
	UploadDir    string `envconfig:"UPLOAD_DIR" default:"uploads"`
	GotenbergURL string `envconfig:"GOTENBERG_URL"`
	ShopName     string `envconfig:"SHOP_NAME" default:"Retail POS"`
	ShopAddress  string `envconfig:"SHOP_ADDRESS"`
	ShopPhone    string `envconfig:"SHOP_PHONE"`

	InvoiceLanguage string `envconfig:"INVOICE_LANGUAGE" default:"vi"`
	InvoiceCurrency string `envconfig:"INVOICE_CURRENCY" default:"VND"`

	BrevoAPIKey     string `envconfig:"BREVO_API_KEY"`
	BrevoBaseURL    string `envconfig:"BREVO_BASE_URL" default:"https://api.brevo.com"`
	EmailSender     string `envconfig:"EMAIL_SENDER" default:"no-reply@retailpos.local"`
	EmailSenderName string `envconfig:"EMAIL_SENDER_NAME" default:"Retail POS"`
	EmailQueue      bool   `envconfig:"EMAIL_QUEUE" default:"false"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 8 * time.Hour
	}
	if cfg.LoginTokenTTL <= 0 {
		cfg.LoginTokenTTL = time.Minute
	}
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = 5
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves TIMEZONE for report day boundaries.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
