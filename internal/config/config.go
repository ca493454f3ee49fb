package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string // サーバーポート（8080）
	GoEnv    string // dev/prod
	LogLevel string // debug/info/warn/error

	JWTSecret string // JWT署名シークレット
	FEURL     string // フロントURL（決済後の戻り先、CORS）

	DB      DBConfig
	Payment PaymentConfig
	Pricing PricingConfig

	RedisURL     string // 空ならプロセス内ロック
	OTLPEndpoint string // 空ならトレースは外に送らない
}

type DBConfig struct {
	Driver   string // postgres / mysql
	URL      string // DATABASE_URL
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type PaymentConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string
	GatewayTimeout      time.Duration
}

// 金額はセント単位、税率はbps（1000 = 10%）
type PricingConfig struct {
	DeliveryFeeCents    int64
	TaxRateBps          int64
	TaxIncludesDelivery bool
}

const (
	defaultDeliveryFeeCents = 500
	defaultTaxRateBps       = 1000
	defaultGatewayTimeout   = 10 * time.Second
)

// Loadは環境変数（＋CONFIG_FILEのYAML）から設定を読む
func Load() (Config, error) {
	cfg := Config{
		Port:     getenv("PORT", "8080"),
		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		FEURL:     os.Getenv("FE_URL"),

		DB: DBConfig{
			Driver:   getenv("DB_DRIVER", "postgres"),
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getenv("POSTGRES_HOST", "localhost"),
			Port:     getenv("POSTGRES_PORT", "5432"),
			User:     getenv("POSTGRES_USER", "postgres"),
			Password: getenv("POSTGRES_PASSWORD", "postgres"),
			Name:     getenv("POSTGRES_DB", "foodorder"),
			SSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		},

		Payment: PaymentConfig{
			StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:            "usd",
			GatewayTimeout:      defaultGatewayTimeout,
		},

		Pricing: PricingConfig{
			DeliveryFeeCents: defaultDeliveryFeeCents,
			TaxRateBps:       defaultTaxRateBps,
		},

		RedisURL:     os.Getenv("REDIS_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.DB.Driver == "mysql" {
		cfg.DB.Host = getenv("MYSQL_HOST", "127.0.0.1")
		cfg.DB.Port = getenv("MYSQL_PORT", "3306")
		cfg.DB.User = getenv("MYSQL_USER", "foodorder")
		cfg.DB.Password = getenv("MYSQL_PASSWORD", "foodorder")
		cfg.DB.Name = getenv("MYSQL_DATABASE", "foodorder")
	}

	//YAMLで上書き（料金・決済設定）
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	//環境変数はYAMLより優先
	if v := os.Getenv("CURRENCY"); v != "" {
		cfg.Payment.Currency = v
	}
	if err := overrideInt64("DELIVERY_FEE_CENTS", &cfg.Pricing.DeliveryFeeCents); err != nil {
		return Config{}, err
	}
	if err := overrideInt64("TAX_RATE_BPS", &cfg.Pricing.TaxRateBps); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("GATEWAY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("GATEWAY_TIMEOUT must be duration: %w", err)
		}
		cfg.Payment.GatewayTimeout = d
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	//必須チェック
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.FEURL == "" {
		return fmt.Errorf("FE_URL is required")
	}
	if c.Pricing.DeliveryFeeCents < 0 {
		return fmt.Errorf("delivery fee must be >= 0")
	}
	if c.Pricing.TaxRateBps < 0 || c.Pricing.TaxRateBps > 10000 {
		return fmt.Errorf("tax rate must be between 0 and 10000 bps")
	}
	if c.Payment.GatewayTimeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive")
	}
	return nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

type fileConfig struct {
	Payment *struct {
		Currency       string `yaml:"currency"`
		GatewayTimeout string `yaml:"gateway_timeout"`
	} `yaml:"payment"`
	Pricing *struct {
		DeliveryFeeCents    *int64 `yaml:"delivery_fee_cents"`
		TaxRateBps          *int64 `yaml:"tax_rate_bps"`
		TaxIncludesDelivery *bool  `yaml:"tax_includes_delivery"`
	} `yaml:"pricing"`
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if p := fc.Payment; p != nil {
		if p.Currency != "" {
			cfg.Payment.Currency = p.Currency
		}
		if p.GatewayTimeout != "" {
			d, err := time.ParseDuration(p.GatewayTimeout)
			if err != nil {
				return fmt.Errorf("payment.gateway_timeout must be duration: %w", err)
			}
			cfg.Payment.GatewayTimeout = d
		}
	}
	if p := fc.Pricing; p != nil {
		if p.DeliveryFeeCents != nil {
			cfg.Pricing.DeliveryFeeCents = *p.DeliveryFeeCents
		}
		if p.TaxRateBps != nil {
			cfg.Pricing.TaxRateBps = *p.TaxRateBps
		}
		if p.TaxIncludesDelivery != nil {
			cfg.Pricing.TaxIncludesDelivery = *p.TaxIncludesDelivery
		}
	}
	return nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func overrideInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s must be number: %w", key, err)
	}
	*dst = i
	return nil
}
