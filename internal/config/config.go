package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port                string
	PostgresURL         string
	RedisAddr           string
	KafkaBrokers        []string
	JWTSecret           string
	LockTimeout         time.Duration
	OrderCacheTTL       time.Duration
	CommissionRate      decimal.Decimal
	EmailServiceURL     string
	OrdersServiceURL    string
	InventoryServiceURL string
	OTLPEndpoint        string
	MigrationsPath      string
}

// Load reads a .env file when present and then the process environment.
// Variables already set in the environment win over the file.
func Load(defaultPort string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:                getenv("PORT", defaultPort),
		PostgresURL:         os.Getenv("POSTGRES_URL"),
		RedisAddr:           getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:        splitCSV(os.Getenv("KAFKA_BROKERS")),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		EmailServiceURL:     os.Getenv("EMAIL_SERVICE_URL"),
		OrdersServiceURL:    os.Getenv("ORDERS_SERVICE_URL"),
		InventoryServiceURL: os.Getenv("INVENTORY_SERVICE_URL"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MigrationsPath:      getenv("MIGRATIONS_PATH", "file://migrations"),
	}

	var err error
	if cfg.LockTimeout, err = time.ParseDuration(getenv("LOCK_TIMEOUT", "5s")); err != nil {
		return Config{}, fmt.Errorf("LOCK_TIMEOUT: %w", err)
	}
	if cfg.OrderCacheTTL, err = time.ParseDuration(getenv("ORDER_CACHE_TTL", "5m")); err != nil {
		return Config{}, fmt.Errorf("ORDER_CACHE_TTL: %w", err)
	}
	if cfg.CommissionRate, err = decimal.NewFromString(getenv("COMMISSION_RATE", "0.10")); err != nil {
		return Config{}, fmt.Errorf("COMMISSION_RATE: %w", err)
	}
	if cfg.CommissionRate.IsNegative() || cfg.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("COMMISSION_RATE must be between 0 and 1, got %s", cfg.CommissionRate)
	}

	return cfg, nil
}

// Require returns an error naming every listed variable that is empty.
func (c Config) Require(names ...string) error {
	values := map[string]string{
		"POSTGRES_URL":          c.PostgresURL,
		"REDIS_ADDR":            c.RedisAddr,
		"KAFKA_BROKERS":         strings.Join(c.KafkaBrokers, ","),
		"JWT_SECRET":            c.JWTSecret,
		"EMAIL_SERVICE_URL":     c.EmailServiceURL,
		"ORDERS_SERVICE_URL":    c.OrdersServiceURL,
		"INVENTORY_SERVICE_URL": c.InventoryServiceURL,
	}

	var missing []string
	for _, name := range names {
		if values[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
