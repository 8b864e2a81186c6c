package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// OracleID is the only caller authorized for claims mutations;
	// ControllerID is the only caller authorized for mint/burn/forced
	// transfer. Rotation happens outside the core.
	OracleID     string
	ControllerID string

	// PayoutRate turns snapshot supply into a cycle's required amount.
	PayoutRate            decimal.Decimal
	DistributionBatchSize int
	OutboxBatchSize       int

	EnableExpiryAuditor      bool
	EnableDistributionRunner bool
	EnableOutboxRelay        bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "meridian"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	rate, err := envDecimal("PAYOUT_RATE", "0.06")
	if err != nil {
		return Config{}, err
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime: time.Duration(envInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,

		OracleID:     os.Getenv("ORACLE_ID"),
		ControllerID: os.Getenv("CONTROLLER_ID"),

		PayoutRate:            rate,
		DistributionBatchSize: envInt("DISTRIBUTION_BATCH_SIZE", 200),
		OutboxBatchSize:       envInt("OUTBOX_BATCH_SIZE", 100),

		EnableExpiryAuditor:      envBool("ENABLE_EXPIRY_AUDITOR", true),
		EnableDistributionRunner: envBool("ENABLE_DISTRIBUTION_RUNNER", true),
		EnableOutboxRelay:        envBool("ENABLE_OUTBOX_RELAY", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDecimal(name string, fallback string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		raw = fallback
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", name, err)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", name)
	}
	return value, nil
}
