package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"microbonds/pkg/domain"
	strutil "microbonds/pkg/platform/strings"
)

// Storage price the ledger charges per byte of deployed code (10^19 yocto).
const defaultStoragePricePerByte = "10000000000000000000"

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	// AdminAPIToken enables the /admin endpoints; empty leaves them unmounted.
	AdminAPIToken string
	LogLevel      string
	// DatabaseURL selects the Postgres stores; empty means in-memory.
	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	Factory     FactoryConfig
	Custody     CustodyConfig
	Registry    RegistryConfig
	// SandboxBalances seeds the in-process ledger.
	SandboxBalances map[domain.AccountID]domain.Amount
}

// FactoryConfig holds the factory service identity and pricing.
type FactoryConfig struct {
	OwnerID                domain.AccountID
	AccountID              domain.AccountID
	StoragePricePerByte    domain.Amount
	AccountCreationReserve domain.Amount
}

// CustodyConfig holds the custody service identity.
type CustodyConfig struct {
	OwnerID   domain.AccountID
	AccountID domain.AccountID
}

// RegistryConfig holds the membership registry identity.
type RegistryConfig struct {
	OwnerID domain.AccountID
}

// RedisConfig configures the membership store connection. An empty URL
// keeps membership in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimitConfig sets per-minute limits for reads (per client IP) and
// mutations (per caller).
type RateLimitConfig struct {
	Disabled        bool
	ReadsPerMinute  int
	WritesPerMinute int
}

// KafkaConfig configures the outbox relay. No brokers disables the relay.
type KafkaConfig struct {
	Brokers     []string
	EventsTopic string
	Partitions  int32
	Replication int16
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          envOr("MICROBONDS_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AdminAPIToken: os.Getenv("ADMIN_API_TOKEN"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			Disabled:        os.Getenv("RATE_LIMIT_DISABLED") == "true",
			ReadsPerMinute:  envInt("RATE_LIMIT_READS_PER_MINUTE", 300),
			WritesPerMinute: envInt("RATE_LIMIT_WRITES_PER_MINUTE", 60),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			EventsTopic: envOr("KAFKA_EVENTS_TOPIC", "microbonds.events"),
			Partitions:  int32(envInt("KAFKA_EVENTS_PARTITIONS", 3)),
			Replication: int16(envInt("KAFKA_EVENTS_REPLICATION", 1)),
		},
	}

	var err error
	if cfg.Factory.OwnerID, err = accountFromEnv("FACTORY_OWNER_ID", "owner.test.near"); err != nil {
		return cfg, err
	}
	if cfg.Factory.AccountID, err = accountFromEnv("FACTORY_ACCOUNT_ID", "factory.test.near"); err != nil {
		return cfg, err
	}
	if cfg.Factory.StoragePricePerByte, err = amountFromEnv("STORAGE_PRICE_PER_BYTE", defaultStoragePricePerByte); err != nil {
		return cfg, err
	}
	if cfg.Factory.AccountCreationReserve, err = amountFromEnv("ACCOUNT_CREATION_RESERVE", "0"); err != nil {
		return cfg, err
	}
	if cfg.Custody.OwnerID, err = accountFromEnv("CUSTODY_OWNER_ID", "owner.test.near"); err != nil {
		return cfg, err
	}
	if cfg.Custody.AccountID, err = accountFromEnv("CUSTODY_ACCOUNT_ID", "custody.test.near"); err != nil {
		return cfg, err
	}
	if cfg.Registry.OwnerID, err = accountFromEnv("REGISTRY_OWNER_ID", "owner.test.near"); err != nil {
		return cfg, err
	}
	if cfg.SandboxBalances, err = ParseBalances(os.Getenv("SANDBOX_BALANCES")); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseBalances reads "account=amount" pairs separated by commas.
func ParseBalances(raw string) (map[domain.AccountID]domain.Amount, error) {
	out := make(map[domain.AccountID]domain.Amount)
	for _, pair := range splitList(raw) {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("SANDBOX_BALANCES: %q is not account=amount", pair)
		}
		id, err := domain.ParseAccountID(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("SANDBOX_BALANCES: %w", err)
		}
		amount, err := domain.ParseAmount(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("SANDBOX_BALANCES: %w", err)
		}
		out[id] = amount
	}
	return out, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func accountFromEnv(key, fallback string) (domain.AccountID, error) {
	id, err := domain.ParseAccountID(envOr(key, fallback))
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return id, nil
}

func amountFromEnv(key, fallback string) (domain.Amount, error) {
	a, err := domain.ParseAmount(envOr(key, fallback))
	if err != nil {
		return domain.Amount{}, fmt.Errorf("%s: %w", key, err)
	}
	return a, nil
}

func splitList(raw string) []string {
	return strutil.DedupeAndTrim(strings.Split(raw, ","))
}
