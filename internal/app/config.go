package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Драйверы хранилища outbox и ключей идемпотентности.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска витрины.
// Списки (регионы, брокеры) хранятся строками через запятую, чтобы Config
// оставался сравнимым значением.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	BackendURL            string
	BackendPublishableKey string
	BackendTimeout        time.Duration

	// FallbackRegions — имена регионов через запятую, которые пробуются,
	// если у страны нет своего региона.
	FallbackRegions       string
	CollectionConcurrency int
	RequestTimeout        time.Duration
	CookieSecure          bool

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers  string
	KafkaClientID string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxDrainTimeout time.Duration

	IdempotencyTTL               time.Duration
	IdempotencyCleanupInterval   time.Duration
	IdempotencyCleanupBatchSize  int
	IdempotencyCleanupMaxBatches int
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8000",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		BackendURL:     "http://localhost:9000",
		BackendTimeout: 10 * time.Second,

		CollectionConcurrency: 1,
		RequestTimeout:        30 * time.Second,

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		KafkaClientID: "storefront",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,
		OutboxDrainTimeout: 5 * time.Second,

		IdempotencyTTL:               24 * time.Hour,
		IdempotencyCleanupInterval:   10 * time.Minute,
		IdempotencyCleanupBatchSize:  500,
		IdempotencyCleanupMaxBatches: 100,
	}
}

// Ключи конфигурации: переменные окружения и строки .env.
const (
	keyHTTPAddr              = "STOREFRONT_HTTP_ADDR"
	keyGRPCAddr              = "STOREFRONT_GRPC_ADDR"
	keyMetricsAddr           = "STOREFRONT_METRICS_ADDR"
	keyBackendURL            = "STOREFRONT_BACKEND_URL"
	keyBackendKey            = "STOREFRONT_BACKEND_PUBLISHABLE_KEY"
	keyBackendTimeout        = "STOREFRONT_BACKEND_TIMEOUT"
	keyFallbackRegions       = "STOREFRONT_FALLBACK_REGIONS"
	keyCollectionConcurrency = "STOREFRONT_COLLECTION_CONCURRENCY"
	keyRequestTimeout        = "STOREFRONT_REQUEST_TIMEOUT"
	keyCookieSecure          = "STOREFRONT_COOKIE_SECURE"
	keyStorageDriver         = "STOREFRONT_STORAGE_DRIVER"
	keyPostgresDSN           = "STOREFRONT_POSTGRES_DSN"
	keyPostgresAutoMigrate   = "STOREFRONT_POSTGRES_AUTO_MIGRATE"
	keyKafkaBrokers          = "STOREFRONT_KAFKA_BROKERS"
	keyKafkaClientID         = "STOREFRONT_KAFKA_CLIENT_ID"
	keyOutboxPollInterval    = "STOREFRONT_OUTBOX_POLL_INTERVAL"
	keyOutboxBatchSize       = "STOREFRONT_OUTBOX_BATCH_SIZE"
	keyOutboxMaxAttempts     = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	keyOutboxRetryDelay      = "STOREFRONT_OUTBOX_RETRY_DELAY"
	keyOutboxDrainTimeout    = "STOREFRONT_OUTBOX_DRAIN_TIMEOUT"
	keyIdempotencyTTL        = "STOREFRONT_IDEMPOTENCY_TTL"
	keyIdempotencyInterval   = "STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL"
	keyIdempotencyBatchSize  = "STOREFRONT_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	keyIdempotencyMaxBatches = "STOREFRONT_IDEMPOTENCY_CLEANUP_MAX_BATCHES"
)

// LoadConfig читает настройки из переменных окружения STOREFRONT_* и
// необязательного файла .env (ищется в paths, по умолчанию в текущей
// директории). Переменные окружения важнее файла.
func LoadConfig(paths ...string) (Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	d := DefaultConfig()
	v.SetDefault(keyHTTPAddr, d.HTTPAddr)
	v.SetDefault(keyGRPCAddr, d.GRPCAddr)
	v.SetDefault(keyMetricsAddr, d.MetricsAddr)
	v.SetDefault(keyBackendURL, d.BackendURL)
	v.SetDefault(keyBackendKey, d.BackendPublishableKey)
	v.SetDefault(keyBackendTimeout, d.BackendTimeout)
	v.SetDefault(keyFallbackRegions, d.FallbackRegions)
	v.SetDefault(keyCollectionConcurrency, d.CollectionConcurrency)
	v.SetDefault(keyRequestTimeout, d.RequestTimeout)
	v.SetDefault(keyCookieSecure, d.CookieSecure)
	v.SetDefault(keyStorageDriver, d.StorageDriver)
	v.SetDefault(keyPostgresDSN, d.PostgresDSN)
	v.SetDefault(keyPostgresAutoMigrate, d.PostgresAutoMigrate)
	v.SetDefault(keyKafkaBrokers, d.KafkaBrokers)
	v.SetDefault(keyKafkaClientID, d.KafkaClientID)
	v.SetDefault(keyOutboxPollInterval, d.OutboxPollInterval)
	v.SetDefault(keyOutboxBatchSize, d.OutboxBatchSize)
	v.SetDefault(keyOutboxMaxAttempts, d.OutboxMaxAttempts)
	v.SetDefault(keyOutboxRetryDelay, d.OutboxRetryDelay)
	v.SetDefault(keyOutboxDrainTimeout, d.OutboxDrainTimeout)
	v.SetDefault(keyIdempotencyTTL, d.IdempotencyTTL)
	v.SetDefault(keyIdempotencyInterval, d.IdempotencyCleanupInterval)
	v.SetDefault(keyIdempotencyBatchSize, d.IdempotencyCleanupBatchSize)
	v.SetDefault(keyIdempotencyMaxBatches, d.IdempotencyCleanupMaxBatches)

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		HTTPAddr:    v.GetString(keyHTTPAddr),
		GRPCAddr:    v.GetString(keyGRPCAddr),
		MetricsAddr: v.GetString(keyMetricsAddr),

		BackendURL:            strings.TrimSpace(v.GetString(keyBackendURL)),
		BackendPublishableKey: strings.TrimSpace(v.GetString(keyBackendKey)),
		BackendTimeout:        v.GetDuration(keyBackendTimeout),

		FallbackRegions:       v.GetString(keyFallbackRegions),
		CollectionConcurrency: v.GetInt(keyCollectionConcurrency),
		RequestTimeout:        v.GetDuration(keyRequestTimeout),
		CookieSecure:          v.GetBool(keyCookieSecure),

		StorageDriver:       strings.ToLower(strings.TrimSpace(v.GetString(keyStorageDriver))),
		PostgresDSN:         strings.TrimSpace(v.GetString(keyPostgresDSN)),
		PostgresAutoMigrate: v.GetBool(keyPostgresAutoMigrate),

		KafkaBrokers:  v.GetString(keyKafkaBrokers),
		KafkaClientID: v.GetString(keyKafkaClientID),

		OutboxPollInterval: v.GetDuration(keyOutboxPollInterval),
		OutboxBatchSize:    v.GetInt(keyOutboxBatchSize),
		OutboxMaxAttempts:  v.GetInt(keyOutboxMaxAttempts),
		OutboxRetryDelay:   v.GetDuration(keyOutboxRetryDelay),
		OutboxDrainTimeout: v.GetDuration(keyOutboxDrainTimeout),

		IdempotencyTTL:               v.GetDuration(keyIdempotencyTTL),
		IdempotencyCleanupInterval:   v.GetDuration(keyIdempotencyInterval),
		IdempotencyCleanupBatchSize:  v.GetInt(keyIdempotencyBatchSize),
		IdempotencyCleanupMaxBatches: v.GetInt(keyIdempotencyMaxBatches),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return errors.New("commerce backend url is required")
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres dsn is required for postgres storage driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.CollectionConcurrency < 1 {
		return errors.New("collection concurrency must be at least 1")
	}
	if c.OutboxPollInterval <= 0 || c.IdempotencyCleanupInterval <= 0 {
		return errors.New("worker intervals must be positive")
	}
	return nil
}

// FallbackRegionNames возвращает непустые имена fallback-регионов.
func (c Config) FallbackRegionNames() []string {
	return splitList(c.FallbackRegions)
}

// KafkaBrokerList возвращает адреса брокеров.
func (c Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
