package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	LogLevel        string
	LogFormat       string
	JWTSigningKey   string
	JWTIssuer       string
	AdminsMayReview bool
	// Countries is the raw SUPPORTED_COUNTRIES list; parsing happens in the
	// verification models so the normalisation rules live in one place.
	Countries          []string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration

	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Blob      BlobConfig
	Scan      ScanConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig selects Postgres-backed stores. An empty URL keeps the
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional; an empty URL disables the scan cache and the
// outbox relay lock.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig is optional; without brokers audit entries stay in the outbox.
type KafkaConfig struct {
	Brokers        []string
	AuditTopic     string
	PollInterval   time.Duration
	RelayBatchSize int
}

type BlobConfig struct {
	Backend        string // local | gcs
	UploadDir      string
	GCSBucket      string
	GCSCredentials string
	PublicFileBase string
	MaxUploadBytes int64
}

type ScanConfig struct {
	Live     bool
	CacheTTL time.Duration
}

// RateLimitConfig sets per-caller budgets per minute. Zero disables a class.
type RateLimitConfig struct {
	Enabled         bool
	SubmitPerMinute int
	DecidePerMinute int
	ReadPerMinute   int
}

const (
	BlobBackendLocal = "local"
	BlobBackendGCS   = "gcs"

	defaultMaxUploadBytes = 10 << 20
)

// FromEnv loads .env when present and builds a Server config from the
// environment so main stays lean.
func FromEnv() (Server, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Server{
		Addr:               getEnv("DOCVERIFY_ADDR", ":8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		JWTSigningKey:      getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:          getEnv("JWT_ISSUER", "docverify"),
		Countries:          splitList(os.Getenv("SUPPORTED_COUNTRIES")),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:        splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:     getEnv("AUDIT_TOPIC", "verification.audit"),
			RelayBatchSize: 100,
		},
		Blob: BlobConfig{
			Backend:        strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendLocal)),
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			GCSBucket:      os.Getenv("GCS_BUCKET"),
			GCSCredentials: os.Getenv("GCS_CREDENTIALS_JSON"),
			PublicFileBase: getEnv("PUBLIC_FILE_BASE", "http://localhost:8080"),
		},
	}

	var err error
	if cfg.AdminsMayReview, err = getBool("ADMINS_MAY_REVIEW", true); err != nil {
		return Server{}, err
	}
	if cfg.RateLimit.Enabled, err = getBool("RATE_LIMIT_ENABLED", true); err != nil {
		return Server{}, err
	}
	if cfg.RateLimit.SubmitPerMinute, err = getInt("RATE_LIMIT_SUBMIT_PER_MINUTE", 20); err != nil {
		return Server{}, err
	}
	if cfg.RateLimit.DecidePerMinute, err = getInt("RATE_LIMIT_DECIDE_PER_MINUTE", 120); err != nil {
		return Server{}, err
	}
	if cfg.RateLimit.ReadPerMinute, err = getInt("RATE_LIMIT_READ_PER_MINUTE", 600); err != nil {
		return Server{}, err
	}
	if cfg.Scan.Live, err = getBool("SCAN_LIVE", false); err != nil {
		return Server{}, err
	}
	if cfg.Scan.CacheTTL, err = getDuration("SCAN_CACHE_TTL", 10*time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.Kafka.PollInterval, err = getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Blob.MaxUploadBytes, err = getInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes); err != nil {
		return Server{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks combinations FromEnv cannot express per key.
func (c Server) Validate() error {
	switch c.Blob.Backend {
	case BlobBackendLocal:
	case BlobBackendGCS:
		if c.Blob.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when BLOB_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend)
	}
	if c.Blob.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getInt(key string, fallback int) (int, error) {
	v, err := getInt64(key, int64(fallback))
	return int(v), err
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
