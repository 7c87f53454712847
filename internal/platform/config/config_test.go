package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"DOCVERIFY_ADDR", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "SUPPORTED_COUNTRIES",
		"ADMINS_MAY_REVIEW", "BLOB_BACKEND", "MAX_UPLOAD_BYTES", "SCAN_CACHE_TTL", "OUTBOX_POLL_INTERVAL",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_SUBMIT_PER_MINUTE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.True(t, cfg.AdminsMayReview)
	assert.Empty(t, cfg.Countries)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, BlobBackendLocal, cfg.Blob.Backend)
	assert.Equal(t, int64(10<<20), cfg.Blob.MaxUploadBytes)
	assert.Equal(t, "verification.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, 10*time.Minute, cfg.Scan.CacheTTL)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 20, cfg.RateLimit.SubmitPerMinute)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DOCVERIFY_ADDR", ":9090")
	t.Setenv("SUPPORTED_COUNTRIES", "in, au ,,uk")
	t.Setenv("ADMINS_MAY_REVIEW", "false")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("BLOB_BACKEND", "local")
	t.Setenv("RATE_LIMIT_SUBMIT_PER_MINUTE", "5")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"in", "au", "uk"}, cfg.Countries)
	assert.False(t, cfg.AdminsMayReview)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 500*time.Millisecond, cfg.Kafka.PollInterval)
	assert.Equal(t, 5, cfg.RateLimit.SubmitPerMinute)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	t.Run("bad bool", func(t *testing.T) {
		t.Setenv("ADMINS_MAY_REVIEW", "sometimes")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ADMINS_MAY_REVIEW")
	})

	t.Run("gcs without bucket", func(t *testing.T) {
		t.Setenv("BLOB_BACKEND", "gcs")
		t.Setenv("GCS_BUCKET", "")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GCS_BUCKET")
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("BLOB_BACKEND", "ftp")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("bad rate limit", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_READ_PER_MINUTE", "lots")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RATE_LIMIT_READ_PER_MINUTE")
	})

	t.Run("non-positive upload cap", func(t *testing.T) {
		t.Setenv("MAX_UPLOAD_BYTES", "0")
		_, err := FromEnv()
		require.Error(t, err)
	})
}
