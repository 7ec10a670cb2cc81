package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.Orchestrator.QueueDepth)
	assert.Equal(t, QueuePolicyReject, cfg.Orchestrator.QueuePolicy)
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.TurnTimeout)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.SpeakTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Orchestrator.IdleTimeout)
	assert.Equal(t, 5, cfg.Orchestrator.HistoryWindow)
	assert.Equal(t, 0.5, cfg.Orchestrator.ConfidenceThreshold)
	assert.Equal(t, 64, cfg.Capture.BufferSize)
	assert.Equal(t, "memory", cfg.Memory.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	loader := NewLoader().WithPath(filepath.Join(t.TempDir(), "missing.yaml"))
	loader.lookupEnv = envFrom(nil)

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comet.yaml")
	content := `
orchestrator:
  queue_depth: 5
  queue_policy: drop_oldest
  turn_timeout: 2s
voice:
  voice: orion
  accent: british
memory:
  backend: redis
  redis:
    addr: redis:6379
    ttl: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loader := NewLoader().WithPath(path)
	loader.lookupEnv = envFrom(nil)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Orchestrator.QueueDepth)
	assert.Equal(t, QueuePolicyDropOldest, cfg.Orchestrator.QueuePolicy)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.TurnTimeout)
	assert.Equal(t, "orion", cfg.Voice.Voice)
	assert.Equal(t, "british", cfg.Voice.Accent)
	assert.Equal(t, "en", cfg.Voice.Language)
	assert.Equal(t, "redis", cfg.Memory.Backend)
	assert.Equal(t, "redis:6379", cfg.Memory.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Memory.Redis.TTL)
	assert.Equal(t, 10*time.Minute, cfg.Orchestrator.IdleTimeout)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("orchestrator:\n  queue_depth: 5\n"), 0o600))

	loader := NewLoader().WithPath(path)
	loader.lookupEnv = envFrom(map[string]string{
		"COMET_ORCHESTRATOR_QUEUE_DEPTH":          "7",
		"COMET_ORCHESTRATOR_TURN_TIMEOUT":         "750ms",
		"COMET_ORCHESTRATOR_CONFIDENCE_THRESHOLD": "0.65",
		"COMET_ORCHESTRATOR_BARGE_IN":             "false",
		"COMET_GROQ_API_KEY":                      "secret",
		"COMET_VOICE_NAME":                        "luna",
	})

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Orchestrator.QueueDepth)
	assert.Equal(t, 750*time.Millisecond, cfg.Orchestrator.TurnTimeout)
	assert.Equal(t, 0.65, cfg.Orchestrator.ConfidenceThreshold)
	assert.False(t, cfg.Orchestrator.BargeIn)
	assert.Equal(t, "secret", cfg.Groq.APIKey)
	assert.Equal(t, "luna", cfg.Voice.Voice)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	loader := NewLoader().WithEnvPrefix("TEST")
	loader.lookupEnv = envFrom(map[string]string{"TEST_CAPTURE_BUFFER_SIZE": "16"})

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Capture.BufferSize)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	loader := NewLoader()
	loader.lookupEnv = envFrom(map[string]string{"COMET_ORCHESTRATOR_TURN_TIMEOUT": "soon"})

	_, err := loader.Load()
	assert.ErrorContains(t, err, "COMET_ORCHESTRATOR_TURN_TIMEOUT")
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("orchestrator: ["), 0o600))

	loader := NewLoader().WithPath(path)
	loader.lookupEnv = envFrom(nil)
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative queue depth", func(c *Config) { c.Orchestrator.QueueDepth = -1 }, "queue_depth"},
		{"unknown queue policy", func(c *Config) { c.Orchestrator.QueuePolicy = "fifo" }, "queue_policy"},
		{"zero turn timeout", func(c *Config) { c.Orchestrator.TurnTimeout = 0 }, "turn_timeout"},
		{"threshold above one", func(c *Config) { c.Orchestrator.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"unknown capture backend", func(c *Config) { c.Capture.Backend = "alsa" }, "capture.backend"},
		{"zero buffer", func(c *Config) { c.Capture.BufferSize = 0 }, "buffer_size"},
		{"redis without addr", func(c *Config) {
			c.Memory.Backend = "redis"
			c.Memory.Redis.Addr = ""
		}, "memory.redis.addr"},
		{"unknown memory backend", func(c *Config) { c.Memory.Backend = "disk" }, "memory.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
