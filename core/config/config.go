// Package config loads assistant settings from defaults, an optional YAML
// file and COMET_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`
	Capture      CaptureConfig      `yaml:"capture" env:"CAPTURE"`
	Voice        VoiceConfig        `yaml:"voice" env:"VOICE"`
	Memory       MemoryConfig       `yaml:"memory" env:"MEMORY"`
	Deepgram     DeepgramConfig     `yaml:"deepgram" env:"DEEPGRAM"`
	Groq         GroqConfig         `yaml:"groq" env:"GROQ"`
}

type OrchestratorConfig struct {
	QueueDepth int `yaml:"queue_depth" env:"QUEUE_DEPTH"`
	// QueuePolicy is either "reject" or "drop_oldest".
	QueuePolicy           string        `yaml:"queue_policy" env:"QUEUE_POLICY"`
	TurnTimeout           time.Duration `yaml:"turn_timeout" env:"TURN_TIMEOUT"`
	// SpeakTimeout bounds speaking a single response. Zero uses TurnTimeout.
	SpeakTimeout          time.Duration `yaml:"speak_timeout" env:"SPEAK_TIMEOUT"`
	IdleTimeout           time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	HistoryWindow         int           `yaml:"history_window" env:"HISTORY_WINDOW"`
	ConfidenceThreshold   float64       `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
	BargeIn               bool          `yaml:"barge_in" env:"BARGE_IN"`
	ClarificationResponse string        `yaml:"clarification_response" env:"CLARIFICATION_RESPONSE"`
	FallbackResponse      string        `yaml:"fallback_response" env:"FALLBACK_RESPONSE"`
}

type CaptureConfig struct {
	// Backend is "miniaudio", "portaudio" or "none".
	Backend    string `yaml:"backend" env:"BACKEND"`
	BufferSize int    `yaml:"buffer_size" env:"BUFFER_SIZE"`
	SampleRate int    `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

type VoiceConfig struct {
	Voice    string `yaml:"voice" env:"NAME"`
	Language string `yaml:"language" env:"LANGUAGE"`
	Accent   string `yaml:"accent" env:"ACCENT"`
}

type MemoryConfig struct {
	// Backend is "memory" or "redis".
	Backend string      `yaml:"backend" env:"BACKEND"`
	Redis   RedisConfig `yaml:"redis" env:"REDIS"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	PoolSize int           `yaml:"pool_size" env:"POOL_SIZE"`
	Prefix   string        `yaml:"prefix" env:"PREFIX"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

type DeepgramConfig struct {
	APIKey          string `yaml:"api_key" env:"API_KEY"`
	BaseURL         string `yaml:"base_url" env:"BASE_URL"`
	TranscribeModel string `yaml:"transcribe_model" env:"TRANSCRIBE_MODEL"`
}

type GroqConfig struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	Model   string `yaml:"model" env:"MODEL"`
	// ClassifyInterruptions lets the model decide whether input spoken over
	// a response stops it.
	ClassifyInterruptions bool `yaml:"classify_interruptions" env:"CLASSIFY_INTERRUPTIONS"`
}

func DefaultConfig() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			QueueDepth:          3,
			QueuePolicy:         QueuePolicyReject,
			TurnTimeout:         5 * time.Second,
			SpeakTimeout:        30 * time.Second,
			IdleTimeout:         10 * time.Minute,
			HistoryWindow:       5,
			ConfidenceThreshold: 0.5,
			BargeIn:             true,
		},
		Capture: CaptureConfig{
			Backend:    "miniaudio",
			BufferSize: 64,
			SampleRate: 16000,
		},
		Voice: VoiceConfig{
			Voice:    "asteria",
			Language: "en",
		},
		Memory: MemoryConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "comet:memory:",
			},
		},
		Deepgram: DeepgramConfig{
			TranscribeModel: "nova-3",
		},
		Groq: GroqConfig{
			Model: "llama-3.3-70b-versatile",
		},
	}
}

const (
	QueuePolicyReject     = "reject"
	QueuePolicyDropOldest = "drop_oldest"
)

// Validate reports every out of range value at once.
func (c *Config) Validate() error {
	var errs []error

	o := c.Orchestrator
	if o.QueueDepth < 1 {
		errs = append(errs, errors.New("orchestrator.queue_depth must be at least 1"))
	}
	if !slices.Contains([]string{QueuePolicyReject, QueuePolicyDropOldest}, o.QueuePolicy) {
		errs = append(errs, fmt.Errorf("orchestrator.queue_policy %q is not one of %q, %q", o.QueuePolicy, QueuePolicyReject, QueuePolicyDropOldest))
	}
	if o.TurnTimeout <= 0 {
		errs = append(errs, errors.New("orchestrator.turn_timeout must be positive"))
	}
	if o.SpeakTimeout < 0 {
		errs = append(errs, errors.New("orchestrator.speak_timeout must not be negative"))
	}
	if o.IdleTimeout < 0 {
		errs = append(errs, errors.New("orchestrator.idle_timeout must not be negative"))
	}
	if o.HistoryWindow < 0 {
		errs = append(errs, errors.New("orchestrator.history_window must not be negative"))
	}
	if o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 1 {
		errs = append(errs, errors.New("orchestrator.confidence_threshold must be within [0, 1]"))
	}

	if !slices.Contains([]string{"miniaudio", "portaudio", "none"}, c.Capture.Backend) {
		errs = append(errs, fmt.Errorf("capture.backend %q is not supported", c.Capture.Backend))
	}
	if c.Capture.BufferSize <= 0 {
		errs = append(errs, errors.New("capture.buffer_size must be positive"))
	}
	if c.Capture.SampleRate <= 0 {
		errs = append(errs, errors.New("capture.sample_rate must be positive"))
	}

	switch c.Memory.Backend {
	case "memory":
	case "redis":
		if c.Memory.Redis.Addr == "" {
			errs = append(errs, errors.New("memory.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("memory.backend %q is not supported", c.Memory.Backend))
	}

	return errors.Join(errs...)
}
