// Command comet runs a voice assistant on the local microphone and speakers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	orchestration "github.com/koscakluka/comet-core/core"
	"github.com/koscakluka/comet-core/core/audio"
	"github.com/koscakluka/comet-core/core/audio/miniaudio"
	"github.com/koscakluka/comet-core/core/audio/portaudio"
	"github.com/koscakluka/comet-core/core/capture"
	"github.com/koscakluka/comet-core/core/config"
	"github.com/koscakluka/comet-core/core/events"
	"github.com/koscakluka/comet-core/core/llms/groq"
	"github.com/koscakluka/comet-core/core/memory/redis"
	"github.com/koscakluka/comet-core/core/speechtotext"
	sttdeepgram "github.com/koscakluka/comet-core/core/speechtotext/deepgram"
	ttsdeepgram "github.com/koscakluka/comet-core/core/texttospeech/deepgram"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var logger = otelslog.NewLogger("github.com/koscakluka/comet-core/cmd/comet")

type device interface {
	capture.Source
	audio.Sink
}

func main() {
	configPath := flag.String("config", "comet.yaml", "path to the YAML config file")
	userID := flag.String("user", "local", "user the session belongs to")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *userID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, userID string) error {
	cfg, err := config.NewLoader().WithPath(configPath).Load()
	if err != nil {
		return err
	}
	if cfg.Capture.Backend == "none" {
		return errors.New("capture.backend none leaves nothing to listen to")
	}

	dev, err := openDevice(cfg.Capture)
	if err != nil {
		return err
	}

	var (
		o         *orchestration.Orchestrator
		sessionID string
	)
	recognizerOptions := []speechtotext.RecognitionOption{
		speechtotext.WithModel(cfg.Deepgram.TranscribeModel),
		speechtotext.WithLanguage(cfg.Voice.Language),
		speechtotext.WithEncodingInfo(dev.EncodingInfo()),
		speechtotext.WithSpeechStartedCallback(func() {
			if o != nil && cfg.Orchestrator.BargeIn {
				_, _ = o.StopSpeaking(sessionID)
			}
		}),
		speechtotext.WithInterimTranscriptionCallback(func(transcript string) {
			logger.Debug("interim transcript", "transcript", transcript)
		}),
	}
	if cfg.Deepgram.BaseURL != "" {
		recognizerOptions = append(recognizerOptions, speechtotext.WithBaseURL(cfg.Deepgram.BaseURL))
	}

	generatorOptions := []groq.Option{groq.WithModel(cfg.Groq.Model)}
	if cfg.Groq.BaseURL != "" {
		generatorOptions = append(generatorOptions, groq.WithBaseURL(cfg.Groq.BaseURL))
	}
	generator := groq.NewGenerator(cfg.Groq.APIKey, generatorOptions...)

	opts := []orchestration.OrchestratorOption{
		orchestration.WithConfig(cfg),
		orchestration.WithCaptureSource(dev),
		orchestration.WithRecognizer(sttdeepgram.NewRecognizer(cfg.Deepgram.APIKey, recognizerOptions...)),
		orchestration.WithGenerator(generator),
		orchestration.WithSynthesizer(ttsdeepgram.NewSynthesizer(cfg.Deepgram.APIKey, dev)),
		orchestration.WithEventHandler(logEvent),
	}
	if cfg.Groq.ClassifyInterruptions {
		opts = append(opts, orchestration.WithInterruptionClassifier(generator))
	}

	if cfg.Memory.Backend == "redis" {
		r := cfg.Memory.Redis
		store, err := redis.NewStore(ctx, redis.Config{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			PoolSize: r.PoolSize,
			Prefix:   r.Prefix,
			TTL:      r.TTL,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, orchestration.WithDurableStore(store))
	}

	o = orchestration.NewOrchestrator(opts...)
	info, err := o.OpenSession(userID)
	if err != nil {
		return err
	}
	sessionID = info.ID

	if err := o.StartListening(ctx, sessionID); err != nil {
		return errors.Join(err, o.Shutdown(context.Background()))
	}
	logger.Info("listening", "session_id", sessionID, "user_id", userID)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err = o.Shutdown(shutdownCtx)

	stats := o.Stats()
	logger.Info("stopped", "turns", stats.TotalTurns, "completed", stats.Completed, "failed", stats.Failed)
	return err
}

func openDevice(cfg config.CaptureConfig) (device, error) {
	if cfg.Backend == "portaudio" {
		client, err := portaudio.NewClient(cfg.BufferSize, cfg.SampleRate)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := miniaudio.NewClient(miniaudio.WithSampleRate(cfg.SampleRate))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func logEvent(event events.Event) {
	switch e := event.(type) {
	case events.TurnFinished:
		logger.Info("turn finished", "session_id", e.SessionID, "status", e.Status, "duration", e.Duration)
	case events.InterruptionClassified:
		logger.Info("interruption classified", "session_id", e.SessionID, "type", e.Type, "stopped_speech", e.StoppedSpeech)
	case events.BufferOverflow:
		logger.Warn("capture buffer overflow", "evicted_sequence", e.EvictedSequence, "overflows", e.Overflows)
	default:
		logger.Debug("event", "kind", event.Kind())
	}
}
