package orchestration

import (
	"context"
	"testing"
	"time"

	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/config"
)

func TestWithConfigNilIsNoop(t *testing.T) {
	o := NewOrchestrator(WithConfig(nil))
	defer o.Shutdown(context.Background())

	if o.queueDepth != DefaultQueueDepth || o.queuePolicy != QueueReject {
		t.Fatalf("expected default queue settings, got %d %s", o.queueDepth, o.queuePolicy)
	}
	if o.turnTimeout != DefaultTurnTimeout || o.idleTimeout != DefaultIdleTimeout || !o.bargeInEnabled {
		t.Fatalf("expected default timeouts with barge-in, got %s %s %t", o.turnTimeout, o.idleTimeout, o.bargeInEnabled)
	}
}

func TestWithConfigAppliesSettings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Orchestrator.QueueDepth = 7
	cfg.Orchestrator.QueuePolicy = config.QueuePolicyDropOldest
	cfg.Orchestrator.TurnTimeout = 2 * time.Second
	cfg.Orchestrator.SpeakTimeout = 20 * time.Second
	cfg.Orchestrator.IdleTimeout = 0
	cfg.Orchestrator.BargeIn = false
	cfg.Voice = config.VoiceConfig{Voice: "orion", Language: "en", Accent: "british"}

	o := NewOrchestrator(WithConfig(cfg))
	defer o.Shutdown(context.Background())

	if o.queueDepth != 7 || o.queuePolicy != QueueDropOldest {
		t.Fatalf("expected configured queue settings, got %d %s", o.queueDepth, o.queuePolicy)
	}
	if o.speakTimeout != 20*time.Second {
		t.Fatalf("expected configured speak timeout, got %s", o.speakTimeout)
	}
	if o.turnTimeout != 2*time.Second || o.idleTimeout != 0 || o.bargeInEnabled {
		t.Fatalf("expected configured timeouts without barge-in, got %s %s %t", o.turnTimeout, o.idleTimeout, o.bargeInEnabled)
	}
	want := agent.VoiceProfile{Voice: "orion", Language: "en", Accent: "british"}
	if got := o.agent.VoiceProfile(); got != want {
		t.Fatalf("expected voice profile %+v, got %+v", want, got)
	}
}

func TestOptionsKeepUsableValues(t *testing.T) {
	o := NewOrchestrator(WithQueueDepth(0), WithTurnTimeout(-time.Second), WithIdleTimeout(-time.Minute))
	defer o.Shutdown(context.Background())

	if o.queueDepth != 1 {
		t.Fatalf("expected queue depth of at least 1, got %d", o.queueDepth)
	}
	if o.turnTimeout != DefaultTurnTimeout {
		t.Fatalf("expected default turn timeout, got %s", o.turnTimeout)
	}
	if o.idleTimeout != 0 {
		t.Fatalf("expected idle reaping to be disabled, got %s", o.idleTimeout)
	}
}

func TestQueuePolicyString(t *testing.T) {
	if QueueReject.String() != "reject" || QueueDropOldest.String() != "drop_oldest" {
		t.Fatalf("expected config names, got %s %s", QueueReject, QueueDropOldest)
	}
}
