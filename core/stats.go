package orchestration

import (
	"sync"
	"time"

	"github.com/koscakluka/comet-core/core/agent"
)

// Stats summarizes turns processed since the orchestrator was created.
type Stats struct {
	Sessions    int
	TotalTurns  int64
	Completed   int64
	Failed      int64
	Interrupted int64
	// Rejected counts input refused because a session queue was full.
	Rejected int64
	// Dropped counts queued requests replaced by newer input.
	Dropped        int64
	AverageLatency time.Duration
	SuccessRate    float64
}

type statsRecorder struct {
	mu           sync.Mutex
	total        int64
	completed    int64
	failed       int64
	interrupted  int64
	rejected     int64
	dropped      int64
	totalLatency time.Duration
}

func (s *statsRecorder) record(turn agent.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.totalLatency += turn.Duration()
	switch turn.Status {
	case agent.TurnCompleted:
		s.completed++
	case agent.TurnFailed:
		s.failed++
	case agent.TurnInterrupted:
		s.interrupted++
	}
}

func (s *statsRecorder) reject() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

func (s *statsRecorder) drop() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	sessions := len(o.sessions)
	o.mu.RUnlock()

	o.stats.mu.Lock()
	defer o.stats.mu.Unlock()

	stats := Stats{
		Sessions:    sessions,
		TotalTurns:  o.stats.total,
		Completed:   o.stats.completed,
		Failed:      o.stats.failed,
		Interrupted: o.stats.interrupted,
		Rejected:    o.stats.rejected,
		Dropped:     o.stats.dropped,
	}
	if o.stats.total > 0 {
		stats.AverageLatency = o.stats.totalLatency / time.Duration(o.stats.total)
		stats.SuccessRate = float64(o.stats.completed) / float64(o.stats.total)
	}
	return stats
}
