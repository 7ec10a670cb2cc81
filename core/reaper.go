package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/comet-core/core/agent"
)

func (o *Orchestrator) startReaper() {
	if o.idleTimeout <= 0 {
		return
	}

	o.reaperOnce.Do(func() {
		interval := min(max(o.idleTimeout/4, 10*time.Millisecond), time.Minute)
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-o.baseContext.Done():
					return
				case now := <-ticker.C:
					o.reapIdleSessions(now)
				}
			}
		}()
	})
}

// reapIdleSessions closes idle sessions without queued requests whose last
// activity is older than the idle timeout. The listening session is kept.
func (o *Orchestrator) reapIdleSessions(now time.Time) int {
	o.mu.RLock()
	var idle []string
	for id, rt := range o.sessions {
		if o.listening != nil && o.listening.sessionID == id {
			continue
		}
		info := rt.session.Info()
		if info.State == agent.StateIdle && rt.queued() == 0 && now.Sub(info.LastActivity) >= o.idleTimeout {
			idle = append(idle, id)
		}
	}
	o.mu.RUnlock()

	reaped := 0
	for _, id := range idle {
		ctx, cancel := context.WithTimeout(o.baseContext, o.turnTimeout)
		err := o.closeIdleSession(ctx, id)
		cancel()
		if err != nil {
			logger.Warn("failed to close idle session", "session_id", id, "error", err)
			continue
		}
		reaped++
	}
	return reaped
}

func (o *Orchestrator) closeIdleSession(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	rt, ok := o.sessions[sessionID]
	if ok {
		delete(o.sessions, sessionID)
	}
	o.mu.Unlock()

	if !ok {
		return nil
	}
	return o.closeSession(ctx, rt, "idle")
}
