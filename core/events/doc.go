// Package events defines the typed events the assistant reports to observers.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - capture.*
//   - session.*
//   - turn_state.*
//   - queue.*
//
// capture events
//
//   - FrameDropped (capture.frame_dropped): a frame arrived while the capture
//     module was not listening and was discarded.
//   - BufferOverflow (capture.buffer_overflow): the capture buffer was full and
//     its oldest frame was discarded to make room.
//
// session events
//
//   - SessionOpened (session.opened): a session was created.
//   - SessionClosed (session.closed): a session was destroyed, either
//     explicitly, by shutdown or by idle timeout.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): a turn left the queue and became
//     pending.
//   - TurnFinished (turn_state.finished): a turn reached a terminal status.
//
// queue events
//
//   - RequestDropped (queue.request_dropped): a queued request was coalesced
//     away to make room for a newer one.
package events
