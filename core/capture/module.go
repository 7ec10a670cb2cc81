package capture

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/comet-core/core/audio"
	"github.com/koscakluka/comet-core/core/events"
)

var ErrAlreadyListening = errors.New("capture is already listening")

// DefaultBufferSize is the number of frames buffered before the oldest frame
// is dropped.
const DefaultBufferSize = 64

type State int

const (
	StateIdle State = iota
	StateListening
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stats is a point-in-time view of the module counters.
type Stats struct {
	Accepted  int64
	Delivered int64
	// Dropped counts frames that arrived while the module was not listening.
	Dropped int64
	// Overflows counts buffered frames evicted to make room for newer ones.
	Overflows int64
	Buffered  int
}

// Module buffers captured audio frames between a producer (microphone
// callback or [Module.OnAudioData] caller) and a consumer ranging over
// [Module.Frames].
//
// The producer never blocks: when the buffer is full the oldest frame is
// dropped.
type Module struct {
	mu    sync.Mutex
	state State

	ring  []audio.Frame
	head  int
	count int

	sequence uint64
	// notify is closed and replaced whenever frames or state change, waking
	// every waiting consumer.
	notify chan struct{}

	source       *source
	sourceCancel context.CancelFunc

	accepted  atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
	overflows atomic.Int64

	onEvent events.Handler
}

type Option func(*Module)

// WithBufferSize sets the maximum number of buffered frames. Values below 1
// are ignored.
func WithBufferSize(size int) Option {
	return func(m *Module) {
		if size > 0 {
			m.ring = make([]audio.Frame, size)
		}
	}
}

// WithSource attaches a capture device that is started when listening starts
// and stopped when it stops.
func WithSource(client Source) Option {
	return func(m *Module) { m.source = newSource(client) }
}

func WithEventHandler(handler events.Handler) Option {
	return func(m *Module) { m.onEvent = handler }
}

func NewModule(opts ...Option) *Module {
	m := &Module{
		state:  StateIdle,
		ring:   make([]audio.Frame, DefaultBufferSize),
		notify: make(chan struct{}),
		source: newSource(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Module) IsListening() bool { return m.State() == StateListening }

func (m *Module) EncodingInfo() audio.EncodingInfo { return m.source.EncodingInfo() }

func (m *Module) Stats() Stats {
	m.mu.Lock()
	buffered := m.count
	m.mu.Unlock()

	return Stats{
		Accepted:  m.accepted.Load(),
		Delivered: m.delivered.Load(),
		Dropped:   m.dropped.Load(),
		Overflows: m.overflows.Load(),
		Buffered:  buffered,
	}
}

// StartListening moves the module to listening and starts the attached
// source, if any. ctx bounds the lifetime of the source stream.
func (m *Module) StartListening(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateListening {
		m.mu.Unlock()
		return ErrAlreadyListening
	}
	m.state = StateListening
	m.signalLocked()

	var sourceCtx context.Context
	if m.source.IsConfigured() {
		sourceCtx, m.sourceCancel = context.WithCancel(ctx)
	}
	m.mu.Unlock()

	if sourceCtx != nil {
		m.source.Start(sourceCtx, m.onRawAudio)
	}
	return nil
}

// StopListening moves a listening module to stopped. It is a no-op in any
// other state. Frames already buffered stay available to consumers.
func (m *Module) StopListening() error {
	m.mu.Lock()
	if m.state != StateListening {
		m.mu.Unlock()
		return nil
	}
	m.state = StateStopped
	cancel := m.sourceCancel
	m.sourceCancel = nil
	m.signalLocked()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := m.source.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture source: %w", err)
	}
	return nil
}

// Close stops listening and releases the attached source.
func (m *Module) Close() error {
	return errors.Join(m.StopListening(), m.source.Close())
}

func (m *Module) onRawAudio(samples []byte) {
	m.OnAudioData(audio.NewFrame(samples, time.Now()))
}

// OnAudioData offers a frame to the buffer. Frames arriving outside of
// listening are dropped and reported as [events.FrameDropped]. It reports
// whether the frame was accepted.
func (m *Module) OnAudioData(frame audio.Frame) bool {
	m.mu.Lock()
	m.sequence++
	frame = frame.WithSequence(m.sequence)

	if m.state != StateListening {
		m.mu.Unlock()
		m.dropped.Add(1)
		framesDroppedCounter.Add(context.Background(), 1)
		m.onEvent.Emit(events.NewFrameDropped(frame.Sequence()))
		return false
	}

	var evicted *audio.Frame
	if m.count == len(m.ring) {
		oldest := m.ring[m.head]
		evicted = &oldest
		m.ring[m.head] = audio.Frame{}
		m.head = (m.head + 1) % len(m.ring)
		m.count--
	}
	m.ring[(m.head+m.count)%len(m.ring)] = frame
	m.count++
	m.signalLocked()
	m.mu.Unlock()

	m.accepted.Add(1)
	if evicted != nil {
		overflows := m.overflows.Add(1)
		bufferOverflowCounter.Add(context.Background(), 1)
		m.onEvent.Emit(events.NewBufferOverflow(evicted.Sequence(), overflows))
	}
	return true
}

// Frames returns a lazy sequence of buffered frames. While listening it
// waits for new frames; once the module stops it drains what is buffered and
// ends. Each frame is delivered to exactly one consumer. A new sequence can
// be started for every listening period.
func (m *Module) Frames(ctx context.Context) iter.Seq[audio.Frame] {
	return func(yield func(audio.Frame) bool) {
		for {
			frame, ok, wait := m.next()
			if ok {
				m.delivered.Add(1)
				if !yield(frame) {
					return
				}
				continue
			}
			if wait == nil {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-wait:
			}
		}
	}
}

// next pops the oldest frame. When the buffer is empty it returns a channel
// to wait on while listening, or nil when the sequence should end.
func (m *Module) next() (frame audio.Frame, ok bool, wait <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count > 0 {
		frame = m.ring[m.head]
		m.ring[m.head] = audio.Frame{}
		m.head = (m.head + 1) % len(m.ring)
		m.count--
		return frame, true, nil
	}

	if m.state == StateListening {
		return audio.Frame{}, false, m.notify
	}
	return audio.Frame{}, false, nil
}

func (m *Module) signalLocked() {
	close(m.notify)
	m.notify = make(chan struct{})
}
