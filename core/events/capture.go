package events

const (
	// KindFrameDropped identifies frames discarded outside of listening.
	KindFrameDropped Kind = "capture.frame_dropped"
	// KindBufferOverflow identifies frames evicted from a full capture buffer.
	KindBufferOverflow Kind = "capture.buffer_overflow"
)

// FrameDropped reports a frame that arrived while capture was not listening.
type FrameDropped struct {
	Base
	Sequence uint64
}

func NewFrameDropped(sequence uint64) FrameDropped {
	return FrameDropped{Base: NewBase(KindFrameDropped), Sequence: sequence}
}

// BufferOverflow reports the oldest buffered frame being evicted.
type BufferOverflow struct {
	Base
	EvictedSequence uint64
	Overflows       int64
}

func NewBufferOverflow(evictedSequence uint64, overflows int64) BufferOverflow {
	return BufferOverflow{Base: NewBase(KindBufferOverflow), EvictedSequence: evictedSequence, Overflows: overflows}
}
