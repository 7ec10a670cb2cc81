package capture

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/koscakluka/comet-core/core/audio"
)

// Source is a capture device. Stream delivers raw audio until ctx ends; it
// may block for the whole capture or return once capture is running.
type Source interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	Close()
}

// SourceWithCaptureControls is implemented by devices that can pause capture
// without being torn down.
type SourceWithCaptureControls interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

type source struct {
	// base stores the configured device used for streaming audio.
	base Source
	// fineCaptureControl is set when the device supports explicit capture controls.
	fineCaptureControl SourceWithCaptureControls

	// isCapturing reports whether the device is currently capturing audio.
	isCapturing atomic.Bool
}

func newSource(client Source) *source {
	s := &source{base: client}
	if fine, ok := client.(SourceWithCaptureControls); ok {
		s.fineCaptureControl = fine
	}
	return s
}

func (s *source) IsConfigured() bool            { return s != nil && s.base != nil }
func (s *source) SupportsCaptureControls() bool { return s != nil && s.fineCaptureControl != nil }
func (s *source) IsCapturing() bool             { return s != nil && s.isCapturing.Load() }

func (s *source) Start(ctx context.Context, onAudio func([]byte)) {
	if !s.IsConfigured() || !s.isCapturing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		var err error
		if s.SupportsCaptureControls() {
			err = s.fineCaptureControl.StartCapture(ctx, onAudio)
		} else {
			err = s.base.Stream(ctx, onAudio)
		}
		if err != nil {
			s.isCapturing.Store(false)
			logger.ErrorContext(ctx, "failed to start audio capture", "error", err)
		}
	}()
}

func (s *source) Stop() error {
	if !s.IsConfigured() || !s.isCapturing.CompareAndSwap(true, false) {
		return nil
	}

	if s.SupportsCaptureControls() {
		return s.fineCaptureControl.StopCapture()
	}
	return nil
}

func (s *source) Close() error {
	if !s.IsConfigured() {
		return nil
	}

	var errs error
	if s.SupportsCaptureControls() && s.isCapturing.Load() {
		errs = errors.Join(errs, s.fineCaptureControl.StopCapture())
	}
	s.base.Close()
	s.isCapturing.Store(false)
	return errs
}

func (s *source) EncodingInfo() audio.EncodingInfo {
	if !s.IsConfigured() {
		return audio.GetDefaultEncodingInfo()
	}
	return s.base.EncodingInfo()
}
