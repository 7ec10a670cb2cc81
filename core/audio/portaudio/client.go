package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/comet-core/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/comet-core/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

// Client captures from the default input device and plays through the
// default output device using blocking streams.
type Client struct {
	bufferSize int
	encoding   audio.EncodingInfo

	input *portaudio.Stream
	in    []int16

	outputMu sync.Mutex
	output   *portaudio.Stream
	out      []int16
	pending  *audio.PlaybackBuffer
}

// NewClient opens both streams. bufferSize is the number of samples read or
// written at a time.
func NewClient(bufferSize, sampleRate int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	encoding := audio.EncodingInfo{SampleRate: sampleRate, Format: audio.EncodingLinear16}
	c := &Client{
		bufferSize: bufferSize,
		encoding:   encoding,
		in:         make([]int16, bufferSize),
		out:        make([]int16, bufferSize),
		pending:    audio.NewPlaybackBuffer(encoding),
	}

	var err error
	if c.input, err = portaudio.OpenDefaultStream(1, 0, float64(sampleRate), bufferSize, c.in); err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio input stream: %w", err)
	}
	if c.output, err = portaudio.OpenDefaultStream(0, 1, float64(sampleRate), bufferSize, c.out); err != nil {
		_ = c.input.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio output stream: %w", err)
	}
	if err := c.output.Start(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start portaudio output stream: %w", err)
	}

	return c, nil
}

// Stream reads from the microphone until ctx ends.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.input.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio input stream: %w", err)
	}
	defer func() {
		if err := c.input.Stop(); err != nil {
			logger.Warn("failed to stop portaudio input stream", "error", err)
		}
	}()

	audioBuffer := bytes.Buffer{}
	for ctx.Err() == nil {
		if err := c.input.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				logger.Debug("portaudio input overflowed")
			} else {
				return fmt.Errorf("failed to read from portaudio input stream: %w", err)
			}
		}

		audioBuffer.Reset()
		if err := binary.Write(&audioBuffer, binary.LittleEndian, c.in); err != nil {
			return fmt.Errorf("failed to encode captured audio: %w", err)
		}
		onAudio(audioBuffer.Bytes())
	}
	return nil
}

func (c *Client) Close() {
	c.outputMu.Lock()
	defer c.outputMu.Unlock()

	if err := errors.Join(c.input.Close(), c.output.Close(), portaudio.Terminate()); err != nil {
		logger.Warn("failed to close portaudio", "error", err)
	}
}

// SendAudio plays every complete buffer of audio and keeps the remainder
// for the next call.
func (c *Client) SendAudio(audio []byte) error {
	c.outputMu.Lock()
	defer c.outputMu.Unlock()

	c.pending.Write(audio)
	chunk := make([]byte, c.bufferSize*2)
	for c.pending.Len() >= len(chunk) {
		c.pending.Fill(chunk)
		if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, c.out); err != nil {
			return fmt.Errorf("failed to decode audio: %w", err)
		}
		if err := c.output.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("failed to write to portaudio output stream: %w", err)
		}
	}
	return nil
}

func (c *Client) ClearBuffer() {
	c.pending.Clear()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}
