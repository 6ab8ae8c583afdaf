// Package portaudio captures from the default sound card through PortAudio.
// It is kept apart from capture so the analysis packages build without cgo.
package portaudio

import (
	"context"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/RyanBlaney/sonido-radar/capture"
	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/synth"
)

// Config selects the default device stream parameters
type Config struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	// OutputChannels > 0 together with Tone opens a duplex stream that
	// plays Tone while capturing
	OutputChannels int
	Tone           *synth.Oscillator
}

// Source captures from the default input device
type Source struct {
	config Config

	mu      sync.Mutex
	stream  *pa.Stream
	running bool
	closed  bool
	stopCtx func() bool

	logger logging.Logger
}

// NewSource creates an idle source; nothing is opened until Start
func NewSource(config Config, logger logging.Logger) *Source {
	if config.Channels < 1 {
		config.Channels = 1
	}
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = 1024
	}
	return &Source{
		config: config,
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{
			"component":   "portaudio_source",
			"sample_rate": config.SampleRate,
			"channels":    config.Channels,
		}),
	}
}

func (s *Source) SampleRate() int { return s.config.SampleRate }
func (s *Source) Channels() int   { return s.config.Channels }

// Start initializes PortAudio, opens the default stream and begins
// forwarding input blocks to sink. The stream is stopped when ctx is done.
func (s *Source) Start(ctx context.Context, sink capture.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return capture.ErrSourceClosed
	}
	if s.running {
		return capture.ErrAlreadyStarted
	}

	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	duplex := s.config.Tone != nil && s.config.OutputChannels > 0
	outChannels := 0
	var callback any
	if duplex {
		outChannels = s.config.OutputChannels
		tone := s.config.Tone
		callback = func(in, out []float32) {
			sink(in)
			tone.Fill(out, outChannels)
		}
	} else {
		callback = func(in []float32) {
			sink(in)
		}
	}

	stream, err := pa.OpenDefaultStream(
		s.config.Channels,
		outChannels,
		float64(s.config.SampleRate),
		s.config.FramesPerBuffer,
		callback,
	)
	if err != nil {
		_ = pa.Terminate()
		return fmt.Errorf("failed to open default stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = pa.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	s.stream = stream
	s.running = true
	s.stopCtx = context.AfterFunc(ctx, func() {
		if err := s.Stop(); err != nil {
			s.logger.Error(err, "failed to stop stream on cancellation")
		}
	})

	s.logger.Info("capture started", logging.Fields{
		"frames_per_buffer": s.config.FramesPerBuffer,
		"duplex":            duplex,
	})
	return nil
}

// Stop detaches the callback, closes the stream and terminates PortAudio.
// It is safe to call more than once.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if !s.running {
		return nil
	}
	s.running = false
	if s.stopCtx != nil {
		s.stopCtx()
	}

	var firstErr error
	if err := s.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("failed to stop stream: %w", err)
	}
	if err := s.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close stream: %w", err)
	}
	if err := pa.Terminate(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to terminate portaudio: %w", err)
	}
	s.stream = nil

	s.logger.Info("capture stopped")
	return firstErr
}

var _ capture.Source = (*Source)(nil)
