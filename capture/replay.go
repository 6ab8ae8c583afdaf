package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/transcode"
)

// ReplayOptions controls how decoded audio is fed to the sink
type ReplayOptions struct {
	BlockSize int     // frames per block
	Speed     float64 // 1 = real time, 2 = twice as fast, 0 = unpaced
	Loop      bool
}

// DefaultReplayOptions replays in real time, 1024-frame blocks, once
func DefaultReplayOptions() ReplayOptions {
	return ReplayOptions{BlockSize: 1024, Speed: 1}
}

// SliceSource replays interleaved PCM held in memory
type SliceSource struct {
	pcm        []float64
	sampleRate int
	channels   int
	opts       ReplayOptions

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool

	logger logging.Logger
}

// NewSliceSource wraps pcm; it is not copied
func NewSliceSource(pcm []float64, sampleRate, channels int, opts ReplayOptions, logger logging.Logger) *SliceSource {
	if channels < 1 {
		channels = 1
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultReplayOptions().BlockSize
	}
	return &SliceSource{
		pcm:        pcm,
		sampleRate: sampleRate,
		channels:   channels,
		opts:       opts,
		done:       make(chan struct{}),
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{
			"component": "replay_source",
			"samples":   len(pcm),
		}),
	}
}

// NewFileSource decodes path and replays it
func NewFileSource(ctx context.Context, decoder *transcode.Decoder, path string, opts ReplayOptions, logger logging.Logger) (*SliceSource, error) {
	audio, err := decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return NewSliceSource(audio.PCM, audio.SampleRate, audio.Channels, opts, logger), nil
}

func (s *SliceSource) SampleRate() int { return s.sampleRate }
func (s *SliceSource) Channels() int   { return s.channels }

// Done is closed once replay finishes or the source is stopped
func (s *SliceSource) Done() <-chan struct{} {
	return s.done
}

// Start begins replay on a new goroutine
func (s *SliceSource) Start(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx, sink)
	return nil
}

func (s *SliceSource) run(ctx context.Context, sink Sink) {
	defer close(s.done)

	blockSamples := s.opts.BlockSize * s.channels
	buf := make([]float32, blockSamples)

	var tick <-chan time.Time
	if s.opts.Speed > 0 && s.sampleRate > 0 {
		period := time.Duration(float64(s.opts.BlockSize) / float64(s.sampleRate) / s.opts.Speed * float64(time.Second))
		ticker := time.NewTicker(max(period, time.Microsecond))
		defer ticker.Stop()
		tick = ticker.C
	}

	blocks := 0
	for {
		for pos := 0; pos < len(s.pcm); pos += blockSamples {
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}

			end := min(pos+blockSamples, len(s.pcm))
			out := buf[:end-pos]
			for i, v := range s.pcm[pos:end] {
				out[i] = float32(v)
			}
			sink(out)
			blocks++
		}
		if !s.opts.Loop || len(s.pcm) == 0 {
			break
		}
	}

	s.logger.Debug("replay finished", logging.Fields{"blocks": blocks})
}

// Stop ends replay and waits for the goroutine to exit
func (s *SliceSource) Stop() error {
	s.mu.Lock()
	s.closed = true
	cancel, started := s.cancel, s.started
	s.mu.Unlock()

	if !started {
		return nil
	}
	cancel()
	<-s.done
	return nil
}
