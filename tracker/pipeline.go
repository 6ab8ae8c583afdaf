package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-radar/algorithms/common"
	"github.com/RyanBlaney/sonido-radar/algorithms/doppler"
	"github.com/RyanBlaney/sonido-radar/algorithms/filters"
	"github.com/RyanBlaney/sonido-radar/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-radar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-radar/algorithms/temporal"
	"github.com/RyanBlaney/sonido-radar/algorithms/windowing"
	"github.com/RyanBlaney/sonido-radar/capture"
	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/tracker/config"
)

var (
	ErrNotStarted     = errors.New("pipeline not started")
	ErrAlreadyStarted = errors.New("pipeline already started")
	ErrClosed         = errors.New("pipeline closed")
	ErrDopplerOff     = errors.New("doppler classification is disabled")
)

// Pipeline owns every analysis stage and the sample ring between capture
// and analysis. Capture writes into the ring from its own goroutine; a
// fixed-rate ticker drains one full frame per tick and runs the stages in
// order. Results are published by atomic pointer swap, so readers never see
// a half-updated value.
type Pipeline struct {
	config *config.PipelineConfig

	ring     *common.SampleRing
	frame    []float64
	windowed []float64

	dc         *filters.DCRemoval
	window     *windowing.Window
	analyzer   *spectral.Analyzer
	gate       *temporal.LoudnessGate
	peaks      *harmonic.PeakTracker
	classifier *doppler.Classifier

	procMu      sync.Mutex // serializes Tick and Process
	sequence    uint64
	lastDropped uint64

	spectrum  atomic.Pointer[spectral.Spectrum]
	state     atomic.Pointer[State]
	observer  atomic.Pointer[func(CycleResult)]
	ticks     atomic.Uint64
	idleTicks atomic.Uint64
	frames    atomic.Uint64

	mu       sync.Mutex // lifecycle
	source   capture.Source
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
	closed   bool
	channels int

	logger logging.Logger
}

// New builds a pipeline. Configuration problems are returned here and the
// pipeline is not created.
func New(cfg *config.PipelineConfig, logger logging.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger = logging.OrGlobal(logger)
	p := &Pipeline{
		config:   cfg,
		ring:     common.NewSampleRing(cfg.RingCapacity()),
		frame:    make([]float64, cfg.BufferSize),
		windowed: make([]float64, cfg.BufferSize),
		channels: cfg.Channels,
		logger: logger.WithFields(logging.Fields{
			"component":   "pipeline",
			"sample_rate": cfg.SampleRate,
			"buffer_size": cfg.BufferSize,
		}),
	}

	var err error
	if p.window, err = windowing.New(cfg.Window, cfg.BufferSize); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if cfg.RemoveDC {
		p.dc = filters.NewDCRemovalWithCutoff(cfg.SampleRate, 20)
	}
	if p.analyzer, err = spectral.NewAnalyzer(cfg.SampleRate, cfg.BufferSize, cfg.FloorDB, p.window.CoherentGain(), logger); err != nil {
		return nil, err
	}
	if p.gate, err = temporal.NewLoudnessGate(cfg.Gate.Lookback, cfg.Gate.Cutoff, logger); err != nil {
		return nil, err
	}

	locator, err := harmonic.NewPeakLocator(cfg.Peaks.WindowSize, cfg.Peaks.MinSeparationHz, logger)
	if err != nil {
		return nil, err
	}
	p.peaks = harmonic.NewPeakTracker(locator, logger)

	if cfg.Doppler.Enabled {
		if p.classifier, err = doppler.NewClassifier(cfg.DopplerOptions(), logger); err != nil {
			return nil, err
		}
	}

	p.state.Store(&State{
		DopplerEnabled:   p.classifier != nil,
		EmittedFrequency: p.emittedFrequency(),
	})

	p.logger.Debug("pipeline created", logging.Fields{
		"resolution_hz": cfg.Resolution(),
		"window":        p.window.GetType(),
		"doppler":       cfg.Doppler.Enabled,
	})
	return p, nil
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() config.PipelineConfig {
	return *p.config
}

// OnCycle registers fn to run after every processed frame, on the analysis
// goroutine. Pass nil to remove it.
func (p *Pipeline) OnCycle(fn func(CycleResult)) {
	if fn == nil {
		p.observer.Store(nil)
		return
	}
	p.observer.Store(&fn)
}

// Write appends an interleaved capture block, keeping only the analysis
// channel. When the ring is full the oldest samples are dropped.
func (p *Pipeline) Write(samples []float32) {
	p.ring.WriteChannel(samples, p.channels, p.config.AnalysisChannel)
}

// Tick drains one full frame and analyzes it. It returns false when less
// than a frame is buffered.
func (p *Pipeline) Tick() (CycleResult, bool) {
	p.ticks.Add(1)

	p.procMu.Lock()
	defer p.procMu.Unlock()

	if !p.ring.DrainFrame(p.frame) {
		p.idleTicks.Add(1)
		return CycleResult{}, false
	}

	if dropped := p.ring.Dropped(); dropped > p.lastDropped {
		p.logger.Warn("capture overrun, oldest samples dropped", logging.Fields{
			"dropped": dropped - p.lastDropped,
			"total":   dropped,
		})
		p.lastDropped = dropped
	}

	return p.process(p.frame), true
}

// Process analyzes a caller-supplied frame. The frame is not modified.
func (p *Pipeline) Process(frame []float64) (CycleResult, error) {
	if len(frame) != p.config.BufferSize {
		return CycleResult{}, fmt.Errorf("got %d samples, want %d: %w", len(frame), p.config.BufferSize, spectral.ErrFrameSize)
	}

	p.procMu.Lock()
	defer p.procMu.Unlock()

	copy(p.frame, frame)
	return p.process(p.frame), nil
}

// process runs the stages on p.frame; caller holds procMu
func (p *Pipeline) process(frame []float64) CycleResult {
	p.sequence++
	result := CycleResult{Sequence: p.sequence}

	// the gate and the snapshot see the captured frame; only the
	// analysis copy is DC filtered and windowed
	copy(p.windowed, frame)
	if p.dc != nil {
		p.dc.ProcessInPlace(p.windowed)
	}
	// sizes match by construction
	_ = p.window.ApplyInPlace(p.windowed)

	spec, err := p.analyzer.Analyze(p.windowed)
	if err != nil {
		p.logger.Error(err, "spectral analysis failed")
		return result
	}
	result.Spectrum = spec
	p.spectrum.Store(&spec)

	result.Gate = p.gate.Evaluate(frame, spec)
	if result.Gate.Loud {
		result.Peaks = p.peaks.Update(p.gate.Snapshot())
		result.PeaksUpdated = true
	} else {
		result.Peaks = p.peaks.Pair()
	}

	if p.classifier != nil {
		reading := p.classifier.Classify(spec)
		result.Doppler = &reading
	}

	p.frames.Add(1)
	p.publish(result)

	if fn := p.observer.Load(); fn != nil {
		(*fn)(result)
	}
	return result
}

func (p *Pipeline) publish(result CycleResult) {
	state := &State{
		Sequence:         result.Sequence,
		Peaks:            result.Peaks,
		DopplerEnabled:   p.classifier != nil,
		EmittedFrequency: p.emittedFrequency(),
		Gate:             result.Gate,
		Stats:            p.Stats(),
		UpdatedAt:        time.Now(),
	}
	if result.Doppler != nil {
		state.Direction = result.Doppler.Smoothed
	}
	p.state.Store(state)

	if result.PeaksUpdated {
		f1, f2 := result.Peaks.Frequencies()
		p.logger.Debug("cycle", logging.Fields{
			"sequence":  result.Sequence,
			"excursion": result.Gate.Excursion,
			"primary":   f1,
			"secondary": f2,
		})
	}
}

// Start attaches source and begins ticking at the configured frame rate
func (p *Pipeline) Start(ctx context.Context, source capture.Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.running {
		return ErrAlreadyStarted
	}
	if source.SampleRate() != p.config.SampleRate {
		return fmt.Errorf("%w: source runs at %d Hz, pipeline expects %d Hz",
			config.ErrInvalidConfig, source.SampleRate(), p.config.SampleRate)
	}
	if p.config.AnalysisChannel >= source.Channels() {
		return fmt.Errorf("%w: analysis channel %d but source has %d channels",
			config.ErrInvalidConfig, p.config.AnalysisChannel, source.Channels())
	}

	p.channels = source.Channels()
	runCtx, cancel := context.WithCancel(ctx)
	if err := source.Start(runCtx, p.Write); err != nil {
		cancel()
		return fmt.Errorf("failed to start source: %w", err)
	}

	p.source = source
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	go p.loop(runCtx, p.done)

	p.logger.Info("pipeline started", logging.Fields{
		"frame_rate": p.config.FrameRate,
		"channels":   p.channels,
	})
	return nil
}

func (p *Pipeline) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	period := time.Duration(float64(time.Second) / p.config.FrameRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Stop detaches the source, stops the ticker and clears the ring. The
// pipeline can be started again with a new source.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotStarted
	}
	p.running = false

	srcErr := p.source.Stop()
	p.cancel()
	<-p.done
	p.ring.Clear()
	p.source = nil

	p.logger.Info("pipeline stopped", logging.Fields{"frames": p.frames.Load()})
	if srcErr != nil {
		return fmt.Errorf("failed to stop source: %w", srcErr)
	}
	return nil
}

// Wait blocks until the running pipeline stops or ctx is done
func (p *Pipeline) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	running := p.running
	p.mu.Unlock()

	if !running {
		return ErrNotStarted
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the pipeline if needed and releases the transform. A closed
// pipeline cannot be restarted.
func (p *Pipeline) Close() error {
	var err error
	if stopErr := p.Stop(); stopErr != nil && !errors.Is(stopErr, ErrNotStarted) {
		err = stopErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return err
	}
	p.closed = true

	p.procMu.Lock()
	p.analyzer.Close()
	p.procMu.Unlock()
	return err
}

// SetEmittedFrequency moves the Doppler reference tone
func (p *Pipeline) SetEmittedFrequency(hz float64) error {
	if p.classifier == nil {
		return ErrDopplerOff
	}
	if hz >= p.config.Nyquist() {
		return fmt.Errorf("emitted frequency %g Hz must be below %g Hz", hz, p.config.Nyquist())
	}
	return p.classifier.SetEmittedFrequency(hz)
}

func (p *Pipeline) emittedFrequency() float64 {
	if p.classifier == nil {
		return 0
	}
	return p.classifier.EmittedFrequency()
}

// Peaks returns the locked peak pair
func (p *Pipeline) Peaks() harmonic.TrackedPeakPair {
	return p.peaks.Pair()
}

// Snapshot returns the last frozen frame, or nil before the gate first fires
func (p *Pipeline) Snapshot() *temporal.Snapshot {
	return p.gate.Snapshot()
}

// Direction returns the smoothed Doppler direction
func (p *Pipeline) Direction() doppler.Direction {
	if p.classifier == nil {
		return doppler.Stationary
	}
	return p.classifier.Direction()
}

// Spectrum returns the most recent live spectrum
func (p *Pipeline) Spectrum() (spectral.Spectrum, bool) {
	s := p.spectrum.Load()
	if s == nil {
		return spectral.Spectrum{}, false
	}
	return *s, true
}

// State returns the last published state
func (p *Pipeline) State() State {
	return *p.state.Load()
}

// Stats returns the running counters
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:         p.frames.Load(),
		GateFires:      p.gateFires(),
		Ticks:          p.ticks.Load(),
		IdleTicks:      p.idleTicks.Load(),
		DroppedSamples: p.ring.Dropped(),
	}
}

func (p *Pipeline) gateFires() uint64 {
	if snap := p.gate.Snapshot(); snap != nil {
		return snap.Sequence
	}
	return 0
}
