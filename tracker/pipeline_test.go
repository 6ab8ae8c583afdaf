package tracker

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-radar/algorithms/doppler"
	"github.com/RyanBlaney/sonido-radar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-radar/capture"
	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/synth"
	"github.com/RyanBlaney/sonido-radar/tracker/config"
)

const (
	testRate  = 8000
	testFrame = 1024
)

func testConfig() *config.PipelineConfig {
	cfg := config.DefaultPipelineConfig()
	cfg.SampleRate = testRate
	cfg.BufferSize = testFrame
	cfg.FrameRate = 100
	cfg.Gate.Lookback = 5
	cfg.Doppler.EmittedFrequency = 2000
	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.PipelineConfig) *Pipeline {
	t.Helper()
	p, err := New(cfg, &logging.NoOpLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func quietFrame() []float64 {
	return synth.Mix(testRate, testFrame, map[float64]float64{500: 0.01})
}

func loudFrame() []float64 {
	return synth.Mix(testRate, testFrame, map[float64]float64{440: 0.4, 880: 0.3})
}

func warmUp(t *testing.T, p *Pipeline) {
	t.Helper()
	for range p.Config().Gate.Lookback {
		res, err := p.Process(quietFrame())
		require.NoError(t, err)
		require.False(t, res.Gate.Loud)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BufferSize = 1000

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestPipelineLocksPeaksOnLoudFrame(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	warmUp(t, p)

	res, err := p.Process(loudFrame())
	require.NoError(t, err)
	require.True(t, res.Gate.Loud)
	require.True(t, res.PeaksUpdated)

	f1, f2 := p.Peaks().Frequencies()
	assert.InDelta(t, 440, f1, 4)
	assert.InDelta(t, 880, f2, 4)
	require.NotNil(t, p.Snapshot())
	assert.Equal(t, uint64(1), p.Snapshot().Sequence)
}

func TestPipelineGatesOnCapturedFrame(t *testing.T) {
	cfg := testConfig()
	require.True(t, cfg.RemoveDC)
	p := newTestPipeline(t, cfg)
	warmUp(t, p)

	loud := loudFrame()
	for i := range loud {
		loud[i] += 0.2
	}
	peak := 0.0
	for _, v := range loud {
		peak = math.Max(peak, math.Abs(v))
	}

	res, err := p.Process(loud)
	require.NoError(t, err)
	require.True(t, res.Gate.Loud)
	assert.InDelta(t, peak, res.Gate.MaxAmplitude, 1e-12)

	snap := p.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, loud, snap.Frame)
}

func TestPipelineFrozenPairSurvivesSilence(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	warmUp(t, p)

	_, err := p.Process(loudFrame())
	require.NoError(t, err)
	locked := p.Peaks()
	snap := p.Snapshot()

	silence := make([]float64, testFrame)
	for range 10 {
		res, err := p.Process(silence)
		require.NoError(t, err)
		assert.False(t, res.Gate.Loud)
		assert.False(t, res.PeaksUpdated)
	}

	assert.Equal(t, locked, p.Peaks())
	assert.Same(t, snap, p.Snapshot())
	assert.Equal(t, uint64(1), p.Stats().GateFires)
	assert.Equal(t, uint64(16), p.Stats().Frames)
}

func TestPipelineNoDetectionDuringWarmUp(t *testing.T) {
	p := newTestPipeline(t, testConfig())

	res, err := p.Process(loudFrame())
	require.NoError(t, err)
	assert.False(t, res.Gate.Ready)
	assert.False(t, res.Gate.Loud)
	assert.False(t, p.Peaks().PrimaryValid)
	assert.Nil(t, p.Snapshot())
}

func TestProcessRejectsWrongFrameSize(t *testing.T) {
	p := newTestPipeline(t, testConfig())

	_, err := p.Process(make([]float64, 100))
	assert.True(t, errors.Is(err, spectral.ErrFrameSize))
}

func TestProcessDoesNotModifyInput(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	frame := loudFrame()
	want := append([]float64(nil), frame...)

	_, err := p.Process(frame)
	require.NoError(t, err)
	assert.Equal(t, want, frame)
}

func TestTickDrainsOnlyFullFrames(t *testing.T) {
	cfg := testConfig()
	cfg.Channels = 2
	cfg.AnalysisChannel = 1
	p := newTestPipeline(t, cfg)

	interleaved := make([]float32, 2*testFrame)
	for i := range testFrame {
		interleaved[2*i] = 0.9
		interleaved[2*i+1] = 0.25
	}

	p.Write(interleaved[:2*testFrame-2])
	_, ok := p.Tick()
	assert.False(t, ok)

	p.Write(interleaved[2*testFrame-2:])
	res, ok := p.Tick()
	require.True(t, ok)
	assert.Equal(t, uint64(1), res.Sequence)
	assert.InDelta(t, 0.25, res.Gate.MaxAmplitude, 1e-9)

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Ticks)
	assert.Equal(t, uint64(1), stats.IdleTicks)
	assert.Equal(t, uint64(1), stats.Frames)
}

func TestTickCountsOverruns(t *testing.T) {
	cfg := testConfig()
	cfg.RingFrames = 1
	p := newTestPipeline(t, cfg)

	p.Write(make([]float32, testFrame+10))
	_, ok := p.Tick()
	require.True(t, ok)
	assert.Equal(t, uint64(10), p.Stats().DroppedSamples)
}

func TestOnCycleAndState(t *testing.T) {
	p := newTestPipeline(t, testConfig())

	var seen []uint64
	p.OnCycle(func(r CycleResult) { seen = append(seen, r.Sequence) })
	warmUp(t, p)
	_, err := p.Process(loudFrame())
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, seen)

	state := p.State()
	assert.Equal(t, uint64(6), state.Sequence)
	assert.True(t, state.Gate.Loud)
	assert.Equal(t, p.Peaks(), state.Peaks)
	assert.False(t, state.DopplerEnabled)

	spec, ok := p.Spectrum()
	require.True(t, ok)
	assert.Equal(t, testFrame/2, spec.Len())

	p.OnCycle(nil)
	_, err = p.Process(quietFrame())
	require.NoError(t, err)
	assert.Len(t, seen, 6)
}

func TestDopplerThroughPipeline(t *testing.T) {
	cfg := testConfig()
	cfg.Doppler.Enabled = true
	p := newTestPipeline(t, cfg)

	tone := synth.Mix(testRate, testFrame, map[float64]float64{2000: 0.5})
	for range 5 {
		res, err := p.Process(tone)
		require.NoError(t, err)
		require.NotNil(t, res.Doppler)
		assert.True(t, res.Doppler.Valid)
	}
	assert.Equal(t, doppler.Stationary, p.Direction())
	assert.True(t, p.State().DopplerEnabled)
	assert.Equal(t, 2000.0, p.State().EmittedFrequency)

	require.NoError(t, p.SetEmittedFrequency(1500))
	_, err := p.Process(tone)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, p.State().EmittedFrequency)
	assert.Error(t, p.SetEmittedFrequency(testRate))
}

func TestSetEmittedFrequencyWhenDisabled(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	assert.True(t, errors.Is(p.SetEmittedFrequency(1000), ErrDopplerOff))
	assert.Equal(t, doppler.Stationary, p.Direction())
}

func TestPipelineLifecycle(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	pcm := synth.Mix(testRate, testRate*3, map[float64]float64{500: 0.1})
	opts := capture.ReplayOptions{BlockSize: 256, Speed: 1}

	assert.True(t, errors.Is(p.Stop(), ErrNotStarted))

	src := capture.NewSliceSource(pcm, testRate, 1, opts, nil)
	require.NoError(t, p.Start(context.Background(), src))
	assert.True(t, errors.Is(p.Start(context.Background(), src), ErrAlreadyStarted))

	require.Eventually(t, func() bool {
		return p.Stats().Frames >= 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Stop())
	assert.True(t, errors.Is(p.Stop(), ErrNotStarted))

	// restart with a fresh source
	src = capture.NewSliceSource(pcm, testRate, 1, opts, nil)
	require.NoError(t, p.Start(context.Background(), src))
	require.NoError(t, p.Close())

	src = capture.NewSliceSource(pcm, testRate, 1, opts, nil)
	assert.True(t, errors.Is(p.Start(context.Background(), src), ErrClosed))
}

func TestStartRejectsMismatchedSource(t *testing.T) {
	p := newTestPipeline(t, testConfig())

	src := capture.NewSliceSource(make([]float64, 10), 44100, 1, capture.DefaultReplayOptions(), nil)
	err := p.Start(context.Background(), src)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))

	cfg := testConfig()
	cfg.Channels = 2
	cfg.AnalysisChannel = 1
	p = newTestPipeline(t, cfg)
	src = capture.NewSliceSource(make([]float64, 10), testRate, 1, capture.DefaultReplayOptions(), nil)
	assert.True(t, errors.Is(p.Start(context.Background(), src), config.ErrInvalidConfig))
}

func TestStartStopsWithContext(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	src := capture.NewSliceSource(make([]float64, testRate), testRate, 1, capture.ReplayOptions{BlockSize: 256, Speed: 1, Loop: true}, nil)
	require.NoError(t, p.Start(ctx, src))
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	assert.NoError(t, p.Wait(waitCtx))
	// still counts as running until Stop detaches the source
	assert.NoError(t, p.Stop())
}
