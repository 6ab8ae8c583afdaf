package doppler

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-radar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-radar/logging"
)

const (
	sampleRate = 44100
	frameSize  = 2048
	emitted    = 18000.0
)

// shiftedSpectrum places the pilot tone at -20 dB and raises `left` bins
// below it and `right` bins above it to just under the tone level.
func shiftedSpectrum(left, right int) spectral.Spectrum {
	mags := make([]float64, frameSize/2)
	for i := range mags {
		mags[i] = -100
	}
	bin := int(math.Round(emitted / (float64(sampleRate) / frameSize)))
	mags[bin] = -20
	for i := 1; i <= left; i++ {
		mags[bin-i] = -20.5
	}
	for i := 1; i <= right; i++ {
		mags[bin+i] = -20.5
	}
	return spectral.Spectrum{Magnitudes: mags, SampleRate: sampleRate, FrameSize: frameSize}
}

func newClassifier(t *testing.T, history int) *Classifier {
	t.Helper()
	opts := DefaultOptions()
	opts.EmittedFrequency = emitted
	opts.VoteHistory = history
	c, err := NewClassifier(opts, &logging.NoOpLogger{})
	require.NoError(t, err)
	return c
}

func TestMeasureCountsLobeWidths(t *testing.T) {
	c := newClassifier(t, 5)
	left, right, bin, ok := c.Measure(shiftedSpectrum(3, 8))

	require.True(t, ok)
	assert.Equal(t, 836, bin)
	assert.Equal(t, 3, left)
	assert.Equal(t, 8, right)
}

func TestClassifyRawDirections(t *testing.T) {
	c := newClassifier(t, 1)

	tests := []struct {
		name        string
		left, right int
		want        Direction
	}{
		{"upward shift", 1, 10, Approaching},
		{"downward shift", 10, 1, Receding},
		{"balanced", 5, 6, Stationary},
		{"difference at threshold", 4, 6, Stationary},
		{"pure tone", 0, 0, Stationary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.Classify(shiftedSpectrum(tt.left, tt.right))
			assert.True(t, r.Valid)
			assert.Equal(t, tt.want, r.Raw)
			assert.Equal(t, tt.want, r.Smoothed)
		})
	}
}

func TestWalkStopsAtWindowSize(t *testing.T) {
	c := newClassifier(t, 5)
	left, right, _, ok := c.Measure(shiftedSpectrum(50, 0))
	require.True(t, ok)
	assert.Equal(t, 30, left)
	assert.Zero(t, right)
}

func TestWalkClampsAtSpectrumEdges(t *testing.T) {
	opts := DefaultOptions()
	opts.EmittedFrequency = 9
	c, err := NewClassifier(opts, nil)
	require.NoError(t, err)

	flat := spectral.Spectrum{Magnitudes: make([]float64, 10), SampleRate: 20, FrameSize: 20}
	left, right, bin, ok := c.Measure(flat)

	require.True(t, ok)
	assert.Equal(t, 9, bin)
	assert.Equal(t, 9, left)
	assert.Zero(t, right)

	require.NoError(t, c.SetEmittedFrequency(0.2))
	left, right, bin, ok = c.Measure(flat)
	require.True(t, ok)
	assert.Zero(t, bin)
	assert.Zero(t, left)
	assert.Equal(t, 9, right)
}

func TestToneOutsideSpectrumRecordsNoVote(t *testing.T) {
	c := newClassifier(t, 5)
	require.NoError(t, c.SetEmittedFrequency(30000))

	r := c.Classify(shiftedSpectrum(0, 0))

	assert.False(t, r.Valid)
	assert.Equal(t, []Direction{Stationary, Stationary, Stationary, Stationary, Stationary}, c.votes.Votes())
}

func TestSmoothedOutputNeedsMajority(t *testing.T) {
	c := newClassifier(t, 5)
	up, down := shiftedSpectrum(0, 10), shiftedSpectrum(10, 0)

	sequence := []spectral.Spectrum{up, down, up, down}
	for i, spec := range sequence {
		r := c.Classify(spec)
		assert.Equal(t, Stationary, r.Smoothed, "cycle %d", i)
	}

	// third approaching vote out of five
	r := c.Classify(up)
	assert.Equal(t, Approaching, r.Raw)
	assert.Equal(t, Approaching, r.Smoothed)
	assert.Equal(t, Approaching, c.Direction())

	c.Reset()
	assert.Equal(t, Stationary, c.Direction())
}

func TestVoteHistoryTieGoesStationary(t *testing.T) {
	h := NewVoteHistory(4)
	h.Push(Receding)
	h.Push(Receding)
	h.Push(Approaching)
	h.Push(Approaching)
	assert.Equal(t, Stationary, h.Majority(), "2 of 4 is not a majority")

	h.Push(Approaching)
	assert.Equal(t, Approaching, h.Majority())
	assert.Equal(t, []Direction{Receding, Approaching, Approaching, Approaching}, h.Votes())
	assert.Equal(t, 4, h.Len())
}

func TestNewClassifierValidation(t *testing.T) {
	bad := []func(*Options){
		func(o *Options) { o.EnergyRatio = 1 },
		func(o *Options) { o.EnergyRatio = 0 },
		func(o *Options) { o.WindowSize = 0 },
		func(o *Options) { o.SmallDiffThreshold = -1 },
		func(o *Options) { o.VoteHistory = 0 },
		func(o *Options) { o.EmittedFrequency = 0 },
	}
	for i, mutate := range bad {
		opts := DefaultOptions()
		mutate(&opts)
		_, err := NewClassifier(opts, nil)
		assert.Error(t, err, "case %d", i)
	}

	c := newClassifier(t, 5)
	assert.Error(t, c.SetEmittedFrequency(-5))
	assert.Equal(t, emitted, c.EmittedFrequency())
}

func TestDirectionJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Direction{"d": Receding})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"receding"}`, string(b))

	var d Direction
	require.NoError(t, d.UnmarshalText([]byte("Approaching")))
	assert.Equal(t, Approaching, d)
	assert.Error(t, d.UnmarshalText([]byte("sideways")))
}
