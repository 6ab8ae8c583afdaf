package temporal

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-radar/algorithms/common"
	"github.com/RyanBlaney/sonido-radar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-radar/logging"
)

// Snapshot is the frame and spectrum captured the last time the gate fired.
// It is immutable once published.
type Snapshot struct {
	Frame      []float64         `json:"-"`
	Spectrum   spectral.Spectrum `json:"spectrum"`
	Sequence   uint64            `json:"sequence"`
	Amplitude  float64           `json:"amplitude"`
	CapturedAt time.Time         `json:"captured_at"`
}

// GateResult describes one gate decision
type GateResult struct {
	Loud         bool    `json:"loud"`
	Ready        bool    `json:"ready"`
	MaxAmplitude float64 `json:"max_amplitude"`
	Baseline     float64 `json:"baseline"`
	Excursion    float64 `json:"excursion"`
}

// LoudnessGate compares each frame's peak amplitude against a linearly
// weighted average of the previous lookback peaks. A frame whose relative
// excursion exceeds cutoff is "loud" and gets frozen into the snapshot.
//
// Evaluate must be called from a single goroutine; Snapshot may be read from
// any goroutine.
type LoudnessGate struct {
	lookback int
	cutoff   float64

	history []float64 // newest first
	weights []float64

	fires    uint64
	snapshot atomic.Pointer[Snapshot]
	now      func() time.Time
	logger   logging.Logger
}

// NewLoudnessGate creates a gate with the given history length and cutoff.
func NewLoudnessGate(lookback int, cutoff float64, logger logging.Logger) (*LoudnessGate, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("loudness gate lookback must be at least 1, got %d", lookback)
	}
	if cutoff < 0 {
		return nil, fmt.Errorf("loudness gate cutoff must not be negative, got %g", cutoff)
	}

	// w(i) = (n+1-i)/(n+1), i = 1..n, index 0 is the most recent entry
	weights := make([]float64, lookback)
	for i := range weights {
		weights[i] = float64(lookback-i) / float64(lookback+1)
	}

	return &LoudnessGate{
		lookback: lookback,
		cutoff:   cutoff,
		history:  make([]float64, 0, lookback),
		weights:  weights,
		now:      time.Now,
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{
			"component": "loudness_gate",
			"lookback":  lookback,
			"cutoff":    cutoff,
		}),
	}, nil
}

// Evaluate decides whether frame is loud relative to recent history and,
// when it is, freezes frame and spec into a new snapshot. The frame's peak
// amplitude is pushed onto the history afterwards in every case.
func (g *LoudnessGate) Evaluate(frame []float64, spec spectral.Spectrum) GateResult {
	result := GateResult{
		MaxAmplitude: common.MaxAbs(frame),
		Ready:        len(g.history) == g.lookback,
	}

	if result.Ready {
		result.Baseline = common.WeightedMean(g.history, g.weights)
		// silent baseline: ratio undefined, never loud
		if result.Baseline > 0 {
			result.Excursion = (result.MaxAmplitude - result.Baseline) / result.Baseline
			result.Loud = result.Excursion > g.cutoff
		}
	}

	if result.Loud {
		g.freeze(frame, spec, result.MaxAmplitude)
	}

	g.push(result.MaxAmplitude)
	return result
}

func (g *LoudnessGate) freeze(frame []float64, spec spectral.Spectrum, amplitude float64) {
	g.fires++
	frozen := make([]float64, len(frame))
	copy(frozen, frame)

	g.snapshot.Store(&Snapshot{
		Frame:      frozen,
		Spectrum:   spec.Clone(),
		Sequence:   g.fires,
		Amplitude:  amplitude,
		CapturedAt: g.now(),
	})

	g.logger.Debug("frame frozen", logging.Fields{
		"sequence":  g.fires,
		"amplitude": amplitude,
	})
}

func (g *LoudnessGate) push(amplitude float64) {
	if len(g.history) < g.lookback {
		g.history = append(g.history, 0)
	}
	copy(g.history[1:], g.history[:len(g.history)-1])
	g.history[0] = amplitude
}

// Snapshot returns the last frozen snapshot, or nil before the first fire
func (g *LoudnessGate) Snapshot() *Snapshot {
	return g.snapshot.Load()
}

// History returns a copy of the amplitude history, newest first
func (g *LoudnessGate) History() []float64 {
	out := make([]float64, len(g.history))
	copy(out, g.history)
	return out
}

// Fires returns how many times the gate has fired
func (g *LoudnessGate) Fires() uint64 {
	return g.fires
}

// Reset clears the history so the gate warms up again. The last snapshot is
// kept.
func (g *LoudnessGate) Reset() {
	g.history = g.history[:0]
}
