package doppler

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-radar/algorithms/common"
	"github.com/RyanBlaney/sonido-radar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-radar/logging"
)

// Reading is the outcome of one classification cycle
type Reading struct {
	Raw      Direction `json:"raw"`
	Smoothed Direction `json:"smoothed"`
	Left     int       `json:"left"`
	Right    int       `json:"right"`
	Bin      int       `json:"bin"`
	Valid    bool      `json:"valid"`
}

// Classifier measures how far energy around the emitted tone spreads below
// and above it. A source moving toward the microphone shifts energy up, so a
// wider lobe on the right reads as approaching.
//
// Classify must be called from a single goroutine. SetEmittedFrequency and
// Direction are safe from any goroutine.
type Classifier struct {
	emitted    atomic.Uint64 // float64 bits
	ratio      float64
	windowSize int
	smallDiff  int

	votes    *VoteHistory
	smoothed atomic.Int32
	logger   logging.Logger
}

// Options configures a Classifier
type Options struct {
	EmittedFrequency   float64
	EnergyRatio        float64
	WindowSize         int
	SmallDiffThreshold int
	VoteHistory        int
}

// DefaultOptions returns the tuning used for an 18 kHz pilot tone
func DefaultOptions() Options {
	return Options{
		EmittedFrequency:   18000,
		EnergyRatio:        0.85,
		WindowSize:         30,
		SmallDiffThreshold: 2,
		VoteHistory:        5,
	}
}

// NewClassifier creates a classifier
func NewClassifier(opts Options, logger logging.Logger) (*Classifier, error) {
	if opts.EnergyRatio <= 0 || opts.EnergyRatio >= 1 {
		return nil, fmt.Errorf("doppler energy ratio must be in (0,1), got %g", opts.EnergyRatio)
	}
	if opts.WindowSize < 1 {
		return nil, fmt.Errorf("doppler window size must be positive, got %d", opts.WindowSize)
	}
	if opts.SmallDiffThreshold < 0 {
		return nil, fmt.Errorf("doppler small difference threshold must not be negative, got %d", opts.SmallDiffThreshold)
	}
	if opts.VoteHistory < 1 {
		return nil, fmt.Errorf("doppler vote history must be positive, got %d", opts.VoteHistory)
	}
	if opts.EmittedFrequency <= 0 {
		return nil, fmt.Errorf("emitted frequency must be positive, got %g", opts.EmittedFrequency)
	}

	c := &Classifier{
		ratio:      opts.EnergyRatio,
		windowSize: opts.WindowSize,
		smallDiff:  opts.SmallDiffThreshold,
		votes:      NewVoteHistory(opts.VoteHistory),
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{
			"component": "doppler_classifier",
		}),
	}
	c.emitted.Store(math.Float64bits(opts.EmittedFrequency))
	return c, nil
}

// SetEmittedFrequency changes the reference tone
func (c *Classifier) SetEmittedFrequency(hz float64) error {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return fmt.Errorf("emitted frequency must be positive, got %g", hz)
	}
	c.emitted.Store(math.Float64bits(hz))
	c.logger.Info("emitted frequency changed", logging.Fields{"emitted_frequency": hz})
	return nil
}

// EmittedFrequency returns the current reference tone in Hz
func (c *Classifier) EmittedFrequency() float64 {
	return math.Float64frombits(c.emitted.Load())
}

// Measure returns the lobe widths, in bins, left and right of the emitted
// tone's bin. ok is false when the tone lies outside the spectrum.
func (c *Classifier) Measure(spec spectral.Spectrum) (left, right, bin int, ok bool) {
	res := spec.Resolution()
	if res <= 0 || spec.Len() == 0 {
		return 0, 0, 0, false
	}

	bin = int(math.Round(c.EmittedFrequency() / res))
	if bin < 0 || bin >= spec.Len() {
		return 0, 0, bin, false
	}

	// compare in linear amplitude, a ratio of dB values is meaningless
	threshold := c.ratio * common.DBToAmplitude(spec.Magnitudes[bin])
	above := func(i int) bool {
		return common.DBToAmplitude(spec.Magnitudes[i]) > threshold
	}

	for i := 1; i <= c.windowSize && bin-i >= 0; i++ {
		if !above(bin - i) {
			break
		}
		left++
	}
	for i := 1; i <= c.windowSize && bin+i < spec.Len(); i++ {
		if !above(bin + i) {
			break
		}
		right++
	}
	return left, right, bin, true
}

// Decide maps lobe widths to a single-cycle direction
func (c *Classifier) Decide(left, right int) Direction {
	diff := right - left
	switch {
	case diff <= c.smallDiff && diff >= -c.smallDiff:
		return Stationary
	case right > left:
		return Approaching
	default:
		return Receding
	}
}

// Classify measures spec, records the vote and returns both the raw and the
// smoothed direction. An unusable spectrum records no vote.
func (c *Classifier) Classify(spec spectral.Spectrum) Reading {
	left, right, bin, ok := c.Measure(spec)
	reading := Reading{Left: left, Right: right, Bin: bin, Valid: ok}
	if !ok {
		reading.Smoothed = c.Direction()
		return reading
	}

	reading.Raw = c.Decide(left, right)
	c.votes.Push(reading.Raw)
	reading.Smoothed = c.votes.Majority()

	if prev := Direction(c.smoothed.Swap(int32(reading.Smoothed))); prev != reading.Smoothed {
		c.logger.Debug("direction changed", logging.Fields{
			"from":  prev.String(),
			"to":    reading.Smoothed.String(),
			"left":  left,
			"right": right,
		})
	}
	return reading
}

// Direction returns the last smoothed direction
func (c *Classifier) Direction() Direction {
	return Direction(c.smoothed.Load())
}

// Reset clears the vote history
func (c *Classifier) Reset() {
	c.votes.Reset()
	c.smoothed.Store(int32(Stationary))
}
