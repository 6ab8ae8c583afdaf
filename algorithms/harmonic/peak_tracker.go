package harmonic

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-radar/algorithms/temporal"
	"github.com/RyanBlaney/sonido-radar/logging"
)

// TrackedPeakPair is the locked pair of tones. A slot keeps its last value
// until a later frozen frame yields a replacement for it.
type TrackedPeakPair struct {
	Primary        SpectralPeak `json:"primary"`
	Secondary      SpectralPeak `json:"secondary"`
	PrimaryValid   bool         `json:"primary_valid"`
	SecondaryValid bool         `json:"secondary_valid"`
	Sequence       uint64       `json:"sequence"` // snapshot sequence that produced it
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Frequencies returns the two locked frequencies (0 for an empty slot)
func (p TrackedPeakPair) Frequencies() (float64, float64) {
	var a, b float64
	if p.PrimaryValid {
		a = p.Primary.Frequency
	}
	if p.SecondaryValid {
		b = p.Secondary.Frequency
	}
	return a, b
}

// PeakTracker runs the locator on frozen snapshots only and publishes the
// resulting pair by atomic pointer swap. Update must be called from one
// goroutine; Pair is safe from any goroutine.
type PeakTracker struct {
	locator *PeakLocator
	pair    atomic.Pointer[TrackedPeakPair]
	logger  logging.Logger
}

// NewPeakTracker creates a tracker with an empty pair
func NewPeakTracker(locator *PeakLocator, logger logging.Logger) *PeakTracker {
	pt := &PeakTracker{
		locator: locator,
		logger:  logging.OrGlobal(logger).WithFields(logging.Fields{"component": "peak_tracker"}),
	}
	pt.pair.Store(&TrackedPeakPair{})
	return pt
}

// Update locates peaks on snapshot and merges them into the locked pair.
// A nil snapshot, or one already processed, leaves the pair untouched.
func (pt *PeakTracker) Update(snapshot *temporal.Snapshot) TrackedPeakPair {
	current := pt.pair.Load()
	if snapshot == nil || (current.Sequence != 0 && snapshot.Sequence == current.Sequence) {
		return *current
	}

	peaks := pt.locator.Locate(snapshot.Spectrum)
	next := *current
	next.Sequence = snapshot.Sequence
	next.UpdatedAt = snapshot.CapturedAt

	if len(peaks) > 0 {
		next.Primary = peaks[0]
		next.PrimaryValid = true
	}
	switch {
	case len(peaks) > 1:
		next.Secondary = peaks[1]
		next.SecondaryValid = true
	case len(peaks) == 1:
		pt.reconcileSecondary(&next, current)
	}

	pt.pair.Store(&next)

	f1, f2 := next.Frequencies()
	pt.logger.Debug("peak pair locked", logging.Fields{
		"sequence":  next.Sequence,
		"primary":   f1,
		"secondary": f2,
		"found":     len(peaks),
	})

	return next
}

// reconcileSecondary keeps the held second slot only while it stays at least
// the minimum separation away from the new primary. Otherwise the previous
// primary takes the slot if it qualifies, or the slot is cleared.
func (pt *PeakTracker) reconcileSecondary(next, previous *TrackedPeakPair) {
	primary := next.Primary
	farEnough := func(p SpectralPeak) bool {
		return math.Abs(p.Frequency-primary.Frequency) >= pt.locator.minSeparation
	}

	switch {
	case previous.SecondaryValid && farEnough(previous.Secondary):
		return
	case previous.PrimaryValid && farEnough(previous.Primary):
		next.Secondary = previous.Primary
		next.SecondaryValid = true
	default:
		next.Secondary = SpectralPeak{}
		next.SecondaryValid = false
	}
}

// Pair returns a copy of the locked pair
func (pt *PeakTracker) Pair() TrackedPeakPair {
	return *pt.pair.Load()
}

// Reset clears the locked pair
func (pt *PeakTracker) Reset() {
	pt.pair.Store(&TrackedPeakPair{})
}
