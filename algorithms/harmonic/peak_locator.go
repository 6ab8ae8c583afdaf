package harmonic

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-radar/algorithms/common"
	"github.com/RyanBlaney/sonido-radar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-radar/logging"
)

// SpectralPeak represents a detected spectral peak
type SpectralPeak struct {
	Frequency float64 `json:"frequency"` // refined frequency in Hz
	Magnitude float64 `json:"magnitude"` // dB at the refined position
	BinIndex  int     `json:"bin"`       // original FFT bin index
}

// PeakLocator picks the strongest tones of a spectrum: local maxima ranked by
// magnitude, accepted greedily while they stay at least minSeparation Hz away
// from every tone already accepted, with quadratic sub-bin refinement.
type PeakLocator struct {
	windowSize    int
	minSeparation float64
	maxPeaks      int
	logger        logging.Logger
}

// NewPeakLocator creates a locator. windowSize is the odd local-maximum
// window, minSeparationHz the minimum distance between reported peaks.
func NewPeakLocator(windowSize int, minSeparationHz float64, logger logging.Logger) (*PeakLocator, error) {
	if windowSize < 3 || windowSize%2 == 0 {
		return nil, fmt.Errorf("peak window must be odd and at least 3, got %d", windowSize)
	}
	if minSeparationHz < 0 {
		return nil, fmt.Errorf("minimum peak separation must not be negative, got %g", minSeparationHz)
	}

	return &PeakLocator{
		windowSize:    windowSize,
		minSeparation: minSeparationHz,
		maxPeaks:      2,
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{
			"component":   "peak_locator",
			"window_size": windowSize,
		}),
	}, nil
}

// Candidates returns every bin that is the maximum of the window centred on
// it, sorted by magnitude descending. Ties keep ascending bin order.
func (pl *PeakLocator) Candidates(spec spectral.Spectrum) []SpectralPeak {
	mags := spec.Magnitudes
	half := pl.windowSize / 2
	if len(mags) < pl.windowSize {
		return []SpectralPeak{}
	}

	var candidates []SpectralPeak
	for i := half; i < len(mags)-half; i++ {
		if mags[i] == floats.Max(mags[i-half:i+half+1]) {
			candidates = append(candidates, SpectralPeak{
				Frequency: spec.BinFrequency(i),
				Magnitude: mags[i],
				BinIndex:  i,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Magnitude > candidates[j].Magnitude
	})

	return candidates
}

// Locate returns up to two refined peaks, strongest first. Separation is
// checked on the refined frequencies.
func (pl *PeakLocator) Locate(spec spectral.Spectrum) []SpectralPeak {
	candidates := pl.Candidates(spec)
	accepted := make([]SpectralPeak, 0, pl.maxPeaks)

	for _, c := range candidates {
		refined := Refine(spec, c.BinIndex)
		if !pl.separated(refined, accepted) {
			continue
		}
		accepted = append(accepted, refined)
		if len(accepted) == pl.maxPeaks {
			break
		}
	}

	pl.logger.Debug("peaks located", logging.Fields{
		"candidates": len(candidates),
		"accepted":   len(accepted),
	})

	return accepted
}

func (pl *PeakLocator) separated(p SpectralPeak, accepted []SpectralPeak) bool {
	for _, a := range accepted {
		if math.Abs(p.Frequency-a.Frequency) < pl.minSeparation {
			return false
		}
	}
	return true
}

// Refine fits a parabola through bins k-1, k, k+1 and returns the peak at its
// vertex. Edge bins and flat neighbourhoods fall back to the raw bin.
func Refine(spec spectral.Spectrum, k int) SpectralPeak {
	mags := spec.Magnitudes
	peak := SpectralPeak{
		Frequency: spec.BinFrequency(k),
		Magnitude: mags[k],
		BinIndex:  k,
	}
	if k <= 0 || k >= len(mags)-1 {
		return peak
	}

	offset, value, ok := common.ParabolicPeak(mags[k-1], mags[k], mags[k+1])
	if !ok {
		return peak
	}

	peak.Frequency = (float64(k) + offset) * spec.Resolution()
	peak.Magnitude = value
	return peak
}
