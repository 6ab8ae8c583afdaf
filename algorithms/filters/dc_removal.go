package filters

import (
	"math"
)

// DCRemoval is a one-pole DC blocker:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// Microphone offsets otherwise leak into bin 0 and its neighbours, which the
// peak scan would report as a low-frequency tone. State carries across calls,
// so consecutive frames of one stream are filtered without a seam.
//
// Reference: J. O. Smith III, "Introduction to Digital Filters", DC Blocker.
type DCRemoval struct {
	poleLocation float64 // R, 0 < R < 1

	x1 float64
	y1 float64
}

// NewDCRemoval uses R = 0.995 (about 35 Hz at 44.1 kHz).
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff derives R from a -3 dB cutoff using
// R = 1 - 2*pi*fc/fs, valid for fc << fs/2.
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	dc := NewDCRemoval()
	if sampleRate > 0 && cutoffFreq > 0 {
		dc.poleLocation = poleFromCutoff(sampleRate, cutoffFreq)
	}
	return dc
}

func poleFromCutoff(sampleRate int, cutoffFreq float64) float64 {
	r := 1.0 - (2.0 * math.Pi * cutoffFreq / float64(sampleRate))
	switch {
	case r >= 1.0:
		return 0.999
	case r <= 0.0:
		return 0.001
	}
	return r
}

// Process filters a single sample
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.poleLocation*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessInPlace filters a frame, overwriting it
func (dc *DCRemoval) ProcessInPlace(frame []float64) {
	for i, sample := range frame {
		frame[i] = dc.Process(sample)
	}
}

// Reset clears the filter state. Call it between unrelated recordings.
func (dc *DCRemoval) Reset() {
	dc.x1 = 0.0
	dc.y1 = 0.0
}

// GetPoleLocation returns R
func (dc *DCRemoval) GetPoleLocation() float64 {
	return dc.poleLocation
}

// GetCutoffFrequency inverts the design formula: fc = (1-R)*fs/(2*pi)
func (dc *DCRemoval) GetCutoffFrequency(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	return (1.0 - dc.poleLocation) * float64(sampleRate) / (2.0 * math.Pi)
}
