package windowing

import (
	"fmt"
	"math"
	"strings"
)

// Type names an analysis window
type Type string

const (
	TypeRectangular Type = "rectangular"
	TypeHann        Type = "hann"
	TypeHamming     Type = "hamming"
	TypeBlackman    Type = "blackman"
)

// Window holds precomputed coefficients for one frame size. Coefficients are
// periodic (DFT-even), which is what a spectrum analyzer wants.
type Window struct {
	kind         Type
	size         int
	coefficients []float64
	gain         float64
}

// New creates a window by name. An empty name selects Hann.
func New(name string, size int) (*Window, error) {
	if size < 1 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	kind := Type(strings.ToLower(strings.TrimSpace(name)))
	if kind == "" {
		kind = TypeHann
	}

	var gen func(i int, n float64) float64
	switch kind {
	case TypeRectangular:
		gen = func(int, float64) float64 { return 1.0 }
	case TypeHann:
		gen = func(i int, n float64) float64 {
			return 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/n))
		}
	case TypeHamming:
		gen = func(i int, n float64) float64 {
			return 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/n)
		}
	case TypeBlackman:
		gen = func(i int, n float64) float64 {
			x := 2 * math.Pi * float64(i) / n
			return 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		}
	default:
		return nil, fmt.Errorf("unknown window type %q", name)
	}

	w := &Window{
		kind:         kind,
		size:         size,
		coefficients: make([]float64, size),
	}

	sum := 0.0
	for i := range size {
		w.coefficients[i] = gen(i, float64(size))
		sum += w.coefficients[i]
	}
	w.gain = sum / float64(size)

	return w, nil
}

// Apply applies the window to a signal (creates new array)
func (w *Window) Apply(signal []float64) []float64 {
	if len(signal) != w.size {
		return nil
	}

	windowed := make([]float64, w.size)
	for i := range w.size {
		windowed[i] = signal[i] * w.coefficients[i]
	}
	return windowed
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != w.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	for i := range w.size {
		signal[i] *= w.coefficients[i]
	}
	return nil
}

// CoherentGain is the mean coefficient; dividing a windowed magnitude by it
// restores the amplitude of a pure tone.
func (w *Window) CoherentGain() float64 {
	return w.gain
}

// GetCoefficients returns a copy of the window coefficients
func (w *Window) GetCoefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// GetSize returns the window size
func (w *Window) GetSize() int {
	return w.size
}

// GetType returns the window type
func (w *Window) GetType() Type {
	return w.kind
}
