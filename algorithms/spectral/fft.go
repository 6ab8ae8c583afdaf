package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps the go-dsp real transform
type FFT struct {
	size int
}

// NewFFT creates a transform for frames of size samples. Power-of-two sizes
// take the radix-2 path; its twiddle factors are prepared once here.
func NewFFT(size int) *FFT {
	if size > 0 && size&(size-1) == 0 {
		fft.EnsureRadix2Factors(size)
	}
	return &FFT{size: size}
}

// Compute computes the forward transform of a real frame
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// OneSidedMagnitude returns |X[k]| for k in [0, N/2) written into dst,
// which must hold len(x)/2 values.
func (f *FFT) OneSidedMagnitude(x []float64, dst []float64) {
	spectrum := f.Compute(x)
	for k := range dst {
		dst[k] = cmplx.Abs(spectrum[k])
	}
}

// Size returns the frame size this transform was prepared for
func (f *FFT) Size() int {
	return f.size
}
