package spectral

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-radar/algorithms/common"
	"github.com/RyanBlaney/sonido-radar/logging"
)

// ErrFrameSize is returned when a frame does not match the analyzer size
var ErrFrameSize = errors.New("frame length does not match analyzer buffer size")

// Spectrum is a one-sided magnitude spectrum in dB. Bin i covers
// i*SampleRate/FrameSize Hz.
type Spectrum struct {
	Magnitudes []float64 `json:"magnitudes"`
	SampleRate int       `json:"sample_rate"`
	FrameSize  int       `json:"frame_size"`
}

// Len returns the number of bins
func (s Spectrum) Len() int {
	return len(s.Magnitudes)
}

// Resolution returns the bin width in Hz
func (s Spectrum) Resolution() float64 {
	if s.FrameSize == 0 {
		return 0
	}
	return float64(s.SampleRate) / float64(s.FrameSize)
}

// BinFrequency returns the centre frequency of bin i in Hz
func (s Spectrum) BinFrequency(i int) float64 {
	return float64(i) * s.Resolution()
}

// Clone returns a deep copy
func (s Spectrum) Clone() Spectrum {
	out := s
	out.Magnitudes = make([]float64, len(s.Magnitudes))
	copy(out.Magnitudes, s.Magnitudes)
	return out
}

// Analyzer turns time-domain frames of a fixed size into dB spectra.
// Magnitudes are scaled so a full-scale sinusoid reads close to 0 dB.
type Analyzer struct {
	fft        *FFT
	sampleRate int
	frameSize  int
	floorDB    float64
	scale      float64
	magnitudes []float64
	logger     logging.Logger
}

// NewAnalyzer creates an analyzer. windowGain is the coherent gain of the
// window applied upstream (1 for none).
func NewAnalyzer(sampleRate, frameSize int, floorDB, windowGain float64, logger logging.Logger) (*Analyzer, error) {
	if !common.IsPowerOfTwo(frameSize) || frameSize < 4 {
		return nil, fmt.Errorf("frame size %d: %w", frameSize, ErrFrameSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if windowGain <= 0 {
		windowGain = 1
	}

	logger = logging.OrGlobal(logger).WithFields(logging.Fields{
		"component":   "spectral_analyzer",
		"sample_rate": sampleRate,
		"frame_size":  frameSize,
	})
	logger.Debug("spectral analyzer ready", logging.Fields{
		"resolution_hz": float64(sampleRate) / float64(frameSize),
		"floor_db":      floorDB,
	})

	return &Analyzer{
		fft:        NewFFT(frameSize),
		sampleRate: sampleRate,
		frameSize:  frameSize,
		floorDB:    floorDB,
		scale:      2.0 / (float64(frameSize) * windowGain),
		magnitudes: make([]float64, frameSize/2),
		logger:     logger,
	}, nil
}

// Analyze returns the dB spectrum of frame. The result owns its slice.
func (a *Analyzer) Analyze(frame []float64) (Spectrum, error) {
	if a.fft == nil {
		return Spectrum{}, errors.New("spectral analyzer is closed")
	}
	if len(frame) != a.frameSize {
		return Spectrum{}, fmt.Errorf("got %d samples, want %d: %w", len(frame), a.frameSize, ErrFrameSize)
	}

	a.fft.OneSidedMagnitude(frame, a.magnitudes)

	out := make([]float64, len(a.magnitudes))
	for i, mag := range a.magnitudes {
		out[i] = common.AmplitudeToDB(mag*a.scale, a.floorDB)
	}

	return Spectrum{
		Magnitudes: out,
		SampleRate: a.sampleRate,
		FrameSize:  a.frameSize,
	}, nil
}

// Resolution returns the bin width in Hz
func (a *Analyzer) Resolution() float64 {
	return float64(a.sampleRate) / float64(a.frameSize)
}

// FrameSize returns the configured buffer size
func (a *Analyzer) FrameSize() int {
	return a.frameSize
}

// SampleRate returns the configured sample rate
func (a *Analyzer) SampleRate() int {
	return a.sampleRate
}

// Close drops the transform and scratch buffers. Analyze fails afterwards.
func (a *Analyzer) Close() {
	a.fft = nil
	a.magnitudes = nil
}
