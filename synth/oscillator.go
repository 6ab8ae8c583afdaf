package synth

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Oscillator is a phase-continuous sine generator. Frequency and volume may be
// changed from any goroutine while one goroutine (usually the audio callback)
// pulls samples.
type Oscillator struct {
	sampleRate float64
	frequency  atomic.Uint64 // float64 bits
	volume     atomic.Uint64 // float64 bits
	phase      float64       // radians, owned by the pulling goroutine
}

// NewOscillator creates an oscillator. Volume is clamped to [0,1].
func NewOscillator(sampleRate int, frequency, volume float64) (*Oscillator, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	o := &Oscillator{sampleRate: float64(sampleRate)}
	if err := o.SetFrequency(frequency); err != nil {
		return nil, err
	}
	o.SetVolume(volume)
	return o, nil
}

// SetFrequency changes the tone. It must lie below Nyquist.
func (o *Oscillator) SetFrequency(hz float64) error {
	if hz <= 0 || hz >= o.sampleRate/2 || math.IsNaN(hz) {
		return fmt.Errorf("frequency %g Hz outside (0, %g)", hz, o.sampleRate/2)
	}
	o.frequency.Store(math.Float64bits(hz))
	return nil
}

// Frequency returns the tone in Hz
func (o *Oscillator) Frequency() float64 {
	return math.Float64frombits(o.frequency.Load())
}

// SetVolume sets the linear amplitude, clamped to [0,1]
func (o *Oscillator) SetVolume(v float64) {
	switch {
	case v < 0 || math.IsNaN(v):
		v = 0
	case v > 1:
		v = 1
	}
	o.volume.Store(math.Float64bits(v))
}

// Volume returns the linear amplitude
func (o *Oscillator) Volume() float64 {
	return math.Float64frombits(o.volume.Load())
}

func (o *Oscillator) next(step, amp float64) float64 {
	s := amp * math.Sin(o.phase)
	o.phase += step
	if o.phase >= 2*math.Pi {
		o.phase -= 2 * math.Pi
	}
	return s
}

// Fill writes interleaved frames into out, the same sample on every channel
func (o *Oscillator) Fill(out []float32, channels int) {
	if channels < 1 {
		channels = 1
	}
	step := 2 * math.Pi * o.Frequency() / o.sampleRate
	amp := o.Volume()
	for i := 0; i+channels <= len(out); i += channels {
		s := float32(o.next(step, amp))
		for c := range channels {
			out[i+c] = s
		}
	}
}

// Generate returns n mono samples
func (o *Oscillator) Generate(n int) []float64 {
	out := make([]float64, n)
	step := 2 * math.Pi * o.Frequency() / o.sampleRate
	amp := o.Volume()
	for i := range out {
		out[i] = o.next(step, amp)
	}
	return out
}

// Mix sums tones of the given amplitudes into n samples. Handy for building
// multi-tone test signals.
func Mix(sampleRate, n int, tones map[float64]float64) []float64 {
	out := make([]float64, n)
	for freq, amp := range tones {
		step := 2 * math.Pi * freq / float64(sampleRate)
		for i := range out {
			out[i] += amp * math.Sin(step*float64(i))
		}
	}
	return out
}

// Reset restarts the phase at zero
func (o *Oscillator) Reset() {
	o.phase = 0
}
