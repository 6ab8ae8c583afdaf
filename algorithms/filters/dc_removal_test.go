package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDCRemovalKillsOffset(t *testing.T) {
	dc := NewDCRemovalWithCutoff(44100, 10)
	frame := make([]float64, 44100)
	for i := range frame {
		frame[i] = 0.3
	}

	dc.ProcessInPlace(frame)

	assert.Less(t, math.Abs(frame[len(frame)-1]), 1e-6)
}

func TestDCRemovalPassesTone(t *testing.T) {
	const sampleRate = 44100
	dc := NewDCRemovalWithCutoff(sampleRate, 10)

	peak := 0.0
	for n := range sampleRate {
		y := dc.Process(0.2 + math.Sin(2*math.Pi*1000*float64(n)/sampleRate))
		if n > sampleRate/2 {
			peak = math.Max(peak, math.Abs(y))
		}
	}

	assert.InDelta(t, 1.0, peak, 0.02)
}

func TestDCRemovalCutoffRoundTrip(t *testing.T) {
	dc := NewDCRemovalWithCutoff(48000, 20)
	assert.InDelta(t, 20.0, dc.GetCutoffFrequency(48000), 1e-9)

	assert.Equal(t, 0.001, NewDCRemovalWithCutoff(100, 1000).GetPoleLocation())
	assert.Equal(t, 0.995, NewDCRemovalWithCutoff(0, 10).GetPoleLocation())
}

func TestDCRemovalReset(t *testing.T) {
	dc := NewDCRemoval()
	dc.Process(1)
	dc.Reset()
	assert.Equal(t, 0.5, dc.Process(0.5))
}
