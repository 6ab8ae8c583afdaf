package common

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleRingDrainsWholeFramesInOrder(t *testing.T) {
	ring := NewSampleRing(8)
	frame := make([]float64, 4)

	ring.Write([]float64{1, 2, 3})
	assert.False(t, ring.DrainFrame(frame), "partial frame must not drain")
	assert.Equal(t, 3, ring.Available())

	ring.Write([]float64{4, 5})
	require.True(t, ring.DrainFrame(frame))
	assert.Equal(t, []float64{1, 2, 3, 4}, frame)
	assert.Equal(t, 1, ring.Available())
}

func TestSampleRingWrapAround(t *testing.T) {
	ring := NewSampleRing(5)
	frame := make([]float64, 3)

	ring.Write([]float64{1, 2, 3, 4})
	require.True(t, ring.DrainFrame(frame))
	ring.Write([]float64{5, 6, 7})
	require.True(t, ring.DrainFrame(frame))

	assert.Equal(t, []float64{4, 5, 6}, frame)
}

func TestSampleRingOverflowDropsOldest(t *testing.T) {
	ring := NewSampleRing(4)
	frame := make([]float64, 4)

	dropped := ring.Write([]float64{1, 2, 3, 4, 5, 6})

	assert.Equal(t, 2, dropped)
	assert.Equal(t, uint64(2), ring.Dropped())
	require.True(t, ring.DrainFrame(frame))
	assert.Equal(t, []float64{3, 4, 5, 6}, frame)
}

func TestSampleRingWriteChannel(t *testing.T) {
	ring := NewSampleRing(8)
	interleaved := []float32{1, -1, 2, -2, 3, -3}

	ring.WriteChannel(interleaved, 2, 1)

	frame := make([]float64, 3)
	require.True(t, ring.DrainFrame(frame))
	assert.Equal(t, []float64{-1, -2, -3}, frame)

	assert.Zero(t, ring.WriteChannel(interleaved, 2, 5))
	assert.Zero(t, ring.Available())
}

func TestSampleRingClear(t *testing.T) {
	ring := NewSampleRing(4)
	ring.Write([]float64{1, 2, 3})
	ring.Clear()

	assert.Zero(t, ring.Available())
	assert.False(t, ring.DrainFrame(make([]float64, 1)))
}

func TestSampleRingConcurrentProducerConsumer(t *testing.T) {
	const total = 4096
	ring := NewSampleRing(total)
	frame := make([]float64, 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		block := make([]float64, 16)
		for i := 0; i < total; i += len(block) {
			for j := range block {
				block[j] = float64(i + j)
			}
			ring.Write(block)
		}
	}()

	next := 0.0
	for next < total {
		if !ring.DrainFrame(frame) {
			continue
		}
		for _, v := range frame {
			require.Equal(t, next, v)
			next++
		}
	}
	wg.Wait()
}

func TestWeightedMean(t *testing.T) {
	assert.InDelta(t, 2.0, WeightedMean([]float64{1, 2, 3}, nil), 1e-12)
	assert.InDelta(t, 1.5, WeightedMean([]float64{1, 3}, []float64{3, 1}), 1e-12)
	assert.Zero(t, WeightedMean(nil, nil))
	assert.Zero(t, WeightedMean([]float64{1}, []float64{0}))
}

func TestMaxAbs(t *testing.T) {
	assert.Equal(t, 0.9, MaxAbs([]float64{0.1, -0.9, 0.5}))
	assert.Equal(t, 0.7, MaxAbs([]float64{0.7, -0.2}))
	assert.Zero(t, MaxAbs(nil))
}

func TestDecibelConversion(t *testing.T) {
	assert.InDelta(t, 0.0, AmplitudeToDB(1, -160), 1e-12)
	assert.InDelta(t, -20.0, AmplitudeToDB(0.1, -160), 1e-9)
	assert.Equal(t, -160.0, AmplitudeToDB(0, -160))
	assert.Equal(t, -160.0, AmplitudeToDB(1e-12, -160))
	assert.InDelta(t, 0.5, DBToAmplitude(AmplitudeToDB(0.5, -160)), 1e-12)
	assert.False(t, math.IsInf(AmplitudeToDB(-1, -120), 0))
}

func TestPowerOfTwo(t *testing.T) {
	assert.True(t, IsPowerOfTwo(8192))
	assert.False(t, IsPowerOfTwo(6000))
	assert.False(t, IsPowerOfTwo(0))
	assert.Equal(t, 8192, NextPowerOfTwo(6000))
	assert.Equal(t, 3, ClampInt(10, 0, 3))
	assert.Equal(t, 0.0, Clamp(-1, 0, 1))
}

func TestParabolicPeak(t *testing.T) {
	// y = -(x-0.25)^2 sampled at -1, 0, 1
	offset, value, ok := ParabolicPeak(-1.5625, -0.0625, -0.5625)
	require.True(t, ok)
	assert.InDelta(t, 0.25, offset, 1e-12)
	assert.InDelta(t, 0.0, value, 1e-12)

	offset, _, ok = ParabolicPeak(-3, -1, -3)
	require.True(t, ok)
	assert.Zero(t, offset)

	_, value, ok = ParabolicPeak(2, 2, 2)
	assert.False(t, ok)
	assert.Equal(t, 2.0, value)

	// rising edge, vertex well past the centre sample
	_, _, ok = ParabolicPeak(0, 1, 1.9)
	assert.False(t, ok)
}
