package common

import (
	"sync"
)

// SampleRing is a fixed-capacity FIFO of samples shared between one producer
// (the capture callback) and one consumer (the analysis tick). Writes never
// block: when the ring is full the oldest samples are overwritten and counted
// as dropped. Reads only ever hand out whole frames.
type SampleRing struct {
	mu       sync.Mutex
	buffer   []float64
	size     int
	writePos int
	readPos  int
	count    int
	dropped  uint64
}

// NewSampleRing creates a ring holding at most size samples
func NewSampleRing(size int) *SampleRing {
	if size < 1 {
		size = 1
	}
	return &SampleRing{
		buffer: make([]float64, size),
		size:   size,
	}
}

// push appends one sample; caller holds the lock
func (r *SampleRing) push(sample float64) {
	r.buffer[r.writePos] = sample
	r.writePos = (r.writePos + 1) % r.size
	if r.count < r.size {
		r.count++
		return
	}
	// full, overwrite oldest
	r.readPos = (r.readPos + 1) % r.size
	r.dropped++
}

// Write appends samples and returns how many older samples were overwritten
func (r *SampleRing) Write(data []float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.dropped
	for _, sample := range data {
		r.push(sample)
	}
	return int(r.dropped - before)
}

// WriteChannel appends one channel of an interleaved block. It is meant to be
// called straight from an audio callback so it does not allocate.
func (r *SampleRing) WriteChannel(interleaved []float32, channels, channel int) int {
	if channels < 1 {
		channels = 1
	}
	if channel < 0 || channel >= channels {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.dropped
	for i := channel; i < len(interleaved); i += channels {
		r.push(float64(interleaved[i]))
	}
	return int(r.dropped - before)
}

// DrainFrame fills dst with the oldest len(dst) samples and consumes them.
// If fewer than len(dst) samples are buffered nothing is consumed and it
// returns false.
func (r *SampleRing) DrainFrame(dst []float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(dst)
	if n == 0 || r.count < n {
		return false
	}

	first := min(n, r.size-r.readPos)
	copy(dst, r.buffer[r.readPos:r.readPos+first])
	if first < n {
		copy(dst[first:], r.buffer[:n-first])
	}

	r.readPos = (r.readPos + n) % r.size
	r.count -= n
	return true
}

// Available returns number of samples available for reading
func (r *SampleRing) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Capacity returns the ring size in samples
func (r *SampleRing) Capacity() int {
	return r.size
}

// Dropped returns the total number of samples overwritten before being read
func (r *SampleRing) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Clear empties the ring. The dropped counter is kept.
func (r *SampleRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writePos = 0
	r.readPos = 0
	r.count = 0
}
