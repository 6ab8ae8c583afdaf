// Package capture delivers blocks of interleaved float32 samples to the
// analysis pipeline, from a sound card or from decoded audio.
package capture

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned when starting a source that was stopped
var ErrSourceClosed = errors.New("capture source closed")

// ErrAlreadyStarted is returned when starting a running source
var ErrAlreadyStarted = errors.New("capture source already started")

// Sink receives one block of interleaved samples. It is called from the
// source's own goroutine (for PortAudio, the real-time callback), must not
// block, and must not retain samples after returning.
type Sink func(samples []float32)

// Source produces audio blocks until stopped or its context is done
type Source interface {
	Start(ctx context.Context, sink Sink) error
	Stop() error
	SampleRate() int
	Channels() int
}
