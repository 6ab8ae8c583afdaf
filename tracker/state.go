package tracker

import (
	"time"

	"github.com/RyanBlaney/sonido-radar/algorithms/doppler"
	"github.com/RyanBlaney/sonido-radar/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-radar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-radar/algorithms/temporal"
)

// CycleResult is everything one analysis cycle produced
type CycleResult struct {
	Sequence     uint64                   `json:"sequence"`
	Gate         temporal.GateResult      `json:"gate"`
	Peaks        harmonic.TrackedPeakPair `json:"peaks"`
	PeaksUpdated bool                     `json:"peaks_updated"`
	Doppler      *doppler.Reading         `json:"doppler,omitempty"`
	Spectrum     spectral.Spectrum        `json:"-"`
}

// Stats are running counters
type Stats struct {
	Frames         uint64 `json:"frames"`
	GateFires      uint64 `json:"gate_fires"`
	Ticks          uint64 `json:"ticks"`
	IdleTicks      uint64 `json:"idle_ticks"`
	DroppedSamples uint64 `json:"dropped_samples"`
}

// State is the published view for presentation layers. Each value is a
// consistent copy taken at the end of one cycle.
type State struct {
	Sequence         uint64                   `json:"sequence"`
	Peaks            harmonic.TrackedPeakPair `json:"peaks"`
	Direction        doppler.Direction        `json:"direction"`
	DopplerEnabled   bool                     `json:"doppler_enabled"`
	EmittedFrequency float64                  `json:"emitted_frequency,omitempty"`
	Gate             temporal.GateResult      `json:"gate"`
	Stats            Stats                    `json:"stats"`
	UpdatedAt        time.Time                `json:"updated_at"`
}
