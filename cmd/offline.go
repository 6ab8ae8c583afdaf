package cmd

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-radar/algorithms/doppler"
	"github.com/RyanBlaney/sonido-radar/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-radar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-radar/algorithms/temporal"
	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/tracker"
	"github.com/RyanBlaney/sonido-radar/tracker/config"
)

// analysisReport summarizes one offline run
type analysisReport struct {
	Source    string                   `json:"source" yaml:"source"`
	Duration  time.Duration            `json:"duration" yaml:"duration"`
	Frames    uint64                   `json:"frames" yaml:"frames"`
	GateFires uint64                   `json:"gate_fires" yaml:"gate_fires"`
	Peaks     harmonic.TrackedPeakPair `json:"peaks" yaml:"-"`
	Primary   float64                  `json:"-" yaml:"primary_hz"`
	Secondary float64                  `json:"-" yaml:"secondary_hz"`
	Doppler   *dopplerSummary          `json:"doppler,omitempty" yaml:"doppler,omitempty"`

	levels   []float64
	snapshot *temporal.Snapshot
	spectrum spectral.Spectrum
}

type dopplerSummary struct {
	EmittedFrequency float64           `json:"emitted_frequency" yaml:"emitted_frequency"`
	Final            doppler.Direction `json:"final" yaml:"final"`
	Votes            map[string]int    `json:"votes" yaml:"votes"`
}

// analyzePCM runs the pipeline over interleaved pcm as fast as possible.
// Blocks are pushed through the same ring the live path uses.
func analyzePCM(cfg *config.PipelineConfig, pcm []float64, blockFrames int, log logging.Logger) (*analysisReport, error) {
	p, err := tracker.New(cfg, log)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	report := &analysisReport{
		Duration: time.Duration(float64(len(pcm)/cfg.Channels) / float64(cfg.SampleRate) * float64(time.Second)),
	}
	if cfg.Doppler.Enabled {
		report.Doppler = &dopplerSummary{
			EmittedFrequency: cfg.Doppler.EmittedFrequency,
			Votes:            map[string]int{},
		}
	}

	p.OnCycle(func(r tracker.CycleResult) {
		report.levels = append(report.levels, r.Gate.MaxAmplitude)
		if r.Doppler != nil && r.Doppler.Valid {
			report.Doppler.Votes[r.Doppler.Raw.String()]++
		}
	})

	if blockFrames <= 0 {
		blockFrames = cfg.BufferSize
	}
	// a block never exceeds the ring, so nothing is dropped
	blockFrames = min(blockFrames, cfg.RingCapacity())
	blockSamples := blockFrames * cfg.Channels

	block := make([]float32, blockSamples)
	for pos := 0; pos < len(pcm); pos += blockSamples {
		end := min(pos+blockSamples, len(pcm))
		out := block[:end-pos]
		for i, v := range pcm[pos:end] {
			out[i] = float32(v)
		}
		p.Write(out)
		for {
			if _, ok := p.Tick(); !ok {
				break
			}
		}
	}

	stats := p.Stats()
	if stats.DroppedSamples > 0 {
		return nil, fmt.Errorf("offline analysis dropped %d samples", stats.DroppedSamples)
	}

	report.Frames = stats.Frames
	report.GateFires = stats.GateFires
	report.Peaks = p.Peaks()
	report.Primary, report.Secondary = report.Peaks.Frequencies()
	report.snapshot = p.Snapshot()
	if spec, ok := p.Spectrum(); ok {
		report.spectrum = spec
	}
	if report.Doppler != nil {
		report.Doppler.Final = p.Direction()
	}
	return report, nil
}
