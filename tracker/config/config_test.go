package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPipelineConfigIsValid(t *testing.T) {
	cfg := DefaultPipelineConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8192, cfg.BufferSize)
	assert.Equal(t, 45, cfg.Gate.Lookback)
	assert.Equal(t, 1.0, cfg.Gate.Cutoff)
	assert.Equal(t, 3, cfg.Peaks.WindowSize)
	assert.Equal(t, 50.0, cfg.Peaks.MinSeparationHz)
	assert.Equal(t, 0.85, cfg.Doppler.EnergyRatio)
	assert.Equal(t, 5, cfg.Doppler.VoteHistory)
	assert.Equal(t, 20.0, cfg.FrameRate)
	assert.Equal(t, 8192*4, cfg.RingCapacity())
	assert.InDelta(t, 5.383, cfg.Resolution(), 1e-3)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PipelineConfig)
		field  string
	}{
		{"buffer not power of two", func(c *PipelineConfig) { c.BufferSize = 6000 }, "buffer_size"},
		{"zero lookback", func(c *PipelineConfig) { c.Gate.Lookback = 0 }, "gate.lookback"},
		{"even peak window", func(c *PipelineConfig) { c.Peaks.WindowSize = 4 }, "peaks.window_size"},
		{"analysis channel out of range", func(c *PipelineConfig) { c.AnalysisChannel = 1 }, "analysis_channel"},
		{"emitted above nyquist", func(c *PipelineConfig) { c.Doppler.EmittedFrequency = 22050 }, "doppler.emitted_frequency"},
		{"ratio of one", func(c *PipelineConfig) { c.Doppler.EnergyRatio = 1 }, "doppler.energy_ratio"},
		{"no votes", func(c *PipelineConfig) { c.Doppler.VoteHistory = 0 }, "doppler.vote_history"},
		{"zero frame rate", func(c *PipelineConfig) { c.FrameRate = 0 }, "frame_rate"},
		{"zero sample rate", func(c *PipelineConfig) { c.SampleRate = 0 }, "sample_rate"},
		{"loud volume", func(c *PipelineConfig) { c.Doppler.Volume = 2 }, "doppler.volume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateStereoSecondChannel(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.Channels = 2
	cfg.AnalysisChannel = 1
	assert.NoError(t, cfg.Validate())
}

func TestDopplerOptions(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.Doppler.EmittedFrequency = 19000
	opts := cfg.DopplerOptions()
	assert.Equal(t, 19000.0, opts.EmittedFrequency)
	assert.Equal(t, cfg.Doppler.WindowSize, opts.WindowSize)
}
