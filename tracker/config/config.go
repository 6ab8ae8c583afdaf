package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-radar/algorithms/common"
	"github.com/RyanBlaney/sonido-radar/algorithms/doppler"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid pipeline configuration")

// PipelineConfig is the full tuning surface of the analysis pipeline
type PipelineConfig struct {
	SampleRate      int     `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels        int     `json:"channels" yaml:"channels" mapstructure:"channels"`
	AnalysisChannel int     `json:"analysis_channel" yaml:"analysis_channel" mapstructure:"analysis_channel"`
	BufferSize      int     `json:"buffer_size" yaml:"buffer_size" mapstructure:"buffer_size"` // frame length, power of two
	RingFrames      int     `json:"ring_frames" yaml:"ring_frames" mapstructure:"ring_frames"` // ring capacity in frames
	FrameRate       float64 `json:"frame_rate" yaml:"frame_rate" mapstructure:"frame_rate"`    // analysis ticks per second
	Window          string  `json:"window" yaml:"window" mapstructure:"window"`
	RemoveDC        bool    `json:"remove_dc" yaml:"remove_dc" mapstructure:"remove_dc"`
	FloorDB         float64 `json:"floor_db" yaml:"floor_db" mapstructure:"floor_db"`

	Gate    GateConfig    `json:"gate" yaml:"gate" mapstructure:"gate"`
	Peaks   PeakConfig    `json:"peaks" yaml:"peaks" mapstructure:"peaks"`
	Doppler DopplerConfig `json:"doppler" yaml:"doppler" mapstructure:"doppler"`
}

// GateConfig tunes the loudness gate
type GateConfig struct {
	Lookback int     `json:"lookback" yaml:"lookback" mapstructure:"lookback"`
	Cutoff   float64 `json:"cutoff" yaml:"cutoff" mapstructure:"cutoff"` // 1.0 = 100% above baseline
}

// PeakConfig tunes peak location
type PeakConfig struct {
	WindowSize      int     `json:"window_size" yaml:"window_size" mapstructure:"window_size"`
	MinSeparationHz float64 `json:"min_separation_hz" yaml:"min_separation_hz" mapstructure:"min_separation_hz"`
}

// DopplerConfig tunes motion classification and tone emission
type DopplerConfig struct {
	Enabled            bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	EmittedFrequency   float64 `json:"emitted_frequency" yaml:"emitted_frequency" mapstructure:"emitted_frequency"`
	EnergyRatio        float64 `json:"energy_ratio" yaml:"energy_ratio" mapstructure:"energy_ratio"`
	WindowSize         int     `json:"window_size" yaml:"window_size" mapstructure:"window_size"`
	SmallDiffThreshold int     `json:"small_diff_threshold" yaml:"small_diff_threshold" mapstructure:"small_diff_threshold"`
	VoteHistory        int     `json:"vote_history" yaml:"vote_history" mapstructure:"vote_history"`
	Volume             float64 `json:"volume" yaml:"volume" mapstructure:"volume"`
}

// DefaultPipelineConfig returns defaults for a 44.1 kHz mono microphone
func DefaultPipelineConfig() *PipelineConfig {
	d := doppler.DefaultOptions()
	return &PipelineConfig{
		SampleRate:      44100,
		Channels:        1,
		AnalysisChannel: 0,
		BufferSize:      8192,
		RingFrames:      4,
		FrameRate:       20,
		Window:          "hann",
		RemoveDC:        true,
		FloorDB:         -160,
		Gate: GateConfig{
			Lookback: 45,
			Cutoff:   1.0,
		},
		Peaks: PeakConfig{
			WindowSize:      3,
			MinSeparationHz: 50,
		},
		Doppler: DopplerConfig{
			Enabled:            false,
			EmittedFrequency:   d.EmittedFrequency,
			EnergyRatio:        d.EnergyRatio,
			WindowSize:         d.WindowSize,
			SmallDiffThreshold: d.SmallDiffThreshold,
			VoteHistory:        d.VoteHistory,
			Volume:             0.5,
		},
	}
}

// DopplerOptions converts the Doppler section for the classifier
func (c *PipelineConfig) DopplerOptions() doppler.Options {
	return doppler.Options{
		EmittedFrequency:   c.Doppler.EmittedFrequency,
		EnergyRatio:        c.Doppler.EnergyRatio,
		WindowSize:         c.Doppler.WindowSize,
		SmallDiffThreshold: c.Doppler.SmallDiffThreshold,
		VoteHistory:        c.Doppler.VoteHistory,
	}
}

// Resolution returns the bin width in Hz
func (c *PipelineConfig) Resolution() float64 {
	return float64(c.SampleRate) / float64(c.BufferSize)
}

// Nyquist returns half the sample rate
func (c *PipelineConfig) Nyquist() float64 {
	return float64(c.SampleRate) / 2
}

// RingCapacity returns the ring size in samples
func (c *PipelineConfig) RingCapacity() int {
	return c.BufferSize * c.RingFrames
}

// Validate reports every problem at once, each wrapped in ErrInvalidConfig
func (c *PipelineConfig) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.SampleRate <= 0 {
		add("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels < 1 {
		add("channels must be at least 1, got %d", c.Channels)
	}
	if c.AnalysisChannel < 0 || c.AnalysisChannel >= max(c.Channels, 1) {
		add("analysis_channel %d out of range for %d channels", c.AnalysisChannel, c.Channels)
	}
	if !common.IsPowerOfTwo(c.BufferSize) || c.BufferSize < 16 {
		add("buffer_size must be a power of two >= 16, got %d", c.BufferSize)
	}
	if c.RingFrames < 1 {
		add("ring_frames must be at least 1, got %d", c.RingFrames)
	}
	if c.FrameRate <= 0 {
		add("frame_rate must be positive, got %g", c.FrameRate)
	}
	if c.Gate.Lookback < 1 {
		add("gate.lookback must be at least 1, got %d", c.Gate.Lookback)
	}
	if c.Gate.Cutoff < 0 {
		add("gate.cutoff must not be negative, got %g", c.Gate.Cutoff)
	}
	if c.Peaks.WindowSize < 3 || c.Peaks.WindowSize%2 == 0 {
		add("peaks.window_size must be odd and >= 3, got %d", c.Peaks.WindowSize)
	}
	if c.Peaks.MinSeparationHz < 0 {
		add("peaks.min_separation_hz must not be negative, got %g", c.Peaks.MinSeparationHz)
	}

	if c.Doppler.EmittedFrequency <= 0 || (c.SampleRate > 0 && c.Doppler.EmittedFrequency >= c.Nyquist()) {
		add("doppler.emitted_frequency %g must be in (0, %g)", c.Doppler.EmittedFrequency, c.Nyquist())
	}
	if c.Doppler.EnergyRatio <= 0 || c.Doppler.EnergyRatio >= 1 {
		add("doppler.energy_ratio must be in (0,1), got %g", c.Doppler.EnergyRatio)
	}
	if c.Doppler.WindowSize < 1 {
		add("doppler.window_size must be positive, got %d", c.Doppler.WindowSize)
	}
	if c.Doppler.SmallDiffThreshold < 0 {
		add("doppler.small_diff_threshold must not be negative, got %d", c.Doppler.SmallDiffThreshold)
	}
	if c.Doppler.VoteHistory < 1 {
		add("doppler.vote_history must be positive, got %d", c.Doppler.VoteHistory)
	}
	if c.Doppler.Volume < 0 || c.Doppler.Volume > 1 {
		add("doppler.volume must be in [0,1], got %g", c.Doppler.Volume)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
