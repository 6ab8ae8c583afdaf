package configs

import (
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-radar/server"
	"github.com/RyanBlaney/sonido-radar/tracker/config"
	"github.com/RyanBlaney/sonido-radar/transcode"
)

// setDefaults sets default configuration values for all components
func setDefaults(v *viper.Viper) {
	// Application defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("output_format", "table")

	// Pipeline defaults
	p := config.DefaultPipelineConfig()
	v.SetDefault("pipeline.sample_rate", p.SampleRate)
	v.SetDefault("pipeline.channels", p.Channels)
	v.SetDefault("pipeline.analysis_channel", p.AnalysisChannel)
	v.SetDefault("pipeline.buffer_size", p.BufferSize)
	v.SetDefault("pipeline.ring_frames", p.RingFrames)
	v.SetDefault("pipeline.frame_rate", p.FrameRate)
	v.SetDefault("pipeline.window", p.Window)
	v.SetDefault("pipeline.remove_dc", p.RemoveDC)
	v.SetDefault("pipeline.floor_db", p.FloorDB)
	v.SetDefault("pipeline.gate.lookback", p.Gate.Lookback)
	v.SetDefault("pipeline.gate.cutoff", p.Gate.Cutoff)
	v.SetDefault("pipeline.peaks.window_size", p.Peaks.WindowSize)
	v.SetDefault("pipeline.peaks.min_separation_hz", p.Peaks.MinSeparationHz)
	v.SetDefault("pipeline.doppler.enabled", p.Doppler.Enabled)
	v.SetDefault("pipeline.doppler.emitted_frequency", p.Doppler.EmittedFrequency)
	v.SetDefault("pipeline.doppler.energy_ratio", p.Doppler.EnergyRatio)
	v.SetDefault("pipeline.doppler.window_size", p.Doppler.WindowSize)
	v.SetDefault("pipeline.doppler.small_diff_threshold", p.Doppler.SmallDiffThreshold)
	v.SetDefault("pipeline.doppler.vote_history", p.Doppler.VoteHistory)
	v.SetDefault("pipeline.doppler.volume", p.Doppler.Volume)

	// Capture defaults
	v.SetDefault("capture.frames_per_buffer", 1024)
	v.SetDefault("capture.output_channels", 1)
	v.SetDefault("capture.replay_block", 1024)
	v.SetDefault("capture.replay_speed", 0.0)

	// Decoder defaults
	d := transcode.DefaultDecoderConfig()
	v.SetDefault("decoder.max_duration", d.MaxDuration)
	v.SetDefault("decoder.ffmpeg_path", d.FFmpegPath)
	v.SetDefault("decoder.ffprobe_path", d.FFprobePath)
	v.SetDefault("decoder.timeout", d.Timeout)

	// Server defaults
	s := server.DefaultConfig()
	v.SetDefault("server.address", s.Address)
	v.SetDefault("server.endpoint", s.Endpoint)
	v.SetDefault("server.interval", s.Interval)
	v.SetDefault("server.send_buffer", s.SendBuffer)
	v.SetDefault("server.max_connections", s.MaxConnections)
	v.SetDefault("server.write_timeout", s.WriteTimeout)
	v.SetDefault("server.allowed_origins", s.AllowedOrigins)

	// Chart defaults
	v.SetDefault("chart.max_frequency", 20000.0)
	v.SetDefault("chart.width", "1200px")
	v.SetDefault("chart.height", "500px")
}

// GetDefaultConfig returns the configuration viper produces with no file,
// environment or flags
func GetDefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		OutputFormat: "table",
		Pipeline:     *config.DefaultPipelineConfig(),
		Capture: CaptureConfig{
			FramesPerBuffer: 1024,
			OutputChannels:  1,
			ReplayBlock:     1024,
		},
		Decoder: *transcode.DefaultDecoderConfig(),
		Server:  server.DefaultConfig(),
		Chart: ChartConfig{
			MaxFrequency: 20000,
			Width:        "1200px",
			Height:       "500px",
		},
	}
}
