package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-radar/tracker/config"
)

// addPipelineFlags registers the tuning flags shared by every command that
// runs the pipeline. Values land in viper through bindFlags.
func addPipelineFlags(cmd *cobra.Command) {
	d := config.DefaultPipelineConfig()
	f := cmd.Flags()
	f.Int("sample-rate", d.SampleRate, "sample rate in Hz")
	f.Int("buffer-size", d.BufferSize, "analysis frame length (power of two)")
	f.Float64("frame-rate", d.FrameRate, "analysis ticks per second")
	f.Int("lookback", d.Gate.Lookback, "loudness gate history length")
	f.Float64("cutoff", d.Gate.Cutoff, "loudness gate excursion threshold (1.0 = 100% above baseline)")
	f.Bool("doppler", d.Doppler.Enabled, "enable Doppler motion classification")
	f.Float64("emit", d.Doppler.EmittedFrequency, "emitted reference tone in Hz")
	f.Float64("volume", d.Doppler.Volume, "reference tone volume (0-1)")
}
