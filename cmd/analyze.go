package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/transcode"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Run the tracker over an audio file",
	Long: `Decode an audio file with FFmpeg and run it through the analysis
pipeline as fast as possible. Reports the final locked tone pair, how often
the loudness gate fired and, with --doppler, the motion votes.

Examples:
  # Analyze a recording
  sonido-radar analyze chirp.wav

  # Doppler summary as JSON
  sonido-radar analyze --doppler --emit 18000 -o json sweep.flac`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	addPipelineFlags(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	report, err := analyzeFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeReport(os.Stdout, report, appConfig.OutputFormat)
}

func analyzeFile(ctx context.Context, path string) (*analysisReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	decoder := transcode.NewDecoder(&appConfig.Decoder, logger)
	if err := decoder.Validate(); err != nil {
		return nil, err
	}

	audio, err := decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	logger.Info("decoded audio", logging.Fields{
		"file":        path,
		"samples":     len(audio.PCM),
		"sample_rate": audio.SampleRate,
		"duration":    audio.Duration.String(),
	})

	report, err := analyzePCM(&appConfig.Pipeline, audio.PCM, appConfig.Capture.ReplayBlock, logger)
	if err != nil {
		return nil, err
	}
	report.Source = path
	return report, nil
}
