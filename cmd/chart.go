package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/visualize"
)

var chartOut string

var chartCmd = &cobra.Command{
	Use:   "chart [file]",
	Short: "Render the last frozen spectrum of a file as HTML",
	Long: `Analyze an audio file, then render the spectrum of the last loud frame
with the locked tones marked, together with the per-frame peak amplitude the
loudness gate saw.

Examples:
  sonido-radar chart chirp.wav --out chirp.html
  sonido-radar chart --max-freq 5000 piano.flac`,
	Args: cobra.ExactArgs(1),
	RunE: runChart,
}

func init() {
	rootCmd.AddCommand(chartCmd)
	addPipelineFlags(chartCmd)
	chartCmd.Flags().StringVar(&chartOut, "out", "spectrum.html", "output HTML file")
	chartCmd.Flags().Float64("max-freq", 20000, "highest frequency shown in Hz (0 = Nyquist)")
}

func runChart(cmd *cobra.Command, args []string) error {
	report, err := analyzeFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	spec := report.spectrum
	subtitle := "last analyzed frame (the gate never fired)"
	if report.snapshot != nil {
		spec = report.snapshot.Spectrum
		subtitle = fmt.Sprintf("frozen frame #%d, peak amplitude %.3f", report.snapshot.Sequence, report.snapshot.Amplitude)
	} else {
		logger.Warn("no loud frame found, charting the last frame instead", logging.Fields{"file": args[0]})
	}

	f, err := os.Create(chartOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", chartOut, err)
	}
	defer f.Close()

	opts := visualize.ChartOptions{
		Title:        args[0],
		Subtitle:     subtitle,
		MaxFrequency: appConfig.Chart.MaxFrequency,
		Width:        appConfig.Chart.Width,
		Height:       appConfig.Chart.Height,
	}
	if err := visualize.RenderReport(f, spec, report.Peaks, report.levels, opts); err != nil {
		return err
	}

	logger.Info("chart written", logging.Fields{"path": chartOut})
	return nil
}
