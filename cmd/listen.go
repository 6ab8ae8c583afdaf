package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-radar/algorithms/doppler"
	"github.com/RyanBlaney/sonido-radar/tracker"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Track tones from the default microphone",
	Long: `Capture from the default input device and print the locked tone pair
whenever a loud event changes it. With --doppler a reference tone is played
on the default output and the motion direction is printed as it changes.

Examples:
  # Track the two loudest tones
  sonido-radar listen

  # Doppler motion detection with a 19 kHz reference
  sonido-radar listen --doppler --emit 19000 --volume 0.3`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	addPipelineFlags(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rig, err := newLiveRig()
	if err != nil {
		return err
	}
	defer rig.Close()

	rig.OnCycle(changePrinter(os.Stdout))

	if err := rig.Start(ctx, rig.source); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "listening, press Ctrl+C to stop")

	<-ctx.Done()
	return rig.Stop()
}

// changePrinter returns an observer that prints only when the locked pair or
// the smoothed direction changes
func changePrinter(w io.Writer) func(tracker.CycleResult) {
	var lastPair uint64
	lastDir := doppler.Stationary

	return func(r tracker.CycleResult) {
		if r.PeaksUpdated && r.Peaks.Sequence != lastPair {
			lastPair = r.Peaks.Sequence
			fmt.Fprintf(w, "peaks  %s | %s\n",
				formatPeak(r.Peaks.Primary, r.Peaks.PrimaryValid),
				formatPeak(r.Peaks.Secondary, r.Peaks.SecondaryValid))
		}
		if r.Doppler != nil && r.Doppler.Smoothed != lastDir {
			lastDir = r.Doppler.Smoothed
			fmt.Fprintf(w, "motion %s (left %d, right %d)\n", lastDir, r.Doppler.Left, r.Doppler.Right)
		}
	}
}
