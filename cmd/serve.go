package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Track tones live and stream state over WebSocket",
	Long: `Capture from the default input device like listen, and publish the
tracker state as JSON to every client connected to the WebSocket endpoint.
Clients may send {"type":"set_emitted_frequency","frequency":18500} to
retune the Doppler reference tone. GET /state returns the latest state.

Examples:
  sonido-radar serve --address :9000
  sonido-radar serve --doppler --interval 50ms`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addPipelineFlags(serveCmd)

	d := server.DefaultConfig()
	serveCmd.Flags().String("address", d.Address, "listen address")
	serveCmd.Flags().String("endpoint", d.Endpoint, "WebSocket path")
	serveCmd.Flags().Duration("interval", d.Interval, "push interval")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rig, err := newLiveRig()
	if err != nil {
		return err
	}
	defer rig.Close()

	feed, err := server.NewFeed(appConfig.Server, rig, logger)
	if err != nil {
		return err
	}

	if err := rig.Start(ctx, rig.source); err != nil {
		return err
	}
	logger.Info("serving tracker state", logging.Fields{
		"address":  appConfig.Server.Address,
		"endpoint": appConfig.Server.Endpoint,
	})

	if err := feed.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return rig.Stop()
}
