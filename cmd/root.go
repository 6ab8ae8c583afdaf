package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-radar/configs"
	"github.com/RyanBlaney/sonido-radar/logging"
)

var (
	configFile   string
	logLevel     string
	logFormat    string
	outputFormat string

	appConfig *configs.Config
	logger    logging.Logger
)

// flagKeys maps flag names to their viper keys. Flags not listed bind to
// their own name with dashes replaced by underscores.
var flagKeys = map[string]string{
	"log-level":   "log_level",
	"log-format":  "log_format",
	"output":      "output_format",
	"sample-rate": "pipeline.sample_rate",
	"buffer-size": "pipeline.buffer_size",
	"frame-rate":  "pipeline.frame_rate",
	"lookback":    "pipeline.gate.lookback",
	"cutoff":      "pipeline.gate.cutoff",
	"doppler":     "pipeline.doppler.enabled",
	"emit":        "pipeline.doppler.emitted_frequency",
	"volume":      "pipeline.doppler.volume",
	"speed":       "capture.replay_speed",
	"max-freq":    "chart.max_frequency",
	"address":     "server.address",
	"endpoint":    "server.endpoint",
	"interval":    "server.interval",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sonido-radar",
	Short: "Real-time tone tracking and Doppler motion detection",
	Long: `Listens to a microphone (or replays a file) and locks onto the two
dominant tones whenever the input gets loud, holding them steady between
loud events. With Doppler enabled it also plays a reference tone and reports
whether the listener and a reflector are approaching or receding.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/sonido-radar/sonido-radar.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"output format (table, json, yaml)")
}

// initializeConfig loads configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	v, err := configs.NewViper(configFile)
	if err != nil {
		return err
	}
	if err := bindFlags(cmd, v); err != nil {
		return err
	}

	cfg, err := configs.LoadConfig(v)
	if err != nil {
		return err
	}
	if err := configs.ValidateConfig(cfg); err != nil {
		return err
	}

	l, err := configs.NewLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	appConfig = cfg
	logger = l
	logging.SetGlobalLogger(l)

	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", logging.Fields{"path": used})
	}
	return nil
}

// bindFlags binds each cobra flag to its associated viper key
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" {
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}
	})

	return lastErr
}
