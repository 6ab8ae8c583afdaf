package configs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/server"
	"github.com/RyanBlaney/sonido-radar/tracker/config"
	"github.com/RyanBlaney/sonido-radar/transcode"
)

const (
	AppName   = "sonido-radar"
	EnvPrefix = "SONIDO_RADAR"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string `mapstructure:"log_format" yaml:"log_format"` // text or json
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`

	Pipeline config.PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline"`
	Capture  CaptureConfig           `mapstructure:"capture" yaml:"capture"`
	Decoder  transcode.DecoderConfig `mapstructure:"decoder" yaml:"decoder"`
	Server   server.Config           `mapstructure:"server" yaml:"server"`
	Chart    ChartConfig             `mapstructure:"chart" yaml:"chart"`
}

// CaptureConfig contains device and replay settings
type CaptureConfig struct {
	FramesPerBuffer int     `mapstructure:"frames_per_buffer" yaml:"frames_per_buffer"`
	OutputChannels  int     `mapstructure:"output_channels" yaml:"output_channels"`
	ReplayBlock     int     `mapstructure:"replay_block" yaml:"replay_block"`
	ReplaySpeed     float64 `mapstructure:"replay_speed" yaml:"replay_speed"`
}

// ChartConfig contains chart rendering settings
type ChartConfig struct {
	MaxFrequency float64 `mapstructure:"max_frequency" yaml:"max_frequency"`
	Width        string  `mapstructure:"width" yaml:"width"`
	Height       string  `mapstructure:"height" yaml:"height"`
}

// NewViper returns a viper instance that reads configFile (or searches the
// standard locations), SONIDO_RADAR_* environment variables and defaults
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", AppName))
		}
		v.AddConfigPath(filepath.Join("/etc", AppName))
		v.AddConfigPath("./configs")
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// a missing file is fine unless it was asked for explicitly
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// LoadConfig loads configuration from viper
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	// decoded files always come out in the pipeline's format
	cfg.Decoder.TargetSampleRate = cfg.Pipeline.SampleRate
	cfg.Decoder.TargetChannels = cfg.Pipeline.Channels

	return cfg, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", cfg.LogFormat)
	}

	switch cfg.OutputFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("output format must be table, json or yaml, got %q", cfg.OutputFormat)
	}

	if err := cfg.Pipeline.Validate(); err != nil {
		return err
	}

	if cfg.Decoder.Timeout <= 0 {
		return fmt.Errorf("decoder timeout must be positive")
	}

	if cfg.Capture.FramesPerBuffer <= 0 {
		return fmt.Errorf("capture frames per buffer must be positive")
	}
	if cfg.Capture.ReplaySpeed < 0 {
		return fmt.Errorf("replay speed cannot be negative")
	}

	if cfg.Server.Interval <= 0 {
		return fmt.Errorf("server interval must be positive")
	}

	return nil
}

// NewLogger builds the logger the configuration asks for
func NewLogger(cfg *Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.LogFormat == "json" {
		return logging.NewZapLogger(out, level), nil
	}

	logger := logging.NewDefaultLogger()
	logger.SetLevel(level)
	return logger, nil
}

// Dump writes cfg as YAML
func Dump(cfg *Config, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}
