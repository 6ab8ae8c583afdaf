package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-radar/logging"
)

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64      `json:"-"` // interleaved when Channels > 1
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"`
	Duration   time.Duration  `json:"duration"`
	Source     string         `json:"source,omitempty"`
	Input      *AudioMetadata `json:"input,omitempty"`
}

// AudioMetadata is what ffprobe reports about the input
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate,omitempty"`
	Format     string  `json:"format,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate" mapstructure:"target_sample_rate"`
	TargetChannels   int           `json:"target_channels" yaml:"target_channels" mapstructure:"target_channels"`
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration" mapstructure:"max_duration"`
	FFmpegPath       string        `json:"ffmpeg_path" yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path" yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 44100,
		TargetChannels:   1,
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		Timeout:          60 * time.Second,
	}
}

// Decoder turns audio files into float PCM through ffmpeg
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a decoder; a nil config uses the defaults
func NewDecoder(config *DecoderConfig, logger logging.Logger) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{"component": "audio_decoder"}),
	}
}

// Validate checks the configuration without touching the filesystem
func (d *Decoder) Validate() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}
	if d.config.TargetChannels <= 0 || d.config.TargetChannels > 8 {
		return fmt.Errorf("target channels must be between 1 and 8: %d", d.config.TargetChannels)
	}
	if d.config.FFmpegPath == "" || d.config.FFprobePath == "" {
		return errors.New("ffmpeg and ffprobe paths must be set")
	}
	return nil
}

// DecodeFile probes and decodes a file
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	metadata, err := d.probe(ctx, filename, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", filename, err)
	}

	args := append([]string{"-i", filename}, d.buildFFmpegArgs()...)
	output, err := d.run(ctx, d.config.FFmpegPath, args, nil)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	return d.processOutput(output, metadata, filename)
}

// DecodeReader decodes audio piped through stdin
func (d *Decoder) DecodeReader(ctx context.Context, r io.Reader) (*AudioData, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	metadata, err := d.probe(ctx, "pipe:0", data)
	if err != nil {
		return nil, fmt.Errorf("failed to probe input: %w", err)
	}

	args := append([]string{"-i", "pipe:0"}, d.buildFFmpegArgs()...)
	output, err := d.run(ctx, d.config.FFmpegPath, args, data)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	return d.processOutput(output, metadata, "stdin")
}

func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func (d *Decoder) run(ctx context.Context, bin string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	d.logger.Debug("running command", logging.Fields{
		"bin":  bin,
		"args": strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("%w, stderr: %s", err, strings.TrimSpace(string(exitError.Stderr)))
		}
		return nil, err
	}
	return output, nil
}

func (d *Decoder) probe(ctx context.Context, input string, stdin []byte) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		input,
	}
	output, err := d.run(ctx, d.config.FFprobePath, args, stdin)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, errors.New("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	// ffprobe reports numbers as strings; missing ones stay zero
	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildFFmpegArgs builds the output half of the ffmpeg command line
func (d *Decoder) buildFFmpegArgs() []string {
	args := []string{
		"-f", "f64le",
		"-ac", strconv.Itoa(d.config.TargetChannels),
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}
	return append(args, "-v", "error", "pipe:1")
}

func (d *Decoder) processOutput(output []byte, input *AudioMetadata, source string) (*AudioData, error) {
	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, errors.New("no audio samples decoded")
	}

	frames := len(samples) / d.config.TargetChannels
	duration := time.Duration(frames) * time.Second / time.Duration(d.config.TargetSampleRate)

	d.logger.Debug("decode completed", logging.Fields{
		"source":            source,
		"input_sample_rate": input.SampleRate,
		"input_codec":       input.Codec,
		"output_samples":    len(samples),
		"output_duration":   duration.Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   d.config.TargetChannels,
		Duration:   duration,
		Source:     source,
		Input:      input,
	}, nil
}

// bytesToFloat64 converts little-endian float64 bytes, dropping a trailing
// partial sample
func bytesToFloat64(data []byte) []float64 {
	count := len(data) / 8
	if count == 0 {
		return nil
	}

	samples := make([]float64, count)
	for i := range count {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return samples
}

// CheckAvailability runs `-version` on both binaries
func (d *Decoder) CheckAvailability(ctx context.Context) error {
	for _, bin := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if err := exec.CommandContext(ctx, bin, "-version").Run(); err != nil {
			return fmt.Errorf("%s not available: %w", bin, err)
		}
	}
	return nil
}
