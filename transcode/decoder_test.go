package transcode

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-radar/logging"
)

func TestParseFFprobeOutput(t *testing.T) {
	out := []byte(`{"streams":[{"codec_type":"audio","codec_name":"flac","sample_rate":"48000",
		"channels":2,"duration":"3.5","bit_rate":"900000","codec_long_name":"FLAC"}]}`)

	meta, err := parseFFprobeOutput(out)
	require.NoError(t, err)

	assert.Equal(t, 48000, meta.SampleRate)
	assert.Equal(t, 2, meta.Channels)
	assert.Equal(t, "flac", meta.Codec)
	assert.Equal(t, 3.5, meta.Duration)
	assert.Equal(t, 900000, meta.Bitrate)
}

func TestParseFFprobeOutputErrors(t *testing.T) {
	cases := map[string]string{
		"not json":   `nope`,
		"no streams": `{"streams":[]}`,
		"video":      `{"streams":[{"codec_type":"video","channels":1}]}`,
		"channels":   `{"streams":[{"codec_type":"audio","channels":0}]}`,
	}
	for name, in := range cases {
		_, err := parseFFprobeOutput([]byte(in))
		assert.Error(t, err, name)
	}
}

func TestBuildFFmpegArgs(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.MaxDuration = 90 * time.Second
	d := NewDecoder(cfg, &logging.NoOpLogger{})

	args := d.buildFFmpegArgs()

	assert.Equal(t, []string{
		"-f", "f64le", "-ac", "1", "-ar", "44100", "-t", "90.00", "-v", "error", "pipe:1",
	}, args)
}

func TestBytesToFloat64(t *testing.T) {
	data := make([]byte, 8*3+5)
	for i, v := range []float64{0.5, -1, math.Pi} {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}

	assert.Equal(t, []float64{0.5, -1, math.Pi}, bytesToFloat64(data))
	assert.Nil(t, bytesToFloat64([]byte{1, 2}))
}

func TestDecodeFileMissingBinary(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.FFprobePath = "/nonexistent/ffprobe"
	d := NewDecoder(cfg, &logging.NoOpLogger{})

	_, err := d.DecodeFile(context.Background(), "x.wav")
	assert.Error(t, err)
	assert.Error(t, d.CheckAvailability(context.Background()))
}

func TestValidate(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.TargetChannels = 0
	assert.Error(t, NewDecoder(cfg, nil).Validate())
	assert.NoError(t, NewDecoder(nil, nil).Validate())
}
