package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-radar/algorithms/doppler"
	"github.com/RyanBlaney/sonido-radar/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-radar/logging"
	"github.com/RyanBlaney/sonido-radar/synth"
	"github.com/RyanBlaney/sonido-radar/tracker"
	"github.com/RyanBlaney/sonido-radar/tracker/config"
)

func offlineConfig() *config.PipelineConfig {
	cfg := config.DefaultPipelineConfig()
	cfg.SampleRate = 8000
	cfg.BufferSize = 1024
	cfg.Gate.Lookback = 5
	cfg.Doppler.EmittedFrequency = 2000
	return cfg
}

func recording() []float64 {
	var pcm []float64
	for range 6 {
		pcm = append(pcm, synth.Mix(8000, 1024, map[float64]float64{500: 0.01})...)
	}
	pcm = append(pcm, synth.Mix(8000, 1024, map[float64]float64{440: 0.4, 880: 0.3})...)
	pcm = append(pcm, make([]float64, 3*1024)...)
	return pcm
}

func TestAnalyzePCM(t *testing.T) {
	report, err := analyzePCM(offlineConfig(), recording(), 256, &logging.NoOpLogger{})
	require.NoError(t, err)

	assert.Equal(t, uint64(10), report.Frames)
	assert.Equal(t, uint64(1), report.GateFires)
	assert.InDelta(t, 440, report.Primary, 4)
	assert.InDelta(t, 880, report.Secondary, 4)
	assert.Len(t, report.levels, 10)
	require.NotNil(t, report.snapshot)
	assert.Nil(t, report.Doppler)
	assert.InDelta(t, 1.28, report.Duration.Seconds(), 1e-9)
}

func TestAnalyzePCMDoppler(t *testing.T) {
	cfg := offlineConfig()
	cfg.Doppler.Enabled = true

	pcm := make([]float64, 0, 4*1024)
	for range 4 {
		pcm = append(pcm, synth.Mix(8000, 1024, map[float64]float64{2000: 0.5})...)
	}

	report, err := analyzePCM(cfg, pcm, 0, nil)
	require.NoError(t, err)
	require.NotNil(t, report.Doppler)
	assert.Equal(t, doppler.Stationary, report.Doppler.Final)
	assert.Equal(t, 4, report.Doppler.Votes["stationary"])
}

func TestAnalyzePCMIgnoresTrailingPartialFrame(t *testing.T) {
	report, err := analyzePCM(offlineConfig(), make([]float64, 1500), 512, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.Frames)
}

func TestWriteReportFormats(t *testing.T) {
	report := &analysisReport{
		Source: "tones.wav",
		Frames: 10,
		Peaks: harmonic.TrackedPeakPair{
			Primary:      harmonic.SpectralPeak{Frequency: 440.12, Magnitude: -8},
			PrimaryValid: true,
		},
		Primary: 440.12,
	}

	var table bytes.Buffer
	require.NoError(t, writeReport(&table, report, "table"))
	assert.Contains(t, table.String(), "440.12 Hz")
	assert.Contains(t, table.String(), "tones.wav")

	var js bytes.Buffer
	require.NoError(t, writeReport(&js, report, "json"))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "tones.wav", decoded["source"])

	var ym bytes.Buffer
	require.NoError(t, writeReport(&ym, report, "yaml"))
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	assert.Equal(t, 440.12, fromYAML["primary_hz"])

	assert.Error(t, writeReport(&bytes.Buffer{}, report, "csv"))
}

func TestChangePrinter(t *testing.T) {
	var out bytes.Buffer
	show := changePrinter(&out)

	pair := harmonic.TrackedPeakPair{
		Primary:      harmonic.SpectralPeak{Frequency: 440},
		PrimaryValid: true,
		Sequence:     1,
	}
	show(tracker.CycleResult{PeaksUpdated: true, Peaks: pair})
	show(tracker.CycleResult{Peaks: pair})
	show(tracker.CycleResult{Doppler: &doppler.Reading{Smoothed: doppler.Approaching, Valid: true}})
	show(tracker.CycleResult{Doppler: &doppler.Reading{Smoothed: doppler.Approaching, Valid: true}})

	lines := bytes.Count(out.Bytes(), []byte("\n"))
	assert.Equal(t, 2, lines)
	assert.Contains(t, out.String(), "440.00 Hz")
	assert.Contains(t, out.String(), "motion approaching")
}
