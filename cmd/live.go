package cmd

import (
	"fmt"

	"github.com/RyanBlaney/sonido-radar/capture/portaudio"
	"github.com/RyanBlaney/sonido-radar/synth"
	"github.com/RyanBlaney/sonido-radar/tracker"
)

// liveRig is a pipeline wired to the default audio device, plus the
// reference tone when Doppler is on
type liveRig struct {
	*tracker.Pipeline
	source *portaudio.Source
	tone   *synth.Oscillator
}

func newLiveRig() (*liveRig, error) {
	cfg := &appConfig.Pipeline

	p, err := tracker.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	pa := portaudio.Config{
		SampleRate:      cfg.SampleRate,
		Channels:        cfg.Channels,
		FramesPerBuffer: appConfig.Capture.FramesPerBuffer,
	}

	rig := &liveRig{Pipeline: p}
	if cfg.Doppler.Enabled {
		tone, err := synth.NewOscillator(cfg.SampleRate, cfg.Doppler.EmittedFrequency, cfg.Doppler.Volume)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to create reference tone: %w", err)
		}
		rig.tone = tone
		pa.Tone = tone
		pa.OutputChannels = appConfig.Capture.OutputChannels
	}

	rig.source = portaudio.NewSource(pa, logger)
	return rig, nil
}

// SetEmittedFrequency retunes the reference tone and the classifier together
func (r *liveRig) SetEmittedFrequency(hz float64) error {
	if err := r.Pipeline.SetEmittedFrequency(hz); err != nil {
		return err
	}
	if r.tone != nil {
		return r.tone.SetFrequency(hz)
	}
	return nil
}
