// Package visualize renders spectra and gate history as standalone HTML
// charts.
package visualize

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/RyanBlaney/sonido-radar/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-radar/algorithms/spectral"
)

var ErrEmptySpectrum = errors.New("spectrum has no bins")

// ChartOptions controls chart appearance
type ChartOptions struct {
	Title        string
	Subtitle     string
	MaxFrequency float64 // 0 shows up to Nyquist
	Width        string
	Height       string
}

// DefaultChartOptions returns a full-width chart up to 20 kHz
func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		Title:        "Spectrum",
		MaxFrequency: 20000,
		Width:        "1200px",
		Height:       "500px",
	}
}

// SpectrumChart builds a line chart of spec in dB with the locked peaks
// overlaid as a second series
func SpectrumChart(spec spectral.Spectrum, pair harmonic.TrackedPeakPair, o ChartOptions) (*charts.Line, error) {
	if spec.Len() == 0 {
		return nil, ErrEmptySpectrum
	}

	bins := spec.Len()
	if o.MaxFrequency > 0 {
		if limit := int(o.MaxFrequency/spec.Resolution()) + 1; limit < bins {
			bins = max(limit, 1)
		}
	}

	marked := map[int]bool{}
	if pair.PrimaryValid {
		marked[pair.Primary.BinIndex] = true
	}
	if pair.SecondaryValid {
		marked[pair.Secondary.BinIndex] = true
	}

	xAxis := make([]string, bins)
	levels := make([]opts.LineData, bins)
	peaks := make([]opts.LineData, bins)
	for i := 0; i < bins; i++ {
		xAxis[i] = strconv.FormatFloat(spec.BinFrequency(i), 'f', 1, 64)
		levels[i] = opts.LineData{Value: spec.Magnitudes[i]}
		if marked[i] {
			peaks[i] = opts.LineData{Value: spec.Magnitudes[i], Name: peakLabel(pair, i)}
		} else {
			// "-" is a gap in echarts
			peaks[i] = opts.LineData{Value: "-"}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: o.Title,
			Width:     o.Width,
			Height:    o.Height,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    o.Title,
			Subtitle: o.Subtitle,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hz"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "dBFS"}),
	)
	line.SetXAxis(xAxis).
		AddSeries("spectrum", levels).
		AddSeries("peaks", peaks)
	return line, nil
}

func peakLabel(pair harmonic.TrackedPeakPair, bin int) string {
	if pair.PrimaryValid && pair.Primary.BinIndex == bin {
		return fmt.Sprintf("primary %.1f Hz", pair.Primary.Frequency)
	}
	return fmt.Sprintf("secondary %.1f Hz", pair.Secondary.Frequency)
}

// LevelChart builds a bar chart of per-frame peak amplitudes
func LevelChart(levels []float64, title string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title: title,
	}))

	xAxis := make([]int, len(levels))
	barData := make([]opts.BarData, len(levels))
	for i := 0; i < len(levels); i++ {
		xAxis[i] = i
		barData[i] = opts.BarData{Value: levels[i]}
	}
	bar.SetXAxis(xAxis).AddSeries("peak amplitude", barData)
	return bar
}

// RenderSpectrum writes a standalone HTML page with the spectrum chart
func RenderSpectrum(w io.Writer, spec spectral.Spectrum, pair harmonic.TrackedPeakPair, o ChartOptions) error {
	line, err := SpectrumChart(spec, pair, o)
	if err != nil {
		return err
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render spectrum chart: %w", err)
	}
	return nil
}

// RenderReport writes the spectrum and the level history on one page
func RenderReport(w io.Writer, spec spectral.Spectrum, pair harmonic.TrackedPeakPair, levels []float64, o ChartOptions) error {
	line, err := SpectrumChart(spec, pair, o)
	if err != nil {
		return err
	}

	page := components.NewPage()
	page.PageTitle = o.Title
	page.AddCharts(line, LevelChart(levels, "Frame peak amplitude"))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
