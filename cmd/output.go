package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-radar/algorithms/harmonic"
)

// writeReport renders report in the configured output format
func writeReport(w io.Writer, report *analysisReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		return writeReportTable(w, report)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func writeReportTable(w io.Writer, report *analysisReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Source:\t%s\n", report.Source)
	fmt.Fprintf(tw, "Duration:\t%s\n", report.Duration)
	fmt.Fprintf(tw, "Frames:\t%d\n", report.Frames)
	fmt.Fprintf(tw, "Gate fires:\t%d\n", report.GateFires)
	fmt.Fprintf(tw, "Primary:\t%s\n", formatPeak(report.Peaks.Primary, report.Peaks.PrimaryValid))
	fmt.Fprintf(tw, "Secondary:\t%s\n", formatPeak(report.Peaks.Secondary, report.Peaks.SecondaryValid))

	if d := report.Doppler; d != nil {
		fmt.Fprintf(tw, "Emitted:\t%.1f Hz\n", d.EmittedFrequency)
		fmt.Fprintf(tw, "Direction:\t%s\n", d.Final)

		names := make([]string, 0, len(d.Votes))
		for name := range d.Votes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(tw, "  %s:\t%d\n", name, d.Votes[name])
		}
	}

	return tw.Flush()
}

func formatPeak(peak harmonic.SpectralPeak, valid bool) string {
	if !valid {
		return "-"
	}
	return fmt.Sprintf("%.2f Hz (%.1f dB)", peak.Frequency, peak.Magnitude)
}
