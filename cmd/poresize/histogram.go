package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clementsan/poresize/internal/fsutil"

	"github.com/clementsan/poresize/pkg/histogram"
	"github.com/clementsan/poresize/pkg/metaimage"
)

func newHistogramCmd(a *app) *cobra.Command {
	var plotFile string
	cmd := &cobra.Command{
		Use:   "histogram <covering_transform> <histogram_csv> <number_of_bins>",
		Short: "Bin a covering radius field and save the histogram as CSV",
		Args:  positional("covering_transform", "histogram_csv", "number_of_bins"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("plot") {
				a.cfg.Histogram.PlotFile = plotFile
			}
			return a.runHistogram(args)
		},
	}
	cmd.Flags().StringVar(&plotFile, "plot", "", "Also save a PNG bar chart of the histogram")
	return cmd
}

func (a *app) runHistogram(args []string) error {
	inPath, csvPath := args[0], args[1]

	bins, err := parseInt("number_of_bins", args[2])
	if err != nil {
		return err
	}
	cfg := a.cfg
	cfg.Histogram.Bins = bins
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Histogram.PlotFile != "" {
		if _, err := histogram.PlotFormat(cfg.Histogram.PlotFile); err != nil {
			return err
		}
	}

	log := a.log.WithField("command", "histogram")
	banner(a.stdout, "COVERING RADIUS HISTOGRAM")

	field, err := metaimage.ReadFloat(inPath)
	if err != nil {
		return err
	}

	h, err := histogram.Compute(field, bins)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":    inPath,
		"counted": humanize.Comma(int64(h.Total)),
		"voxels":  humanize.Comma(int64(field.Len())),
		"max":     h.Max,
		"mean":    h.Mean,
	}).Info("histogram computed")
	if h.Unbounded > 0 {
		log.WithField("voxels", humanize.Comma(int64(h.Unbounded))).
			Warn("infinite or NaN covering radii left out of the histogram")
	}

	// The chart is rendered before the CSV is written, so a rendering
	// failure leaves no output behind.
	var chart []byte
	if cfg.Histogram.PlotFile != "" {
		opts := histogram.PlotOptions{Width: cfg.Histogram.PlotWidth, Height: cfg.Histogram.PlotHeight}
		if chart, err = h.RenderPlot(cfg.Histogram.PlotFile, opts); err != nil {
			return err
		}
	}

	if err := h.WriteTable(a.stdout); err != nil {
		return err
	}
	if err := h.SaveCSV(csvPath); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Histogram saved to: %s\n", csvPath)

	if chart != nil {
		a.saveChart(cfg.Histogram.PlotFile, chart, log)
	}

	rec := a.recorder("histogram")
	if rec != nil {
		rec.ObserveVoxels(field.Len(), h.Total)
	}
	return a.finish(rec)
}

// saveChart writes a rendered chart. Like previews, the chart is a side
// output: a failed write is logged and does not fail the run.
func (a *app) saveChart(path string, chart []byte, log *logrus.Entry) {
	err := fsutil.WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(chart)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("failed to save histogram plot")
		return
	}
	fmt.Fprintf(a.stdout, "Histogram plot saved to: %s\n", path)
}
