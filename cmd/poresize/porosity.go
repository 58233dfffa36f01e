package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clementsan/poresize/pkg/metaimage"
	"github.com/clementsan/poresize/pkg/porosity"
)

func newPorosityCmd(a *app) *cobra.Command {
	var workers int
	var compress bool
	cmd := &cobra.Command{
		Use:   "porosity <phase_model> <phase> <output_file> <neighborhood_radius>",
		Short: "Compute local porosity in a cubic neighborhood and the global porosity",
		Args:  positional("phase_model", "phase", "output_file", "neighborhood_radius"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") {
				a.cfg.Porosity.Workers = workers
			}
			if cmd.Flags().Changed("compress") {
				a.cfg.Output.Compress = compress
			}
			return a.runPorosity(args)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Goroutines per separable pass (default from config: all cores)")
	cmd.Flags().BoolVar(&compress, "compress", false, "Compress the output volume with zlib")
	return cmd
}

func (a *app) runPorosity(args []string) error {
	inPath, outPath := args[0], args[2]

	phase, err := parseInt("phase", args[1])
	if err != nil {
		return err
	}
	radius, err := parseInt("neighborhood_radius", args[3])
	if err != nil {
		return err
	}
	cfg := a.cfg
	cfg.Porosity.Phase = phase
	cfg.Porosity.Radius = radius
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := a.log.WithField("command", "porosity")
	banner(a.stdout, "LOCAL POROSITY")

	labels, err := metaimage.ReadLabels(inPath)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":   inPath,
		"size":   labels.Geometry.String(),
		"voxels": humanize.Comma(int64(labels.Len())),
		"radius": radius,
	}).Info("phase model loaded")

	res, err := porosity.Compute(labels, porosity.Params{
		Phase:   phase,
		Radius:  radius,
		Workers: cfg.Porosity.Workers,
	})
	if err != nil {
		return err
	}

	if err := metaimage.WriteFloat(outPath, res.Local, metaimage.WriteOptions{Compress: cfg.Output.Compress}); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Local porosity saved to: %s\n", outPath)
	fmt.Fprintf(a.stdout, "Global porosity value is %.4f\n", res.Global)

	rec := a.recorder("porosity")
	if rec != nil {
		rec.ObserveVoxels(labels.Len(), res.Count)
	}
	return a.finish(rec)
}
