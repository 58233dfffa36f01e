package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clementsan/poresize/internal/models"
	"github.com/clementsan/poresize/pkg/covering"
	"github.com/clementsan/poresize/pkg/metaimage"
	"github.com/clementsan/poresize/pkg/visualization"
)

type coverFlags struct {
	workers      int
	progressStep float64
	previewDir   string
	previewScale int
	region       []int
	compress     bool
}

func newCoverCmd(a *app) *cobra.Command {
	fl := &coverFlags{}
	cmd := &cobra.Command{
		Use:   "cover <distance_transform> <phase_model> <phase> <output_file>",
		Short: "Compute the covering radius transform of one phase",
		Args:  positional("distance_transform", "phase_model", "phase", "output_file"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCover(cmd, args, fl)
		},
	}
	f := cmd.Flags()
	f.IntVar(&fl.workers, "workers", 0, "Goroutines scanning ball centers (default from config: all cores)")
	f.Float64Var(&fl.progressStep, "progress-step", 0, "Percentage between two progress log lines")
	f.StringVar(&fl.previewDir, "preview-dir", "", "Save PNG slices of the result along each preview axis")
	f.IntVar(&fl.previewScale, "preview-scale", 0, "Integer upscaling factor of preview images")
	f.IntSliceVar(&fl.region, "preview-region", nil, "Preview only the subvolume x,y,z,width,height,depth")
	f.BoolVar(&fl.compress, "compress", false, "Compress the output volume with zlib")
	return cmd
}

func (a *app) runCover(cmd *cobra.Command, args []string, fl *coverFlags) error {
	distPath, phasePath, outPath := args[0], args[1], args[3]

	phase, err := parseInt("phase", args[2])
	if err != nil {
		return err
	}
	cfg := a.cfg
	cfg.Transform.Phase = phase

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Transform.Workers = fl.workers
	}
	if flags.Changed("progress-step") {
		cfg.Transform.ProgressStep = fl.progressStep
	}
	if flags.Changed("preview-dir") {
		cfg.Output.PreviewDir = fl.previewDir
	}
	if flags.Changed("preview-scale") {
		cfg.Output.PreviewScale = fl.previewScale
	}
	if flags.Changed("preview-region") {
		cfg.Output.PreviewRegion = fl.region
	}
	if flags.Changed("compress") {
		cfg.Output.Compress = fl.compress
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := a.log.WithField("command", "cover")
	banner(a.stdout, "COVERING RADIUS TRANSFORM")

	// Headers are checked before any voxel is read
	distHeader, err := metaimage.ReadHeader(distPath)
	if err != nil {
		return err
	}
	phaseHeader, err := metaimage.ReadHeader(phasePath)
	if err != nil {
		return err
	}
	spacing, err := models.CheckGeometries(distHeader.Geometry, phaseHeader.Geometry)
	if err != nil {
		return err
	}

	dist, err := metaimage.ReadFloat(distPath)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":   distPath,
		"size":   dist.Geometry.String(),
		"type":   distHeader.ElementType,
		"voxels": humanize.Comma(int64(dist.Len())),
		"buffer": humanize.IBytes(uint64(4 * len(dist.Data))),
	}).Info("distance transform loaded")

	labels, err := metaimage.ReadLabels(phasePath)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file": phasePath,
		"size": labels.Geometry.String(),
		"type": phaseHeader.ElementType,
	}).Info("phase model loaded")

	fmt.Fprintf(a.stdout, "Spacing: %g\n", spacing)
	fmt.Fprintf(a.stdout, "Phase: %d\n", phase)
	fmt.Fprintf(a.stdout, "Workers: %d\n", cfg.Transform.Workers)

	engine := covering.NewEngine(&covering.Params{
		Phase:    phase,
		Workers:  cfg.Transform.Workers,
		Progress: covering.NewLogProgress(cfg.Transform.ProgressStep, log),
	})
	out, err := engine.Transform(dist, labels)
	if err != nil {
		return err
	}
	stats := engine.Stats()
	log.WithFields(logrus.Fields{
		"in_phase": humanize.Comma(stats.InPhase),
		"examined": humanize.Comma(stats.Examined),
		"accepted": humanize.Comma(stats.Accepted),
		"raised":   humanize.Comma(stats.Raised),
	}).Info("covering radius transform done")

	if err := metaimage.WriteFloat(outPath, out, metaimage.WriteOptions{Compress: cfg.Output.Compress}); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Covering radius transform saved to: %s\n", outPath)

	if cfg.Output.PreviewDir != "" {
		a.savePreviews(out, log)
	}

	rec := a.recorder("cover")
	if rec != nil {
		rec.ObserveCovering(stats)
	}
	return a.finish(rec)
}

// savePreviews writes PNG slices of vol, or of the configured region of it.
// Failures are logged and do not fail the run.
func (a *app) savePreviews(vol *models.FloatVolume, log *logrus.Entry) {
	viewer := visualization.NewViewer(vol)
	if r := a.cfg.Output.PreviewRegion; len(r) == 6 {
		region, err := viewer.ExtractRegion(r[0], r[1], r[2], r[3], r[4], r[5])
		if err != nil {
			log.WithError(err).Warn("failed to extract preview region")
			return
		}
		viewer = visualization.NewViewer(region)
	}
	viewer.SetScale(a.cfg.Output.PreviewScale)
	for _, axis := range a.cfg.Output.PreviewAxes {
		axisDir := filepath.Join(a.cfg.Output.PreviewDir, axis)
		fmt.Fprintf(a.stdout, "Saving %s-axis slices to: %s\n", axis, axisDir)
		if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
			log.WithError(err).Warnf("failed to save %s-axis slices", axis)
		}
	}
}
