package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clementsan/poresize/internal/logging"
	"github.com/clementsan/poresize/internal/models"
	"github.com/clementsan/poresize/pkg/config"
	"github.com/clementsan/poresize/pkg/metrics"
)

// app carries the state shared by all subcommands of one invocation
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath  string
	logLevel    string
	logJSON     bool
	metricsFile string

	cfg     *config.Config
	runID   string
	log     *logrus.Entry
	started time.Time
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "poresize",
		Short: "Covering radius transform, histogram and local porosity of two-phase volumes",
		// Root accepts anything so unknown commands surface as configuration errors
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return models.Configf("unknown command %q", args[0])
			}
			return cmd.Help()
		},
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &models.ConfigError{Msg: "invalid flag", Err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVar(&a.logJSON, "log-json", false, "Log JSON lines instead of text")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus text metrics to this file")

	root.AddCommand(
		newCoverCmd(a),
		newHistogramCmd(a),
		newPorosityCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the configuration, applies global flags and configures logging
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return &models.ConfigError{Msg: "loading configuration", Err: err}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-json") {
		cfg.Logging.JSON = a.logJSON
	}
	if flags.Changed("metrics-file") {
		cfg.Output.MetricsFile = a.metricsFile
	}

	logging.Configure(logging.Options{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.JSON,
		Out:   a.stderr,
	})

	a.cfg = cfg
	a.runID = uuid.NewString()
	a.log = logging.L().WithField("run", a.runID)
	a.started = time.Now()
	return nil
}

// recorder returns a metrics recorder for command, or nil when no metrics
// file is configured
func (a *app) recorder(command string) *metrics.Recorder {
	if a.cfg.Output.MetricsFile == "" {
		return nil
	}
	return metrics.NewRecorder(command, a.runID)
}

// finish prints the elapsed time and writes the metrics file. Metrics are a
// side output written after the results: a failed write is logged and does
// not fail the run.
func (a *app) finish(rec *metrics.Recorder) error {
	elapsed := time.Since(a.started)
	fmt.Fprintf(a.stdout, "\nCompleted successfully in %.2f seconds\n", elapsed.Seconds())
	if rec == nil {
		return nil
	}
	rec.SetDuration(elapsed)
	log := a.log.WithField("file", a.cfg.Output.MetricsFile)
	if err := rec.WriteTextfile(a.cfg.Output.MetricsFile); err != nil {
		log.WithError(err).Warn("failed to write metrics")
		return nil
	}
	log.Debug("metrics written")
	return nil
}

func banner(w io.Writer, title string) {
	fmt.Fprintln(w, "================================")
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, "================================")
}

// positional requires exactly the named positional arguments
func positional(names ...string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != len(names) {
			return models.Configf("%s expects %d arguments (%s), got %d",
				cmd.Name(), len(names), strings.Join(names, " "), len(args))
		}
		return nil
	}
}

func parseInt(name, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, models.Configf("%s must be an integer, got %q", name, s)
	}
	return v, nil
}
