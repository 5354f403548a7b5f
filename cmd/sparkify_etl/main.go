// Command sparkify_etl loads the song catalog and the activity logs into the
// star schema.
//
//	sparkify_etl [-config path] [-v] [-validate]
//
// Settings come from built-in defaults, the YAML file named by -config (or
// $SPARKIFY_CONFIG) and SPARKIFY_* environment variables, in that order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"sparkify/internal/config"
	"sparkify/internal/logging"
	"sparkify/internal/metrics"
	"sparkify/internal/metrics/datadog"
	"sparkify/internal/metrics/prompush"
	"sparkify/internal/pipeline"

	// All backends are linked; storage.kind picks one at runtime.
	_ "sparkify/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

type runner interface {
	Run(ctx context.Context, cfg config.Config) (pipeline.RunReport, error)
}

// appDeps are the side-effecting steps of runMain, replaced in tests.
type appDeps struct {
	loadConfig  func(path string) (config.Config, error)
	initMetrics func(ctx context.Context, m config.Metrics, log zerolog.Logger) (func(), error)
	newRunner   func(log zerolog.Logger) runner
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		initMetrics: initMetrics,
		newRunner:   func(log zerolog.Logger) runner { return pipeline.NewDefaultRunner(log) },
	}
}

// runMain returns the process exit code: 0 on success, 1 on a failed run or
// invalid configuration, 2 on usage errors.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("sparkify_etl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "YAML config path (default $"+config.PathEnvVar+")")
	verbose := fs.Bool("v", false, "debug logging")
	validate := fs.Bool("validate", false, "validate the configuration and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "usage: sparkify_etl [-config path] [-v] [-validate]; unexpected argument %q\n", fs.Arg(0))
		return 2
	}
	if *cfgPath != "" && strings.TrimSpace(*cfgPath) == "" {
		fmt.Fprintln(stderr, "usage: sparkify_etl -config path/to/config.yaml")
		return 2
	}

	cfg, err := deps.loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if *validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: stderr,
	})
	log.Debug().
		Str("storage", cfg.Storage.Kind).
		Str("song_data", cfg.Paths.SongData).
		Str("log_data", cfg.Paths.LogData).
		Float64("duration_tolerance", cfg.Match.DurationTolerance).
		Msg("config loaded")

	cleanup, err := deps.initMetrics(ctx, cfg.Metrics, log)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	rep, err := deps.newRunner(log).Run(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "ok run_id=%s song_files=%d log_files=%d songplays=%d unmatched=%d\n",
		rep.RunID, rep.Catalog.Files, rep.Logs.Files, rep.Logs.Stats.Songplays, rep.Logs.Stats.Unmatched)
	return 0
}

type metricsBackend interface {
	metrics.Backend
	Close() error
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPushBackend = func(job, url string, grouping map[string]string) (metrics.Backend, error) {
		return prompush.NewBackend(job, url, grouping)
	}
	setMetricsBackend = metrics.SetBackend
)

// initMetrics installs the configured metrics backend. The returned cleanup
// is never nil; it submits what is still buffered.
func initMetrics(ctx context.Context, m config.Metrics, log zerolog.Logger) (func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(m.Backend)) {
	case "", "none":
		return noop, nil

	case "datadog":
		tags := append([]string(nil), m.Tags...)
		tags = append(tags, datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    m.Job,
			Tags:       tags,
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			return noop, err
		}
		setMetricsBackend(b)
		log.Info().Str("backend", "datadog").Str("job", m.Job).Strs("tags", tags).Msg("metrics enabled")
		return func() {
			if err := b.Close(); err != nil {
				log.Warn().Err(err).Msg("metrics: datadog close error")
			}
		}, nil

	case "pushgateway":
		grouping := map[string]string{}
		if host, err := os.Hostname(); err == nil {
			grouping["instance"] = host
		}
		b, err := newPushBackend(m.Job, m.PushgatewayURL, grouping)
		if err != nil {
			return noop, err
		}
		setMetricsBackend(b)
		log.Info().Str("backend", "pushgateway").Str("job", m.Job).Str("url", m.PushgatewayURL).Msg("metrics enabled")
		return func() {
			if err := b.Flush(); err != nil {
				log.Warn().Err(err).Msg("metrics: pushgateway push error")
			}
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog|pushgateway)", m.Backend)
	}
}
