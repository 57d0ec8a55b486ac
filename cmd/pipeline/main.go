package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pulse/activitypipe/internal/application/pipeline"
	"github.com/pulse/activitypipe/internal/application/synth"
	"github.com/pulse/activitypipe/internal/domain/shared"
	"github.com/pulse/activitypipe/internal/infrastructure/config"
	"github.com/pulse/activitypipe/internal/infrastructure/csvimport"
	"github.com/pulse/activitypipe/internal/infrastructure/export"
	"github.com/pulse/activitypipe/internal/infrastructure/logger"
	"github.com/pulse/activitypipe/internal/infrastructure/persistence"
	"github.com/pulse/activitypipe/internal/infrastructure/storage"
	"github.com/pulse/activitypipe/internal/infrastructure/telemetry"
	"github.com/pulse/activitypipe/internal/infrastructure/transform"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configFile string
		rows       int
		seed       int64
		input      string
		skipLoad   bool
		skipUpload bool
		logLevel   string
	)

	flag.StringVar(&configFile, "config", "", "Path to config.toml (default: search ., ./config, /app)")
	flag.IntVar(&rows, "rows", 0, "Number of candidate records to synthesize")
	flag.Int64Var(&seed, "seed", 0, "Random seed for synthesis")
	flag.StringVar(&input, "input", "", "Read candidates from a raw CSV extract instead of synthesizing")
	flag.BoolVar(&skipLoad, "skip-load", false, "Skip the table load and SQL transform")
	flag.BoolVar(&skipUpload, "skip-upload", false, "Skip the object storage upload")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rows":
			cfg.Generation.NumRows = rows
		case "seed":
			cfg.Generation.Seed = seed
		case "input":
			cfg.Generation.InputFile = input
		case "log-level":
			cfg.Log.Level = logLevel
		}
	})
	if skipLoad {
		cfg.Database.Enabled = false
		cfg.Transform.Enabled = false
	}
	if skipUpload {
		cfg.Storage.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting activity pipeline",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Bool("database", cfg.Database.Enabled),
		zap.Bool("transform", cfg.Transform.Enabled),
		zap.Bool("storage", cfg.Storage.Enabled),
	)

	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		ExportLogs:        cfg.Telemetry.LogsEnabled,
	}
	tp, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Error("Failed to initialize tracer provider", zap.Error(err))
		return 1
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Error("Failed to initialize meter provider", zap.Error(err))
		return 1
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Error("Failed to initialize logger provider", zap.Error(err))
		return 1
	}
	log = lp.Bridge(log, logger.ParseLevel(cfg.Log.Level))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := lp.Shutdown(shutdownCtx); err != nil {
			log.Warn("Logger provider shutdown failed", zap.Error(err))
		}
		if err := mp.Shutdown(shutdownCtx); err != nil {
			log.Warn("Meter provider shutdown failed", zap.Error(err))
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("Tracer provider shutdown failed", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewPipelineMetrics(mp.Meter(telemetry.TracerName))
	if err != nil {
		log.Error("Failed to register pipeline metrics", zap.Error(err))
		return 1
	}

	source, sourceName, err := newSource(cfg, log)
	if err != nil {
		log.Error("Failed to create candidate source", zap.Error(err))
		return 1
	}

	deps := pipeline.Deps{
		Source:          source,
		Dataset:         export.NewDatasetWriter(cfg.Paths.DataDir, log),
		Metrics:         export.NewMetricsWriter(cfg.Paths.MetricsDir, log),
		Instrumentation: metrics,
		Logger:          log,
	}

	if cfg.Database.Enabled {
		db, err := persistence.NewDatabase(&cfg.Database, log)
		if err != nil {
			log.Error("Failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
			return 1
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()

		if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
			dbTracing := telemetry.DefaultDBTracingConfig()
			dbTracing.Enabled = true
			dbTracing.DBSystem = cfg.Database.Driver
			if err := telemetry.NewDBTracingPlugin(dbTracing, log).RegisterOtelGorm(db.DB); err != nil {
				log.Warn("Failed to register database tracing", zap.Error(err))
			}
		}

		runs := persistence.NewRunRepository(db.DB)
		if err := runs.Migrate(ctx); err != nil {
			log.Error("Failed to migrate run log", zap.Error(err))
			return 1
		}
		deps.Runs = runs
		deps.Table = persistence.NewActivityRepository(db.DB, cfg.Database.BatchSize)
		if cfg.Transform.Enabled {
			deps.Transformer = transform.NewSQLEngine(db.DB, log)
		}
	}

	if cfg.Storage.Enabled {
		uploader, err := storage.NewS3Uploader(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Error("Failed to create object storage client", zap.Error(err))
			return 1
		}
		deps.Uploader = uploader
	}

	p, err := pipeline.New(pipeline.Options{
		ValidStatuses:   cfg.Generation.ValidStatuses,
		Workers:         cfg.Pipeline.Workers,
		MaxLoggedErrors: cfg.Pipeline.MaxLoggedErrors,
		SourceName:      sourceName,
	}, deps)
	if err != nil {
		log.Error("Failed to build pipeline", zap.Error(err))
		return 1
	}

	res, err := p.Run(ctx)
	if err != nil {
		fields := []zap.Field{zap.String("code", shared.CodeOf(err)), zap.Error(err)}
		var perr *export.PathError
		if errors.As(err, &perr) {
			fields = append(fields, zap.String("path", perr.Path))
		}
		log.Error("Pipeline failed", fields...)
		return 1
	}

	log.Info("Pipeline finished",
		zap.String("run_id", res.RunID),
		zap.Int("initial_records", res.Cleaning.InitialRecords),
		zap.Int("rejected", res.Cleaning.Rejected()),
		zap.Int("duplicates_removed", res.Cleaning.DuplicateEmailsRemoved),
		zap.Int("final_records", res.Cleaning.FinalRecords),
		zap.Strings("files", res.Files.All()),
		zap.Strings("uploaded", res.Uploaded),
	)
	return 0
}

// newSource picks the raw CSV reader when an input file is configured, the synthesizer otherwise
func newSource(cfg *config.Config, log *zap.Logger) (pipeline.Source, string, error) {
	if cfg.Generation.InputFile != "" {
		return csvimport.NewRawReader(cfg.Generation.InputFile, log), cfg.Generation.InputFile, nil
	}

	gen, err := synth.New(synth.Options{
		NumRows:           cfg.Generation.NumRows,
		Start:             cfg.Generation.Start,
		End:               cfg.Generation.End,
		Seed:              cfg.Generation.Seed,
		ActiveProbability: &cfg.Generation.ActiveProbability,
		RefundPriceFactor: &cfg.Generation.RefundPriceFactor,
	})
	if err != nil {
		return nil, "", shared.Wrap(shared.CodeInvalidConfig, "synthesizer options", err)
	}
	return gen, "synthetic", nil
}
