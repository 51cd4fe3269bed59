package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/airtemp-calibration/internal/adapter/catalog"
	httpadapter "github.com/couchcryptid/airtemp-calibration/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/airtemp-calibration/internal/adapter/kafka"
	"github.com/couchcryptid/airtemp-calibration/internal/adapter/sink"
	"github.com/couchcryptid/airtemp-calibration/internal/config"
	"github.com/couchcryptid/airtemp-calibration/internal/domain"
	"github.com/couchcryptid/airtemp-calibration/internal/observability"
	"github.com/couchcryptid/airtemp-calibration/internal/pipeline"
)

// cliArgs are command-line overrides for the common run parameters. Anything
// not overridden here comes from the environment.
type cliArgs struct {
	Region   string `arg:"--region" help:"boundary feature name, e.g. Pantanal"`
	Start    string `arg:"--start" help:"window start date (YYYY-MM-DD)"`
	End      string `arg:"--end" help:"window end date (YYYY-MM-DD)"`
	Alpha    string `arg:"--alpha" help:"calibration blend factor in [0,1]"`
	Out      string `arg:"--out" help:"output directory"`
	Progress bool   `arg:"--progress" help:"show a progress bar during calibration"`
}

func (cliArgs) Description() string {
	return "Calibrates satellite land surface temperature against reanalysis air temperature over a region."
}

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	var args cliArgs
	arg.MustParse(&args)
	applyOverrides(args)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	client := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout, logger, metrics)
	source := catalog.NewCachedSource(client, cfg.CatalogCacheSize, metrics)

	exporter := sink.NewExporter(cfg.OutputDir, logger)
	charts := sink.NewChartWriter(cfg.OutputDir, logger)
	maps := sink.NewMapWriter(cfg.OutputDir, logger)

	var publisher pipeline.SeriesPublisher
	if cfg.KafkaEnabled {
		kp := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kp.Close()
		publisher = kp
		logger.Info("series publication enabled", "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(source, exporter, charts, maps, publisher, logger, metrics, pipeline.Params{
		RegionName:        cfg.RegionName,
		BoundaryDataset:   cfg.BoundaryDataset,
		BoundaryField:     cfg.BoundaryField,
		LSTDataset:        cfg.LSTDataset,
		ReanalysisDataset: cfg.ReanalysisDataset,
		Window:            domain.TimeWindow{Start: cfg.StartDate, End: cfg.EndDate},
		Alpha:             cfg.Alpha,
		ScaleMeters:       cfg.ExportScaleMeters,
		CRS:               cfg.ExportCRS,
		MaxPixels:         cfg.MaxPixels,
		ShowProgress:      cfg.ShowProgress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.MetricsAddr != "" {
		srv = httpadapter.NewServer(cfg.MetricsAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	runErr := p.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		cancel()
	}

	if runErr != nil {
		logger.Error("calibration run failed", "error", runErr)
		os.Exit(1)
	}
}

func applyOverrides(args cliArgs) {
	set := func(key, value string) {
		if value != "" {
			os.Setenv(key, value) //nolint:errcheck // static key
		}
	}
	set("REGION_NAME", args.Region)
	set("START_DATE", args.Start)
	set("END_DATE", args.End)
	set("ALPHA", args.Alpha)
	set("OUTPUT_DIR", args.Out)
	if args.Progress {
		set("PROGRESS", "true")
	}
}
