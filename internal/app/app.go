package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/circuitgrid/internal/analysis"
	"github.com/chrissnell/circuitgrid/internal/controllers/restserver"
	"github.com/chrissnell/circuitgrid/internal/render"
	"github.com/chrissnell/circuitgrid/internal/tables"
	"github.com/chrissnell/circuitgrid/pkg/config"
)

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config: cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	service, closer, err := NewService(a.config, a.logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	if st := service.Status(ctx); !st.Ready {
		a.logger.Warnf("source tables are not usable yet: %s", st.Message)
	}

	server := restserver.NewController(ctx, &wg, a.config.Server, service, a.logger)
	if err := server.StartController(); err != nil {
		return err
	}

	a.logger.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}

// NewService opens the configured table source and builds the analysis service over
// it. The returned closer, when non-nil, releases the source.
func NewService(cfg *config.ConfigData, logger *zap.SugaredLogger) (*analysis.Service, io.Closer, error) {
	source, closer, err := NewSource(cfg.Sources)
	if err != nil {
		return nil, nil, err
	}
	catalog := tables.NewCatalog(source, logger)
	return analysis.New(catalog, AnalysisConfig(cfg), logger), closer, nil
}

// NewSource opens the table source selected by the sources section.
func NewSource(sc config.SourcesData) (tables.Source, io.Closer, error) {
	switch sc.Backend {
	case config.SourceCSV, "":
		return tables.NewDirSource(sc.UploadDir), nil, nil
	case config.SourceSQLite:
		s, err := tables.NewSQLiteSource(sc.SQLitePath, sc.Tables)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.SourcePostgres:
		s, err := tables.NewPostgresSource(sc.DSN, sc.Tables)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unsupported source backend: %s", sc.Backend)
	}
}

// AnalysisConfig maps the analysis and render sections onto the pipeline thresholds.
func AnalysisConfig(cfg *config.ConfigData) analysis.Config {
	return analysis.Config{
		SamplingMinRows: cfg.Analysis.SamplingMinRows,
		ChunkThreshold:  time.Duration(cfg.Analysis.ChunkThresholdHours) * time.Hour,
		ChunkSize:       time.Duration(cfg.Analysis.ChunkSizeHours) * time.Hour,
		SamplerSeed:     cfg.Analysis.SamplerSeed,
		Detail: render.Policy{
			LowDetailRows: cfg.Render.LowDetailRows,
			LowDetailDays: cfg.Render.LowDetailDays,
		},
		Render: render.Options{
			BatchSize:         cfg.Render.BatchSize,
			CollapseThreshold: cfg.Render.CollapseThreshold,
			LabelTarget:       cfg.Render.LabelTarget,
			GridMaxRows:       cfg.Render.GridMaxRows,
		},
	}
}
