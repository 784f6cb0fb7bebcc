package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/config"
	"github.com/opiniondw/opinions-etl/pkg/database"
	"github.com/opiniondw/opinions-etl/pkg/extractors"
	"github.com/opiniondw/opinions-etl/pkg/handlers"
	"github.com/opiniondw/opinions-etl/pkg/logging"
	"github.com/opiniondw/opinions-etl/pkg/middleware"
	"github.com/opiniondw/opinions-etl/pkg/repositories"
	"github.com/opiniondw/opinions-etl/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsPath = "migrations"

func main() {
	runEtl := flag.Bool("run-etl", false, "run the pipeline once at startup")
	flag.Parse()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("warehouse", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Int("batch_size", cfg.Etl.BatchSize),
		zap.Int("parallelism", cfg.Etl.Parallelism()),
		zap.Bool("parallel_extraction", cfg.Etl.ParallelExtraction))

	// Shutdown cancels the run context: an in-flight pipeline stops at its
	// next phase boundary, before any destructive step it has not reached.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to warehouse", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	dimensionRepo := repositories.NewDimensionRepository(db.Pool)
	factRepo := repositories.NewFactRepository(db.Pool)

	etlService := services.NewEtlService(
		buildExtractors(cfg, logger),
		services.NewValidator(cfg.Etl.Parallelism(), logger),
		services.NewDimensionResolver(dimensionRepo, logger),
		services.NewFactLoader(factRepo, cfg.Etl.BatchSize, logger),
		cfg.Etl.ParallelExtraction,
		cfg.Etl.Parallelism(),
		logger,
	)
	queryService := services.NewOpinionQueryService(factRepo, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewEtlHandler(etlService, logger).RegisterRoutes(mux)
	handlers.NewOpinionsHandler(queryService, logger).RegisterRoutes(mux)

	if cfg.RunOnStart || *runEtl {
		go func() {
			if _, err := etlService.Run(ctx); err != nil {
				logger.Error("Startup ETL run failed", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting opinions-etl",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

// buildExtractors wires one extractor per enabled source.
func buildExtractors(cfg *config.Config, logger *zap.Logger) []extractors.Extractor {
	var exts []extractors.Extractor
	if cfg.CSVSource.Enabled {
		exts = append(exts, extractors.NewCSVExtractor(cfg.CSVSource, logger))
	}
	if cfg.JSONSource.Enabled {
		exts = append(exts, extractors.NewJSONExtractor(cfg.JSONSource, logger))
	}
	if cfg.DatabaseSource.Enabled {
		exts = append(exts, extractors.NewDatabaseExtractor(cfg.DatabaseSource, logger))
	}
	if cfg.APISource.Enabled {
		exts = append(exts, extractors.NewAPIExtractor(cfg.APISource, logger))
	}
	return exts
}

// runMigrations applies the star schema through database/sql, as required
// by golang-migrate.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, migrationsPath, logger)
}
