package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/stelae/stelae/internal/config"
	"github.com/stelae/stelae/internal/datatype"
	"github.com/stelae/stelae/internal/infra/cache"
	"github.com/stelae/stelae/internal/infra/database"
	"github.com/stelae/stelae/internal/infra/repository"
	"github.com/stelae/stelae/internal/infra/search"
	"github.com/stelae/stelae/internal/present/rest"
	"github.com/stelae/stelae/internal/present/rest/middleware"
	"github.com/stelae/stelae/internal/service"
	"github.com/stelae/stelae/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.Server.EnableTrace {
		shutdown, err := setupTracer(ctx, cfg.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown(ctx)
	}

	db, err := database.NewPostgres(cfg.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := database.MigratePostgres(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(cfg.Server.RedisAddr, cfg.Server.RedisPassword, cfg.Server.RedisDB)
	mc := database.NewMemcached(cfg.Server.MemcachedAddr)

	engine, err := search.NewEngine(cfg.Server.WeaviateScheme, cfg.Server.WeaviateHost)
	if err != nil {
		slog.Error("failed to create search engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := engine.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure search schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	systemGraph, err := cfg.SystemSettingsGraph()
	if err != nil {
		slog.Error("invalid system settings graph id", slog.String("error", err.Error()))
		os.Exit(1)
	}
	ucConfig := usecase.Config{
		StreamlineImport:      cfg.Import.StreamlineImport,
		SystemSettingsGraphID: systemGraph,
	}

	tileRepo := repository.NewTileRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	editlogRepo := repository.NewEditLogRepository(db)
	schemaRepo := repository.NewSchemaRepository(db)
	valueRepo := repository.NewValueRepository(db)
	relationRepo := repository.NewRelationRepository(db)
	txManager := repository.NewTxManager(db)

	signal := service.NewSignalService(rdb)
	relationSyncer := usecase.NewRelationSyncer(relationRepo, engine)
	registry := datatype.NewRegistry(valueRepo, relationSyncer)
	descriptorCache := cache.NewDescriptorCache(mc)
	renderer := usecase.NewDescriptorRenderer(schemaRepo, resourceRepo, tileRepo, registry, descriptorCache)

	tileUC := usecase.NewTileUsecase(tileRepo, resourceRepo, editlogRepo, schemaRepo, registry, engine, signal, renderer)
	resourceUC := usecase.NewResourceUsecase(ucConfig, resourceRepo, tileRepo, editlogRepo, schemaRepo,
		valueRepo, relationRepo, registry, engine, signal, txManager, tileUC, renderer)
	tileUC.SetIndexer(resourceUC)
	bulkLoader := usecase.NewBulkLoader(ucConfig, resourceRepo, tileRepo, editlogRepo, engine, txManager, resourceUC)

	handler := rest.NewHandler(resourceUC, tileUC, bulkLoader, renderer, signal)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if cfg.Server.EnableTrace {
		e.Use(otelecho.Middleware("stelae"))
	}
	e.Use(middleware.IdentifyActor)

	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(cfg.Server.Listen))
}

func setupTracer(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
