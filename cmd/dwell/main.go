package main

import (
	"context"
	"flag"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dwellspace/dwell/client"
	"github.com/dwellspace/dwell/internal/config"
	"github.com/dwellspace/dwell/internal/infra/database"
	"github.com/dwellspace/dwell/internal/infra/gateway"
	"github.com/dwellspace/dwell/internal/infra/repository"
	"github.com/dwellspace/dwell/internal/present/rest"
	restmiddleware "github.com/dwellspace/dwell/internal/present/rest/middleware"
	"github.com/dwellspace/dwell/internal/service"
	"github.com/dwellspace/dwell/internal/usecase"
)

func main() {
	configPath := flag.String("c", "config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if conf.Server.EnableTrace {
		cleanup := setupTraceProvider(conf.Server.TraceEndpoint, "dwell")
		defer cleanup()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		panic("failed to connect database")
	}

	err = database.MigratePostgres(db)
	if err != nil {
		panic("failed to migrate database")
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	authClient := client.New(conf.Auth.ProviderURL)
	authGateway := gateway.NewAuthGateway(conf.Auth.JwtSecret, conf.Auth.SessionChannel, authClient, rdb)

	favoriteRepo := repository.NewFavoriteRepository(db, mc)
	propertyRepo := repository.NewPropertyRepository(db)
	guestStore := repository.NewGuestFavoriteStore(rdb)

	signal := service.NewSignalService(rdb)
	notifier := service.NewNotificationService(signal)
	ledger := usecase.NewProcessingLedger()

	favorites := usecase.NewFavoritesUsecase(
		favoriteRepo,
		propertyRepo,
		guestStore,
		ledger,
		notifier,
		signal,
	)

	handler := rest.NewHandler(favorites, propertyRepo, signal, authGateway)
	authMiddleware := restmiddleware.NewAuthMiddleware(authGateway)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("dwell"))
	}
	e.Use(authMiddleware.IdentifyRequester)

	handler.RegisterRoutes(e)

	slog.Info("starting dwell", "listen", conf.Server.Listen)
	e.Logger.Fatal(e.Start(conf.Server.Listen))
}

func setupTraceProvider(endpoint string, serviceName string) func() {
	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		panic("failed to create trace exporter: " + err.Error())
	}

	res := sdkresource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func() {
		if err := provider.Shutdown(ctx); err != nil {
			slog.Warn("trace provider shutdown failed", "error", err)
		}
	}
}
