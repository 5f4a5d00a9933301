package main

import (
	"context"
	"expvar"
	"flag"
	"log"
	"net/http"
	"runtime"
	"slices"

	"github.com/hilthontt/convoy/internal/infrastructure/configs"
	"github.com/hilthontt/convoy/internal/infrastructure/events"
	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/messaging"
	"github.com/hilthontt/convoy/internal/infrastructure/metrics"
	"github.com/hilthontt/convoy/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/convoy/internal/infrastructure/repository"
	"github.com/hilthontt/convoy/internal/infrastructure/routing"
	"github.com/hilthontt/convoy/internal/infrastructure/tracing"
	"github.com/hilthontt/convoy/internal/infrastructure/ws"
	"github.com/hilthontt/convoy/internal/presentation/api"
	"github.com/hilthontt/convoy/internal/presentation/handler/health"
	"github.com/hilthontt/convoy/internal/presentation/handler/rooms"
	"github.com/hilthontt/convoy/internal/presentation/handler/route"
	"github.com/hilthontt/convoy/internal/reckoning"
)

func main() {
	configFlag := flag.String("config", "", "path to the yaml config file")
	flag.Parse()

	cfg, err := configs.Load(configs.DetermineConfigPath(*configFlag))
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Backend,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatalf("failed to initialize the tracer: %v", err)
	}
	defer shutdownTracer(context.Background())

	m := metrics.New()

	roomManager := ws.NewRoomManager(logger, m)
	registry := repository.NewRoomRegistry(roomManager)
	m.RegisterRoomGauge(registry.Count)

	publisher := events.NewNoopPublisher()
	if cfg.Events.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.Events.RabbitMQURI)
		if err != nil {
			logger.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer rabbitmq.Close()

		logger.Info(logging.RabbitMQ, logging.Startup, "rabbitmq connected", nil)

		publisher = events.NewRoomPublisher(rabbitmq, logger)

		consumer := events.NewRoomConsumer(rabbitmq, logger)
		go func() {
			if err := consumer.Listen(ctx); err != nil && ctx.Err() == nil {
				logger.Error(logging.RabbitMQ, logging.Consume, "room consumer stopped", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}
		}()
	}

	wsCore := ws.NewCore(registry, roomManager, publisher, logger, m, ws.Options{
		SendBuffer:     cfg.Websocket.SendBuffer,
		MaxMessageSize: cfg.Websocket.MaxMessageSize,
		PingInterval:   cfg.Websocket.PingInterval,
		PongWait:       cfg.Websocket.PongWait,
		WriteWait:      cfg.Websocket.WriteWait,
		CheckOrigin:    originChecker(cfg.HTTP.AllowedOrigins),
	})

	gateway := routing.NewGateway(routing.GatewayOptions{
		BaseURL:   cfg.Routing.BaseURL,
		Timeout:   cfg.Routing.Timeout,
		UserAgent: cfg.Routing.UserAgent,
		Logger:    logger,
		Metrics:   m,
	})
	querier := routing.NewCachedQuerier(gateway, routing.CachedQuerierOptions{
		TTL:         cfg.Routing.CacheTTL,
		MinInterval: cfg.Routing.MinInterval,
		Logger:      logger,
		Metrics:     m,
	})
	reckoner := reckoning.NewReckoner(querier, logger)

	roomHandler := rooms.NewHandler(registry, wsCore, reckoner, logger, nil)
	routeHandler := route.NewHandler(gateway)
	healthHandler := health.NewHandler(registry)

	var limiter ratelimiter.Limiter
	if cfg.RateLimiter.Enabled {
		rl := ratelimiter.New(ratelimiter.Options{
			MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
			MaxBurst:         cfg.RateLimiter.MaxBurst,
			CacheTTL:         cfg.RateLimiter.CacheTTL,
			SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
		})
		defer rl.Close()
		limiter = rl
	}

	app := api.NewApplication(*cfg, roomHandler, routeHandler, healthHandler, logger, limiter, m)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("rooms", expvar.Func(func() any {
		return registry.Count()
	}))
	expvar.Publish("route_throttled", expvar.Func(func() any {
		return querier.Throttled()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
