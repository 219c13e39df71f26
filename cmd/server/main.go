// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tomtom215/murmur/internal/activity"
	"github.com/tomtom215/murmur/internal/api"
	"github.com/tomtom215/murmur/internal/auth"
	"github.com/tomtom215/murmur/internal/authz"
	"github.com/tomtom215/murmur/internal/chat"
	"github.com/tomtom215/murmur/internal/config"
	"github.com/tomtom215/murmur/internal/deadletter"
	"github.com/tomtom215/murmur/internal/fanout"
	"github.com/tomtom215/murmur/internal/gateway"
	"github.com/tomtom215/murmur/internal/identity"
	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/metrics"
	"github.com/tomtom215/murmur/internal/supervisor"
	"github.com/tomtom215/murmur/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Fields: map[string]string{"service": "murmur"},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatal().Err(err).Msg("Murmur exited with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run wires every component, serves until ctx is cancelled and then
// releases the connections in reverse order of creation.
//
//nolint:gocyclo // sequential startup
func run(ctx context.Context, cfg *config.Config) error {
	mode, err := fanout.ParseMode(cfg.Fanout.Mode)
	if err != nil {
		return err
	}

	self := identity.New()
	if cfg.Server.InstanceID != "" {
		if self, err = identity.Parse(cfg.Server.InstanceID); err != nil {
			return err
		}
	}
	logging.Info().
		Str("instance", self.String()).
		Str("fanout_mode", mode.String()).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting Murmur")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// === REDIS ===
	rdb := newRedisClient(cfg.Redis, 0)
	defer closeQuietly("redis", rdb.Close)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout+time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logging.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis not reachable yet, continuing")
	}
	cancel()

	var feedSub fanout.RedisSubscriber
	if mode == fanout.ModePubSub {
		feedClient := newRedisClient(cfg.Redis, 2)
		defer closeQuietly("redis feed", feedClient.Close)
		feedSub = feedClient
	}

	// === BROKER (broker mode only) ===
	var broker *BrokerComponents
	if mode == fanout.ModeBroker {
		broker, err = InitBroker(ctx, cfg, self.String(), logging.NewWatermillAdapter())
		if err != nil {
			return err
		}
		defer broker.Shutdown(ctx)
	}

	// === FANOUT PUBLISHER ===
	sender, err := fanout.NewSender(mode, fanout.Transports{
		Redis:        rdb,
		Channel:      cfg.Fanout.Channel,
		StreamKey:    cfg.Fanout.StreamKey,
		StreamMaxLen: cfg.Fanout.StreamMaxLen,
		Broker:       broker.Publisher(),
	})
	if err != nil {
		return fmt.Errorf("create fanout sender: %w", err)
	}

	opts := []fanout.ResilientOption{fanout.WithMetrics(m)}
	if cfg.Fanout.Breaker.Enabled {
		opts = append(opts, fanout.WithBreaker(fanout.NewCircuitBreaker(fanout.BreakerConfig{
			Name:             "fanout-" + mode.String(),
			MaxRequests:      cfg.Fanout.Breaker.MaxRequests,
			Interval:         cfg.Fanout.Breaker.Interval,
			Timeout:          cfg.Fanout.Breaker.Timeout,
			FailureThreshold: cfg.Fanout.Breaker.FailureThreshold,
		}, m)))
	}

	var deadLetters deadletter.Store
	if cfg.Fanout.DeadLetter.Enabled {
		dl, err := deadletter.Open(deadletter.Config{
			Path: cfg.Fanout.DeadLetter.Path,
			TTL:  cfg.Fanout.DeadLetter.TTL,
		})
		if err != nil {
			return fmt.Errorf("open dead letter store: %w", err)
		}
		defer closeQuietly("dead letters", dl.Close)
		deadLetters = dl
		opts = append(opts, fanout.WithDeadLetters(dl))
		logging.Info().Str("path", cfg.Fanout.DeadLetter.Path).Msg("Dead letter store enabled")
	}

	resilient := fanout.NewResilientSender(sender, fanout.RetryConfig{
		MaxRetries:      cfg.Fanout.Retry.MaxRetries,
		InitialInterval: cfg.Fanout.Retry.InitialInterval,
		MaxInterval:     cfg.Fanout.Retry.MaxInterval,
	}, opts...)

	gate := logging.NewSampleGate(cfg.Fanout.LogSampleRate, cfg.Fanout.LogSampleSeed)
	publisher := fanout.NewPublisher(resilient, self, fanout.PublisherConfig{
		QueueSize:    cfg.Fanout.QueueSize,
		SendTimeout:  cfg.Fanout.PublishTimeout,
		DrainTimeout: cfg.Supervisor.ShutdownTimeout / 2,
		LogGate:      gate,
		Metrics:      m,
	})
	defer closeQuietly("fanout publisher", publisher.Close)

	// === GATEWAY ===
	hub := gateway.NewHub(m, 0)

	var consumer *gateway.Consumer
	feed, err := fanout.NewFeed(mode, feedSub, cfg.Fanout.Channel, broker.JetStream(), cfg.NATS.StreamName)
	switch {
	case errors.Is(err, fanout.ErrNoFeed):
		logging.Warn().
			Str("fanout_mode", mode.String()).
			Msg("Fanout mode has no live feed; this instance publishes but does not receive peer events")
	case err != nil:
		return fmt.Errorf("create fanout feed: %w", err)
	default:
		consumer = gateway.NewConsumer(feed, hub, self, gateway.ConsumerConfig{
			CloseTimeout: 5 * time.Second,
			LogGate:      gate,
			Metrics:      m,
		})
	}

	// === ACTIVITY ===
	recency := activity.NewRedisRecencyStore(rdb, cfg.Activity.Key)
	batcher, err := activity.NewBatcher(recency, activity.Config{
		BatchSize:       cfg.Activity.BatchSize,
		FlushInterval:   cfg.Activity.FlushInterval,
		MaxKeep:         cfg.Activity.MaxKeep,
		MaxRetry:        cfg.Activity.MaxRetry,
		BackoffBase:     cfg.Activity.BackoffBase,
		BackoffMax:      cfg.Activity.BackoffMax,
		ShutdownTimeout: cfg.Activity.ShutdownTimeout,
	}, m)
	if err != nil {
		return fmt.Errorf("create activity batcher: %w", err)
	}

	// === AUTH + HTTP ===
	jwtManager, err := auth.NewJWTManager(cfg.Security.JWTSecret, 0)
	if err != nil {
		return fmt.Errorf("initialize JWT manager: %w", err)
	}

	wsHandler := gateway.NewHandler(hub, jwtManager, batcher, gateway.HandlerConfig{
		AllowedOrigins: cfg.Security.AllowedOrigins,
		ClientRate:     cfg.Security.ClientRate,
		ClientBurst:    cfg.Security.ClientBurst,
	}, m)

	var resolver chat.RecipientResolver = chat.NewRedisResolver(rdb, cfg.Chat.MembersPrefix)
	if cfg.Chat.MembersCacheSize > 0 {
		resolver = chat.NewCachedResolver(resolver, cfg.Chat.MembersCacheSize, cfg.Chat.MembersCacheTTL)
	}
	dispatcher := chat.NewDispatcher(hub, publisher, resolver)

	authzCfg := authz.DefaultEnforcerConfig()
	authzCfg.PolicyPath = cfg.Security.PolicyPath
	authzCfg.DefaultRole = cfg.Security.DefaultRole
	enforcer, err := authz.NewEnforcer(authzCfg)
	if err != nil {
		return fmt.Errorf("initialize authorization: %w", err)
	}

	checks := map[string]api.Checker{"redis": redisCheck(rdb)}
	if broker != nil {
		checks["nats"] = broker.Check
	}

	deps := api.Deps{
		Gateway:     wsHandler,
		Dispatcher:  dispatcher,
		Auth:        jwtManager,
		Recent:      recency,
		Activity:    batcher,
		DeadLetters: deadLetters,
		Replayer:    sender,
		Authorize:   authz.NewMiddleware(enforcer, m).AuthorizeRequest,
		Gatherer:    reg,
		Metrics:     m,
		Checks:      checks,
		Instance:    self.String(),
		FanoutMode:  mode.String(),
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	router := api.NewRouter(api.NewHandler(deps), api.MiddlewareConfig{
		AllowedOrigins:    cfg.Security.AllowedOrigins,
		RateLimitRequests: cfg.Security.RateLimitReqs,
		RateLimitWindow:   cfg.Security.RateLimitWindow,
		RateLimitDisabled: cfg.Security.RateLimitDisabled,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// === SUPERVISOR TREE ===
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddMessagingService(hub)
	tree.AddMessagingService(publisher)
	tree.AddMessagingService(batcher)
	if consumer != nil {
		tree.AddMessagingService(consumer)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Msg("Starting supervisor tree...")
	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}
	return nil
}

func closeQuietly(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logging.Warn().Err(err).Str("resource", name).Msg("Close failed")
	}
}
