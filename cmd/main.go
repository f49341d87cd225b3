package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"engage-ws/internal/clientinfo"
	"engage-ws/internal/config"
	"engage-ws/internal/delivery"
	"engage-ws/internal/engage"
	"engage-ws/internal/hub"
	"engage-ws/internal/infrastructure/kafka"
	mongostore "engage-ws/internal/infrastructure/mongo"
	"engage-ws/internal/infrastructure/redis"
	"engage-ws/internal/logger"
	"engage-ws/internal/metrics"
	"engage-ws/internal/ratelimit"
	"engage-ws/internal/store"
	"engage-ws/internal/validation"
	"engage-ws/internal/webhook"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	log := logger.New(logger.Config{
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
		ServiceName: "engage-ws",
	})
	defer func() { _ = log.Sync() }()

	log.Info("starting visitor engagement server",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.Strings("kafkaBrokers", cfg.KafkaBrokers),
		zap.String("corsOrigins", cfg.GetCORSOrigins()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence. An empty MONGO_URI selects the in-memory store, which is
	// enough for local development and demos.
	var st store.Store
	if cfg.MongoURI != "" {
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatal("mongodb connection failed", zap.Error(err))
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		ms := mongostore.NewStore(client.Database(cfg.MongoDB))
		if err := ms.EnsureIndexes(ctx); err != nil {
			log.Fatal("mongodb index setup failed", zap.Error(err))
		}
		st = ms
		log.Info("connected to mongodb", zap.String("database", cfg.MongoDB))
	} else {
		st = store.NewMemory()
		log.Warn("MONGO_URI not set, using in-memory store")
	}

	// Cross-instance fanout over Redis pub/sub. A dead Redis downgrades the
	// hub to single-instance mode instead of failing startup.
	redisClient := redis.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	defer func() { _ = redisClient.Close() }()

	var fanout hub.Fanout
	redisFanout := redis.NewFanout(redisClient, log)
	if err := redisClient.Ping(ctx); err != nil {
		log.Warn("redis unavailable, broadcasts stay local", zap.Error(err))
	} else {
		fanout = redisFanout
		log.Info("redis connection successful",
			zap.String("addr", cfg.RedisHost+":"+cfg.RedisPort))
	}

	h := hub.New(log, fanout)
	if fanout != nil {
		if err := redisFanout.Subscribe(ctx, h.HandleRemote); err != nil {
			log.Warn("fanout subscribe failed, broadcasts stay local", zap.Error(err))
		}
	}

	// Lead side channel: REST-created leads are published to Kafka and the
	// consumer feeds them to the webhook dispatcher.
	dispatcher := webhook.NewDispatcher(st, cfg.WebhookWorkers, cfg.WebhookTimeout, log)
	defer dispatcher.Close()

	producer := kafka.NewLeadProducer(cfg.KafkaBrokers, cfg.LeadEventsTopic, log)
	defer func() { _ = producer.Close() }()

	consumer := kafka.NewLeadConsumer(cfg.KafkaBrokers, "engage-ws-group", cfg.LeadEventsTopic, dispatcher, log)
	defer func() { _ = consumer.Close() }()
	consumer.Start(ctx)

	resolver := clientinfo.NewResolver(cfg.GeoIPDatabase, cfg.IsDevelopment(), log)
	defer func() { _ = resolver.Close() }()

	scheduler := engage.NewScheduler(st, h, cfg.EngageDelay, cfg.WelcomeText, log)
	defer scheduler.Stop()

	validate := validation.New()
	aggregator := metrics.NewAggregator(st, log)

	wsManager := delivery.NewWSManager(
		st,
		h,
		ratelimit.New(cfg.RateLimitEvents, cfg.RateLimitWindow),
		validate,
		scheduler,
		aggregator,
		resolver,
		log,
	)

	server := delivery.NewServer(cfg, st, validate, wsManager, aggregator, producer, dispatcher, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		if err := server.Shutdown(); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("server stopped")
}
