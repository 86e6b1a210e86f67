package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/amq10717-bit/SkillUp-sub001/internal/config"
	"github.com/amq10717-bit/SkillUp-sub001/internal/directory"
	"github.com/amq10717-bit/SkillUp-sub001/internal/events"
	"github.com/amq10717-bit/SkillUp-sub001/internal/httpapi"
	"github.com/amq10717-bit/SkillUp-sub001/internal/logger"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store/mongostore"
	"github.com/amq10717-bit/SkillUp-sub001/internal/upload"
	"github.com/amq10717-bit/SkillUp-sub001/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(logger.Config{Development: cfg.Development(), Level: cfg.App.LogLevel})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	st, err := mongostore.Connect(ctx, mongostore.Config{
		URI:          cfg.Mongo.URI,
		Database:     cfg.Mongo.Database,
		Transactions: cfg.Mongo.Transactions,
	})
	cancel()
	if err != nil {
		zl.Fatalw("mongo connect failed", "uri", cfg.Mongo.URI, "err", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, zl)
	defer producer.Close()

	resolver := users.NewResolver(st, zl)
	if rdb != nil {
		resolver = resolver.WithCache(rdb, cfg.ProfileTTL)
	}
	engine := directory.NewEngine(st, resolver, st, producer, zl)

	srv := httpapi.NewServer(cfg, st, engine, resolver, producer, zl)
	if cfg.S3.Enabled {
		s3up, err := upload.NewS3Uploader(context.Background(), cfg.S3.Region, cfg.S3.Bucket, 24*time.Hour)
		if err != nil {
			zl.Fatalw("s3 uploader init failed", "err", err)
		}
		srv.WithPipeline(upload.NewPipeline(s3up, zl))
	}

	go func() {
		addr := ":" + strconv.Itoa(cfg.App.Port)
		zl.Infow("listening", "addr", addr)
		if err := srv.Listen(addr); err != nil {
			zl.Fatalw("server listen failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	zl.Infow("shutting down")
	_ = srv.Shutdown()
}
