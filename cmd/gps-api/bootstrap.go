package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rafiff23/Mahligai-GPS/config"
	"github.com/rafiff23/Mahligai-GPS/internal/blobstore/diskblob"
	"github.com/rafiff23/Mahligai-GPS/internal/broker/kafka"
	"github.com/rafiff23/Mahligai-GPS/internal/cache/rediscache"
	"github.com/rafiff23/Mahligai-GPS/internal/services/auth"
	"github.com/rafiff23/Mahligai-GPS/internal/services/tracking"
	"github.com/rafiff23/Mahligai-GPS/internal/storage/pgfleet"
)

type gpsAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     gpsAPIOpts
	svc      *tracking.Service
	authSvc  *auth.Service
	rl       *rediscache.RateLimiter
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapGPSAPI() *gpsAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.GPS.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.GPS.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "gps-api"
	}
	statusTopic := cfg.Kafka.StatusUpdatedTopicName
	if statusTopic == "" {
		statusTopic = "driver.status.updated"
	}
	positionTopic := cfg.Kafka.PositionReportedTopicName
	if positionTopic == "" {
		positionTopic = "driver.position.reported"
	}
	cacheTTL := time.Duration(cfg.GPS.LatestStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	trackPerMin := int64(cfg.GPS.TrackRateLimitPerMinute)
	if trackPerMin <= 0 {
		trackPerMin = 60
	}
	blobDir := cfg.Blob.Dir
	if blobDir == "" {
		blobDir = "./blobs"
	}
	tz := cfg.GPS.Timezone
	if tz == "" {
		tz = "Asia/Jakarta"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		panic(fmt.Sprintf("unknown timezone %q: %v", tz, err))
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	blobs, err := diskblob.New(blobDir)
	if err != nil {
		panic(fmt.Sprintf("blob dir %s: %v", blobDir, err))
	}

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, positionTopic, consumerGroup)

	svc := tracking.New(st, blobs, rc, producer, statusTopic, cacheTTL, loc)
	authSvc := auth.New(st)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &gpsAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: gpsAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			positionTopic: positionTopic,
			consumerGroup: consumerGroup,
			trackPerMin:   trackPerMin,
		},
		svc:      svc,
		authSvc:  authSvc,
		rl:       rl,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgfleet.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgfleet.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *gpsAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *gpsAPIApp) Run() error {
	return runGPSAPI(a.ctx, a.opts, a.svc, a.authSvc, a.rl, a.consumer)
}
