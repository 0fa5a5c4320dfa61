package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"judgemicro/internal/common/cache"
	commonmw "judgemicro/internal/common/http/middleware"
	"judgemicro/internal/common/mq"
	"judgemicro/internal/judge/controller"
	"judgemicro/internal/judge/repository"
	"judgemicro/internal/judge/sandbox/driver"
	"judgemicro/internal/judge/sandbox/engine"
	"judgemicro/internal/judge/sandbox/lang"
	"judgemicro/internal/judge/service"
	"judgemicro/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge-micro.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	drv, err := driver.NewDocker(driver.DockerConfig{
		Host:      appCfg.Sandbox.DockerHost,
		OpTimeout: appCfg.Sandbox.OpTimeout,
	})
	if err != nil {
		logger.Error(context.Background(), "init docker driver failed", zap.Error(err))
		return
	}
	defer func() {
		_ = drv.Close()
	}()

	svcCfg := service.Config{
		Engine:         engine.New(drv),
		Registry:       lang.NewRegistry(),
		Pinger:         drv,
		DefaultLimits:  appCfg.Engine.toLimits(),
		WorkerPoolSize: appCfg.Worker.PoolSize,
		StatusTimeout:  appCfg.Status.Timeout,
	}

	// Redis is optional. Without it async submissions keep working but
	// status lookups report the store as unconfigured.
	if appCfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
		defer func() {
			_ = redisCache.Close()
		}()
		svcCfg.StatusRepo = repository.NewStatusRepository(redisCache, appCfg.Status.TTL)
		svcCfg.StatsRepo = repository.NewStatsRepository(redisCache)
	}

	// Kafka is optional. Without brokers the service runs HTTP-only.
	var mqClient *mq.KafkaQueue
	if len(appCfg.Kafka.Brokers) > 0 {
		mqClient, err = mq.NewKafkaQueue(appCfg.Kafka.toMQConfig())
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = mqClient.Close()
		}()
		svcCfg.Queue = mqClient
		svcCfg.TaskTopic = appCfg.Kafka.TaskTopic
		svcCfg.Publisher = repository.NewMQVerdictPublisher(mqClient, appCfg.Kafka.VerdictTopic)
		svcCfg.RetryTopic = appCfg.Kafka.RetryTopic
		svcCfg.DeadLetterTopic = appCfg.Kafka.DeadLetter
		svcCfg.PoolRetryMax = appCfg.Kafka.PoolRetryMax
		svcCfg.PoolRetryBase = appCfg.Kafka.PoolRetryBase
		svcCfg.PoolRetryMaxDelay = appCfg.Kafka.PoolRetryMaxD
	}

	judgeSvc, err := service.NewService(svcCfg)
	if err != nil {
		logger.Error(context.Background(), "init judge service failed", zap.Error(err))
		return
	}

	if mqClient != nil {
		weightedTopics := make([]mq.WeightedTopic, 0, len(appCfg.Kafka.Topics))
		for _, topic := range appCfg.Kafka.Topics {
			weight, ok := appCfg.Kafka.TopicWeights[topic]
			if !ok || weight <= 0 {
				logger.Error(context.Background(), "invalid topic weight", zap.String("topic", topic), zap.Int("weight", weight))
				return
			}
			weightedTopics = append(weightedTopics, mq.WeightedTopic{Topic: topic, Weight: weight})
		}

		limiter := mq.NewTokenLimiter(appCfg.Worker.PoolSize)
		err = mqClient.SubscribeWeighted(context.Background(), weightedTopics, judgeSvc.HandleMessage, &mq.SubscribeOptions{
			ConsumerGroup:   appCfg.Kafka.ConsumerGroup,
			PrefetchCount:   appCfg.Kafka.PrefetchCount,
			Concurrency:     appCfg.Kafka.Concurrency,
			MaxRetries:      appCfg.Kafka.MaxRetries,
			RetryDelay:      appCfg.Kafka.RetryDelay,
			DeadLetterTopic: appCfg.Kafka.DeadLetter,
			MessageTTL:      appCfg.Kafka.MessageTTL,
		}, limiter)
		if err != nil {
			logger.Error(context.Background(), "subscribe kafka failed", zap.Error(err))
			return
		}
		if err := mqClient.Start(); err != nil {
			logger.Error(context.Background(), "start kafka consumer failed", zap.Error(err))
			return
		}
	}

	httpServer := buildHTTPServer(appCfg.Server, judgeSvc)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	if mqClient != nil {
		_ = mqClient.Stop()
	}
}

func buildHTTPServer(cfg ServerConfig, judgeSvc *service.Service) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	controller.NewJudgeController(judgeSvc).RegisterRoutes(router)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
