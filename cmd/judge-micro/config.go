package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"judgemicro/internal/common/cache"
	"judgemicro/internal/common/mq"
	"judgemicro/internal/judge/sandbox/engine"
	"judgemicro/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr    = "0.0.0.0:8000"
	defaultReadTimeout = 30 * time.Second
	// Synchronous batches hold the response open for the whole run.
	defaultWriteTimeout    = 10 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultStatusTTL       = 24 * time.Hour
	defaultStatusTimeout   = 3 * time.Second
	defaultWorkerPool      = 4
	defaultTaskTopic       = "judge.task"
	defaultVerdictTopic    = "judge.verdict"
	defaultRetryTopic      = "judge.task.retry"
	defaultConsumerGroup   = "judge-micro"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// SandboxConfig holds container runtime settings.
type SandboxConfig struct {
	// DockerHost overrides the daemon address, empty uses DOCKER_HOST.
	DockerHost string        `yaml:"dockerHost"`
	OpTimeout  time.Duration `yaml:"opTimeout"`
}

// EngineConfig holds the deployment-level execution limits applied to
// submissions that do not request their own.
type EngineConfig struct {
	CompileTimeout    int     `yaml:"compileTimeout"`
	ExecutionTimeout  int     `yaml:"executionTimeout"`
	MemoryLimit       string  `yaml:"memoryLimit"`
	CPULimit          float64 `yaml:"cpuLimit"`
	ContinueOnTimeout bool    `yaml:"continueOnTimeout"`
}

func (e EngineConfig) toLimits() engine.Limits {
	return engine.Limits{
		CompileTimeout:    e.CompileTimeout,
		ExecutionTimeout:  e.ExecutionTimeout,
		Memory:            e.MemoryLimit,
		CPU:               e.CPULimit,
		ContinueOnTimeout: e.ContinueOnTimeout,
	}
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize int `yaml:"poolSize"`
}

// KafkaConfig holds Kafka settings. Leaving brokers empty disables the
// async path and the service runs HTTP-only.
type KafkaConfig struct {
	Brokers       []string       `yaml:"brokers"`
	ClientID      string         `yaml:"clientID"`
	MinBytes      int            `yaml:"minBytes"`
	MaxBytes      int            `yaml:"maxBytes"`
	MaxWait       time.Duration  `yaml:"maxWait"`
	BatchSize     int            `yaml:"batchSize"`
	BatchTimeout  time.Duration  `yaml:"batchTimeout"`
	DialTimeout   time.Duration  `yaml:"dialTimeout"`
	ReadTimeout   time.Duration  `yaml:"readTimeout"`
	WriteTimeout  time.Duration  `yaml:"writeTimeout"`
	RequiredAcks  int            `yaml:"requiredAcks"`
	Compression   string         `yaml:"compression"`
	Topics        []string       `yaml:"topics"`
	TaskTopic     string         `yaml:"taskTopic"`
	VerdictTopic  string         `yaml:"verdictTopic"`
	ConsumerGroup string         `yaml:"consumerGroup"`
	PrefetchCount int            `yaml:"prefetchCount"`
	Concurrency   int            `yaml:"concurrency"`
	MaxRetries    int            `yaml:"maxRetries"`
	RetryDelay    time.Duration  `yaml:"retryDelay"`
	RetryTopic    string         `yaml:"retryTopic"`
	PoolRetryMax  int            `yaml:"poolRetryMax"`
	PoolRetryBase time.Duration  `yaml:"poolRetryBaseDelay"`
	PoolRetryMaxD time.Duration  `yaml:"poolRetryMaxDelay"`
	DeadLetter    string         `yaml:"deadLetterTopic"`
	MessageTTL    time.Duration  `yaml:"messageTTL"`
	TopicWeights  map[string]int `yaml:"topicWeights"`
}

// StatusConfig holds async status persistence settings.
type StatusConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

// AppConfig holds judge-micro config.
type AppConfig struct {
	Server  ServerConfig      `yaml:"server"`
	Logger  logger.Config     `yaml:"logger"`
	Sandbox SandboxConfig     `yaml:"sandbox"`
	Engine  EngineConfig      `yaml:"engine"`
	Worker  WorkerConfig      `yaml:"worker"`
	Kafka   KafkaConfig       `yaml:"kafka"`
	Redis   cache.RedisConfig `yaml:"redis"`
	Status  StatusConfig      `yaml:"status"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = defaultWorkerPool
	}
	if cfg.Redis.Addr != "" {
		applyRedisDefaults(&cfg.Redis)
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Status.Timeout == 0 {
		cfg.Status.Timeout = defaultStatusTimeout
	}
	if len(cfg.Kafka.Brokers) > 0 {
		applyKafkaDefaults(&cfg.Kafka)
	}
	return &cfg, nil
}

// applyEnvOverrides layers the deployment environment knobs over the
// file config. Invalid values fail startup instead of silently running
// with limits the operator did not set.
func applyEnvOverrides(cfg *AppConfig) error {
	if v := os.Getenv("CONTAINER_CPU"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid CONTAINER_CPU %q", v)
		}
		cfg.Engine.CPULimit = f
	}
	if v := os.Getenv("CONTAINER_MEM"); v != "" {
		cfg.Engine.MemoryLimit = v
	}
	if v := os.Getenv("CONTAINER_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid CONTAINER_TIMEOUT %q", v)
		}
		cfg.Engine.ExecutionTimeout = n
	}
	if v := os.Getenv("COMPILE_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid COMPILE_TIMEOUT %q", v)
		}
		cfg.Engine.CompileTimeout = n
	}
	if v := os.Getenv("CONTINUE_ON_TIMEOUT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CONTINUE_ON_TIMEOUT %q", v)
		}
		cfg.Engine.ContinueOnTimeout = b
	}
	if v := os.Getenv("WORKER_POOL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid WORKER_POOL %q", v)
		}
		cfg.Worker.PoolSize = n
	}
	return nil
}

func applyKafkaDefaults(cfg *KafkaConfig) {
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = defaultConsumerGroup
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = []string{defaultTaskTopic}
	}
	if cfg.TaskTopic == "" {
		cfg.TaskTopic = cfg.Topics[0]
	}
	if cfg.VerdictTopic == "" {
		cfg.VerdictTopic = defaultVerdictTopic
	}
	if cfg.RetryTopic == "" {
		cfg.RetryTopic = defaultRetryTopic
	}
	if cfg.PoolRetryMax <= 0 {
		cfg.PoolRetryMax = 5
	}
	if cfg.PoolRetryBase == 0 {
		cfg.PoolRetryBase = time.Second
	}
	if cfg.PoolRetryMaxD == 0 {
		cfg.PoolRetryMaxD = 30 * time.Second
	}
	if len(cfg.TopicWeights) == 0 {
		cfg.TopicWeights = defaultTopicWeights(cfg.Topics)
	}
}

func defaultTopicWeights(topics []string) map[string]int {
	weights := []int{8, 4, 2, 1}
	out := make(map[string]int, len(topics))
	for i, topic := range topics {
		if topic == "" {
			continue
		}
		if i < len(weights) {
			out[topic] = weights[i]
			continue
		}
		out[topic] = 1
	}
	return out
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	cfg := mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		MinBytes:     k.MinBytes,
		MaxBytes:     k.MaxBytes,
		MaxWait:      k.MaxWait,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		ReadTimeout:  k.ReadTimeout,
		WriteTimeout: k.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
	}
	cfg.Compression = parseCompression(k.Compression)
	return cfg
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}
