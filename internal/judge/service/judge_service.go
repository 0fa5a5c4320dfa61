package service

import (
	"context"
	"fmt"
	"time"

	"judgemicro/internal/common/mq"
	"judgemicro/internal/judge/model"
	"judgemicro/internal/judge/repository"
	"judgemicro/internal/judge/sandbox/archive"
	"judgemicro/internal/judge/sandbox/engine"
	"judgemicro/internal/judge/sandbox/lang"
	"judgemicro/internal/judge/sandbox/validate"
	"judgemicro/internal/judge/sandbox/verdict"
)

// Engine is the sandbox pipeline the service drives.
type Engine interface {
	Run(ctx context.Context, task engine.Task) *verdict.Verdict
	RunBatch(ctx context.Context, task engine.BatchTask) []*verdict.Verdict
}

// Pinger reports whether the container runtime is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service runs judge submissions through the sandbox engine behind a
// bounded worker pool.
type Service struct {
	engine     Engine
	registry   *lang.Registry
	statusRepo *repository.StatusRepository
	statsRepo  *repository.StatsRepository
	publisher  repository.VerdictPublisher
	queue      mq.MessageQueue
	taskTopic  string
	pinger     Pinger

	retryTopic        string
	deadLetter        string
	poolRetryMax      int
	poolRetryBase     time.Duration
	poolRetryMaxDelay time.Duration

	defaults      engine.Limits
	statusTimeout time.Duration
	sem           chan struct{}
}

// Config holds service dependencies and settings. Engine and Registry
// are required, the async dependencies are optional and leave the
// service HTTP-only when absent.
type Config struct {
	Engine        Engine
	Registry      *lang.Registry
	StatusRepo    *repository.StatusRepository
	StatsRepo     *repository.StatsRepository
	Publisher     repository.VerdictPublisher
	Queue         mq.MessageQueue
	TaskTopic     string
	Pinger        Pinger
	DefaultLimits engine.Limits
	StatusTimeout time.Duration
	// WorkerPoolSize bounds concurrent sandbox pipelines, default 4.
	WorkerPoolSize int

	// Requeue policy for tasks that arrive while the pool is full.
	RetryTopic        string
	DeadLetterTopic   string
	PoolRetryMax      int
	PoolRetryBase     time.Duration
	PoolRetryMaxDelay time.Duration
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("language registry is required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Service{
		engine:            cfg.Engine,
		registry:          cfg.Registry,
		statusRepo:        cfg.StatusRepo,
		statsRepo:         cfg.StatsRepo,
		publisher:         cfg.Publisher,
		queue:             cfg.Queue,
		taskTopic:         cfg.TaskTopic,
		pinger:            cfg.Pinger,
		retryTopic:        cfg.RetryTopic,
		deadLetter:        cfg.DeadLetterTopic,
		poolRetryMax:      cfg.PoolRetryMax,
		poolRetryBase:     cfg.PoolRetryBase,
		poolRetryMaxDelay: cfg.PoolRetryMaxDelay,
		defaults:          cfg.DefaultLimits.WithDefaults(),
		statusTimeout:     cfg.StatusTimeout,
		sem:               make(chan struct{}, poolSize),
	}, nil
}

// Registry exposes the language registry backing this service.
func (s *Service) Registry() *lang.Registry {
	return s.registry
}

// DefaultLimits returns the deployment-level engine defaults.
func (s *Service) DefaultLimits() engine.Limits {
	return s.defaults
}

// Submit evaluates one submission and returns its verdict.
func (s *Service) Submit(ctx context.Context, req model.JudgeRequest) (*model.JudgeResponse, error) {
	task, err := s.buildTask(req)
	if err != nil {
		return nil, err
	}
	if err := s.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer s.releaseSlot()

	v := s.engine.Run(ctx, task)
	resp := model.ResponseFromVerdict(v)
	s.recordOutcome(ctx, resp.Status)
	return &resp, nil
}

// Batch evaluates independent submissions concurrently over the worker
// pool. Results align positionally with the request tests.
func (s *Service) Batch(ctx context.Context, req model.BatchJudgeRequest) (*model.BatchJudgeResponse, error) {
	if err := validate.BatchSize(len(req.Tests)); err != nil {
		return nil, err
	}
	// Any malformed test rejects the whole batch before a single
	// sandbox is provisioned.
	tasks := make([]engine.Task, len(req.Tests))
	for i, test := range req.Tests {
		task, err := s.buildTask(test)
		if err != nil {
			return nil, err
		}
		tasks[i] = task
	}

	start := time.Now()
	verdicts := s.fanOut(ctx, tasks, req.ShowProgress)

	results := make([]model.JudgeResponse, len(verdicts))
	for i, v := range verdicts {
		results[i] = model.ResponseFromVerdict(v)
		s.recordOutcome(ctx, results[i].Status)
	}
	summary := model.SummaryFromVerdicts(verdict.Summarize(verdicts, time.Since(start).Seconds()))
	return &model.BatchJudgeResponse{Results: results, Summary: summary}, nil
}

// BatchOptimized compiles the submission once and evaluates every
// config against the same build inside a single sandbox.
func (s *Service) BatchOptimized(ctx context.Context, req model.OptimizedBatchRequest) (*model.BatchJudgeResponse, error) {
	if err := validate.BatchSize(len(req.Configs)); err != nil {
		return nil, err
	}
	if err := validate.Code(req.UserCode); err != nil {
		return nil, err
	}
	standard, rawFlags := compilerSettings(req.CompilerSettings)
	language, err := validate.Language(s.registry, req.Language, standard)
	if err != nil {
		return nil, err
	}
	flags, err := validate.Flags(rawFlags)
	if err != nil {
		return nil, err
	}
	limits, err := s.resolveLimits(req.ResourceLimits)
	if err != nil {
		return nil, err
	}

	configs := make([][]byte, len(req.Configs))
	for i, tc := range req.Configs {
		doc, err := buildConfig(language, tc.SolveParams, tc.Expected, tc.FunctionType, standard, flags)
		if err != nil {
			return nil, err
		}
		if err := validate.Config(doc); err != nil {
			return nil, err
		}
		configs[i] = doc
	}

	// The whole pipeline shares one container, so it occupies one
	// pool slot regardless of config count.
	if err := s.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer s.releaseSlot()

	start := time.Now()
	verdicts := s.engine.RunBatch(ctx, engine.BatchTask{
		Language: language,
		Source:   []byte(req.UserCode),
		Configs:  configs,
		Limits:   limits,
		ShowLogs: req.ShowLogs,
	})

	results := make([]model.JudgeResponse, len(verdicts))
	for i, v := range verdicts {
		results[i] = model.ResponseFromVerdict(v)
		s.recordOutcome(ctx, results[i].Status)
	}
	summary := model.SummaryFromVerdicts(verdict.Summarize(verdicts, time.Since(start).Seconds()))
	summary.OptimizationNote = fmt.Sprintf("compiled once and reused across %d tests", len(configs))
	return &model.BatchJudgeResponse{Results: results, Summary: summary}, nil
}

// buildTask validates one submission and converts it to an engine task.
func (s *Service) buildTask(req model.JudgeRequest) (engine.Task, error) {
	if err := validate.Code(req.UserCode); err != nil {
		return engine.Task{}, err
	}
	standard, rawFlags := compilerSettings(req.CompilerSettings)
	language, err := validate.Language(s.registry, req.Language, standard)
	if err != nil {
		return engine.Task{}, err
	}
	flags, err := validate.Flags(rawFlags)
	if err != nil {
		return engine.Task{}, err
	}
	limits, err := s.resolveLimits(req.ResourceLimits)
	if err != nil {
		return engine.Task{}, err
	}
	config, err := buildConfig(language, req.SolveParams, req.Expected, req.FunctionType, standard, flags)
	if err != nil {
		return engine.Task{}, err
	}
	if err := validate.Config(config); err != nil {
		return engine.Task{}, err
	}
	return engine.Task{
		Language: language,
		Source:   []byte(req.UserCode),
		Config:   config,
		Limits:   limits,
		ShowLogs: req.ShowLogs,
	}, nil
}

// resolveLimits validates requested overrides and merges them over the
// deployment defaults.
func (s *Service) resolveLimits(rl *model.ResourceLimits) (engine.Limits, error) {
	if rl == nil {
		return s.defaults, nil
	}
	requested := engine.Limits{
		CompileTimeout:   rl.CompileTimeout,
		ExecutionTimeout: rl.ExecutionTimeout,
		Memory:           rl.MemoryLimit,
		CPU:              rl.CPULimit,
	}
	if err := validate.Limits(requested); err != nil {
		return engine.Limits{}, err
	}
	limits := s.defaults
	if requested.CompileTimeout > 0 {
		limits.CompileTimeout = requested.CompileTimeout
	}
	if requested.ExecutionTimeout > 0 {
		limits.ExecutionTimeout = requested.ExecutionTimeout
	}
	if requested.Memory != "" {
		limits.Memory = requested.Memory
	}
	if requested.CPU > 0 {
		limits.CPU = requested.CPU
	}
	return limits, nil
}

func compilerSettings(cs *model.CompilerSettings) (standard, flags string) {
	if cs == nil {
		return "", ""
	}
	return cs.Standard, cs.Flags
}

// buildConfig renders the config.json document the runner consumes.
// The standard key is only written when the request names one, the
// runner applies its own default otherwise.
func buildConfig(language lang.Language, params []model.SolveParam, expected map[string]any, functionType, standard string, flags []string) ([]byte, error) {
	if params == nil {
		params = []model.SolveParam{}
	}
	doc := map[string]any{
		"solve_params":  params,
		"expected":      expected,
		"function_type": functionType,
	}
	if standard != "" && language.StandardKey != "" {
		doc[language.StandardKey] = standard
	}
	if len(flags) > 0 {
		doc["compiler_flags"] = flags
	}
	return archive.MarshalConfig(doc)
}
