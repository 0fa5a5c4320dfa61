// Package engine drives judge executions end to end: it provisions a
// runner container, stages the submission, compiles and runs it under
// the configured limits, and normalizes whatever the runner left
// behind into a verdict. Failures along the way fold into ERROR-class
// verdicts instead of propagating as errors.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"judgemicro/internal/judge/sandbox/archive"
	"judgemicro/internal/judge/sandbox/driver"
	"judgemicro/internal/judge/sandbox/lang"
	"judgemicro/internal/judge/sandbox/verdict"
	pkgerrors "judgemicro/pkg/errors"
	"judgemicro/pkg/utils/logger"
)

const (
	// workDir is where runner images expect the staged submission.
	workDir = "/app"
	// resultPath is where the runner harness writes its outcome.
	resultPath = "/app/result.json"

	// exitTimeout is the exit code coreutils timeout reports when it
	// had to kill the command.
	exitTimeout = 124

	// teardownGrace is how long a container gets to stop before SIGKILL.
	teardownGrace = time.Second

	// deadlineSlack pads the driver-side exec deadline past the
	// in-container timeout wrapper, which remains the primary limit.
	deadlineSlack = 10 * time.Second

	// continueCeiling caps a continue-on-timeout run at this multiple
	// of the execution timeout.
	continueCeiling = 5
)

// Limits bounds one execution.
type Limits struct {
	// CompileTimeout and ExecutionTimeout are wall-clock seconds.
	CompileTimeout   int
	ExecutionTimeout int
	// Memory is a docker-style quantity such as "128m".
	Memory string
	// CPU is the core budget granted to the container.
	CPU float64
	// ContinueOnTimeout lets tests run to completion instead of being
	// killed at ExecutionTimeout. A hard ceiling still applies.
	ContinueOnTimeout bool
}

// DefaultLimits fill any knob a request leaves unset.
var DefaultLimits = Limits{
	CompileTimeout:   30,
	ExecutionTimeout: 10,
	Memory:           "128m",
	CPU:              1.0,
}

// MaxLimits cap what a request may ask for.
var MaxLimits = Limits{
	CompileTimeout:   300,
	ExecutionTimeout: 60,
	Memory:           "1g",
	CPU:              4.0,
}

// WithDefaults returns the limits with unset fields filled from
// DefaultLimits.
func (l Limits) WithDefaults() Limits {
	if l.CompileTimeout <= 0 {
		l.CompileTimeout = DefaultLimits.CompileTimeout
	}
	if l.ExecutionTimeout <= 0 {
		l.ExecutionTimeout = DefaultLimits.ExecutionTimeout
	}
	if l.Memory == "" {
		l.Memory = DefaultLimits.Memory
	}
	if l.CPU <= 0 {
		l.CPU = DefaultLimits.CPU
	}
	return l
}

// Task is one submission execution: source plus the marshaled
// config.json payload the runner harness consumes.
type Task struct {
	Language lang.Language
	Source   []byte
	Config   []byte
	Limits   Limits
	// ShowLogs logs the raw runner output of the test stage.
	ShowLogs bool
}

// Engine executes tasks in throwaway containers.
type Engine struct {
	drv driver.Driver
}

// New returns an engine backed by the given container driver.
func New(d driver.Driver) *Engine {
	return &Engine{drv: d}
}

// walls aggregates the engine-observed stage durations in seconds.
// They override anything the runner reports.
type walls struct {
	compile float64
	test    float64
}

// Run executes one task and always returns a verdict. The engine owns
// the container lifecycle: whatever happens, the container is stopped
// and removed before Run returns.
func (e *Engine) Run(ctx context.Context, task Task) *verdict.Verdict {
	task.Limits = task.Limits.WithDefaults()
	started := time.Now()
	w := &walls{}

	v := e.runPipeline(ctx, task, w)

	v.TotalWall = verdict.Float(time.Since(started).Seconds())
	v.CompileWall = verdict.Float(w.compile)
	v.TestWall = verdict.Float(w.test)
	return v
}

func (e *Engine) runPipeline(ctx context.Context, task Task, w *walls) *verdict.Verdict {
	id, err := e.drv.Create(ctx, task.Language.Image, driver.Limits{CPU: task.Limits.CPU, Memory: task.Limits.Memory})
	if err != nil {
		return verdict.NewInternal(err.Error())
	}
	defer e.teardown(ctx, id)

	logger.Debug(ctx, "container created",
		zap.String("container_id", shortID(id)),
		zap.String("image", task.Language.Image))

	if err := e.drv.Start(ctx, id); err != nil {
		return verdict.NewInternal(err.Error())
	}

	stage, err := archive.PackStage(task.Source, task.Language.SourceFile, task.Config)
	if err != nil {
		return verdict.NewInternal(err.Error())
	}
	if err := e.drv.PutArchive(ctx, id, workDir, stage); err != nil {
		return verdict.NewInternal(err.Error())
	}

	if task.Language.Compiled {
		if v := e.compileStep(ctx, id, task.Limits, w); v != nil {
			return v
		}
	}

	res, v := e.executeStep(ctx, id, task.Limits, task.ShowLogs, w)
	if v != nil {
		return v
	}
	return e.collectStep(ctx, id, res)
}

// compileStep builds the staged submission. It returns nil when the
// build succeeded, otherwise the verdict that ends the run. The wall
// check runs before the exit-code check so a build that blew through
// the limit reports COMPILE_TIMEOUT even when it eventually exited.
// A compile verdict is terminal in every caller, so a hung build is
// left for the teardown stop.
func (e *Engine) compileStep(ctx context.Context, id string, limits Limits, w *walls) *verdict.Verdict {
	limit := limits.CompileTimeout
	logger.Debug(ctx, "compiling submission",
		zap.String("container_id", shortID(id)),
		zap.Int("compile_timeout_s", limit))

	start := time.Now()
	res, err := e.drv.Exec(ctx, id, compileCommand(limit), workDir, time.Duration(limit)*time.Second+deadlineSlack)
	w.compile = time.Since(start).Seconds()

	if err != nil {
		if pkgerrors.Is(err, pkgerrors.DeadlineExceeded) {
			return verdict.NewCompileTimeout(limit)
		}
		return verdict.NewInternal(err.Error())
	}

	if w.compile > float64(limit) || res.ExitCode == exitTimeout {
		return verdict.NewCompileTimeout(limit)
	}
	if res.ExitCode != 0 {
		output := verdict.SanitizeUTF8(append(res.Stdout, res.Stderr...))
		return verdict.NewCompileError(output)
	}
	return nil
}

// executeStep runs the staged tests. It returns the exec result on
// success, or the verdict that ends the run.
func (e *Engine) executeStep(ctx context.Context, id string, limits Limits, showLogs bool, w *walls) (*driver.ExecResult, *verdict.Verdict) {
	limit := limits.ExecutionTimeout
	deadline := time.Duration(limit)*time.Second + deadlineSlack
	if limits.ContinueOnTimeout {
		deadline = time.Duration(limit) * time.Second * continueCeiling
	}

	logger.Debug(ctx, "executing tests",
		zap.String("container_id", shortID(id)),
		zap.Int("execution_timeout_s", limit),
		zap.Bool("continue_on_timeout", limits.ContinueOnTimeout))

	start := time.Now()
	res, err := e.drv.Exec(ctx, id, testCommand(limit, limits.ContinueOnTimeout), workDir, deadline)
	w.test = time.Since(start).Seconds()

	if err != nil {
		if pkgerrors.Is(err, pkgerrors.DeadlineExceeded) {
			e.stopNow(ctx, id)
			return nil, verdict.NewRuntimeTimeout(limit)
		}
		if limits.ContinueOnTimeout {
			return nil, verdict.NewInternal(err.Error())
		}
		return nil, verdict.NewInternal(fmt.Sprintf("Timeout handling error: %v", err))
	}

	if showLogs && len(res.Stdout)+len(res.Stderr) > 0 {
		logger.Info(ctx, "runner output",
			zap.String("container_id", shortID(id)),
			zap.String("stdout", verdict.SanitizeUTF8(res.Stdout)),
			zap.String("stderr", verdict.SanitizeUTF8(res.Stderr)))
	}

	if !limits.ContinueOnTimeout {
		if w.test > float64(limit) || res.ExitCode == exitTimeout {
			return nil, verdict.NewRuntimeTimeout(limit)
		}
	}
	return res, nil
}

// collectStep pulls result.json out of the container and decodes it.
// A missing or unreadable result after a nonzero exit classifies as a
// runtime error; after a clean exit it is an engine-side failure.
func (e *Engine) collectStep(ctx context.Context, id string, res *driver.ExecResult) *verdict.Verdict {
	raw, err := e.drv.GetArchive(ctx, id, resultPath)

	var payload []byte
	if err == nil {
		payload, err = archive.ExtractResult(bytes.NewReader(raw))
	}
	var v *verdict.Verdict
	if err == nil {
		v, err = verdict.Decode(payload)
	}
	if err != nil {
		logger.Warn(ctx, "result collection failed",
			zap.String("container_id", shortID(id)),
			zap.Error(err))
		msg := fmt.Sprintf("Unable to read result: %v", err)
		if res != nil && res.ExitCode != 0 {
			return verdict.NewRuntimeError(res.ExitCode, msg)
		}
		return verdict.NewInternal(msg)
	}
	return v
}

// stopNow halts a container whose workload outlived its limit.
func (e *Engine) stopNow(ctx context.Context, id string) {
	if err := e.drv.Stop(context.WithoutCancel(ctx), id, teardownGrace); err != nil {
		logger.Warn(ctx, "container stop failed",
			zap.String("container_id", shortID(id)),
			zap.Error(err))
	}
}

// teardown stops and removes the container. It runs detached from the
// request context so cleanup still happens after cancellation.
func (e *Engine) teardown(ctx context.Context, id string) {
	cleanupCtx := context.WithoutCancel(ctx)
	if err := e.drv.Stop(cleanupCtx, id, teardownGrace); err != nil {
		logger.Warn(ctx, "container stop failed",
			zap.String("container_id", shortID(id)),
			zap.Error(err))
	}
	if err := e.drv.Remove(cleanupCtx, id); err != nil {
		logger.Warn(ctx, "container remove failed",
			zap.String("container_id", shortID(id)),
			zap.Error(err))
	}
}

// compileCommand wraps the runner's build targets in the in-container
// timeout, discarding build noise the way the runner images expect.
func compileCommand(limit int) []string {
	return []string{"bash", "-c",
		fmt.Sprintf(`timeout %d bash -c "make clean >/dev/null 2>&1 && make build >/dev/null 2>&1"`, limit)}
}

// testCommand wraps the runner's test target in the in-container
// timeout unless the run is allowed to continue past it.
func testCommand(limit int, continueOnTimeout bool) []string {
	if continueOnTimeout {
		return []string{"bash", "-c", "make test >/dev/null 2>&1"}
	}
	return []string{"bash", "-c", fmt.Sprintf("timeout %d make test >/dev/null 2>&1", limit)}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
