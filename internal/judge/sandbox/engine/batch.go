package engine

import (
	"context"

	"go.uber.org/zap"

	"judgemicro/internal/judge/sandbox/archive"
	"judgemicro/internal/judge/sandbox/driver"
	"judgemicro/internal/judge/sandbox/lang"
	"judgemicro/internal/judge/sandbox/verdict"
	"judgemicro/pkg/utils/logger"
)

// BatchTask runs one submission against many test configs inside a
// single container, compiling the source once.
type BatchTask struct {
	Language lang.Language
	Source   []byte
	// Configs are the marshaled per-test config.json payloads, in
	// input order.
	Configs [][]byte
	Limits  Limits
	// ShowLogs logs the raw runner output of each test stage.
	ShowLogs bool
}

// RunBatch executes the batch and returns one verdict per config, in
// input order, each tagged with its config index. A failure before the
// first test, compile failure included, fans out to every index. A
// failure on one test does not stop the remaining tests.
func (e *Engine) RunBatch(ctx context.Context, task BatchTask) []*verdict.Verdict {
	task.Limits = task.Limits.WithDefaults()

	out := make([]*verdict.Verdict, 0, len(task.Configs))
	if len(task.Configs) == 0 {
		return out
	}

	shared := &walls{}

	// fanOut stamps the batch-wide failure onto every config index.
	fanOut := func(v *verdict.Verdict) []*verdict.Verdict {
		v.CompileWall = verdict.Float(shared.compile)
		v.TestWall = verdict.Float(shared.test)
		v.TotalWall = verdict.Float(shared.compile + shared.test)
		for i := range task.Configs {
			out = append(out, v.Clone().WithConfigIndex(i))
		}
		return out
	}

	id, err := e.drv.Create(ctx, task.Language.Image, driver.Limits{CPU: task.Limits.CPU, Memory: task.Limits.Memory})
	if err != nil {
		return fanOut(verdict.NewInternal(err.Error()))
	}
	defer e.teardown(ctx, id)

	logger.Debug(ctx, "batch container created",
		zap.String("container_id", shortID(id)),
		zap.String("image", task.Language.Image),
		zap.Int("tests", len(task.Configs)))

	if err := e.drv.Start(ctx, id); err != nil {
		return fanOut(verdict.NewInternal(err.Error()))
	}

	stage, err := archive.PackUserOnly(task.Source, task.Language.SourceFile)
	if err != nil {
		return fanOut(verdict.NewInternal(err.Error()))
	}
	if err := e.drv.PutArchive(ctx, id, workDir, stage); err != nil {
		return fanOut(verdict.NewInternal(err.Error()))
	}

	if task.Language.Compiled {
		if v := e.compileStep(ctx, id, task.Limits, shared); v != nil {
			return fanOut(v)
		}
	}

	for i, config := range task.Configs {
		logger.Debug(ctx, "batch test",
			zap.String("container_id", shortID(id)),
			zap.Int("index", i),
			zap.Int("total", len(task.Configs)))
		v := e.runBatchTest(ctx, id, task, config, i, shared)
		out = append(out, v)
		if v.Status == verdict.StatusRuntimeTimeout {
			// A test that hit the exec deadline left the container
			// stopped. Restarting keeps the compiled build; on a
			// container that never stopped the start is a no-op.
			if err := e.drv.Start(ctx, id); err != nil {
				logger.Warn(ctx, "container restart failed",
					zap.String("container_id", shortID(id)),
					zap.Int("index", i),
					zap.Error(err))
			}
		}
	}
	return out
}

// runBatchTest executes one config against the already-staged build.
// The shared compile wall is charged to every test of the batch.
func (e *Engine) runBatchTest(ctx context.Context, id string, task BatchTask, config []byte, index int, shared *walls) *verdict.Verdict {
	w := &walls{compile: shared.compile}
	v := e.batchTest(ctx, id, task, config, w)
	v.CompileWall = verdict.Float(w.compile)
	v.TestWall = verdict.Float(w.test)
	v.TotalWall = verdict.Float(w.compile + w.test)
	return v.WithConfigIndex(index)
}

func (e *Engine) batchTest(ctx context.Context, id string, task BatchTask, config []byte, w *walls) *verdict.Verdict {
	configTar, err := archive.PackConfigOnly(config)
	if err != nil {
		return verdict.NewInternal(err.Error())
	}
	// Overwrites the previous test's config.json in place.
	if err := e.drv.PutArchive(ctx, id, workDir, configTar); err != nil {
		return verdict.NewInternal(err.Error())
	}

	res, v := e.executeStep(ctx, id, task.Limits, task.ShowLogs, w)
	if v != nil {
		return v
	}
	return e.collectStep(ctx, id, res)
}
