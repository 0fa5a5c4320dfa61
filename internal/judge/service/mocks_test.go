package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"judgemicro/internal/common/cache"
	"judgemicro/internal/common/mq"
	"judgemicro/internal/judge/model"
	"judgemicro/internal/judge/repository"
	"judgemicro/internal/judge/sandbox/engine"
	"judgemicro/internal/judge/sandbox/lang"
	"judgemicro/internal/judge/sandbox/verdict"

	"github.com/alicebob/miniredis/v2"
)

// fakeEngine scripts verdicts and records every task it receives.
type fakeEngine struct {
	mu      sync.Mutex
	runFunc func(ctx context.Context, task engine.Task) *verdict.Verdict
	batchFn func(ctx context.Context, task engine.BatchTask) []*verdict.Verdict
	tasks   []engine.Task
	batches []engine.BatchTask
}

func (f *fakeEngine) Run(ctx context.Context, task engine.Task) *verdict.Verdict {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()
	if f.runFunc != nil {
		return f.runFunc(ctx, task)
	}
	return successVerdict()
}

func (f *fakeEngine) RunBatch(ctx context.Context, task engine.BatchTask) []*verdict.Verdict {
	f.mu.Lock()
	f.batches = append(f.batches, task)
	f.mu.Unlock()
	if f.batchFn != nil {
		return f.batchFn(ctx, task)
	}
	out := make([]*verdict.Verdict, len(task.Configs))
	for i := range out {
		out[i] = successVerdict().WithConfigIndex(i)
	}
	return out
}

func (f *fakeEngine) taskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func successVerdict() *verdict.Verdict {
	return &verdict.Verdict{
		Status:   verdict.StatusSuccess,
		Match:    verdict.Bool(true),
		Actual:   map[string]any{"a": float64(42)},
		Expected: map[string]any{"a": float64(42)},
		TimeMS:   verdict.Float(12.5),
	}
}

type publishedMessage struct {
	topic string
	msg   *mq.Message
}

type fakeQueue struct {
	mu         sync.Mutex
	published  []publishedMessage
	publishErr error
}

func (f *fakeQueue) Publish(ctx context.Context, topic string, message *mq.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMessage{topic: topic, msg: message})
	return nil
}

func (f *fakeQueue) PublishBatch(ctx context.Context, topic string, messages []*mq.Message) error {
	for _, msg := range messages {
		if err := f.Publish(ctx, topic, msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeQueue) Subscribe(ctx context.Context, topic string, handler mq.HandlerFunc) error {
	return nil
}

func (f *fakeQueue) SubscribeWithOptions(ctx context.Context, topic string, handler mq.HandlerFunc, opts *mq.SubscribeOptions) error {
	return nil
}

func (f *fakeQueue) Start() error { return nil }

func (f *fakeQueue) Stop() error { return nil }

func (f *fakeQueue) Pause() error { return nil }

func (f *fakeQueue) Resume() error { return nil }

func (f *fakeQueue) Ping(ctx context.Context) error { return nil }

func (f *fakeQueue) Close() error { return nil }

func (f *fakeQueue) messages() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedMessage, len(f.published))
	copy(out, f.published)
	return out
}

type publishedVerdict struct {
	submissionID string
	response     model.JudgeResponse
}

type fakePublisher struct {
	mu       sync.Mutex
	verdicts []publishedVerdict
	err      error
}

func (f *fakePublisher) PublishVerdict(ctx context.Context, submissionID string, response model.JudgeResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.verdicts = append(f.verdicts, publishedVerdict{submissionID: submissionID, response: response})
	return nil
}

func (f *fakePublisher) published() []publishedVerdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedVerdict, len(f.verdicts))
	copy(out, f.verdicts)
	return out
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func newTestService(t *testing.T, mutate func(*Config)) (*Service, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{}
	cfg := Config{Engine: eng, Registry: lang.NewRegistry()}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, eng
}

func newTestStatusRepo(t *testing.T) *repository.StatusRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := cache.NewRedisCache(mr.Addr())
	if err != nil {
		t.Fatalf("redis cache failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewStatusRepository(client, time.Hour)
}

func validRequest() model.JudgeRequest {
	return model.JudgeRequest{
		Language:     "c",
		UserCode:     "int solve(int *a) { *a = 42; return 0; }",
		SolveParams:  []model.SolveParam{{Name: "a", Type: "int", InputValue: 1}},
		Expected:     map[string]any{"a": 42},
		FunctionType: "int",
	}
}
