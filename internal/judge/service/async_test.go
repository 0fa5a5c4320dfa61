package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"judgemicro/internal/common/mq"
	"judgemicro/internal/judge/model"
	"judgemicro/internal/judge/sandbox/verdict"
	appErr "judgemicro/pkg/errors"
)

func taskMessage(t *testing.T, task model.JudgeTask) *mq.Message {
	t.Helper()
	payload, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task failed: %v", err)
	}
	msg := mq.NewMessage(payload)
	msg.ID = task.SubmissionID
	return msg
}

func TestSubmitAsyncNotConfigured(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, nil)
	if _, err := svc.SubmitAsync(context.Background(), validRequest()); !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestSubmitAsyncPublishes(t *testing.T) {
	t.Parallel()
	queue := &fakeQueue{}
	repo := newTestStatusRepo(t)
	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.Queue = queue
		cfg.TaskTopic = "judge.task"
		cfg.StatusRepo = repo
	})

	id, err := svc.SubmitAsync(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("submit async failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a submission id")
	}
	published := queue.messages()
	if len(published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(published))
	}
	if published[0].topic != "judge.task" {
		t.Fatalf("expected task topic, got %s", published[0].topic)
	}
	if published[0].msg.ID != id {
		t.Fatalf("expected message id %s, got %s", id, published[0].msg.ID)
	}
	var task model.JudgeTask
	if err := json.Unmarshal(published[0].msg.Body, &task); err != nil {
		t.Fatalf("decode task failed: %v", err)
	}
	if task.SubmissionID != id || task.Request.Language != "c" {
		t.Fatalf("unexpected task payload: %+v", task)
	}

	status, err := svc.GetSubmission(context.Background(), id)
	if err != nil {
		t.Fatalf("get submission failed: %v", err)
	}
	if status.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", status.Status)
	}
}

func TestSubmitAsyncRejectsInvalid(t *testing.T) {
	t.Parallel()
	queue := &fakeQueue{}
	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.Queue = queue
		cfg.TaskTopic = "judge.task"
	})

	req := validRequest()
	req.UserCode = ""
	if _, err := svc.SubmitAsync(context.Background(), req); !appErr.Is(err, appErr.CodeEmpty) {
		t.Fatalf("expected CodeEmpty, got %v", err)
	}
	if len(queue.messages()) != 0 {
		t.Fatalf("invalid submission must not be enqueued")
	}
}

func TestHandleMessageJudgesTask(t *testing.T) {
	t.Parallel()
	repo := newTestStatusRepo(t)
	publisher := &fakePublisher{}
	svc, eng := newTestService(t, func(cfg *Config) {
		cfg.StatusRepo = repo
		cfg.Publisher = publisher
	})

	msg := taskMessage(t, model.JudgeTask{
		SubmissionID: "sub-1",
		Request:      validRequest(),
		SubmittedAt:  time.Now().Unix(),
	})
	if err := svc.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle message failed: %v", err)
	}
	if eng.taskCount() != 1 {
		t.Fatalf("expected 1 engine run, got %d", eng.taskCount())
	}
	got := publisher.published()
	if len(got) != 1 || got[0].submissionID != "sub-1" {
		t.Fatalf("expected 1 published verdict for sub-1, got %+v", got)
	}
	if got[0].response.Status != string(verdict.StatusSuccess) {
		t.Fatalf("expected SUCCESS verdict, got %s", got[0].response.Status)
	}

	status, err := svc.GetSubmission(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("get submission failed: %v", err)
	}
	if status.Status != model.StatusFinished || status.Response == nil {
		t.Fatalf("expected finished record with response, got %+v", status)
	}
	if status.FinishedAt == 0 {
		t.Fatalf("expected finished timestamp")
	}
}

func TestHandleMessageDeduplicates(t *testing.T) {
	t.Parallel()
	repo := newTestStatusRepo(t)
	publisher := &fakePublisher{}
	svc, eng := newTestService(t, func(cfg *Config) {
		cfg.StatusRepo = repo
		cfg.Publisher = publisher
	})

	msg := taskMessage(t, model.JudgeTask{
		SubmissionID: "sub-dup",
		Request:      validRequest(),
		SubmittedAt:  time.Now().Unix(),
	})
	if err := svc.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	// Redelivery after the first attempt finished must not judge again,
	// it re-emits the stored verdict instead.
	if err := svc.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if eng.taskCount() != 1 {
		t.Fatalf("expected 1 engine run across deliveries, got %d", eng.taskCount())
	}
	if got := publisher.published(); len(got) != 2 {
		t.Fatalf("expected verdict re-published on redelivery, got %d", len(got))
	}
}

func TestHandleMessageTerminalValidation(t *testing.T) {
	t.Parallel()
	repo := newTestStatusRepo(t)
	publisher := &fakePublisher{}
	svc, eng := newTestService(t, func(cfg *Config) {
		cfg.StatusRepo = repo
		cfg.Publisher = publisher
	})

	req := validRequest()
	req.UserCode = ""
	msg := taskMessage(t, model.JudgeTask{SubmissionID: "sub-bad", Request: req})
	// Validation failures are terminal, so the handler must not ask
	// for redelivery.
	if err := svc.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("expected nil for terminal failure, got %v", err)
	}
	if eng.taskCount() != 0 {
		t.Fatalf("engine must not run for invalid tasks")
	}
	if len(publisher.published()) != 0 {
		t.Fatalf("no verdict may be published for invalid tasks")
	}

	status, err := svc.GetSubmission(context.Background(), "sub-bad")
	if err != nil {
		t.Fatalf("get submission failed: %v", err)
	}
	if status.Status != model.StatusFailed {
		t.Fatalf("expected failed record, got %s", status.Status)
	}
	if status.ErrorCode != int(appErr.CodeEmpty) {
		t.Fatalf("expected CodeEmpty error code, got %d", status.ErrorCode)
	}
}

func TestHandleMessageBadPayload(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, nil)

	if err := svc.HandleMessage(context.Background(), nil); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected InvalidParams for nil message, got %v", err)
	}
	if err := svc.HandleMessage(context.Background(), mq.NewMessage([]byte("not json"))); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected InvalidParams for bad payload, got %v", err)
	}
	msg := taskMessage(t, model.JudgeTask{Request: validRequest()})
	if err := svc.HandleMessage(context.Background(), msg); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected InvalidParams for missing submission id, got %v", err)
	}
}

func TestHandleMessagePoolFullRequeues(t *testing.T) {
	t.Parallel()
	queue := &fakeQueue{}
	svc, eng := newTestService(t, func(cfg *Config) {
		cfg.Queue = queue
		cfg.TaskTopic = "judge.task"
		cfg.RetryTopic = "judge.task.retry"
		cfg.PoolRetryMax = 5
		cfg.WorkerPoolSize = 1
	})

	// Occupy the only slot so the consumer cannot start judging.
	svc.sem <- struct{}{}
	msg := taskMessage(t, model.JudgeTask{SubmissionID: "sub-busy", Request: validRequest()})
	if err := svc.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("expected requeue instead of error, got %v", err)
	}
	if eng.taskCount() != 0 {
		t.Fatalf("engine must not run while the pool is full")
	}
	published := queue.messages()
	if len(published) != 1 || published[0].topic != "judge.task.retry" {
		t.Fatalf("expected 1 message on the retry topic, got %+v", published)
	}
	if published[0].msg.Headers[poolRetryHeader] != "1" {
		t.Fatalf("expected retry count 1, got %s", published[0].msg.Headers[poolRetryHeader])
	}
	if published[0].msg.ID != "sub-busy" {
		t.Fatalf("requeue must keep the submission id, got %s", published[0].msg.ID)
	}
}

func TestHandleMessageRequeueReleasesClaim(t *testing.T) {
	t.Parallel()
	queue := &fakeQueue{}
	repo := newTestStatusRepo(t)
	publisher := &fakePublisher{}
	svc, eng := newTestService(t, func(cfg *Config) {
		cfg.Queue = queue
		cfg.TaskTopic = "judge.task"
		cfg.RetryTopic = "judge.task.retry"
		cfg.PoolRetryMax = 5
		cfg.WorkerPoolSize = 1
		cfg.StatusRepo = repo
		cfg.Publisher = publisher
	})

	svc.sem <- struct{}{}
	msg := taskMessage(t, model.JudgeTask{SubmissionID: "sub-requeue", Request: validRequest()})
	if err := svc.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("expected requeue instead of error, got %v", err)
	}
	if eng.taskCount() != 0 {
		t.Fatalf("engine must not run while the pool is full")
	}

	// The retry delivery must find the claim released and judge the
	// task instead of treating it as a duplicate.
	<-svc.sem
	if err := svc.HandleMessage(context.Background(), queue.messages()[0].msg); err != nil {
		t.Fatalf("retry delivery failed: %v", err)
	}
	if eng.taskCount() != 1 {
		t.Fatalf("expected the retry delivery to judge, got %d runs", eng.taskCount())
	}
	status, err := svc.GetSubmission(context.Background(), "sub-requeue")
	if err != nil {
		t.Fatalf("get submission failed: %v", err)
	}
	if status.Status != model.StatusFinished {
		t.Fatalf("expected finished record, got %s", status.Status)
	}
}
