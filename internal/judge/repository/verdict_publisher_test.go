package repository

import (
	"context"
	"encoding/json"
	"testing"

	"judgemicro/internal/common/mq"
	"judgemicro/internal/judge/model"
	appErr "judgemicro/pkg/errors"
)

type recordedPublish struct {
	topic string
	msg   *mq.Message
}

type stubQueue struct {
	published []recordedPublish
}

func (s *stubQueue) Publish(ctx context.Context, topic string, message *mq.Message) error {
	s.published = append(s.published, recordedPublish{topic: topic, msg: message})
	return nil
}

func (s *stubQueue) PublishBatch(ctx context.Context, topic string, messages []*mq.Message) error {
	for _, msg := range messages {
		s.published = append(s.published, recordedPublish{topic: topic, msg: msg})
	}
	return nil
}

func (s *stubQueue) Subscribe(ctx context.Context, topic string, handler mq.HandlerFunc) error {
	return nil
}

func (s *stubQueue) SubscribeWithOptions(ctx context.Context, topic string, handler mq.HandlerFunc, opts *mq.SubscribeOptions) error {
	return nil
}

func (s *stubQueue) Start() error { return nil }

func (s *stubQueue) Stop() error { return nil }

func (s *stubQueue) Pause() error { return nil }

func (s *stubQueue) Resume() error { return nil }

func (s *stubQueue) Ping(ctx context.Context) error { return nil }

func (s *stubQueue) Close() error { return nil }

func TestPublishVerdict(t *testing.T) {
	t.Parallel()
	queue := &stubQueue{}
	publisher := NewMQVerdictPublisher(queue, "judge.verdict")

	response := model.JudgeResponse{Status: "SUCCESS"}
	if err := publisher.PublishVerdict(context.Background(), "sub-1", response); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(queue.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(queue.published))
	}
	got := queue.published[0]
	if got.topic != "judge.verdict" {
		t.Fatalf("expected verdict topic, got %s", got.topic)
	}
	if got.msg.ID != "sub-1" {
		t.Fatalf("expected message id sub-1, got %s", got.msg.ID)
	}
	var event model.VerdictEvent
	if err := json.Unmarshal(got.msg.Body, &event); err != nil {
		t.Fatalf("decode event failed: %v", err)
	}
	if event.SubmissionID != "sub-1" || event.Response.Status != "SUCCESS" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.EmittedAt == 0 {
		t.Fatalf("expected emitted timestamp")
	}
}

func TestPublishVerdictGuards(t *testing.T) {
	t.Parallel()
	var unconfigured *MQVerdictPublisher
	if err := unconfigured.PublishVerdict(context.Background(), "sub-1", model.JudgeResponse{}); !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}

	noTopic := NewMQVerdictPublisher(&stubQueue{}, "")
	if err := noTopic.PublishVerdict(context.Background(), "sub-1", model.JudgeResponse{}); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected InvalidParams, got %v", err)
	}

	publisher := NewMQVerdictPublisher(&stubQueue{}, "judge.verdict")
	if err := publisher.PublishVerdict(context.Background(), "", model.JudgeResponse{}); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}
}
