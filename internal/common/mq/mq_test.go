package mq

import (
	"context"
	"testing"
	"time"
)

func TestTokenLimiter(t *testing.T) {
	limiter := NewTokenLimiter(1)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(ctx); err == nil {
		t.Fatal("expected acquire to block")
	}
	limiter.Release()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestTokenLimiterOverRelease(t *testing.T) {
	limiter := NewTokenLimiter(0)

	// Size <= 0 falls back to a single token, and extra releases are dropped.
	limiter.Release()
	limiter.Release()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(ctx); err == nil {
		t.Fatal("expected the single token to be exhausted")
	}
}

func TestBuildWeightedSchedule(t *testing.T) {
	schedule := buildWeightedSchedule([]WeightedTopic{
		{Topic: "priority", Weight: 3},
		{Topic: "normal", Weight: 1},
		{Topic: "ignored", Weight: 0},
	})
	if len(schedule) != 4 {
		t.Fatalf("unexpected schedule length %d", len(schedule))
	}
	counts := make(map[int]int)
	for _, idx := range schedule {
		counts[idx]++
	}
	if counts[0] != 3 || counts[1] != 1 || counts[2] != 0 {
		t.Fatalf("unexpected slot distribution %v", counts)
	}
}

func TestKafkaMessageHeaders(t *testing.T) {
	original := &Message{
		ID:         "msg-1",
		Body:       []byte(`{"submission_id": "sub-1"}`),
		Headers:    map[string]string{"trace_id": "abc"},
		Priority:   9,
		RetryCount: 2,
		MaxRetries: 5,
		Expiration: 90 * time.Second,
	}
	decoded := fromKafkaMessage(toKafkaMessage("judge.task", original))

	if decoded.ID != "msg-1" || string(decoded.Body) != string(original.Body) {
		t.Fatalf("identity lost: %+v", decoded)
	}
	if decoded.Priority != 9 || decoded.RetryCount != 2 || decoded.MaxRetries != 5 {
		t.Fatalf("retry metadata lost: %+v", decoded)
	}
	if decoded.Expiration != 90*time.Second {
		t.Fatalf("expiration lost: %v", decoded.Expiration)
	}
	if decoded.Headers["trace_id"] != "abc" {
		t.Fatalf("custom header lost: %v", decoded.Headers)
	}
	if decoded.Timestamp.IsZero() {
		t.Fatalf("timestamp not carried")
	}
}

func TestMessageIDFallsBackToKey(t *testing.T) {
	kmsg := toKafkaMessage("judge.task", &Message{ID: "key-only"})
	kmsg.Headers = nil
	decoded := fromKafkaMessage(kmsg)
	if decoded.ID != "key-only" {
		t.Fatalf("expected the kafka key to supply the id, got %q", decoded.ID)
	}
}

func TestNewKafkaQueueRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaQueue(KafkaConfig{}); err == nil {
		t.Fatal("expected an error without brokers")
	}
}
