package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"judgemicro/internal/common/mq"
	"judgemicro/internal/judge/model"
	appErr "judgemicro/pkg/errors"
)

// VerdictPublisher publishes terminal verdicts for async consumers.
type VerdictPublisher interface {
	PublishVerdict(ctx context.Context, submissionID string, response model.JudgeResponse) error
}

// MQVerdictPublisher publishes verdict events to a message queue.
type MQVerdictPublisher struct {
	queue mq.MessageQueue
	topic string
}

// NewMQVerdictPublisher creates a new MQ verdict publisher.
func NewMQVerdictPublisher(queue mq.MessageQueue, topic string) *MQVerdictPublisher {
	return &MQVerdictPublisher{queue: queue, topic: topic}
}

// PublishVerdict publishes a terminal verdict event.
func (p *MQVerdictPublisher) PublishVerdict(ctx context.Context, submissionID string, response model.JudgeResponse) error {
	if p == nil || p.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("verdict publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("verdict topic is required")
	}
	if submissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	event := model.VerdictEvent{
		SubmissionID: submissionID,
		Response:     response,
		EmittedAt:    time.Now().Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal verdict event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = submissionID
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish verdict event failed")
	}
	return nil
}
