package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"judgemicro/internal/common/mq"
	"judgemicro/internal/judge/sandbox/engine"
	"judgemicro/internal/judge/sandbox/verdict"
	appErr "judgemicro/pkg/errors"
	"judgemicro/pkg/utils/logger"

	"go.uber.org/zap"
)

const poolRetryHeader = "x-pool-retry"

// acquireTimeout bounds how long a synchronous submission waits for a
// pool slot before reporting the queue as full.
const acquireTimeout = 2 * time.Second

func (s *Service) acquireSlot(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(acquireTimeout):
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
}

// waitSlot blocks until a slot frees up, used by batch workers where
// queueing behind the pool is expected rather than an error.
func (s *Service) waitSlot(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

// fanOut runs every task over the worker pool and returns verdicts in
// input order regardless of completion order.
func (s *Service) fanOut(ctx context.Context, tasks []engine.Task, showProgress bool) []*verdict.Verdict {
	verdicts := make([]*verdict.Verdict, len(tasks))
	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.waitSlot(ctx); err != nil {
				verdicts[i] = verdict.NewInternal(err.Error())
				return
			}
			defer s.releaseSlot()
			verdicts[i] = s.engine.Run(ctx, tasks[i])
			if showProgress {
				logger.Info(ctx, "batch test completed",
					zap.Int("test", i+1),
					zap.Int("total", len(tasks)),
					zap.String("status", string(verdicts[i].Status)))
			}
		}(i)
	}
	wg.Wait()
	return verdicts
}

// requeueForPoolFull republishes a task message with backoff when the
// worker pool is full, moving it to the dead letter topic once the
// retry budget is spent.
func requeueForPoolFull(ctx context.Context, queue mq.MessageQueue, retryTopic, deadLetter string, maxRetry int, baseDelay, maxDelay time.Duration, msg *mq.Message) error {
	if queue == nil || retryTopic == "" {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("retry queue is not configured")
	}
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	retryCount := parsePoolRetryCount(msg.Headers)
	if maxRetry > 0 && retryCount >= maxRetry {
		if deadLetter == "" {
			logger.Warn(ctx, "worker pool retry exhausted without dead letter",
				zap.Int("retry_count", retryCount), zap.String("message_id", msg.ID))
			return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
		}
		dead := cloneMessageForRetry(msg, retryCount)
		logger.Warn(ctx, "worker pool retry exhausted, sending to dead letter",
			zap.Int("retry_count", retryCount), zap.String("message_id", msg.ID), zap.String("topic", deadLetter))
		return queue.Publish(ctx, deadLetter, dead)
	}
	delay := computePoolBackoff(retryCount, baseDelay, maxDelay)
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	logger.Info(ctx, "worker pool requeue",
		zap.Int("retry_count", retryCount+1), zap.String("message_id", msg.ID),
		zap.Duration("delay", delay), zap.String("topic", retryTopic))
	requeued := cloneMessageForRetry(msg, retryCount+1)
	return queue.Publish(ctx, retryTopic, requeued)
}

func parsePoolRetryCount(headers map[string]string) int {
	if headers == nil {
		return 0
	}
	raw, ok := headers[poolRetryHeader]
	if !ok {
		return 0
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0
	}
	return val
}

func cloneMessageForRetry(msg *mq.Message, retryCount int) *mq.Message {
	if msg == nil {
		return mq.NewMessage(nil)
	}
	out := &mq.Message{
		ID:         msg.ID,
		Body:       msg.Body,
		Headers:    make(map[string]string, len(msg.Headers)+1),
		Timestamp:  time.Now(),
		Priority:   msg.Priority,
		MaxRetries: msg.MaxRetries,
		Expiration: msg.Expiration,
	}
	for k, v := range msg.Headers {
		out.Headers[k] = v
	}
	out.Headers[poolRetryHeader] = strconv.Itoa(retryCount)
	return out
}

func computePoolBackoff(retryCount int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		if max > 0 && delay >= max {
			return max
		}
		delay *= 2
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}
