package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"judgemicro/internal/common/mq"
	"judgemicro/internal/judge/model"
	appErr "judgemicro/pkg/errors"
	"judgemicro/pkg/utils/contextkey"
	"judgemicro/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// claimTTL guards against judging the same submission twice while its
// status record is still alive.
const claimTTL = 24 * time.Hour

// SubmitAsync validates a submission, enqueues it for the consumer and
// returns its submission id.
func (s *Service) SubmitAsync(ctx context.Context, req model.JudgeRequest) (string, error) {
	if s.queue == nil || s.taskTopic == "" {
		return "", appErr.New(appErr.ServiceUnavailable).WithMessage("task queue is not configured")
	}
	// Reject malformed submissions now, not at consume time.
	if _, err := s.buildTask(req); err != nil {
		return "", err
	}
	submissionID := uuid.NewString()
	task := model.JudgeTask{
		SubmissionID: submissionID,
		Request:      req,
		SubmittedAt:  time.Now().Unix(),
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshal judge task failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = submissionID
	if err := s.queue.Publish(ctx, s.taskTopic, message); err != nil {
		return "", appErr.Wrapf(err, appErr.ServiceUnavailable, "enqueue judge task failed")
	}
	pending := model.SubmissionStatus{
		SubmissionID: submissionID,
		Status:       model.StatusPending,
		ReceivedAt:   time.Now().Unix(),
	}
	if err := s.saveStatus(ctx, pending); err != nil {
		logger.Warn(ctx, "save pending status failed", zap.Error(err))
	}
	return submissionID, nil
}

// HandleMessage processes one queued judge task. Returning an error
// hands the message back to the queue for redelivery, so terminal
// failures return nil after recording their status.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	var task model.JudgeTask
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		return appErr.Wrapf(err, appErr.InvalidParams, "decode judge task failed")
	}
	if task.SubmissionID == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("task missing submission id")
	}
	ctx = context.WithValue(ctx, contextkey.SubmissionID, task.SubmissionID)

	claimHeld := false
	if s.statusRepo != nil {
		claimed, err := s.statusRepo.Claim(ctx, task.SubmissionID, claimTTL)
		if err != nil {
			logger.Warn(ctx, "claim submission failed", zap.Error(err))
		} else if !claimed {
			return s.handleRedelivery(ctx, task.SubmissionID)
		} else {
			claimHeld = true
		}
	}

	// The claim stays held once a terminal record is stored. Every other
	// exit gives it back so the redelivered message is judged fresh
	// instead of being dropped as a duplicate.
	settled := false
	defer func() {
		if claimHeld && !settled {
			if err := s.statusRepo.Release(context.WithoutCancel(ctx), task.SubmissionID); err != nil {
				logger.Warn(ctx, "release claim failed", zap.Error(err))
			}
		}
	}()

	receivedAt := time.Now().Unix()
	pending := model.SubmissionStatus{
		SubmissionID: task.SubmissionID,
		Status:       model.StatusPending,
		ReceivedAt:   receivedAt,
	}
	if err := s.saveStatus(ctx, pending); err != nil {
		return err
	}

	engineTask, err := s.buildTask(task.Request)
	if err != nil {
		// Validation failures are terminal, redelivery cannot fix them.
		s.failSubmission(ctx, task.SubmissionID, receivedAt, err)
		settled = true
		return nil
	}

	if err := s.acquireSlot(ctx); err != nil {
		if appErr.Is(err, appErr.JudgeQueueFull) && s.retryTopic != "" {
			return requeueForPoolFull(ctx, s.queue, s.retryTopic, s.deadLetter,
				s.poolRetryMax, s.poolRetryBase, s.poolRetryMaxDelay, msg)
		}
		return err
	}
	defer s.releaseSlot()

	running := pending
	running.Status = model.StatusRunning
	if err := s.saveStatus(ctx, running); err != nil {
		return err
	}

	v := s.engine.Run(ctx, engineTask)
	resp := model.ResponseFromVerdict(v)
	finished := model.SubmissionStatus{
		SubmissionID: task.SubmissionID,
		Status:       model.StatusFinished,
		ReceivedAt:   receivedAt,
		FinishedAt:   time.Now().Unix(),
		Response:     &resp,
	}
	if err := s.saveStatus(ctx, finished); err != nil {
		return err
	}
	settled = true
	s.recordOutcome(ctx, resp.Status)
	if err := s.publishVerdict(ctx, task.SubmissionID, resp); err != nil {
		// The stored claim and record make redelivery re-emit the
		// verdict without judging again.
		logger.Warn(ctx, "publish verdict failed", zap.Error(err))
		return err
	}
	return nil
}

// handleRedelivery resolves a message whose submission was claimed
// before. A finished record means the earlier attempt crashed between
// judging and publishing, so the stored verdict is emitted again.
func (s *Service) handleRedelivery(ctx context.Context, submissionID string) error {
	existing, err := s.statusRepo.Get(ctx, submissionID)
	if err == nil && existing.Status == model.StatusFinished && existing.Response != nil {
		return s.publishVerdict(ctx, submissionID, *existing.Response)
	}
	logger.Info(ctx, "duplicate submission ignored", zap.String("submission_id", submissionID))
	return nil
}
