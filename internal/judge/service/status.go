package service

import (
	"context"
	"time"

	"judgemicro/internal/judge/model"
	appErr "judgemicro/pkg/errors"
	"judgemicro/pkg/utils/logger"

	"go.uber.org/zap"
)

// GetSubmission looks up the cached status record for one submission.
func (s *Service) GetSubmission(ctx context.Context, submissionID string) (model.SubmissionStatus, error) {
	if s.statusRepo == nil {
		return model.SubmissionStatus{}, appErr.New(appErr.ServiceUnavailable).WithMessage("status store is not configured")
	}
	return s.statusRepo.Get(ctx, submissionID)
}

func (s *Service) saveStatus(ctx context.Context, status model.SubmissionStatus) error {
	if s.statusRepo == nil {
		return nil
	}
	ctxStatus := ctx
	if s.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctxStatus, cancel = context.WithTimeout(ctx, s.statusTimeout)
		defer cancel()
	}
	return s.statusRepo.Save(ctxStatus, status)
}

// failSubmission records a terminal failure for an async submission.
func (s *Service) failSubmission(ctx context.Context, submissionID string, receivedAt int64, err error) {
	failed := model.SubmissionStatus{
		SubmissionID: submissionID,
		Status:       model.StatusFailed,
		ReceivedAt:   receivedAt,
		FinishedAt:   time.Now().Unix(),
		ErrorCode:    int(appErr.GetCode(err)),
		ErrorMessage: err.Error(),
	}
	if saveErr := s.saveStatus(ctx, failed); saveErr != nil {
		logger.Warn(ctx, "update failure status failed", zap.Error(saveErr))
	}
}

// recordOutcome bumps the daily stats counter, best effort.
func (s *Service) recordOutcome(ctx context.Context, status string) {
	if s.statsRepo == nil {
		return
	}
	if err := s.statsRepo.RecordOutcome(ctx, status); err != nil {
		logger.Warn(ctx, "record outcome failed", zap.String("status", status), zap.Error(err))
	}
}

// publishVerdict emits the terminal verdict event, best effort when no
// publisher is configured.
func (s *Service) publishVerdict(ctx context.Context, submissionID string, response model.JudgeResponse) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishVerdict(ctx, submissionID, response)
}
