package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"judgemicro/internal/common/cache"
	"judgemicro/internal/judge/model"
	appErr "judgemicro/pkg/errors"
)

const (
	statusKeyPrefix = "judge:status:"

	// Batch verdicts carry one result per test case, so a finished status
	// can run to hundreds of kilobytes. Payloads above this size are
	// zstd-compressed before they reach Redis.
	compressThreshold = 4 << 10
)

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll use.
var (
	statusEncoder, _ = zstd.NewWriter(nil)
	statusDecoder, _ = zstd.NewReader(nil)
)

// zstdMagic is the frame header every zstd payload starts with. JSON can
// never begin with these bytes, so the prefix tells the two formats apart.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// StatusRepository persists submission status records in the cache.
type StatusRepository struct {
	cache cache.Cache
	TTL   time.Duration
}

// NewStatusRepository creates a new repository.
func NewStatusRepository(cacheClient cache.Cache, ttl time.Duration) *StatusRepository {
	return &StatusRepository{cache: cacheClient, TTL: ttl}
}

// Get returns the status record for one submission.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (model.SubmissionStatus, error) {
	if submissionID == "" {
		return model.SubmissionStatus{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return model.SubmissionStatus{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, statusKeyPrefix+submissionID)
	if err != nil || val == "" {
		return model.SubmissionStatus{}, appErr.New(appErr.NotFound).WithMessage("submission status not found")
	}
	raw := []byte(val)
	if bytes.HasPrefix(raw, zstdMagic) {
		raw, err = statusDecoder.DecodeAll(raw, nil)
		if err != nil {
			return model.SubmissionStatus{}, appErr.Wrapf(err, appErr.CacheError, "decompress status failed")
		}
	}
	var status model.SubmissionStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return model.SubmissionStatus{}, appErr.Wrapf(err, appErr.CacheError, "decode status failed")
	}
	return status, nil
}

// Save persists a status record.
func (r *StatusRepository) Save(ctx context.Context, status model.SubmissionStatus) error {
	if status.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status failed: %w", err)
	}
	if len(data) > compressThreshold {
		data = statusEncoder.EncodeAll(data, nil)
	}
	if err := r.cache.Set(ctx, statusKeyPrefix+status.SubmissionID, string(data), cache.JitterTTL(r.TTL)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status failed")
	}
	return nil
}

// Claim marks a submission as seen exactly once. It returns false when
// another consumer already claimed the same submission id.
func (r *StatusRepository) Claim(ctx context.Context, submissionID string, ttl time.Duration) (bool, error) {
	if submissionID == "" {
		return false, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return false, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	ok, err := r.cache.SetNX(ctx, statusKeyPrefix+submissionID+":claim", "1", ttl)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.CacheError, "claim submission failed")
	}
	return ok, nil
}

// Release gives a claim back so a redelivery of the same submission can
// claim it again.
func (r *StatusRepository) Release(ctx context.Context, submissionID string) error {
	if submissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	if err := r.cache.Del(ctx, statusKeyPrefix+submissionID+":claim"); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "release claim failed")
	}
	return nil
}
