package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"judgemicro/internal/common/cache"
	"judgemicro/internal/judge/model"
	appErr "judgemicro/pkg/errors"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := cache.NewRedisCache(mr.Addr())
	if err != nil {
		t.Fatalf("redis cache failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStatusRepositoryRoundtrip(t *testing.T) {
	t.Parallel()
	mr, client := newTestCache(t)
	repo := NewStatusRepository(client, time.Hour)

	match := true
	saved := model.SubmissionStatus{
		SubmissionID: "sub-1",
		Status:       model.StatusFinished,
		ReceivedAt:   100,
		FinishedAt:   200,
		Response: &model.JudgeResponse{
			Status: "SUCCESS",
			Match:  &match,
			Actual: map[string]any{"a": float64(42)},
		},
	}
	if err := repo.Save(context.Background(), saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if ttl := mr.TTL("judge:status:sub-1"); ttl <= 0 {
		t.Fatalf("expected a TTL on the status key, got %s", ttl)
	}

	got, err := repo.Get(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != model.StatusFinished || got.ReceivedAt != 100 || got.FinishedAt != 200 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Response == nil || got.Response.Status != "SUCCESS" || got.Response.Match == nil || !*got.Response.Match {
		t.Fatalf("unexpected response: %+v", got.Response)
	}
}

func TestStatusRepositoryCompressesLargePayloads(t *testing.T) {
	t.Parallel()
	mr, client := newTestCache(t)
	repo := NewStatusRepository(client, time.Hour)

	saved := model.SubmissionStatus{
		SubmissionID: "sub-big",
		Status:       model.StatusFinished,
		Response: &model.JudgeResponse{
			Status: "SUCCESS",
			Stdout: strings.Repeat("judge output line\n", 1024),
		},
	}
	if err := repo.Save(context.Background(), saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	raw, err := mr.Get("judge:status:sub-big")
	if err != nil {
		t.Fatalf("raw read failed: %v", err)
	}
	if !strings.HasPrefix(raw, string(zstdMagic)) {
		t.Fatalf("expected a zstd frame in the store, got %q...", raw[:8])
	}
	if len(raw) >= len(saved.Response.Stdout) {
		t.Fatalf("stored payload did not shrink: %d bytes", len(raw))
	}

	got, err := repo.Get(context.Background(), "sub-big")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Response == nil || got.Response.Stdout != saved.Response.Stdout {
		t.Fatalf("round trip lost the response body")
	}
}

func TestStatusRepositoryMiss(t *testing.T) {
	t.Parallel()
	_, client := newTestCache(t)
	repo := NewStatusRepository(client, time.Hour)

	if _, err := repo.Get(context.Background(), "missing"); !appErr.Is(err, appErr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestStatusRepositoryValidation(t *testing.T) {
	t.Parallel()
	_, client := newTestCache(t)
	repo := NewStatusRepository(client, time.Hour)

	if _, err := repo.Get(context.Background(), ""); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}
	if err := repo.Save(context.Background(), model.SubmissionStatus{}); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}

	uninitialized := NewStatusRepository(nil, time.Hour)
	if _, err := uninitialized.Get(context.Background(), "sub-1"); !appErr.Is(err, appErr.CacheError) {
		t.Fatalf("expected CacheError, got %v", err)
	}
}

func TestStatusRepositoryClaim(t *testing.T) {
	t.Parallel()
	_, client := newTestCache(t)
	repo := NewStatusRepository(client, time.Hour)

	claimed, err := repo.Claim(context.Background(), "sub-1", time.Hour)
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if !claimed {
		t.Fatalf("expected first claim to win")
	}
	claimed, err = repo.Claim(context.Background(), "sub-1", time.Hour)
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if claimed {
		t.Fatalf("expected second claim to lose")
	}

	claimed, err = repo.Claim(context.Background(), "sub-2", time.Hour)
	if err != nil || !claimed {
		t.Fatalf("expected a fresh id to claim, got %v %v", claimed, err)
	}
}

func TestStatusRepositoryRelease(t *testing.T) {
	t.Parallel()
	_, client := newTestCache(t)
	repo := NewStatusRepository(client, time.Hour)

	if _, err := repo.Claim(context.Background(), "sub-1", time.Hour); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := repo.Release(context.Background(), "sub-1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	claimed, err := repo.Claim(context.Background(), "sub-1", time.Hour)
	if err != nil {
		t.Fatalf("reclaim failed: %v", err)
	}
	if !claimed {
		t.Fatalf("expected a released id to claim again")
	}

	if err := repo.Release(context.Background(), ""); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}
}
