package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"judgemicro/internal/judge/sandbox/engine"
	"judgemicro/internal/judge/sandbox/verdict"
)

func TestHealthCheckHealthy(t *testing.T) {
	t.Parallel()
	svc, eng := newTestService(t, func(cfg *Config) {
		cfg.Pinger = &fakePinger{}
	})

	status := svc.HealthCheck(context.Background())
	if status.Status != "healthy" {
		t.Fatalf("expected healthy, got %s (%s)", status.Status, status.Error)
	}
	if !status.DockerAvailable {
		t.Fatalf("expected docker available")
	}
	if status.Service != "Judge Microservice" {
		t.Fatalf("unexpected service name %q", status.Service)
	}
	if !slices.Contains(status.SupportedLanguages, "c") || !slices.Contains(status.SupportedLanguages, "cpp") {
		t.Fatalf("unexpected languages %v", status.SupportedLanguages)
	}
	if status.LastCheck == "" || status.HealthCheckTime < 0 {
		t.Fatalf("missing check metadata: %+v", status)
	}

	// The probe must exercise the pipeline with the canonical solve.
	if eng.taskCount() != 1 {
		t.Fatalf("expected 1 probe task, got %d", eng.taskCount())
	}
	var doc struct {
		SolveParams []struct {
			Name string `json:"name"`
		} `json:"solve_params"`
	}
	if err := json.Unmarshal(eng.tasks[0].Config, &doc); err != nil {
		t.Fatalf("probe config invalid: %v", err)
	}
	if len(doc.SolveParams) != 1 || doc.SolveParams[0].Name != "a" {
		t.Fatalf("unexpected probe params: %+v", doc.SolveParams)
	}
}

func TestHealthCheckUnhealthyVerdict(t *testing.T) {
	t.Parallel()
	svc, eng := newTestService(t, func(cfg *Config) {
		cfg.Pinger = &fakePinger{err: errors.New("daemon down")}
	})
	eng.runFunc = func(ctx context.Context, task engine.Task) *verdict.Verdict {
		return verdict.NewInternal("runner image not found")
	}

	status := svc.HealthCheck(context.Background())
	if status.Status != "unhealthy" {
		t.Fatalf("expected unhealthy, got %s", status.Status)
	}
	if status.DockerAvailable {
		t.Fatalf("expected docker unavailable")
	}
	if status.Error == "" {
		t.Fatalf("expected error detail")
	}
}
