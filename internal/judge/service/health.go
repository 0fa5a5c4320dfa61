package service

import (
	"context"
	"time"

	"judgemicro/internal/judge/model"
	"judgemicro/internal/judge/sandbox/verdict"
)

const serviceName = "Judge Microservice"

// healthProbe exercises the full pipeline with the smallest possible
// submission: compile a one-line C function and check one output parameter.
var healthProbe = model.JudgeRequest{
	Language:     "c",
	UserCode:     "int solve(int *a) { *a = 42; return 0; }",
	SolveParams:  []model.SolveParam{{Name: "a", Type: "int", InputValue: 1}},
	Expected:     map[string]any{"a": 42},
	FunctionType: "int",
}

// HealthCheck reports whether the service can still judge submissions.
// It pings the container runtime and then runs the canonical probe end
// to end, so a stuck runner image or a wedged pool shows up here.
func (s *Service) HealthCheck(ctx context.Context) model.ServiceStatus {
	status := model.ServiceStatus{
		Service:            serviceName,
		SupportedLanguages: s.registry.Names(),
	}
	if s.pinger != nil {
		status.DockerAvailable = s.pinger.Ping(ctx) == nil
	}

	start := time.Now()
	resp, err := s.Submit(ctx, healthProbe)
	status.HealthCheckTime = time.Since(start).Seconds()
	status.LastCheck = time.Now().Format("2006-01-02 15:04:05")

	switch {
	case err != nil:
		status.Status = "unhealthy"
		status.Error = err.Error()
	case resp.Status == string(verdict.StatusSuccess):
		status.Status = "healthy"
	default:
		status.Status = "unhealthy"
		status.Error = resp.Message
	}
	return status
}
