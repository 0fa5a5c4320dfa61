package model

// Submission lifecycle states stored in the status cache.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// SubmissionStatus is the cached judge state for one submission.
type SubmissionStatus struct {
	SubmissionID string         `json:"submission_id"`
	Status       string         `json:"status"`
	ReceivedAt   int64          `json:"received_at"`
	FinishedAt   int64          `json:"finished_at,omitempty"`
	Response     *JudgeResponse `json:"response,omitempty"`
	ErrorCode    int            `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// ServiceStatus is the live health report for the judge service.
type ServiceStatus struct {
	Service            string   `json:"service"`
	Status             string   `json:"status"`
	DockerAvailable    bool     `json:"docker_available"`
	HealthCheckTime    float64  `json:"health_check_time"`
	SupportedLanguages []string `json:"supported_languages"`
	LastCheck          string   `json:"last_check"`
	Error              string   `json:"error,omitempty"`
}
