package model

// JudgeTask is the Kafka payload for asynchronous judge submissions.
type JudgeTask struct {
	SubmissionID string       `json:"submission_id"`
	Request      JudgeRequest `json:"request"`
	SubmittedAt  int64        `json:"submitted_at"`
}

// VerdictEvent is the Kafka payload published when a submission
// reaches a terminal status.
type VerdictEvent struct {
	SubmissionID string        `json:"submission_id"`
	Response     JudgeResponse `json:"response"`
	EmittedAt    int64         `json:"emitted_at"`
}
