package jobs

import (
	"time"

	"studynotes-client/internal/domain"
)

// Outcome is what a single status observation means for a tracked job.
type Outcome int

const (
	Continue Outcome = iota
	Success
	Failure
)

// ExhaustAction decides what a bounded readiness wait does when it runs out of attempts.
type ExhaustAction int

const (
	// ExhaustFail surfaces a timeout error.
	ExhaustFail ExhaustAction = iota
	// ExhaustProceed lets the caller continue as if the job were ready.
	ExhaustProceed
)

// ParseExhaustAction accepts "fail" or "proceed"; anything else is ExhaustFail.
func ParseExhaustAction(raw string) ExhaustAction {
	if raw == "proceed" {
		return ExhaustProceed
	}
	return ExhaustFail
}

// Policy is the per call site configuration for waiting on a backend job.
type Policy struct {
	Name        string
	Interval    time.Duration
	MaxAttempts int // 0 polls until a terminal status
	Success     []domain.JobStatus
	Failure     []domain.JobStatus

	// FailureMessage is stored when the job reports a failure status.
	FailureMessage string
	// FetchErrorMessage replaces the transport error text when set.
	FetchErrorMessage string
	// TimeoutMessage is stored when a bounded policy runs out of attempts.
	TimeoutMessage string
	OnExhausted    ExhaustAction
}

// Classify maps a status onto the policy's terminal sets. Failure wins if a
// status is listed in both.
func (p Policy) Classify(status domain.JobStatus) Outcome {
	for _, s := range p.Failure {
		if s == status {
			return Failure
		}
	}
	for _, s := range p.Success {
		if s == status {
			return Success
		}
	}
	return Continue
}

func (p Policy) fetchErrorMessage(err error) string {
	if p.FetchErrorMessage != "" {
		return p.FetchErrorMessage
	}
	return domain.ErrorMessage(err, "Failed to fetch job status.")
}

func (p Policy) failureMessage() string {
	if p.FailureMessage != "" {
		return p.FailureMessage
	}
	return p.Name + " failed."
}

func (p Policy) timeoutMessage() string {
	if p.TimeoutMessage != "" {
		return p.TimeoutMessage
	}
	return "Timed out waiting for " + p.Name + "."
}

// SummaryPolicy polls a document's summary status every 5s until it completes or fails.
func SummaryPolicy() Policy {
	return Policy{
		Name:              "summary",
		Interval:          5 * time.Second,
		Success:           []domain.JobStatus{domain.JobCompleted, domain.JobSummarized},
		Failure:           []domain.JobStatus{domain.JobFailed},
		FailureMessage:    "Summary generation failed.",
		FetchErrorMessage: "Failed to fetch summary status.",
	}
}

// DocumentReadinessPolicy waits up to 30s for a freshly uploaded document to have its text extracted.
func DocumentReadinessPolicy() Policy {
	return Policy{
		Name:        "document readiness",
		Interval:    time.Second,
		MaxAttempts: 30,
		Success: []domain.JobStatus{
			domain.JobTextExtracted,
			domain.JobSummaryReady,
			domain.JobCompleted,
			domain.JobSummarized,
		},
		Failure:        []domain.JobStatus{domain.JobFailed},
		FailureMessage: "Document processing failed.",
		TimeoutMessage: "Document is still processing. Please try again shortly.",
	}
}

// QuizReadinessPolicy waits up to 30s for a quiz to leave the generating state.
func QuizReadinessPolicy() Policy {
	return Policy{
		Name:           "quiz generation",
		Interval:       time.Second,
		MaxAttempts:    30,
		Success:        []domain.JobStatus{domain.JobReady},
		Failure:        []domain.JobStatus{domain.JobFailed},
		FailureMessage: "Quiz generation failed.",
		TimeoutMessage: "Quiz generation is taking longer than expected.",
	}
}
