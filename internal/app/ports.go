package app

import (
	"context"

	"studynotes-client/internal/domain"
)

// SessionRegistry tracks the live sessions served by this process (in-memory, Redis).
type SessionRegistry interface {
	Register(ctx context.Context, session domain.LiveSession) error
	Touch(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (domain.LiveSession, error)
	Unregister(ctx context.Context, id string) error
	Active() int
}

// AttemptStore keeps recorded quiz attempts (in-memory, Postgres).
type AttemptStore interface {
	AttemptRecorder
	// ListAttempts returns attempts for quizID, or all attempts when quizID is empty, oldest first.
	ListAttempts(ctx context.Context, quizID string) ([]domain.Attempt, error)
}
