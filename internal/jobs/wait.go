package jobs

import (
	"context"
	"errors"

	"studynotes-client/internal/poll"
)

// JobError is a terminal failure of a tracked job. Message is meant for users.
type JobError struct {
	JobID   string
	Message string
	Err     error
}

func (e *JobError) Error() string { return e.Message }

func (e *JobError) Unwrap() error { return e.Err }

// IsTimeout reports whether err comes from a bounded wait running out of attempts.
func IsTimeout(err error) bool {
	return errors.Is(err, poll.ErrAttemptsExhausted)
}

// WaitReady blocks until jobID reaches one of policy's success statuses.
// When a bounded policy runs out of attempts it returns nil if the policy says
// ExhaustProceed, and a *JobError otherwise.
func WaitReady(ctx context.Context, jobID string, fetch StatusFunc, policy Policy, opts ...Option) error {
	t := NewTracker[struct{}](jobID, fetch, func(context.Context, string) (struct{}, error) {
		return struct{}{}, nil
	}, policy, opts...)
	t.Start(ctx)
	snap, err := t.Wait(ctx)
	if err != nil {
		t.Stop()
		return err
	}

	switch snap.State {
	case Succeeded:
		return nil
	case Failed:
		if IsTimeout(snap.Cause) && policy.OnExhausted == ExhaustProceed {
			t.opts.logger.Warn("readiness not confirmed, proceeding anyway",
				"job_id", jobID, "policy", policy.Name, "attempts", snap.Attempts, "last_status", snap.Status)
			return nil
		}
		return &JobError{JobID: jobID, Message: snap.Error, Err: snap.Cause}
	default:
		if err := ctx.Err(); err != nil {
			return err
		}
		return &JobError{JobID: jobID, Message: "Stopped waiting for " + policy.Name + ".", Err: context.Canceled}
	}
}
