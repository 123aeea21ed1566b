package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"studynotes-client/internal/domain"
)

// AttemptStore persists graded quiz attempts. Answers and per-question results are JSONB.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) RecordAttempt(ctx context.Context, attempt domain.Attempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	results, err := json.Marshal(attempt.Results.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_attempts (id, quiz_id, answers, results, score, total, percentage, submitted_at)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		attempt.ID, attempt.QuizID, string(answers), string(results),
		attempt.Results.Score, attempt.Results.Total, attempt.Results.Percentage, attempt.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) ListAttempts(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id, answers, results, score, total, percentage, submitted_at
		FROM quiz_attempts
		WHERE $1 = '' OR quiz_id = $1
		ORDER BY submitted_at, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var (
			a                domain.Attempt
			answers, results []byte
		)
		if err := rows.Scan(&a.ID, &a.QuizID, &answers, &results,
			&a.Results.Score, &a.Results.Total, &a.Results.Percentage, &a.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		if err := json.Unmarshal(results, &a.Results.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
		a.Results.QuizID = a.QuizID
		a.SubmittedAt = a.SubmittedAt.UTC()
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}
