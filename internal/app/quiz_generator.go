package app

import (
	"context"
	"log/slog"

	"studynotes-client/internal/domain"
	"studynotes-client/internal/jobs"
)

const defaultNumQuestions = 5

// QuizBackend is the part of the backend that generates quizzes.
type QuizBackend interface {
	DocumentStatus(ctx context.Context, documentID string) (domain.JobStatus, error)
	GenerateQuiz(ctx context.Context, req domain.GenerateQuizRequest) (domain.Quiz, error)
	QuizStatus(ctx context.Context, quizID string) (domain.JobStatus, error)
	Quiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

type GeneratorOption func(*QuizGenerator)

func WithGeneratorPolicies(document, quiz jobs.Policy) GeneratorOption {
	return func(g *QuizGenerator) {
		g.documentPolicy = document
		g.quizPolicy = quiz
	}
}

func WithGeneratorTrackerOptions(opts ...jobs.Option) GeneratorOption {
	return func(g *QuizGenerator) { g.trackerOpts = append(g.trackerOpts, opts...) }
}

func WithGeneratorLogger(l *slog.Logger) GeneratorOption {
	return func(g *QuizGenerator) { g.logger = l }
}

// QuizGenerator turns a processed document into a ready-to-take quiz.
type QuizGenerator struct {
	backend        QuizBackend
	documentPolicy jobs.Policy
	quizPolicy     jobs.Policy
	trackerOpts    []jobs.Option
	logger         *slog.Logger
}

func NewQuizGenerator(backend QuizBackend, opts ...GeneratorOption) *QuizGenerator {
	g := &QuizGenerator{
		backend:        backend,
		documentPolicy: jobs.DocumentReadinessPolicy(),
		quizPolicy:     jobs.QuizReadinessPolicy(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate waits for the document, requests a quiz and waits until the quiz is
// ready, returning it with its questions.
func (g *QuizGenerator) Generate(ctx context.Context, req domain.GenerateQuizRequest) (domain.Quiz, error) {
	if req.NumQuestions == 0 {
		req.NumQuestions = defaultNumQuestions
	}
	if err := validate.Struct(req); err != nil {
		return domain.Quiz{}, validationError(domain.ErrInvalidQuizRequest, err)
	}

	if err := jobs.WaitReady(ctx, req.DocumentID, g.backend.DocumentStatus, g.documentPolicy, g.trackerOpts...); err != nil {
		return domain.Quiz{}, err
	}

	created, err := g.backend.GenerateQuiz(ctx, req)
	if err != nil {
		return domain.Quiz{}, err
	}
	g.logger.Info("quiz requested", "document_id", req.DocumentID, "quiz_id", created.ID, "status", created.Status)
	if created.Status.JobStatus() == domain.JobReady && created.HasQuestions() {
		return created, nil
	}

	t := jobs.NewTracker(created.ID, g.backend.QuizStatus, g.backend.Quiz, g.quizPolicy, g.trackerOpts...)
	t.Start(ctx)
	snap, err := t.Wait(ctx)
	if err != nil {
		t.Stop()
		return domain.Quiz{}, err
	}

	switch {
	case snap.State == jobs.Succeeded:
		return *snap.Result, nil
	case jobs.IsTimeout(snap.Cause) && g.quizPolicy.OnExhausted == jobs.ExhaustProceed:
		g.logger.Warn("quiz not confirmed ready, loading anyway", "quiz_id", created.ID, "attempts", snap.Attempts)
		return g.backend.Quiz(ctx, created.ID)
	default:
		return domain.Quiz{}, &jobs.JobError{JobID: created.ID, Message: snap.Error, Err: snap.Cause}
	}
}
