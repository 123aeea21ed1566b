package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"studynotes-client/internal/domain"
)

// ViewState is what a quiz page is currently showing.
type ViewState int

const (
	ViewLoading ViewState = iota
	ViewQuiz
	ViewResults
	ViewError
)

func (v ViewState) String() string {
	switch v {
	case ViewQuiz:
		return "quiz"
	case ViewResults:
		return "results"
	case ViewError:
		return "error"
	default:
		return "loading"
	}
}

func (v ViewState) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// QuizClient is the backend the flow loads quizzes from and submits answers to.
type QuizClient interface {
	Quiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SubmitQuiz(ctx context.Context, quizID string, answers map[string]string) (domain.QuizResults, error)
}

// AttemptRecorder keeps a history of graded submissions.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt domain.Attempt) error
}

// SubmissionObserver is told about every submission outcome.
type SubmissionObserver interface {
	ObserveSubmission(ok bool)
}

// QuizMaker builds a ready quiz from a document (see QuizGenerator).
type QuizMaker interface {
	Generate(ctx context.Context, req domain.GenerateQuizRequest) (domain.Quiz, error)
}

type FlowOption func(*FlowController)

func WithQuizMaker(m QuizMaker) FlowOption {
	return func(c *FlowController) { c.maker = m }
}

func WithRecorder(r AttemptRecorder) FlowOption {
	return func(c *FlowController) { c.recorder = r }
}

func WithFlowLogger(l *slog.Logger) FlowOption {
	return func(c *FlowController) { c.logger = l }
}

func WithSubmissionObserver(o SubmissionObserver) FlowOption {
	return func(c *FlowController) { c.observer = o }
}

// WithClock is used by tests for deterministic attempt timestamps.
func WithClock(now func() time.Time) FlowOption {
	return func(c *FlowController) { c.now = now }
}

// FlowController sequences one quiz-taking session: loading, answering,
// submitting, reviewing and retaking.
type FlowController struct {
	store    *SessionStore
	client   QuizClient
	maker    QuizMaker
	recorder AttemptRecorder
	observer SubmissionObserver
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	view ViewState
}

func NewFlowController(store *SessionStore, client QuizClient, opts ...FlowOption) *FlowController {
	c := &FlowController{
		store:  store,
		client: client,
		logger: slog.Default(),
		now:    time.Now,
		view:   ViewLoading,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store exposes the session state for navigation and answering.
func (c *FlowController) Store() *SessionStore {
	return c.store
}

func (c *FlowController) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *FlowController) setView(v ViewState) {
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
}

// Load shows quizID. A quiz already held with its questions is reused without a
// network call, going straight to results if it was already submitted.
func (c *FlowController) Load(ctx context.Context, quizID string) error {
	snap := c.store.Snapshot()
	if q := snap.CurrentQuiz; q != nil {
		if q.ID == quizID && q.HasQuestions() {
			if snap.Results != nil {
				c.setView(ViewResults)
			} else {
				c.setView(ViewQuiz)
			}
			return nil
		}
		if q.ID != quizID {
			c.store.ResetQuiz()
		}
	}

	c.setView(ViewLoading)
	c.store.SetIsLoading(true)
	quiz, err := c.client.Quiz(ctx, quizID)
	if err != nil {
		c.logger.Warn("failed to load quiz", "quiz_id", quizID, "error", err)
		c.store.Fail(domain.ErrorMessage(err, "Failed to load quiz"))
		c.setView(ViewError)
		return err
	}

	c.show(quiz)
	c.store.SetIsLoading(false)
	return nil
}

// Generate builds a new quiz from a document and shows it. The store reports
// IsGenerating until the quiz is ready or generation fails.
func (c *FlowController) Generate(ctx context.Context, req domain.GenerateQuizRequest) error {
	if c.maker == nil {
		return fmt.Errorf("quiz generation: %w", domain.ErrNotConfigured)
	}
	c.store.ResetQuiz()
	c.setView(ViewLoading)
	c.store.SetIsGenerating(true)
	quiz, err := c.maker.Generate(ctx, req)
	if err != nil {
		c.logger.Warn("failed to generate quiz", "document_id", req.DocumentID, "error", err)
		c.store.Fail(domain.ErrorMessage(err, "Failed to generate quiz"))
		c.setView(ViewError)
		return err
	}
	c.store.SetIsGenerating(false)
	if !quiz.HasQuestions() {
		return c.Load(ctx, quiz.ID)
	}
	c.show(quiz)
	return nil
}

func (c *FlowController) show(quiz domain.Quiz) {
	sort.SliceStable(quiz.Questions, func(i, j int) bool {
		return quiz.Questions[i].OrderIndex < quiz.Questions[j].OrderIndex
	})
	c.store.SetCurrentQuiz(&quiz)
	c.setView(ViewQuiz)
}

// Submit sends the current answers as they are; completeness is the caller's
// concern (see SessionStore.CanSubmit). Failures are stored and the view stays on the quiz.
func (c *FlowController) Submit(ctx context.Context) (*domain.QuizResults, error) {
	snap := c.store.Snapshot()
	if snap.CurrentQuiz == nil {
		return nil, domain.ErrNoActiveQuiz
	}
	quizID := snap.CurrentQuiz.ID

	c.store.SetIsSubmitting(true)
	defer c.store.SetIsSubmitting(false)

	results, err := c.client.SubmitQuiz(ctx, quizID, snap.UserAnswers)
	if c.observer != nil {
		c.observer.ObserveSubmission(err == nil)
	}
	if err != nil {
		c.logger.Warn("failed to submit quiz", "quiz_id", quizID, "error", err)
		c.store.Fail(domain.ErrorMessage(err, "Failed to submit quiz"))
		return nil, err
	}

	c.store.SetError(nil)
	c.store.SetResults(&results)
	c.setView(ViewResults)
	c.logger.Info("quiz submitted", "quiz_id", quizID, "score", results.Score, "total", results.Total)

	if c.recorder != nil {
		attempt := domain.Attempt{
			ID:          uuid.NewString(),
			QuizID:      quizID,
			Answers:     snap.UserAnswers,
			Results:     results,
			SubmittedAt: c.now().UTC(),
		}
		if err := c.recorder.RecordAttempt(ctx, attempt); err != nil {
			c.logger.Error("failed to record attempt", "quiz_id", quizID, "error", err)
		}
	}
	return &results, nil
}

// Retake clears answers and results and returns to the same question set.
func (c *FlowController) Retake() error {
	if c.store.Snapshot().CurrentQuiz == nil {
		return domain.ErrNoActiveQuiz
	}
	c.store.ClearUserAnswers()
	c.store.SetResults(nil)
	c.setView(ViewQuiz)
	return nil
}

// Close tears the session down.
func (c *FlowController) Close() {
	c.store.ResetQuiz()
	c.setView(ViewLoading)
}

// QuizView is the render model of a quiz page.
type QuizView struct {
	State           ViewState           `json:"state"`
	Quiz            *domain.Quiz        `json:"quiz,omitempty"`
	CurrentIndex    int                 `json:"currentIndex"`
	CurrentQuestion *domain.Question    `json:"currentQuestion,omitempty"`
	Answers         map[string]string   `json:"answers"`
	AnsweredCount   int                 `json:"answeredCount"`
	IsFirst         bool                `json:"isFirst"`
	IsLast          bool                `json:"isLast"`
	CanSubmit       bool                `json:"canSubmit"`
	IsLoading       bool                `json:"isLoading"`
	IsGenerating    bool                `json:"isGenerating"`
	IsSubmitting    bool                `json:"isSubmitting"`
	Results         *domain.QuizResults `json:"results,omitempty"`
	Error           *string             `json:"error,omitempty"`
}

func (c *FlowController) View() QuizView {
	state := c.State()

	s := c.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.snapshotLocked()
	return QuizView{
		State:           state,
		Quiz:            st.CurrentQuiz,
		CurrentIndex:    st.CurrentQuestionIndex,
		CurrentQuestion: s.currentQuestionLocked(),
		Answers:         st.UserAnswers,
		AnsweredCount:   len(st.UserAnswers),
		IsFirst:         st.CurrentQuestionIndex == 0,
		IsLast:          s.isLastLocked(),
		CanSubmit:       s.canSubmitLocked(),
		IsLoading:       st.IsLoading,
		IsGenerating:    st.IsGenerating,
		IsSubmitting:    st.IsSubmitting,
		Results:         st.Results,
		Error:           st.Error,
	}
}
