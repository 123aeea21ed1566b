package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynotes-client/internal/domain"
)

type fakeQuizClient struct {
	mu        sync.Mutex
	quiz      *domain.Quiz
	loadErr   error
	results   domain.QuizResults
	submitErr error
	loads     int
	submitted []map[string]string
	onSubmit  func()
}

func (f *fakeQuizClient) Quiz(_ context.Context, quizID string) (domain.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return domain.Quiz{}, f.loadErr
	}
	if f.quiz == nil || f.quiz.ID != quizID {
		return domain.Quiz{}, &domain.APIError{Op: "get quiz", StatusCode: 404, Detail: "Quiz not found"}
	}
	q := *f.quiz
	return q, nil
}

func (f *fakeQuizClient) SubmitQuiz(_ context.Context, _ string, answers map[string]string) (domain.QuizResults, error) {
	if f.onSubmit != nil {
		f.onSubmit()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, answers)
	if f.submitErr != nil {
		return domain.QuizResults{}, f.submitErr
	}
	return f.results, nil
}

type recordingRecorder struct {
	attempts []domain.Attempt
	err      error
}

func (r *recordingRecorder) RecordAttempt(_ context.Context, a domain.Attempt) error {
	r.attempts = append(r.attempts, a)
	return r.err
}

type countingSubmissions struct{ ok, failed int }

func (c *countingSubmissions) ObserveSubmission(ok bool) {
	if ok {
		c.ok++
	} else {
		c.failed++
	}
}

func gradedResults() domain.QuizResults {
	explanation := "Paris is the capital of France."
	return domain.QuizResults{
		QuizID:     "quiz-1",
		Score:      2,
		Total:      3,
		Percentage: 66.7,
		Results: []domain.AnswerResult{
			{QuestionID: "q1", IsCorrect: true, UserAnswer: "B", CorrectAnswer: "B"},
			{QuestionID: "q2", IsCorrect: false, UserAnswer: "True", CorrectAnswer: "False"},
			{QuestionID: "q3", IsCorrect: true, UserAnswer: "Paris", CorrectAnswer: "Paris", Explanation: &explanation},
		},
	}
}

func TestLoadFetchesAndShowsQuiz(t *testing.T) {
	client := &fakeQuizClient{quiz: threeQuestionQuiz("quiz-1")}
	c := NewFlowController(NewSessionStore(), client)

	assert.Equal(t, ViewLoading, c.State())
	require.NoError(t, c.Load(context.Background(), "quiz-1"))

	assert.Equal(t, ViewQuiz, c.State())
	view := c.View()
	assert.Equal(t, "quiz-1", view.Quiz.ID)
	assert.Equal(t, "q1", view.CurrentQuestion.ID)
	assert.True(t, view.IsFirst)
	assert.False(t, view.IsLoading)
	assert.False(t, view.CanSubmit)
}

func TestLoadSortsQuestionsByOrderIndex(t *testing.T) {
	quiz := threeQuestionQuiz("quiz-1")
	quiz.Questions[0].OrderIndex, quiz.Questions[2].OrderIndex = 2, 0
	client := &fakeQuizClient{quiz: quiz}
	c := NewFlowController(NewSessionStore(), client)

	require.NoError(t, c.Load(context.Background(), "quiz-1"))

	assert.Equal(t, "q3", c.Store().CurrentQuestion().ID)
}

func TestLoadReusesHeldQuiz(t *testing.T) {
	store := NewSessionStore()
	store.SetCurrentQuiz(threeQuestionQuiz("quiz-1"))
	client := &fakeQuizClient{}
	c := NewFlowController(store, client)

	require.NoError(t, c.Load(context.Background(), "quiz-1"))
	assert.Equal(t, ViewQuiz, c.State())

	results := gradedResults()
	store.SetResults(&results)
	require.NoError(t, c.Load(context.Background(), "quiz-1"))
	assert.Equal(t, ViewResults, c.State())

	assert.Equal(t, 0, client.loads)
}

func TestLoadRefetchesQuizWithoutQuestions(t *testing.T) {
	store := NewSessionStore()
	store.SetCurrentQuiz(&domain.Quiz{ID: "quiz-1", Status: domain.QuizReady})
	client := &fakeQuizClient{quiz: threeQuestionQuiz("quiz-1")}
	c := NewFlowController(store, client)

	require.NoError(t, c.Load(context.Background(), "quiz-1"))

	assert.Equal(t, 1, client.loads)
	assert.Len(t, store.Snapshot().CurrentQuiz.Questions, 3)
}

func TestLoadOfAnotherQuizDropsOldAnswers(t *testing.T) {
	store := NewSessionStore()
	store.SetCurrentQuiz(threeQuestionQuiz("quiz-old"))
	store.SetUserAnswer("q1", "A")
	client := &fakeQuizClient{quiz: threeQuestionQuiz("quiz-1")}
	c := NewFlowController(store, client)

	require.NoError(t, c.Load(context.Background(), "quiz-1"))

	assert.Empty(t, store.Answers())
	assert.Equal(t, "quiz-1", store.Snapshot().CurrentQuiz.ID)
}

func TestLoadFailureShowsError(t *testing.T) {
	client := &fakeQuizClient{}
	store := NewSessionStore()
	c := NewFlowController(store, client)

	err := c.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	assert.Equal(t, ViewError, c.State())
	snap := store.Snapshot()
	require.NotNil(t, snap.Error)
	assert.Equal(t, "failed to get quiz: Quiz not found", *snap.Error)
	assert.False(t, snap.IsLoading)
}

func TestSubmitGradesAnswers(t *testing.T) {
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	client := &fakeQuizClient{quiz: threeQuestionQuiz("quiz-1"), results: gradedResults()}
	store := NewSessionStore()
	recorder := &recordingRecorder{}
	submissions := &countingSubmissions{}
	c := NewFlowController(store, client,
		WithRecorder(recorder),
		WithSubmissionObserver(submissions),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, c.Load(context.Background(), "quiz-1"))

	client.onSubmit = func() {
		assert.True(t, store.Snapshot().IsSubmitting)
	}
	store.SetUserAnswer("q1", "B")
	store.NextQuestion()
	store.SetUserAnswer("q2", "True")
	store.NextQuestion()
	store.SetUserAnswer("q3", "Paris")
	require.True(t, store.CanSubmit())

	results, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, gradedResults(), *results)
	assert.Equal(t, 2, results.Score)
	assert.Equal(t, 3, results.Total)
	assert.InDelta(t, 66.7, results.Percentage, 0.001)

	snap := store.Snapshot()
	assert.Equal(t, gradedResults(), *snap.Results)
	assert.False(t, snap.IsSubmitting)
	assert.Equal(t, ViewResults, c.State())

	require.Len(t, client.submitted, 1)
	assert.Equal(t, map[string]string{"q1": "B", "q2": "True", "q3": "Paris"}, client.submitted[0])

	require.Len(t, recorder.attempts, 1)
	attempt := recorder.attempts[0]
	assert.NotEmpty(t, attempt.ID)
	assert.Equal(t, "quiz-1", attempt.QuizID)
	assert.Equal(t, now, attempt.SubmittedAt)
	assert.Equal(t, 1, submissions.ok)
}

func TestSubmitSendsIncompleteAnswersAsIs(t *testing.T) {
	client := &fakeQuizClient{quiz: threeQuestionQuiz("quiz-1"), results: gradedResults()}
	store := NewSessionStore()
	c := NewFlowController(store, client)
	require.NoError(t, c.Load(context.Background(), "quiz-1"))
	store.SetUserAnswer("q1", "B")

	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"q1": "B"}, client.submitted[0])
}

func TestSubmitFailureStaysOnQuiz(t *testing.T) {
	client := &fakeQuizClient{quiz: threeQuestionQuiz("quiz-1"), submitErr: errors.New("network down")}
	store := NewSessionStore()
	recorder := &recordingRecorder{}
	submissions := &countingSubmissions{}
	c := NewFlowController(store, client, WithRecorder(recorder), WithSubmissionObserver(submissions))
	require.NoError(t, c.Load(context.Background(), "quiz-1"))

	results, err := c.Submit(context.Background())
	require.Error(t, err)
	assert.Nil(t, results)

	snap := store.Snapshot()
	assert.Equal(t, ViewQuiz, c.State())
	assert.Nil(t, snap.Results)
	assert.False(t, snap.IsSubmitting)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "network down", *snap.Error)
	assert.Empty(t, recorder.attempts)
	assert.Equal(t, 1, submissions.failed)
}

func TestSubmitWithoutQuiz(t *testing.T) {
	c := NewFlowController(NewSessionStore(), &fakeQuizClient{})

	_, err := c.Submit(context.Background())

	assert.ErrorIs(t, err, domain.ErrNoActiveQuiz)
}

func TestSubmitIgnoresRecorderFailure(t *testing.T) {
	client := &fakeQuizClient{quiz: threeQuestionQuiz("quiz-1"), results: gradedResults()}
	c := NewFlowController(NewSessionStore(), client, WithRecorder(&recordingRecorder{err: errors.New("db down")}))
	require.NoError(t, c.Load(context.Background(), "quiz-1"))

	_, err := c.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ViewResults, c.State())
}

func TestRetakeKeepsQuiz(t *testing.T) {
	client := &fakeQuizClient{quiz: threeQuestionQuiz("quiz-1"), results: gradedResults()}
	store := NewSessionStore()
	c := NewFlowController(store, client)
	require.NoError(t, c.Load(context.Background(), "quiz-1"))
	store.SetUserAnswer("q1", "B")
	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Retake())

	snap := store.Snapshot()
	assert.Equal(t, ViewQuiz, c.State())
	assert.Equal(t, "quiz-1", snap.CurrentQuiz.ID)
	assert.Empty(t, snap.UserAnswers)
	assert.Nil(t, snap.Results)
	assert.Equal(t, 1, client.loads)
}

func TestRetakeWithoutQuiz(t *testing.T) {
	c := NewFlowController(NewSessionStore(), &fakeQuizClient{})

	assert.ErrorIs(t, c.Retake(), domain.ErrNoActiveQuiz)
}

func TestCloseResetsSession(t *testing.T) {
	client := &fakeQuizClient{quiz: threeQuestionQuiz("quiz-1")}
	store := NewSessionStore()
	c := NewFlowController(store, client)
	require.NoError(t, c.Load(context.Background(), "quiz-1"))
	store.SetUserAnswer("q1", "B")

	c.Close()

	assert.Equal(t, NewSessionStore().Snapshot(), store.Snapshot())
	assert.Equal(t, ViewLoading, c.State())
}

func TestViewStateText(t *testing.T) {
	for state, want := range map[ViewState]string{
		ViewLoading: "loading",
		ViewQuiz:    "quiz",
		ViewResults: "results",
		ViewError:   "error",
	} {
		text, err := state.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(text))
	}
}

type fakeQuizMaker struct {
	store             *SessionStore
	quiz              domain.Quiz
	err               error
	sawGenerating     bool
	requestedDocument string
}

func (m *fakeQuizMaker) Generate(_ context.Context, req domain.GenerateQuizRequest) (domain.Quiz, error) {
	m.sawGenerating = m.store.Snapshot().IsGenerating
	m.requestedDocument = req.DocumentID
	return m.quiz, m.err
}

func TestGenerateShowsNewQuiz(t *testing.T) {
	store := NewSessionStore()
	store.SetCurrentQuiz(threeQuestionQuiz("old-quiz"))
	store.SetUserAnswer("q1", "A")
	quiz := *threeQuestionQuiz("quiz-2")
	quiz.Questions[0].OrderIndex, quiz.Questions[2].OrderIndex = 2, 0
	maker := &fakeQuizMaker{store: store, quiz: quiz}
	client := &fakeQuizClient{}
	c := NewFlowController(store, client, WithQuizMaker(maker))

	require.NoError(t, c.Generate(context.Background(), domain.GenerateQuizRequest{DocumentID: "doc-1"}))

	assert.True(t, maker.sawGenerating)
	assert.Equal(t, "doc-1", maker.requestedDocument)
	assert.Equal(t, ViewQuiz, c.State())
	view := c.View()
	assert.False(t, view.IsGenerating)
	assert.Equal(t, "quiz-2", view.Quiz.ID)
	assert.Equal(t, "q3", view.CurrentQuestion.ID)
	assert.Empty(t, view.Answers)
	assert.Equal(t, 0, client.loads)
}

func TestGenerateLoadsQuizWithoutQuestions(t *testing.T) {
	store := NewSessionStore()
	maker := &fakeQuizMaker{store: store, quiz: domain.Quiz{ID: "quiz-1", Status: domain.QuizReady}}
	client := &fakeQuizClient{quiz: threeQuestionQuiz("quiz-1")}
	c := NewFlowController(store, client, WithQuizMaker(maker))

	require.NoError(t, c.Generate(context.Background(), domain.GenerateQuizRequest{DocumentID: "doc-1"}))

	assert.Equal(t, 1, client.loads)
	assert.Equal(t, ViewQuiz, c.State())
	assert.Len(t, c.View().Quiz.Questions, 3)
}

func TestGenerateFailureShowsError(t *testing.T) {
	store := NewSessionStore()
	maker := &fakeQuizMaker{store: store, err: errors.New("Quiz generation timed out. Please try again.")}
	c := NewFlowController(store, &fakeQuizClient{}, WithQuizMaker(maker))

	err := c.Generate(context.Background(), domain.GenerateQuizRequest{DocumentID: "doc-1"})
	require.Error(t, err)

	assert.True(t, maker.sawGenerating)
	assert.Equal(t, ViewError, c.State())
	snap := store.Snapshot()
	assert.False(t, snap.IsGenerating)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "Quiz generation timed out. Please try again.", *snap.Error)
}

func TestGenerateWithoutMaker(t *testing.T) {
	c := NewFlowController(NewSessionStore(), &fakeQuizClient{})
	err := c.Generate(context.Background(), domain.GenerateQuizRequest{DocumentID: "doc-1"})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.Equal(t, ViewLoading, c.State())
}
