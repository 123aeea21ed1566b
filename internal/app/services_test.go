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
	"studynotes-client/internal/jobs"
)

// fakeBackend scripts document and quiz statuses; the last status repeats.
type fakeBackend struct {
	mu              sync.Mutex
	docStatuses     []domain.JobStatus
	quizStatuses    []domain.JobStatus
	docCalls        int
	quizCalls       int
	summaryCalls    int
	generateCalls   int
	summaryErr      error
	generated       domain.Quiz
	lastQuizRequest domain.GenerateQuizRequest
	feedback        []domain.FeedbackRequest

	// summaryGate, when set, holds Summary until closed or the call's ctx ends.
	summaryGate    chan struct{}
	summaryEntered chan struct{}
}

func nextStatus(statuses []domain.JobStatus, call int) domain.JobStatus {
	if len(statuses) == 0 {
		return domain.JobUnknown
	}
	if call > len(statuses) {
		call = len(statuses)
	}
	return statuses[call-1]
}

func (f *fakeBackend) DocumentStatus(context.Context, string) (domain.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docCalls++
	return nextStatus(f.docStatuses, f.docCalls), nil
}

func (f *fakeBackend) Summary(ctx context.Context, documentID string) (domain.Summary, error) {
	f.mu.Lock()
	f.summaryCalls++
	err := f.summaryErr
	gate, entered := f.summaryGate, f.summaryEntered
	f.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Summary{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summary{DocumentID: documentID, Text: "# Test Summary\n\n- Point 1"}, nil
}

func (f *fakeBackend) docCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docCalls
}

func (f *fakeBackend) GenerateSummary(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	return nil
}

func (f *fakeBackend) GenerateQuiz(_ context.Context, req domain.GenerateQuizRequest) (domain.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	f.lastQuizRequest = req
	return f.generated, nil
}

func (f *fakeBackend) QuizStatus(context.Context, string) (domain.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quizCalls++
	return nextStatus(f.quizStatuses, f.quizCalls), nil
}

func (f *fakeBackend) Quiz(_ context.Context, quizID string) (domain.Quiz, error) {
	q := *threeQuestionQuiz(quizID)
	return q, nil
}

func (f *fakeBackend) SubmitFeedback(_ context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, req)
	return domain.Feedback{ID: "f-1", ContentID: req.ContentID, ContentType: req.ContentType, Rating: req.Rating}, nil
}

func (f *fakeBackend) Feedback(_ context.Context, contentType domain.ContentType, contentID string) ([]domain.Feedback, error) {
	return []domain.Feedback{{ID: "f-1", ContentID: contentID, ContentType: contentType, Rating: 5}}, nil
}

type mapSummaryCache struct {
	mu    sync.Mutex
	items map[string]domain.Summary
	puts  int
}

func (c *mapSummaryCache) GetSummary(_ context.Context, documentID string) (domain.Summary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[documentID]
	return s, ok, nil
}

func (c *mapSummaryCache) PutSummary(_ context.Context, s domain.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]domain.Summary)
	}
	c.items[s.DocumentID] = s
	c.puts++
	return nil
}

func fastPolicy(p jobs.Policy, maxAttempts int) jobs.Policy {
	p.Interval = time.Millisecond
	p.MaxAttempts = maxAttempts
	return p
}

func waitSnapshot[T any](t *testing.T, tr *jobs.Tracker[T]) jobs.Snapshot[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := tr.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func TestSummaryWatchCachesResult(t *testing.T) {
	backend := &fakeBackend{docStatuses: []domain.JobStatus{domain.JobProcessing, domain.JobCompleted}}
	cache := &mapSummaryCache{}
	svc := NewSummaryService(backend,
		WithSummaryCache(cache),
		WithSummaryPolicies(fastPolicy(jobs.SummaryPolicy(), 0), jobs.DocumentReadinessPolicy()),
	)

	snap := waitSnapshot(t, svc.Watch(context.Background(), "doc-1"))
	require.Equal(t, jobs.Succeeded, snap.State)
	assert.Equal(t, "# Test Summary\n\n- Point 1", snap.Result.Text)
	assert.Equal(t, 1, cache.puts)

	again := svc.Watch(context.Background(), "doc-1")
	assert.Equal(t, jobs.Succeeded, again.Snapshot().State)
	assert.False(t, again.IsPolling())
	assert.Equal(t, 2, backend.docCalls)
	assert.Equal(t, 1, backend.summaryCalls)
}

func TestSummaryWatchersSurviveOneCancelling(t *testing.T) {
	backend := &fakeBackend{
		docStatuses:    []domain.JobStatus{domain.JobCompleted},
		summaryGate:    make(chan struct{}),
		summaryEntered: make(chan struct{}, 4),
	}
	cache := &mapSummaryCache{}
	svc := NewSummaryService(backend,
		WithSummaryCache(cache),
		WithSummaryPolicies(fastPolicy(jobs.SummaryPolicy(), 0), jobs.DocumentReadinessPolicy()),
	)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	watcherA := svc.Watch(ctxA, "doc-1")
	select {
	case <-backend.summaryEntered:
	case <-time.After(time.Second):
		t.Fatalf("summary fetch never started")
	}

	watcherB := svc.Watch(context.Background(), "doc-1")
	require.Eventually(t, func() bool { return backend.docCallCount() >= 2 }, time.Second, time.Millisecond)
	// let B join the in-flight fetch
	time.Sleep(20 * time.Millisecond)

	cancelA()
	snapA := waitSnapshot(t, watcherA)
	assert.Equal(t, jobs.Idle, snapA.State)

	close(backend.summaryGate)
	snapB := waitSnapshot(t, watcherB)
	require.Equal(t, jobs.Succeeded, snapB.State, snapB.Error)
	assert.Equal(t, "# Test Summary\n\n- Point 1", snapB.Result.Text)

	_, cached, _ := cache.GetSummary(context.Background(), "doc-1")
	assert.True(t, cached)
}

func TestSummaryWatchFailure(t *testing.T) {
	backend := &fakeBackend{docStatuses: []domain.JobStatus{domain.JobFailed}}
	cache := &mapSummaryCache{}
	svc := NewSummaryService(backend, WithSummaryCache(cache))

	snap := waitSnapshot(t, svc.Watch(context.Background(), "doc-1"))

	assert.Equal(t, jobs.Failed, snap.State)
	assert.Equal(t, "Summary generation failed.", snap.Error)
	assert.Zero(t, cache.puts)
}

func TestSummaryWatchStopsWithContext(t *testing.T) {
	backend := &fakeBackend{docStatuses: []domain.JobStatus{domain.JobProcessing}}
	svc := NewSummaryService(backend, WithSummaryPolicies(fastPolicy(jobs.SummaryPolicy(), 0), jobs.DocumentReadinessPolicy()))
	ctx, cancel := context.WithCancel(context.Background())

	tr := svc.Watch(ctx, "doc-1")
	cancel()
	snap := waitSnapshot(t, tr)

	assert.Equal(t, jobs.Idle, snap.State)
	assert.Eventually(t, func() bool { return !tr.IsPolling() }, time.Second, 5*time.Millisecond)
}

func TestSummaryGenerateWaitsForDocument(t *testing.T) {
	backend := &fakeBackend{docStatuses: []domain.JobStatus{domain.JobUploaded, domain.JobTextExtracted}}
	svc := NewSummaryService(backend, WithSummaryPolicies(jobs.SummaryPolicy(), fastPolicy(jobs.DocumentReadinessPolicy(), 30)))

	require.NoError(t, svc.Generate(context.Background(), "doc-1"))

	assert.Equal(t, 2, backend.docCalls)
	assert.Equal(t, 1, backend.generateCalls)
}

func TestSummaryGenerateTimesOut(t *testing.T) {
	backend := &fakeBackend{docStatuses: []domain.JobStatus{domain.JobProcessing}}
	svc := NewSummaryService(backend, WithSummaryPolicies(jobs.SummaryPolicy(), fastPolicy(jobs.DocumentReadinessPolicy(), 3)))

	err := svc.Generate(context.Background(), "doc-1")

	require.Error(t, err)
	assert.True(t, jobs.IsTimeout(err))
	assert.Equal(t, 0, backend.generateCalls)
}

func TestQuizGeneratorWaitsUntilReady(t *testing.T) {
	backend := &fakeBackend{
		docStatuses:  []domain.JobStatus{domain.JobCompleted},
		quizStatuses: []domain.JobStatus{domain.JobGenerating, domain.JobReady},
		generated:    domain.Quiz{ID: "quiz-1", DocumentID: "doc-1", Status: domain.QuizGenerating},
	}
	gen := NewQuizGenerator(backend, WithGeneratorPolicies(
		fastPolicy(jobs.DocumentReadinessPolicy(), 30),
		fastPolicy(jobs.QuizReadinessPolicy(), 30),
	))

	quiz, err := gen.Generate(context.Background(), domain.GenerateQuizRequest{DocumentID: "doc-1"})
	require.NoError(t, err)

	assert.Equal(t, "quiz-1", quiz.ID)
	assert.Len(t, quiz.Questions, 3)
	assert.Equal(t, 5, backend.lastQuizRequest.NumQuestions)
	assert.Equal(t, 2, backend.quizCalls)
}

func TestQuizGeneratorFailure(t *testing.T) {
	backend := &fakeBackend{
		docStatuses:  []domain.JobStatus{domain.JobCompleted},
		quizStatuses: []domain.JobStatus{domain.JobFailed},
		generated:    domain.Quiz{ID: "quiz-1", Status: domain.QuizGenerating},
	}
	gen := NewQuizGenerator(backend)

	_, err := gen.Generate(context.Background(), domain.GenerateQuizRequest{DocumentID: "doc-1", NumQuestions: 3})

	var jobErr *jobs.JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "Quiz generation failed.", err.Error())
}

func TestQuizGeneratorProceedsAfterExhaustion(t *testing.T) {
	backend := &fakeBackend{
		docStatuses:  []domain.JobStatus{domain.JobCompleted},
		quizStatuses: []domain.JobStatus{domain.JobGenerating},
		generated:    domain.Quiz{ID: "quiz-1", Status: domain.QuizGenerating},
	}
	quizPolicy := fastPolicy(jobs.QuizReadinessPolicy(), 2)
	quizPolicy.OnExhausted = jobs.ExhaustProceed
	gen := NewQuizGenerator(backend, WithGeneratorPolicies(fastPolicy(jobs.DocumentReadinessPolicy(), 30), quizPolicy))

	quiz, err := gen.Generate(context.Background(), domain.GenerateQuizRequest{DocumentID: "doc-1"})

	require.NoError(t, err)
	assert.Equal(t, "quiz-1", quiz.ID)
	assert.Equal(t, 2, backend.quizCalls)
}

func TestQuizGeneratorRejectsInvalidRequest(t *testing.T) {
	backend := &fakeBackend{}
	gen := NewQuizGenerator(backend)

	_, err := gen.Generate(context.Background(), domain.GenerateQuizRequest{DocumentID: "doc-1", NumQuestions: 21})
	assert.ErrorIs(t, err, domain.ErrInvalidQuizRequest)

	_, err = gen.Generate(context.Background(), domain.GenerateQuizRequest{
		DocumentID:    "doc-1",
		QuestionTypes: []domain.QuestionType{"essay"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuizRequest)
	assert.Zero(t, backend.docCalls)
}

func TestFeedbackValidation(t *testing.T) {
	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'a'
	}
	cases := []struct {
		name string
		req  domain.FeedbackRequest
	}{
		{"missing content", domain.FeedbackRequest{ContentType: domain.ContentQuiz, Rating: 3}},
		{"bad type", domain.FeedbackRequest{ContentID: "x", ContentType: "video", Rating: 3}},
		{"rating low", domain.FeedbackRequest{ContentID: "x", ContentType: domain.ContentQuiz, Rating: 0}},
		{"rating high", domain.FeedbackRequest{ContentID: "x", ContentType: domain.ContentSummary, Rating: 6}},
		{"long comment", domain.FeedbackRequest{ContentID: "x", ContentType: domain.ContentSummary, Rating: 4, Comment: string(long)}},
	}
	backend := &fakeBackend{}
	svc := NewFeedbackService(backend)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tc.req)
			assert.ErrorIs(t, err, domain.ErrInvalidFeedback)
		})
	}
	assert.Empty(t, backend.feedback)
}

func TestFeedbackSubmitAndList(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewFeedbackService(backend)

	fb, err := svc.Submit(context.Background(), domain.FeedbackRequest{ContentID: "quiz-1", ContentType: domain.ContentQuiz, Rating: 5, Comment: "  great  "})
	require.NoError(t, err)
	assert.Equal(t, "f-1", fb.ID)
	assert.Equal(t, "great", backend.feedback[0].Comment)

	list, err := svc.List(context.Background(), domain.ContentQuiz, "quiz-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.List(context.Background(), "video", "quiz-1")
	assert.True(t, errors.Is(err, domain.ErrInvalidFeedback))
}
