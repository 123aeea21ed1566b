package app

import (
	"maps"
	"slices"
	"sync"

	"studynotes-client/internal/domain"
)

// SessionState is a copy of everything a quiz-taking session holds.
type SessionState struct {
	CurrentQuiz          *domain.Quiz        `json:"currentQuiz"`
	CurrentQuestionIndex int                 `json:"currentQuestionIndex"`
	UserAnswers          map[string]string   `json:"userAnswers"`
	Results              *domain.QuizResults `json:"results"`
	IsGenerating         bool                `json:"isGenerating"`
	IsSubmitting         bool                `json:"isSubmitting"`
	IsLoading            bool                `json:"isLoading"`
	Error                *string             `json:"error"`
}

// SessionStore holds the mutable state of one quiz-taking session. It is owned by
// the session scope (one per connection or page) and passed to whoever needs it.
type SessionStore struct {
	mu    sync.RWMutex
	state SessionState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{state: initialState()}
}

func initialState() SessionState {
	return SessionState{UserAnswers: make(map[string]string)}
}

// SetCurrentQuiz replaces the quiz and rewinds to the first question. Answers and
// results are left alone; call ResetQuiz first for a clean slate.
func (s *SessionStore) SetCurrentQuiz(quiz *domain.Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentQuiz = quiz
	s.state.CurrentQuestionIndex = 0
}

// SetCurrentQuestionIndex moves the pointer without bounds checks; GoToQuestion validates.
func (s *SessionStore) SetCurrentQuestionIndex(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentQuestionIndex = index
}

func (s *SessionStore) SetUserAnswer(questionID, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.UserAnswers[questionID] = answer
}

func (s *SessionStore) ClearUserAnswers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.UserAnswers = make(map[string]string)
}

func (s *SessionStore) SetResults(results *domain.QuizResults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Results = results
}

// SetIsGenerating clears any error when generation starts.
func (s *SessionStore) SetIsGenerating(generating bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsGenerating = generating
	if generating {
		s.state.Error = nil
	}
}

func (s *SessionStore) SetIsSubmitting(submitting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsSubmitting = submitting
}

func (s *SessionStore) SetIsLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsLoading = loading
}

// SetError stores msg and ends every in-flight operation flag. A nil msg clears the error.
func (s *SessionStore) SetError(msg *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = msg
	s.state.IsGenerating = false
	s.state.IsSubmitting = false
	s.state.IsLoading = false
}

// Fail is SetError with a plain message.
func (s *SessionStore) Fail(msg string) {
	s.SetError(&msg)
}

func (s *SessionStore) ResetQuiz() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = initialState()
}

func (s *SessionStore) NextQuestion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.state.CurrentQuiz
	if q.HasQuestions() && s.state.CurrentQuestionIndex < len(q.Questions)-1 {
		s.state.CurrentQuestionIndex++
	}
}

func (s *SessionStore) PreviousQuestion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentQuestionIndex > 0 {
		s.state.CurrentQuestionIndex--
	}
}

// GoToQuestion jumps to index if it is a valid question position.
func (s *SessionStore) GoToQuestion(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.state.CurrentQuiz
	if q.HasQuestions() && index >= 0 && index < len(q.Questions) {
		s.state.CurrentQuestionIndex = index
	}
}

// CurrentQuestion returns the question under the pointer, or nil when none is loaded.
func (s *SessionStore) CurrentQuestion() *domain.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentQuestionLocked()
}

func (s *SessionStore) currentQuestionLocked() *domain.Question {
	q := s.state.CurrentQuiz
	i := s.state.CurrentQuestionIndex
	if !q.HasQuestions() || i < 0 || i >= len(q.Questions) {
		return nil
	}
	question := q.Questions[i]
	return &question
}

func (s *SessionStore) IsFirstQuestion() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentQuestionIndex == 0
}

// IsLastQuestion is true when no questions are loaded.
func (s *SessionStore) IsLastQuestion() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLastLocked()
}

func (s *SessionStore) isLastLocked() bool {
	q := s.state.CurrentQuiz
	if !q.HasQuestions() {
		return true
	}
	return s.state.CurrentQuestionIndex == len(q.Questions)-1
}

func (s *SessionStore) AnsweredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.UserAnswers)
}

// CanSubmit is true once every loaded question has a non-empty answer.
func (s *SessionStore) CanSubmit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canSubmitLocked()
}

func (s *SessionStore) canSubmitLocked() bool {
	q := s.state.CurrentQuiz
	if !q.HasQuestions() {
		return false
	}
	for _, question := range q.Questions {
		if s.state.UserAnswers[question.ID] == "" {
			return false
		}
	}
	return true
}

// Answers returns a copy of the answer map.
func (s *SessionStore) Answers() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.state.UserAnswers)
}

// Snapshot returns a deep copy of the session state.
func (s *SessionStore) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *SessionStore) snapshotLocked() SessionState {
	st := s.state
	st.UserAnswers = maps.Clone(s.state.UserAnswers)
	if s.state.CurrentQuiz != nil {
		quiz := *s.state.CurrentQuiz
		quiz.Questions = slices.Clone(quiz.Questions)
		st.CurrentQuiz = &quiz
	}
	if s.state.Results != nil {
		results := *s.state.Results
		results.Results = slices.Clone(results.Results)
		st.Results = &results
	}
	if s.state.Error != nil {
		msg := *s.state.Error
		st.Error = &msg
	}
	return st
}
