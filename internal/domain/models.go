package domain

import "time"

// QuestionType is the kind of answer a question expects.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// QuizStatus is the generation state the backend reports for a quiz.
type QuizStatus string

const (
	QuizGenerating QuizStatus = "generating"
	QuizReady      QuizStatus = "ready"
	QuizFailed     QuizStatus = "failed"
)

// Question is a single quiz question as served to the taker (no answer key).
type Question struct {
	ID           string       `json:"id"`
	QuestionType QuestionType `json:"question_type"`
	QuestionText string       `json:"question_text"`
	Options      []string     `json:"options"` // nil for short_answer
	OrderIndex   int          `json:"order_index"`
}

// Quiz is a generated quiz. Questions is nil until the quiz is fetched with its questions.
type Quiz struct {
	ID             string     `json:"id"`
	DocumentID     string     `json:"document_id"`
	Title          string     `json:"title"`
	Status         QuizStatus `json:"status"`
	TotalQuestions int        `json:"total_questions"`
	CreatedAt      time.Time  `json:"created_at"`
	Questions      []Question `json:"questions,omitempty"`
}

// HasQuestions reports whether the quiz was loaded together with its question set.
func (q *Quiz) HasQuestions() bool {
	return q != nil && q.Questions != nil
}

// AnswerResult is the graded outcome of one answer.
type AnswerResult struct {
	QuestionID    string  `json:"question_id"`
	IsCorrect     bool    `json:"is_correct"`
	UserAnswer    string  `json:"user_answer"`
	CorrectAnswer string  `json:"correct_answer"`
	Explanation   *string `json:"explanation"`
}

// QuizResults is the graded submission. Percentage is 0-100 as rounded by the backend.
type QuizResults struct {
	QuizID     string         `json:"quiz_id"`
	Score      int            `json:"score"`
	Total      int            `json:"total"`
	Percentage float64        `json:"percentage"`
	Results    []AnswerResult `json:"results"`
}

// GenerateQuizRequest asks the backend to build a quiz from a document.
type GenerateQuizRequest struct {
	DocumentID    string         `json:"document_id" validate:"required"`
	NumQuestions  int            `json:"num_questions,omitempty" validate:"min=1,max=20"`
	QuestionTypes []QuestionType `json:"question_types,omitempty" validate:"omitempty,dive,oneof=multiple_choice true_false short_answer"`
}

// Summary is the AI summary of an uploaded document.
type Summary struct {
	DocumentID string `json:"document_id"`
	SummaryID  string `json:"summary_id,omitempty"`
	Text       string `json:"summary_text"`
}

// Attempt is one recorded quiz submission.
type Attempt struct {
	ID          string            `json:"id"`
	QuizID      string            `json:"quiz_id"`
	Answers     map[string]string `json:"answers"`
	Results     QuizResults       `json:"results"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// HistoryKind selects which history listing to fetch.
type HistoryKind string

const (
	HistoryAll       HistoryKind = "all"
	HistorySummaries HistoryKind = "summaries"
	HistoryQuizzes   HistoryKind = "quizzes"
)

// HistoryItem is one row of the combined summary/quiz history.
type HistoryItem struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"document_id"`
	DocumentTitle  string    `json:"document_title"`
	Title          *string   `json:"title"`
	Preview        *string   `json:"preview"`
	Type           string    `json:"type"`
	Status         *string   `json:"status"`
	TotalQuestions *int      `json:"total_questions"`
	CreatedAt      time.Time `json:"created_at"`
	AIModel        string    `json:"ai_model"`
}

// HistoryPage is a page of history items.
type HistoryPage struct {
	Items []HistoryItem `json:"data"`
	Total int           `json:"total"`
}

// ContentType identifies what a feedback entry is about.
type ContentType string

const (
	ContentSummary ContentType = "summary"
	ContentQuiz    ContentType = "quiz"
)

// FeedbackRequest rates a summary or a quiz.
type FeedbackRequest struct {
	ContentID   string      `json:"content_id" validate:"required"`
	ContentType ContentType `json:"content_type" validate:"required,oneof=summary quiz"`
	Rating      int         `json:"rating" validate:"min=1,max=5"`
	Comment     string      `json:"comment,omitempty" validate:"max=1000"`
}

// Feedback is a stored feedback entry.
type Feedback struct {
	ID          string      `json:"id"`
	ContentID   string      `json:"content_id"`
	ContentType ContentType `json:"content_type"`
	Rating      int         `json:"rating"`
	Comment     *string     `json:"comment"`
	CreatedAt   time.Time   `json:"created_at"`
}

// SessionKind tells which page a live session is showing.
type SessionKind string

const (
	SessionQuiz    SessionKind = "quiz"
	SessionSummary SessionKind = "summary"
)

// LiveSession is one open quiz or summary connection.
type LiveSession struct {
	ID        string      `json:"id"`
	Kind      SessionKind `json:"kind"`
	Subject   string      `json:"subject"` // quiz or document id
	StartedAt time.Time   `json:"started_at"`
}
