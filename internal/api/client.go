// Package api is the HTTP client for the document, quiz, history and feedback backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"studynotes-client/internal/domain"
)

const apiPrefix = "/api/v1"

type tokenKey struct{}

// WithToken attaches a bearer token to every request made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDefaultToken is used when the request context carries no token.
func WithDefaultToken(token string) Option {
	return func(c *Client) { c.token = token }
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type statusResponse struct {
	Status string `json:"status"`
}

// DocumentStatus returns the processing/summary status of a document.
func (c *Client) DocumentStatus(ctx context.Context, documentID string) (domain.JobStatus, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(documentID)+"/status", "get summary status", nil, &resp); err != nil {
		return domain.JobUnknown, err
	}
	return domain.ParseJobStatus(resp.Status), nil
}

func (c *Client) Summary(ctx context.Context, documentID string) (domain.Summary, error) {
	var summary domain.Summary
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(documentID)+"/summary", "get summary", nil, &summary); err != nil {
		return domain.Summary{}, err
	}
	if summary.DocumentID == "" {
		summary.DocumentID = documentID
	}
	return summary, nil
}

// GenerateSummary asks the backend to summarize an uploaded document.
func (c *Client) GenerateSummary(ctx context.Context, documentID string) error {
	return c.do(ctx, http.MethodPost, "/documents/"+url.PathEscape(documentID)+"/generate-summary", "generate summary", struct{}{}, nil)
}

type envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (c *Client) GenerateQuiz(ctx context.Context, req domain.GenerateQuizRequest) (domain.Quiz, error) {
	var resp envelope[domain.Quiz]
	if err := c.do(ctx, http.MethodPost, "/quizzes/generate", "generate quiz", req, &resp); err != nil {
		return domain.Quiz{}, err
	}
	return resp.Data, nil
}

// Quiz fetches a quiz together with its questions.
func (c *Client) Quiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := c.do(ctx, http.MethodGet, "/quizzes/"+url.PathEscape(quizID), "get quiz", nil, &quiz); err != nil {
		return domain.Quiz{}, err
	}
	if quiz.Questions == nil {
		quiz.Questions = []domain.Question{}
	}
	return quiz, nil
}

// QuizStatus reports the generation status of a quiz.
func (c *Client) QuizStatus(ctx context.Context, quizID string) (domain.JobStatus, error) {
	quiz, err := c.Quiz(ctx, quizID)
	if err != nil {
		return domain.JobUnknown, err
	}
	return quiz.Status.JobStatus(), nil
}

type submittedAnswer struct {
	QuestionID string `json:"question_id"`
	UserAnswer string `json:"user_answer"`
}

type submitRequest struct {
	Answers []submittedAnswer `json:"answers"`
}

// SubmitQuiz sends answers as given; the backend grades them.
func (c *Client) SubmitQuiz(ctx context.Context, quizID string, answers map[string]string) (domain.QuizResults, error) {
	req := submitRequest{Answers: make([]submittedAnswer, 0, len(answers))}
	for id, answer := range answers {
		req.Answers = append(req.Answers, submittedAnswer{QuestionID: id, UserAnswer: answer})
	}
	sort.Slice(req.Answers, func(i, j int) bool { return req.Answers[i].QuestionID < req.Answers[j].QuestionID })

	var resp envelope[domain.QuizResults]
	if err := c.do(ctx, http.MethodPost, "/quizzes/"+url.PathEscape(quizID)+"/submit", "submit quiz", req, &resp); err != nil {
		return domain.QuizResults{}, err
	}
	return resp.Data, nil
}

func (c *Client) DocumentQuizzes(ctx context.Context, documentID string) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(documentID)+"/quizzes", "get quizzes", nil, &quizzes); err != nil {
		return nil, err
	}
	return quizzes, nil
}

// historyRow accepts both the combined shape and the per-kind summary shape.
type historyRow struct {
	domain.HistoryItem
	SummaryPreview *string    `json:"summary_preview"`
	GeneratedAt    *time.Time `json:"generated_at"`
}

// History lists the caller's summaries, quizzes or both, newest first.
func (c *Client) History(ctx context.Context, kind domain.HistoryKind, limit, offset int) (domain.HistoryPage, error) {
	path, op := "/history", "fetch history"
	switch kind {
	case domain.HistorySummaries:
		path, op = "/history/summaries", "fetch summary history"
	case domain.HistoryQuizzes:
		path, op = "/history/quizzes", "fetch quiz history"
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp struct {
		Data  []historyRow `json:"data"`
		Total int          `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), op, nil, &resp); err != nil {
		return domain.HistoryPage{}, err
	}

	page := domain.HistoryPage{Items: make([]domain.HistoryItem, 0, len(resp.Data)), Total: resp.Total}
	for _, row := range resp.Data {
		item := row.HistoryItem
		if item.Preview == nil {
			item.Preview = row.SummaryPreview
		}
		if item.CreatedAt.IsZero() && row.GeneratedAt != nil {
			item.CreatedAt = *row.GeneratedAt
		}
		if item.Type == "" {
			switch kind {
			case domain.HistorySummaries:
				item.Type = string(domain.ContentSummary)
			case domain.HistoryQuizzes:
				item.Type = string(domain.ContentQuiz)
			}
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

func (c *Client) SubmitFeedback(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
	var resp envelope[domain.Feedback]
	if err := c.do(ctx, http.MethodPost, "/feedback", "submit feedback", req, &resp); err != nil {
		return domain.Feedback{}, err
	}
	return resp.Data, nil
}

// Feedback lists feedback left on one summary or quiz.
func (c *Client) Feedback(ctx context.Context, contentType domain.ContentType, contentID string) ([]domain.Feedback, error) {
	var resp envelope[[]domain.Feedback]
	path := "/feedback/" + url.PathEscape(string(contentType)) + "/" + url.PathEscape(contentID)
	if err := c.do(ctx, http.MethodGet, path, "get feedback", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, method, path, op string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to %s: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := tokenFrom(ctx)
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.APIError{Op: op, StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to %s: decode response: %w", op, err)
	}
	return nil
}

// readDetail extracts the server "detail" field. Non-string details are kept as raw JSON.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		return detail
	}
	return string(body.Detail)
}
