package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"studynotes-client/internal/api"
	"studynotes-client/internal/app"
	"studynotes-client/internal/domain"
	"studynotes-client/internal/jobs"
)

// SummaryWatcher starts (or resolves from cache) the summary tracker of a document.
type SummaryWatcher interface {
	Watch(ctx context.Context, documentID string) *jobs.Tracker[domain.Summary]
}

// SessionObserver is told when live sessions open and close.
type SessionObserver interface {
	SessionOpened(kind string)
	SessionClosed(kind string)
}

type Option func(*WSHandler)

// WithFlowOptions is applied to the flow controller of every quiz connection.
func WithFlowOptions(opts ...app.FlowOption) Option {
	return func(h *WSHandler) { h.flowOpts = append(h.flowOpts, opts...) }
}

// WithQuizMaker lets /ws/quiz start from a documentId by generating the quiz first.
func WithQuizMaker(m app.QuizMaker) Option {
	return func(h *WSHandler) {
		h.canGenerate = true
		h.flowOpts = append(h.flowOpts, app.WithQuizMaker(m))
	}
}

func WithSessionObserver(o SessionObserver) Option {
	return func(h *WSHandler) { h.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *WSHandler) { h.logger = l }
}

type WSHandler struct {
	quizzes   app.QuizClient
	summaries SummaryWatcher
	registry  app.SessionRegistry
	flowOpts  []app.FlowOption
	observer  SessionObserver

	canGenerate bool
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

func NewWSHandler(quizzes app.QuizClient, summaries SummaryWatcher, registry app.SessionRegistry, opts ...Option) *WSHandler {
	h := &WSHandler{
		quizzes:   quizzes,
		summaries: summaries,
		registry:  registry,
		logger:    slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// connContext carries the caller's bearer token, if any, to backend requests.
func connContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	if token := r.URL.Query().Get("token"); token != "" {
		ctx = api.WithToken(ctx, token)
	}
	return ctx, cancel
}

// open registers a live session and returns the function that ends it.
func (h *WSHandler) open(ctx context.Context, kind domain.SessionKind, subject string) (string, func()) {
	session := domain.LiveSession{ID: uuid.NewString(), Kind: kind, Subject: subject, StartedAt: time.Now().UTC()}
	if err := h.registry.Register(ctx, session); err != nil {
		h.logger.Warn("failed to register session", "session_id", session.ID, "error", err)
	}
	if h.observer != nil {
		h.observer.SessionOpened(string(kind))
	}
	return session.ID, func() {
		if err := h.registry.Unregister(context.Background(), session.ID); err != nil {
			h.logger.Warn("failed to unregister session", "session_id", session.ID, "error", err)
		}
		if h.observer != nil {
			h.observer.SessionClosed(string(kind))
		}
	}
}

// ServeQuiz runs one quiz-taking session over a websocket. Every accepted
// message is answered with the full view; bad input gets an error message.
// Given documentId instead of quizId, a new quiz is generated first.
func (h *WSHandler) ServeQuiz(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	quizID := query.Get("quizId")
	var generate *domain.GenerateQuizRequest
	if quizID == "" {
		documentID := query.Get("documentId")
		if documentID == "" || !h.canGenerate {
			http.Error(w, "missing quizId", http.StatusBadRequest)
			return
		}
		generate = &domain.GenerateQuizRequest{DocumentID: documentID}
		if raw := query.Get("numQuestions"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "invalid numQuestions", http.StatusBadRequest)
				return
			}
			generate.NumQuestions = n
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := connContext(r)
	defer cancel()
	subject := quizID
	if generate != nil {
		subject = generate.DocumentID
	}
	sessionID, closeSession := h.open(ctx, domain.SessionQuiz, subject)
	defer closeSession()

	flow := app.NewFlowController(app.NewSessionStore(), h.quizzes, h.flowOpts...)
	defer flow.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "session_id", sessionID, "error", err)
				return
			}
		}
	}()
	defer func() {
		close(send)
		<-writerDone
	}()

	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{SessionID: sessionID}}
	if generate != nil {
		_ = flow.Generate(ctx, *generate)
	} else {
		_ = flow.Load(ctx, quizID)
	}
	send <- outboundMessage[any]{Type: "view", Payload: flow.View()}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := h.registry.Touch(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			h.logger.Debug("failed to touch session", "session_id", sessionID, "error", err)
		}
		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			send <- errorMessage("invalid message")
			continue
		}
		if msg := h.handleQuizMessage(ctx, flow, inbound); msg != "" {
			send <- errorMessage(msg)
			continue
		}
		send <- outboundMessage[any]{Type: "view", Payload: flow.View()}
	}
}

// handleQuizMessage applies one inbound message and returns a user facing error, if any.
func (h *WSHandler) handleQuizMessage(ctx context.Context, flow *app.FlowController, inbound inboundMessage) string {
	store := flow.Store()
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" {
			return "invalid answer payload"
		}
		store.SetUserAnswer(payload.QuestionID, payload.Answer)
	case "next":
		store.NextQuestion()
	case "previous":
		store.PreviousQuestion()
	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return "invalid goto payload"
		}
		store.GoToQuestion(payload.Index)
	case "submit":
		if _, err := flow.Submit(ctx); errors.Is(err, domain.ErrNoActiveQuiz) {
			return "no quiz loaded"
		}
	case "retake":
		if err := flow.Retake(); err != nil {
			return "no quiz loaded"
		}
	default:
		return "unsupported message type"
	}
	return ""
}

// ServeSummary streams summary tracker snapshots until the job is terminal or
// the client goes away; a disconnect stops polling.
func (h *WSHandler) ServeSummary(w http.ResponseWriter, r *http.Request) {
	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		http.Error(w, "missing documentId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := connContext(r)
	defer cancel()
	_, closeSession := h.open(ctx, domain.SessionSummary, documentID)
	defer closeSession()

	// The client never sends anything meaningful; reading detects the disconnect.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	tracker := h.summaries.Watch(ctx, documentID)
	defer tracker.Stop()
	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()

	for {
		select {
		case snap := <-updates:
			if err := conn.WriteJSON(outboundMessage[jobs.Snapshot[domain.Summary]]{Type: "status", Payload: snap}); err != nil {
				return
			}
			if snap.Terminal() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, snap.State.String()),
					time.Now().Add(time.Second))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
