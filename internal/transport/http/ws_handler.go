package http

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/auth"
	"quiz-attempt-service/internal/domain"
)

// WSHandler serves the live attempt session and the organization feed.
type WSHandler struct {
	service  *app.AttemptService
	feed     *app.Feed
	log      *slog.Logger
	upgrader websocket.Upgrader
	tick     time.Duration
	now      func() time.Time
}

// WSOption customises a WSHandler.
type WSOption func(*WSHandler)

// WithTick sets the countdown interval (one second by default).
func WithTick(d time.Duration) WSOption {
	return func(h *WSHandler) { h.tick = d }
}

// WithWSClock replaces time.Now for countdown computation.
func WithWSClock(now func() time.Time) WSOption {
	return func(h *WSHandler) { h.now = now }
}

// WithOriginCheck restricts websocket upgrades; the default admits every origin.
func WithOriginCheck(check func(r *http.Request) bool) WSOption {
	return func(h *WSHandler) { h.upgrader.CheckOrigin = check }
}

func NewWSHandler(service *app.AttemptService, feed *app.Feed, log *slog.Logger, opts ...WSOption) *WSHandler {
	h := &WSHandler{
		service: service,
		feed:    feed,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tick: time.Second,
		now:  time.Now,
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type tickPayload struct {
	AttemptID        string    `json:"attemptId"`
	RemainingSeconds int       `json:"remainingSeconds"`
	EndTime          time.Time `json:"endTime"`
}

type expiredPayload struct {
	AttemptID string    `json:"attemptId"`
	EndTime   time.Time `json:"endTime"`
}

// outbox queues messages for the connection's writer goroutine. push reports
// false once the writer has stopped, so callers never block on a dead socket.
type outbox struct {
	send       chan outboundMessage[any]
	writerDone <-chan struct{}
}

func (o outbox) push(msg outboundMessage[any]) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.writerDone:
		return false
	}
}

// startWriter runs the only goroutine that writes to conn. A failed write
// closes conn so the blocked reader returns too.
func (h *WSHandler) startWriter(conn *websocket.Conn) outbox {
	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "err", err)
				_ = conn.Close()
				return
			}
		}
	}()
	return outbox{send: send, writerDone: writerDone}
}

// remainingSeconds rounds up so the client never shows 0 while the server
// still accepts a submission.
func remainingSeconds(end, now time.Time) int {
	if now.After(end) {
		return 0
	}
	return int(math.Ceil(end.Sub(now).Seconds()))
}

// ServeAttempt handles GET /ws/attempt?quizId=. It starts (or resumes) the
// caller's attempt, streams the server-side countdown and accepts a submit.
func (h *WSHandler) ServeAttempt(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing quizId", Kind: kindBadRequest})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	view, err := h.service.StartAttempt(r.Context(), who, quizID)
	if err != nil {
		h.logFailure(err)
		_ = conn.WriteJSON(outboundMessage[errorBody]{Type: "error", Payload: errorPayloadFor(err)})
		return
	}

	out := h.startWriter(conn)
	closeSignals := make(chan struct{})
	stopTicks := make(chan struct{})
	ticksDone := make(chan struct{})

	go func() {
		defer close(ticksDone)
		ticker := time.NewTicker(h.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := h.now()
				msg := outboundMessage[any]{Type: "tick", Payload: tickPayload{
					AttemptID:        view.AttemptID,
					RemainingSeconds: remainingSeconds(view.EndTime, now),
					EndTime:          view.EndTime,
				}}
				expired := now.After(view.EndTime)
				if expired {
					msg = outboundMessage[any]{Type: "expired", Payload: expiredPayload{AttemptID: view.AttemptID, EndTime: view.EndTime}}
				}
				select {
				case out.send <- msg:
				case <-out.writerDone:
					return
				case <-closeSignals:
					return
				}
				if expired {
					return
				}
			case <-stopTicks:
				return
			case <-closeSignals:
				return
			}
		}
	}()

	submitted := false
	for alive := out.push(outboundMessage[any]{Type: "started", Payload: view}); alive; {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			var payload submitRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				alive = out.push(outboundMessage[any]{Type: "error", Payload: errorBody{Error: "invalid submit payload", Kind: kindBadRequest}})
				continue
			}
			result, err := h.service.SubmitAttempt(r.Context(), who, quizID, payload.Answers)
			if err != nil {
				h.logFailure(err)
				alive = out.push(outboundMessage[any]{Type: "error", Payload: errorPayloadFor(err)})
				continue
			}
			if !submitted {
				submitted = true
				close(stopTicks)
			}
			alive = out.push(outboundMessage[any]{Type: "submitted", Payload: result})
		default:
			alive = out.push(outboundMessage[any]{Type: "error", Payload: errorBody{Error: "unsupported message type", Kind: kindBadRequest}})
		}
	}

	close(closeSignals)
	<-ticksDone
	close(out.send)
	<-out.writerDone
}

type feedSnapshot struct {
	QuizID   string               `json:"quizId"`
	Attempts []app.AttemptSummary `json:"attempts"`
}

// ServeFeed handles GET /ws/org/quiz/{id}/feed: a snapshot of the quiz's
// attempts followed by every transition as it happens.
func (h *WSHandler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	quizID := chi.URLParam(r, "id")

	// Subscribe before taking the snapshot so no transition falls in between.
	events, cancel := h.feed.Subscribe(quizID)
	defer cancel()

	// Authorise before upgrading so a rejected caller gets a plain HTTP error.
	attempts, err := h.service.ListQuizAttempts(r.Context(), who, quizID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	out := h.startWriter(conn)
	closeSignals := make(chan struct{})
	eventsDone := make(chan struct{})

	out.push(outboundMessage[any]{Type: "snapshot", Payload: feedSnapshot{QuizID: quizID, Attempts: attempts}})

	go func() {
		defer close(eventsDone)
		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case out.send <- outboundMessage[any]{Type: "event", Payload: evt}:
				case <-out.writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// The feed is one-way; reading only detects the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-eventsDone
	close(out.send)
	<-out.writerDone
}

func (h *WSHandler) logFailure(err error) {
	if domain.KindOf(err) == domain.KindInternal {
		h.log.Error("ws request failed", "err", err)
	}
}
