package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"planet-quiz-service/internal/app"
	"planet-quiz-service/internal/domain"
)

// WSHandler serves an attempt session over a websocket: the client starts or
// resumes an attempt, then submits answers one at a time and receives the
// result of each, including score and XP on the final one.
type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	QuizID string `json:"quizId"`
}

type resumePayload struct {
	AttemptID string `json:"attemptId"`
}

type answerPayload struct {
	AttemptID        string `json:"attemptId"`
	QuestionID       string `json:"questionId"`
	SelectedOptionID string `json:"selectedOptionId"`
}

type attemptPayload struct {
	Attempt     domain.Attempt `json:"attempt"`
	QuestionIDs []string       `json:"questionIds"`
}

type completedPayload struct {
	QuizIDs []string `json:"quizIds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// attempt use cases. Each inbound message is handled to completion before
// the next is read, matching the at-most-one-in-flight-per-attempt model.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuizID == "" {
				h.sendError(conn, "invalid start payload")
				continue
			}
			attempt, ids, err := h.service.Start(r.Context(), userID, payload.QuizID)
			if err != nil {
				h.replyErr(conn, err)
				continue
			}
			h.send(conn, "started", attemptPayload{Attempt: attempt, QuestionIDs: ids})

		case "resume":
			var payload resumePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.AttemptID == "" {
				h.sendError(conn, "invalid resume payload")
				continue
			}
			attempt, ids, err := h.service.Resume(r.Context(), payload.AttemptID)
			if err != nil {
				h.replyErr(conn, err)
				continue
			}
			h.send(conn, "attempt", attemptPayload{Attempt: attempt, QuestionIDs: ids})

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil ||
				payload.AttemptID == "" || payload.QuestionID == "" || payload.SelectedOptionID == "" {
				h.sendError(conn, "invalid answer payload")
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), payload.AttemptID, payload.QuestionID, payload.SelectedOptionID)
			if err != nil {
				h.replyErr(conn, err)
				continue
			}
			h.send(conn, "answerResult", result)

		case "completedQuizzes":
			ids, err := h.service.CompletedQuizIDs(r.Context(), userID)
			if err != nil {
				h.replyErr(conn, err)
				continue
			}
			h.send(conn, "completedQuizzes", completedPayload{QuizIDs: ids})

		default:
			h.sendError(conn, "unsupported message type")
		}
	}
}

func (h *WSHandler) send(conn *websocket.Conn, typ string, payload any) {
	if err := conn.WriteJSON(outboundMessage[any]{Type: typ, Payload: payload}); err != nil {
		log.Printf("ws write error: %v", err)
	}
}

func (h *WSHandler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, "error", errorPayload{Message: message})
}

// replyErr reports a use-case failure to the client. Expected rejections
// (missing entities, invalid state) are not logged; anything else is a
// storage-layer fault worth surfacing in the server log.
func (h *WSHandler) replyErr(conn *websocket.Conn, err error) {
	if !IsNotFound(err) && !IsInvalidState(err) {
		log.Printf("attempt operation failed: %v", err)
	}
	h.sendError(conn, err.Error())
}

// IsInvalidState reports whether err is a state-machine rejection.
func IsInvalidState(err error) bool {
	return errors.Is(err, domain.ErrAttemptFinished) || errors.Is(err, domain.ErrQuestionOutOfOrder)
}

// IsNotFound reports whether err maps to the NotFound part of the error
// taxonomy; transports use it to distinguish rejections from faults.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrQuizNotFound) ||
		errors.Is(err, domain.ErrAttemptNotFound) ||
		errors.Is(err, domain.ErrQuestionNotFound) ||
		errors.Is(err, domain.ErrOptionNotFound) ||
		errors.Is(err, domain.ErrUserNotFound)
}
