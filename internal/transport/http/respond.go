package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quiz-attempt-service/internal/domain"
)

// kindBadRequest and kindUnauthorized cover failures raised by the transport
// itself rather than the engine.
const (
	kindBadRequest   domain.Kind = "BadRequest"
	kindUnauthorized domain.Kind = "Unauthorized"
)

type errorBody struct {
	Error string      `json:"error"`
	Kind  domain.Kind `json:"kind"`
}

var errBadRequest = errors.New("bad request")

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden, domain.KindTimeExpired:
		return http.StatusForbidden
	case domain.KindAlreadyCompleted, domain.KindAlreadySubmitted:
		return http.StatusConflict
	case domain.KindNotStarted, kindBadRequest:
		return http.StatusBadRequest
	case kindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// errorPayloadFor converts an engine error into the client-visible body.
// Internal failures never leak their message.
func errorPayloadFor(err error) errorBody {
	kind := domain.KindOf(err)
	if errors.Is(err, errBadRequest) {
		return errorBody{Error: err.Error(), Kind: kindBadRequest}
	}
	if kind == domain.KindInternal {
		return errorBody{Error: "internal server error", Kind: kind}
	}
	return errorBody{Error: publicMessage(err), Kind: kind}
}

// publicMessage returns the innermost sentinel text so wrapping context such
// as store keys stays server-side.
func publicMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	body := errorPayloadFor(err)
	status := statusFor(body.Kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "err", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
