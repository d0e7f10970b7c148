package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/auth"
	"quiz-attempt-service/internal/domain"
)

// maxBodyBytes caps request bodies; a submission is a short list of answers.
const maxBodyBytes = 1 << 20

// AttemptHandler exposes the attempt engine over JSON.
type AttemptHandler struct {
	service *app.AttemptService
	log     *slog.Logger
}

func NewAttemptHandler(service *app.AttemptService, log *slog.Logger) *AttemptHandler {
	return &AttemptHandler{service: service, log: log}
}

type submitRequest struct {
	Answers []domain.AnswerSubmission `json:"answers"`
}

// ListQuizzes handles GET /app/quizzes.
func (h *AttemptHandler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	quizzes, err := h.service.ListAvailableQuizzes(r.Context(), who)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": quizzes})
}

// Start handles POST /app/quiz/{id}/start.
func (h *AttemptHandler) Start(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	view, err := h.service.StartAttempt(r.Context(), who, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Submit handles POST /app/quiz/{id}/submit.
func (h *AttemptHandler) Submit(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("%w: invalid submission body", errBadRequest))
		return
	}
	result, err := h.service.SubmitAttempt(r.Context(), who, chi.URLParam(r, "id"), req.Answers)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListMine handles GET /app/quiz-attempts.
func (h *AttemptHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	attempts, err := h.service.ListMyAttempts(r.Context(), who)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

// Detail handles GET /app/attempts/{id}.
func (h *AttemptHandler) Detail(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	detail, err := h.service.GetAttemptDetail(r.Context(), who, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ListForQuiz handles GET /org/quiz/{id}/attempts.
func (h *AttemptHandler) ListForQuiz(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	attempts, err := h.service.ListQuizAttempts(r.Context(), who, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

// AuthHandler renews access tokens from refresh tokens.
type AuthHandler struct {
	issuer        *auth.Issuer
	secureCookies bool
	log           *slog.Logger
}

func NewAuthHandler(issuer *auth.Issuer, secureCookies bool, log *slog.Logger) *AuthHandler {
	return &AuthHandler{issuer: issuer, secureCookies: secureCookies, log: log}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string          `json:"accessToken"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	User        domain.Identity `json:"user"`
}

// Refresh handles POST /auth/refresh. The refresh token comes from the
// refreshToken cookie or, for non-browser clients, the JSON body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(auth.RefreshCookie); err == nil {
		token = c.Value
	}
	if token == "" && r.Body != nil {
		var req refreshRequest
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
		token = req.RefreshToken
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "refresh token not found", Kind: kindUnauthorized})
		return
	}

	access, id, err := h.issuer.Refresh(token)
	if err != nil {
		h.log.Info("refresh rejected", "err", err)
		writeJSON(w, http.StatusForbidden, errorBody{Error: "invalid or expired refresh token", Kind: domain.KindForbidden})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessCookie,
		Value:    access,
		Path:     "/",
		MaxAge:   int(h.issuer.AccessTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: access,
		ExpiresAt:   time.Now().Add(h.issuer.AccessTTL()),
		User:        id,
	})
}

// Logout handles POST /auth/logout by expiring both token cookies. Tokens are
// stateless, so a client holding a copy can still use it until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{auth.AccessCookie, auth.RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
