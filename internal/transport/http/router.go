package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"quiz-attempt-service/internal/auth"
	"quiz-attempt-service/internal/domain"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Issuer      *auth.Issuer
	Attempts    *AttemptHandler
	Auth        *AuthHandler
	WS          *WSHandler
	CORSOrigins []string
	Log         *slog.Logger
}

// NewRouter wires routes with a static role set per route group.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/auth/refresh", cfg.Auth.Refresh)
	r.Post("/auth/logout", cfg.Auth.Logout)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(cfg.Issuer))

		r.Route("/app", func(r chi.Router) {
			r.Use(auth.RequireRoles(domain.RoleStudent))
			r.Get("/quizzes", cfg.Attempts.ListQuizzes)
			r.Post("/quiz/{id}/start", cfg.Attempts.Start)
			r.Post("/quiz/{id}/submit", cfg.Attempts.Submit)
			r.Get("/quiz-attempts", cfg.Attempts.ListMine)
			r.Get("/attempts/{id}", cfg.Attempts.Detail)
		})

		r.Route("/org", func(r chi.Router) {
			r.Use(auth.RequireRoles(domain.RoleOrganization, domain.RoleAdmin))
			r.Get("/quiz/{id}/attempts", cfg.Attempts.ListForQuiz)
		})

		r.Route("/ws", func(r chi.Router) {
			r.With(auth.RequireRoles(domain.RoleStudent)).Get("/attempt", cfg.WS.ServeAttempt)
			r.With(auth.RequireRoles(domain.RoleOrganization, domain.RoleAdmin)).Get("/org/quiz/{id}/feed", cfg.WS.ServeFeed)
		})
	})
	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// AllowOrigins returns a websocket origin check matching the CORS list.
// An empty list admits every origin.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.TrimRight(origin, "/")]
		return ok
	}
}
