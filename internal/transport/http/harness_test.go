package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/auth"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

var t0 = time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)

var (
	alice   = domain.Identity{ID: "s-alice", Email: "alice@example.com", Role: domain.RoleStudent}
	bob     = domain.Identity{ID: "s-bob", Email: "bob@example.com", Role: domain.RoleStudent}
	mallory = domain.Identity{ID: "s-mallory", Email: "mallory@example.com", Role: domain.RoleStudent}
	orgUser = domain.Identity{ID: "org-1", Email: "org@example.com", Role: domain.RoleOrganization}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type harness struct {
	server   *httptest.Server
	issuer   *auth.Issuer
	clock    *clock
	attempts *memory.AttemptStore
	feed     *app.Feed
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := &clock{now: t0}

	issuer, err := auth.NewIssuer("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	attempts := memory.NewAttemptStore()
	feed := app.NewFeed()
	catalog := memory.NewStaticQuizLoader(sampleQuizzes())
	quizzes := memory.NewQuizRepository(catalog, time.Minute)
	service := app.NewAttemptService(attempts, quizzes,
		app.WithCatalog(catalog),
		app.WithClock(clk.Now),
		app.WithPublisher(feed),
		app.WithLogger(log),
	)

	router := NewRouter(RouterConfig{
		Issuer:   issuer,
		Attempts: NewAttemptHandler(service, log),
		Auth:     NewAuthHandler(issuer, false, log),
		WS:       NewWSHandler(service, feed, log, WithTick(20*time.Millisecond), WithWSClock(clk.Now)),
		Log:      log,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &harness{server: server, issuer: issuer, clock: clk, attempts: attempts, feed: feed}
}

func (h *harness) token(t *testing.T, id domain.Identity) string {
	t.Helper()
	token, err := h.issuer.IssueAccess(id)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (h *harness) do(t *testing.T, method, path string, id *domain.Identity, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if id != nil {
		req.Header.Set("Authorization", "Bearer "+h.token(t, *id))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// sampleQuizzes: quiz-1 runs one minute with correct answers A, B, C. quiz-2
// is only open to mallory.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:       "quiz-1",
			Title:    "Letters",
			Duration: 1,
			Deadline: t0.Add(24 * time.Hour),
			Questions: []domain.Question{
				{ID: "q1", Text: "First", Options: []string{"A", "X"}, CorrectOption: "A"},
				{ID: "q2", Text: "Second", Options: []string{"B", "X"}, CorrectOption: "B"},
				{ID: "q3", Text: "Third", Options: []string{"C", "X"}, CorrectOption: "C"},
			},
			AllowedUsers:   []string{"alice@example.com", "bob@example.com"},
			OrganizationID: "org-1",
		},
		"quiz-2": {
			ID:          "quiz-2",
			Title:       "Numbers",
			Description: "Warm-up",
			Duration:    5,
			Deadline:    t0.Add(48 * time.Hour),
			Questions: []domain.Question{
				{ID: "n1", Text: "One", Options: []string{"1", "2"}, CorrectOption: "1"},
			},
			AllowedUsers:   []string{"mallory@example.com"},
			OrganizationID: "org-2",
		},
	}
}
