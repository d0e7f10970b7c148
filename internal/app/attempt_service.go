package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"quiz-attempt-service/internal/domain"
)

const (
	submitMessage = "Quiz submitted successfully"
	// titleLookups bounds concurrent catalog reads when enriching listings.
	titleLookups = 8
)

// AttemptService owns every attempt transition: start, resume, expiry and
// submission. It keeps no per-attempt state in memory; atomicity comes from the
// AttemptStore's conditional writes.
type AttemptService struct {
	attempts AttemptStore
	quizzes  QuizRepository
	catalog  QuizCatalog
	events   EventPublisher
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option customises an AttemptService.
type Option func(*AttemptService)

// WithClock replaces time.Now; tests use it for deterministic deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *AttemptService) { s.now = now }
}

// WithIDGenerator replaces the UUID generator for attempt ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *AttemptService) { s.newID = newID }
}

// WithCatalog enables ListAvailableQuizzes. Without a catalog the list is empty.
func WithCatalog(c QuizCatalog) Option {
	return func(s *AttemptService) { s.catalog = c }
}

// WithPublisher sets where attempt events go.
func WithPublisher(p EventPublisher) Option {
	return func(s *AttemptService) { s.events = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *AttemptService) { s.log = l }
}

func NewAttemptService(attempts AttemptStore, quizzes QuizRepository, opts ...Option) *AttemptService {
	s := &AttemptService{
		attempts: attempts,
		quizzes:  quizzes,
		events:   Publishers(nil),
		log:      slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartAttempt creates the caller's attempt or resumes the in-progress one.
// An in-progress attempt found past its end time is blocked and the call fails
// with domain.ErrTimeExpired.
func (s *AttemptService) StartAttempt(ctx context.Context, who domain.Identity, quizID string) (StartView, error) {
	if who.Role != domain.RoleStudent {
		return StartView{}, domain.ErrWrongRole
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartView{}, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	if !quiz.Allows(who.Email) {
		return StartView{}, domain.ErrNotAllowed
	}

	now := s.now()
	attempt, err := s.attempts.GetByStudentQuiz(ctx, who.ID, quizID)
	switch {
	case errors.Is(err, domain.ErrAttemptNotFound):
		attempt, err = s.createAttempt(ctx, who.ID, quiz, now)
		if err != nil {
			return StartView{}, err
		}
	case err != nil:
		return StartView{}, fmt.Errorf("load attempt: %w", err)
	}

	switch attempt.Status {
	case domain.StatusCompleted:
		return StartView{}, domain.ErrAlreadyCompleted
	case domain.StatusBlocked:
		return StartView{}, domain.ErrTimeExpired
	}
	if attempt.Expired(now) {
		return StartView{}, s.block(ctx, attempt, domain.ErrAlreadyCompleted)
	}
	return startView(quiz, attempt), nil
}

func (s *AttemptService) createAttempt(ctx context.Context, studentID string, quiz domain.Quiz, now time.Time) (domain.Attempt, error) {
	if now.After(quiz.Deadline) {
		return domain.Attempt{}, domain.ErrQuizClosed
	}
	attempt := domain.Attempt{
		ID:        s.newID(),
		StudentID: studentID,
		QuizID:    quiz.ID,
		StartTime: now,
		EndTime:   now.Add(quiz.DurationTime()),
		Answers:   []domain.AnswerRecord{},
		Status:    domain.StatusInProgress,
	}
	err := s.attempts.Create(ctx, attempt)
	switch {
	case errors.Is(err, domain.ErrAttemptExists):
		// Lost a concurrent start; continue with the winner's record.
		existing, gerr := s.attempts.GetByStudentQuiz(ctx, studentID, quiz.ID)
		if gerr != nil {
			return domain.Attempt{}, fmt.Errorf("reload attempt: %w", gerr)
		}
		return existing, nil
	case err != nil:
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}

	s.log.Info("attempt started", "attempt", attempt.ID, "quiz", quiz.ID, "student", studentID, "endTime", attempt.EndTime)
	s.publish(ctx, domain.EventStarted, attempt)
	return attempt, nil
}

// SubmitAttempt grades the answers exactly once. Late submissions block the
// attempt without scoring.
func (s *AttemptService) SubmitAttempt(ctx context.Context, who domain.Identity, quizID string, answers []domain.AnswerSubmission) (SubmitResult, error) {
	if who.Role != domain.RoleStudent {
		return SubmitResult{}, domain.ErrWrongRole
	}
	now := s.now()
	attempt, err := s.attempts.GetByStudentQuiz(ctx, who.ID, quizID)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return SubmitResult{}, domain.ErrNotStarted
	}
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load attempt: %w", err)
	}

	switch attempt.Status {
	case domain.StatusCompleted:
		return SubmitResult{}, domain.ErrAlreadySubmitted
	case domain.StatusBlocked:
		return SubmitResult{}, domain.ErrTimeExpired
	}
	if attempt.Expired(now) {
		return SubmitResult{}, s.block(ctx, attempt, domain.ErrAlreadySubmitted)
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	records, score := gradeSubmission(quiz.Questions, answers)

	graded := attempt
	graded.Answers = records
	graded.Score = score
	graded.Status = domain.StatusCompleted
	graded.SubmittedAt = &now
	if err := s.attempts.UpdateIfStatus(ctx, graded, domain.StatusInProgress); err != nil {
		if errors.Is(err, domain.ErrStaleAttempt) {
			return SubmitResult{}, s.reloadTerminal(ctx, attempt.ID, domain.ErrAlreadySubmitted)
		}
		return SubmitResult{}, fmt.Errorf("complete attempt: %w", err)
	}

	s.log.Info("attempt submitted", "attempt", graded.ID, "quiz", quizID, "student", who.ID, "score", score, "total", len(quiz.Questions))
	s.publish(ctx, domain.EventSubmitted, graded)
	return SubmitResult{
		AttemptID: graded.ID,
		Score:     score,
		Total:     len(quiz.Questions),
		Message:   submitMessage,
	}, nil
}

// block moves an expired in-progress attempt to blocked. It always returns a
// non-nil error: ErrTimeExpired on success, or whatever the winning writer's
// state maps to when the conditional update loses.
func (s *AttemptService) block(ctx context.Context, a domain.Attempt, completedErr error) error {
	blocked := a
	blocked.Status = domain.StatusBlocked
	err := s.attempts.UpdateIfStatus(ctx, blocked, domain.StatusInProgress)
	switch {
	case err == nil:
		s.log.Info("attempt blocked", "attempt", a.ID, "quiz", a.QuizID, "student", a.StudentID, "endTime", a.EndTime)
		s.publish(ctx, domain.EventBlocked, blocked)
		return domain.ErrTimeExpired
	case errors.Is(err, domain.ErrStaleAttempt):
		return s.reloadTerminal(ctx, a.ID, completedErr)
	default:
		return fmt.Errorf("block attempt: %w", err)
	}
}

func (s *AttemptService) reloadTerminal(ctx context.Context, attemptID string, completedErr error) error {
	current, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("reload attempt: %w", err)
	}
	if !current.Status.Terminal() {
		return fmt.Errorf("attempt %s: %w", attemptID, domain.ErrStaleAttempt)
	}
	if current.Status == domain.StatusCompleted {
		return completedErr
	}
	return domain.ErrTimeExpired
}

// ListAvailableQuizzes lists the catalog quizzes whose allow-list contains the
// caller, in catalog order, with the caller's attempt status where one exists.
func (s *AttemptService) ListAvailableQuizzes(ctx context.Context, who domain.Identity) ([]AvailableQuiz, error) {
	if who.Role != domain.RoleStudent {
		return nil, domain.ErrWrongRole
	}
	if s.catalog == nil {
		return []AvailableQuiz{}, nil
	}
	ids, err := s.catalog.QuizIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	// Each goroutine owns one slot, so no lock is needed.
	slots := make([]*AvailableQuiz, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(titleLookups)
	for i, quizID := range ids {
		g.Go(func() error {
			quiz, err := s.quizzes.GetQuiz(gctx, quizID)
			if errors.Is(err, domain.ErrQuizNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("load quiz %s: %w", quizID, err)
			}
			if !quiz.Allows(who.Email) {
				return nil
			}
			entry := AvailableQuiz{
				QuizInfo:       quizInfo(quiz),
				OrganizationID: quiz.OrganizationID,
				Questions:      len(quiz.Questions),
			}
			attempt, err := s.attempts.GetByStudentQuiz(gctx, who.ID, quizID)
			switch {
			case err == nil:
				entry.AttemptID = attempt.ID
				entry.AttemptStatus = attempt.Status
			case !errors.Is(err, domain.ErrAttemptNotFound):
				return fmt.Errorf("load attempt: %w", err)
			}
			slots[i] = &entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]AvailableQuiz, 0, len(ids))
	for _, entry := range slots {
		if entry != nil {
			out = append(out, *entry)
		}
	}
	return out, nil
}

// ListMyAttempts returns the caller's attempts, newest first.
func (s *AttemptService) ListMyAttempts(ctx context.Context, who domain.Identity) ([]AttemptSummary, error) {
	if who.Role != domain.RoleStudent {
		return nil, domain.ErrWrongRole
	}
	attempts, err := s.attempts.ListByStudent(ctx, who.ID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	titles, err := s.quizTitles(ctx, attempts)
	if err != nil {
		return nil, err
	}
	out := make([]AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, summarize(a, titles[a.QuizID]))
	}
	return out, nil
}

func (s *AttemptService) quizTitles(ctx context.Context, attempts []domain.Attempt) (map[string]string, error) {
	var (
		mu     sync.Mutex
		titles = make(map[string]string)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(titleLookups)
	seen := make(map[string]struct{})
	for _, a := range attempts {
		if _, ok := seen[a.QuizID]; ok {
			continue
		}
		seen[a.QuizID] = struct{}{}
		quizID := a.QuizID
		g.Go(func() error {
			quiz, err := s.quizzes.GetQuiz(gctx, quizID)
			if errors.Is(err, domain.ErrQuizNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("load quiz %s: %w", quizID, err)
			}
			mu.Lock()
			titles[quizID] = quiz.Title
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return titles, nil
}

// GetAttemptDetail returns the caller's attempt with the per-question breakdown.
func (s *AttemptService) GetAttemptDetail(ctx context.Context, who domain.Identity, attemptID string) (AttemptDetail, error) {
	if who.Role != domain.RoleStudent {
		return AttemptDetail{}, domain.ErrWrongRole
	}
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return AttemptDetail{}, fmt.Errorf("load attempt %s: %w", attemptID, err)
	}
	if attempt.StudentID != who.ID {
		return AttemptDetail{}, domain.ErrNotOwner
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return AttemptDetail{}, fmt.Errorf("load quiz %s: %w", attempt.QuizID, err)
	}
	return projectDetail(attempt, quiz), nil
}

// ListQuizAttempts is the owning organization's view of every attempt on a quiz.
func (s *AttemptService) ListQuizAttempts(ctx context.Context, who domain.Identity, quizID string) ([]AttemptSummary, error) {
	if who.Role != domain.RoleOrganization && who.Role != domain.RoleAdmin {
		return nil, domain.ErrWrongRole
	}

	var (
		quiz     domain.Quiz
		attempts []domain.Attempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if quiz, err = s.quizzes.GetQuiz(gctx, quizID); err != nil {
			return fmt.Errorf("load quiz %s: %w", quizID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if attempts, err = s.attempts.ListByQuiz(gctx, quizID); err != nil {
			return fmt.Errorf("list attempts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if who.Role != domain.RoleAdmin && quiz.OrganizationID != who.ID {
		return nil, domain.ErrNotOwner
	}

	out := make([]AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, summarize(a, quiz.Title))
	}
	return out, nil
}

func (s *AttemptService) publish(ctx context.Context, typ domain.EventType, a domain.Attempt) {
	evt := domain.AttemptEvent{
		Type:      typ,
		AttemptID: a.ID,
		QuizID:    a.QuizID,
		StudentID: a.StudentID,
		Status:    a.Status,
		Score:     a.Score,
		At:        s.now(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("publish attempt event failed", "type", typ, "attempt", a.ID, "err", err)
	}
}
