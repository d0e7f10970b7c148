package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"quiz-attempt-service/internal/domain"
)

// maxTxRetries bounds optimistic retries when a watched key changes under us.
const maxTxRetries = 5

// AttemptStore keeps attempts in Redis.
//
//	attempt:{id}                    JSON record
//	attempt:pair:{student}:{quiz}   attempt id, the one-attempt-per-pair guard
//	attempt:student:{student}       set of attempt ids
//	attempt:quiz:{quiz}             set of attempt ids
//
// Create and UpdateIfStatus run as WATCH/MULTI transactions so concurrent
// writers on different instances resolve to exactly one winner.
type AttemptStore struct {
	client *redis.Client
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

func (s *AttemptStore) Create(ctx context.Context, a domain.Attempt) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	pair := pairKey(a.StudentID, a.QuizID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, pair, attemptKey(a.ID)).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrAttemptExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, pair, a.ID, 0)
			pipe.Set(ctx, attemptKey(a.ID), payload, 0)
			pipe.SAdd(ctx, studentKey(a.StudentID), a.ID)
			pipe.SAdd(ctx, quizAttemptsKey(a.QuizID), a.ID)
			return nil
		})
		return err
	}, pair, attemptKey(a.ID))
	if errors.Is(err, redis.TxFailedErr) {
		// The pair key is only ever written by Create, so a conflict means
		// another start won.
		return domain.ErrAttemptExists
	}
	return err
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	raw, err := s.client.Get(ctx, attemptKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, err
	}
	return decodeAttempt(raw)
}

func (s *AttemptStore) GetByStudentQuiz(ctx context.Context, studentID, quizID string) (domain.Attempt, error) {
	id, err := s.client.Get(ctx, pairKey(studentID, quizID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, err
	}
	return s.Get(ctx, id)
}

func (s *AttemptStore) ListByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error) {
	return s.listSet(ctx, studentKey(studentID))
}

func (s *AttemptStore) ListByQuiz(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	return s.listSet(ctx, quizAttemptsKey(quizID))
}

func (s *AttemptStore) UpdateIfStatus(ctx context.Context, a domain.Attempt, from domain.Status) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	key := attemptKey(a.ID)

	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return domain.ErrAttemptNotFound
			}
			if err != nil {
				return err
			}
			current, err := decodeAttempt(raw)
			if err != nil {
				return err
			}
			if current.Status != from {
				return domain.ErrStaleAttempt
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return domain.ErrStaleAttempt
}

func (s *AttemptStore) listSet(ctx context.Context, setKey string) ([]domain.Attempt, error) {
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Attempt{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, attemptKey(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Attempt, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		a, err := decodeAttempt([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func decodeAttempt(raw []byte) (domain.Attempt, error) {
	var a domain.Attempt
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Attempt{}, fmt.Errorf("decode attempt: %w", err)
	}
	if a.Answers == nil {
		a.Answers = []domain.AnswerRecord{}
	}
	return a, nil
}

func attemptKey(id string) string { return "attempt:" + id }

func pairKey(studentID, quizID string) string {
	return "attempt:pair:" + studentID + ":" + quizID
}

func studentKey(studentID string) string { return "attempt:student:" + studentID }

func quizAttemptsKey(quizID string) string { return "attempt:quiz:" + quizID }
