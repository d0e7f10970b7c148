package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"quiz-attempt-service/internal/domain"
)

type catalogFile struct {
	Quizzes []domain.Quiz `yaml:"quizzes"`
}

// LoadCatalogFile reads a YAML quiz catalog and validates every quiz.
func LoadCatalogFile(path string) ([]domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(file.Quizzes))
	for _, q := range file.Quizzes {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate quiz %s", path, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return file.Quizzes, nil
}

// CatalogLoader builds a StaticQuizLoader from a YAML catalog.
func CatalogLoader(path string) (*StaticQuizLoader, error) {
	quizzes, err := LoadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Quiz, len(quizzes))
	for _, q := range quizzes {
		byID[q.ID] = q
	}
	return NewStaticQuizLoader(byID), nil
}
