package memory

import (
	"context"
	"fmt"
	"sort"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

// ResetPeriod applies all three writes under one lock, so readers never see
// a partial reset.
func (s *Store) ResetPeriod(_ context.Context, a core.PeriodArchive, next core.IncomePeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[a.UserID]; !ok {
		return core.ErrNotFound
	}
	if _, ok := s.archives[a.ID]; ok {
		return fmt.Errorf("%w: archive id", storage.ErrConflict)
	}
	a.Categories = append([]string(nil), a.Categories...)
	s.archives[a.ID] = a
	for id, b := range s.budgets {
		if b.UserID == a.UserID {
			delete(s.budgets, id)
		}
	}
	return s.setPeriod(a.UserID, next, a.ArchivedAt)
}

func (s *Store) ListArchives(_ context.Context, userID string) ([]core.PeriodArchive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.PeriodArchive
	for _, a := range s.archives {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArchivedAt.Before(out[j].ArchivedAt) })
	return out, nil
}

func (s *Store) GetArchive(_ context.Context, userID, id string) (core.PeriodArchive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.archives[id]
	if !ok || a.UserID != userID {
		return core.PeriodArchive{}, core.ErrNotFound
	}
	return a, nil
}

func (s *Store) CreateFeedback(_ context.Context, f core.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, f)
	return nil
}

func (s *Store) ListFeedback(_ context.Context, userID string) ([]core.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Feedback
	for i := len(s.feedback) - 1; i >= 0; i-- {
		if s.feedback[i].UserID == userID {
			out = append(out, s.feedback[i])
		}
	}
	return out, nil
}

func (s *Store) ReplaceTips(_ context.Context, userID string, tips []core.Tip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]core.Tip, len(tips))
	for i, t := range tips {
		t.UserID = userID
		stored[i] = t
	}
	s.tips[userID] = stored
	return nil
}

func (s *Store) ListTips(_ context.Context, userID string) ([]core.Tip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Tip(nil), s.tips[userID]...), nil
}
