// Package memory is an in-process Repository used for local development and
// service tests. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]core.User
	sessions map[string]core.Session
	incomes  map[string]core.Income
	budgets  map[string]core.Budget
	expenses map[string]core.Expense
	archives map[string]core.PeriodArchive
	feedback []core.Feedback
	tips     map[string][]core.Tip
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    map[string]core.User{},
		sessions: map[string]core.Session{},
		incomes:  map[string]core.Income{},
		budgets:  map[string]core.Budget{},
		expenses: map[string]core.Expense{},
		archives: map[string]core.PeriodArchive{},
		tips:     map[string][]core.Tip{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("%w: user id", storage.ErrConflict)
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: email", storage.ErrConflict)
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) ListUsers(context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateUserPeriod(_ context.Context, userID string, p core.IncomePeriod, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPeriod(userID, p, at)
}

func (s *Store) setPeriod(userID string, p core.IncomePeriod, at time.Time) error {
	u, ok := s.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.Period = p
	u.UpdatedAt = at
	s.users[userID] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.users, id)
	delete(s.tips, id)
	for k, v := range s.sessions {
		if v.UserID == id {
			delete(s.sessions, k)
		}
	}
	for k, v := range s.incomes {
		if v.UserID == id {
			delete(s.incomes, k)
		}
	}
	for k, v := range s.budgets {
		if v.UserID == id {
			delete(s.budgets, k)
		}
	}
	for k, v := range s.expenses {
		if v.UserID == id {
			delete(s.expenses, k)
		}
	}
	for k, v := range s.archives {
		if v.UserID == id {
			delete(s.archives, k)
		}
	}
	kept := s.feedback[:0]
	for _, f := range s.feedback {
		if f.UserID != id {
			kept = append(kept, f)
		}
	}
	s.feedback = kept
	return nil
}

func (s *Store) CreateSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[sess.UserID]; !ok {
		return core.ErrNotFound
	}
	s.sessions[sess.TokenHash] = sess
	return nil
}

func (s *Store) GetSession(_ context.Context, tokenHash string) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return core.Session{}, core.ErrNotFound
	}
	return sess, nil
}

func (s *Store) DeleteSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, v := range s.sessions {
		if !v.ExpiresAt.After(now) {
			delete(s.sessions, k)
			n++
		}
	}
	return n, nil
}
