package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

const (
	defaultSessionTTL = 7 * 24 * time.Hour
	minPasswordLen    = 8
	maxPasswordLen    = 72 // bcrypt input limit
)

// AuthService registers users and manages opaque bearer sessions. Only the
// SHA-256 of a token is stored.
type AuthService struct {
	repo  storage.Repository
	clock Clock
	ttl   time.Duration
	cost  int
}

func NewAuthService(repo storage.Repository, clock Clock, ttl time.Duration, cost int) *AuthService {
	if clock == nil {
		clock = time.Now
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{repo: repo, clock: clock, ttl: ttl, cost: cost}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates the user with a monthly period starting today and opens
// a session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (core.User, string, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return core.User{}, "", err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.User{}, "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLen || len(in.Password) > maxPasswordLen {
		return core.User{}, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return core.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.clock().UTC()
	u := core.User{
		ID:           newID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Period:       core.DefaultPeriod(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return core.User{}, "", ErrEmailTaken
		}
		return core.User{}, "", err
	}

	token, err := s.openSession(ctx, u.ID, now)
	if err != nil {
		return core.User{}, "", err
	}
	return u, token, nil
}

// Login verifies credentials and opens a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (core.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return core.User{}, "", ErrInvalidCredentials
	}
	u, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.User{}, "", ErrInvalidCredentials
	}
	token, err := s.openSession(ctx, u.ID, s.clock().UTC())
	if err != nil {
		return core.User{}, "", err
	}
	return u, token, nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, ErrUnauthorized
	}
	sess, err := s.repo.GetSession(ctx, hashToken(token))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrUnauthorized
	}
	if err != nil {
		return core.User{}, err
	}
	if !s.clock().Before(sess.ExpiresAt) {
		_ = s.repo.DeleteSession(ctx, sess.TokenHash)
		return core.User{}, ErrUnauthorized
	}
	u, err := s.repo.GetUser(ctx, sess.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrUnauthorized
	}
	return u, err
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, hashToken(token))
}

// PruneSessions deletes expired sessions.
func (s *AuthService) PruneSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, s.clock())
}

func (s *AuthService) openSession(ctx context.Context, userID string, now time.Time) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	err := s.repo.CreateSession(ctx, core.Session{
		TokenHash: hashToken(token),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	return email, nil
}
