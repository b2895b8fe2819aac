package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
	"budgeteer/internal/tips"
)

const defaultTipsTimeout = 30 * time.Second

// TipsService generates and stores per-user spending tips.
type TipsService struct {
	repo      storage.Repository
	gen       tips.Generator
	publisher EventPublisher
	clock     Clock
	logger    *slog.Logger
	timeout   time.Duration
}

func NewTipsService(repo storage.Repository, gen tips.Generator, publisher EventPublisher, clock Clock, logger *slog.Logger) *TipsService {
	if gen == nil {
		gen = tips.RuleGenerator{}
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TipsService{
		repo:      repo,
		gen:       gen,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		timeout:   defaultTipsTimeout,
	}
}

// SetTimeout bounds a single generation call.
func (s *TipsService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

func (s *TipsService) Latest(ctx context.Context, userID string) ([]core.Tip, error) {
	return s.repo.ListTips(ctx, userID)
}

// Generate builds fresh tips for the user and stores them as the latest set.
func (s *TipsService) Generate(ctx context.Context, userID string) ([]core.Tip, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	l, err := loadLedger(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	period, err := u.Period.Status(now)
	if err != nil {
		return nil, fmt.Errorf("period status: %w", err)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.gen.Generate(genCtx, tips.NewInput(l, period, now))
	if err != nil {
		return nil, fmt.Errorf("generate tips: %w", err)
	}
	if len(out) == 0 {
		return nil, tips.ErrNoTips
	}
	for i := range out {
		out[i].UserID = userID
		out[i].CreatedAt = now.UTC()
	}
	if err := s.repo.ReplaceTips(ctx, userID, out); err != nil {
		return nil, fmt.Errorf("store tips: %w", err)
	}
	return out, nil
}

// RequestRefresh schedules regeneration. With a publisher the worker picks
// it up; otherwise it runs in a background goroutine of this process.
func (s *TipsService) RequestRefresh(ctx context.Context, userID string) error {
	if s.publisher != nil {
		err := s.publisher.PublishTipsRefresh(ctx, userID)
		if err == nil {
			return nil
		}
		s.logger.WarnContext(ctx, "Failed to publish tips refresh, generating in-process",
			"user_id", userID, "error", err)
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.Generate(bg, userID); err != nil && !errors.Is(err, core.ErrNotFound) {
			s.logger.ErrorContext(bg, "Background tips refresh failed", "user_id", userID, "error", err)
		}
	}()
	return nil
}
