package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"budgeteer/internal/core"
)

func (r *SQLiteRepository) ResetPeriod(ctx context.Context, a core.PeriodArchive, next core.IncomePeriod) error {
	categories, err := json.Marshal(a.Categories)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO period_archives (id, user_id, total_budget_cents, total_expenses_cents, income_cents,
			 categories, period_start, period_end, status, archived_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.UserID, a.TotalBudget.Cents, a.TotalExpenses.Cents, a.Income.Cents,
			string(categories), a.PeriodStart.String(), a.PeriodEnd.String(), a.Status, toUnix(a.ArchivedAt)); err != nil {
			return fmt.Errorf("insert archive: %w", mapErr(err))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE user_id = ?`, a.UserID); err != nil {
			return fmt.Errorf("clear budgets: %w", err)
		}
		return updatePeriod(ctx, tx, a.UserID, next, a.ArchivedAt)
	})
}

const archiveColumns = `id, user_id, total_budget_cents, total_expenses_cents, income_cents, categories, period_start, period_end, status, archived_at`

func scanArchive(row interface{ Scan(...any) error }) (core.PeriodArchive, error) {
	var (
		a          core.PeriodArchive
		categories string
		start, end string
		archivedAt int64
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.TotalBudget.Cents, &a.TotalExpenses.Cents, &a.Income.Cents,
		&categories, &start, &end, &a.Status, &archivedAt); err != nil {
		return core.PeriodArchive{}, mapErr(err)
	}
	if err := json.Unmarshal([]byte(categories), &a.Categories); err != nil {
		return core.PeriodArchive{}, fmt.Errorf("decode categories: %w", err)
	}
	var err error
	if a.PeriodStart, err = parseDate(start); err != nil {
		return core.PeriodArchive{}, err
	}
	if a.PeriodEnd, err = parseDate(end); err != nil {
		return core.PeriodArchive{}, err
	}
	a.ArchivedAt = fromUnix(archivedAt)
	return a, nil
}

// ListArchives returns the user's budget history, oldest first.
func (r *SQLiteRepository) ListArchives(ctx context.Context, userID string) ([]core.PeriodArchive, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+archiveColumns+` FROM period_archives WHERE user_id = ? ORDER BY archived_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var out []core.PeriodArchive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetArchive(ctx context.Context, userID, id string) (core.PeriodArchive, error) {
	return scanArchive(r.db.QueryRowContext(ctx,
		`SELECT `+archiveColumns+` FROM period_archives WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *SQLiteRepository) CreateFeedback(ctx context.Context, f core.Feedback) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feedback (id, user_id, message, rating, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.Message, f.Rating, toUnix(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("create feedback: %w", mapErr(err))
	}
	return nil
}

func (r *SQLiteRepository) ListFeedback(ctx context.Context, userID string) ([]core.Feedback, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, message, rating, created_at FROM feedback WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []core.Feedback
	for rows.Next() {
		var (
			f         core.Feedback
			createdAt int64
		)
		if err := rows.Scan(&f.ID, &f.UserID, &f.Message, &f.Rating, &createdAt); err != nil {
			return nil, err
		}
		f.CreatedAt = fromUnix(createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ReplaceTips(ctx context.Context, userID string, tips []core.Tip) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tips WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear tips: %w", err)
		}
		for i, t := range tips {
			createdAt := t.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tips (user_id, position, content, source, created_at) VALUES (?, ?, ?, ?, ?)`,
				userID, i, t.Content, t.Source, toUnix(createdAt)); err != nil {
				return fmt.Errorf("insert tip: %w", mapErr(err))
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ListTips(ctx context.Context, userID string) ([]core.Tip, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, content, source, created_at FROM tips WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tips: %w", err)
	}
	defer rows.Close()

	var out []core.Tip
	for rows.Next() {
		var (
			t         core.Tip
			createdAt int64
		)
		if err := rows.Scan(&t.UserID, &t.Content, &t.Source, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt = fromUnix(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}
