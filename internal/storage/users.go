package storage

import (
	"context"
	"fmt"
	"time"

	"budgeteer/internal/core"
)

const userColumns = `id, name, email, password_hash, period_type, period_custom_days, period_start, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u                    core.User
		periodType, start    string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &periodType, &u.Period.CustomDays, &start, &createdAt, &updatedAt); err != nil {
		return core.User{}, mapErr(err)
	}
	d, err := parseDate(start)
	if err != nil {
		return core.User{}, err
	}
	u.Period.Type = core.PeriodType(periodType)
	u.Period.Start = d
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash,
		string(u.Period.Type), u.Period.CustomDays, u.Period.Start.String(),
		toUnix(u.CreatedAt), toUnix(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create user: %w", mapErr(err))
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) UpdateUserPeriod(ctx context.Context, userID string, p core.IncomePeriod, at time.Time) error {
	return updatePeriod(ctx, r.db, userID, p, at)
}

func updatePeriod(ctx context.Context, q dbtx, userID string, p core.IncomePeriod, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET period_type = ?, period_custom_days = ?, period_start = ?, updated_at = ? WHERE id = ?`,
		string(p.Type), p.CustomDays, p.Start.String(), toUnix(at), userID)
	if err := expectOne(res, err); err != nil {
		return fmt.Errorf("update income period: %w", err)
	}
	return nil
}

// DeleteUser removes the user; owned rows go with it through ON DELETE CASCADE.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err := expectOne(res, err); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		s.TokenHash, s.UserID, toUnix(s.ExpiresAt), toUnix(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", mapErr(err))
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, tokenHash string) (core.Session, error) {
	var (
		s                    core.Session
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, expires_at, created_at FROM sessions WHERE token_hash = ?`, tokenHash).
		Scan(&s.TokenHash, &s.UserID, &expiresAt, &createdAt)
	if err != nil {
		return core.Session{}, mapErr(err)
	}
	s.ExpiresAt = fromUnix(expiresAt)
	s.CreatedAt = fromUnix(createdAt)
	return s, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toUnix(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
