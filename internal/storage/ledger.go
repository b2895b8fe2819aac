package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"budgeteer/internal/core"
)

func (r *SQLiteRepository) ListIncomes(ctx context.Context, userID string) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, source, amount_cents, created_at FROM incomes WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		i, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func scanIncome(row interface{ Scan(...any) error }) (core.Income, error) {
	var (
		i         core.Income
		createdAt int64
	)
	if err := row.Scan(&i.ID, &i.UserID, &i.Source, &i.Amount.Cents, &createdAt); err != nil {
		return core.Income{}, mapErr(err)
	}
	i.CreatedAt = fromUnix(createdAt)
	return i, nil
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, userID, id string) (core.Income, error) {
	return scanIncome(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, source, amount_cents, created_at FROM incomes WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, i core.Income) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (id, user_id, source, amount_cents, created_at) VALUES (?, ?, ?, ?, ?)`,
		i.ID, i.UserID, i.Source, i.Amount.Cents, toUnix(i.CreatedAt))
	if err != nil {
		return fmt.Errorf("create income: %w", mapErr(err))
	}
	return nil
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, i core.Income) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE incomes SET source = ?, amount_cents = ? WHERE id = ? AND user_id = ?`,
		i.Source, i.Amount.Cents, i.ID, i.UserID)
	if err := expectOne(res, err); err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM incomes WHERE id = ? AND user_id = ?`, id, userID)
	if err := expectOne(res, err); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	return nil
}

const budgetColumns = `id, user_id, category, limit_cents, created_at, updated_at`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b                    core.Budget
		createdAt, updatedAt int64
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Category, &b.Limit.Cents, &createdAt, &updatedAt); err != nil {
		return core.Budget{}, mapErr(err)
	}
	b.CreatedAt = fromUnix(createdAt)
	b.UpdatedAt = fromUnix(updatedAt)
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	return scanBudget(r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Category, b.Limit.Cents, toUnix(b.CreatedAt), toUnix(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create budget: %w", mapErr(err))
	}
	return nil
}

// UpdateBudget changes category and limit. Expenses linked to the budget take
// the new category in the same transaction.
func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE budgets SET category = ?, limit_cents = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			b.Category, b.Limit.Cents, toUnix(b.UpdatedAt), b.ID, b.UserID)
		if err := expectOne(res, err); err != nil {
			return fmt.Errorf("update budget: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE expenses SET category = ? WHERE budget_id = ? AND user_id = ?`,
			b.Category, b.ID, b.UserID); err != nil {
			return fmt.Errorf("update budget expenses: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err := expectOne(res, err); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

const expenseColumns = `id, user_id, budget_id, category, description, amount_cents, date, created_at`

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e         core.Expense
		budgetID  sql.NullString
		date      string
		createdAt int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &budgetID, &e.Category, &e.Description, &e.Amount.Cents, &date, &createdAt); err != nil {
		return core.Expense{}, mapErr(err)
	}
	d, err := parseDate(date)
	if err != nil {
		return core.Expense{}, err
	}
	e.BudgetID = budgetID.String
	e.Date = d
	e.CreatedAt = fromUnix(createdAt)
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, f ExpenseFilter) ([]core.Expense, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, strings.TrimSpace(f.Category))
	}
	if f.BudgetID != "" {
		where = append(where, "budget_id = ?")
		args = append(args, f.BudgetID)
	}
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY date DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	return scanExpense(r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, nullString(e.BudgetID), e.Category, e.Description, e.Amount.Cents,
		e.Date.String(), toUnix(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("create expense: %w", mapErr(err))
	}
	return nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET budget_id = ?, category = ?, description = ?, amount_cents = ?, date = ?
		 WHERE id = ? AND user_id = ?`,
		nullString(e.BudgetID), e.Category, e.Description, e.Amount.Cents, e.Date.String(), e.ID, e.UserID)
	if err := expectOne(res, err); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err := expectOne(res, err); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ClearExpenses(ctx context.Context, userID string, unassociatedOnly bool) (int64, error) {
	query := `DELETE FROM expenses WHERE user_id = ?`
	args := []any{userID}
	if unassociatedOnly {
		query += ` AND (budget_id IS NULL OR budget_id NOT IN (SELECT id FROM budgets WHERE user_id = ?))`
		args = append(args, userID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear expenses: %w", err)
	}
	return res.RowsAffected()
}
