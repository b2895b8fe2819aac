package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"budgeteer/internal/cli"
	"budgeteer/internal/config"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
	"budgeteer/internal/sheets"
	"budgeteer/internal/storage"
	"budgeteer/internal/worker"
)

// adminApp holds what the subcommands share. Tests set repo and svc
// directly, in which case open leaves them alone.
type adminApp struct {
	out     io.Writer
	cfg     *config.Config
	logger  *log.Logger
	repo    storage.Repository
	svc     *services.Services
	cleanup func() error

	// newExporter defaults to the Google Sheets client from config.
	newExporter func(ctx context.Context) (sheets.ArchiveExporter, error)
}

func (a *adminApp) loadConfig() {
	if a.cfg != nil {
		return
	}
	cli.LoadEnvFile()
	a.cfg = cli.LoadAndValidateConfig()

	// Command output goes to stdout, so logs go to stderr.
	level, _ := log.ParseLevel(a.cfg.LogLevel)
	a.logger = log.New(log.Config{
		Level:     level,
		Format:    a.cfg.LogFormat,
		Component: log.ComponentAdmin,
		Output:    os.Stderr,
	})
	log.SetDefault(a.logger)
}

func (a *adminApp) open(ctx context.Context) error {
	if a.repo != nil {
		return nil
	}
	a.loadConfig()

	res := cli.InitBackend(ctx, a.logger, a.cfg)
	var publisher services.EventPublisher
	if res.Events != nil {
		publisher = res.Events
	}
	a.repo = res.Repo
	a.cleanup = res.Cleanup
	a.svc = services.New(services.Deps{
		Repo:        res.Repo,
		Publisher:   publisher,
		Tips:        cli.NewTipsGenerator(a.cfg, a.logger),
		TipsTimeout: a.cfg.TipsTimeout,
		SessionTTL:  a.cfg.SessionTTL,
		Logger:      a.logger.WithComponent(log.ComponentAdmin).Slog(),
	})
	return nil
}

func (a *adminApp) close() {
	if a.cleanup == nil {
		return
	}
	if err := a.cleanup(); err != nil {
		a.logger.Error("Backend cleanup error", "error", err)
	}
	a.cleanup = nil
}

func (a *adminApp) migrate() error {
	if a.cfg.DataBackend != "sqlite" {
		return fmt.Errorf("migrations only apply to the sqlite backend (DATA_BACKEND=%s)", a.cfg.DataBackend)
	}
	if err := storage.RunMigrations(a.cfg.SQLiteDBPath); err != nil {
		return err
	}
	version, dirty, err := storage.MigrationVersion(a.cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Schema version %d", version)
	if dirty {
		fmt.Fprint(a.out, " (dirty)")
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *adminApp) listUsers(ctx context.Context, format string) error {
	users, err := a.repo.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if format == "json" {
		return a.writeJSON(users)
	}
	if err := checkFormat(format); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tPERIOD\tSTART")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.Period.Type, u.Period.Start)
	}
	return tw.Flush()
}

func (a *adminApp) reset(ctx context.Context, ref string) error {
	u, err := a.resolveUser(ctx, ref)
	if err != nil {
		return err
	}
	archive, err := a.svc.Budgets.Reset(ctx, u.ID)
	if errors.Is(err, core.ErrNothingToReset) {
		fmt.Fprintf(a.out, "%s has no budgets to archive\n", u.Email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reset period: %w", err)
	}
	fmt.Fprintf(a.out, "Archived %s to %s for %s: %s\n",
		archive.PeriodStart, archive.PeriodEnd, u.Email, archive.Status)
	return nil
}

func (a *adminApp) history(ctx context.Context, ref, format string) error {
	u, err := a.resolveUser(ctx, ref)
	if err != nil {
		return err
	}
	archives, err := a.svc.Budgets.History(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if format == "json" {
		return a.writeJSON(archives)
	}
	if err := checkFormat(format); err != nil {
		return err
	}
	if len(archives) == 0 {
		fmt.Fprintf(a.out, "No archived periods for %s\n", u.Email)
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tINCOME\tBUDGET\tEXPENSES\tSTATUS\tCATEGORIES")
	for _, h := range archives {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			h.PeriodStart, h.PeriodEnd, h.Income, h.TotalBudget, h.TotalExpenses,
			h.Status, strings.Join(h.Categories, ", "))
	}
	return tw.Flush()
}

func (a *adminApp) export(ctx context.Context, ref string) error {
	u, err := a.resolveUser(ctx, ref)
	if err != nil {
		return err
	}
	newExporter := a.newExporter
	if newExporter == nil {
		newExporter = func(ctx context.Context) (sheets.ArchiveExporter, error) {
			return cli.NewArchiveExporter(ctx, a.cfg, a.logger)
		}
	}
	exporter, err := newExporter(ctx)
	if err != nil {
		return fmt.Errorf("init exporter: %w", err)
	}
	if exporter == nil {
		return errors.New("archive export is disabled: set GOOGLE_SPREADSHEET_ID")
	}

	w := worker.NewEventWorker(a.svc.Tips, a.repo, exporter, a.workerLogger())
	n, err := w.ExportHistory(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("export history after %d rows: %w", n, err)
	}
	fmt.Fprintf(a.out, "Exported %d archived periods for %s\n", n, u.Email)
	return nil
}

func (a *adminApp) pruneSessions(ctx context.Context) error {
	n, err := a.svc.Auth.PruneSessions(ctx)
	if err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	fmt.Fprintf(a.out, "Deleted %d expired sessions\n", n)
	return nil
}

// resolveUser accepts either a user id or an email address.
func (a *adminApp) resolveUser(ctx context.Context, ref string) (core.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return core.User{}, errors.New("a user id or email is required")
	}
	var (
		u   core.User
		err error
	)
	if strings.Contains(ref, "@") {
		u, err = a.repo.GetUserByEmail(ctx, strings.ToLower(ref))
	} else {
		u, err = a.repo.GetUser(ctx, ref)
	}
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("user %q not found", ref)
	}
	return u, err
}

func (a *adminApp) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *adminApp) workerLogger() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger.WithComponent(log.ComponentWorker).Slog()
}

func checkFormat(format string) error {
	if format != "table" && format != "" {
		return fmt.Errorf("unknown output format %q: must be table or json", format)
	}
	return nil
}
