package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgeteer/internal/core"
	ports "budgeteer/internal/sheets"
)

// historyHeader is written to row 1 of an empty history sheet.
var historyHeader = []any{
	"Archived At", "User", "Period Start", "Period End", "Income",
	"Total Budget", "Total Expenses", "Status", "Categories", "Archive ID",
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	historySheet  string

	headerMu    sync.Mutex
	headerReady bool
}

// Ensure interface conformance
var _ ports.ArchiveExporter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to write it.
// Endpoint overrides the API base URL and disables authentication; it is
// only meant for tests against a local fake.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Endpoint        string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "History"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		historySheet:  sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	if cfg.Endpoint != "" {
		return gsheet.NewService(ctx,
			goption.WithEndpoint(cfg.Endpoint),
			goption.WithoutAuthentication())
	}

	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	if len(credentialsJSON) == 0 {
		file := strings.TrimSpace(cfg.CredentialsFile)
		if file == "" {
			file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		}
		if file == "" {
			return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
		}
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account credentials", "path", file, "size", len(credentialsJSON))
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportArchive appends one row describing the archived period.
func (c *Client) ExportArchive(ctx context.Context, user core.User, a core.PeriodArchive) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if a.ID == "" {
		return "", errors.New("archive has no id")
	}
	if err := c.ensureHeader(ctx); err != nil {
		return "", err
	}

	rng := fmt.Sprintf("%s!A:J", c.historySheet)
	vr := &gsheet.ValueRange{Values: [][]any{archiveRow(user, a)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to append archive to sheet %s: %w", c.historySheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// ensureHeader writes the header row once per client if row 1 is empty.
func (c *Client) ensureHeader(ctx context.Context) error {
	c.headerMu.Lock()
	defer c.headerMu.Unlock()
	if c.headerReady {
		return nil
	}

	rng := fmt.Sprintf("%s!A1:J1", c.historySheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		vr := &gsheet.ValueRange{Values: [][]any{historyHeader}}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to write header in sheet %s: %w", c.historySheet, err)
		}
	}
	c.headerReady = true
	return nil
}

func archiveRow(user core.User, a core.PeriodArchive) []any {
	return []any{
		a.ArchivedAt.UTC().Format("2006-01-02 15:04:05"),
		user.Email,
		a.PeriodStart.String(),
		a.PeriodEnd.String(),
		a.Income.Decimal().StringFixed(2),
		a.TotalBudget.Decimal().StringFixed(2),
		a.TotalExpenses.Decimal().StringFixed(2),
		a.Status,
		strings.Join(a.Categories, ", "),
		a.ID,
	}
}
