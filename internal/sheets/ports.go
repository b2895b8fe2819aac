package sheets

import (
	"context"

	"budgeteer/internal/core"
)

// Ports for outbound adapters.
type (
	// ArchiveExporter appends an archived budget period to an external sheet.
	ArchiveExporter interface {
		// ExportArchive returns a reference to the written row.
		ExportArchive(ctx context.Context, user core.User, a core.PeriodArchive) (rowRef string, err error)
	}
)
