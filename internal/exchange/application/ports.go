package application

import (
	"context"
	"time"

	"meterlink/internal/exchange/domain"
)

// OutboundStore reads and updates outbound candidate rows.
type OutboundStore interface {
	FetchPending(ctx context.Context, noPeriodOperand string) ([]domain.PendingRecord, error)
	MarkSent(ctx context.Context, fileName string, sentAt time.Time) (int64, error)
}

// ImportStore is the inbound ledger: the database is the single source of
// truth for which file names were already processed.
type ImportStore interface {
	SourceFileProcessed(ctx context.Context, fileName string) (bool, error)
	InsertFileRecords(ctx context.Context, fileName string, records []domain.ImportedRecord) error
}

// Clock abstracts time for run-identity tests.
type Clock interface {
	Now() time.Time
}
