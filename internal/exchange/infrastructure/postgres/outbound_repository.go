package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"meterlink/internal/exchange/domain"
)

// OutboundRepository reads and updates outbound candidate rows.
type OutboundRepository struct {
	db *sql.DB
}

// NewOutboundRepository constructs an OutboundRepository.
func NewOutboundRepository(db *sql.DB) *OutboundRepository {
	return &OutboundRepository{db: db}
}

// FetchPending returns all PENDING rows in the export contract order:
// installation ascending, the no-period operand before all others within
// an installation, then period start ascending.
func (r *OutboundRepository) FetchPending(ctx context.Context, noPeriodOperand string) ([]domain.PendingRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("outbound repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT installation, operand, period_start, period_end, allocation_unit, period_qualifier
FROM outbound_records
WHERE status = $1
ORDER BY installation ASC,
	CASE WHEN operand = $2 THEN 0 ELSE 1 END ASC,
	period_start ASC`,
		domain.StatusPending, noPeriodOperand)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PendingRecord
	for rows.Next() {
		var rec domain.PendingRecord
		var qualifier sql.NullString
		if err := rows.Scan(
			&rec.Installation,
			&rec.Operand,
			&rec.PeriodStart,
			&rec.PeriodEnd,
			&rec.AllocationUnit,
			&qualifier,
		); err != nil {
			return nil, err
		}
		rec.PeriodStart = rec.PeriodStart.UTC()
		rec.PeriodEnd = rec.PeriodEnd.UTC()
		if qualifier.Valid {
			rec.PeriodQualifier = qualifier.String
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSent transitions every PENDING row to SENT in a single set-based
// update, stamping the batch file name and send timestamp. It returns the
// number of rows updated.
func (r *OutboundRepository) MarkSent(ctx context.Context, fileName string, sentAt time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("outbound repo: nil db")
	}
	if fileName == "" {
		return 0, errors.New("outbound repo: empty file name")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE outbound_records
SET status = $1, sent_file = $2, sent_at = $3
WHERE status = $4`,
		domain.StatusSent, fileName, sentAt.UTC(), domain.StatusPending)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SentBatch summarizes one exported batch for reporting.
type SentBatch struct {
	FileName string
	Records  int
	SentAt   time.Time
}

// ListSentBatches returns per-file export summaries in a time range.
func (r *OutboundRepository) ListSentBatches(ctx context.Context, from, to time.Time) ([]SentBatch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("outbound repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT sent_file, COUNT(*), MIN(sent_at)
FROM outbound_records
WHERE status = $1 AND sent_at >= $2 AND sent_at < $3
GROUP BY sent_file
ORDER BY MIN(sent_at) ASC`,
		domain.StatusSent, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SentBatch
	for rows.Next() {
		var batch SentBatch
		if err := rows.Scan(&batch.FileName, &batch.Records, &batch.SentAt); err != nil {
			return nil, err
		}
		batch.SentAt = batch.SentAt.UTC()
		result = append(result, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
