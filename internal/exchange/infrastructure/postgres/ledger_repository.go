package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meterlink/internal/exchange/domain"
)

// LedgerRepository persists imported readings. The source_file column is
// the idempotency ledger: one committed row set per inbound file name.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// SourceFileProcessed reports whether any ledger row carries the given
// source file name.
func (r *LedgerRepository) SourceFileProcessed(ctx context.Context, fileName string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("ledger repo: nil db")
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM import_readings WHERE source_file = $1
)`, fileName).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// InsertFileRecords inserts every record of one inbound file inside a
// single transaction. Any insert failure rolls the whole file back, so a
// file is either fully ledgered or untouched.
func (r *LedgerRepository) InsertFileRecords(ctx context.Context, fileName string, records []domain.ImportedRecord) error {
	if r == nil || r.db == nil {
		return errors.New("ledger repo: nil db")
	}
	if fileName == "" {
		return errors.New("ledger repo: empty file name")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i, rec := range records {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO import_readings (
	bill_period, account, installation, rate_group, agreement_id,
	reading_date, unit_value, source_file, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`,
			rec.BillPeriod, rec.Account, rec.Installation, rec.RateGroup, rec.AgreementID,
			rec.ReadingDate.UTC(), rec.UnitValue, fileName, now,
		); err != nil {
			return fmt.Errorf("ledger repo: insert record %d of %s: %w", i+1, fileName, err)
		}
	}
	return tx.Commit()
}

// ListReadings returns the ledger rows for a bill period, for reporting.
func (r *LedgerRepository) ListReadings(ctx context.Context, billPeriod string) ([]domain.ImportedRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT bill_period, account, installation, rate_group, agreement_id, reading_date, unit_value, source_file
FROM import_readings
WHERE bill_period = $1
ORDER BY installation ASC, reading_date ASC`, billPeriod)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ImportedRecord
	for rows.Next() {
		var rec domain.ImportedRecord
		if err := rows.Scan(
			&rec.BillPeriod,
			&rec.Account,
			&rec.Installation,
			&rec.RateGroup,
			&rec.AgreementID,
			&rec.ReadingDate,
			&rec.UnitValue,
			&rec.SourceFile,
		); err != nil {
			return nil, err
		}
		rec.ReadingDate = rec.ReadingDate.UTC()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
