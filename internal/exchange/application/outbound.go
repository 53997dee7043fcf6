package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"meterlink/internal/config"
	"meterlink/internal/exchange/domain"
	"meterlink/internal/observability/metrics"
	"meterlink/internal/transfer"
)

// ExportOutcome distinguishes normal termination paths of an outbound run.
type ExportOutcome string

const (
	// ExportNothingToDo means no PENDING rows existed; the run ended
	// cleanly with no side effects.
	ExportNothingToDo ExportOutcome = "nothing_to_do"
	// ExportCompleted means a batch was written, uploaded and ledgered.
	ExportCompleted ExportOutcome = "completed"
)

// ExportResult reports one outbound run.
type ExportResult struct {
	Outcome ExportOutcome
	Batch   *domain.ExportBatch
}

// OutboundPipeline extracts pending rows, publishes a batch file plus its
// marker, and commits the SENT state.
type OutboundPipeline struct {
	store     OutboundStore
	client    transfer.Client
	localDir  string
	remoteDir string
	naming    config.Outbound
	metrics   *metrics.Metrics
	logger    *log.Logger
}

// NewOutboundPipeline constructs an OutboundPipeline.
func NewOutboundPipeline(store OutboundStore, client transfer.Client, cfg config.Config, m *metrics.Metrics, logger *log.Logger) (*OutboundPipeline, error) {
	if store == nil {
		return nil, errors.New("outbound pipeline: nil store")
	}
	if client == nil {
		return nil, errors.New("outbound pipeline: nil transfer client")
	}
	return &OutboundPipeline{
		store:     store,
		client:    client,
		localDir:  cfg.Local.OutboundDir,
		remoteDir: cfg.FTP.OutboundDir,
		naming:    cfg.Outbound,
		metrics:   m,
		logger:    logger,
	}, nil
}

// Run executes one export. runTime names the batch; every failure before
// the final ledger update leaves the rows PENDING for the next run.
func (p *OutboundPipeline) Run(ctx context.Context, runTime time.Time) (ExportResult, error) {
	records, err := p.store.FetchPending(ctx, p.naming.NoPeriodOperand)
	if err != nil {
		return ExportResult{}, fmt.Errorf("outbound: fetch pending: %w", err)
	}
	if len(records) == 0 {
		p.logf("event=export_nothing_pending")
		return ExportResult{Outcome: ExportNothingToDo}, nil
	}
	domain.SortForExport(records, p.naming.NoPeriodOperand)

	batch, err := p.writeBatch(records, runTime)
	if err != nil {
		return ExportResult{}, err
	}
	p.logf("event=export_batch_written file=%s records=%d bytes=%d", batch.FileName, batch.Records, batch.Bytes)

	// Data before marker: the marker's presence is the partner's
	// transfer-complete signal.
	if err := p.client.Upload(ctx, batch.LocalPath, path.Join(p.remoteDir, batch.FileName)); err != nil {
		return ExportResult{}, fmt.Errorf("outbound: upload data file: %w", err)
	}
	if err := p.client.Upload(ctx, batch.MarkerPath, path.Join(p.remoteDir, batch.MarkerName)); err != nil {
		return ExportResult{}, fmt.Errorf("outbound: upload marker file: %w", err)
	}
	p.logf("event=export_uploaded file=%s marker=%s", batch.FileName, batch.MarkerName)

	sentAt := time.Now().UTC()
	affected, err := p.store.MarkSent(ctx, batch.FileName, sentAt)
	if err != nil {
		// The one true risk window: the file was delivered but the ledger
		// was not updated. Accepted at-least-once gap; a later run
		// re-exports under a new, distinguishable file name.
		p.logf("event=export_ledger_update_failed file=%s error=%v", batch.FileName, err)
		return ExportResult{}, fmt.Errorf("outbound: mark sent for %s: %w", batch.FileName, err)
	}
	if affected != int64(len(records)) {
		p.logf("event=export_mark_count_mismatch file=%s exported=%d updated=%d", batch.FileName, len(records), affected)
	}
	batch.SentAt = sentAt

	if p.metrics != nil {
		p.metrics.RecordsExported.Add(float64(batch.Records))
	}
	p.logf("event=export_completed file=%s records=%d", batch.FileName, batch.Records)
	return ExportResult{Outcome: ExportCompleted, Batch: batch}, nil
}

func (p *OutboundPipeline) writeBatch(records []domain.PendingRecord, runTime time.Time) (*domain.ExportBatch, error) {
	if err := os.MkdirAll(p.localDir, 0o755); err != nil {
		return nil, fmt.Errorf("outbound: create local dir: %w", err)
	}

	fileName := domain.BatchFileName(p.naming.FilePrefix, runTime, p.naming.DataExtension)
	localPath := filepath.Join(p.localDir, fileName)

	var b strings.Builder
	for _, rec := range records {
		b.WriteString(domain.EncodeLine(rec, p.naming.NoPeriodOperand))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(localPath, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("outbound: write batch file: %w", err)
	}

	// An empty or missing result after a believed-successful write is
	// fatal, not silently ignored.
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("outbound: verify batch file %s: %w", fileName, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("outbound: batch file %s is empty after write", fileName)
	}

	markerName := domain.MarkerFileName(fileName, p.naming.DataExtension, p.naming.MarkerExtension)
	markerPath := filepath.Join(p.localDir, markerName)
	if err := os.WriteFile(markerPath, nil, 0o644); err != nil {
		return nil, fmt.Errorf("outbound: write marker file: %w", err)
	}

	return &domain.ExportBatch{
		FileName:   fileName,
		MarkerName: markerName,
		LocalPath:  localPath,
		MarkerPath: markerPath,
		Records:    len(records),
		Bytes:      info.Size(),
	}, nil
}

func (p *OutboundPipeline) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
