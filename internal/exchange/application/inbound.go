package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"

	"meterlink/internal/config"
	"meterlink/internal/exchange/domain"
	"meterlink/internal/observability/metrics"
	"meterlink/internal/transfer"
)

// FileOutcome is the terminal state of one inbound candidate.
type FileOutcome string

const (
	// FileSkipped means the ledger already holds the file name.
	FileSkipped FileOutcome = "skipped"
	// FileImported means the file was persisted, archived and relocated
	// (relocation possibly degraded to a warning).
	FileImported FileOutcome = "imported"
	// FileFailed means download, parse or persist failed; nothing was
	// committed and the file stays eligible for a later run.
	FileFailed FileOutcome = "failed"
)

// FileResult reports one candidate file. ArchiveErr and RelocateErr are
// post-commit housekeeping warnings, never failures.
type FileResult struct {
	Name        string
	Outcome     FileOutcome
	Records     int
	Err         error
	ArchiveErr  error
	RelocateErr error
}

// ImportSummary aggregates one inbound run.
type ImportSummary struct {
	Files    []FileResult
	Imported int
	Skipped  int
	Failed   int
	Records  int
}

// InboundPipeline discovers, downloads, persists and archives
// partner-supplied files.
type InboundPipeline struct {
	ledger          ImportStore
	client          transfer.Client
	remoteDir       string
	processedSubdir string
	pattern         string
	markerExt       string
	stagingDir      string
	archiveDir      string
	metrics         *metrics.Metrics
	logger          *log.Logger
}

// NewInboundPipeline constructs an InboundPipeline.
func NewInboundPipeline(ledger ImportStore, client transfer.Client, cfg config.Config, m *metrics.Metrics, logger *log.Logger) (*InboundPipeline, error) {
	if ledger == nil {
		return nil, errors.New("inbound pipeline: nil ledger")
	}
	if client == nil {
		return nil, errors.New("inbound pipeline: nil transfer client")
	}
	return &InboundPipeline{
		ledger:          ledger,
		client:          client,
		remoteDir:       cfg.FTP.InboundDir,
		processedSubdir: cfg.FTP.ProcessedSubdir,
		pattern:         cfg.Inbound.FilePattern,
		markerExt:       cfg.Outbound.MarkerExtension,
		stagingDir:      cfg.Local.StagingDir,
		archiveDir:      cfg.Local.ArchiveDir,
		metrics:         m,
		logger:          logger,
	}, nil
}

// Run lists the remote inbound directory and processes each candidate in
// name order. A listing failure is run-fatal; per-file failures are
// contained in the summary.
func (p *InboundPipeline) Run(ctx context.Context) (ImportSummary, error) {
	names, err := p.client.List(ctx, p.remoteDir)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("inbound: list %s: %w", p.remoteDir, err)
	}

	var candidates []string
	for _, name := range names {
		if domain.MatchInbound(name, p.pattern, p.markerExt) {
			candidates = append(candidates, name)
		}
	}
	sort.Strings(candidates)
	p.logf("event=import_discovered candidates=%d listed=%d", len(candidates), len(names))

	summary := ImportSummary{}
	for _, name := range candidates {
		result := p.processFile(ctx, name)
		summary.Files = append(summary.Files, result)
		switch result.Outcome {
		case FileSkipped:
			summary.Skipped++
			if p.metrics != nil {
				p.metrics.FilesSkipped.Inc()
			}
		case FileImported:
			summary.Imported++
			summary.Records += result.Records
			if p.metrics != nil {
				p.metrics.FilesImported.Inc()
				p.metrics.RecordsImported.Add(float64(result.Records))
			}
		case FileFailed:
			summary.Failed++
			if p.metrics != nil {
				p.metrics.FilesFailed.Inc()
			}
		}
	}
	p.logf("event=import_completed imported=%d skipped=%d failed=%d records=%d",
		summary.Imported, summary.Skipped, summary.Failed, summary.Records)
	return summary, nil
}

func (p *InboundPipeline) processFile(ctx context.Context, name string) FileResult {
	processed, err := p.ledger.SourceFileProcessed(ctx, name)
	if err != nil {
		p.logf("event=import_ledger_check_failed file=%s error=%v", name, err)
		return FileResult{Name: name, Outcome: FileFailed, Err: fmt.Errorf("inbound: ledger check %s: %w", name, err)}
	}
	if processed {
		p.logf("event=import_skip_already_processed file=%s", name)
		return FileResult{Name: name, Outcome: FileSkipped}
	}

	if err := os.MkdirAll(p.stagingDir, 0o755); err != nil {
		return FileResult{Name: name, Outcome: FileFailed, Err: fmt.Errorf("inbound: create staging dir: %w", err)}
	}
	stagingPath := filepath.Join(p.stagingDir, name)
	if err := p.client.Download(ctx, path.Join(p.remoteDir, name), stagingPath); err != nil {
		p.logf("event=import_download_failed file=%s error=%v", name, err)
		return FileResult{Name: name, Outcome: FileFailed, Err: err}
	}

	// Parse the whole file before touching the database: one malformed
	// line fails the file with no partial insert.
	body, err := os.ReadFile(stagingPath)
	if err != nil {
		return FileResult{Name: name, Outcome: FileFailed, Err: fmt.Errorf("inbound: read staging copy of %s: %w", name, err)}
	}
	records, err := domain.DecodeFile(name, string(body))
	if err != nil {
		p.logf("event=import_parse_failed file=%s error=%v", name, err)
		_ = os.Remove(stagingPath)
		return FileResult{Name: name, Outcome: FileFailed, Err: err}
	}

	if err := p.ledger.InsertFileRecords(ctx, name, records); err != nil {
		p.logf("event=import_persist_failed file=%s error=%v", name, err)
		_ = os.Remove(stagingPath)
		return FileResult{Name: name, Outcome: FileFailed, Err: err}
	}
	p.logf("event=import_persisted file=%s records=%d", name, len(records))

	result := FileResult{Name: name, Outcome: FileImported, Records: len(records)}

	// From here on the records are durably committed; archive and remote
	// relocate failures degrade to warnings.
	if err := p.archive(stagingPath, name); err != nil {
		p.logf("event=import_archive_failed file=%s error=%v", name, err)
		result.ArchiveErr = err
	}
	if err := p.relocateRemote(ctx, name); err != nil {
		p.logf("event=import_relocate_failed file=%s error=%v", name, err)
		result.RelocateErr = err
	}
	return result
}

func (p *InboundPipeline) archive(stagingPath, name string) error {
	if err := os.MkdirAll(p.archiveDir, 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(stagingPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(p.archiveDir, name), data, 0o644); err != nil {
		return err
	}
	return os.Remove(stagingPath)
}

func (p *InboundPipeline) relocateRemote(ctx context.Context, name string) error {
	processedDir := path.Join(p.remoteDir, p.processedSubdir)
	if err := p.client.EnsureDir(ctx, processedDir); err != nil {
		return err
	}
	return p.client.Move(ctx, path.Join(p.remoteDir, name), path.Join(processedDir, name))
}

func (p *InboundPipeline) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
