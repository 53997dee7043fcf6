package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"meterlink/internal/observability/metrics"
)

const (
	directionOutbound = "outbound"
	directionInbound  = "inbound"

	statusSuccess = "succeeded"
	statusFailed  = "failed"
)

// Coordinator owns the per-run identity and the ordering of the two
// pipelines. Any pipeline failure makes the run fail, which the caller
// maps to a non-zero completion status.
type Coordinator struct {
	outbound *OutboundPipeline
	inbound  *InboundPipeline
	clock    Clock
	metrics  *metrics.Metrics
	logger   *log.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(outbound *OutboundPipeline, inbound *InboundPipeline, clock Clock, m *metrics.Metrics, logger *log.Logger) (*Coordinator, error) {
	if outbound == nil && inbound == nil {
		return nil, errors.New("coordinator: at least one pipeline required")
	}
	if clock == nil {
		return nil, errors.New("coordinator: nil clock")
	}
	return &Coordinator{
		outbound: outbound,
		inbound:  inbound,
		clock:    clock,
		metrics:  m,
		logger:   logger,
	}, nil
}

// Run executes outbound then inbound once. Each direction runs even when
// the other failed; errors are joined so nothing is masked.
func (c *Coordinator) Run(ctx context.Context) error {
	runID := uuid.NewString()
	started := c.clock.Now().UTC()
	c.logf("event=exchange_run_start run_id=%s run_time=%s", runID, started.Format(time.RFC3339))

	var errs []error
	if c.outbound != nil {
		if err := c.runOutbound(ctx, runID, started); err != nil {
			errs = append(errs, err)
		}
	}
	if c.inbound != nil {
		if err := c.runInbound(ctx, runID); err != nil {
			errs = append(errs, err)
		}
	}

	if c.metrics != nil {
		c.metrics.RunDuration.Observe(c.clock.Now().UTC().Sub(started).Seconds())
	}
	if len(errs) > 0 {
		c.logf("event=exchange_run_failed run_id=%s errors=%d", runID, len(errs))
		return errors.Join(errs...)
	}
	c.logf("event=exchange_run_success run_id=%s", runID)
	return nil
}

// RunOutbound executes the export pipeline once.
func (c *Coordinator) RunOutbound(ctx context.Context) error {
	if c.outbound == nil {
		return errors.New("coordinator: outbound pipeline not configured")
	}
	runID := uuid.NewString()
	return c.runOutbound(ctx, runID, c.clock.Now().UTC())
}

// RunInbound executes the import pipeline once.
func (c *Coordinator) RunInbound(ctx context.Context) error {
	if c.inbound == nil {
		return errors.New("coordinator: inbound pipeline not configured")
	}
	return c.runInbound(ctx, uuid.NewString())
}

func (c *Coordinator) runOutbound(ctx context.Context, runID string, runTime time.Time) error {
	result, err := c.outbound.Run(ctx, runTime)
	if err != nil {
		c.countRun(directionOutbound, statusFailed)
		c.logf("event=outbound_run_failed run_id=%s error=%v", runID, err)
		return fmt.Errorf("outbound run %s: %w", runID, err)
	}
	c.countRun(directionOutbound, statusSuccess)
	if result.Outcome == ExportNothingToDo {
		c.logf("event=outbound_run_success run_id=%s outcome=%s", runID, result.Outcome)
		return nil
	}
	c.logf("event=outbound_run_success run_id=%s outcome=%s file=%s records=%d",
		runID, result.Outcome, result.Batch.FileName, result.Batch.Records)
	return nil
}

func (c *Coordinator) runInbound(ctx context.Context, runID string) error {
	summary, err := c.inbound.Run(ctx)
	if err != nil {
		c.countRun(directionInbound, statusFailed)
		c.logf("event=inbound_run_failed run_id=%s error=%v", runID, err)
		return fmt.Errorf("inbound run %s: %w", runID, err)
	}
	if summary.Failed > 0 {
		c.countRun(directionInbound, statusFailed)
		c.logf("event=inbound_run_failed run_id=%s failed_files=%d", runID, summary.Failed)
		return fmt.Errorf("inbound run %s: %d of %d files failed", runID, summary.Failed, len(summary.Files))
	}
	c.countRun(directionInbound, statusSuccess)
	c.logf("event=inbound_run_success run_id=%s imported=%d skipped=%d records=%d",
		runID, summary.Imported, summary.Skipped, summary.Records)
	return nil
}

func (c *Coordinator) countRun(direction, status string) {
	if c.metrics != nil {
		c.metrics.RunsTotal.WithLabelValues(direction, status).Inc()
	}
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
