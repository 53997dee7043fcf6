package application

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"meterlink/internal/exchange/domain"
)

var runTime = time.Date(2024, 1, 15, 9, 30, 45, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func threePending() []domain.PendingRecord {
	return []domain.PendingRecord{
		{Installation: "100", Operand: "QTY", PeriodStart: day(2024, 1, 1), PeriodEnd: day(2024, 1, 31), AllocationUnit: "KWH", PeriodQualifier: "2024-01"},
		{Installation: "100", Operand: "EABL", PeriodStart: day(2024, 1, 1), PeriodEnd: day(2024, 1, 31), AllocationUnit: "KWH"},
		{Installation: "200", Operand: "EABL", PeriodStart: day(2024, 1, 1), PeriodEnd: day(2024, 1, 31), AllocationUnit: "KWH"},
	}
}

func TestOutboundNothingToDo(t *testing.T) {
	store := &stubOutboundStore{}
	client := newStubClient()
	pipeline, err := NewOutboundPipeline(store, client, testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	result, err := pipeline.Run(context.Background(), runTime)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != ExportNothingToDo {
		t.Fatalf("expected nothing-to-do outcome, got %s", result.Outcome)
	}
	if len(client.ops) != 0 {
		t.Fatalf("expected no transfer operations, got %v", client.ops)
	}
	if store.markCalls != 0 {
		t.Fatal("mark sent must not be called for an empty run")
	}
}

func TestOutboundEndToEnd(t *testing.T) {
	store := &stubOutboundStore{pending: threePending()}
	client := newStubClient()
	pipeline, err := NewOutboundPipeline(store, client, testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	result, err := pipeline.Run(context.Background(), runTime)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != ExportCompleted {
		t.Fatalf("expected completed outcome, got %s", result.Outcome)
	}
	batch := result.Batch
	if batch.FileName != "EXP_20240115_093045_0001.txt" {
		t.Fatalf("unexpected batch file name %s", batch.FileName)
	}
	if batch.Records != 3 {
		t.Fatalf("expected 3 records, got %d", batch.Records)
	}

	data, ok := client.uploaded["out/"+batch.FileName]
	if !ok {
		t.Fatal("data file not uploaded")
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	// Contract order: installation ascending, no-period operand first.
	if !strings.HasPrefix(lines[0], "100\tEABL\t") {
		t.Fatalf("line 1 out of contract order: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "100\tQTY\t") {
		t.Fatalf("line 2 out of contract order: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "200\tEABL\t") {
		t.Fatalf("line 3 out of contract order: %q", lines[2])
	}

	marker, ok := client.uploaded["out/"+batch.MarkerName]
	if !ok {
		t.Fatal("marker file not uploaded")
	}
	if len(marker) != 0 {
		t.Fatalf("marker must be zero bytes, got %d", len(marker))
	}

	if store.markCalls != 1 || store.markedFile != batch.FileName {
		t.Fatalf("expected one mark-sent with %s, got %d calls for %q", batch.FileName, store.markCalls, store.markedFile)
	}
	if store.markedAt.IsZero() {
		t.Fatal("expected a send timestamp")
	}
}

func TestOutboundMarkerUploadedStrictlyAfterData(t *testing.T) {
	store := &stubOutboundStore{pending: threePending()}
	client := newStubClient()
	pipeline, err := NewOutboundPipeline(store, client, testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	result, err := pipeline.Run(context.Background(), runTime)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	dataIdx, markerIdx := -1, -1
	for i, op := range client.ops {
		switch op {
		case "upload out/" + result.Batch.FileName:
			dataIdx = i
		case "upload out/" + result.Batch.MarkerName:
			markerIdx = i
		}
	}
	if dataIdx == -1 || markerIdx == -1 {
		t.Fatalf("missing uploads in %v", client.ops)
	}
	if dataIdx >= markerIdx {
		t.Fatalf("data upload must precede marker upload: %v", client.ops)
	}
}

func TestOutboundDataUploadFailureLeavesRowsPending(t *testing.T) {
	store := &stubOutboundStore{pending: threePending()}
	client := newStubClient()
	client.uploadErr = map[string]error{
		"out/EXP_20240115_093045_0001.txt": errors.New("upload refused"),
	}
	pipeline, err := NewOutboundPipeline(store, client, testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if _, err := pipeline.Run(context.Background(), runTime); err == nil {
		t.Fatal("expected error")
	}
	if store.markCalls != 0 {
		t.Fatal("rows must stay PENDING when the data upload fails")
	}
	if _, ok := client.uploaded["out/EXP_20240115_093045_0001.sem"]; ok {
		t.Fatal("marker must not be uploaded after a data upload failure")
	}
}

func TestOutboundMarkerUploadFailureLeavesRowsPending(t *testing.T) {
	store := &stubOutboundStore{pending: threePending()}
	client := newStubClient()
	client.uploadErr = map[string]error{
		"out/EXP_20240115_093045_0001.sem": errors.New("upload refused"),
	}
	pipeline, err := NewOutboundPipeline(store, client, testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if _, err := pipeline.Run(context.Background(), runTime); err == nil {
		t.Fatal("expected error")
	}
	if store.markCalls != 0 {
		t.Fatal("rows must stay PENDING when the marker upload fails")
	}
}

func TestOutboundLedgerUpdateFailureSurfaces(t *testing.T) {
	store := &stubOutboundStore{pending: threePending(), markErr: errors.New("db gone")}
	client := newStubClient()
	pipeline, err := NewOutboundPipeline(store, client, testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	_, err = pipeline.Run(context.Background(), runTime)
	if err == nil {
		t.Fatal("expected error when the SENT update fails after upload")
	}
	// The at-least-once gap: both files were already delivered.
	if len(client.uploaded) != 2 {
		t.Fatalf("expected both uploads before the failed update, got %d", len(client.uploaded))
	}
}

func TestOutboundWritesVerifiedLocalFile(t *testing.T) {
	store := &stubOutboundStore{pending: threePending()}
	client := newStubClient()
	cfg := testConfig(t)
	pipeline, err := NewOutboundPipeline(store, client, cfg, nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	result, err := pipeline.Run(context.Background(), runTime)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	info, err := os.Stat(result.Batch.LocalPath)
	if err != nil {
		t.Fatalf("local batch file missing: %v", err)
	}
	if info.Size() == 0 || info.Size() != result.Batch.Bytes {
		t.Fatalf("expected non-empty local file of %d bytes, got %d", result.Batch.Bytes, info.Size())
	}
	markerInfo, err := os.Stat(result.Batch.MarkerPath)
	if err != nil {
		t.Fatalf("local marker file missing: %v", err)
	}
	if markerInfo.Size() != 0 {
		t.Fatal("local marker must be zero bytes")
	}
}
