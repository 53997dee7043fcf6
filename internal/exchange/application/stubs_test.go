package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meterlink/internal/config"
	"meterlink/internal/exchange/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		DatabaseURL: "postgres://unused",
		FTP: config.FTP{
			Host:            "partner.example.com",
			Port:            21,
			OutboundDir:     "out",
			InboundDir:      "in",
			ProcessedSubdir: "processed",
		},
		Local: config.Local{
			OutboundDir: filepath.Join(dir, "outbound"),
			StagingDir:  filepath.Join(dir, "staging"),
			ArchiveDir:  filepath.Join(dir, "archive"),
		},
		Outbound: config.Outbound{
			FilePrefix:      "EXP",
			DataExtension:   "txt",
			MarkerExtension: "sem",
			NoPeriodOperand: "EABL",
		},
		Inbound: config.Inbound{FilePattern: "MRD_*.txt"},
		Retry:   config.Retry{MaxAttempts: 3},
	}
}

// stubClient records transfer operations in call order and serves remote
// file content from memory.
type stubClient struct {
	ops         []string
	remote      map[string][]byte
	uploaded    map[string][]byte
	moved       map[string]string
	listNames   []string
	listErr     error
	uploadErr   map[string]error
	downloadErr map[string]error
	moveErr     error
	ensureErr   error
}

func newStubClient() *stubClient {
	return &stubClient{
		remote:   map[string][]byte{},
		uploaded: map[string][]byte{},
		moved:    map[string]string{},
	}
}

func (c *stubClient) Upload(_ context.Context, localPath, remotePath string) error {
	c.ops = append(c.ops, "upload "+remotePath)
	if err := c.uploadErr[remotePath]; err != nil {
		return err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	c.uploaded[remotePath] = data
	return nil
}

func (c *stubClient) Download(_ context.Context, remotePath, localPath string) error {
	c.ops = append(c.ops, "download "+remotePath)
	if err := c.downloadErr[remotePath]; err != nil {
		return err
	}
	data, ok := c.remote[remotePath]
	if !ok {
		return fmt.Errorf("stub: no remote file %s", remotePath)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (c *stubClient) List(_ context.Context, remoteDir string) ([]string, error) {
	c.ops = append(c.ops, "list "+remoteDir)
	if c.listErr != nil {
		return nil, c.listErr
	}
	return append([]string(nil), c.listNames...), nil
}

func (c *stubClient) Move(_ context.Context, remoteSrc, remoteDst string) error {
	c.ops = append(c.ops, "move "+remoteSrc)
	if c.moveErr != nil {
		return c.moveErr
	}
	c.moved[remoteSrc] = remoteDst
	return nil
}

func (c *stubClient) EnsureDir(_ context.Context, remoteDir string) error {
	c.ops = append(c.ops, "ensure_dir "+remoteDir)
	return c.ensureErr
}

type stubOutboundStore struct {
	pending    []domain.PendingRecord
	fetchErr   error
	markErr    error
	markCalls  int
	markedFile string
	markedAt   time.Time
}

func (s *stubOutboundStore) FetchPending(_ context.Context, _ string) ([]domain.PendingRecord, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return append([]domain.PendingRecord(nil), s.pending...), nil
}

func (s *stubOutboundStore) MarkSent(_ context.Context, fileName string, sentAt time.Time) (int64, error) {
	s.markCalls++
	if s.markErr != nil {
		return 0, s.markErr
	}
	s.markedFile = fileName
	s.markedAt = sentAt
	return int64(len(s.pending)), nil
}

type stubLedger struct {
	processed map[string]bool
	inserts   map[string][]domain.ImportedRecord
	checkErr  error
	insertErr error
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		processed: map[string]bool{},
		inserts:   map[string][]domain.ImportedRecord{},
	}
}

func (s *stubLedger) SourceFileProcessed(_ context.Context, fileName string) (bool, error) {
	if s.checkErr != nil {
		return false, s.checkErr
	}
	return s.processed[fileName], nil
}

func (s *stubLedger) InsertFileRecords(_ context.Context, fileName string, records []domain.ImportedRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserts[fileName] = append([]domain.ImportedRecord(nil), records...)
	s.processed[fileName] = true
	return nil
}
