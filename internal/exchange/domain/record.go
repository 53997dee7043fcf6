package domain

import (
	"sort"
	"time"
)

// Outbound row status values in the relational store.
const (
	StatusPending = "PENDING"
	StatusSent    = "SENT"
)

// PendingRecord is an outbound row selected for export. PeriodQualifier is
// required unless Operand is the configured no-period operand, whose
// partner format omits the trailing field.
type PendingRecord struct {
	Installation    string
	Operand         string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	AllocationUnit  string
	PeriodQualifier string
}

// ImportedRecord is one parsed line of a partner-supplied inbound file.
type ImportedRecord struct {
	BillPeriod   string
	Account      string
	Installation string
	RateGroup    string
	AgreementID  string
	ReadingDate  time.Time
	UnitValue    float64
	SourceFile   string
}

// SortForExport orders records per the partner contract: installation
// ascending, the no-period operand before all others within an
// installation, then period start ascending. The ordering is a partner
// contract, not incidental; the store query applies the same order and
// this sort keeps the invariant independent of the store.
func SortForExport(records []PendingRecord, noPeriodOperand string) {
	priority := func(operand string) int {
		if operand == noPeriodOperand {
			return 0
		}
		return 1
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Installation != records[j].Installation {
			return records[i].Installation < records[j].Installation
		}
		pi, pj := priority(records[i].Operand), priority(records[j].Operand)
		if pi != pj {
			return pi < pj
		}
		return records[i].PeriodStart.Before(records[j].PeriodStart)
	})
}

// ExportBatch is the unit of one outbound run.
type ExportBatch struct {
	FileName   string
	MarkerName string
	LocalPath  string
	MarkerPath string
	Records    int
	Bytes      int64
	SentAt     time.Time
}
