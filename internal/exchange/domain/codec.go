package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// partnerDateLayout is the partner's day.month.year date format, used on
// both wire directions.
const partnerDateLayout = "02.01.2006"

// minInboundFields is the partner contract for inbound lines.
const minInboundFields = 7

// ParseError reports a malformed inbound line. It fails the whole
// containing file: the partner numbers files, not lines, so partial-file
// ingestion is never acceptable.
type ParseError struct {
	File   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s line %d: %s", e.File, e.Line, e.Reason)
}

// EncodeLine renders one outbound record in the partner's tab-delimited
// format. The period qualifier is appended only when the operand is not
// the no-period operand; the conditional arity is a partner-format
// requirement.
func EncodeLine(rec PendingRecord, noPeriodOperand string) string {
	fields := []string{
		rec.Installation,
		rec.Operand,
		rec.PeriodStart.Format(partnerDateLayout),
		rec.PeriodEnd.Format(partnerDateLayout),
		rec.AllocationUnit,
	}
	if rec.Operand != noPeriodOperand {
		fields = append(fields, rec.PeriodQualifier)
	}
	return strings.Join(fields, "\t")
}

// DecodeLine parses one inbound line into an ImportedRecord. file and
// lineNo identify the source for error reporting.
func DecodeLine(file string, lineNo int, text string) (ImportedRecord, error) {
	fields := strings.Split(text, "\t")
	if len(fields) < minInboundFields {
		return ImportedRecord{}, &ParseError{
			File:   file,
			Line:   lineNo,
			Reason: fmt.Sprintf("expected at least %d tab-separated fields, got %d", minInboundFields, len(fields)),
		}
	}

	readingDate, err := ParsePartnerDate(fields[5])
	if err != nil {
		return ImportedRecord{}, &ParseError{
			File:   file,
			Line:   lineNo,
			Reason: fmt.Sprintf("reading date %q does not match DD.MM.YYYY", fields[5]),
		}
	}

	unitValue, err := strconv.ParseFloat(strings.TrimSpace(fields[6]), 64)
	if err != nil {
		return ImportedRecord{}, &ParseError{
			File:   file,
			Line:   lineNo,
			Reason: fmt.Sprintf("unit value %q is not numeric", fields[6]),
		}
	}

	return ImportedRecord{
		BillPeriod:   fields[0],
		Account:      fields[1],
		Installation: fields[2],
		RateGroup:    fields[3],
		AgreementID:  fields[4],
		ReadingDate:  readingDate,
		UnitValue:    unitValue,
		SourceFile:   file,
	}, nil
}

// DecodeFile parses every non-empty line of an inbound file body. Any
// malformed line fails the whole file.
func DecodeFile(file, body string) ([]ImportedRecord, error) {
	var records []ImportedRecord
	for i, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		rec, err := DecodeLine(file, i+1, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParsePartnerDate converts a DD.MM.YYYY partner date into a UTC time.
func ParsePartnerDate(value string) (time.Time, error) {
	t, err := time.Parse(partnerDateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatISODate renders a date in ISO YYYY-MM-DD form.
func FormatISODate(value time.Time) string {
	return value.UTC().Format("2006-01-02")
}
