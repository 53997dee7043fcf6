package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"meterlink/internal/exchange/domain"
	"meterlink/internal/exchange/infrastructure/postgres"
)

// ExchangeActivity aggregates one month of exchange activity for the
// operator report: outbound batches sent and inbound readings ledgered.
type ExchangeActivity struct {
	Month    time.Time
	Batches  []postgres.SentBatch
	Readings []domain.ImportedRecord
}

// BuildActivityXLSX renders the monthly exchange activity as a workbook.
func BuildActivityXLSX(activity ExchangeActivity) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	outboundSheet := "outbound"
	inboundSheet := "inbound"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(outboundSheet)
	f.NewSheet(inboundSheet)

	var exportedRecords int
	for _, batch := range activity.Batches {
		exportedRecords += batch.Records
	}

	_ = f.SetCellValue(summarySheet, "A1", "Exchange Activity")
	_ = f.SetCellValue(summarySheet, "A3", "Month")
	_ = f.SetCellValue(summarySheet, "B3", activity.Month.Format("2006-01"))
	_ = f.SetCellValue(summarySheet, "A4", "Batches Sent")
	_ = f.SetCellValue(summarySheet, "B4", len(activity.Batches))
	_ = f.SetCellValue(summarySheet, "A5", "Records Exported")
	_ = f.SetCellValue(summarySheet, "B5", exportedRecords)
	_ = f.SetCellValue(summarySheet, "A6", "Readings Imported")
	_ = f.SetCellValue(summarySheet, "B6", len(activity.Readings))

	_ = f.SetCellValue(outboundSheet, "A1", "File")
	_ = f.SetCellValue(outboundSheet, "B1", "Records")
	_ = f.SetCellValue(outboundSheet, "C1", "Sent At")
	for i, batch := range activity.Batches {
		row := i + 2
		_ = f.SetCellValue(outboundSheet, fmt.Sprintf("A%d", row), batch.FileName)
		_ = f.SetCellValue(outboundSheet, fmt.Sprintf("B%d", row), batch.Records)
		_ = f.SetCellValue(outboundSheet, fmt.Sprintf("C%d", row), batch.SentAt.Format(time.RFC3339))
	}

	_ = f.SetCellValue(inboundSheet, "A1", "Bill Period")
	_ = f.SetCellValue(inboundSheet, "B1", "Account")
	_ = f.SetCellValue(inboundSheet, "C1", "Installation")
	_ = f.SetCellValue(inboundSheet, "D1", "Rate Group")
	_ = f.SetCellValue(inboundSheet, "E1", "Agreement")
	_ = f.SetCellValue(inboundSheet, "F1", "Reading Date")
	_ = f.SetCellValue(inboundSheet, "G1", "Unit Value")
	_ = f.SetCellValue(inboundSheet, "H1", "Source File")
	for i, rec := range activity.Readings {
		row := i + 2
		_ = f.SetCellValue(inboundSheet, fmt.Sprintf("A%d", row), rec.BillPeriod)
		_ = f.SetCellValue(inboundSheet, fmt.Sprintf("B%d", row), rec.Account)
		_ = f.SetCellValue(inboundSheet, fmt.Sprintf("C%d", row), rec.Installation)
		_ = f.SetCellValue(inboundSheet, fmt.Sprintf("D%d", row), rec.RateGroup)
		_ = f.SetCellValue(inboundSheet, fmt.Sprintf("E%d", row), rec.AgreementID)
		_ = f.SetCellValue(inboundSheet, fmt.Sprintf("F%d", row), domain.FormatISODate(rec.ReadingDate))
		_ = f.SetCellValue(inboundSheet, fmt.Sprintf("G%d", row), rec.UnitValue)
		_ = f.SetCellValue(inboundSheet, fmt.Sprintf("H%d", row), rec.SourceFile)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildActivityPDF renders a minimal PDF of the monthly exchange activity.
func BuildActivityPDF(activity ExchangeActivity) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Exchange Activity")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Month: %s", activity.Month.Format("2006-01")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Batches Sent: %d", len(activity.Batches)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings Imported: %d", len(activity.Readings)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 6, "Outbound File", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Records", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Sent At", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, batch := range activity.Batches {
		pdf.CellFormat(90, 6, batch.FileName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", batch.Records), "1", 0, "R", false, 0, "")
		pdf.CellFormat(60, 6, batch.SentAt.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Inbound File", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Installation", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Reading Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Unit Value", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, rec := range activity.Readings {
		pdf.CellFormat(60, 6, rec.SourceFile, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, rec.Installation, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, domain.FormatISODate(rec.ReadingDate), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", rec.UnitValue), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
