// Package export writes report history as JSON, CSV or XLSX.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/harrison/fragility/internal/models"
)

// Format is an export encoding
type Format string

// Supported formats
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format '%s': format must be 'json', 'csv' or 'xlsx'", s)
	}
}

// SheetName is the worksheet holding exported reports
const SheetName = "Reports"

var header = []string{
	"id",
	"run_id",
	"created_at",
	"total_events",
	"fragility_score",
	"fragility_label",
	"skipped_rows",
	"skipped_events",
	"details",
}

// Write encodes records to w
func Write(w io.Writer, format Format, records []models.ReportRecord) error {
	if records == nil {
		records = make([]models.ReportRecord, 0)
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, records)
	case FormatCSV:
		return writeCSV(w, records)
	case FormatXLSX:
		return writeXLSX(w, records)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// Encode returns the encoded records
func Encode(format Format, records []models.ReportRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, format, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(w io.Writer, records []models.ReportRecord) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// row renders one record; an absent score is left blank
func row(r models.ReportRecord) []string {
	score := ""
	if s := r.Score(); s.Valid {
		score = strconv.FormatFloat(s.Value, 'f', 4, 64)
	}
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.RunID,
		r.CreatedAt.UTC().Format(time.RFC3339),
		strconv.FormatInt(r.TotalEvents, 10),
		score,
		string(r.FragilityLabel),
		strconv.Itoa(r.SkippedRows),
		strconv.Itoa(r.SkippedEvents),
		r.Details,
	}
}

func writeCSV(w io.Writer, records []models.ReportRecord) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := csvWriter.Write(row(r)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func writeXLSX(w io.Writer, records []models.ReportRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
	}

	for r, rec := range records {
		values := []any{
			rec.ID,
			rec.RunID,
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.TotalEvents,
			nil,
			string(rec.FragilityLabel),
			rec.SkippedRows,
			rec.SkippedEvents,
			rec.Details,
		}
		if s := rec.Score(); s.Valid {
			values[4] = s.Value
		}

		for c, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
