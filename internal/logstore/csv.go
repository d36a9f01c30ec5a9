package logstore

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/mokumoku-dev/vctracker/internal/attendance"
)

// utf8BOM prefixes uploaded logs so spreadsheet tools detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvColumns is the fixed log schema. Order matters for rendering.
var csvColumns = []string{
	attendance.FieldTimestamp,
	attendance.FieldUserID,
	attendance.FieldUserName,
}

// parseRows decodes a raw CSV log into header-keyed rows. The first line is
// the header; rows whose field count does not match the header are dropped
// rather than failing the whole log.
func parseRows(data []byte) ([]attendance.RawRow, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	lines, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv log: %w", err)
	}

	if len(lines) == 0 {
		return nil, nil
	}

	header := lines[0]

	rows := make([]attendance.RawRow, 0, len(lines)-1)

	for _, line := range lines[1:] {
		if len(line) != len(header) {
			continue
		}

		row := make(attendance.RawRow, len(header))
		for i, column := range header {
			row[strings.TrimSpace(column)] = line[i]
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// renderRows encodes rows back into the fixed-schema CSV form with a BOM.
func renderRows(rows []attendance.RawRow) ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(utf8BOM)

	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvColumns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(csvColumns))

	for _, row := range rows {
		for i, column := range csvColumns {
			record[i] = row[column]
		}

		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return buf.Bytes(), nil
}

// mergeSameDay appends the incoming rows to the existing log, keeping only
// the first observation per user for the given date. Returns the merged log
// and how many rows were appended.
func mergeSameDay(existing, incoming []attendance.RawRow, date string) ([]attendance.RawRow, int) {
	seen := make(map[string]struct{})

	for _, row := range existing {
		// Compare the date token exactly: with unpadded dates a prefix
		// match would let "2025/1/2" claim "2025/1/20" rows too.
		rowDate, _, _ := strings.Cut(row[attendance.FieldTimestamp], " ")
		if rowDate == date {
			seen[row[attendance.FieldUserID]] = struct{}{}
		}
	}

	merged := existing
	added := 0

	for _, row := range incoming {
		userID := row[attendance.FieldUserID]
		if _, ok := seen[userID]; ok {
			continue
		}

		seen[userID] = struct{}{}

		merged = append(merged, row)
		added++
	}

	return merged, added
}
