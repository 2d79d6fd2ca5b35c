package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseCSV reads a comma-separated table with a header row.
// Every numeric column in cols must be present in the header. Cells that are
// empty or fail to parse become NaN so the filter drops them. Lines starting
// with '#' are ignored.
func ParseCSV(r io.Reader, cols Columns) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog is empty: missing header row")
		}
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	var positions [6]int
	for i, name := range cols.numeric() {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("catalog is missing column %q", name)
		}
		positions[i] = pos
	}
	namePos := -1
	if cols.Name != "" {
		if pos, ok := index[cols.Name]; ok {
			namePos = pos
		}
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog line %d: %w", line, err)
		}

		var values [6]float64
		for i, pos := range positions {
			values[i] = parseCell(record, pos)
		}
		row := Row{
			Radius:         values[0],
			RadiusErrUpper: values[1],
			RadiusErrLower: values[2],
			Mass:           values[3],
			MassErrUpper:   values[4],
			MassErrLower:   values[5],
		}
		if namePos >= 0 && namePos < len(record) {
			row.Name = record[namePos]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseCell(record []string, pos int) float64 {
	if pos >= len(record) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[pos]), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// WriteCSV writes rows using the header names in cols.
// NaN values are written as empty cells, matching the archive's CSV output.
func WriteCSV(w io.Writer, rows []Row, cols Columns) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(cols.Select()); err != nil {
		return fmt.Errorf("failed to write catalog header: %w", err)
	}

	for _, row := range rows {
		record := make([]string, 0, 7)
		if cols.Name != "" {
			record = append(record, row.Name)
		}
		for _, v := range row.numeric() {
			record = append(record, formatCell(v))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write catalog row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush catalog: %w", err)
	}
	return nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
