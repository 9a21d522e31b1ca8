package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ============================================================================
// CSV LOADER — Parses CSV bytes into a typed Dataset
// ============================================================================
// The surrounding application reads the CSV from wherever it lives (file,
// object store, upload). This loader converts the raw bytes into a Dataset,
// inferring per-column types from a bounded sample of rows.
// ============================================================================

// ErrEmptyDataset reports CSV input with no header or no data rows.
var ErrEmptyDataset = errors.New("dataset is empty or unreadable")

// inferSampleSize bounds how many rows type inference inspects.
const inferSampleSize = 1000

// LoadCSV parses CSV bytes into a Dataset with inferred column types.
func LoadCSV(data []byte) (*Dataset, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: no header row", ErrEmptyDataset)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrEmptyDataset)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrEmptyDataset)
	}

	cols := make([]Column, len(headers))
	sample := rows
	if len(sample) > inferSampleSize {
		sample = sample[:inferSampleSize]
	}
	for i, h := range headers {
		values := make([]string, 0, len(sample))
		for _, row := range sample {
			if i < len(row) {
				values = append(values, row[i])
			}
		}
		cols[i] = Column{Name: strings.TrimSpace(h), Type: InferType(values)}
	}

	return New(cols, rows), nil
}
