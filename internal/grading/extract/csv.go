package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

const (
	csvMaxSampleRows = 5
	csvMaxReadBytes  = 8 << 20
)

// csvSummary turns CSV bytes into a bounded description: row/column counts,
// the header line, and at most csvMaxSampleRows data rows. The full file is
// never returned — unbounded spreadsheets would blow out the prompt.
func csvSummary(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > csvMaxReadBytes {
		data = data[:csvMaxReadBytes]
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return ""
	}

	var samples [][]string
	dataRows := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed tail; summarize what parsed cleanly.
			break
		}
		dataRows++
		if len(samples) < csvMaxSampleRows {
			samples = append(samples, rec)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CSV data summary: %d data rows, %d columns.\n", dataRows, len(header))
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(header, ", "))
	if len(samples) > 0 {
		fmt.Fprintf(&b, "First %d rows:\n", len(samples))
		for _, rec := range samples {
			fmt.Fprintf(&b, "  %s\n", strings.Join(rec, ", "))
		}
	}
	if dataRows > len(samples) {
		fmt.Fprintf(&b, "(%d additional rows not shown)\n", dataRows-len(samples))
	}
	return strings.TrimRight(b.String(), "\n")
}
