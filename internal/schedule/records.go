package schedule

import (
	"encoding/csv"
	"io"
	"strings"

	"gdqnow/internal/model"
)

// WriteRecords writes the header line followed by one pipe-separated line
// per record. Fields containing the separator are quoted.
func WriteRecords(w io.Writer, records []model.FieldRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = '|'

	if err := cw.Write(strings.Split(model.FieldHeader, "|")); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRecords parses the output of WriteRecords. Lines whose field count
// does not match are skipped and counted.
func ReadRecords(r io.Reader) ([]model.FieldRecord, int, error) {
	cr := csv.NewReader(r)
	cr.Comma = '|'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	lines, err := cr.ReadAll()
	if err != nil {
		return nil, 0, err
	}

	var (
		out     []model.FieldRecord
		skipped int
	)
	for i, line := range lines {
		if i == 0 && strings.Join(line, "|") == model.FieldHeader {
			continue
		}
		rec, err := model.NewFieldRecord(line)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}
