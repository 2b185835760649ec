package schedule

import (
	"errors"
	"fmt"
	"time"

	appLog "gdqnow/internal/log"
	"gdqnow/internal/model"
)

var (
	// ErrMalformedRow means a row pair did not flatten into exactly seven fields.
	ErrMalformedRow = errors.New("malformed row")
	// ErrInvalidTimestamp means the start time was not an RFC3339 timestamp.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// clockLayout is the HH:MM:SS form used for setup time and run length.
const clockLayout = "15:04:05"

// Discard records why one row pair was rejected. Reason is one of
// ErrMalformedRow or ErrInvalidTimestamp.
type Discard struct {
	Index  int
	Reason error
	Err    error
}

func (d *Discard) Error() string {
	return fmt.Sprintf("pair %d: %v: %v", d.Index, d.Reason, d.Err)
}

func (d *Discard) Unwrap() error { return d.Reason }

// BuildEntry turns one row pair into an Entry. Only a bad field count or
// an unparseable start time reject the pair; bad durations just leave the
// corresponding field nil.
func BuildEntry(p Pair) (model.Entry, error) {
	cells := make([]string, 0, len(p.Primary)+len(p.Secondary))
	cells = append(cells, p.Primary...)
	cells = append(cells, p.Secondary...)

	rec, err := model.NewFieldRecord(cells)
	if err != nil {
		return model.Entry{}, &Discard{Reason: ErrMalformedRow, Err: err}
	}
	return EntryFromRecord(rec)
}

// EntryFromRecord validates an already flattened record.
func EntryFromRecord(rec model.FieldRecord) (model.Entry, error) {
	start, err := time.Parse(time.RFC3339, rec.StartTime)
	if err != nil {
		return model.Entry{}, &Discard{Reason: ErrInvalidTimestamp, Err: err}
	}

	return model.Entry{
		StartTime: start.UTC(),
		Length:    parseClock(rec.Length),
		SetupTime: parseClock(rec.SetupTime),
		Title:     rec.Title,
		Runner:    rec.Runner,
		Category:  rec.Category,
		Host:      rec.Host,
	}, nil
}

// parseClock reads HH:MM:SS as the time elapsed since midnight. Anything
// that does not parse yields nil.
func parseClock(s string) *time.Duration {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return nil
	}
	d := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
	return &d
}

// BuildEntries runs BuildEntry over every pair, keeping the order of the
// pairs. Rejected pairs are returned as discards and never stop the pass.
func BuildEntries(pairs []Pair) ([]model.Entry, []*Discard) {
	entries := make([]model.Entry, 0, len(pairs))
	var discards []*Discard

	for i, p := range pairs {
		e, err := BuildEntry(p)
		if err != nil {
			var d *Discard
			if !errors.As(err, &d) {
				d = &Discard{Reason: ErrMalformedRow, Err: err}
			}
			d.Index = i
			appLog.Debug("schedule: discarding row pair", "index", i, "reason", d.Reason, "detail", d.Err)
			discards = append(discards, d)
			continue
		}
		entries = append(entries, e)
	}

	return entries, discards
}
