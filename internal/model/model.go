package model

import (
	"fmt"
	"strings"
	"time"
)

// FieldHeader names the seven record fields in their fixed order.
const FieldHeader = "start_time|title|runner|setup_time|length|category|host"

// FieldCount is the number of logical fields in a FieldRecord.
const FieldCount = 7

// RawRow holds the trimmed cell texts of one schedule table row, in
// document order.
type RawRow []string

// FieldRecord is the flattened text form of one primary + secondary row
// pair. Nothing here is parsed yet.
type FieldRecord struct {
	StartTime string
	Title     string
	Runner    string
	SetupTime string
	Length    string
	Category  string
	Host      string
}

// NewFieldRecord maps cells onto the fixed field slots. It fails unless
// exactly FieldCount cells are given.
func NewFieldRecord(cells []string) (FieldRecord, error) {
	if len(cells) != FieldCount {
		return FieldRecord{}, fmt.Errorf("expected %d fields, got %d", FieldCount, len(cells))
	}
	return FieldRecord{
		StartTime: cells[0],
		Title:     cells[1],
		Runner:    cells[2],
		SetupTime: cells[3],
		Length:    cells[4],
		Category:  cells[5],
		Host:      cells[6],
	}, nil
}

// Fields returns the record as an ordered slice matching FieldHeader.
func (r FieldRecord) Fields() []string {
	return []string{r.StartTime, r.Title, r.Runner, r.SetupTime, r.Length, r.Category, r.Host}
}

// String returns the pipe-joined line form of the record.
func (r FieldRecord) String() string {
	return strings.Join(r.Fields(), "|")
}

// Entry is one validated run on the schedule. Entries are built once per
// refresh pass and never mutated afterwards.
type Entry struct {
	// StartTime is always set; entries without a parseable start are dropped.
	StartTime time.Time

	// Length and SetupTime are best-effort; nil means the source text
	// could not be parsed.
	Length    *time.Duration
	SetupTime *time.Duration

	Title    string
	Runner   string
	Category string
	Host     string
}

// Window returns the half-open interval [start, end) during which the entry
// is considered running. A missing length yields a zero-width window.
func (e Entry) Window() (start, end time.Time) {
	var d time.Duration
	if e.Length != nil {
		d = *e.Length
	}
	return e.StartTime, e.StartTime.Add(d)
}

// End is shorthand for the end of Window.
func (e Entry) End() time.Time {
	_, end := e.Window()
	return end
}

// Record converts the entry back to its text form. Free-text fields are
// passed through untouched; absent durations become empty text.
func (e Entry) Record() FieldRecord {
	return FieldRecord{
		StartTime: e.StartTime.Format(time.RFC3339),
		Title:     e.Title,
		Runner:    e.Runner,
		SetupTime: FormatClock(e.SetupTime),
		Length:    FormatClock(e.Length),
		Category:  e.Category,
		Host:      e.Host,
	}
}

// FormatClock renders a duration as HH:MM:SS. nil renders as "".
func FormatClock(d *time.Duration) string {
	if d == nil {
		return ""
	}
	total := int64(*d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
