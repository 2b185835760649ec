package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"gdqnow/internal/model"
)

// ExportOptions controls calendar-level properties of the export.
type ExportOptions struct {
	// Name is shown as the calendar title (X-WR-CALNAME).
	Name string
	// TTL hints subscribers how often to re-poll. Zero leaves it unset.
	TTL time.Duration
	// Stamp is used for DTSTAMP; defaults to time.Now.
	Stamp time.Time
}

// Export renders entries as an iCalendar document with one VEVENT each.
// Entries without a length become zero-duration events.
func Export(entries []model.Entry, opts ExportOptions) string {
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}

	cal := ical.NewCalendarFor("gdqnow")
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.TTL > 0 {
		cal.SetXPublishedTTL(isoDuration(opts.TTL))
	}

	for _, e := range entries {
		start, end := e.Window()

		ev := cal.AddEvent(EntryUID(e))
		ev.SetDtStampTime(opts.Stamp.UTC())
		ev.SetStartAt(start.UTC())
		ev.SetEndAt(end.UTC())
		ev.SetSummary(e.Title)
		if desc := describe(e); desc != "" {
			ev.SetDescription(desc)
		}
		if e.Category != "" {
			ev.AddProperty(ical.ComponentPropertyCategories, e.Category)
		}
	}

	return cal.Serialize()
}

// EntryUID derives a stable UID from the start time and title.
func EntryUID(e model.Entry) string {
	sum := sha256.Sum256([]byte(e.StartTime.UTC().Format(time.RFC3339) + "|" + e.Title))
	return hex.EncodeToString(sum[:8]) + "@gdqnow"
}

func describe(e model.Entry) string {
	var lines []string
	if e.Runner != "" {
		lines = append(lines, "Runner: "+e.Runner)
	}
	if e.Category != "" {
		lines = append(lines, "Category: "+e.Category)
	}
	if e.Host != "" {
		lines = append(lines, "Host: "+e.Host)
	}
	if e.SetupTime != nil {
		lines = append(lines, "Setup: "+model.FormatClock(e.SetupTime))
	}
	return strings.Join(lines, "\n")
}

// isoDuration formats d as an RFC 5545 duration such as PT20M.
func isoDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "PT0S"
	}
	var b strings.Builder
	b.WriteString("PT")
	if h := secs / 3600; h > 0 {
		b.WriteString(strconv.FormatInt(h, 10) + "H")
	}
	if m := (secs % 3600) / 60; m > 0 {
		b.WriteString(strconv.FormatInt(m, 10) + "M")
	}
	if s := secs % 60; s > 0 {
		b.WriteString(strconv.FormatInt(s, 10) + "S")
	}
	return b.String()
}
