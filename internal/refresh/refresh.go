// Package refresh runs one fetch, parse, select and render pass.
package refresh

import (
	"context"
	"errors"
	"time"

	appLog "gdqnow/internal/log"
	"gdqnow/internal/model"
	"gdqnow/internal/render"
	"gdqnow/internal/schedule"
	"gdqnow/internal/source"
)

// RowQuerier extracts the schedule table rows from a document.
type RowQuerier interface {
	Rows(doc string) ([]model.RawRow, error)
}

// Failure classifies why a pass ended with the error label.
type Failure string

const (
	FailureNone      Failure = ""
	FailureFetch     Failure = "fetch"
	FailureDocument  Failure = "document"
	FailureNoCurrent Failure = "no_current_event"
)

// Result is everything one pass produced. It is a plain value; nothing
// is carried over to the next pass.
type Result struct {
	At      time.Time
	Label   render.Label
	Failure Failure
	Err     error

	// Current is nil whenever Failure is set.
	Current *model.Entry
	Next    *model.Entry
	// Entries is the sorted entry list of this pass.
	Entries  []model.Entry
	Discards []*schedule.Discard
}

// OK reports whether the pass selected a current entry.
func (r Result) OK() bool { return r.Failure == FailureNone }

// Refresher wires the collaborators for the refresh pass.
type Refresher struct {
	fetcher  source.Fetcher
	rows     RowQuerier
	renderer *render.Renderer
	interval time.Duration
}

func New(fetcher source.Fetcher, rows RowQuerier, renderer *render.Renderer, interval time.Duration) *Refresher {
	return &Refresher{
		fetcher:  fetcher,
		rows:     rows,
		renderer: renderer,
		interval: interval,
	}
}

// Interval is the delay before the next pass. It does not change between
// passes.
func (r *Refresher) Interval() time.Duration { return r.interval }

// Refresh runs one pass relative to now and returns its result together
// with the interval to wait before the next pass. Every failure ends in
// the error label; none of them is returned as an error.
func (r *Refresher) Refresh(ctx context.Context, now time.Time) (Result, time.Duration) {
	res := Result{At: now}

	rows, failure, err := r.loadRows(ctx)
	if err != nil {
		return r.fail(res, failure, err), r.interval
	}

	entries, discards := schedule.BuildEntries(schedule.PairRows(rows))
	res.Discards = discards
	if len(discards) > 0 {
		appLog.Info("refresh: discarded malformed rows", "discarded", len(discards), "kept", len(entries))
	}

	sel, err := schedule.Select(entries, now)
	res.Entries = sel.Entries
	if err != nil {
		return r.fail(res, FailureNoCurrent, err), r.interval
	}

	current := sel.Current
	res.Current = &current
	res.Next = sel.Next
	res.Label = r.renderer.Render(current, sel.Next, now)

	appLog.Debug("refresh: selection done",
		"current", current.Title,
		"label", res.Label.Text,
		"entries", len(sel.Entries),
	)
	return res, r.interval
}

// Records fetches the page and returns the flattened field records in
// document order. Pairs with the wrong number of cells are reported as
// discards. Used for dumping what the parser sees.
func (r *Refresher) Records(ctx context.Context) ([]model.FieldRecord, []*schedule.Discard, error) {
	rows, _, err := r.loadRows(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		records  []model.FieldRecord
		discards []*schedule.Discard
	)
	for i, p := range schedule.PairRows(rows) {
		cells := append(append([]string{}, p.Primary...), p.Secondary...)
		rec, err := model.NewFieldRecord(cells)
		if err != nil {
			discards = append(discards, &schedule.Discard{Index: i, Reason: schedule.ErrMalformedRow, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, discards, nil
}

func (r *Refresher) loadRows(ctx context.Context) ([]model.RawRow, Failure, error) {
	doc, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, FailureFetch, err
	}
	rows, err := r.rows.Rows(doc)
	if err != nil {
		return nil, FailureDocument, err
	}
	return rows, FailureNone, nil
}

func (r *Refresher) fail(res Result, failure Failure, err error) Result {
	res.Failure = failure
	res.Err = err
	res.Label = r.renderer.Error()

	if errors.Is(err, schedule.ErrNoCurrentEvent) {
		appLog.Warn("refresh: no current event", "entries", len(res.Entries))
	} else {
		appLog.Error("refresh failed", err, "failure", string(failure))
	}
	return res
}
