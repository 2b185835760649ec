package schedule

import (
	appLog "gdqnow/internal/log"
	"gdqnow/internal/model"
)

// Pair is one schedule run as it appears in the table: a primary row
// (start, title, runner, setup) followed by a secondary row (length,
// category, host).
type Pair struct {
	Primary   model.RawRow
	Secondary model.RawRow
}

// PairRows groups rows two at a time in their original order. A trailing
// row without a partner is dropped.
func PairRows(rows []model.RawRow) []Pair {
	pairs := make([]Pair, 0, len(rows)/2)
	for i := 0; i+1 < len(rows); i += 2 {
		pairs = append(pairs, Pair{Primary: rows[i], Secondary: rows[i+1]})
	}
	if len(rows)%2 == 1 {
		appLog.Debug("schedule: dropping unpaired trailing row", "row_count", len(rows))
	}
	return pairs
}
