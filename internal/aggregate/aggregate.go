// Package aggregate turns one day's records into report rows: the day's
// total and top-N complaint types, overall and per borough.
package aggregate

import (
	"sort"
	"time"

	"github.com/sells-group/nyc311-cli/internal/model"
)

// Analyze computes the stat rows for one day. Rows are emitted in this order:
// the ALL total, the ALL top-N, then for each borough (ascending, NONE last)
// its total followed by its top-N. Records without a complaint type count
// toward totals only. topN is not validated here.
func Analyze(records []model.Record, day time.Time, topN int) []model.StatRow {
	date := model.FormatDay(day)

	rows := scopeRows(nil, date, model.BoroAll, records, topN)

	partitions := make(map[string][]model.Record)
	for _, rec := range records {
		boro, ok := rec.Borough()
		if !ok {
			boro = model.BoroNone
		}
		partitions[boro] = append(partitions[boro], rec)
	}

	for _, boro := range boroughOrder(partitions) {
		rows = scopeRows(rows, date, boro, partitions[boro], topN)
	}
	return rows
}

func scopeRows(rows []model.StatRow, date, boro string, records []model.Record, topN int) []model.StatRow {
	rows = append(rows, model.StatRow{
		Date:   date,
		Boro:   boro,
		Metric: model.MetricComplaint,
		Value:  int64(len(records)),
	})
	for _, c := range TopN(records, topN) {
		rows = append(rows, model.StatRow{Date: date, Boro: boro, Metric: c.Label, Value: c.Count})
	}
	return rows
}

// Count is one complaint type and how often it occurred.
type Count struct {
	Label string
	Count int64
}

// TopN returns at most n complaint types by descending count. Equal counts
// keep the order in which each label first appeared in records.
func TopN(records []model.Record, n int) []Count {
	if n <= 0 {
		return nil
	}

	index := make(map[string]int)
	var counts []Count
	for _, rec := range records {
		label, ok := rec.Get(model.FieldComplaintType)
		if !ok {
			continue
		}
		i, seen := index[label]
		if !seen {
			i = len(counts)
			index[label] = i
			counts = append(counts, Count{Label: label})
		}
		counts[i].Count++
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

func boroughOrder(partitions map[string][]model.Record) []string {
	boros := make([]string, 0, len(partitions))
	_, hasNone := partitions[model.BoroNone]
	for b := range partitions {
		if b != model.BoroNone {
			boros = append(boros, b)
		}
	}
	sort.Strings(boros)
	if hasNone {
		boros = append(boros, model.BoroNone)
	}
	return boros
}
