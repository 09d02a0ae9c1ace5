package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/nyc311-cli/internal/model"
)

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(ct, boro string) model.Record {
	r := model.Record{}
	if ct != "" {
		r[model.FieldComplaintType] = ct
	}
	if boro != "" {
		r[model.FieldBorough] = boro
	}
	return r
}

func row(boro, metric string, v int64) model.StatRow {
	return model.StatRow{Date: "2024-01-01", Boro: boro, Metric: metric, Value: v}
}

func TestAnalyze_Example(t *testing.T) {
	records := []model.Record{
		rec("A", "BRONX"),
		rec("A", "BRONX"),
		rec("B", "QUEENS"),
	}

	got := Analyze(records, day, 1)

	assert.Equal(t, []model.StatRow{
		row("ALL", "complaints", 3),
		row("ALL", "A", 2),
		row("BRONX", "complaints", 2),
		row("BRONX", "A", 2),
		row("QUEENS", "complaints", 1),
		row("QUEENS", "B", 1),
	}, got)
}

func TestAnalyze_Empty(t *testing.T) {
	assert.Equal(t, []model.StatRow{row("ALL", "complaints", 0)}, Analyze(nil, day, 5))
}

func TestAnalyze_MissingBoroughFormsNonePartition(t *testing.T) {
	records := []model.Record{
		rec("Noise", ""),
		rec("Noise", "MANHATTAN"),
		rec("Heat", "  "),
	}

	got := Analyze(records, day, 5)

	assert.Equal(t, []model.StatRow{
		row("ALL", "complaints", 3),
		row("ALL", "Noise", 2),
		row("ALL", "Heat", 1),
		row("MANHATTAN", "complaints", 1),
		row("MANHATTAN", "Noise", 1),
		row("NONE", "complaints", 2),
		row("NONE", "Noise", 1),
		row("NONE", "Heat", 1),
	}, got)
}

func TestAnalyze_MissingComplaintTypeCountsInTotalOnly(t *testing.T) {
	records := []model.Record{
		rec("", "BROOKLYN"),
		rec("Noise", "BROOKLYN"),
	}

	got := Analyze(records, day, 5)

	assert.Equal(t, []model.StatRow{
		row("ALL", "complaints", 2),
		row("ALL", "Noise", 1),
		row("BROOKLYN", "complaints", 2),
		row("BROOKLYN", "Noise", 1),
	}, got)
}

func TestAnalyze_BoroughsAscending(t *testing.T) {
	records := []model.Record{
		rec("X", "STATEN ISLAND"),
		rec("X", "BRONX"),
		rec("X", "QUEENS"),
		rec("X", "BROOKLYN"),
	}

	var boros []string
	for _, r := range Analyze(records, day, 1) {
		if r.Metric == model.MetricComplaint {
			boros = append(boros, r.Boro)
		}
	}
	assert.Equal(t, []string{"ALL", "BRONX", "BROOKLYN", "QUEENS", "STATEN ISLAND"}, boros)
}

func TestTopN(t *testing.T) {
	records := []model.Record{
		rec("C", ""), rec("B", ""), rec("A", ""),
		rec("B", ""), rec("A", ""), rec("C", ""),
		rec("D", ""),
	}

	tests := []struct {
		name string
		n    int
		want []Count
	}{
		{name: "ties keep first-seen order", n: 3, want: []Count{{"C", 2}, {"B", 2}, {"A", 2}}},
		{name: "truncated", n: 2, want: []Count{{"C", 2}, {"B", 2}}},
		{name: "fewer labels than n", n: 10, want: []Count{{"C", 2}, {"B", 2}, {"A", 2}, {"D", 1}}},
		{name: "zero", n: 0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopN(records, tt.n))
		})
	}
}

func TestTopN_OrdersByCount(t *testing.T) {
	records := []model.Record{rec("rare", ""), rec("common", ""), rec("common", ""), rec("common", "")}
	assert.Equal(t, []Count{{"common", 3}, {"rare", 1}}, TopN(records, 5))
}
