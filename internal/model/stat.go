package model

// Scope and metric labels used in StatRow.
const (
	BoroAll         = "ALL"
	BoroNone        = "NONE"
	MetricComplaint = "complaints"
)

// StatRow is one aggregate observation. Metric is either "complaints" (a
// count of all records in scope) or a complaint type label (its count).
type StatRow struct {
	Date   string `json:"date" csv:"date"`
	Boro   string `json:"boro" csv:"boro"`
	Metric string `json:"metric" csv:"metric"`
	Value  int64  `json:"value" csv:"value"`
}
