package model

import (
	"encoding/json"
	"strings"
)

// Upstream field names used by the aggregation.
const (
	FieldCreatedDate   = "created_date"
	FieldComplaintType = "complaint_type"
	FieldBorough       = "borough"
)

// Record is one service request, flattened from the upstream JSON object.
// Absent and null fields have no key.
type Record map[string]string

// RecordFromJSON flattens a decoded JSON object into a Record. Strings are
// kept verbatim, null values are dropped, and anything else keeps its JSON
// encoding.
func RecordFromJSON(obj map[string]any) Record {
	rec := make(Record, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			rec[k] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			rec[k] = string(b)
		}
	}
	return rec
}

// Get returns the value of a field and whether it is present and non-empty.
func (r Record) Get(field string) (string, bool) {
	v, ok := r[field]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// ComplaintType returns the complaint type label, or "" if absent.
func (r Record) ComplaintType() string {
	v, _ := r.Get(FieldComplaintType)
	return v
}

// Borough returns the borough label and whether the record has one.
func (r Record) Borough() (string, bool) {
	return r.Get(FieldBorough)
}

// CreatedDate returns the raw creation timestamp, or "" if absent.
func (r Record) CreatedDate() string {
	v, _ := r.Get(FieldCreatedDate)
	return v
}
