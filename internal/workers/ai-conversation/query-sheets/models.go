package querysheets

import (
	"insight-agents/internal/common/validation"
	"insight-agents/internal/models"
)

// Plan is the model-inferred set of operations over the loaded table.
type Plan struct {
	Filters []Filter `json:"filters"`
	GroupBy string   `json:"groupBy,omitempty"`
	SortBy  *SortBy  `json:"sortBy,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Filter keeps rows whose Column compares true against Value.
type Filter struct {
	Column   string       `json:"column"`
	Operator string       `json:"operator"`
	Value    models.Value `json:"value"`
}

type SortBy struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

const (
	OpEqual       = "=="
	OpNotEqual    = "!="
	OpGreaterThan = ">"
	OpLessThan    = "<"
	OpContains    = "contains"
)

// Record is a row or a group in an execution result.
type Record interface {
	Get(column string) (models.Value, bool)
}

// Group is one partition produced by Plan.GroupBy.
type Group struct {
	GroupKey string       `json:"groupKey"`
	Count    int          `json:"count"`
	Items    []models.Row `json:"items"`
}

// Get exposes groupKey and count so groups can be sorted.
func (g Group) Get(column string) (models.Value, bool) {
	switch column {
	case "groupKey":
		return models.String(g.GroupKey), true
	case "count":
		return models.Number(float64(g.Count)), true
	}
	return models.Null(), false
}

// ExecutionResult echoes the plan next to the transformed records.
type ExecutionResult struct {
	Plan        Plan     `json:"plan"`
	ResultCount int      `json:"resultCount"`
	Results     []Record `json:"results"`
}

var planSchema = validation.MustCompile(`{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "filters": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["column", "operator", "value"],
        "properties": {
          "column": {"type": "string", "minLength": 1},
          "operator": {"type": "string"},
          "value": {"type": ["string", "number", "boolean", "null"]}
        }
      }
    },
    "groupBy": {"type": ["string", "null"]},
    "sortBy": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "required": ["column"],
      "properties": {
        "column": {"type": "string", "minLength": 1},
        "desc": {"type": "boolean"}
      }
    },
    "limit": {"type": ["integer", "null"], "minimum": 0}
  }
}`)
