package queryanalytics

import (
	"insight-agents/internal/common/validation"
	"insight-agents/internal/models"
	"insight-agents/internal/planning"
)

// Plan is the model-inferred report request.
type Plan struct {
	Metrics    []string           `json:"metrics"`
	Dimensions []string           `json:"dimensions"`
	DateRanges []models.DateRange `json:"dateRanges"`
	OrderBys   []OrderBy          `json:"orderBys"`
	Limit      int                `json:"limit"`
}

type OrderBy struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// Data is the payload of a successful analytics AgentResult.
type Data struct {
	Plan     Plan         `json:"plan"`
	RowCount int          `json:"rowCount"`
	Headers  []string     `json:"headers"`
	Rows     []models.Row `json:"rows"`
}

var planSchema = validation.MustCompile(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["metrics"],
  "properties": {
    "metrics": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "dimensions": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "dateRanges": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["startDate", "endDate"],
        "properties": {
          "startDate": {"type": "string", "minLength": 1},
          "endDate": {"type": "string", "minLength": 1}
        }
      }
    },
    "orderBys": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["field"],
        "properties": {
          "field": {"type": "string", "minLength": 1},
          "desc": {"type": "boolean"}
        }
      }
    },
    "limit": {"type": "integer", "minimum": 0}
  }
}`)

// DefaultMetrics and DefaultDimensions are the GA4 API names the agent may request.
var (
	DefaultMetrics = []string{
		"activeUsers", "newUsers", "totalUsers", "sessions", "engagedSessions",
		"screenPageViews", "screenPageViewsPerSession", "sessionsPerUser",
		"bounceRate", "engagementRate", "averageSessionDuration",
		"userEngagementDuration", "eventCount", "conversions", "totalRevenue",
	}
	DefaultDimensions = []string{
		"date", "pagePath", "pageTitle", "landingPage", "hostName",
		"country", "city", "language", "deviceCategory", "browser", "operatingSystem",
		"sessionSource", "sessionMedium", "sessionDefaultChannelGroup", "eventName",
	}
)

func DefaultAllowlist() *planning.Allowlist {
	return planning.NewAllowlist(DefaultMetrics, DefaultDimensions)
}
