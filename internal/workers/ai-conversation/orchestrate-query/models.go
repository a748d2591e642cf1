package orchestratequery

import (
	"encoding/json"
	"strings"

	apperrors "insight-agents/internal/common/errors"
	"insight-agents/internal/common/validation"
	"insight-agents/internal/models"
)

// BothData is the response payload for the both intent.
type BothData struct {
	Analytics interface{} `json:"analytics"`
	SEO       interface{} `json:"seo"`
}

var querySchema = validation.MustCompile(`{
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": {"type": "string", "minLength": 1, "pattern": "\\S"},
    "propertyId": {"type": ["string", "null"]},
    "spreadsheetId": {"type": ["string", "null"]}
  }
}`)

// ParseQuery validates and decodes a query payload from an HTTP body or job
// variables. Unrelated keys are ignored.
func ParseQuery(data []byte) (*models.Query, error) {
	res, err := querySchema.ValidateJSON(data)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError("body is not valid JSON")
	}
	if !res.Valid {
		return nil, apperrors.NewInvalidRequestError(res.Error())
	}

	var q models.Query
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}
	q.Query = strings.TrimSpace(q.Query)
	q.PropertyID = strings.TrimSpace(q.PropertyID)
	q.SpreadsheetID = strings.TrimSpace(q.SpreadsheetID)
	return &q, nil
}
