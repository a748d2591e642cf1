package orchestratequery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "insight-agents/internal/common/errors"
	"insight-agents/internal/models"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected *models.Query
		wantErr  bool
	}{
		{
			name:     "query only",
			payload:  `{"query":"Which URLs do not use HTTPS?"}`,
			expected: &models.Query{Query: "Which URLs do not use HTTPS?"},
		},
		{
			name:     "all fields trimmed",
			payload:  `{"query":"  Top pages ","propertyId":" 516821164 ","spreadsheetId":"sheet-1"}`,
			expected: &models.Query{Query: "Top pages", PropertyID: "516821164", SpreadsheetID: "sheet-1"},
		},
		{
			name:     "null ids and unrelated keys",
			payload:  `{"query":"q","propertyId":null,"spreadsheetId":null,"user":"ana"}`,
			expected: &models.Query{Query: "q"},
		},
		{name: "missing query", payload: `{"propertyId":"1"}`, wantErr: true},
		{name: "empty query", payload: `{"query":""}`, wantErr: true},
		{name: "whitespace query", payload: `{"query":" \t "}`, wantErr: true},
		{name: "numeric property id", payload: `{"query":"q","propertyId":1}`, wantErr: true},
		{name: "not json", payload: `query=q`, wantErr: true},
		{name: "not an object", payload: `"q"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseQuery([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidRequest))
				assert.Nil(t, q)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, q)
		})
	}
}

func TestBothData_JSONShape(t *testing.T) {
	raw, err := json.Marshal(models.OrchestratorResponse{
		Data:     BothData{Analytics: map[string]int{"rowCount": 1}},
		Metadata: models.Metadata{Intent: models.IntentBoth, AgentsUsed: []string{"analytics", "seo"}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":{"analytics":{"rowCount":1},"seo":null}`)
}
