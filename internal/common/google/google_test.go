package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"insight-agents/internal/common/config"
	"insight-agents/internal/models"
)

func testOptions(server *httptest.Server) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(server.URL + "/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()),
	}
}

func TestAnalyticsClient_RunReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1beta/properties/516821164:runReport"), r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "5", req["limit"])

		orderBys := req["orderBys"].([]interface{})
		first := orderBys[0].(map[string]interface{})
		assert.Equal(t, true, first["desc"])
		assert.Equal(t, "screenPageViews", first["metric"].(map[string]interface{})["metricName"])

		_, _ = w.Write([]byte(`{
		  "dimensionHeaders": [{"name": "pagePath"}],
		  "metricHeaders": [{"name": "screenPageViews", "type": "TYPE_INTEGER"}],
		  "rows": [
		    {"dimensionValues": [{"value": "/"}], "metricValues": [{"value": "1200"}]},
		    {"dimensionValues": [{"value": "/pricing"}], "metricValues": [{"value": "340"}]}
		  ],
		  "rowCount": 2
		}`))
	}))
	defer server.Close()

	client, err := NewAnalyticsClient(context.Background(), testOptions(server)...)
	require.NoError(t, err)

	resp, err := client.RunReport(context.Background(), models.ReportRequest{
		PropertyID: "516821164",
		DateRanges: []models.DateRange{{StartDate: "7daysAgo", EndDate: "today"}},
		Dimensions: []string{"pagePath"},
		Metrics:    []string{"screenPageViews"},
		Limit:      5,
		OrderBys:   []models.ReportOrderBy{{Metric: "screenPageViews", Desc: true}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.RowCount)
	assert.Equal(t, []string{"pagePath"}, resp.DimensionHeaders)
	require.Len(t, resp.Rows, 2)

	views, ok := resp.Rows[0].Get("screenPageViews")
	require.True(t, ok)
	assert.Equal(t, models.KindNumber, views.Kind())
	assert.Equal(t, []string{"pagePath", "screenPageViews"}, resp.Rows[0].Columns())
}

func TestAnalyticsClient_RunReportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"User does not have sufficient permissions"}}`))
	}))
	defer server.Close()

	client, err := NewAnalyticsClient(context.Background(), testOptions(server)...)
	require.NoError(t, err)

	_, err = client.RunReport(context.Background(), models.ReportRequest{PropertyID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sufficient permissions")
}

func TestSheetsClient_LoadTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/values/"):
			assert.Equal(t, "UNFORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
			_, _ = w.Write([]byte(`{
			  "range": "'Internal All'!A1:C4",
			  "values": [
			    ["Address", "Protocol", "Status Code", ""],
			    ["https://example.com/", "https", 200, "x"],
			    ["http://example.com/old", "http", 301],
			    ["https://example.com/blog", "", 404]
			  ]
			}`))
		default:
			_, _ = w.Write([]byte(`{"sheets":[{"properties":{"title":"Internal All"}}]}`))
		}
	}))
	defer server.Close()

	client, err := NewSheetsClient(context.Background(), testOptions(server)...)
	require.NoError(t, err)

	rows, err := client.LoadTable(context.Background(), "sheet-123")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Address", "Protocol", "Status Code", "Column 4"}, rows[0].Columns())

	status, _ := rows[1].Get("Status Code")
	assert.Equal(t, models.KindNumber, status.Kind())

	col4, ok := rows[1].Get("Column 4")
	assert.True(t, ok)
	assert.True(t, col4.IsNull())

	protocol, _ := rows[2].Get("Protocol")
	assert.True(t, protocol.IsNull())
}

func TestRowsFromValues_Empty(t *testing.T) {
	assert.Empty(t, rowsFromValues(nil))
	assert.Empty(t, rowsFromValues([][]interface{}{{"Only", "Header"}}))
}

func TestRowsFromValues_DuplicateHeaders(t *testing.T) {
	rows := rowsFromValues([][]interface{}{
		{"Address", "Title", "Title", "Title (2)", ""},
		{"https://example.com/", "Home", "Accueil", "Start", "x"},
	})
	require.Len(t, rows, 1)

	assert.Equal(t, []string{"Address", "Title", "Title (2)", "Title (2) (2)", "Column 5"}, rows[0].Columns())
	assert.Equal(t, 5, rows[0].Len())

	first, _ := rows[0].Get("Title")
	second, _ := rows[0].Get("Title (2)")
	assert.Equal(t, "Home", first.String())
	assert.Equal(t, "Accueil", second.String())
}

func TestQuoteSheetTitle(t *testing.T) {
	assert.Equal(t, "'Sheet1'", quoteSheetTitle("Sheet1"))
	assert.Equal(t, "'Bob''s audit'", quoteSheetTitle("Bob's audit"))
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, ClientOptions(config.GoogleConfig{}, ""))
	assert.Len(t, ClientOptions(config.GoogleConfig{CredentialsFile: "/tmp/sa.json"}, "", SheetsScope), 2)
	assert.Len(t, ClientOptions(config.GoogleConfig{CredentialsJSON: "{}", CredentialsFile: "/tmp/sa.json"}, "http://localhost/", AnalyticsScope), 3)
}
