package queryanalytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "insight-agents/internal/common/errors"
	"insight-agents/internal/common/llm/llmtest"
	"insight-agents/internal/common/logger"
	llmsynthesis "insight-agents/internal/workers/ai-conversation/llm-synthesis"
	"insight-agents/internal/models"
)

// ==========================
// Test doubles
// ==========================

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) RunReport(ctx context.Context, req models.ReportRequest) (*models.ReportResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.ReportResponse)
	return resp, args.Error(1)
}

type failingExplainer struct{}

func (failingExplainer) Explain(context.Context, llmsynthesis.ExplainRequest) (string, error) {
	return "", errors.New("explain exhausted")
}

func createTestConfig() *Config {
	return &Config{
		Model:            "gpt-4o-mini",
		Temperature:      0.2,
		DefaultLimit:     10,
		MaxLimit:         100,
		DefaultStartDate: "7daysAgo",
		DefaultEndDate:   "today",
		Now:              func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) },
	}
}

func newTestHandler(t *testing.T, planReply string, runner ReportRunner) *Handler {
	log := logger.NewTestLogger(t)
	explainer := llmsynthesis.NewHandler(&llmsynthesis.Config{Model: "gpt-4o-mini", Temperature: 0.3}, llmtest.Reply("The homepage leads with 1,200 views."), log)
	return NewHandler(createTestConfig(), llmtest.Reply(planReply), runner, DefaultAllowlist(), explainer, log)
}

func topPagesResponse(n int) *models.ReportResponse {
	paths := []string{"/", "/pricing", "/blog", "/docs", "/about", "/contact"}
	resp := &models.ReportResponse{
		DimensionHeaders: []string{"pagePath"},
		MetricHeaders:    []string{"screenPageViews"},
		RowCount:         n,
	}
	for i := 0; i < n; i++ {
		resp.Rows = append(resp.Rows, models.NewRow(
			[]string{"pagePath", "screenPageViews"},
			[]models.Value{models.String(paths[i]), models.Number(float64(1200 - i*100))},
		))
	}
	return resp
}

const topPagesPlan = "```json\n" + `{"metrics":["screenPageViews"],"dimensions":["pagePath"],"dateRanges":[{"startDate":"7daysAgo","endDate":"today"}],"orderBys":[{"field":"screenPageViews","desc":true}],"limit":5}` + "\n```"

// ==========================
// Success path
// ==========================

func TestProcessQuery_TopPages(t *testing.T) {
	runner := &mockRunner{}
	runner.On("RunReport", mock.Anything, mock.MatchedBy(func(req models.ReportRequest) bool {
		return req.PropertyID == "516821164" &&
			req.Limit == 5 &&
			len(req.OrderBys) == 1 &&
			req.OrderBys[0].Metric == "screenPageViews" &&
			req.OrderBys[0].Desc
	})).Return(topPagesResponse(5), nil).Once()

	h := newTestHandler(t, topPagesPlan, runner)
	result := h.ProcessQuery(context.Background(), "516821164", "Top 5 pages by page views in the last 7 days")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "The homepage leads with 1,200 views.", result.Explanation)
	assert.Empty(t, result.Error)

	data, ok := result.Data.(Data)
	require.True(t, ok)
	assert.Equal(t, 5, data.RowCount)
	assert.Len(t, data.Rows, 5)
	assert.Equal(t, []string{"pagePath", "screenPageViews"}, data.Headers)
	assert.Equal(t, []string{"screenPageViews"}, data.Plan.Metrics)

	runner.AssertExpectations(t)
}

func TestProcessQuery_AppliesDefaults(t *testing.T) {
	tests := []struct {
		name          string
		plan          string
		expectedLimit int
	}{
		{name: "no limit", plan: `{"metrics":["sessions"],"dimensions":["country"]}`, expectedLimit: 10},
		{name: "limit above cap", plan: `{"metrics":["sessions"],"limit":500}`, expectedLimit: 100},
		{name: "explicit limit", plan: `{"metrics":["sessions"],"limit":25}`, expectedLimit: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			runner.On("RunReport", mock.Anything, mock.MatchedBy(func(req models.ReportRequest) bool {
				return req.Limit == tt.expectedLimit &&
					len(req.DateRanges) == 1 &&
					req.DateRanges[0] == models.DateRange{StartDate: "7daysAgo", EndDate: "today"}
			})).Return(&models.ReportResponse{}, nil).Once()

			h := newTestHandler(t, tt.plan, runner)
			result := h.ProcessQuery(context.Background(), "123", "Sessions by country")

			assert.True(t, result.Success, result.Error)
			runner.AssertExpectations(t)
		})
	}
}

func TestProcessQuery_StripsPropertyPrefix(t *testing.T) {
	runner := &mockRunner{}
	runner.On("RunReport", mock.Anything, mock.MatchedBy(func(req models.ReportRequest) bool {
		return req.PropertyID == "42"
	})).Return(&models.ReportResponse{}, nil).Once()

	h := newTestHandler(t, `{"metrics":["activeUsers"]}`, runner)
	result := h.ProcessQuery(context.Background(), " properties/42 ", "Active users")

	assert.True(t, result.Success)
	runner.AssertExpectations(t)
}

// ==========================
// Validation never reaches fetch
// ==========================

func TestProcessQuery_InvalidPlanNeverFetches(t *testing.T) {
	tests := []struct {
		name        string
		plan        string
		code        apperrors.ErrorCode
		errContains string
	}{
		{
			name:        "unknown metric",
			plan:        `{"metrics":["pageViews"],"dimensions":["pagePath"]}`,
			code:        apperrors.ErrCodePlanValidationFailed,
			errContains: "Invalid metric: pageViews",
		},
		{
			name:        "unknown dimension",
			plan:        `{"metrics":["sessions"],"dimensions":["userEmail"]}`,
			code:        apperrors.ErrCodePlanValidationFailed,
			errContains: "Invalid dimension: userEmail",
		},
		{
			name:        "order field not requested",
			plan:        `{"metrics":["sessions"],"orderBys":[{"field":"bounceRate","desc":true}]}`,
			code:        apperrors.ErrCodePlanValidationFailed,
			errContains: "Invalid orderBy field: bounceRate",
		},
		{
			name:        "no json in reply",
			plan:        "Sure, I can help with that.",
			code:        apperrors.ErrCodePlanInferenceFailed,
			errContains: "Could not infer a query plan",
		},
		{
			name:        "unexpected field",
			plan:        `{"metrics":["sessions"],"filter":"country == 'US'"}`,
			code:        apperrors.ErrCodePlanInferenceFailed,
			errContains: "expected shape",
		},
		{
			name:        "wrong type",
			plan:        `{"metrics":"sessions"}`,
			code:        apperrors.ErrCodePlanInferenceFailed,
			errContains: "expected shape",
		},
		{
			name:        "empty metrics",
			plan:        `{"metrics":[]}`,
			code:        apperrors.ErrCodePlanInferenceFailed,
			errContains: "expected shape",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			h := newTestHandler(t, tt.plan, runner)

			result := h.ProcessQuery(context.Background(), "516821164", "question")

			assert.False(t, result.Success)
			assert.Contains(t, result.Error, tt.errContains)
			assert.NotEmpty(t, result.Explanation)
			assert.Nil(t, result.Data)
			runner.AssertNumberOfCalls(t, "RunReport", 0)
		})
	}
}

func TestValidatePlan(t *testing.T) {
	allow := DefaultAllowlist()

	err := ValidatePlan(&Plan{Metrics: []string{"sessions", "bogus"}}, allow)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodePlanValidationFailed))
	assert.Contains(t, err.Error(), "allowed metrics: activeUsers")

	assert.NoError(t, ValidatePlan(&Plan{
		Metrics:    []string{"sessions"},
		Dimensions: []string{"date"},
		OrderBys:   []OrderBy{{Field: "date"}},
	}, allow))
}

// ==========================
// Failure conversion
// ==========================

func TestProcessQuery_FetchError(t *testing.T) {
	runner := &mockRunner{}
	runner.On("RunReport", mock.Anything, mock.Anything).Return(nil, errors.New("403 permission denied")).Once()

	h := newTestHandler(t, `{"metrics":["sessions"]}`, runner)
	result := h.ProcessQuery(context.Background(), "1", "Sessions")

	assert.False(t, result.Success)
	assert.Equal(t, "Fetching the Google Analytics report failed.", result.Explanation)
	assert.Contains(t, result.Error, "Failed to fetch data from Google Analytics")
	assert.Contains(t, result.Error, "403 permission denied")
}

func TestProcessQuery_GatewayFailure(t *testing.T) {
	runner := &mockRunner{}
	log := logger.NewTestLogger(t)
	explainer := llmsynthesis.NewHandler(&llmsynthesis.Config{}, llmtest.Reply("unused"), log)
	gwErr := apperrors.NewGatewayExhaustedError(3, errors.New("status 429"))
	h := NewHandler(createTestConfig(), llmtest.Fail(gwErr), runner, DefaultAllowlist(), explainer, log)

	result := h.ProcessQuery(context.Background(), "1", "Sessions")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed after 3 attempts")
	runner.AssertNumberOfCalls(t, "RunReport", 0)
}

func TestProcessQuery_MissingPropertyID(t *testing.T) {
	runner := &mockRunner{}
	h := newTestHandler(t, `{"metrics":["sessions"]}`, runner)

	result := h.ProcessQuery(context.Background(), "  ", "Sessions")

	assert.False(t, result.Success)
	assert.Equal(t, "No propertyId provided", result.Explanation)
	runner.AssertNumberOfCalls(t, "RunReport", 0)
}

func TestProcessQuery_ExplanationFailureKeepsData(t *testing.T) {
	runner := &mockRunner{}
	runner.On("RunReport", mock.Anything, mock.Anything).Return(topPagesResponse(2), nil).Once()

	log := logger.NewTestLogger(t)
	h := NewHandler(createTestConfig(), llmtest.Reply(`{"metrics":["screenPageViews"],"dimensions":["pagePath"]}`), runner, DefaultAllowlist(), failingExplainer{}, log)

	result := h.ProcessQuery(context.Background(), "1", "Top pages")

	assert.False(t, result.Success)
	assert.Equal(t, "explain exhausted", result.Error)
	assert.Contains(t, result.Explanation, "Retrieved 2 analytics rows")
	data, ok := result.Data.(Data)
	require.True(t, ok)
	assert.Equal(t, 2, data.RowCount)
}

func TestBuildPlanPrompt(t *testing.T) {
	h := newTestHandler(t, "", &mockRunner{})
	prompt := h.buildPlanPrompt("Top pages")

	assert.Contains(t, prompt, "Today's date: 2025-03-14")
	assert.Contains(t, prompt, "screenPageViews")
	assert.Contains(t, prompt, "sessionDefaultChannelGroup")
	assert.Contains(t, prompt, "Question: Top pages")
	assert.Contains(t, prompt, "limit must not exceed 100")
}
