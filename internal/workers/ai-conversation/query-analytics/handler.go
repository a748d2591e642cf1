package queryanalytics

import (
	"context"
	"fmt"
	"slices"
	"strings"

	apperrors "insight-agents/internal/common/errors"
	"insight-agents/internal/common/llm"
	"insight-agents/internal/common/logger"
	"insight-agents/internal/common/metrics"
	llmsynthesis "insight-agents/internal/workers/ai-conversation/llm-synthesis"
	"insight-agents/internal/models"
	"insight-agents/internal/planning"
)

const (
	TaskType = "query-analytics"
)

// ReportRunner fetches a GA4 report.
type ReportRunner interface {
	RunReport(ctx context.Context, req models.ReportRequest) (*models.ReportResponse, error)
}

type Explainer interface {
	Explain(ctx context.Context, req llmsynthesis.ExplainRequest) (string, error)
}

type Handler struct {
	config    *Config
	gateway   llm.Gateway
	runner    ReportRunner
	allowlist *planning.Allowlist
	explainer Explainer
	logger    logger.Logger
}

func NewHandler(config *Config, gateway llm.Gateway, runner ReportRunner, allowlist *planning.Allowlist, explainer Explainer, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		gateway:   gateway,
		runner:    runner,
		allowlist: allowlist,
		explainer: explainer,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// ProcessQuery answers question from the given GA4 property. Every failure is
// reported in the returned result.
func (h *Handler) ProcessQuery(ctx context.Context, propertyID, question string) models.AgentResult {
	log := h.logger.With(map[string]interface{}{"propertyId": propertyID})

	if strings.TrimSpace(propertyID) == "" {
		err := apperrors.NewMissingConfigurationError("propertyId", "an analytics query needs a GA4 property id")
		return models.FailedResult("No propertyId provided", err.Error())
	}

	plan, err := h.InferPlan(ctx, question)
	if err != nil {
		metrics.PlanRejections.WithLabelValues(models.AgentAnalytics, "inference").Inc()
		log.Warn("plan inference failed", map[string]interface{}{"error": err.Error()})
		return failure(err)
	}

	h.applyDefaults(plan)

	if err := ValidatePlan(plan, h.allowlist); err != nil {
		metrics.PlanRejections.WithLabelValues(models.AgentAnalytics, "validation").Inc()
		log.Warn("plan rejected", map[string]interface{}{"error": err.Error()})
		return failure(err)
	}

	resp, err := h.runner.RunReport(ctx, buildReportRequest(propertyID, plan))
	if err != nil {
		fetchErr := apperrors.NewExternalFetchError("Google Analytics", err)
		log.Error("report fetch failed", map[string]interface{}{"error": err.Error()})
		return failure(fetchErr)
	}

	data := Data{
		Plan:     *plan,
		RowCount: len(resp.Rows),
		Headers:  append(append([]string(nil), resp.DimensionHeaders...), resp.MetricHeaders...),
		Rows:     resp.Rows,
	}

	explanation, err := h.explainer.Explain(ctx, llmsynthesis.ExplainRequest{
		Question:    question,
		Source:      llmsynthesis.SourceAnalytics,
		Data:        data,
		ResultCount: data.RowCount,
	})
	if err != nil {
		log.Error("explanation failed", map[string]interface{}{"error": err.Error()})
		return models.AgentResult{
			Success:     false,
			Data:        data,
			Explanation: fmt.Sprintf("Retrieved %d analytics rows but could not generate an explanation.", data.RowCount),
			Error:       err.Error(),
		}
	}

	log.Info("analytics query completed", map[string]interface{}{
		"rowCount": data.RowCount,
		"metrics":  plan.Metrics,
	})
	return models.AgentResult{Success: true, Data: data, Explanation: explanation}
}

// InferPlan asks the model for a report plan over the allowlisted fields.
func (h *Handler) InferPlan(ctx context.Context, question string) (*Plan, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You translate questions into Google Analytics 4 Data API report requests. Reply with JSON only."},
		{Role: llm.RoleUser, Content: h.buildPlanPrompt(question)},
	}

	reply, err := h.gateway.Chat(ctx, messages, h.config.Model, llm.Options{
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var plan Plan
	if err := planning.Decode(reply, planSchema, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ValidatePlan checks every metric and dimension against the allowlist and
// every order field against the plan's own fields.
func ValidatePlan(plan *Plan, allowlist *planning.Allowlist) error {
	if err := allowlist.CheckMetrics(plan.Metrics); err != nil {
		return err
	}
	if err := allowlist.CheckDimensions(plan.Dimensions); err != nil {
		return err
	}

	requested := append(append([]string(nil), plan.Metrics...), plan.Dimensions...)
	for _, ob := range plan.OrderBys {
		if !slices.Contains(requested, ob.Field) {
			return apperrors.NewValidationError(ob.Field, "orderBy field", requested)
		}
	}
	return nil
}

func (h *Handler) applyDefaults(plan *Plan) {
	if len(plan.DateRanges) == 0 {
		plan.DateRanges = []models.DateRange{{
			StartDate: h.config.DefaultStartDate,
			EndDate:   h.config.DefaultEndDate,
		}}
	}
	if plan.Limit <= 0 {
		plan.Limit = h.config.DefaultLimit
	}
	if plan.Limit > h.config.MaxLimit {
		plan.Limit = h.config.MaxLimit
	}
}

func buildReportRequest(propertyID string, plan *Plan) models.ReportRequest {
	req := models.ReportRequest{
		PropertyID: strings.TrimPrefix(strings.TrimSpace(propertyID), "properties/"),
		DateRanges: plan.DateRanges,
		Dimensions: plan.Dimensions,
		Metrics:    plan.Metrics,
		Limit:      plan.Limit,
	}
	for _, ob := range plan.OrderBys {
		if slices.Contains(plan.Metrics, ob.Field) {
			req.OrderBys = append(req.OrderBys, models.ReportOrderBy{Metric: ob.Field, Desc: ob.Desc})
		} else {
			req.OrderBys = append(req.OrderBys, models.ReportOrderBy{Dimension: ob.Field, Desc: ob.Desc})
		}
	}
	return req
}

func (h *Handler) buildPlanPrompt(question string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Today's date: %s", h.config.Now().Format("2006-01-02")))
	parts = append(parts, fmt.Sprintf("\nAllowed metrics: %s", strings.Join(h.allowlist.Metrics(), ", ")))
	parts = append(parts, fmt.Sprintf("Allowed dimensions: %s", strings.Join(h.allowlist.Dimensions(), ", ")))

	parts = append(parts, fmt.Sprintf("\nQuestion: %s", question))

	parts = append(parts, "\nReply with a single JSON object of this shape:")
	parts = append(parts, `{"metrics": ["..."], "dimensions": ["..."], "dateRanges": [{"startDate": "YYYY-MM-DD or NdaysAgo", "endDate": "YYYY-MM-DD or today"}], "orderBys": [{"field": "...", "desc": true}], "limit": 10}`)
	parts = append(parts, "\nRules:")
	parts = append(parts, "- Use only the allowed metric and dimension names, spelled exactly")
	parts = append(parts, "- orderBys fields must be among the chosen metrics or dimensions")
	parts = append(parts, fmt.Sprintf("- When no period is mentioned use %s to %s", h.config.DefaultStartDate, h.config.DefaultEndDate))
	parts = append(parts, fmt.Sprintf("- limit must not exceed %d", h.config.MaxLimit))
	parts = append(parts, "- No explanations, no markdown, JSON only")

	return strings.Join(parts, "\n")
}

func failure(err error) models.AgentResult {
	var explanation string
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodePlanInferenceFailed:
		explanation = "I could not turn the question into an analytics report request."
	case apperrors.ErrCodePlanValidationFailed:
		explanation = "The question asks for analytics fields that are not available. " + messageOf(err)
	case apperrors.ErrCodeExternalFetchFailed:
		explanation = "Fetching the Google Analytics report failed."
	case apperrors.ErrCodeGatewayExhausted, apperrors.ErrCodeGatewayRejected:
		explanation = "The language model could not be reached to plan the analytics query."
	default:
		explanation = "The analytics query failed."
	}
	return models.FailedResult(explanation, err.Error())
}

func messageOf(err error) string {
	return apperrors.Normalize(err).Message + "."
}
