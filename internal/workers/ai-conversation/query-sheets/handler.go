package querysheets

import (
	"context"
	"encoding/json"
	"fmt"
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
	TaskType = "query-sheets"
)

// TableLoader loads the first tab of a spreadsheet; the header row names the columns.
type TableLoader interface {
	LoadTable(ctx context.Context, spreadsheetID string) ([]models.Row, error)
}

type Explainer interface {
	Explain(ctx context.Context, req llmsynthesis.ExplainRequest) (string, error)
}

type Handler struct {
	config    *Config
	gateway   llm.Gateway
	loader    TableLoader
	explainer Explainer
	logger    logger.Logger
}

func NewHandler(config *Config, gateway llm.Gateway, loader TableLoader, explainer Explainer, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		gateway:   gateway,
		loader:    loader,
		explainer: explainer,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// ProcessQuery answers question from a spreadsheet, falling back to the
// configured default spreadsheet. Every failure is reported in the result.
func (h *Handler) ProcessQuery(ctx context.Context, question, spreadsheetID string) models.AgentResult {
	id := strings.TrimSpace(spreadsheetID)
	if id == "" {
		id = h.config.DefaultSpreadsheetID
	}
	if id == "" {
		err := apperrors.NewMissingConfigurationError("spreadsheetId", "no spreadsheetId in the request and google.default_spreadsheet_id is not set")
		h.logger.Warn("no spreadsheet to query", nil)
		return failure(err)
	}
	log := h.logger.With(map[string]interface{}{"spreadsheetId": id})

	rows, err := h.loader.LoadTable(ctx, id)
	if err != nil {
		log.Error("table load failed", map[string]interface{}{"error": err.Error()})
		return failure(apperrors.NewExternalFetchError("Google Sheets", err))
	}

	columns := columnsOf(rows)
	plan, err := h.InferPlan(ctx, question, columns, sample(rows, h.config.SampleRows))
	if err != nil {
		metrics.PlanRejections.WithLabelValues(models.AgentSEO, "inference").Inc()
		log.Warn("plan inference failed", map[string]interface{}{"error": err.Error()})
		return failure(err)
	}

	result := ExecuteOperations(rows, *plan)

	explanation, err := h.explainer.Explain(ctx, llmsynthesis.ExplainRequest{
		Question:    question,
		Source:      llmsynthesis.SourceSEO,
		Data:        result,
		ResultCount: result.ResultCount,
	})
	if err != nil {
		log.Error("explanation failed", map[string]interface{}{"error": err.Error()})
		return models.AgentResult{
			Success:     false,
			Data:        result,
			Explanation: fmt.Sprintf("Found %d matching records but could not generate an explanation.", result.ResultCount),
			Error:       err.Error(),
		}
	}

	log.Info("sheets query completed", map[string]interface{}{
		"tableRows":   len(rows),
		"resultCount": result.ResultCount,
		"filters":     len(plan.Filters),
	})
	return models.AgentResult{Success: true, Data: result, Explanation: explanation}
}

// InferPlan asks the model for filter, group, sort and limit operations over
// the discovered columns.
func (h *Handler) InferPlan(ctx context.Context, question string, columns []string, sampleRows []models.Row) (*Plan, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You translate questions about an SEO crawl spreadsheet into table operations. Reply with JSON only."},
		{Role: llm.RoleUser, Content: buildPlanPrompt(question, columns, sampleRows)},
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

// columnsOf returns the union of row columns in first-seen order.
func columnsOf(rows []models.Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for _, c := range r.Columns() {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}

func sample(rows []models.Row, n int) []models.Row {
	if n <= 0 || n > len(rows) {
		n = len(rows)
	}
	return rows[:n]
}

func buildPlanPrompt(question string, columns []string, sampleRows []models.Row) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Available columns: %s", strings.Join(columns, ", ")))
	if raw, err := json.Marshal(sampleRows); err == nil {
		parts = append(parts, fmt.Sprintf("Sample rows: %s", raw))
	}

	parts = append(parts, fmt.Sprintf("\nQuestion: %s", question))

	parts = append(parts, "\nReply with a single JSON object of this shape:")
	parts = append(parts, `{"filters": [{"column": "...", "operator": "==", "value": "..."}], "groupBy": null, "sortBy": {"column": "...", "desc": true}, "limit": null}`)
	parts = append(parts, "\nRules:")
	parts = append(parts, "- operator is one of ==, !=, >, <, contains")
	parts = append(parts, "- > and < compare numbers; contains is a case-insensitive substring match")
	parts = append(parts, "- Use column names exactly as listed")
	parts = append(parts, "- Use null for groupBy, sortBy or limit when not needed; use an empty filters list when nothing is filtered")
	parts = append(parts, "- No explanations, no markdown, JSON only")

	return strings.Join(parts, "\n")
}

func failure(err error) models.AgentResult {
	var explanation string
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeMissingConfiguration:
		explanation = "No spreadsheet was provided and no default spreadsheet is configured."
	case apperrors.ErrCodeExternalFetchFailed:
		explanation = "Loading the SEO audit spreadsheet failed."
	case apperrors.ErrCodePlanInferenceFailed:
		explanation = "I could not turn the question into operations on the spreadsheet."
	case apperrors.ErrCodeGatewayExhausted, apperrors.ErrCodeGatewayRejected:
		explanation = "The language model could not be reached to plan the spreadsheet query."
	default:
		explanation = "The spreadsheet query failed."
	}
	return models.FailedResult(explanation, err.Error())
}
