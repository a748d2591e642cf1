package llmsynthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"insight-agents/internal/common/llm"
	"insight-agents/internal/common/logger"
)

const (
	TaskType = "llm-synthesis"
)

// Handler turns agent results into natural-language answers.
type Handler struct {
	config  *Config
	gateway llm.Gateway
	logger  logger.Logger
}

func NewHandler(config *Config, gateway llm.Gateway, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		gateway: gateway,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Explain answers the question from one agent's result payload.
func (h *Handler) Explain(ctx context.Context, req ExplainRequest) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a data analyst who explains query results to marketing and SEO teams. You only report what the data shows."},
		{Role: llm.RoleUser, Content: h.buildExplainPrompt(req)},
	}

	text, err := h.gateway.Chat(ctx, messages, h.config.Model, llm.Options{
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("language model returned an empty explanation")
	}

	h.logger.Info("explanation generated", map[string]interface{}{
		"source":      string(req.Source),
		"resultCount": req.ResultCount,
	})
	return text, nil
}

// Aggregate merges the two explanations into one answer. If the model call
// fails the explanations are concatenated under labels, so the result is never
// empty.
func (h *Handler) Aggregate(ctx context.Context, req AggregateRequest) string {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You combine web analytics and SEO audit findings into one answer."},
		{Role: llm.RoleUser, Content: buildAggregatePrompt(req)},
	}

	text, err := h.gateway.Chat(ctx, messages, h.config.Model, llm.Options{
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err == nil && strings.TrimSpace(text) != "" {
		return text
	}

	fields := map[string]interface{}{}
	if err != nil {
		fields["error"] = err.Error()
	}
	h.logger.Warn("aggregation failed, concatenating explanations", fields)
	return Concatenate(req)
}

// Concatenate is the fallback aggregate: both explanations under their labels.
func Concatenate(req AggregateRequest) string {
	return fmt.Sprintf("Analytics:\n%s\n\nSEO:\n%s",
		orPlaceholder(req.AnalyticsExplanation),
		orPlaceholder(req.SEOExplanation))
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return "No explanation available."
	}
	return s
}

func (h *Handler) buildExplainPrompt(req ExplainRequest) string {
	var parts []string

	label, ok := sourceLabels[req.Source]
	if !ok {
		label = string(req.Source)
	}
	limit := wordLimits[req.Source]
	if limit == 0 {
		limit = 200
	}

	parts = append(parts, fmt.Sprintf("User Question: %s", req.Question))
	parts = append(parts, fmt.Sprintf("\nData source: %s", label))
	parts = append(parts, fmt.Sprintf("Result count: %d", req.ResultCount))
	if req.ResultCount == 0 {
		parts = append(parts, "The query returned NO results.")
	}

	parts = append(parts, "\nResult payload (JSON):")
	parts = append(parts, h.payload(req.Data))

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Answer the question directly in the first sentence")
	parts = append(parts, "- Use the exact figures from the payload; do not estimate or invent values")
	parts = append(parts, "- If the result is empty or sparse, say so plainly instead of guessing")
	parts = append(parts, "- Mention notable patterns or outliers only when the data shows them")
	parts = append(parts, fmt.Sprintf("- Keep the answer under %d words", limit))

	return strings.Join(parts, "\n")
}

func (h *Handler) payload(data interface{}) string {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("(payload could not be encoded: %v)", err)
	}
	s := string(raw)
	if h.config.MaxPayloadChars > 0 && len(s) > h.config.MaxPayloadChars {
		cut := h.config.MaxPayloadChars
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "\n... (truncated)"
	}
	return s
}

func buildAggregatePrompt(req AggregateRequest) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("User Question: %s", req.Question))
	parts = append(parts, "\nAnalytics findings:")
	parts = append(parts, orPlaceholder(req.AnalyticsExplanation))
	parts = append(parts, "\nSEO audit findings:")
	parts = append(parts, orPlaceholder(req.SEOExplanation))

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Write one unified answer to the question")
	parts = append(parts, "- Point out where the analytics and SEO findings relate to each other")
	parts = append(parts, "- If either source failed or had no data, say so; do not fill the gap with guesses")
	parts = append(parts, fmt.Sprintf("- Keep the answer under %d words", aggregateWordLimit))

	return strings.Join(parts, "\n")
}
