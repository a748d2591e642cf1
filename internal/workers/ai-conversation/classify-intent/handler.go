package classifyintent

import (
	"context"
	"fmt"
	"strings"

	"insight-agents/internal/common/llm"
	"insight-agents/internal/common/logger"
	"insight-agents/internal/models"
)

const (
	TaskType = "classify-intent"
)

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

// Classify decides which agents a question needs. An unrecognised reply goes
// through Fallback; a failed model call is returned as an error.
func (h *Handler) Classify(ctx context.Context, question string, hasPropertyID bool) (models.Intent, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You route analytics questions. Reply with exactly one word."},
		{Role: llm.RoleUser, Content: buildPrompt(question, hasPropertyID)},
	}

	reply, err := h.gateway.Chat(ctx, messages, h.config.Model, llm.Options{
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		h.logger.Error("intent classification failed", map[string]interface{}{
			"error": err.Error(),
		})
		return "", fmt.Errorf("classify intent: %w", err)
	}

	if intent, ok := ParseIntent(reply); ok {
		h.logger.Info("intent classified", map[string]interface{}{
			"intent": string(intent),
		})
		return intent, nil
	}

	intent := Fallback(question, hasPropertyID, h.config.SEOKeywords)
	h.logger.Warn("unrecognised classifier reply, using fallback", map[string]interface{}{
		"reply":  reply,
		"intent": string(intent),
	})
	return intent, nil
}

// ParseIntent normalises a one-word model reply.
func ParseIntent(reply string) (models.Intent, bool) {
	s := strings.ToLower(strings.TrimSpace(reply))
	s = strings.Trim(s, " \t\r\n\"'`.,:;!*")
	intent := models.Intent(s)
	return intent, intent.Valid()
}

// Fallback: a propertyId means analytics; otherwise any SEO keyword in the
// question means seo; otherwise analytics.
func Fallback(question string, hasPropertyID bool, seoKeywords []string) models.Intent {
	if hasPropertyID {
		return models.IntentAnalytics
	}
	q := strings.ToLower(question)
	for _, kw := range seoKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(q, kw) {
			return models.IntentSEO
		}
	}
	return models.IntentAnalytics
}

func buildPrompt(question string, hasPropertyID bool) string {
	var parts []string

	parts = append(parts, "Classify the question into one of: analytics, seo, both.")
	parts = append(parts, "\nRules:")
	parts = append(parts, "- analytics: traffic and behaviour metrics such as users, sessions, page views, bounce rate, conversions, countries, devices or date trends")
	parts = append(parts, "- seo: page-level audit elements such as URLs, titles, meta descriptions, H1s, status codes, redirects, canonicals, indexability or HTTPS")
	parts = append(parts, "- both: the answer needs traffic metrics and audit elements together")
	parts = append(parts, "- if a propertyId is present and the question is about metrics, answer analytics")

	parts = append(parts, fmt.Sprintf("\npropertyId present: %t", hasPropertyID))
	parts = append(parts, fmt.Sprintf("Question: %s", question))
	parts = append(parts, "\nReply with only the single word analytics, seo or both.")

	return strings.Join(parts, "\n")
}
