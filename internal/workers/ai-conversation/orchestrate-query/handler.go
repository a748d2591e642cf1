package orchestratequery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	apperrors "insight-agents/internal/common/errors"
	"insight-agents/internal/common/logger"
	"insight-agents/internal/common/metrics"
	"insight-agents/internal/common/observability"
	"insight-agents/internal/history"
	llmsynthesis "insight-agents/internal/workers/ai-conversation/llm-synthesis"
	"insight-agents/internal/models"
)

const (
	TaskType = "orchestrate-analytics-query"
)

type Classifier interface {
	Classify(ctx context.Context, question string, hasPropertyID bool) (models.Intent, error)
}

type AnalyticsAgent interface {
	ProcessQuery(ctx context.Context, propertyID, question string) models.AgentResult
}

type SheetsAgent interface {
	ProcessQuery(ctx context.Context, question, spreadsheetID string) models.AgentResult
}

type Aggregator interface {
	Aggregate(ctx context.Context, req llmsynthesis.AggregateRequest) string
}

// CommandRetrier sends a zeebe command with retries; *camunda.Client is one.
type CommandRetrier interface {
	ExecuteWithRetry(ctx context.Context, operation string, fn func(context.Context) error) error
}

type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Dependencies are the collaborators of a Handler. History and
// Observability are optional.
type Dependencies struct {
	Classifier    Classifier
	Analytics     AnalyticsAgent
	Sheets        SheetsAgent
	Aggregator    Aggregator
	History       HistoryRecorder
	Observability *observability.Observability
}

type Handler struct {
	config       *Config
	deps         Dependencies
	commands     CommandRetrier
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		deps:         deps,
		errorHandler: apperrors.NewErrorHandler(scoped),
		logger:       scoped,
		now:          time.Now,
	}
}

// ProcessQuery classifies the query, runs one or both agents and builds the
// final response. It always returns a well-formed response; a failed
// classification or a panic anywhere below it yields intent "unknown".
func (h *Handler) ProcessQuery(ctx context.Context, q models.Query) (resp models.OrchestratorResponse) {
	start := h.now()
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = ContextWithRequestID(ctx, requestID)
	}
	log := h.logger.With(map[string]interface{}{"requestId": requestID})

	metrics.QueriesInFlight.Inc()
	defer metrics.QueriesInFlight.Dec()

	ctx, span := h.deps.Observability.StartSpan(ctx, "orchestrator.process_query",
		attribute.String("request.id", requestID))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error("query processing panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			resp = failedResponse(models.IntentUnknown, fmt.Sprintf("internal error: %v", r))
		}
		elapsed := h.now().Sub(start)
		resp.Metadata.ProcessingTimeMs = elapsed.Milliseconds()
		resp.Metadata.RequestID = requestID
		span.SetAttributes(
			attribute.String("query.intent", string(resp.Metadata.Intent)),
			attribute.Bool("query.success", resp.Success),
		)
		h.finish(ctx, q, resp, elapsed, log)
	}()

	hasPropertyID := strings.TrimSpace(q.PropertyID) != ""
	intent, err := h.deps.Classifier.Classify(ctx, q.Query, hasPropertyID)
	if err != nil {
		log.Error("intent classification failed", map[string]interface{}{"error": err.Error()})
		return failedResponse(models.IntentUnknown, err.Error())
	}
	log.Info("query classified", map[string]interface{}{
		"intent":        string(intent),
		"hasPropertyId": hasPropertyID,
	})

	switch intent {
	case models.IntentAnalytics:
		return h.runAnalytics(ctx, q)
	case models.IntentSEO:
		return h.runSEO(ctx, q)
	case models.IntentBoth:
		return h.runBoth(ctx, q)
	default:
		log.Error("classifier returned an unroutable intent", map[string]interface{}{"intent": string(intent)})
		return failedResponse(models.IntentUnknown, fmt.Sprintf("unroutable intent %q", intent))
	}
}

func (h *Handler) runAnalytics(ctx context.Context, q models.Query) models.OrchestratorResponse {
	if strings.TrimSpace(q.PropertyID) == "" {
		return models.OrchestratorResponse{
			Success:  false,
			Response: "This looks like an analytics question, but no propertyId was provided. Add the GA4 property id and try again.",
			Metadata: models.Metadata{Intent: models.IntentAnalytics, AgentsUsed: []string{}},
			Error:    "Missing propertyId",
		}
	}

	res := h.runAgent(ctx, models.AgentAnalytics, func(ctx context.Context) models.AgentResult {
		return h.deps.Analytics.ProcessQuery(ctx, q.PropertyID, q.Query)
	})
	return fromAgent(models.IntentAnalytics, models.AgentAnalytics, res)
}

func (h *Handler) runSEO(ctx context.Context, q models.Query) models.OrchestratorResponse {
	res := h.runAgent(ctx, models.AgentSEO, func(ctx context.Context) models.AgentResult {
		return h.deps.Sheets.ProcessQuery(ctx, q.Query, q.SpreadsheetID)
	})
	return fromAgent(models.IntentSEO, models.AgentSEO, res)
}

// runBoth runs the two agents concurrently. Neither branch can fail or cancel
// the other; success is the AND of both.
func (h *Handler) runBoth(ctx context.Context, q models.Query) models.OrchestratorResponse {
	var analytics, seo models.AgentResult
	var g errgroup.Group

	g.Go(func() error {
		if strings.TrimSpace(q.PropertyID) == "" {
			analytics = models.FailedResult("No propertyId provided", "Missing propertyId")
			return nil
		}
		analytics = h.runAgent(ctx, models.AgentAnalytics, func(ctx context.Context) models.AgentResult {
			return h.deps.Analytics.ProcessQuery(ctx, q.PropertyID, q.Query)
		})
		return nil
	})
	g.Go(func() error {
		seo = h.runAgent(ctx, models.AgentSEO, func(ctx context.Context) models.AgentResult {
			return h.deps.Sheets.ProcessQuery(ctx, q.Query, q.SpreadsheetID)
		})
		return nil
	})
	_ = g.Wait()

	ctx, span := h.deps.Observability.StartSpan(ctx, "orchestrator.aggregate")
	text := h.deps.Aggregator.Aggregate(ctx, llmsynthesis.AggregateRequest{
		Question:             q.Query,
		AnalyticsExplanation: analytics.Explanation,
		SEOExplanation:       seo.Explanation,
	})
	span.End()

	return models.OrchestratorResponse{
		Success:  analytics.Success && seo.Success,
		Response: text,
		Data:     BothData{Analytics: analytics.Data, SEO: seo.Data},
		Metadata: models.Metadata{
			Intent:     models.IntentBoth,
			AgentsUsed: []string{models.AgentAnalytics, models.AgentSEO},
		},
		Error: joinErrors(analytics, seo),
	}
}

// runAgent runs one agent under its own span and converts a panic into a
// failed result, so a panicking branch cannot take down its sibling.
func (h *Handler) runAgent(ctx context.Context, agent string, run func(context.Context) models.AgentResult) (res models.AgentResult) {
	ctx, span := h.deps.Observability.StartSpan(ctx, "agent."+agent, attribute.String("agent", agent))
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("agent panicked", map[string]interface{}{
				"agent": agent,
				"panic": fmt.Sprint(r),
			})
			res = models.FailedResult(fmt.Sprintf("The %s agent failed unexpectedly.", agent), fmt.Sprintf("internal error: %v", r))
		}
		span.SetAttributes(attribute.Bool("agent.success", res.Success))
		span.End()
		metrics.AgentRuns.WithLabelValues(agent, metrics.Status(res.Success)).Inc()
		h.deps.Observability.RecordAgentRun(ctx, agent, res.Success)
	}()
	return run(ctx)
}

func (h *Handler) finish(ctx context.Context, q models.Query, resp models.OrchestratorResponse, elapsed time.Duration, log logger.Logger) {
	intent := string(resp.Metadata.Intent)
	metrics.QueriesTotal.WithLabelValues(intent, metrics.Status(resp.Success)).Inc()
	metrics.QueryDuration.WithLabelValues(intent).Observe(elapsed.Seconds())
	h.deps.Observability.RecordQuery(ctx, intent, resp.Success, elapsed)

	log.Info("query completed", map[string]interface{}{
		"intent":           intent,
		"agentsUsed":       resp.Metadata.AgentsUsed,
		"success":          resp.Success,
		"processingTimeMs": resp.Metadata.ProcessingTimeMs,
	})

	if h.deps.History == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.HistoryTimeout)
	defer cancel()
	err := h.deps.History.Record(hctx, history.Entry{
		RequestID:        resp.Metadata.RequestID,
		Query:            q.Query,
		PropertyID:       q.PropertyID,
		SpreadsheetID:    q.SpreadsheetID,
		Intent:           intent,
		AgentsUsed:       resp.Metadata.AgentsUsed,
		Success:          resp.Success,
		ProcessingTimeMs: resp.Metadata.ProcessingTimeMs,
		Error:            resp.Error,
		CreatedAt:        h.now().UTC(),
	})
	if err != nil {
		log.Warn("failed to record query history", map[string]interface{}{"error": err.Error()})
	}
}

// SetCommandRetrier routes job completions through r. Without one the
// complete command is sent once.
func (h *Handler) SetCommandRetrier(r CommandRetrier) {
	h.commands = r
}

// Handle is the zeebe job handler for TaskType. The job completes with the
// OrchestratorResponse as variables; an invalid payload goes to the error handler.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	q, err := ParseQuery([]byte(job.Variables))
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	resp := h.ProcessQuery(ctx, *q)
	h.completeJob(ctx, client, job, resp)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, resp models.OrchestratorResponse) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(resp)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	send := func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	}
	if h.commands != nil {
		err = h.commands.ExecuteWithRetry(ctx, "complete job", send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func fromAgent(intent models.Intent, agent string, res models.AgentResult) models.OrchestratorResponse {
	return models.OrchestratorResponse{
		Success:  res.Success,
		Response: res.Explanation,
		Data:     res.Data,
		Metadata: models.Metadata{Intent: intent, AgentsUsed: []string{agent}},
		Error:    res.Error,
	}
}

func failedResponse(intent models.Intent, errMsg string) models.OrchestratorResponse {
	return models.OrchestratorResponse{
		Success:  false,
		Response: "Sorry, something went wrong while processing your question. Please try again.",
		Metadata: models.Metadata{Intent: intent, AgentsUsed: []string{}},
		Error:    errMsg,
	}
}

func joinErrors(analytics, seo models.AgentResult) string {
	var parts []string
	if analytics.Error != "" {
		parts = append(parts, "analytics: "+analytics.Error)
	}
	if seo.Error != "" {
		parts = append(parts, "seo: "+seo.Error)
	}
	return strings.Join(parts, "; ")
}
