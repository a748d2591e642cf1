package models

// Query is an inbound natural-language question with optional data-source ids.
type Query struct {
	Query         string `json:"query"`
	PropertyID    string `json:"propertyId,omitempty"`
	SpreadsheetID string `json:"spreadsheetId,omitempty"`
}

// Intent is the routing decision for a query.
type Intent string

const (
	IntentAnalytics Intent = "analytics"
	IntentSEO       Intent = "seo"
	IntentBoth      Intent = "both"

	// IntentUnknown only appears on responses produced by the orchestrator's
	// panic recovery.
	IntentUnknown Intent = "unknown"
)

// Valid reports whether i is one of the three routable intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentAnalytics, IntentSEO, IntentBoth:
		return true
	}
	return false
}

// Agent names reported in Metadata.AgentsUsed.
const (
	AgentAnalytics = "analytics"
	AgentSEO       = "seo"
)

// AgentResult is what every agent returns, on success and on failure.
type AgentResult struct {
	Success     bool        `json:"success"`
	Data        interface{} `json:"data,omitempty"`
	Explanation string      `json:"explanation"`
	Error       string      `json:"error,omitempty"`
}

// FailedResult builds an unsuccessful AgentResult.
func FailedResult(explanation, errMsg string) AgentResult {
	return AgentResult{Success: false, Explanation: explanation, Error: errMsg}
}

type Metadata struct {
	Intent           Intent   `json:"intent"`
	AgentsUsed       []string `json:"agentsUsed"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
	RequestID        string   `json:"requestId,omitempty"`
}

// OrchestratorResponse is the terminal answer for one query.
type OrchestratorResponse struct {
	Success  bool        `json:"success"`
	Response string      `json:"response"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    string      `json:"error,omitempty"`
}
