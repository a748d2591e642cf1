// Package llmtest provides an in-memory llm.Gateway for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"insight-agents/internal/common/llm"
)

type Call struct {
	Messages []llm.Message
	Model    string
	Options  llm.Options
}

// Prompt returns the content of the last message, normally the user prompt.
func (c Call) Prompt() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[len(c.Messages)-1].Content
}

// Gateway answers every Chat call with Respond. It is safe for concurrent use.
type Gateway struct {
	Respond func(call Call) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Reply returns a gateway that always answers text.
func Reply(text string) *Gateway {
	return &Gateway{Respond: func(Call) (string, error) { return text, nil }}
}

// Fail returns a gateway whose every call fails with err.
func Fail(err error) *Gateway {
	return &Gateway{Respond: func(Call) (string, error) { return "", err }}
}

// Route answers with the reply whose key occurs in the prompt, and with
// fallback when none does. Keys must not overlap within one prompt.
func Route(routes map[string]string, fallback string) *Gateway {
	return &Gateway{Respond: func(call Call) (string, error) {
		prompt := call.Prompt()
		for key, reply := range routes {
			if strings.Contains(prompt, key) {
				return reply, nil
			}
		}
		return fallback, nil
	}}
}

func (g *Gateway) Chat(ctx context.Context, messages []llm.Message, model string, opts llm.Options) (string, error) {
	call := Call{Messages: append([]llm.Message(nil), messages...), Model: model, Options: opts}
	g.mu.Lock()
	g.calls = append(g.calls, call)
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.Respond(call)
}

func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

func (g *Gateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
