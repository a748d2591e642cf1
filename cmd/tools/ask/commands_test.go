package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insight-agents/internal/history"
	"insight-agents/internal/models"
)

func TestPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	err := printEntries(&buf, []history.Entry{
		{
			Intent:           "seo",
			Success:          true,
			ProcessingTimeMs: 812,
			Query:            "Which URLs do not use HTTPS?",
			CreatedAt:        time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local),
		},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "TIME"))
	assert.Contains(t, lines[1], "2025-03-14 09:00:00")
	assert.Contains(t, lines[1], "Which URLs do not use HTTPS?")
	assert.Contains(t, lines[1], "812")
}

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResponse(&buf, models.OrchestratorResponse{
		Success:  true,
		Response: "ok",
		Metadata: models.Metadata{Intent: models.IntentSEO, AgentsUsed: []string{"seo"}},
	}))
	assert.Contains(t, buf.String(), `"intent": "seo"`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestRootCmd_RequiresQuestion(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs([]string{})
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	assert.Error(t, cmd.Execute())
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})

	for _, name := range []string{"property", "spreadsheet", "refresh", "config"} {
		assert.NotNil(t, cmd.Flag(name), name)
	}
	sub, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)
	assert.Equal(t, "history", sub.Name())
}
