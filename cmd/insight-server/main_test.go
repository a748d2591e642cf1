package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"insight-agents/internal/common/config"
)

func TestRun_ReturnsBuildErrorInsteadOfExiting(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Name = "insight-server-test"
	cfg.Google.CredentialsJSON = "{not json"

	err := run(cfg, zaptest.NewLogger(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build application")
}
