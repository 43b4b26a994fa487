package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhlagent/internal/domain"
)

func TestExitDomainCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "invalid argument", err: domain.E(domain.CodeInvalidArgument, "cli.ask", "question is required", nil), code: 2},
		{name: "wrapped config", err: fmt.Errorf("load: %w", domain.E(domain.CodeInvalidConfig, "config.load", "bad asOf", nil)), code: 2},
		{name: "temporal", err: domain.E(domain.CodeTemporalViolation, "gateway.call", "after cutoff", nil), code: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var exit exitError
			require.True(t, errors.As(exitDomain(tc.err), &exit))
			assert.Equal(t, tc.code, exit.code)
			var payload map[string]any
			require.NoError(t, json.Unmarshal([]byte(exit.message), &payload))
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestExitDomainPassesPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, exitDomain(plain))
}
