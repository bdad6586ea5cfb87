package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milsupply/internal/pkg/logger"
)

func TestLogger_WritesJSONEntry(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLoggerWithOutput("debug", &buf)

	log.Info("Movimentação registrada.", map[string]interface{}{"resource_id": "r-1", "quantity": 50})

	var entry logger.LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "Movimentação registrada.", entry.Message)
	assert.Equal(t, "r-1", entry.Fields["resource_id"])
	assert.NotEmpty(t, entry.Timestamp)
}

func TestLogger_FiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLoggerWithOutput("warn", &buf)

	log.Debug("debug", nil)
	log.Info("info", nil)
	assert.Empty(t, buf.String())

	log.Warn("aviso", nil)
	log.Error("falha", errors.New("conexão recusada"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"WARN"`)
	assert.Contains(t, lines[1], `"error":"conexão recusada"`)
}

func TestLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLoggerWithOutput("verbose", &buf)

	log.Debug("oculto", nil)
	log.Info("visível", nil)

	assert.NotContains(t, buf.String(), "oculto")
	assert.Contains(t, buf.String(), "visível")
}
