package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/model"
	"github.com/Kartekeya-Sharma/Contract-Guard/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAsk(t *testing.T) {
	var got service.QueryRequest
	query := queryServer(t, &got)
	cfg := testConfig("", query.URL)

	// A saved "analyze --json" report is read back through its clauses field.
	clausesFile := writeFile(t, "report.json", `{
		"document": {"filename": "msa.txt", "size": 10, "media_type": "text/plain"},
		"clauses": [{"text": "Net 30", "clauseType": "Payment", "riskLevel": "Low", "concerns": []}],
		"skipped_records": 0
	}`)

	var out bytes.Buffer
	require.NoError(t, runAsk(context.Background(), cfg, "When is payment due?", clausesFile, &out))

	assert.Equal(t, "Payment is due within 30 days.\n", out.String())
	assert.Equal(t, "When is payment due?", got.Question)
	require.Len(t, got.Clauses, 1)
	assert.Equal(t, model.TypePayment, got.Clauses[0].Type)
	assert.Equal(t, model.RiskLow, got.Clauses[0].Risk)
}

func TestRunAskWithoutClauses(t *testing.T) {
	var got service.QueryRequest
	query := queryServer(t, &got)
	cfg := testConfig("", query.URL)

	var out bytes.Buffer
	require.NoError(t, runAsk(context.Background(), cfg, "Anything risky?", "", &out))

	assert.NotNil(t, got.Clauses)
	assert.Empty(t, got.Clauses)
}

func TestRunAskErrors(t *testing.T) {
	var got service.QueryRequest
	query := queryServer(t, &got)

	t.Run("empty question", func(t *testing.T) {
		err := runAsk(context.Background(), testConfig("", query.URL), "   ", "", &bytes.Buffer{})
		require.Error(t, err)
		assert.ErrorIs(t, err, service.ErrEmptyQuestion)
		assert.Empty(t, got.Question)
	})

	t.Run("no endpoint", func(t *testing.T) {
		err := runAsk(context.Background(), testConfig("", ""), "question", "", &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query endpoint")
	})

	t.Run("unreadable clauses", func(t *testing.T) {
		path := writeFile(t, "clauses.json", `{"unexpected": true}`)
		err := runAsk(context.Background(), testConfig("", query.URL), "question", path, &bytes.Buffer{})
		require.Error(t, err)
		assert.ErrorIs(t, err, service.ErrUnexpectedShape)
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, config.DefaultMaxFileSize, cfg.Analysis.MaxFileSize)
	assert.Equal(t, 120, cfg.Analysis.TimeoutSeconds)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("CONTRACTGUARD_QUERY_ENDPOINT", "http://query.local/ask")
	initViperEnv()

	path := writeFile(t, "config.yaml", `
analysis:
  endpoint: http://analysis.local/analyze
  max_file_size: 1024
log:
  level: debug
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://analysis.local/analyze", cfg.Analysis.Endpoint)
	assert.Equal(t, int64(1024), cfg.Analysis.MaxFileSize)
	assert.Equal(t, "http://query.local/ask", cfg.Query.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
}
