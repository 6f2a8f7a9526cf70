package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"devservices/internal/config"
	"devservices/internal/orchestrator"
	"devservices/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func sampleResult() *orchestrator.Result {
	return &orchestrator.Result{
		Service:   "sentry",
		Operation: "up",
		Modes:     []string{"default"},
		Dependencies: []orchestrator.DependencyResult{
			{Key: "sentry/redis", Name: "redis", Status: state.StatusHealthy, Runtime: state.RuntimeContainer, Action: orchestrator.ActionStarted, Referrers: 1},
			{Key: "snuba@master/snuba", Name: "snuba", Status: state.StatusUnhealthy, Runtime: state.RuntimeContainer, Action: orchestrator.ActionStarted, Referrers: 1,
				Warning: "snuba did not become healthy within 2m0s"},
		},
	}
}

func TestValidateOutputFormat(t *testing.T) {
	for _, f := range ValidOutputFormats {
		assert.NoError(t, ValidateOutputFormat(string(f)))
	}
	assert.ErrorContains(t, ValidateOutputFormat("xml"), "unsupported output format")

	_, err := NewPrinter("wide", false, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestPrintResult_Plain(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewPrinter("plain", false, &buf)
	require.NoError(t, err)

	require.NoError(t, p.PrintResult(sampleResult()))
	out := buf.String()
	assert.Contains(t, out, "DEPENDENCY")
	assert.Contains(t, out, "redis")
	assert.Contains(t, out, "did not become healthy")
	assert.Contains(t, out, "⚠ up of sentry: partial")
}

func TestPrintResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewPrinter("json", false, &buf)
	require.NoError(t, err)
	require.NoError(t, p.PrintResult(sampleResult()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "partial", got["outcome"])
	assert.Equal(t, "sentry", got["service"])
	assert.Len(t, got["dependencies"], 2)
}

func TestPrintResult_YAML(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewPrinter("yaml", false, &buf)
	require.NoError(t, err)
	require.NoError(t, p.PrintResult(sampleResult()))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "up", got["operation"])
	assert.Contains(t, buf.String(), "outcome: partial")
}

func TestPrintResult_Empty(t *testing.T) {
	var buf bytes.Buffer
	p, _ := NewPrinter("table", false, &buf)
	require.NoError(t, p.PrintResult(&orchestrator.Result{Service: "sentry", Operation: "down"}))
	assert.Equal(t, "⚠ sentry: nothing to down\n", buf.String())
}

func TestPrintRecords(t *testing.T) {
	recs := []state.Record{
		{Key: "sentry/redis", Name: "redis", Status: state.StatusHealthy, Runtime: state.RuntimeContainer, Referrers: 2, Modes: []string{"default", "full"}},
	}

	var buf bytes.Buffer
	p, _ := NewPrinter("plain", false, &buf)
	require.NoError(t, p.PrintRecords("sentry", recs))
	assert.Contains(t, buf.String(), "default,full")
	assert.Contains(t, buf.String(), "healthy")

	buf.Reset()
	p, _ = NewPrinter("json", false, &buf)
	require.NoError(t, p.PrintRecords("sentry", nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestPrintServices(t *testing.T) {
	var buf bytes.Buffer
	p, _ := NewPrinter("plain", true, &buf)
	require.NoError(t, p.PrintServices([]ServiceSummary{
		{Name: "sentry", Path: "/code/sentry", Status: "running", Modes: []string{"default"}},
		{Name: "snuba", Path: "/code/snuba", Status: "stopped"},
	}))
	assert.Equal(t, "sentry    running   default   /code/sentry\nsnuba     stopped   -         /code/snuba\n", buf.String())
}

func TestPrintToggle(t *testing.T) {
	var buf bytes.Buffer
	p, _ := NewPrinter("table", false, &buf)

	require.NoError(t, p.PrintToggle(&orchestrator.DependencyResult{Name: "snuba", Runtime: state.RuntimeLocal, Status: state.StatusHealthy, Action: orchestrator.ActionToggled}))
	assert.Equal(t, "✓ snuba switched to local (healthy)\n", buf.String())

	buf.Reset()
	require.NoError(t, p.PrintToggle(&orchestrator.DependencyResult{Name: "snuba", Runtime: state.RuntimeLocal, Action: orchestrator.ActionNoop}))
	assert.Contains(t, buf.String(), "already uses the local runtime")
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "Error: boom", FormatError(errors.New("boom")))

	err := &config.ConfigError{Message: "service \"x\" not found", ErrorType: config.ErrorTypeNotFound, Suggestions: []string{"Supported services: sentry"}}
	out := FormatError(err)
	assert.Contains(t, out, "Configuration error")
	assert.Contains(t, out, "Supported services: sentry")
}
