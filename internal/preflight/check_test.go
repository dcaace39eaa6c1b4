package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfqa/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Index.APIKey = "sk-test"
	cfg.Index.AssistantID = "asst_1"
	return cfg
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name   string
		result CheckResult
		want   bool
	}{
		{"required pass", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail", CheckResult{Status: StatusFail}, false},
		{"required warn", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.IsCritical())
		})
	}
}

func TestChecker_RunAll_HealthyConfig(t *testing.T) {
	// Given: a config with credentials and a short data dir
	cfg := testConfig(t)
	if len(cfg.SocketPath()) > MaxSocketPathLen {
		t.Skip("temp dir too long for a unix socket")
	}

	// When: running every check
	checker := New()
	results := checker.RunAll(context.Background(), cfg)

	// Then: the built-in checks run in order and the data dir exists
	var names []string
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"data_dir", "disk_space", "file_descriptors", "socket_path", "api_key", "assistant_id"}, names)
	assert.DirExists(t, cfg.DataDir)
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, StatusPass, results[4].Status)
	assert.NotContains(t, results[4].Message, "sk-test")
}

func TestChecker_RunAll_MissingCredentials(t *testing.T) {
	// Given: no API key and no assistant
	cfg := testConfig(t)
	cfg.Index.APIKey = ""
	cfg.Index.AssistantID = ""

	// When: running every check
	checker := New()
	results := checker.RunAll(context.Background(), cfg)

	// Then: the key is critical and the assistant only warns
	byName := map[string]CheckResult{}
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.True(t, byName["api_key"].IsCritical())
	assert.Equal(t, StatusWarn, byName["assistant_id"].Status)
	assert.True(t, checker.HasCriticalFailures(results))
	assert.Equal(t, "failed", checker.SummaryStatus(results))
}

func TestChecker_Probes(t *testing.T) {
	cfg := testConfig(t)
	checker := New(
		WithProbe(Probe{Name: "store", Required: true, Run: func(context.Context) (string, error) {
			return "sqlite", nil
		}}),
		WithProbe(Probe{Name: "daemon", Hint: "run 'pdfqa serve start'", Run: func(context.Context) (string, error) {
			return "", errors.New("not running")
		}}),
	)

	results := checker.RunAll(context.Background(), cfg)
	store, daemon := results[len(results)-2], results[len(results)-1]

	assert.Equal(t, CheckResult{Name: "store", Status: StatusPass, Message: "sqlite", Required: true}, store)
	assert.Equal(t, CheckResult{Name: "daemon", Status: StatusWarn, Message: "not running", Details: "run 'pdfqa serve start'"}, daemon)
}

func TestChecker_CheckDataDir_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.Mkdir(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	result := New().CheckDataDir(dir)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "not writable")
}

func TestChecker_CheckDiskSpace_MissingDirUsesParent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not", "yet", "created")

	result := New().CheckDiskSpace(dir, 50*1024*1024)

	assert.Equal(t, "disk_space", result.Name)
	assert.Contains(t, result.Message, "minimum: 200.0 MB")
}

func TestChecker_CheckSocketPath(t *testing.T) {
	ok := New().CheckSocketPath("/tmp/pdfqa/daemon.sock")
	long := New().CheckSocketPath("/" + strings.Repeat("d", MaxSocketPathLen) + "/daemon.sock")

	assert.Equal(t, StatusPass, ok.Status)
	assert.True(t, long.IsCritical())
	assert.Contains(t, long.Details, "PDFQA_DATA_DIR")
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()
	tests := []struct {
		name    string
		results []CheckResult
		want    string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"warning", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"optional failure", []CheckResult{{Status: StatusFail}}, "ready_with_warnings"},
		{"critical failure", []CheckResult{{Status: StatusWarn}, {Status: StatusFail, Required: true}}, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checker.SummaryStatus(tt.results))
		})
	}
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: mixed results
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50.0 GB free", Details: "hidden unless verbose"},
		{Name: "assistant_id", Status: StatusWarn, Message: "not configured", Details: "Set OPENAI_ASSISTANT_ID"},
		{Name: "api_key", Status: StatusFail, Message: "not configured", Required: true},
	}
	var buf bytes.Buffer

	// When: printing them
	New(WithOutput(&buf)).PrintResults(results)

	// Then: each line, details for problems, and both summaries appear
	out := buf.String()
	assert.Contains(t, out, "[PASS] disk_space: 50.0 GB free")
	assert.Contains(t, out, "[WARN] assistant_id: not configured\n       Set OPENAI_ASSISTANT_ID")
	assert.NotContains(t, out, "hidden unless verbose")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):\n  - api_key: not configured")
	assert.Contains(t, out, "1 warning(s):\n  - assistant_id: not configured")
}

func TestCheckResult_JSONStatusName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "api_key", Status: StatusWarn})
	require.NoError(t, err)

	assert.Contains(t, string(data), `"status":"warn"`)
}
