package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tourscan/internal/config"
	"tourscan/internal/external/llm"
	"tourscan/internal/model"
	"tourscan/internal/report"
	"tourscan/internal/service"
)

type fakeRunner struct {
	opts   service.Options
	result *service.RunResult
	err    error
}

func (r *fakeRunner) ProcessAll(ctx context.Context, opts service.Options) (*service.RunResult, error) {
	r.opts = opts
	return r.result, r.err
}

type fakeArchiver struct {
	calls int
	err   error
}

func (a *fakeArchiver) Archive(ctx context.Context, s report.Summary, content string) (string, error) {
	a.calls++
	return "reports/2025/09/" + report.FileName(s.StartedAt), a.err
}

type fakeNotifier struct {
	summaries []report.Summary
}

func (n *fakeNotifier) NotifyRun(ctx context.Context, s report.Summary) error {
	n.summaries = append(n.summaries, s)
	return errors.New("telegram is down")
}

type fakeMetrics struct {
	paths []string
}

func (m *fakeMetrics) WriteTextfile(path string) error {
	m.paths = append(m.paths, path)
	return nil
}

func (m *fakeMetrics) GetStats() map[string]interface{} {
	return map[string]interface{}{}
}

type fakeInference struct {
	calls int
}

func (i *fakeInference) GetMetrics() map[string]interface{} {
	i.calls++
	return map[string]interface{}{"backend": "ollama"}
}

func runResult(failed int) *service.RunResult {
	summary := report.Summary{
		Params:    report.Params{RunID: "run-1", StartedAt: time.Date(2025, 9, 1, 3, 0, 0, 0, time.UTC)},
		Processed: 3,
		Failed:    failed,
		Succeeded: 3 - failed,
	}
	return &service.RunResult{
		RunID:     "run-1",
		Processed: 3,
		Failed:    failed,
		Succeeded: 3 - failed,
		Summary:   summary,
		Report:    report.Render(summary),
	}
}

func TestScanner_RunPublishes(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{result: runResult(1)}
	archiver := &fakeArchiver{err: errors.New("bucket missing")}
	notifier := &fakeNotifier{}
	metrics := &fakeMetrics{}
	closed := 0

	scanner := &Scanner{
		orchestrator: runner,
		writer:       report.NewWriter(dir, nil, zap.NewNop()),
		archiver:     archiver,
		notifier:     notifier,
		metrics:      metrics,
		metricsPath:  filepath.Join(dir, "tourscan.prom"),
		aiAvailable:  true,
		logger:       zap.NewNop(),
		closers:      []func(){func() { closed++ }},
	}

	result, err := scanner.Run(context.Background(), service.Options{Limit: 50, UseAI: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode())
	assert.True(t, runner.opts.UseAI)

	data, err := os.ReadFile(filepath.Join(dir, "tour-scan-2025-09-01.md"))
	require.NoError(t, err)
	assert.Equal(t, result.Report, string(data))

	// Ошибки архива и уведомления не влияют на результат
	assert.Equal(t, 1, archiver.calls)
	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, "run-1", notifier.summaries[0].RunID)
	assert.Equal(t, []string{filepath.Join(dir, "tourscan.prom")}, metrics.paths)

	scanner.Close()
	assert.Equal(t, 1, closed)
}

func TestScanner_RunWithoutAI(t *testing.T) {
	runner := &fakeRunner{result: runResult(0)}
	scanner := &Scanner{
		orchestrator: runner,
		writer:       report.NewWriter(t.TempDir(), nil, zap.NewNop()),
		logger:       zap.NewNop(),
	}

	result, err := scanner.Run(context.Background(), service.Options{UseAI: true})
	require.NoError(t, err)
	assert.False(t, runner.opts.UseAI)
	assert.Equal(t, 0, result.ExitCode())
}

func TestScanner_PublishesInferenceMetrics(t *testing.T) {
	inference := &fakeInference{}
	result := runResult(0)
	scanner := &Scanner{
		orchestrator: &fakeRunner{result: result},
		writer:       report.NewWriter(t.TempDir(), nil, zap.NewNop()),
		inference:    inference,
		aiAvailable:  true,
		logger:       zap.NewNop(),
	}

	_, err := scanner.Run(context.Background(), service.Options{UseAI: false})
	require.NoError(t, err)
	assert.Zero(t, inference.calls, "без AI метрики инференса не пишутся")

	result.Summary.UseAI = true
	_, err = scanner.Run(context.Background(), service.Options{UseAI: true})
	require.NoError(t, err)
	assert.Equal(t, 1, inference.calls)
}

func TestScanner_RunError(t *testing.T) {
	scanner := &Scanner{
		orchestrator: &fakeRunner{err: errors.New("connection refused")},
		writer:       report.NewWriter(t.TempDir(), nil, zap.NewNop()),
		logger:       zap.NewNop(),
	}

	_, err := scanner.Run(context.Background(), service.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DB_DSN", "postgres://localhost/tours")
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

func TestNewComponentFactory(t *testing.T) {
	_, err := NewComponentFactory(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewComponentFactory(testConfig(t), nil)
	assert.Error(t, err)
}

func TestComponentFactory_OptionalComponents(t *testing.T) {
	cfg := testConfig(t)
	factory, err := NewComponentFactory(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Nil(t, factory.CreateArchiver(context.Background()))
	assert.Nil(t, factory.CreateNotifier())

	table, err := factory.CreateProviderTable()
	require.NoError(t, err)
	assert.Len(t, table.Specs(), len(model.AllProviders()))
}

func TestComponentFactory_CreateAnalyzer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			fmt.Fprint(w, `{"models":[]}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.LLMConfig = llm.DefaultConfig()
	cfg.LLMConfig.BaseURL = srv.URL
	factory, err := NewComponentFactory(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, factory.CreateAnalyzer(context.Background(), nil))

	srv.Close()
	assert.Nil(t, factory.CreateAnalyzer(context.Background(), nil))
}
