package main

import (
	"KycInsight/src/config"
	"KycInsight/src/report"
	"KycInsight/src/storage"
	"KycInsight/src/testutil"
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheet = "Digital KYC Data Dump"

var rows = [][]interface{}{
	{"Document Scan", 0.0, 12.5, 1, nil},
	{"KYC Check", 1.0, 31.0, 2, "Customer already exists"},
	{"KYC Approved", 0.0, 9.0, 1, nil},
}

// syncBuffer 可并发写入的缓冲区
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setup(t *testing.T) (*config.Config, *storage.Logger) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.InputPath = testutil.KYCWorkbook(t, sheet, rows)
	cfg.OutputDir = filepath.Join(dir, "visualizations")
	cfg.SummaryWorkbook = ""
	cfg.LogName = filepath.Join(dir, "app.log")
	cfg.DPI = 72

	logger, err := storage.NewLogger(cfg.LogName, nil)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return cfg, logger
}

func TestScheduleSpec(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "", scheduleSpec(cfg))
	assert.False(t, daemon(cfg))

	cfg.Schedule = "@every 1h"
	assert.Equal(t, "@every 1h", scheduleSpec(cfg))
	assert.True(t, daemon(cfg))

	cfg = config.Default()
	cfg.Watch = true
	assert.Equal(t, "", scheduleSpec(cfg))
	assert.True(t, daemon(cfg))

	cfg.Source = "email"
	assert.Equal(t, "@every 5m0s", scheduleSpec(cfg))
}

func TestRunOnce(t *testing.T) {
	cfg, logger := setup(t)
	var out bytes.Buffer

	require.NoError(t, runOnce(context.Background(), report.NewGenerator(cfg, logger), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "All visualizations created successfully!", lines[0])
	assert.Equal(t, "Files saved in '"+cfg.OutputDir+"' folder:", lines[1])
	assert.Equal(t, "8. 8_customer_journey_flow.png", lines[9])
}

func TestRunOnceMissingInput(t *testing.T) {
	cfg, logger := setup(t)
	cfg.InputPath = filepath.Join(t.TempDir(), "missing.xlsx")
	var out bytes.Buffer

	assert.Error(t, runOnce(context.Background(), report.NewGenerator(cfg, logger), &out))
	assert.Empty(t, out.String())
}

func TestServeRegeneratesOnWrite(t *testing.T) {
	cfg, logger := setup(t)
	cfg.Watch = true
	gen := report.NewGenerator(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, logger, gen, out) }()
	time.Sleep(100 * time.Millisecond)

	// 用新数据覆盖输入文件，修改时间前移保证被识别为新版本
	data, err := os.ReadFile(testutil.KYCWorkbook(t, sheet, append(rows, []interface{}{"Upload Document", 0.0, 7.0, 1, nil})))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.InputPath, data, 0644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(cfg.InputPath, future, future))

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "All visualizations created successfully!")
	}, 20*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestServeRejectsBadSchedule(t *testing.T) {
	cfg, logger := setup(t)
	cfg.Schedule = "not a cron spec"

	err := serve(context.Background(), cfg, logger, report.NewGenerator(cfg, logger), &bytes.Buffer{})
	assert.ErrorContains(t, err, "创建定时任务失败")
}

func TestLogsHandler(t *testing.T) {
	_, logger := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/logs", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		logsHandler(logger)(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	logger.Info("streamed line")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "INFO: streamed line")
}
