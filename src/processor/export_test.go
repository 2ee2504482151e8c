package processor

import (
	"KycInsight/src/datasource/file"
	"KycInsight/src/testutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readSheet(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestExportSummary(t *testing.T) {
	src := testutil.KYCWorkbook(t, "Dump", [][]interface{}{
		{"Document Scan", 0.0, 12.0, 1, nil},
		{"Document Scan", 0.5, 28.0, 2, "Customer already exists"},
		{"KYC Check", 0.0, "N/A", 1, nil},
	})
	table, err := file.LoadRecords(src, "Dump", 2)
	require.NoError(t, err)

	s := Summarize(table.Records(), Options{TargetSeconds: 20, TopErrors: 10, DashboardTopErrors: 5, Stages: []string{"Document Scan", "KYC Check"}})
	frame := table.Frame()
	out := filepath.Join(t.TempDir(), "summary.xlsx")
	require.NoError(t, ExportSummary(s, &frame, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	sheets := f.GetSheetList()
	f.Close()
	assert.NotContains(t, sheets, "Sheet1")
	for _, name := range []string{SheetKPIs, SheetStageCounts, SheetFunnel, SheetTopErrors, SheetRecords} {
		assert.Contains(t, sheets, name)
	}

	counts := readSheet(t, out, SheetStageCounts)
	require.Len(t, counts, 3)
	assert.Equal(t, []string{"Stage", "Count", "Percent"}, counts[0])
	assert.Equal(t, "Document Scan", counts[1][0])
	assert.Equal(t, "2", counts[1][1])

	kpis := readSheet(t, out, SheetKPIs)
	assert.Equal(t, "Total Records", kpis[1][0])
	assert.Equal(t, "3", kpis[1][1])

	// 缺失值写为空单元格
	records := readSheet(t, out, SheetRecords)
	require.Len(t, records, 4)
	assert.Equal(t, file.RequiredColumns, records[0])
	assert.Equal(t, "", records[3][2])
}

func TestExportSummaryIsStable(t *testing.T) {
	s := Summarize(randomRecords(7, 120), Options{TargetSeconds: 20, TopErrors: 10, DashboardTopErrors: 5, Stages: []string{"KYC Check"}})
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xlsx")
	b := filepath.Join(dir, "b.xlsx")
	require.NoError(t, ExportSummary(s, nil, a))
	require.NoError(t, ExportSummary(s, nil, b))

	for _, sheet := range []string{SheetKPIs, SheetStageCounts, SheetStageFailures, SheetAttemptFailures, SheetHistogram, SheetBoxStats} {
		assert.Equal(t, readSheet(t, a, sheet), readSheet(t, b, sheet), sheet)
	}
}
