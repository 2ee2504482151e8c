// export.go
package processor

import (
	"KycInsight/src/datasource/file"
	"KycInsight/src/utils"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// 汇总工作簿中的工作表名
const (
	SheetKPIs            = "KPIs"
	SheetStageCounts     = "Stage Counts"
	SheetStageFailures   = "Stage Failure"
	SheetAttemptCounts   = "Attempt Counts"
	SheetAttemptFailures = "Attempt Failure"
	SheetStageTimes      = "Stage Time"
	SheetHistogram       = "Time Histogram"
	SheetTopErrors       = "Top Errors"
	SheetTargetStats     = "Time vs Target"
	SheetFunnel          = "Funnel"
	SheetBoxStats        = "Time Box"
	SheetRecords         = "Records"
)

// ExportSummary 将汇总结果写入xlsx，每种汇总一个工作表
// records包含明细列时额外写入清洗后的明细
func ExportSummary(s Summary, records *dataframe.DataFrame, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name   string
		header []string
		rows   [][]interface{}
	}{
		{SheetKPIs, []string{"Metric", "Value"}, kpiRows(s)},
		{SheetStageCounts, []string{"Stage", "Count", "Percent"}, stageCountRows(s.StageCounts)},
		{SheetStageFailures, []string{"Stage", "Mean Failure %", "Max Failure %", "Samples"}, stageFailureRows(s.StageFailures)},
		{SheetAttemptCounts, []string{"Attempt", "Count", "Percent"}, attemptCountRows(s.AttemptCounts)},
		{SheetAttemptFailures, []string{"Attempt", "Mean Failure %", "Std %", "Max Failure %", "Samples"}, attemptFailureRows(s.AttemptFailures)},
		{SheetStageTimes, []string{"Stage", "Mean Time (s)", "Samples", "Over Target"}, stageTimeRows(s.StageTimes)},
		{SheetHistogram, []string{"From", "To", "Count"}, histogramRows(s.TimeHistogram)},
		{SheetTopErrors, []string{"Error", "Count", "Percent"}, errorRows(s.TopErrors)},
		{SheetTargetStats, []string{"Stage", "Records", "Exceeding", "Exceed %", "Mean Time (s)", "Mean % of Target"}, targetRows(s.TargetStats)},
		{SheetFunnel, []string{"Stage", "Total", "Success", "Failure", "Success %", "Failure %"}, funnelRows(s.Funnel)},
		{SheetBoxStats, []string{"Stage", "Samples", "Q1", "Median", "Q3", "Whisker Low", "Whisker High", "Outliers"}, boxRows(s.BoxStats)},
	}

	for _, sh := range sheets {
		if err := utils.WriteSheet(f, sh.name, sh.header, sh.rows); err != nil {
			return fmt.Errorf("写入工作表 %s 失败: %w", sh.name, err)
		}
	}
	if records != nil && utils.HasColumn(*records, file.ColStage) {
		if err := utils.WriteDataFrame(f, SheetRecords, *records); err != nil {
			return fmt.Errorf("写入工作表 %s 失败: %w", SheetRecords, err)
		}
	}

	return utils.SaveWorkbook(f, filePath)
}

func kpiRows(s Summary) [][]interface{} {
	k := s.KPIs
	meanTime := interface{}("")
	if k.HasMeanTime {
		meanTime = k.MeanTime
	}
	return [][]interface{}{
		{"Total Records", k.TotalRecords},
		{"Rejection Rate %", k.RejectionRate},
		{"Exceed Target %", k.ExceedTargetRate},
		{"Mean Time (s)", meanTime},
		{"Duplicate Rate %", k.DuplicateRate},
		{"First Attempt %", k.FirstAttemptRate},
		{"Target (s)", s.TargetSeconds},
	}
}

func stageCountRows(in []CategoryCount) [][]interface{} {
	rows := make([][]interface{}, len(in))
	for i, c := range in {
		rows[i] = []interface{}{c.Label, c.Count, c.Percent}
	}
	return rows
}

func stageFailureRows(in []StageFailure) [][]interface{} {
	rows := make([][]interface{}, len(in))
	for i, c := range in {
		rows[i] = []interface{}{c.Stage, c.Mean, c.Max, c.N}
	}
	return rows
}

func attemptCountRows(in []AttemptCount) [][]interface{} {
	rows := make([][]interface{}, len(in))
	for i, c := range in {
		rows[i] = []interface{}{c.Attempt, c.Count, c.Percent}
	}
	return rows
}

func attemptFailureRows(in []AttemptFailure) [][]interface{} {
	rows := make([][]interface{}, len(in))
	for i, c := range in {
		rows[i] = []interface{}{c.Attempt, c.Mean, c.Std, c.Max, c.N}
	}
	return rows
}

func stageTimeRows(in []StageTime) [][]interface{} {
	rows := make([][]interface{}, len(in))
	for i, c := range in {
		rows[i] = []interface{}{c.Stage, c.Mean, c.N, c.OverTarget}
	}
	return rows
}

func histogramRows(in []HistogramBin) [][]interface{} {
	rows := make([][]interface{}, len(in))
	for i, b := range in {
		rows[i] = []interface{}{b.Lo, b.Hi, b.Count}
	}
	return rows
}

func errorRows(in []ErrorCount) [][]interface{} {
	rows := make([][]interface{}, len(in))
	for i, c := range in {
		rows[i] = []interface{}{c.Error, c.Count, c.Percent}
	}
	return rows
}

func targetRows(in []TargetStat) [][]interface{} {
	rows := make([][]interface{}, len(in))
	for i, c := range in {
		row := []interface{}{c.Stage, c.Records, c.Exceeding, c.ExceedRate, "", ""}
		if c.HasMean {
			row[4], row[5] = c.MeanTime, c.MeanPctOfTarget
		}
		rows[i] = row
	}
	return rows
}

func funnelRows(in []FunnelStage) [][]interface{} {
	rows := make([][]interface{}, len(in))
	for i, c := range in {
		rows[i] = []interface{}{c.Stage, c.Total, c.Success, c.Failure, c.SuccessRate, c.FailureRate}
	}
	return rows
}

func boxRows(in []BoxStat) [][]interface{} {
	rows := make([][]interface{}, len(in))
	for i, c := range in {
		rows[i] = []interface{}{c.Stage, c.N, c.Q1, c.Median, c.Q3, c.WhiskerLo, c.WhiskerHi, len(c.Outliers)}
	}
	return rows
}
