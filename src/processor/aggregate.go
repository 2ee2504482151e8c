// aggregate.go
package processor

import (
	"KycInsight/src/datasource/file"
	"fmt"
	"math"
	"sort"
	"strings"
)

// CategoryCount 分类计数
type CategoryCount struct {
	Label   string
	Count   int
	Percent float64 // 占总记录数的百分比
}

// PercentLabel 图表上显示的百分比
func (c CategoryCount) PercentLabel() string {
	return fmt.Sprintf("%.1f%%", c.Percent)
}

// StageFailure 阶段失败率，单位为百分比
type StageFailure struct {
	Stage string
	Mean  float64
	Max   float64
	N     int
}

// AttemptCount 按尝试次数计数
type AttemptCount struct {
	Attempt int
	Count   int
	Percent float64
}

// AttemptFailure 按尝试次数的失败率，单位为百分比
type AttemptFailure struct {
	Attempt int
	Mean    float64
	Std     float64
	Max     float64
	N       int
}

// StageTime 阶段平均耗时(秒)
type StageTime struct {
	Stage      string
	Mean       float64
	N          int
	OverTarget bool
}

// ErrorCount 错误类型计数
type ErrorCount struct {
	Error   string
	Count   int
	Percent float64
}

// TargetStat 阶段耗时与目标值对比
type TargetStat struct {
	Stage     string
	Records   int
	Exceeding int
	// ExceedRate 超过目标的记录占该阶段全部记录的百分比
	ExceedRate float64
	MeanTime   float64
	// MeanPctOfTarget 平均耗时相对目标的百分比，可以超过100
	MeanPctOfTarget float64
	// HasMean 阶段内没有有效耗时时为false
	HasMean bool
}

// FunnelStage 漏斗中一个阶段的成功/失败
type FunnelStage struct {
	Stage       string
	Total       int
	Success     int
	Failure     int
	SuccessRate float64
	FailureRate float64
}

// BoxStat 箱线图统计
type BoxStat struct {
	Stage     string
	N         int
	Q1        float64
	Median    float64
	Q3        float64
	WhiskerLo float64
	WhiskerHi float64
	Outliers  []float64
}

// StageCounts 各阶段记录数，按数量降序，数量相同按首次出现顺序
func StageCounts(records []file.Record) []CategoryCount {
	groups := groupBy(records, stageKey)
	out := make([]CategoryCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, CategoryCount{
			Label:   g.key,
			Count:   len(g.records),
			Percent: percent(len(g.records), len(records)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// StageFailureStats 各阶段失败率均值与最大值，按均值降序
func StageFailureStats(records []file.Record) []StageFailure {
	var out []StageFailure
	for _, g := range groupBy(records, stageKey) {
		vals := valid(g.records, failureOf)
		m, ok := mean(vals)
		if !ok {
			continue
		}
		out = append(out, StageFailure{
			Stage: g.key,
			Mean:  m * 100,
			Max:   maxOf(vals) * 100,
			N:     len(vals),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean > out[j].Mean })
	return out
}

// AttemptCounts 按尝试次数计数，尝试次数升序
func AttemptCounts(records []file.Record) []AttemptCount {
	groups := groupBy(records, attemptKey)
	out := make([]AttemptCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, AttemptCount{
			Attempt: g.key,
			Count:   len(g.records),
			Percent: percent(len(g.records), len(records)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attempt < out[j].Attempt })
	return out
}

// AttemptFailureStats 按尝试次数统计失败率的均值、样本标准差和最大值
func AttemptFailureStats(records []file.Record) []AttemptFailure {
	var out []AttemptFailure
	for _, g := range groupBy(records, attemptKey) {
		vals := valid(g.records, failureOf)
		m, ok := mean(vals)
		if !ok {
			continue
		}
		out = append(out, AttemptFailure{
			Attempt: g.key,
			Mean:    m * 100,
			Std:     sampleStd(vals) * 100,
			Max:     maxOf(vals) * 100,
			N:       len(vals),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attempt < out[j].Attempt })
	return out
}

// StageTimeStats 各阶段平均耗时，按均值降序
func StageTimeStats(records []file.Record, target float64) []StageTime {
	var out []StageTime
	for _, g := range groupBy(records, stageKey) {
		vals := valid(g.records, timeOf)
		m, ok := mean(vals)
		if !ok {
			continue
		}
		out = append(out, StageTime{Stage: g.key, Mean: m, N: len(vals), OverTarget: m > target})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean > out[j].Mean })
	return out
}

// TimeValues 全部有效耗时，保持记录顺序
func TimeValues(records []file.Record) []float64 {
	return valid(records, timeOf)
}

// TopErrors 出现次数最多的n种错误，空错误不计
func TopErrors(records []file.Record, n int) []ErrorCount {
	groups := groupBy(records, func(r file.Record) (string, bool) {
		e := strings.TrimSpace(r.Error)
		return e, e != ""
	})
	out := make([]ErrorCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, ErrorCount{
			Error:   g.key,
			Count:   len(g.records),
			Percent: percent(len(g.records), len(records)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TargetExceedance 各阶段超过目标耗时的比例，按首次出现顺序
func TargetExceedance(records []file.Record, target float64) []TargetStat {
	var out []TargetStat
	for _, g := range groupBy(records, stageKey) {
		vals := valid(g.records, timeOf)
		exceeding := 0
		for _, v := range vals {
			if v > target {
				exceeding++
			}
		}
		ts := TargetStat{
			Stage:      g.key,
			Records:    len(g.records),
			Exceeding:  exceeding,
			ExceedRate: percent(exceeding, len(g.records)),
		}
		if m, ok := mean(vals); ok && target > 0 {
			ts.MeanTime = m
			ts.MeanPctOfTarget = m / target * 100
			ts.HasMean = true
		}
		out = append(out, ts)
	}
	return out
}

// StageFunnel 按给定阶段顺序统计成功(失败率为0)与失败，没有记录的阶段跳过
func StageFunnel(records []file.Record, stages []string) []FunnelStage {
	var out []FunnelStage
	for _, stage := range stages {
		total, success := 0, 0
		for _, r := range records {
			if r.Stage != stage {
				continue
			}
			total++
			if r.Failure == 0 {
				success++
			}
		}
		if total == 0 {
			continue
		}
		out = append(out, FunnelStage{
			Stage:       stage,
			Total:       total,
			Success:     success,
			Failure:     total - success,
			SuccessRate: percent(success, total),
			FailureRate: percent(total-success, total),
		})
	}
	return out
}

// StageBoxStats 各阶段耗时的箱线图统计，须线取1.5倍四分位距内的最远数据点
func StageBoxStats(records []file.Record) []BoxStat {
	var out []BoxStat
	for _, g := range groupBy(records, stageKey) {
		vals := sortedCopy(valid(g.records, timeOf))
		if len(vals) == 0 {
			continue
		}
		q1 := percentile(vals, 0.25)
		q3 := percentile(vals, 0.75)
		iqr := q3 - q1
		loLimit, hiLimit := q1-1.5*iqr, q3+1.5*iqr

		b := BoxStat{
			Stage:     g.key,
			N:         len(vals),
			Q1:        q1,
			Median:    percentile(vals, 0.5),
			Q3:        q3,
			WhiskerLo: math.Inf(1),
			WhiskerHi: math.Inf(-1),
		}
		for _, v := range vals {
			if v < loLimit || v > hiLimit {
				b.Outliers = append(b.Outliers, v)
				continue
			}
			b.WhiskerLo = math.Min(b.WhiskerLo, v)
			b.WhiskerHi = math.Max(b.WhiskerHi, v)
		}
		// 所有点都是离群点时须线收缩到箱体
		if math.IsInf(b.WhiskerLo, 1) {
			b.WhiskerLo, b.WhiskerHi = q1, q3
		}
		out = append(out, b)
	}
	return out
}
