// summary.go
package processor

import (
	"KycInsight/src/config"
	"KycInsight/src/datasource/file"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultBins 耗时直方图的分箱数
const DefaultBins = 20

// DuplicateMarker 错误信息包含该子串的记录视为重复客户
const DuplicateMarker = "already exists"

// RejectionAttempt 尝试次数等于该值视为被拒绝
const RejectionAttempt = 4

// HistogramBin 直方图的一个分箱，除最后一个外为左闭右开
type HistogramBin struct {
	Lo    float64
	Hi    float64
	Count int
}

// Histogram 等宽分箱，最后一个分箱为闭区间；取值范围退化时向两侧各扩展0.5
func Histogram(values []float64, bins int) []HistogramBin {
	if len(values) == 0 || bins <= 0 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(bins)
	out := make([]HistogramBin, bins)
	for i := range out {
		out[i].Lo = lo + float64(i)*width
		out[i].Hi = lo + float64(i+1)*width
	}
	out[bins-1].Hi = hi

	for _, v := range values {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		// 浮点误差可能把边界值分到相邻分箱
		if i > 0 && v < out[i].Lo {
			i--
		} else if i < bins-1 && v >= out[i].Hi {
			i++
		}
		out[i].Count++
	}
	return out
}

// KPIs 仪表盘上的汇总指标，比例均以总记录数为分母
type KPIs struct {
	TotalRecords     int
	RejectionRate    float64
	ExceedTargetRate float64
	MeanTime         float64
	HasMeanTime      bool
	DuplicateRate    float64
	FirstAttemptRate float64
}

// ComputeKPIs 计算汇总指标
func ComputeKPIs(records []file.Record, target float64) KPIs {
	k := KPIs{TotalRecords: len(records)}
	if len(records) == 0 {
		return k
	}

	var rejected, exceeding, duplicate, first int
	for _, r := range records {
		if n, ok := r.AttemptNumber(); ok {
			switch n {
			case 1:
				first++
			case RejectionAttempt:
				rejected++
			}
		}
		if !math.IsNaN(r.Time) && r.Time > target {
			exceeding++
		}
		if strings.Contains(r.Error, DuplicateMarker) {
			duplicate++
		}
	}

	total := len(records)
	k.RejectionRate = percent(rejected, total)
	k.ExceedTargetRate = percent(exceeding, total)
	k.DuplicateRate = percent(duplicate, total)
	k.FirstAttemptRate = percent(first, total)
	k.MeanTime, k.HasMeanTime = mean(TimeValues(records))
	return k
}

// englishPrinter 整数带千分位逗号
var englishPrinter = message.NewPrinter(language.English)

// KPITitle 指标摘要的标题行
const KPITitle = "KEY PERFORMANCE METRICS SUMMARY"

// Lines 指标摘要各行(不含标题)，仪表盘和推送消息共用
func (k KPIs) Lines(target float64) []string {
	meanTime := "n/a"
	if k.HasMeanTime {
		meanTime = fmt.Sprintf("%.1f", k.MeanTime)
	}
	return []string{
		englishPrinter.Sprintf("Total Records Analyzed: %d", k.TotalRecords),
		fmt.Sprintf("Overall Rejection Rate: %.2f%% (Target: <1%%)", k.RejectionRate),
		fmt.Sprintf("Transactions Exceeding %gs Target: %.1f%% (Target: <20%%)", target, k.ExceedTargetRate),
		fmt.Sprintf("Average Processing Time: %s seconds (Target: <18s)", meanTime),
		fmt.Sprintf("Duplicate KYC Rate: %.2f%% (Target: <1%%)", k.DuplicateRate),
		fmt.Sprintf("First Attempt Success Rate: %.1f%% (Target: >95%%)", k.FirstAttemptRate),
	}
}

// Options 汇总参数
type Options struct {
	TargetSeconds      float64
	TopErrors          int
	DashboardTopErrors int
	Stages             []string
	Bins               int
}

// OptionsFromConfig 从配置生成汇总参数
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TargetSeconds:      cfg.TargetSeconds,
		TopErrors:          cfg.TopErrors,
		DashboardTopErrors: cfg.DashboardTopErrors,
		Stages:             cfg.Stages,
		Bins:               DefaultBins,
	}
}

// Summary 一次运行的全部汇总结果，图表和导出都只读取它
type Summary struct {
	TargetSeconds   float64
	StageCounts     []CategoryCount
	StageFailures   []StageFailure
	AttemptCounts   []AttemptCount
	AttemptFailures []AttemptFailure
	StageTimes      []StageTime
	TimeHistogram   []HistogramBin
	TimeValues      []float64
	TopErrors       []ErrorCount
	DashboardErrors []ErrorCount
	TargetStats     []TargetStat
	Funnel          []FunnelStage
	BoxStats        []BoxStat
	KPIs            KPIs
}

// Summarize 计算全部汇总，相同输入得到相同结果
func Summarize(records []file.Record, opts Options) Summary {
	bins := opts.Bins
	if bins <= 0 {
		bins = DefaultBins
	}
	times := TimeValues(records)
	return Summary{
		TargetSeconds:   opts.TargetSeconds,
		StageCounts:     StageCounts(records),
		StageFailures:   StageFailureStats(records),
		AttemptCounts:   AttemptCounts(records),
		AttemptFailures: AttemptFailureStats(records),
		StageTimes:      StageTimeStats(records, opts.TargetSeconds),
		TimeHistogram:   Histogram(times, bins),
		TimeValues:      times,
		TopErrors:       TopErrors(records, opts.TopErrors),
		DashboardErrors: TopErrors(records, opts.DashboardTopErrors),
		TargetStats:     TargetExceedance(records, opts.TargetSeconds),
		Funnel:          StageFunnel(records, opts.Stages),
		BoxStats:        StageBoxStats(records),
		KPIs:            ComputeKPIs(records, opts.TargetSeconds),
	}
}
