// Package render 生成KYC漏斗报表的八张图表
package render

import (
	"KycInsight/src/config"
	"KycInsight/src/processor"
	"fmt"
	"path/filepath"
)

// 图表文件名
const (
	FileStageDistribution = "1_stage_distribution.png"
	FileFailureRate       = "2_failure_rate_by_stage.png"
	FileAttemptPattern    = "3_attempt_pattern_analysis.png"
	FileTimePerformance   = "4_time_performance_analysis.png"
	FileErrorTypes        = "5_error_type_distribution.png"
	FileTimeVsTarget      = "6_time_vs_target_by_stage.png"
	FileDashboard         = "7_comprehensive_dashboard.png"
	FileJourneyFlow       = "8_customer_journey_flow.png"
)

// FileNames 按生成顺序排列的图表文件名
var FileNames = []string{
	FileStageDistribution,
	FileFailureRate,
	FileAttemptPattern,
	FileTimePerformance,
	FileErrorTypes,
	FileTimeVsTarget,
	FileDashboard,
	FileJourneyFlow,
}

// Options 图表参数
type Options struct {
	DPI                float64
	Stages             []string // 客户旅程图的阶段顺序
	TopErrors          int
	DashboardTopErrors int
}

// OptionsFromConfig 从配置生成图表参数
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DPI:                cfg.DPI,
		Stages:             cfg.Stages,
		TopErrors:          cfg.TopErrors,
		DashboardTopErrors: cfg.DashboardTopErrors,
	}
}

// Renderer 依次生成各图表，彼此独立
type Renderer struct {
	theme Theme
	opts  Options
}

// New 创建Renderer
func New(theme Theme, opts Options) *Renderer {
	if opts.DPI <= 0 {
		opts.DPI = 300
	}
	return &Renderer{theme: theme, opts: opts}
}

type spec struct {
	file   string
	width  float64 // 英寸
	height float64
	draw   func(*Figure, processor.Summary) error
}

func (r *Renderer) specs() []spec {
	return []spec{
		{FileStageDistribution, 10, 6, r.stageDistribution},
		{FileFailureRate, 10, 6, r.failureRate},
		{FileAttemptPattern, 14, 6, r.attemptPattern},
		{FileTimePerformance, 14, 6, r.timePerformance},
		{FileErrorTypes, 12, 8, r.errorTypes},
		{FileTimeVsTarget, 12, 7, r.timeVsTarget},
		{FileDashboard, 16, 10, r.dashboard},
		{FileJourneyFlow, 14, 8, r.journeyFlow},
	}
}

// RenderAll 生成全部图表，遇到第一个失败即停止
// 返回已生成文件的路径
func (r *Renderer) RenderAll(dir string, s processor.Summary) ([]string, error) {
	paths := make([]string, 0, len(FileNames))
	for _, sp := range r.specs() {
		path := filepath.Join(dir, sp.file)
		if err := r.render(sp, s, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Render 生成单张图表
func (r *Renderer) Render(dir, file string, s processor.Summary) (string, error) {
	for _, sp := range r.specs() {
		if sp.file == file {
			path := filepath.Join(dir, sp.file)
			return path, r.render(sp, s, path)
		}
	}
	return "", fmt.Errorf("unknown chart %q", file)
}

func (r *Renderer) render(sp spec, s processor.Summary, path string) error {
	fig, err := NewFigure(sp.width, sp.height, r.opts.DPI, r.theme)
	if err != nil {
		return fmt.Errorf("render %s: %w", sp.file, err)
	}
	if err := sp.draw(fig, s); err != nil {
		return fmt.Errorf("render %s: %w", sp.file, err)
	}
	if err := fig.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", sp.file, err)
	}
	return nil
}
