package render

import (
	"KycInsight/src/processor"
	"fmt"
	"image"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
)

// 虚线样式(磅)，对应2磅线宽的"--"
var dashed = []float64{7.4, 3.2}

const barAlpha = 204

func valueText(th Theme, size float64, h HAlign, v VAlign) TextStyle {
	return TextStyle{Size: size, Color: th.Text, H: h, V: v}
}

// columnAxes 竖向分类柱状图的坐标范围，headroom为顶部留给数值标签的倍数
func columnAxes(ax *Axes, n int, maxVal, headroom float64) []chart.Tick {
	yt := niceTicks(0, math.Max(maxVal*headroom, 1), 6)
	ax.SetXRange(-0.5, math.Max(float64(n), 1)-0.5)
	ax.SetYRange(tickRange(yt))
	ax.YGrid(yt)
	return yt
}

func finishColumns(ax *Axes, yt []chart.Tick, labels []string, xName, yName string) {
	w := ax.YTicks(yt)
	h := ax.CategoryX(labels, sizeTick, 14)
	ax.XLabel(xName, sizeLabel, h)
	ax.YLabel(yName, sizeLabel, w)
}

// barRows 横向条形图的左边界：先量出分类标签宽度再让出位置
func barRows(f *Figure, region image.Rectangle, labels []string, size float64) image.Rectangle {
	labelW := 0
	for _, l := range labels {
		if w, _ := f.MeasureText(l, size); w > labelW {
			labelW = w
		}
	}
	box := region
	box.Min.X += labelW + int(f.Pt(4))
	if minW := region.Dx() / 3; box.Dx() < minW {
		box.Min.X = region.Max.X - minW
	}
	return box
}

// rowAxes 横向条形图的坐标范围，第i类位于y=i
func rowAxes(ax *Axes, n int, maxVal, headroom float64) []chart.Tick {
	xt := niceTicks(0, math.Max(maxVal*headroom, 1), 6)
	ax.SetXRange(tickRange(xt))
	ax.SetYRange(-0.5, math.Max(float64(n), 1)-0.5)
	ax.XGrid(xt)
	return xt
}

// rowLabel 条形末端右侧的数值标签
func rowLabel(ax *Axes, s string, x, y float64, size float64) {
	f := ax.fig
	f.Text(s, ax.X(x)+int(f.Pt(3)), ax.Y(y), valueText(f.theme, size, AlignLeft, AlignMiddle))
}

func (r *Renderer) stageDistribution(f *Figure, s processor.Summary) error {
	th := f.Theme()
	ax := f.Axes(f.Region(0.10, 0.10, 0.97, 0.74))
	ax.Face()

	counts := s.StageCounts
	labels := make([]string, len(counts))
	maxCount := 0.0
	for i, c := range counts {
		labels[i] = c.Label
		maxCount = math.Max(maxCount, float64(c.Count))
	}
	yt := columnAxes(ax, len(counts), maxCount, 1.2)
	for i, c := range counts {
		x := float64(i)
		ax.Bar(x-0.4, x+0.4, 0, float64(c.Count), th.Color(i))
		ax.Text(fmt.Sprintf("%d\n(%s)", c.Count, c.PercentLabel()), x, float64(c.Count),
			valueText(th, sizeTick, AlignCenter, AlignBottom))
	}
	if len(counts) == 0 {
		ax.Empty()
	}
	finishColumns(ax, yt, labels, "Stage Name", "Number of Records")
	ax.Title("Stage Distribution Analysis", sizeTitle)
	return nil
}

func (r *Renderer) failureRate(f *Figure, s processor.Summary) error {
	th := f.Theme()
	ax := f.Axes(f.Region(0.10, 0.10, 0.97, 0.74))
	ax.Face()

	stats := s.StageFailures
	labels := make([]string, len(stats))
	maxVal := 0.0
	for i, st := range stats {
		labels[i] = st.Stage
		maxVal = math.Max(maxVal, st.Max)
	}
	yt := columnAxes(ax, len(stats), maxVal, 1.15)

	const width = 0.35
	meanColor := th.Color(0).WithAlpha(barAlpha)
	maxColor := th.Color(1).WithAlpha(barAlpha)
	for i, st := range stats {
		x := float64(i)
		ax.Bar(x-width, x, 0, st.Mean, meanColor)
		ax.Bar(x, x+width, 0, st.Max, maxColor)
		ax.Text(fmt.Sprintf("%.1f%%", st.Mean), x-width/2, st.Mean, valueText(th, sizeValue, AlignCenter, AlignBottom))
		ax.Text(fmt.Sprintf("%.1f%%", st.Max), x+width/2, st.Max, valueText(th, sizeValue, AlignCenter, AlignBottom))
	}
	if len(stats) == 0 {
		ax.Empty()
	}
	finishColumns(ax, yt, labels, "Stage Name", "Failure Percentage (%)")
	ax.Title("Failure Rate Analysis by Stage", sizeTitle)
	if len(stats) > 0 {
		ax.Legend([]LegendEntry{
			{Label: "Average Failure %", Color: meanColor},
			{Label: "Maximum Failure %", Color: maxColor},
		}, sizeTick)
	}
	return nil
}

func (r *Renderer) errorTypes(f *Figure, s processor.Summary) error {
	th := f.Theme()
	errs := s.TopErrors
	labels := make([]string, len(errs))
	maxCount := 0.0
	for i, e := range errs {
		labels[i] = truncate(e.Error, 50)
		maxCount = math.Max(maxCount, float64(e.Count))
	}

	ax := f.Axes(barRows(f, f.Region(0.02, 0.08, 0.97, 0.92), labels, sizeTick))
	ax.Face()
	xt := rowAxes(ax, len(errs), maxCount, 1.25)
	colors := th.Greens(len(errs))
	for i, e := range errs {
		y := float64(i)
		ax.Bar(0, float64(e.Count), y-0.4, y+0.4, colors[i])
		rowLabel(ax, fmt.Sprintf("%d (%.1f%%)", e.Count, e.Percent), float64(e.Count), y, sizeValue)
	}
	if len(errs) == 0 {
		ax.Empty()
	}
	ax.CategoryY(labels, sizeTick)
	h := ax.XTicks(xt)
	ax.XLabel("Number of Occurrences", sizeLabel, h)
	ax.Title(fmt.Sprintf("Top %d Error Types Distribution", r.opts.TopErrors), sizeTitle)
	return nil
}

func (r *Renderer) timeVsTarget(f *Figure, s processor.Summary) error {
	th := f.Theme()
	ax := f.Axes(f.Region(0.09, 0.10, 0.97, 0.76))
	ax.Face()

	stats := s.TargetStats
	labels := make([]string, len(stats))
	maxVal := 100.0
	for i, st := range stats {
		labels[i] = st.Stage
		maxVal = math.Max(maxVal, st.ExceedRate)
		if st.HasMean {
			maxVal = math.Max(maxVal, st.MeanPctOfTarget)
		}
	}
	yt := columnAxes(ax, len(stats), maxVal, 1.12)

	const width = 0.35
	exceedColor := th.Danger.WithAlpha(barAlpha)
	meanColor := th.Color(0).WithAlpha(barAlpha)
	refColor := th.Target.WithAlpha(128)
	ax.HLine(100, refColor, 2, dashed...)
	for i, st := range stats {
		x := float64(i)
		ax.Bar(x-width, x, 0, st.ExceedRate, exceedColor)
		ax.Text(fmt.Sprintf("%.1f%%", st.ExceedRate), x-width/2, st.ExceedRate, valueText(th, sizeValue, AlignCenter, AlignBottom))
		if st.HasMean {
			ax.Bar(x, x+width, 0, st.MeanPctOfTarget, meanColor)
			ax.Text(fmt.Sprintf("%.1f%%", st.MeanPctOfTarget), x+width/2, st.MeanPctOfTarget, valueText(th, sizeValue, AlignCenter, AlignBottom))
		}
	}
	finishColumns(ax, yt, labels, "Stage Name", "Percentage (%)")
	ax.Title("Time Performance vs Target by Stage", sizeTitle)
	ax.Legend([]LegendEntry{
		{Label: fmt.Sprintf("%% Exceeding %gs Target", s.TargetSeconds), Color: exceedColor},
		{Label: "Avg Time as % of Target", Color: meanColor},
		{Label: "100% (Target)", Color: refColor, Line: true, Dash: dashed},
	}, sizeTick)
	return nil
}
