package render

import (
	"KycInsight/src/processor"
	"fmt"
	"image"
	"math"
	"sort"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// 仪表盘字号比单图小一号
const (
	sizePanelTitle = 12
	sizePanelLabel = 10
	sizePanelTick  = 9
	sizePanelValue = 8
)

func (r *Renderer) dashboard(f *Figure, s processor.Summary) error {
	th := f.Theme()
	f.Text("Digital KYC Process - Comprehensive Analysis Dashboard", f.Width()/2, int(f.Pt(8)),
		TextStyle{Size: sizeSuptitle, Color: th.Text, H: AlignCenter})

	if err := r.stagePie(f, s.StageCounts, f.Region(0.04, 0.10, 0.31, 0.33)); err != nil {
		return err
	}
	r.failureBars(f, s.StageFailures, f.Region(0.37, 0.10, 0.64, 0.33))
	r.attemptBars(f, s.AttemptCounts, f.Region(0.74, 0.10, 0.98, 0.33))
	r.timeBoxes(f, s.BoxStats, s.TargetSeconds, f.Region(0.07, 0.41, 0.64, 0.64))
	r.errorBars(f, s.DashboardErrors, f.Region(0.70, 0.41, 0.98, 0.64))
	r.kpiPanel(f, s.KPIs, s.TargetSeconds, f.Region(0.04, 0.73, 0.98, 0.97))
	return nil
}

func panelTitle(f *Figure, s string, box image.Rectangle) {
	f.Text(s, box.Min.X+box.Dx()/2, box.Min.Y-int(f.Pt(6)),
		TextStyle{Size: sizePanelTitle, Color: f.Theme().Text, H: AlignCenter, V: AlignBottom})
}

// stagePie 左侧饼图，右侧阶段图例
func (r *Renderer) stagePie(f *Figure, counts []processor.CategoryCount, cell image.Rectangle) error {
	th := f.Theme()
	panelTitle(f, "Stage Distribution", cell)
	if len(counts) == 0 {
		ax := f.Axes(cell)
		ax.Empty()
		return nil
	}

	side := cell.Dy()
	pieRect := image.Rect(cell.Min.X, cell.Min.Y, cell.Min.X+side, cell.Max.Y)
	labelStyle := func(i int) chart.Style {
		return chart.Style{
			FillColor:   th.Color(i),
			StrokeColor: th.Background,
			StrokeWidth: f.Pt(1),
			FontColor:   th.Background,
			FontSize:    sizePanelValue,
		}
	}

	if len(counts) == 1 {
		cx, cy := pieRect.Min.X+side/2, pieRect.Min.Y+side/2
		f.Dot(cx, cy, float64(side)/2-f.Pt(4), th.Color(0))
		f.Text(counts[0].PercentLabel(), cx, cy, TextStyle{Size: sizePanelValue, Color: th.Background, H: AlignCenter, V: AlignMiddle})
	} else {
		values := make([]chart.Value, len(counts))
		for i, c := range counts {
			values[i] = chart.Value{Value: float64(c.Count), Label: fmt.Sprintf("%1.1f%%", c.Percent), Style: labelStyle(i)}
		}
		pie := chart.PieChart{
			Width:      side,
			Height:     side,
			DPI:        f.DPI(),
			Background: chart.Style{FillColor: th.Background, StrokeColor: th.Background, Padding: chart.Box{Top: 4, Left: 4, Right: 4, Bottom: 4}},
			Canvas:     chart.Style{FillColor: th.Background, StrokeColor: th.Background},
			Values:     values,
		}
		w := &chart.ImageWriter{}
		if err := pie.Render(chart.PNG, w); err != nil {
			return fmt.Errorf("stage pie: %w", err)
		}
		img, err := w.Image()
		if err != nil {
			return fmt.Errorf("stage pie: %w", err)
		}
		f.Embed(img, pieRect)
	}

	// 阶段名称图例
	rowH := int(f.Pt(sizePanelTick) * 1.6)
	x := pieRect.Max.X + int(f.Pt(8))
	y := cell.Min.Y + (cell.Dy()-rowH*len(counts))/2
	sw := int(f.Pt(8))
	for i, c := range counts {
		cy := y + rowH*i + rowH/2
		f.Rect(image.Rect(x, cy-sw/2, x+sw, cy+sw/2), th.Color(i), drawing.ColorTransparent, 0)
		f.Text(c.Label, x+sw+int(f.Pt(4)), cy, TextStyle{Size: sizePanelTick, Color: th.Text, V: AlignMiddle})
	}
	return nil
}

// failureBars 各阶段平均失败率，升序排列
func (r *Renderer) failureBars(f *Figure, stats []processor.StageFailure, cell image.Rectangle) {
	th := f.Theme()
	sorted := append([]processor.StageFailure(nil), stats...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Mean < sorted[j].Mean })
	labels := make([]string, len(sorted))
	maxVal := 0.0
	for i, st := range sorted {
		labels[i] = st.Stage
		maxVal = math.Max(maxVal, st.Mean)
	}

	ax := f.Axes(barRows(f, cell, labels, sizePanelTick))
	ax.Face()
	xt := rowAxes(ax, len(sorted), maxVal, 1.3)
	for i, st := range sorted {
		y := float64(i)
		ax.Bar(0, st.Mean, y-0.4, y+0.4, th.Color(0).WithAlpha(barAlpha))
		rowLabel(ax, fmt.Sprintf("%.1f%%", st.Mean), st.Mean, y, sizePanelValue)
	}
	if len(sorted) == 0 {
		ax.Empty()
	}
	ax.CategoryY(labels, sizePanelTick)
	h := ax.XTicks(xt)
	ax.XLabel("Avg Failure %", sizePanelLabel, h)
	panelTitle(f, "Average Failure Rate by Stage", ax.Box())
}

func (r *Renderer) attemptBars(f *Figure, counts []processor.AttemptCount, cell image.Rectangle) {
	th := f.Theme()
	ax := f.Axes(cell)
	ax.Face()
	labels := make([]string, len(counts))
	maxCount := 0.0
	for i, c := range counts {
		labels[i] = strconv.Itoa(c.Attempt)
		maxCount = math.Max(maxCount, float64(c.Count))
	}
	yt := columnAxes(ax, len(counts), maxCount, 1.1)
	for i, c := range counts {
		x := float64(i)
		ax.Bar(x-0.4, x+0.4, 0, float64(c.Count), th.AttemptColor(c.Attempt))
	}
	if len(counts) == 0 {
		ax.Empty()
	}
	w := ax.YTicks(yt)
	h := ax.CategoryX(labels, sizePanelTick, 8)
	ax.XLabel("Attempt #", sizePanelLabel, h)
	ax.YLabel("Count", sizePanelLabel, w)
	panelTitle(f, "Attempt Count Distribution", ax.Box())
}

// timeBoxes 各阶段耗时箱线图，离群点画空心圆
func (r *Renderer) timeBoxes(f *Figure, stats []processor.BoxStat, target float64, cell image.Rectangle) {
	th := f.Theme()
	ax := f.Axes(cell)
	ax.Face()
	labels := make([]string, len(stats))
	lo, hi := 0.0, target
	for i, b := range stats {
		labels[i] = b.Stage
		lo = math.Min(lo, b.WhiskerLo)
		hi = math.Max(hi, b.WhiskerHi)
		for _, o := range b.Outliers {
			lo = math.Min(lo, o)
			hi = math.Max(hi, o)
		}
	}
	yt := niceTicks(lo, math.Max(hi*1.08, lo+1), 6)
	ax.SetXRange(-0.5, math.Max(float64(len(stats)), 1)-0.5)
	ax.SetYRange(tickRange(yt))
	ax.YGrid(yt)

	const half = 0.25
	edge := 1.0
	for i, b := range stats {
		x := float64(i)
		ax.fig.Line(ax.X(x), ax.Y(b.WhiskerLo), ax.X(x), ax.Y(b.Q1), th.Edge, edge)
		ax.fig.Line(ax.X(x), ax.Y(b.Q3), ax.X(x), ax.Y(b.WhiskerHi), th.Edge, edge)
		for _, w := range []float64{b.WhiskerLo, b.WhiskerHi} {
			ax.fig.Line(ax.X(x-half/2), ax.Y(w), ax.X(x+half/2), ax.Y(w), th.Edge, edge)
		}
		ax.EdgedBar(x-half, x+half, b.Q1, b.Q3, th.Color(0).WithAlpha(178), th.Edge, edge)
		ax.fig.Line(ax.X(x-half), ax.Y(b.Median), ax.X(x+half), ax.Y(b.Median), th.Color(3), 2)
		for _, o := range b.Outliers {
			ax.fig.Ring(ax.X(x), ax.Y(o), f.Pt(3), th.Edge, edge)
		}
	}
	ax.HLine(target, th.Target, 2, dashed...)
	if len(stats) == 0 {
		ax.Empty()
	}
	w := ax.YTicks(yt)
	ax.CategoryX(labels, sizePanelTick, 16)
	ax.YLabel("Time (seconds)", sizePanelLabel, w)
	panelTitle(f, "Time Distribution by Stage (Box Plot)", ax.Box())
	ax.Legend([]LegendEntry{{Label: fmt.Sprintf("Target (%gs)", target), Color: th.Target, Line: true, Dash: dashed}}, sizePanelTick)
}

func (r *Renderer) errorBars(f *Figure, errs []processor.ErrorCount, cell image.Rectangle) {
	labels := make([]string, len(errs))
	maxCount := 0.0
	for i, e := range errs {
		labels[i] = truncate(e.Error, 30)
		maxCount = math.Max(maxCount, float64(e.Count))
	}
	ax := f.Axes(barRows(f, cell, labels, sizePanelValue))
	ax.Face()
	xt := rowAxes(ax, len(errs), maxCount, 1.1)
	colors := f.Theme().Greens(len(errs))
	for i, e := range errs {
		y := float64(i)
		ax.Bar(0, float64(e.Count), y-0.4, y+0.4, colors[i])
	}
	if len(errs) == 0 {
		ax.Empty()
	}
	ax.CategoryY(labels, sizePanelValue)
	h := ax.XTicks(xt)
	ax.XLabel("Count", sizePanelLabel, h)
	panelTitle(f, fmt.Sprintf("Top %d Error Types", r.opts.DashboardTopErrors), ax.Box())
}

// kpiPanel 圆角框内的指标摘要
func (r *Renderer) kpiPanel(f *Figure, k processor.KPIs, target float64, cell image.Rectangle) {
	th := f.Theme()
	f.RoundRect(cell, int(f.Pt(10)), th.Panel, th.Color(0), 2)

	lines := append([]string{processor.KPITitle, ""}, k.Lines(target)...)
	lh := int(f.Pt(sizeLabel) * lineHeight * 1.2)
	y := cell.Min.Y + (cell.Dy()-lh*len(lines))/2
	x := cell.Min.X + int(float64(cell.Dx())*0.05)
	for i, l := range lines {
		f.Text(l, x, y+lh*i, TextStyle{Size: sizeLabel, Color: th.Text})
	}
}
