package render

import (
	"KycInsight/src/processor"
	"fmt"
	"image"
	"math"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

func (r *Renderer) attemptPattern(f *Figure, s processor.Summary) error {
	th := f.Theme()

	left := f.Axes(f.Region(0.06, 0.12, 0.47, 0.80))
	left.Face()
	counts := s.AttemptCounts
	labels := make([]string, len(counts))
	maxCount := 0.0
	for i, c := range counts {
		labels[i] = strconv.Itoa(c.Attempt)
		maxCount = math.Max(maxCount, float64(c.Count))
	}
	yt := columnAxes(left, len(counts), maxCount, 1.2)
	for i, c := range counts {
		x := float64(i)
		left.Bar(x-0.4, x+0.4, 0, float64(c.Count), th.AttemptColor(c.Attempt))
		left.Text(fmt.Sprintf("%d\n(%.1f%%)", c.Count, c.Percent), x, float64(c.Count),
			valueText(th, sizeTick, AlignCenter, AlignBottom))
	}
	if len(counts) == 0 {
		left.Empty()
	}
	finishColumns(left, yt, labels, "Attempt Number", "Number of Records")
	left.Title("Attempt Count Distribution", sizeTitle)

	rect := f.Region(0.52, 0.02, 0.99, 0.97)
	if len(s.AttemptFailures) == 0 {
		ax := f.Axes(f.Region(0.58, 0.12, 0.97, 0.80))
		ax.Face()
		ax.Empty()
		ax.Title("Failure Rate Progression by Attempt", sizeTitle)
		return nil
	}
	img, err := r.progressionChart(f, s.AttemptFailures, rect)
	if err != nil {
		return err
	}
	f.Embed(img, rect)
	return nil
}

// progressionChart 失败率随尝试次数的折线，带均值±标准差区间
func (r *Renderer) progressionChart(f *Figure, stats []processor.AttemptFailure, rect image.Rectangle) (image.Image, error) {
	th := f.Theme()
	n := len(stats)
	xs := make([]float64, n)
	means := make([]float64, n)
	lower := make([]float64, n)
	upper := make([]float64, n)
	xt := []chart.Tick{{Value: float64(stats[0].Attempt) - 0.5}}
	var notes []chart.Value2
	hi := 0.0
	for i, st := range stats {
		xs[i] = float64(st.Attempt)
		means[i] = st.Mean
		lower[i] = st.Mean - st.Std
		upper[i] = st.Mean + st.Std
		hi = math.Max(hi, upper[i])
		xt = append(xt, chart.Tick{Value: xs[i], Label: strconv.Itoa(st.Attempt)})
		notes = append(notes, chart.Value2{XValue: xs[i], YValue: st.Mean, Label: fmt.Sprintf("%.1f%%", st.Mean)})
	}
	xt = append(xt, chart.Tick{Value: float64(stats[n-1].Attempt) + 0.5})
	lo := 0.0
	for _, v := range lower {
		lo = math.Min(lo, v)
	}
	yt := niceTicks(lo, math.Max(hi*1.1, 1), 6)

	pt := func(v float64) int { return int(f.Pt(v)) }
	text := chart.Style{FontSize: sizeTick, FontColor: th.Text}
	name := chart.Style{FontSize: sizeLabel, FontColor: th.Text}
	grid := chart.Style{StrokeColor: th.Grid, StrokeWidth: f.Pt(1)}
	axisStyle := chart.Style{FontSize: sizeTick, FontColor: th.Text, StrokeColor: drawing.ColorTransparent}

	c := chart.Chart{
		Title:      "Failure Rate Progression by Attempt",
		TitleStyle: chart.Style{FontSize: sizeTitle, FontColor: th.Text, Padding: chart.Box{Top: pt(12)}},
		Width:      rect.Dx(),
		Height:     rect.Dy(),
		DPI:        f.DPI(),
		Background: chart.Style{
			FillColor:   th.Background,
			StrokeColor: th.Background,
			Padding:     chart.Box{Top: pt(44), Left: pt(8), Right: pt(12), Bottom: pt(8)},
		},
		Canvas: chart.Style{FillColor: th.Face, StrokeColor: th.Face},
		XAxis: chart.XAxis{
			Name:           "Attempt Number",
			NameStyle:      name,
			Style:          axisStyle,
			TickStyle:      text,
			Ticks:          xt,
			GridMajorStyle: grid,
			GridMinorStyle: grid,
		},
		YAxis: chart.YAxis{Style: chart.Hidden(), Ticks: yt},
		YAxisSecondary: chart.YAxis{
			Name:           "Failure Percentage (%)",
			NameStyle:      name,
			Style:          axisStyle,
			Ticks:          yt,
			GridMajorStyle: grid,
			GridMinorStyle: grid,
		},
		Series: []chart.Series{
			bandSeries{
				Name:    "Std Dev",
				Style:   chart.Style{FillColor: th.Color(0).WithAlpha(77)},
				YAxis:   chart.YAxisSecondary,
				XValues: xs,
				Lower:   lower,
				Upper:   upper,
			},
			chart.ContinuousSeries{
				Name: "Average Failure %",
				Style: chart.Style{
					StrokeColor: th.Color(0),
					StrokeWidth: f.Pt(3),
					DotColor:    th.Color(0),
					DotWidth:    f.Pt(4),
				},
				YAxis:   chart.YAxisSecondary,
				XValues: xs,
				YValues: means,
			},
			chart.AnnotationSeries{
				Style: chart.Style{
					FontSize:    sizeValue,
					FontColor:   th.Text,
					FillColor:   th.Background.WithAlpha(230),
					StrokeColor: th.Color(0),
					StrokeWidth: f.Pt(0.8),
					Padding:     chart.Box{Top: pt(2), Left: pt(3), Right: pt(3), Bottom: pt(2)},
				},
				YAxis:       chart.YAxisSecondary,
				Annotations: notes,
			},
		},
	}

	w := &chart.ImageWriter{}
	if err := c.Render(chart.PNG, w); err != nil {
		return nil, fmt.Errorf("attempt progression: %w", err)
	}
	return w.Image()
}

func (r *Renderer) timePerformance(f *Figure, s processor.Summary) error {
	th := f.Theme()
	target := s.TargetSeconds
	targetLabel := fmt.Sprintf("Target (%g seconds)", target)

	// 左: 各阶段平均耗时，超过目标标红
	times := s.StageTimes
	labels := make([]string, len(times))
	maxVal := target
	for i, st := range times {
		labels[i] = st.Stage
		maxVal = math.Max(maxVal, st.Mean)
	}
	ax := f.Axes(barRows(f, f.Region(0.05, 0.12, 0.46, 0.84), labels, sizeTick))
	ax.Face()
	xt := rowAxes(ax, len(times), maxVal, 1.2)
	for i, st := range times {
		c := th.Color(0)
		if st.OverTarget {
			c = th.Danger
		}
		y := float64(i)
		ax.Bar(0, st.Mean, y-0.4, y+0.4, c.WithAlpha(barAlpha))
		rowLabel(ax, fmt.Sprintf("%.1fs", st.Mean), st.Mean, y, sizeValue)
	}
	ax.VLine(target, th.Target, 2, dashed...)
	if len(times) == 0 {
		ax.Empty()
	}
	w := ax.CategoryY(labels, sizeTick)
	h := ax.XTicks(xt)
	ax.XLabel("Average Time (seconds)", sizeLabel, h)
	ax.YLabel("Stage Name", sizeLabel, w)
	ax.Title("Average Processing Time by Stage", sizeTitle)
	ax.Legend([]LegendEntry{{Label: targetLabel, Color: th.Target, Line: true, Dash: dashed}}, sizeTick)

	// 右: 全部耗时的直方图
	hist := f.Axes(f.Region(0.56, 0.12, 0.98, 0.84))
	hist.Face()
	hist.Title("Time Distribution Across All Stages", sizeTitle)
	bins := s.TimeHistogram
	if len(bins) == 0 {
		hist.Empty()
		return nil
	}
	lo, hi := bins[0].Lo, bins[len(bins)-1].Hi
	lo, hi = math.Min(lo, target), math.Max(hi, target)
	if s.KPIs.HasMeanTime {
		lo, hi = math.Min(lo, s.KPIs.MeanTime), math.Max(hi, s.KPIs.MeanTime)
	}
	maxBin := 0.0
	for _, b := range bins {
		maxBin = math.Max(maxBin, float64(b.Count))
	}
	pad := (hi - lo) * 0.05
	hxt := niceTicks(lo-pad, hi+pad, 7)
	hyt := niceTicks(0, math.Max(maxBin*1.1, 1), 6)
	hist.SetXRange(lo-pad, hi+pad)
	hist.SetYRange(tickRange(hyt))
	hist.XGrid(inRange(hxt, lo-pad, hi+pad))
	hist.YGrid(hyt)
	for _, b := range bins {
		hist.EdgedBar(b.Lo, b.Hi, 0, float64(b.Count), th.Color(0).WithAlpha(178), th.Edge, 0.8)
	}
	hist.VLine(target, th.Target, 2, dashed...)
	entries := []LegendEntry{{Label: targetLabel, Color: th.Target, Line: true, Dash: dashed}}
	if s.KPIs.HasMeanTime {
		hist.VLine(s.KPIs.MeanTime, th.Mean, 2, dashed...)
		entries = append(entries, LegendEntry{Label: fmt.Sprintf("Mean (%.1fs)", s.KPIs.MeanTime), Color: th.Mean, Line: true, Dash: dashed})
	}
	yw := hist.YTicks(hyt)
	xh := hist.XTicks(inRange(hxt, lo-pad, hi+pad))
	hist.XLabel("Time Taken (seconds)", sizeLabel, xh)
	hist.YLabel("Frequency", sizeLabel, yw)
	legend := hist.Legend(entries, sizeTick)

	exceeding := 0
	for _, ts := range s.TargetStats {
		exceeding += ts.Exceeding
	}
	callout := fmt.Sprintf("Exceeding Target: %d/%d (%.1f%%)", exceeding, s.KPIs.TotalRecords, s.KPIs.ExceedTargetRate)
	r.callout(f, callout, legend.Max.X, legend.Max.Y+int(f.Pt(6)))
	return nil
}

// callout 右上角对齐的圆角说明框
func (r *Renderer) callout(f *Figure, s string, right, top int) {
	th := f.Theme()
	pad := int(f.Pt(5))
	w, h := f.MeasureText(s, sizeTick)
	box := image.Rect(right-w-2*pad, top, right, top+h+2*pad)
	f.RoundRect(box, pad, th.Callout, th.Edge.WithAlpha(128), 0.8)
	f.Text(s, box.Min.X+pad, box.Min.Y+pad, TextStyle{Size: sizeTick, Color: th.Text})
}

// inRange 去掉落在坐标范围外的刻度
func inRange(ticks []chart.Tick, min, max float64) []chart.Tick {
	out := make([]chart.Tick, 0, len(ticks))
	for _, t := range ticks {
		if t.Value >= min-1e-9 && t.Value <= max+1e-9 {
			out = append(out, t)
		}
	}
	return out
}
