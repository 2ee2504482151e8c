package render

import (
	"fmt"

	chart "github.com/wcharczuk/go-chart/v2"
)

// bandSeries 上下界之间的填充带，用于均值±标准差
type bandSeries struct {
	Name    string
	Style   chart.Style
	YAxis   chart.YAxisType
	XValues []float64
	Lower   []float64
	Upper   []float64
}

func (b bandSeries) GetName() string { return b.Name }

func (b bandSeries) GetYAxis() chart.YAxisType { return b.YAxis }

func (b bandSeries) GetStyle() chart.Style { return b.Style }

func (b bandSeries) Len() int { return len(b.XValues) }

func (b bandSeries) GetBoundedValues(i int) (x, y1, y2 float64) {
	return b.XValues[i], b.Upper[i], b.Lower[i]
}

func (b bandSeries) Validate() error {
	if len(b.Lower) != len(b.XValues) || len(b.Upper) != len(b.XValues) {
		return fmt.Errorf("band %q: bounds length mismatch", b.Name)
	}
	return nil
}

// Render 少于两个点时不填充
func (b bandSeries) Render(r chart.Renderer, canvasBox chart.Box, xrange, yrange chart.Range, defaults chart.Style) {
	n := len(b.XValues)
	if n < 2 {
		return
	}
	x := func(v float64) int { return canvasBox.Left + xrange.Translate(v) }
	y := func(v float64) int { return canvasBox.Bottom - yrange.Translate(v) }

	r.SetFillColor(b.Style.FillColor)
	r.SetStrokeWidth(0)
	r.MoveTo(x(b.XValues[0]), y(b.Upper[0]))
	for i := 1; i < n; i++ {
		r.LineTo(x(b.XValues[i]), y(b.Upper[i]))
	}
	for i := n - 1; i >= 0; i-- {
		r.LineTo(x(b.XValues[i]), y(b.Lower[i]))
	}
	r.Close()
	r.Fill()
}
