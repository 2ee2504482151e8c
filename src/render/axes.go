package render

import (
	"image"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// 字号(磅)
const (
	sizeSuptitle = 16
	sizeTitle    = 14
	sizeLabel    = 12
	sizeTick     = 10
	sizeValue    = 9
)

// Axes 坐标区，负责数据坐标到像素的换算
type Axes struct {
	fig  *Figure
	box  image.Rectangle
	xmin float64
	xmax float64
	ymin float64
	ymax float64
}

// LegendEntry 图例项
type LegendEntry struct {
	Label string
	Color drawing.Color
	Line  bool // 线条样式，否则为色块
	Dash  []float64
}

// Axes 在box区域创建坐标区
func (f *Figure) Axes(box image.Rectangle) *Axes {
	return &Axes{fig: f, box: box, xmin: 0, xmax: 1, ymin: 0, ymax: 1}
}

func (a *Axes) Box() image.Rectangle { return a.box }

func (a *Axes) SetXRange(min, max float64) {
	if max <= min {
		max = min + 1
	}
	a.xmin, a.xmax = min, max
}

func (a *Axes) SetYRange(min, max float64) {
	if max <= min {
		max = min + 1
	}
	a.ymin, a.ymax = min, max
}

// X 数据x坐标对应的像素列
func (a *Axes) X(v float64) int {
	return a.box.Min.X + int(math.Round((v-a.xmin)/(a.xmax-a.xmin)*float64(a.box.Dx())))
}

// Y 数据y坐标对应的像素行(向上为正)
func (a *Axes) Y(v float64) int {
	return a.box.Max.Y - int(math.Round((v-a.ymin)/(a.ymax-a.ymin)*float64(a.box.Dy())))
}

// Face 填充坐标区底色
func (a *Axes) Face() {
	a.fig.Rect(a.box, a.fig.theme.Face, drawing.ColorTransparent, 0)
}

// YGrid 水平网格线
func (a *Axes) YGrid(ticks []chart.Tick) {
	for _, t := range ticks {
		y := a.Y(t.Value)
		a.fig.Line(a.box.Min.X, y, a.box.Max.X, y, a.fig.theme.Grid, 1)
	}
}

// XGrid 垂直网格线
func (a *Axes) XGrid(ticks []chart.Tick) {
	for _, t := range ticks {
		x := a.X(t.Value)
		a.fig.Line(x, a.box.Min.Y, x, a.box.Max.Y, a.fig.theme.Grid, 1)
	}
}

// YTicks 左侧刻度标签，返回占用的宽度
func (a *Axes) YTicks(ticks []chart.Tick) int {
	gap := int(a.fig.Pt(4))
	width := 0
	for _, t := range ticks {
		r := a.fig.Text(t.Label, a.box.Min.X-gap, a.Y(t.Value), TextStyle{Size: sizeTick, Color: a.fig.theme.Text, H: AlignRight, V: AlignMiddle})
		if r.Dx() > width {
			width = r.Dx()
		}
	}
	return width + gap
}

// XTicks 底部刻度标签，返回占用的高度
func (a *Axes) XTicks(ticks []chart.Tick) int {
	gap := int(a.fig.Pt(4))
	height := 0
	for _, t := range ticks {
		r := a.fig.Text(t.Label, a.X(t.Value), a.box.Max.Y+gap, TextStyle{Size: sizeTick, Color: a.fig.theme.Text, H: AlignCenter, V: AlignTop})
		if h := r.Max.Y - a.box.Max.Y; h > height {
			height = h
		}
	}
	return height
}

// CategoryX 底部分类标签，第i类位于x=i，长标签折行，返回标签占用的高度
func (a *Axes) CategoryX(labels []string, size float64, width int) int {
	gap := int(a.fig.Pt(4))
	height := 0
	for i, l := range labels {
		r := a.fig.Text(wrap(l, width), a.X(float64(i)), a.box.Max.Y+gap, TextStyle{Size: size, Color: a.fig.theme.Text, H: AlignCenter, V: AlignTop})
		if h := r.Max.Y - a.box.Max.Y; h > height {
			height = h
		}
	}
	return height
}

// CategoryY 左侧分类标签，第i类位于y=i，返回标签最大宽度
func (a *Axes) CategoryY(labels []string, size float64) int {
	gap := int(a.fig.Pt(4))
	width := 0
	for i, l := range labels {
		r := a.fig.Text(l, a.box.Min.X-gap, a.Y(float64(i)), TextStyle{Size: size, Color: a.fig.theme.Text, H: AlignRight, V: AlignMiddle})
		if r.Dx() > width {
			width = r.Dx()
		}
	}
	return width + gap
}

// Title 坐标区标题
func (a *Axes) Title(s string, size float64) {
	a.fig.Text(s, a.box.Min.X+a.box.Dx()/2, a.box.Min.Y-int(a.fig.Pt(size*0.8)), TextStyle{Size: size, Color: a.fig.theme.Text, H: AlignCenter, V: AlignBottom})
}

// XLabel x轴名称，offset为刻度标签占用的高度
func (a *Axes) XLabel(s string, size float64, offset int) {
	y := a.box.Max.Y + offset + int(a.fig.Pt(size*0.6))
	a.fig.Text(s, a.box.Min.X+a.box.Dx()/2, y, TextStyle{Size: size, Color: a.fig.theme.Text, H: AlignCenter, V: AlignTop})
}

// YLabel y轴名称，offset为刻度标签占用的宽度
func (a *Axes) YLabel(s string, size float64, offset int) {
	x := a.box.Min.X - offset - int(a.fig.Pt(size*0.9))
	a.fig.VText(s, x, a.box.Min.Y+a.box.Dy()/2, size, a.fig.theme.Text)
}

// Bar 数据坐标中的矩形
func (a *Axes) Bar(x0, x1, y0, y1 float64, fill drawing.Color) {
	a.fig.Rect(image.Rect(a.X(x0), a.Y(y0), a.X(x1), a.Y(y1)), fill, drawing.ColorTransparent, 0)
}

// EdgedBar 带边框的矩形
func (a *Axes) EdgedBar(x0, x1, y0, y1 float64, fill, edge drawing.Color, lineWidth float64) {
	a.fig.Rect(image.Rect(a.X(x0), a.Y(y0), a.X(x1), a.Y(y1)), fill, edge, lineWidth)
}

// HLine 横跨坐标区的水平线
func (a *Axes) HLine(y float64, c drawing.Color, lineWidth float64, dash ...float64) {
	py := a.Y(y)
	a.fig.Line(a.box.Min.X, py, a.box.Max.X, py, c, lineWidth, dash...)
}

// VLine 纵贯坐标区的垂直线
func (a *Axes) VLine(x float64, c drawing.Color, lineWidth float64, dash ...float64) {
	px := a.X(x)
	a.fig.Line(px, a.box.Min.Y, px, a.box.Max.Y, c, lineWidth, dash...)
}

// Text 在数据坐标处写字
func (a *Axes) Text(s string, x, y float64, ts TextStyle) image.Rectangle {
	return a.fig.Text(s, a.X(x), a.Y(y), ts)
}

// Empty 没有数据时在坐标区中央提示
func (a *Axes) Empty() {
	a.fig.Text("No data", a.box.Min.X+a.box.Dx()/2, a.box.Min.Y+a.box.Dy()/2,
		TextStyle{Size: sizeLabel, Color: a.fig.theme.Text, H: AlignCenter, V: AlignMiddle})
}

// Legend 右上角图例，返回图例框
func (a *Axes) Legend(entries []LegendEntry, size float64) image.Rectangle {
	if len(entries) == 0 {
		return image.Rectangle{}
	}
	f := a.fig
	pad := int(f.Pt(6))
	swatch := int(f.Pt(20))
	rowH := int(f.Pt(size) * 1.6)
	textW := 0
	for _, e := range entries {
		if w, _ := f.MeasureText(e.Label, size); w > textW {
			textW = w
		}
	}
	w := pad*3 + swatch + textW
	h := pad*2 + rowH*len(entries)
	box := image.Rect(a.box.Max.X-pad-w, a.box.Min.Y+pad, a.box.Max.X-pad, a.box.Min.Y+pad+h)
	f.RoundRect(box, pad/2, f.theme.Background.WithAlpha(204), drawing.ColorFromHex("cccccc"), 0.8)

	for i, e := range entries {
		cy := box.Min.Y + pad + rowH*i + rowH/2
		x0 := box.Min.X + pad
		if e.Line {
			f.Line(x0, cy, x0+swatch, cy, e.Color, 2, e.Dash...)
		} else {
			half := int(f.Pt(size) * 0.35)
			f.Rect(image.Rect(x0, cy-half, x0+swatch, cy+half), e.Color, drawing.ColorTransparent, 0)
		}
		f.Text(e.Label, x0+swatch+pad, cy, TextStyle{Size: size, Color: f.theme.Text, V: AlignMiddle})
	}
	return box
}
