package render

import (
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	xdraw "golang.org/x/image/draw"
)

// HAlign 文本水平对齐
type HAlign int

const (
	AlignLeft HAlign = iota
	AlignCenter
	AlignRight
)

// VAlign 文本垂直对齐
type VAlign int

const (
	AlignTop VAlign = iota
	AlignMiddle
	AlignBottom
)

// TextStyle 文本样式，Size单位为磅
type TextStyle struct {
	Size  float64
	Color drawing.Color
	H     HAlign
	V     VAlign
}

const lineHeight = 1.25

type overlay struct {
	img  image.Image
	rect image.Rectangle
}

// Figure 一张图片，尺寸按英寸×DPI换算为像素
type Figure struct {
	r      chart.Renderer
	width  int
	height int
	dpi    float64
	theme  Theme

	overlays []overlay
}

// NewFigure 创建画布并填充背景色
func NewFigure(widthIn, heightIn, dpi float64, theme Theme) (*Figure, error) {
	if widthIn <= 0 || heightIn <= 0 || dpi <= 0 {
		return nil, fmt.Errorf("invalid figure size %.1fx%.1f in at %.0f dpi", widthIn, heightIn, dpi)
	}
	w := int(math.Round(widthIn * dpi))
	h := int(math.Round(heightIn * dpi))

	r, err := chart.PNG(w, h)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	r.SetDPI(dpi)
	r.SetFont(font)

	f := &Figure{r: r, width: w, height: h, dpi: dpi, theme: theme}
	f.Rect(image.Rect(0, 0, w, h), theme.Background, drawing.ColorTransparent, 0)
	return f, nil
}

func (f *Figure) Width() int { return f.width }

func (f *Figure) Height() int { return f.height }

func (f *Figure) DPI() float64 { return f.dpi }

func (f *Figure) Theme() Theme { return f.theme }

// Pt 磅转换为像素
func (f *Figure) Pt(v float64) float64 { return v * f.dpi / 72 }

// Region 按画布比例取矩形，参数依次为左、上、右、下(0~1)
func (f *Figure) Region(left, top, right, bottom float64) image.Rectangle {
	return image.Rect(
		int(math.Round(left*float64(f.width))),
		int(math.Round(top*float64(f.height))),
		int(math.Round(right*float64(f.width))),
		int(math.Round(bottom*float64(f.height))),
	)
}

// Rect 填充矩形，lineWidth大于0时描边
func (f *Figure) Rect(rect image.Rectangle, fill, stroke drawing.Color, lineWidth float64) {
	rect = rect.Canon()
	f.path(fill, stroke, lineWidth, nil)
	f.r.MoveTo(rect.Min.X, rect.Min.Y)
	f.r.LineTo(rect.Max.X, rect.Min.Y)
	f.r.LineTo(rect.Max.X, rect.Max.Y)
	f.r.LineTo(rect.Min.X, rect.Max.Y)
	f.r.LineTo(rect.Min.X, rect.Min.Y)
	f.r.Close()
	f.finish(lineWidth)
}

// RoundRect 圆角矩形
func (f *Figure) RoundRect(rect image.Rectangle, radius int, fill, stroke drawing.Color, lineWidth float64) {
	rect = rect.Canon()
	if radius*2 > rect.Dx() {
		radius = rect.Dx() / 2
	}
	if radius*2 > rect.Dy() {
		radius = rect.Dy() / 2
	}
	x0, y0, x1, y1 := rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y

	f.path(fill, stroke, lineWidth, nil)
	f.r.MoveTo(x0+radius, y0)
	f.r.LineTo(x1-radius, y0)
	f.r.QuadCurveTo(x1, y0, x1, y0+radius)
	f.r.LineTo(x1, y1-radius)
	f.r.QuadCurveTo(x1, y1, x1-radius, y1)
	f.r.LineTo(x0+radius, y1)
	f.r.QuadCurveTo(x0, y1, x0, y1-radius)
	f.r.LineTo(x0, y0+radius)
	f.r.QuadCurveTo(x0, y0, x0+radius, y0)
	f.r.Close()
	f.finish(lineWidth)
}

// Line 画线，dash为虚线间隔(磅)
func (f *Figure) Line(x0, y0, x1, y1 int, c drawing.Color, lineWidth float64, dash ...float64) {
	f.path(drawing.ColorTransparent, c, lineWidth, dash)
	f.r.MoveTo(x0, y0)
	f.r.LineTo(x1, y1)
	f.r.Stroke()
}

// Polyline 折线
func (f *Figure) Polyline(pts []image.Point, c drawing.Color, lineWidth float64) {
	if len(pts) < 2 {
		return
	}
	f.path(drawing.ColorTransparent, c, lineWidth, nil)
	f.r.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		f.r.LineTo(p.X, p.Y)
	}
	f.r.Stroke()
}

// Polygon 填充多边形
func (f *Figure) Polygon(pts []image.Point, fill drawing.Color) {
	if len(pts) < 3 {
		return
	}
	f.path(fill, drawing.ColorTransparent, 0, nil)
	f.r.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		f.r.LineTo(p.X, p.Y)
	}
	f.r.LineTo(pts[0].X, pts[0].Y)
	f.r.Close()
	f.r.Fill()
}

// Dot 实心圆点，半径为像素
func (f *Figure) Dot(x, y int, radius float64, c drawing.Color) {
	f.path(c, c, 0, nil)
	f.r.Circle(radius, x, y)
	f.r.Fill()
}

// Ring 空心圆
func (f *Figure) Ring(x, y int, radius float64, c drawing.Color, lineWidth float64) {
	f.path(drawing.ColorTransparent, c, lineWidth, nil)
	f.r.Circle(radius, x, y)
	f.r.Stroke()
}

// Arrow 从(x0,y0)到(x1,y1)的箭杆，箭头接在终点之后
func (f *Figure) Arrow(x0, y0, x1, y1 int, c drawing.Color, lineWidth float64, headWidth, headLength int) {
	f.Line(x0, y0, x1, y1, c, lineWidth)

	dx, dy := float64(x1-x0), float64(y1-y0)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux, uy := dx/length, dy/length
	half := float64(headWidth) / 2
	tip := image.Pt(x1+int(math.Round(ux*float64(headLength))), y1+int(math.Round(uy*float64(headLength))))
	left := image.Pt(x1+int(math.Round(-uy*half)), y1+int(math.Round(ux*half)))
	right := image.Pt(x1+int(math.Round(uy*half)), y1+int(math.Round(-ux*half)))
	f.Polygon([]image.Point{left, tip, right}, c)
}

// MeasureText 多行文本的像素宽高
func (f *Figure) MeasureText(s string, size float64) (w, h int) {
	f.r.SetFontSize(size)
	lines := strings.Split(s, "\n")
	for _, line := range lines {
		if lw := f.r.MeasureText(line).Width(); lw > w {
			w = lw
		}
	}
	h = int(math.Ceil(float64(len(lines)) * f.Pt(size) * lineHeight))
	return w, h
}

// Text 在(x,y)处按对齐方式绘制文本，支持换行，返回文本占用的矩形
func (f *Figure) Text(s string, x, y int, ts TextStyle) image.Rectangle {
	if s == "" {
		return image.Rectangle{}
	}
	px := f.Pt(ts.Size)
	lh := px * lineHeight
	lines := strings.Split(s, "\n")
	total := lh * float64(len(lines))

	top := float64(y)
	switch ts.V {
	case AlignMiddle:
		top -= total / 2
	case AlignBottom:
		top -= total
	}

	f.r.SetFontSize(ts.Size)
	f.r.SetFontColor(ts.Color)
	bounds := image.Rectangle{}
	for i, line := range lines {
		w := f.r.MeasureText(line).Width()
		lx := x
		switch ts.H {
		case AlignCenter:
			lx = x - w/2
		case AlignRight:
			lx = x - w
		}
		lineTop := top + float64(i)*lh
		// 基线距行顶0.875倍字号，大写字母在行内居中
		baseline := int(math.Round(lineTop + lh*0.7))
		f.r.Text(line, lx, baseline)
		bounds = bounds.Union(image.Rect(lx, int(lineTop), lx+w, int(lineTop+lh)))
	}
	return bounds
}

// VText 逆时针旋转90度的文本，以(cx,cy)为中心
func (f *Figure) VText(s string, cx, cy int, size float64, c drawing.Color) {
	f.r.SetFontSize(size)
	f.r.SetFontColor(c)
	w := f.r.MeasureText(s).Width()
	f.r.SetTextRotation(1.5 * math.Pi)
	f.r.Text(s, cx+int(f.Pt(size)*0.35), cy+w/2)
	f.r.ClearTextRotation()
}

// Embed 在最终图像的rect区域叠加img(按区域缩放)
func (f *Figure) Embed(img image.Image, rect image.Rectangle) {
	f.overlays = append(f.overlays, overlay{img: img, rect: rect})
}

// Image 取出绘制结果并叠加内嵌图
func (f *Figure) Image() (*image.RGBA, error) {
	var iw chart.ImageWriter
	if err := f.r.Save(&iw); err != nil {
		return nil, err
	}
	img, err := iw.Image()
	if err != nil {
		return nil, err
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		xdraw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, xdraw.Src)
	}
	for _, o := range f.overlays {
		if o.img.Bounds().Size() == o.rect.Size() {
			xdraw.Draw(rgba, o.rect, o.img, o.img.Bounds().Min, xdraw.Over)
			continue
		}
		xdraw.CatmullRom.Scale(rgba, o.rect, o.img, o.img.Bounds(), xdraw.Over, nil)
	}
	return rgba, nil
}

// Encode 裁掉四周空白后写出PNG，并记录DPI
func (f *Figure) Encode(w io.Writer) error {
	img, err := f.Image()
	if err != nil {
		return err
	}
	pad := int(math.Round(0.1 * f.dpi))
	return EncodePNG(w, TightCrop(img, f.theme.Background, pad), f.dpi)
}

// SaveAs 写入文件
func (f *Figure) SaveAs(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Encode(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (f *Figure) path(fill, stroke drawing.Color, lineWidth float64, dash []float64) {
	f.r.SetFillColor(fill)
	f.r.SetStrokeColor(stroke)
	f.r.SetStrokeWidth(f.Pt(lineWidth))
	if len(dash) > 0 {
		px := make([]float64, len(dash))
		for i, d := range dash {
			px[i] = f.Pt(d)
		}
		f.r.SetStrokeDashArray(px)
	} else {
		f.r.SetStrokeDashArray(nil)
	}
}

func (f *Figure) finish(lineWidth float64) {
	if lineWidth > 0 {
		f.r.FillStroke()
		return
	}
	f.r.Fill()
}
