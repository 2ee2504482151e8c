package render

import (
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Theme 图表配色，由调用方显式传入每个图表
type Theme struct {
	Palette    []drawing.Color // 主色(绿色系)
	Danger     drawing.Color   // 超标/失败
	Target     drawing.Color   // 目标线
	Mean       drawing.Color   // 均值线
	Background drawing.Color
	Face       drawing.Color // 坐标区底色
	Grid       drawing.Color
	Text       drawing.Color
	Edge       drawing.Color
	Callout    drawing.Color // 直方图说明框
	Panel      drawing.Color // 指标面板底色
	GreensLow  drawing.Color // 错误条形图渐变起点
	GreensHigh drawing.Color // 错误条形图渐变终点
}

// DefaultTheme 翡翠绿配色
func DefaultTheme() Theme {
	return Theme{
		Palette: []drawing.Color{
			drawing.ColorFromHex("10b981"),
			drawing.ColorFromHex("059669"),
			drawing.ColorFromHex("047857"),
			drawing.ColorFromHex("065f46"),
			drawing.ColorFromHex("064e3b"),
		},
		Danger:     drawing.ColorFromHex("dc2626"),
		Target:     drawing.ColorRed,
		Mean:       drawing.ColorBlue,
		Background: drawing.ColorWhite,
		Face:       drawing.ColorFromHex("eaeaf2"),
		Grid:       drawing.ColorWhite,
		Text:       drawing.ColorFromHex("262626"),
		Edge:       drawing.ColorBlack,
		Callout:    drawing.ColorFromHex("f5deb3").WithAlpha(128),
		Panel:      drawing.ColorFromHex("f0f9ff").WithAlpha(204),
		GreensLow:  drawing.ColorFromHex("a1d99b"),
		GreensHigh: drawing.ColorFromHex("00692a"),
	}
}

// Color 按序号循环取主色
func (t Theme) Color(i int) drawing.Color {
	if len(t.Palette) == 0 {
		return t.Edge
	}
	return t.Palette[i%len(t.Palette)]
}

// AttemptColor 第1~3次为主色，第4次(被拒绝)为警示色，其余回到首色
func (t Theme) AttemptColor(attempt int) drawing.Color {
	switch {
	case attempt >= 1 && attempt <= 3:
		return t.Color(attempt - 1)
	case attempt == 4:
		return t.Danger
	default:
		return t.Color(0)
	}
}

// Greens 在GreensLow和GreensHigh之间等距取n个颜色
func (t Theme) Greens(n int) []drawing.Color {
	out := make([]drawing.Color, n)
	for i := range out {
		p := 0.0
		if n > 1 {
			p = float64(i) / float64(n-1)
		}
		out[i] = mix(t.GreensLow, t.GreensHigh, p)
	}
	return out
}

func mix(a, b drawing.Color, p float64) drawing.Color {
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*p + 0.5)
	}
	return drawing.Color{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: lerp(a.A, b.A)}
}
