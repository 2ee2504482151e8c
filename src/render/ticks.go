package render

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	chart "github.com/wcharczuk/go-chart/v2"
)

// niceTicks 在[min,max]之间生成约n个取整刻度，首尾刻度覆盖数据范围
func niceTicks(min, max float64, n int) []chart.Tick {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	// 候选步长: 1, 2, 2.5, 5, 10 乘以10的幂
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	candidates := []float64{1, 2, 2.5, 5, 10}
	bestStep := mag
	bestScore := math.MaxFloat64
	for _, c := range candidates {
		step := c * mag
		count := math.Ceil(span / step)
		if count < 2 {
			count = 2
		}
		score := math.Abs(count - float64(n))
		if score < bestScore {
			bestScore = score
			bestStep = step
		}
	}
	start := math.Floor(min/bestStep) * bestStep
	end := math.Ceil(max/bestStep) * bestStep
	ticks := []chart.Tick{}
	for i := 0; ; i++ {
		v := start + float64(i)*bestStep
		if v > end+bestStep/2 || len(ticks) > n+2 {
			break
		}
		ticks = append(ticks, chart.Tick{Value: v, Label: formatTick(v, bestStep)})
	}
	return ticks
}

// formatTick 按步长决定小数位
func formatTick(v, step float64) string {
	if math.Abs(v) < step/1e6 {
		return "0"
	}
	switch {
	case step >= 1 && step == math.Trunc(step):
		return fmt.Sprintf("%.0f", v)
	case step >= 0.1:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// tickRange 刻度的首尾值
func tickRange(ticks []chart.Tick) (float64, float64) {
	if len(ticks) == 0 {
		return 0, 1
	}
	return ticks[0].Value, ticks[len(ticks)-1].Value
}

// truncate 超过n个字符时截断并加省略号
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// wrap 按单词折行，每行不超过width个字符(单个长单词除外)
func wrap(s string, width int) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if utf8.RuneCountInString(line)+1+utf8.RuneCountInString(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}
