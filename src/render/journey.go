package render

import (
	"KycInsight/src/processor"
	"fmt"
)

// 客户旅程图的几何参数，均为[0,1]坐标
const (
	flowTop       = 0.9
	flowBottom    = 0.1
	flowBoxWidth  = 0.15
	flowBoxHeight = 0.08
	flowSuccessX  = 0.3
	flowFailureX  = 0.5
	flowLabelX    = 0.15
	flowArrowGap  = 0.02
	flowHeadWidth = 0.02
	flowHeadLen   = 0.01
)

// flowPositions 按配置阶段数在flowTop和flowBottom之间等距排列
func flowPositions(n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = flowTop
		return out
	}
	step := (flowTop - flowBottom) / float64(n-1)
	for i := range out {
		out[i] = flowTop - step*float64(i)
	}
	return out
}

// journeyFlow 每个配置阶段一行成功/失败框，没有记录的阶段空出位置
func (r *Renderer) journeyFlow(f *Figure, s processor.Summary) error {
	th := f.Theme()
	ax := f.Axes(f.Region(0.02, 0.08, 0.98, 0.98))
	ax.SetXRange(0, 1)
	ax.SetYRange(0, 1)
	ax.Title("Customer Journey Flow - Success vs Failure at Each Stage", sizeTitle)

	funnel := make(map[string]processor.FunnelStage, len(s.Funnel))
	for _, fs := range s.Funnel {
		funnel[fs.Stage] = fs
	}
	if len(funnel) == 0 {
		ax.Empty()
		return nil
	}

	ys := flowPositions(len(r.opts.Stages))
	boxText := TextStyle{Size: sizeTick, Color: th.Background, H: AlignCenter, V: AlignMiddle}
	headW := ax.X(flowHeadWidth) - ax.X(0)
	headL := ax.Y(0) - ax.Y(flowHeadLen)
	for i, stage := range r.opts.Stages {
		fs, ok := funnel[stage]
		if !ok {
			continue
		}
		y := ys[i]
		half := flowBoxHeight / 2

		ax.EdgedBar(flowSuccessX, flowSuccessX+flowBoxWidth, y-half, y+half, th.Color(0), th.Edge, 2)
		ax.Text(fmt.Sprintf("Success\n%d (%.1f%%)", fs.Success, fs.SuccessRate), flowSuccessX+flowBoxWidth/2, y, boxText)

		ax.EdgedBar(flowFailureX, flowFailureX+flowBoxWidth, y-half, y+half, th.Danger, th.Edge, 2)
		ax.Text(fmt.Sprintf("Failure\n%d (%.1f%%)", fs.Failure, fs.FailureRate), flowFailureX+flowBoxWidth/2, y, boxText)

		ax.Text(stage, flowLabelX, y, TextStyle{Size: 11, Color: th.Text, H: AlignRight, V: AlignMiddle})

		if i >= len(ys)-1 {
			continue
		}
		// 箭头从成功框下方指向下一阶段，箭头长度计入间距
		length := y - ys[i+1] - flowBoxHeight - 2*flowArrowGap
		if length <= 0 {
			continue
		}
		x := flowSuccessX + flowBoxWidth/2
		start := y - half - flowArrowGap
		ax.fig.Arrow(ax.X(x), ax.Y(start), ax.X(x), ax.Y(start-length), th.Color(0), 1.5, headW, headL)
	}
	return nil
}
