package datapush

import (
	"KycInsight/src/processor"
	"fmt"
	"path/filepath"
	"strings"
)

// ReportTitle 推送消息标题
const ReportTitle = "Digital KYC Report"

// Markdown 钉钉消息正文
func Markdown(runID string, k processor.KPIs, target float64, files []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", processor.KPITitle)
	for _, line := range k.Lines(target) {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	if len(files) > 0 {
		fmt.Fprintf(&b, "\n%d charts generated\n", len(files))
	}
	if runID != "" {
		fmt.Fprintf(&b, "\n> run %s\n", runID)
	}
	return b.String()
}

// PlainText 邮件正文
func PlainText(runID string, k processor.KPIs, target float64, files []string) string {
	var b strings.Builder
	b.WriteString(processor.KPITitle + "\n\n")
	for _, line := range k.Lines(target) {
		b.WriteString(line + "\n")
	}
	if len(files) > 0 {
		b.WriteString("\nAttached charts:\n")
		for i, f := range files {
			fmt.Fprintf(&b, "%d. %s\n", i+1, filepath.Base(f))
		}
	}
	if runID != "" {
		fmt.Fprintf(&b, "\nRun ID: %s\n", runID)
	}
	return b.String()
}
