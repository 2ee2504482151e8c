// Package report 串联一次完整的报表批处理: 读取 -> 汇总 -> 出图 -> 导出 -> 推送
package report

import (
	"KycInsight/src/config"
	"KycInsight/src/datapush"
	"KycInsight/src/datasource/email"
	"KycInsight/src/datasource/file"
	"KycInsight/src/processor"
	"KycInsight/src/render"
	"KycInsight/src/storage"
	"KycInsight/src/utils"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result 一次运行的产出
type Result struct {
	RunID     string
	InputPath string
	OutputDir string
	Files     []string // 按生成顺序排列的图表路径
	Workbook  string   // 汇总表路径，未导出时为空
	Warnings  []file.CoercionWarning
	Issues    []string // 运行期间记录的WARNING/ERROR日志
	Summary   processor.Summary
	Duration  time.Duration
}

// Generator 报表生成器，同一时刻只运行一个批次
type Generator struct {
	cfg    *config.Config
	logger *storage.Logger
	theme  render.Theme

	mail     email.MailService
	handler  *email.XLSXAttachmentHandler
	dingTalk *datapush.DingTalk
	mu       sync.Mutex
}

// NewGenerator 创建报表生成器
func NewGenerator(cfg *config.Config, logger *storage.Logger) *Generator {
	g := &Generator{
		cfg:    cfg,
		logger: logger,
		theme:  render.DefaultTheme(),
	}
	if cfg.Source == "email" {
		g.mail = email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password, logger)
		g.handler = email.NewXLSXAttachmentHandler(cfg.Email.TargetSubject, cfg.DataDir, logger)
	}
	if cfg.DingTalk.Webhook != "" {
		g.dingTalk = datapush.NewDingTalk(cfg.DingTalk.Webhook, cfg.DingTalk.Secret)
	}
	return g
}

// SetMailService 替换邮件来源的客户端
func (g *Generator) SetMailService(m email.MailService) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mail = m
	if g.handler == nil {
		g.handler = email.NewXLSXAttachmentHandler(g.cfg.Email.TargetSubject, g.cfg.DataDir, g.logger)
	}
}

// SetDingTalk 替换钉钉推送
func (g *Generator) SetDingTalk(d *datapush.DingTalk) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dingTalk = d
}

// Run 执行一次完整的批处理
// 数据加载、出图和导出失败时返回错误；推送失败只记录日志
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	res := &Result{RunID: uuid.NewString(), OutputDir: g.cfg.OutputDir}
	g.logger.SetRunID(res.RunID)
	defer g.logger.SetRunID("")

	rec := g.logger.StartRecording(storage.WARNING)
	defer g.logger.StopRecording(rec)

	// 1. 确保输出目录存在
	if err := file.EnsureDir(g.cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	// 2. 读取记录(文件或邮件附件)
	table, input, err := g.load()
	if err != nil {
		return nil, err
	}
	res.InputPath = input
	res.Warnings = table.Warnings()
	g.logWarnings(table)
	g.logger.Info(fmt.Sprintf("共读取 %d 条记录", table.Len()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. 汇总
	res.Summary = processor.Summarize(table.Records(), processor.OptionsFromConfig(g.cfg))
	g.checkStages(res.Summary)

	// 4. 依次生成图表
	renderer := render.New(g.theme, render.OptionsFromConfig(g.cfg))
	res.Files, err = renderer.RenderAll(g.cfg.OutputDir, res.Summary)
	if err != nil {
		return nil, err
	}
	g.logger.Info(fmt.Sprintf("已生成 %d 张图表", len(res.Files)))

	// 5. 导出汇总表
	if g.cfg.SummaryWorkbook != "" {
		if err := file.EnsureDir(filepath.Dir(g.cfg.SummaryWorkbook)); err != nil {
			return nil, fmt.Errorf("创建汇总表目录失败: %w", err)
		}
		frame := table.Frame()
		if err := processor.ExportSummary(res.Summary, &frame, g.cfg.SummaryWorkbook); err != nil {
			return nil, fmt.Errorf("导出汇总表失败: %w", err)
		}
		res.Workbook = g.cfg.SummaryWorkbook
		g.logger.Info("汇总表已导出: " + res.Workbook)
	}

	// 6. 推送
	g.deliver(ctx, res)

	res.Duration = time.Since(start)
	g.logger.Info(fmt.Sprintf("报表生成完成，耗时: %v", res.Duration))
	res.Issues = g.logger.StopRecording(rec)
	return res, nil
}

// load 按配置的来源读取数据，返回数据表和输入位置
func (g *Generator) load() (*file.Table, string, error) {
	if g.cfg.Source != "email" {
		g.logger.Info(fmt.Sprintf("读取 %s [%s] 表头第%d行", g.cfg.InputPath, g.cfg.SheetName, g.cfg.HeaderRow))
		table, err := file.LoadRecords(g.cfg.InputPath, g.cfg.SheetName, g.cfg.HeaderRow)
		return table, g.cfg.InputPath, err
	}

	if g.mail == nil || g.handler == nil {
		return nil, "", fmt.Errorf("邮件来源未初始化")
	}
	wb, err := email.FetchWorkbook(g.mail, g.handler, g.logger)
	if err != nil {
		return nil, "", fmt.Errorf("获取邮件附件失败: %w", err)
	}
	g.logger.Info(fmt.Sprintf("读取邮件附件 %s [%s] 表头第%d行", wb.Name, g.cfg.SheetName, g.cfg.HeaderRow))
	table, err := file.LoadRecordsFromBytes(wb.Content, wb.Name, g.cfg.SheetName, g.cfg.HeaderRow)
	return table, wb.Path, err
}

// logWarnings 按列汇总数值转换告警，明细见Result.Warnings
func (g *Generator) logWarnings(table *file.Table) {
	counts := table.WarningCounts()
	if len(counts) == 0 {
		return
	}
	cols := make([]string, 0, len(counts))
	for col := range counts {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		g.logger.Warning(fmt.Sprintf("列 %q 有 %d 个非数值单元格被视为缺失", col, counts[col]))
	}
}

// checkStages 不在配置阶段列表中的阶段不会出现在客户旅程图上
func (g *Generator) checkStages(s processor.Summary) {
	for _, c := range s.StageCounts {
		if !utils.Contains(g.cfg.Stages, c.Label) {
			g.logger.Warning(fmt.Sprintf("阶段 %q (%d 条) 不在 stages 配置中，客户旅程图不显示", c.Label, c.Count))
		}
	}
}

func (g *Generator) deliver(ctx context.Context, res *Result) {
	k, target := res.Summary.KPIs, res.Summary.TargetSeconds
	if len(g.cfg.SendEmail.To) > 0 {
		body := datapush.PlainText(res.RunID, k, target, res.Files)
		if err := datapush.SendReport(g.cfg, body, res.Files); err != nil {
			g.logger.Error("邮件发送失败: " + err.Error())
		} else {
			g.logger.Info("报表邮件已发送: " + strings.Join(g.cfg.SendEmail.To, ","))
		}
	}
	if g.dingTalk != nil {
		text := datapush.Markdown(res.RunID, k, target, res.Files)
		if err := g.dingTalk.PushMarkdown(ctx, datapush.ReportTitle, text); err != nil {
			g.logger.Error("钉钉推送失败: " + err.Error())
		} else {
			g.logger.Info("钉钉推送成功")
		}
	}
}

// PrintConfirmation 输出完成提示和图表清单
func PrintConfirmation(w io.Writer, res *Result) {
	fmt.Fprintln(w, "All visualizations created successfully!")
	fmt.Fprintf(w, "Files saved in '%s' folder:\n", res.OutputDir)
	for i, path := range res.Files {
		fmt.Fprintf(w, "%d. %s\n", i+1, filepath.Base(path))
	}
}
