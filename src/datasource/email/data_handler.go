// data_handler.go
package email

import (
	"KycInsight/src/storage"
	"errors"
	"fmt"
	"time"
)

// ErrNoReport 邮箱中没有符合条件的报表邮件
var ErrNoReport = errors.New("no report mail found")

// Workbook 从邮件取得的报表附件
type Workbook struct {
	UID     uint32
	Subject string
	Name    string // 附件文件名
	Path    string // 保存路径
	Content []byte
}

// FetchWorkbook 连接邮箱，取最新的报表邮件并保存其xlsx附件
// 保存成功后把邮件标记为已读，连接在返回前关闭
func FetchWorkbook(mailService MailService, handler *XLSXAttachmentHandler, logger *storage.Logger) (*Workbook, error) {
	startTime := time.Now()
	logger.Info("开始检查邮箱: " + handler.TargetSubject)

	// 1. 建立连接
	if err := mailService.Connect(); err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	defer mailService.Disconnect()

	// 2. 服务器端按主题查找
	emails, err := mailService.SearchReports(handler.TargetSubject, startTime.Add(-RecentMailDuration))
	if err != nil {
		return nil, fmt.Errorf("获取邮件失败: %w", err)
	}
	report := latestReport(emails, handler.TargetSubject)
	if report == nil {
		return nil, ErrNoReport
	}

	// 3. 保存附件
	path, err := handler.Handle(report)
	if err != nil {
		return nil, err
	}

	// 4. 标记已读，失败不影响本次处理
	if err := mailService.MarkSeen(report.UID); err != nil {
		logger.Warning(err.Error())
	}

	attachment := FirstXLSX(report)
	logger.Info(fmt.Sprintf("报表邮件处理完成(UID:%d)，耗时: %v", report.UID, time.Since(startTime)))
	return &Workbook{
		UID:     report.UID,
		Subject: report.Subject,
		Name:    attachment.Filename,
		Path:    path,
		Content: attachment.Content,
	}, nil
}
