// email_handler.go
package email

import (
	"KycInsight/src/storage"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ====================== 邮件处理器实现 ======================

// XLSXAttachmentHandler 把目标邮件的xlsx附件保存到数据目录
type XLSXAttachmentHandler struct {
	TargetSubject string            // 目标邮件主题关键词
	DataDir       string            // 附件保存目录
	processedUIDs map[uint32]string // 已处理邮件UID -> 保存路径
	logger        *storage.Logger
	mu            sync.RWMutex // 保护processedUIDs的读写锁
}

func NewXLSXAttachmentHandler(subject, dataDir string, logger *storage.Logger) *XLSXAttachmentHandler {
	return &XLSXAttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		processedUIDs: make(map[uint32]string),
		logger:        logger,
	}
}

// IsProcessed 检查邮件是否已处理过（线程安全）
func (h *XLSXAttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.processedUIDs[uid]
	return ok
}

func (h *XLSXAttachmentHandler) savedPath(uid uint32) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// markAsProcessed 标记邮件为已处理（线程安全）
func (h *XLSXAttachmentHandler) markAsProcessed(uid uint32, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = path
}

func (h *XLSXAttachmentHandler) info(msg string) {
	if h.logger != nil {
		h.logger.Info(msg)
	}
}

// Handle 保存邮件中的第一个xlsx附件，返回保存路径
// 同一封邮件重复处理时直接返回之前的路径
func (h *XLSXAttachmentHandler) Handle(email *Email) (string, error) {
	if email == nil {
		return "", fmt.Errorf("邮件为空")
	}
	if h.IsProcessed(email.UID) {
		return h.savedPath(email.UID), nil
	}

	// 检查邮件主题是否包含目标关键词
	if !strings.Contains(email.Subject, h.TargetSubject) {
		return "", fmt.Errorf("邮件主题不匹配: %s", email.Subject)
	}

	h.info(fmt.Sprintf("处理邮件: %s 发件人: %s 日期: %s",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05")))

	attachment := FirstXLSX(email)
	if attachment == nil {
		return "", fmt.Errorf("邮件(UID:%d)没有xlsx附件", email.UID)
	}

	// 确保保存目录存在
	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	// 附件名可能带路径，只保留文件名
	filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
	if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
		return "", fmt.Errorf("保存附件失败: %w", err)
	}
	h.info("附件已保存到: " + filePath)

	h.markAsProcessed(email.UID, filePath)
	return filePath, nil
}

// FirstXLSX 邮件中的第一个xlsx附件，没有时返回nil
func FirstXLSX(email *Email) *Attachment {
	for _, attachment := range email.Attachments {
		if isXLSX(attachment.Filename) {
			return attachment
		}
	}
	return nil
}
