package datapush

import (
	"KycInsight/src/config"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// DefaultSubject 未配置主题时的邮件主题
const DefaultSubject = "Digital KYC Funnel Report"

// smtpAddress 没有端口时默认使用SSL端口465
func smtpAddress(server string) (addr, host string, err error) {
	addr = server
	if !strings.Contains(addr, ":") {
		addr += ":465"
	}
	host, _, err = net.SplitHostPort(addr)
	if err != nil {
		return "", "", fmt.Errorf("SMTP地址无效: %w", err)
	}
	return addr, host, nil
}

// NewReportMail 组装报表邮件: 指标摘要作为正文，图表作为附件
func NewReportMail(cfg *config.Config, body string, files []string) (*email.Email, error) {
	e := email.NewEmail()
	e.From = fmt.Sprintf("KYC Report <%s>", cfg.SendEmail.Username)
	e.To = cfg.SendEmail.To
	e.Subject = cfg.SendEmail.Subject
	if e.Subject == "" {
		e.Subject = DefaultSubject
	}
	e.Text = []byte(body)

	for _, path := range files {
		if _, err := e.AttachFile(path); err != nil {
			return nil, fmt.Errorf("附件添加失败: %w", err)
		}
	}
	return e, nil
}

// SendReport 通过SMTP(显式TLS)发送报表邮件
func SendReport(cfg *config.Config, body string, files []string) error {
	if len(cfg.SendEmail.To) == 0 {
		return fmt.Errorf("没有配置收件人")
	}
	e, err := NewReportMail(cfg, body, files)
	if err != nil {
		return err
	}
	addr, host, err := smtpAddress(cfg.SendEmail.Server)
	if err != nil {
		return err
	}

	err = e.SendWithTLS(
		addr,
		smtp.PlainAuth("", cfg.SendEmail.Username, cfg.SendEmail.Password, host),
		&tls.Config{ServerName: host},
	)
	if err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, addr)
	}
	return nil
}
