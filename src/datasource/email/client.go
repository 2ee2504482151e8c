// client.go
package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"KycInsight/src/storage"
)

const (
	MaxCandidates      = 10             // 只取最新的几封候选邮件
	FetchBufferSize    = 10             // 邮件获取通道缓冲区大小
	RecentMailDuration = 24 * time.Hour // 只查找这段时间内的报表邮件
)

// MailService 报表邮箱
type MailService interface {
	Connect() error
	Disconnect()

	// SearchReports 查找since之后、主题包含subject的未读邮件
	// 返回的邮件只带xlsx附件
	SearchReports(subject string, since time.Time) ([]*Email, error)

	// MarkSeen 处理完成后标记为已读
	MarkSeen(uid uint32) error
}

// Email 报表邮件
type Email struct {
	UID         uint32    // IMAP UID
	Date        time.Time // 发送时间，缺失时为服务器收件时间
	From        string
	Subject     string
	Attachments []*Attachment // 仅xlsx附件
}

// Attachment 邮件附件
type Attachment struct {
	Filename string
	Content  []byte
}

// EmailClient IMAP实现
type EmailClient struct {
	server   string // 包含端口，如 imap.qq.com:993
	username string
	password string // 密码或授权码
	client   *client.Client
	logger   *storage.Logger
	mu       sync.Mutex
}

// NewEmailClient 创建邮件客户端，logger可为nil
func NewEmailClient(server, username, password string, logger *storage.Logger) *EmailClient {
	return &EmailClient{
		server:   server,
		username: username,
		password: password,
		logger:   logger,
	}
}

func (s *EmailClient) warn(msg string) {
	if s.logger != nil {
		s.logger.Warning(msg)
	}
}

// Connect TLS连接并登录
func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}
	c, err := client.DialTLS(s.server, nil)
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}
	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("登录失败: %w", err)
	}
	s.client = c
	return nil
}

// Disconnect 退出登录
func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
}

// SearchReports 在服务器端按SUBJECT/UNSEEN/SINCE搜索，取UID最大的几封
// 正文以PEEK方式获取，不会改变邮件的已读状态
func (s *EmailClient) SearchReports(subject string, since time.Time) ([]*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil, fmt.Errorf("未连接到邮件服务器")
	}
	if _, err := s.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("选择邮箱失败: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = since
	criteria.Header.Add("Subject", subject)

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("搜索邮件失败: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	// UID递增分配，最大的即最新到达的
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if len(uids) > MaxCandidates {
		uids = uids[len(uids)-MaxCandidates:]
	}
	return s.fetch(uids)
}

func (s *EmailClient) fetch(uids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, FetchBufferSize)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	var emails []*Email
	for msg := range messages {
		email, err := parseReport(msg.GetBody(section))
		if err != nil {
			s.warn(fmt.Sprintf("解析邮件失败(UID:%d): %v", msg.Uid, err))
			continue
		}
		email.UID = msg.Uid
		if email.Date.IsZero() {
			email.Date = msg.InternalDate
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("获取邮件内容失败: %w", err)
	}
	return emails, nil
}

// MarkSeen 给邮件加上\Seen标记
func (s *EmailClient) MarkSeen(uid uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return fmt.Errorf("未连接到邮件服务器")
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("标记已读失败(UID:%d): %w", uid, err)
	}
	return nil
}

// parseReport 解析邮件头，只读取xlsx附件的内容，其余部分直接跳过
func parseReport(r io.Reader) (*Email, error) {
	if r == nil {
		return nil, fmt.Errorf("邮件正文为空")
	}
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("创建邮件阅读器失败: %w", err)
	}

	date, _ := mr.Header.Date()
	email := &Email{
		Date:    date,
		From:    decodeHeader(mr.Header.Get("From")),
		Subject: decodeHeader(mr.Header.Get("Subject")),
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return email, fmt.Errorf("读取邮件内容失败: %w", err)
		}
		h, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		name, err := h.Filename()
		if err != nil || !isXLSX(decodeHeader(name)) {
			continue
		}

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, p.Body); err != nil {
			return email, fmt.Errorf("读取附件 %s 失败: %w", name, err)
		}
		email.Attachments = append(email.Attachments, &Attachment{
			Filename: decodeHeader(name),
			Content:  buf.Bytes(),
		})
	}
	return email, nil
}

func isXLSX(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

// decodeHeader 解码 =?charset?encoding?text?= 形式的邮件头，失败时原样返回
func decodeHeader(header string) string {
	decoder := mime.WordDecoder{CharsetReader: charsetReader}
	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// charsetReader 国内邮箱常见的GBK/GB2312转UTF-8
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "gbk", "gb2312":
		return transform.NewReader(input, simplifiedchinese.GBK.NewDecoder()), nil
	default:
		return input, nil
	}
}

// latestReport 主题包含关键词且带xlsx附件的最新邮件
func latestReport(emails []*Email, keyword string) *Email {
	var latest *Email
	for _, e := range emails {
		if !strings.Contains(e.Subject, keyword) || FirstXLSX(e) == nil {
			continue
		}
		if latest == nil || e.Date.After(latest.Date) || (e.Date.Equal(latest.Date) && e.UID > latest.UID) {
			latest = e
		}
	}
	return latest
}
