package datapush

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// 常量定义
const (
	RETRY_TIMES    = 5
	RETRY_INTERVAL = 2 * time.Second
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// markdownMessage 机器人markdown消息
type markdownMessage struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"markdown"`
}

// DingTalk 群机器人推送
type DingTalk struct {
	Webhook       string
	Secret        string // 加签密钥，为空则不签名
	Client        *http.Client
	RetryTimes    int
	RetryInterval time.Duration
	now           func() time.Time
}

// NewDingTalk 创建群机器人推送
func NewDingTalk(webhook, secret string) *DingTalk {
	return &DingTalk{
		Webhook:       webhook,
		Secret:        secret,
		Client:        &http.Client{Timeout: 10 * time.Second},
		RetryTimes:    RETRY_TIMES,
		RetryInterval: RETRY_INTERVAL,
		now:           time.Now,
	}
}

// sign 加签: base64(HmacSHA256(timestamp+"\n"+secret))
func sign(timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10) + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signedURL 在webhook地址后追加timestamp和sign参数
func (d *DingTalk) signedURL() (string, error) {
	if d.Secret == "" {
		return d.Webhook, nil
	}
	u, err := url.Parse(d.Webhook)
	if err != nil {
		return "", fmt.Errorf("webhook地址无效: %w", err)
	}
	ts := d.now().UnixMilli()
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", sign(ts, d.Secret))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PushMarkdown 发送markdown消息，失败时按配置重试
func (d *DingTalk) PushMarkdown(ctx context.Context, title, text string) error {
	msg := markdownMessage{MsgType: "markdown"}
	msg.Markdown.Title = title
	msg.Markdown.Text = text
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	return retry(ctx, func() error {
		return d.post(ctx, payload)
	}, d.RetryTimes, d.RetryInterval)
}

func (d *DingTalk) post(ctx context.Context, payload []byte) error {
	target, err := d.signedURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("发送消息失败: HTTP %d", resp.StatusCode)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败: %s", result.ErrMsg)
	}
	return nil
}

// 重试函数，ctx结束时立即返回
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	if times < 1 {
		times = 1
	}
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == times-1 {
			break
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("第 %d 次尝试后取消: %w", i+1, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}
