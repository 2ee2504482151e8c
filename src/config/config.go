package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultStages 漏斗阶段的默认顺序
var DefaultStages = []string{
	"Select Document Type",
	"Document Scan",
	"Upload Document",
	"KYC Check",
	"KYC Approved",
}

// Config 结构体定义了应用程序的配置结构
// 环境变量只认KYC_前缀，字段名按单词拆分: KYC_INPUT_PATH、KYC_EMAIL_USERNAME、KYC_DINGTALK_WEBHOOK
type Config struct {
	InputPath  string `json:"input_path" yaml:"input_path" split_words:"true" validate:"required"` // 输入表格路径
	SheetName  string `json:"sheet_name" yaml:"sheet_name" split_words:"true" validate:"required"` // 工作表名称
	HeaderRow  int    `json:"header_row" yaml:"header_row" split_words:"true" validate:"gte=1"`    // 真实表头所在行(从1开始)
	OutputDir  string `json:"output_dir" yaml:"output_dir" split_words:"true" validate:"required"` // 图表输出目录
	DataDir    string `json:"data_dir" yaml:"data_dir" split_words:"true"`                         // 邮件附件保存目录
	Source     string `json:"source" yaml:"source" validate:"oneof=file email"`                    // 数据来源
	LogName    string `json:"log_name" yaml:"log_name" split_words:"true" validate:"required"`
	LogMaxSize string `json:"log_max_size" yaml:"log_max_size" split_words:"true"`

	TargetSeconds      float64  `json:"target_seconds" yaml:"target_seconds" split_words:"true" validate:"gt=0"` // 时效目标(秒)
	DPI                float64  `json:"dpi" yaml:"dpi" validate:"gte=72,lte=1200"`
	TopErrors          int      `json:"top_errors" yaml:"top_errors" split_words:"true" validate:"gte=1"`
	DashboardTopErrors int      `json:"dashboard_top_errors" yaml:"dashboard_top_errors" split_words:"true" validate:"gte=1"`
	Stages             []string `json:"stages" yaml:"stages" validate:"min=1,dive,required"`               // 漏斗阶段顺序
	SummaryWorkbook    string   `json:"summary_workbook" yaml:"summary_workbook" split_words:"true"` // 汇总表导出路径，为空则不导出

	Schedule string `json:"schedule" yaml:"schedule"` // cron表达式，为空则只运行一次
	Watch    bool   `json:"watch" yaml:"watch"`       // 输入文件更新后重新生成

	Email struct {
		Server        string   `json:"server" yaml:"server"`                                       // 邮件服务器地址
		Username      string   `json:"username" yaml:"username"`                                   // 邮箱用户名
		Password      string   `json:"password" yaml:"password"`                                   // 邮箱密码
		TargetSubject string   `json:"target_subject" yaml:"target_subject" split_words:"true"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval" yaml:"check_interval" split_words:"true"` // 检查新邮件的间隔时间
	} `json:"email" yaml:"email"`

	SendEmail struct {
		Server   string   `json:"server" yaml:"server"`     // SMTP服务器地址
		Username string   `json:"username" yaml:"username"` // 发件邮箱
		Password string   `json:"password" yaml:"password"` // 授权码
		To       []string `json:"to" yaml:"to"`             // 收件人
		Subject  string   `json:"subject" yaml:"subject"`
	} `json:"send_email" yaml:"send_email" split_words:"true"`

	DingTalk struct {
		Webhook string `json:"webhook" yaml:"webhook"` // 机器人webhook地址
		Secret  string `json:"secret" yaml:"secret"`   // 加签密钥
	} `json:"dingtalk" yaml:"dingtalk"`
}

var (
	once     sync.Once
	instance *Config
	loadErr  error
)

// LoadConfig 加载配置(进程内只加载一次)
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		instance, loadErr = Load(path)
	})
	return instance, loadErr
}

// Default 返回与原始报表脚本一致的默认配置
func Default() *Config {
	cfg := &Config{
		InputPath:          "Digital KYC_Reduce Drop-Off_Lift Conversion.xlsx",
		SheetName:          "Digital KYC Data Dump",
		HeaderRow:          2,
		OutputDir:          "visualizations",
		DataDir:            "data",
		Source:             "file",
		LogName:            "app.log",
		LogMaxSize:         "10 * 1024 * 1024",
		TargetSeconds:      20,
		DPI:                300,
		TopErrors:          10,
		DashboardTopErrors: 5,
		Stages:             append([]string(nil), DefaultStages...),
		SummaryWorkbook:    filepath.Join("visualizations", "summary.xlsx"),
	}
	cfg.Email.CheckInterval = Duration(5 * time.Minute)
	return cfg
}

// Load 读取配置文件，叠加环境变量后校验
// 参数:
//
//	path: 配置文件路径(.json/.yaml/.yml)，文件不存在时使用默认配置
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := readFile(path)
		switch {
		case err == nil:
			if err := parseConfig(path, data, cfg); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
			// 没有配置文件时直接使用默认值
		default:
			return nil, err
		}
	}

	if err := envconfig.Process("KYC", cfg); err != nil {
		return nil, fmt.Errorf("读取环境变量失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析YAML配置失败: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析Config失败: %w", err)
		}
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.Source == "email" && (c.Email.Server == "" || c.Email.TargetSubject == "") {
		return fmt.Errorf("配置校验失败: source=email 需要 email.server 和 email.target_subject")
	}
	return nil
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON/YAML/环境变量中的 "5m" 写法
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.Decode(s)
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalYAML 实现yaml.Unmarshaler接口
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.Decode(node.Value)
}

// Decode 实现envconfig.Decoder接口
func (d *Duration) Decode(value string) error {
	dur, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
