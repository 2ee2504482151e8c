package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, "Digital KYC Data Dump", cfg.SheetName)
	assert.Equal(t, 2, cfg.HeaderRow)
	assert.Equal(t, "visualizations", cfg.OutputDir)
	assert.Equal(t, 20.0, cfg.TargetSeconds)
	assert.Equal(t, 300.0, cfg.DPI)
	assert.Equal(t, DefaultStages, cfg.Stages)
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.Email.CheckInterval))
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"input_path": "kyc.xlsx",
		"sheet_name": "Dump",
		"header_row": 1,
		"target_seconds": 15,
		"stages": ["A", "B"],
		"email": {"server": "imap.example.com:993", "check_interval": "90s"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "kyc.xlsx", cfg.InputPath)
	assert.Equal(t, "Dump", cfg.SheetName)
	assert.Equal(t, 1, cfg.HeaderRow)
	assert.Equal(t, 15.0, cfg.TargetSeconds)
	assert.Equal(t, []string{"A", "B"}, cfg.Stages)
	assert.Equal(t, 90*time.Second, time.Duration(cfg.Email.CheckInterval))
	// 未出现的键保持默认值
	assert.Equal(t, 300.0, cfg.DPI)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
input_path: kyc.xlsx
header_row: 3
watch: true
email:
  check_interval: 10m
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.HeaderRow)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 10*time.Minute, time.Duration(cfg.Email.CheckInterval))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("KYC_SHEET_NAME", "FromEnv")
	t.Setenv("KYC_HEADER_ROW", "4")
	t.Setenv("KYC_STAGES", "X,Y,Z")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "FromEnv", cfg.SheetName)
	assert.Equal(t, 4, cfg.HeaderRow)
	assert.Equal(t, []string{"X", "Y", "Z"}, cfg.Stages)
}

func TestEnvOverrideNested(t *testing.T) {
	t.Setenv("KYC_EMAIL_USERNAME", "imap-user")
	t.Setenv("KYC_SEND_EMAIL_USERNAME", "smtp-user")
	t.Setenv("KYC_SEND_EMAIL_TO", "a@example.com,b@example.com")
	t.Setenv("KYC_DINGTALK_WEBHOOK", "https://oapi.example.com/robot/send")
	t.Setenv("KYC_EMAIL_CHECK_INTERVAL", "90s")
	t.Setenv("KYC_DPI", "150")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "imap-user", cfg.Email.Username)
	assert.Equal(t, "smtp-user", cfg.SendEmail.Username)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.SendEmail.To)
	assert.Equal(t, "https://oapi.example.com/robot/send", cfg.DingTalk.Webhook)
	assert.Equal(t, 90*time.Second, time.Duration(cfg.Email.CheckInterval))
	assert.Equal(t, 150.0, cfg.DPI)
}

// 没有KYC_前缀的同名变量不影响配置
func TestEnvWithoutPrefixIgnored(t *testing.T) {
	for key, value := range map[string]string{
		"DPI":            "150",
		"USERNAME":       "someone-else",
		"PASSWORD":       "secret",
		"WATCH":          "true",
		"SOURCE":         "ftp",
		"SCHEDULE":       "@every 1m",
		"SERVER":         "smtp.example.com",
		"TO":             "x@example.com",
		"SECRET":         "SEC",
		"INPUT_PATH":     "other.xlsx",
		"TARGET_SECONDS": "5",
	} {
		t.Setenv(key, value)
	}

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"header row":  `{"header_row": 0}`,
		"target":      `{"target_seconds": -1}`,
		"dpi":         `{"dpi": 10}`,
		"source":      `{"source": "ftp"}`,
		"no stages":   `{"stages": []}`,
		"email creds": `{"source": "email"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.json", body))
			assert.Error(t, err)
		})
	}
}

func TestDurationJSON(t *testing.T) {
	d := Duration(2 * time.Minute)
	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2m0s"`, string(b))

	var back Duration
	require.NoError(t, back.UnmarshalJSON(b))
	assert.Equal(t, d, back)
	assert.Error(t, back.UnmarshalJSON([]byte(`"soon"`)))
}
