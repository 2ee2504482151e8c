package main

import (
	"KycInsight/src/config"
	"KycInsight/src/datasource/email"
	"KycInsight/src/datasource/file"
	"KycInsight/src/report"
	"KycInsight/src/storage"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", filepath.Join("config", "config.json"), "配置文件路径(.json/.yaml/.yml)")
	logAddr := flag.String("logs", "", "实时日志地址(如 :8080)，为空则不启动")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Println("加载配置失败:", err)
		return 1
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName, os.Stderr)
	if err != nil {
		log.Println("Failed to initialize logger:", err)
		return 1
	}
	defer logger.Close()

	if *logAddr != "" {
		go startWebUI(logger, *logAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go reopenOnHangup(ctx, logger, cfg.LogName)

	gen := report.NewGenerator(cfg, logger)

	// 先生成一次
	if err := runOnce(ctx, gen, os.Stdout); err != nil {
		if !daemon(cfg) || !errors.Is(err, email.ErrNoReport) {
			logger.Fatal(err.Error())
			return 1
		}
		logger.Info("暂无报表邮件，等待下次检查")
	}
	if !daemon(cfg) {
		return 0
	}

	if err := serve(ctx, cfg, logger, gen, os.Stdout); err != nil {
		logger.Fatal(err.Error())
		return 1
	}
	logger.Info("服务已停止")
	return 0
}

// runOnce 生成一次报表并输出图表清单
func runOnce(ctx context.Context, gen *report.Generator, out io.Writer) error {
	res, err := gen.Run(ctx)
	if err != nil {
		return err
	}
	report.PrintConfirmation(out, res)
	return nil
}

// daemon 配置了定时或监听时常驻运行
func daemon(cfg *config.Config) bool {
	return scheduleSpec(cfg) != "" || cfg.Watch
}

// scheduleSpec 定时任务表达式
// 邮件来源开启watch时按check_interval轮询邮箱
func scheduleSpec(cfg *config.Config) string {
	if cfg.Schedule != "" {
		return cfg.Schedule
	}
	if cfg.Watch && cfg.Source == "email" && cfg.Email.CheckInterval > 0 {
		return fmt.Sprintf("@every %s", time.Duration(cfg.Email.CheckInterval))
	}
	return ""
}

// serve 按定时任务或文件变化重新生成，直到ctx结束
func serve(ctx context.Context, cfg *config.Config, logger *storage.Logger, gen *report.Generator, out io.Writer) error {
	rerun := func(reason string) {
		if err := logger.CheckRotate(cfg); err != nil {
			logger.Error("日志轮转失败: " + err.Error())
		}
		logger.Info("重新生成报表: " + reason)
		if err := runOnce(ctx, gen, out); err != nil {
			if errors.Is(err, email.ErrNoReport) {
				logger.Info("暂无报表邮件")
				return
			}
			logger.Error("报表生成失败: " + err.Error())
		}
	}

	// 设置定时任务
	if spec := scheduleSpec(cfg); spec != "" {
		c := cron.New()
		if err := c.AddFunc(spec, func() { rerun("定时任务 " + spec) }); err != nil {
			return fmt.Errorf("创建定时任务失败: %w", err)
		}
		c.Start()
		defer c.Stop()
		logger.Info(fmt.Sprintf("定时任务已启动(%s)，按Ctrl+C退出", spec))
	}

	// 监听输入文件
	if cfg.Watch && cfg.Source != "email" {
		monitor, err := file.NewFileMonitor(cfg.InputPath)
		if err != nil {
			return fmt.Errorf("监听输入文件失败: %w", err)
		}
		defer monitor.Close()
		logger.Info("开始监听: " + cfg.InputPath)
		return monitor.Watch(ctx, func(path string) { rerun("文件更新 " + path) })
	}

	<-ctx.Done()
	return nil
}

// reopenOnHangup 收到SIGHUP时重新打开日志文件(配合外部logrotate)
func reopenOnHangup(ctx context.Context, logger *storage.Logger, filename string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigChan:
			if err := logger.Reopen(filename); err != nil {
				log.Println("重新打开日志失败:", err)
				continue
			}
			logger.Info("日志文件已重新打开")
		}
	}
}

// startWebUI 启动一个简单的Web界面来显示实时日志
// 参数:
//
//	logger: 日志记录器实例，用于订阅日志消息
//	addr: 监听地址
func startWebUI(logger *storage.Logger, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/logs", logsHandler(logger))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("日志服务退出: " + err.Error())
	}
}

// logsHandler 以chunked方式持续输出日志，客户端断开时取消订阅
func logsHandler(logger *storage.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 设置响应头
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Transfer-Encoding", "chunked")

		// 创建日志订阅通道
		logChan := logger.Subscribe()
		defer logger.Unsubscribe(logChan)

		for {
			select {
			case msg, ok := <-logChan:
				if !ok {
					return
				}
				// 写入失败说明客户端已断开
				if _, err := fmt.Fprint(w, msg); err != nil {
					return
				}
				// 刷新响应缓冲区，确保消息立即发送到客户端
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}
