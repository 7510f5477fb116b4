package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/ByLCY/imprint/api"
	"github.com/ByLCY/imprint/compose"
	"github.com/ByLCY/imprint/dataset"
	canvasrenderer "github.com/ByLCY/imprint/renderer/canvas"
)

// exitError 携带进程退出码，参数错误使用 2。
type exitError struct {
	Code    int
	Message string
}

func (e *exitError) Error() string { return e.Message }

type config struct {
	schemaPath string
	dataPath   string
	format     string

	outputDir string
	limit     int
	workers   int
	keepGoing bool
	atomic    bool
	debugDir  string
	sheet     string
	delimiter rune
	logLevel  string
	logFormat string
	serveAddr string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseArgs 解析命令行；显示帮助后 cfg 为 nil。
func parseArgs(args []string, output io.Writer) (*config, error) {
	fs := flag.NewFlagSet("imprint", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, `imprint - 按 schema 批量合成图片

用法:
  imprint [选项] <schema> <数据文件> <输出文件名模板>
  imprint -serve :8080 [选项] <schema>

数据文件支持 .csv（默认以 ; 分隔）、.json（对象数组）与 .xlsx。
输出文件名模板使用与 schema 相同的 ${变量} 语法，例如 "${id}.png"。

选项:
`)
		fs.PrintDefaults()
	}

	cfg := &config{}
	fs.StringVar(&cfg.outputDir, "o", ".", "输出目录")
	fs.IntVar(&cfg.limit, "l", 0, "最多处理的行数，0 表示全部")
	fs.IntVar(&cfg.workers, "workers", 1, "并发合成的行数")
	fs.BoolVar(&cfg.keepGoing, "keep-going", false, "某行失败时记录错误并继续处理后续行")
	fs.BoolVar(&cfg.atomic, "atomic", true, "先写入临时文件再重命名")
	fs.StringVar(&cfg.debugDir, "debug", "", "合成轨迹 JSON 输出目录")
	fs.StringVar(&cfg.sheet, "sheet", "", "xlsx 工作表名，默认第一个")
	delimiter := fs.String("delimiter", string(dataset.DefaultDelimiter), "CSV 分隔符")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "日志级别：debug、info、warn、error")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "日志格式：text 或 json")
	fs.StringVar(&cfg.serveAddr, "serve", "", "启动预览服务的监听地址，例如 :8080")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil
		}
		return nil, &exitError{Code: 2, Message: err.Error()}
	}

	want := 3
	if cfg.serveAddr != "" {
		want = 1
	}
	if fs.NArg() != want {
		fs.Usage()
		return nil, &exitError{Code: 2, Message: fmt.Sprintf("需要 %d 个参数，实际 %d 个", want, fs.NArg())}
	}
	cfg.schemaPath = fs.Arg(0)
	if want == 3 {
		cfg.dataPath, cfg.format = fs.Arg(1), fs.Arg(2)
	}

	if utf8.RuneCountInString(*delimiter) != 1 {
		return nil, &exitError{Code: 2, Message: fmt.Sprintf("delimiter 必须是单个字符，实际 %q", *delimiter)}
	}
	cfg.delimiter, _ = utf8.DecodeRuneInString(*delimiter)

	cfg.logLevel = strings.ToLower(cfg.logLevel)
	if _, ok := logLevels[cfg.logLevel]; !ok {
		return nil, &exitError{Code: 2, Message: "log-level 只能是 debug、info、warn 或 error"}
	}
	cfg.logFormat = strings.ToLower(cfg.logFormat)
	if cfg.logFormat != "text" && cfg.logFormat != "json" {
		return nil, &exitError{Code: 2, Message: "log-format 只能是 text 或 json"}
	}
	if cfg.limit < 0 || cfg.workers < 1 {
		return nil, &exitError{Code: 2, Message: "l 不能为负数，workers 至少为 1"}
	}
	return cfg, nil
}

// run 串联参数解析、schema 加载与批处理（或预览服务）。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := parseArgs(args, stderr)
	if err != nil || cfg == nil {
		return err
	}

	logger := newLogger(cfg.logLevel, cfg.logFormat, stderr)
	slog.SetDefault(logger)

	engine, err := compose.Open(cfg.schemaPath, canvasrenderer.NewRenderer(),
		compose.WithLogger(logger),
		compose.WithAtomicWrites(cfg.atomic),
	)
	if err != nil {
		return fmt.Errorf("加载 schema 失败: %w", err)
	}

	if cfg.serveAddr != "" {
		return serve(ctx, cfg, engine, logger)
	}

	rows, err := dataset.Read(cfg.dataPath, dataset.Options{Delimiter: cfg.delimiter, Sheet: cfg.sheet})
	if err != nil {
		return fmt.Errorf("读取数据失败: %w", err)
	}
	logger.Info("开始批处理", "schema", cfg.schemaPath, "data", cfg.dataPath, "rows", len(rows))

	res, err := compose.RunBatch(ctx, engine, rows, compose.BatchOptions{
		OutputDir: cfg.outputDir,
		Format:    cfg.format,
		Limit:     cfg.limit,
		Workers:   cfg.workers,
		KeepGoing: cfg.keepGoing,
		DebugDir:  cfg.debugDir,
	})
	if err != nil {
		return fmt.Errorf("生成图片失败: %w", err)
	}
	for _, p := range res.Written {
		fmt.Fprintln(stdout, p)
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d 行生成失败", len(res.Failed))
	}
	return nil
}

func serve(ctx context.Context, cfg *config, engine *compose.Engine, logger *slog.Logger) error {
	if cfg.logLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	api.RegisterRoutes(r, engine)

	srv := &http.Server{Addr: cfg.serveAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("预览服务已启动", "addr", cfg.serveAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("预览服务异常退出: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("正在关闭预览服务")
	return srv.Shutdown(shutdownCtx)
}
