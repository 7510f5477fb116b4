package compose

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/ByLCY/imprint/binding"
	"github.com/ByLCY/imprint/dsl"
	"github.com/ByLCY/imprint/layout"
	"github.com/ByLCY/imprint/renderer"
)

// Engine 持有已解析的 schema 与资源表，按行合成并输出图片。
// schema、资源表与解析器在构造后只读，可被多个 goroutine 同时使用。
type Engine struct {
	schema   *dsl.Schema
	assets   *Registry
	resolver *binding.Resolver
	renderer renderer.Renderer
	logger   *slog.Logger
	atomic   bool
}

// Option 配置 Engine。
type Option func(*Engine)

// WithLogger 设置日志记录器，默认使用 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithAtomicWrites 控制输出是否先写临时文件再重命名（默认开启）。
// 关闭后直接写目标文件，进程中断时可能留下不完整的文件。
func WithAtomicWrites(enabled bool) Option {
	return func(e *Engine) { e.atomic = enabled }
}

// Open 读取 schema 文件，并以其所在目录为基准加载资源。
func Open(path string, r renderer.Renderer, opts ...Option) (*Engine, error) {
	s, err := dsl.LoadSchema(path)
	if err != nil {
		return nil, err
	}
	return New(s, filepath.Dir(path), r, opts...)
}

// New 基于已解析的 schema 构造 Engine。
func New(s *dsl.Schema, baseDir string, r renderer.Renderer, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("schema 不能为空")
	}
	if r == nil {
		return nil, fmt.Errorf("renderer 不能为空")
	}
	e := &Engine{schema: s, renderer: r, logger: slog.Default(), atomic: true}
	for _, opt := range opts {
		opt(e)
	}

	assets, err := LoadAssets(s, baseDir, r)
	if err != nil {
		return nil, err
	}
	e.assets = assets
	e.resolver = binding.NewResolver(assets, nil)
	if err := e.precompile(); err != nil {
		return nil, err
	}
	e.logger.Debug("schema 已加载", "baseDir", baseDir, "assets", assets.Names(), "layers", len(s.Frame.Layers))
	return e, nil
}

// precompile 编译 schema 中的全部表达式，使未知滤镜在加载阶段即报错。
func (e *Engine) precompile() error {
	var exprs []string
	for _, v := range e.schema.Defaults {
		exprs = append(exprs, v)
	}
	for _, l := range e.schema.Frame.Layers {
		switch layer := l.(type) {
		case *dsl.TextLayer:
			exprs = append(exprs, layer.String)
			exprs = append(exprs, layer.Fonts...)
		case *dsl.ImageLayer:
			exprs = append(exprs, layer.Image)
			exprs = append(exprs, layer.Default...)
		case *dsl.QRCodeLayer:
			exprs = append(exprs, layer.Data)
		}
	}
	for _, expr := range exprs {
		if err := e.resolver.Compile(expr); err != nil {
			return err
		}
	}
	return nil
}

// Schema 返回引擎使用的 schema。
func (e *Engine) Schema() *dsl.Schema { return e.schema }

// Assets 返回资源表。
func (e *Engine) Assets() *Registry { return e.assets }

// Data 解析 schema defaults（不使用行数据，只允许 @资源 或字面量），
// 再把 row 合并在其上。
func (e *Engine) Data(row binding.Data) (binding.Data, error) {
	keys := make([]string, 0, len(e.schema.Defaults))
	for key := range e.schema.Defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	defaults := make(binding.Data, len(keys))
	for _, key := range keys {
		expr := e.schema.Defaults[key]
		v, err := e.resolver.Resolve(expr, nil)
		if err != nil {
			return nil, fmt.Errorf("defaults.%s: %w", key, err)
		}
		if v.IsAsset() {
			defaults[key] = v.Asset
		} else {
			defaults[key] = v.Text
		}
	}
	return binding.Merge(defaults, row), nil
}

// OutputPath 用行数据解析输出文件名模板，返回相对路径。
func (e *Engine) OutputPath(format string, row binding.Data) (string, error) {
	data, err := e.Data(row)
	if err != nil {
		return "", err
	}
	name, err := e.resolver.Text(format, data)
	if err != nil {
		return "", fmt.Errorf("输出文件名: %w", err)
	}
	if name == "" {
		return "", fmt.Errorf("输出文件名模板 `%s` 解析为空", format)
	}
	return name, nil
}

// Render 合并 defaults 后合成一行数据，返回光栅化的图片与合成轨迹。
func (e *Engine) Render(row binding.Data) (image.Image, *layout.Trace, error) {
	data, err := e.Data(row)
	if err != nil {
		return nil, nil, err
	}
	frame, trace, err := e.Compose(data)
	if err != nil {
		return nil, trace, err
	}
	return frame.Image(), trace, nil
}

// Process 合成一行数据并写入 outputPath，图片格式由扩展名决定。
// 任一图层失败都会中止该行，不会写出文件。
func (e *Engine) Process(ctx context.Context, row binding.Data, outputPath string) (*layout.Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := imaging.FormatFromFilename(outputPath)
	if err != nil {
		return nil, fmt.Errorf("不支持的输出格式 %s: %w", outputPath, err)
	}

	img, trace, err := e.Render(row)
	if err != nil {
		return trace, err
	}
	trace.Output = outputPath

	if err := e.save(img, outputPath, format); err != nil {
		return trace, err
	}
	e.logger.Debug("已生成图片", "output", outputPath)
	return trace, nil
}

func (e *Engine) save(img image.Image, path string, format imaging.Format) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if !e.atomic {
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("写入图片 %s 失败: %w", path, err)
		}
		return nil
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // 重命名成功后为空操作

	if err := imaging.Encode(tmp, img, format); err != nil {
		tmp.Close()
		return fmt.Errorf("编码图片 %s 失败: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入图片 %s 失败: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("写入图片 %s 失败: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("写入图片 %s 失败: %w", path, err)
	}
	return nil
}
