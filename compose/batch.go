package compose

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/imprint/binding"
	"github.com/ByLCY/imprint/layout"
)

// BatchOptions 控制一次批量生成。
type BatchOptions struct {
	// OutputDir 是输出根目录，Format 解析出的相对路径拼接在其下。
	OutputDir string
	// Format 是输出文件名模板，例如 "${id}.png"。
	Format string
	// Limit 大于 0 时只处理前 Limit 行。
	Limit int
	// Workers 大于 1 时并发处理。
	Workers int
	// KeepGoing 为 true 时跳过失败的行，否则遇到第一个失败即中止。
	KeepGoing bool
	// DebugDir 非空时为每行写出合成轨迹 JSON。
	DebugDir string
}

// BatchResult 汇总批处理结果。
type BatchResult struct {
	// Written 按行顺序列出成功写出的文件。
	Written []string
	// Failed 记录被跳过的行，仅在 KeepGoing 时非空。
	Failed []*RowError
}

// RunBatch 逐行合成 rows 并写出图片。
func RunBatch(ctx context.Context, e *Engine, rows []binding.Data, opts BatchOptions) (*BatchResult, error) {
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	start := time.Now()

	written := make([]string, len(rows))
	var (
		mu     sync.Mutex
		failed []*RowError
	)
	run := func(ctx context.Context, i int) error {
		path, err := e.processRow(ctx, i, rows[i], opts)
		if err == nil {
			written[i] = path
			return nil
		}
		rowErr := &RowError{Row: i, Err: err}
		if !opts.KeepGoing || ctx.Err() != nil {
			return rowErr
		}
		e.logger.Warn("跳过失败的行", "row", i, "err", err)
		mu.Lock()
		failed = append(failed, rowErr)
		mu.Unlock()
		return nil
	}

	if opts.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i := range rows {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error { return run(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	} else {
		for i := range rows {
			if err := run(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	slices.SortFunc(failed, func(a, b *RowError) int { return a.Row - b.Row })
	res := &BatchResult{Failed: failed}
	for _, p := range written {
		if p != "" {
			res.Written = append(res.Written, p)
		}
	}
	e.logger.Info("批处理完成",
		"rows", len(rows), "written", len(res.Written), "failed", len(res.Failed),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (e *Engine) processRow(ctx context.Context, i int, row binding.Data, opts BatchOptions) (string, error) {
	rel, err := e.OutputPath(opts.Format, row)
	if err != nil {
		return "", err
	}
	path := filepath.Join(opts.OutputDir, rel)
	e.logger.Debug("处理数据行", "row", i, "output", path)

	trace, err := e.Process(ctx, row, path)
	if opts.DebugDir != "" && trace != nil {
		if werr := layout.WriteDebugJSON(trace, filepath.Join(opts.DebugDir, rel+".json")); werr != nil {
			e.logger.Warn("写入调试信息失败", "row", i, "err", werr)
		}
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

