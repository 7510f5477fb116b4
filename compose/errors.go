package compose

import "fmt"

// AssetLoadError 表示 schema assets 中的某个资源加载失败。
type AssetLoadError struct {
	Name string
	Path string
	Err  error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("[Asset] 加载资源 `%s`（%s）失败: %v", e.Name, e.Path, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// ImageResolutionError 表示图片图层的表达式及其全部 default 都无法得到可用图片。
type ImageResolutionError struct {
	Expr  string
	Tried []string
}

func (e *ImageResolutionError) Error() string {
	return fmt.Sprintf("[Image] 无法解析图片 `%s`（已尝试 %d 个路径）", e.Expr, len(e.Tried))
}

// ImageCompositionError 表示图片处理或贴图失败。
type ImageCompositionError struct {
	Expr string
	Err  error
}

func (e *ImageCompositionError) Error() string {
	return fmt.Sprintf("[Image] `%s`: %v", e.Expr, e.Err)
}

func (e *ImageCompositionError) Unwrap() error { return e.Err }

// LayerError 为图层处理错误附加图层序号与类型，便于定位 schema 中的条目。
type LayerError struct {
	Index int
	Type  string
	Err   error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("第 %d 个 %s 图层: %v", e.Index, e.Type, e.Err)
}

func (e *LayerError) Unwrap() error { return e.Err }

// RowError 为批处理中的失败附加行号（从 0 开始）。
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("第 %d 行: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
