package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Trace 记录一次合成中各图层的处理结果，用于调试输出。
type Trace struct {
	Output string       `json:"output,omitempty"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Layers []LayerTrace `json:"layers"`
}

// LayerTrace 描述单个图层：文本图层记录每行的位置，图片图层记录来源与尺寸。
type LayerTrace struct {
	Index  int         `json:"index"`
	Type   string      `json:"type"`
	At     Point       `json:"at"`
	Source string      `json:"source,omitempty"`
	Size   *Box        `json:"size,omitempty"`
	Lines  []Placement `json:"lines,omitempty"`
}

// WriteDebugJSON 将合成轨迹输出为 JSON，便于调试或可视化。
func WriteDebugJSON(tr *Trace, path string) error {
	if tr == nil {
		return nil
	}
	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
