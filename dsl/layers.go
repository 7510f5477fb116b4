package dsl

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Layer types.
const (
	LayerText   = "text"
	LayerImage  = "image"
	LayerQRCode = "qrcode"
)

// Thumbnail modes.
const (
	ThumbnailInset    = "inset"
	ThumbnailOutbound = "outbound"
)

// Layer is one drawing instruction of the frame. The set of implementations
// is closed: *TextLayer, *ImageLayer and *QRCodeLayer.
type Layer interface {
	Kind() string
	Anchor() Point
	validate() error
}

// TextLayer draws a template string centred on At.
type TextLayer struct {
	At     Point    `json:"at"`
	String string   `json:"string"`
	Fonts  FontList `json:"font"`
}

// ImageLayer pastes an image with its top-left corner at At.
type ImageLayer struct {
	At      Point    `json:"at"`
	Image   string   `json:"image"`
	Default []string `json:"default,omitempty"`
	Filters Filters  `json:"filters,omitempty"`
}

// QRCodeLayer encodes Data as a QR code of Size×Size pixels pasted at At.
type QRCodeLayer struct {
	At    Point  `json:"at"`
	Data  string `json:"data"`
	Size  int    `json:"size"`
	Level string `json:"level,omitempty"`
}

func (l *TextLayer) Kind() string   { return LayerText }
func (l *ImageLayer) Kind() string  { return LayerImage }
func (l *QRCodeLayer) Kind() string { return LayerQRCode }

func (l *TextLayer) Anchor() Point   { return l.At }
func (l *ImageLayer) Anchor() Point  { return l.At }
func (l *QRCodeLayer) Anchor() Point { return l.At }

func (l *TextLayer) validate() error {
	if len(l.Fonts) == 0 {
		return fmt.Errorf("缺少 font")
	}
	for _, f := range l.Fonts {
		if f == "" {
			return fmt.Errorf("font 不能为空字符串")
		}
	}
	return nil
}

func (l *ImageLayer) validate() error {
	if l.Image == "" {
		return fmt.Errorf("缺少 image")
	}
	for _, f := range l.Filters {
		if err := f.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (l *QRCodeLayer) validate() error {
	if l.Data == "" {
		return fmt.Errorf("缺少 data")
	}
	if l.Size <= 0 {
		return fmt.Errorf("size 必须为正数")
	}
	switch l.Level {
	case "", "low", "medium", "high", "highest":
	default:
		return fmt.Errorf("未知的纠错等级 %q", l.Level)
	}
	return nil
}

// FontList is an ordered list of font expressions, highest priority first.
// The schema may write a single string instead of a list.
type FontList []string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FontList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = FontList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("font 应为字符串或字符串数组: %s", string(data))
	}
	*f = list
	return nil
}

// Filter is one image filter. Thumbnail is the only filter so far.
type Filter struct {
	Name      string
	Thumbnail *Thumbnail
}

// Thumbnail resizes to Width×Height using Mode.
type Thumbnail struct {
	Width  int
	Height int
	Mode   string
}

func (f Filter) validate() error {
	if f.Name != "thumbnail" || f.Thumbnail == nil {
		return fmt.Errorf("未知的图片滤镜 %q", f.Name)
	}
	t := f.Thumbnail
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("thumbnail 尺寸必须为正数，实际 %dx%d", t.Width, t.Height)
	}
	if t.Mode != ThumbnailInset && t.Mode != ThumbnailOutbound {
		return fmt.Errorf("未知的 thumbnail 模式 %q", t.Mode)
	}
	return nil
}

// Filters keeps the declaration order of the "filters" object.
type Filters []Filter

// UnmarshalJSON walks the object token by token so the key order survives.
func (fs *Filters) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("filters 应为对象")
	}
	var out Filters
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)
		var params json.RawMessage
		if err := dec.Decode(&params); err != nil {
			return err
		}
		filter := Filter{Name: name}
		if name == "thumbnail" {
			thumb, err := decodeThumbnail(params)
			if err != nil {
				return err
			}
			filter.Thumbnail = thumb
		}
		out = append(out, filter)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*fs = out
	return nil
}

// MarshalJSON implements json.Marshaler.
func (fs Filters) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Name)
		buf.Write(key)
		buf.WriteByte(':')
		var value any
		if f.Thumbnail != nil {
			value = []any{f.Thumbnail.Width, f.Thumbnail.Height, f.Thumbnail.Mode}
		}
		v, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeThumbnail(params json.RawMessage) (*Thumbnail, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, fmt.Errorf("thumbnail 参数应为 [宽, 高, 模式]: %w", err)
	}
	if len(raw) != 2 && len(raw) != 3 {
		return nil, fmt.Errorf("thumbnail 参数应为 [宽, 高, 模式]，实际 %d 个元素", len(raw))
	}
	t := &Thumbnail{Mode: ThumbnailInset}
	if err := json.Unmarshal(raw[0], &t.Width); err != nil {
		return nil, fmt.Errorf("thumbnail 宽度无效: %w", err)
	}
	if err := json.Unmarshal(raw[1], &t.Height); err != nil {
		return nil, fmt.Errorf("thumbnail 高度无效: %w", err)
	}
	if len(raw) == 3 {
		if err := json.Unmarshal(raw[2], &t.Mode); err != nil {
			return nil, fmt.Errorf("thumbnail 模式无效: %w", err)
		}
	}
	return t, nil
}

func decodeLayer(data json.RawMessage) (Layer, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	var layer Layer
	switch head.Type {
	case LayerText:
		layer = &TextLayer{}
	case LayerImage:
		layer = &ImageLayer{}
	case LayerQRCode:
		layer = &QRCodeLayer{}
	case "":
		return nil, fmt.Errorf("缺少 type")
	default:
		return nil, fmt.Errorf("未知的图层类型 %q", head.Type)
	}
	if err := json.Unmarshal(data, layer); err != nil {
		return nil, fmt.Errorf("%s 图层: %w", head.Type, err)
	}
	if !hasKey(data, "at") {
		return nil, fmt.Errorf("%s 图层缺少 at", head.Type)
	}
	return layer, nil
}

func hasKey(data json.RawMessage, key string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}
