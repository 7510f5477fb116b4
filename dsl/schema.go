package dsl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// 注释剥离沿用逐行正则的做法：行注释吞掉到行尾（包括换行符），
// 块注释只在同一行内匹配，且贪婪匹配到该行最后一个 "*/"。
// 跨行的块注释不会被剥离，会以 JSON 语法错误的形式报告。
var (
	lineCommentPattern  = regexp.MustCompile(`//.+\n`)
	blockCommentPattern = regexp.MustCompile(`/\*.+\*/`)
)

// Schema is the parsed composition definition.
type Schema struct {
	Assets   map[string]AssetSpec `json:"assets"`
	Defaults map[string]string    `json:"defaults"`
	Frame    FrameSpec            `json:"frame"`
}

// AssetSpec declares either a font or an image asset.
type AssetSpec struct {
	Font  string  `json:"font,omitempty"`
	Image string  `json:"image,omitempty"`
	Size  float64 `json:"size,omitempty"`
	Color Color   `json:"color,omitzero"`
}

// IsFont reports whether the asset declares a font.
func (a AssetSpec) IsFont() bool { return a.Font != "" }

// IsImage reports whether the asset declares an image.
func (a AssetSpec) IsImage() bool { return a.Image != "" }

// FrameSpec describes the output raster and its ordered layers.
type FrameSpec struct {
	Size       Size    `json:"size"`
	Background *Color  `json:"background,omitempty"`
	Layers     []Layer `json:"layers"`
}

// Size is a width×height pair written as [w, h].
type Size struct {
	Width  int
	Height int
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Size) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("size 应为 [宽, 高] 整数数组: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("size 应包含 2 个元素，实际 %d 个", len(pair))
	}
	*s = Size{Width: pair[0], Height: pair[1]}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Width, s.Height})
}

// Point is an (x, y) position written as [x, y].
type Point struct {
	X float64
	Y float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("at 应为 [x, y] 数值数组: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("at 应包含 2 个元素，实际 %d 个", len(pair))
	}
	*p = Point{X: pair[0], Y: pair[1]}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON decodes the frame, accepting "past" as an alias of "layers".
func (f *FrameSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Size       *Size             `json:"size"`
		Background *Color            `json:"background"`
		Layers     []json.RawMessage `json:"layers"`
		Past       []json.RawMessage `json:"past"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Size == nil {
		return fmt.Errorf("frame 缺少 size")
	}
	items := raw.Layers
	if items == nil {
		items = raw.Past
	}
	layers := make([]Layer, 0, len(items))
	for i, item := range items {
		layer, err := decodeLayer(item)
		if err != nil {
			return fmt.Errorf("frame 第 %d 个图层: %w", i, err)
		}
		layers = append(layers, layer)
	}
	*f = FrameSpec{Size: *raw.Size, Background: raw.Background, Layers: layers}
	return nil
}

// MarshalJSON writes the frame back in schema form, each layer carrying its type.
func (f FrameSpec) MarshalJSON() ([]byte, error) {
	layers := make([]json.RawMessage, 0, len(f.Layers))
	for _, l := range f.Layers {
		body, err := json.Marshal(l)
		if err != nil {
			return nil, err
		}
		kind, err := json.Marshal(l.Kind())
		if err != nil {
			return nil, err
		}
		// 图层总带有 at，body 不会是空对象
		item := append([]byte(`{"type":`), kind...)
		item = append(item, ',')
		layers = append(layers, append(item, body[1:]...))
	}
	return json.Marshal(struct {
		Size       Size              `json:"size"`
		Background *Color            `json:"background,omitempty"`
		Layers     []json.RawMessage `json:"layers"`
	}{f.Size, f.Background, layers})
}

// LoadSchema reads and parses the schema file at path.
func LoadSchema(path string) (*Schema, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 schema 文件 %s: %w", path, err)
	}
	s, err := parseSchema(path, content)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ParseSchemaString parses schema content from a string.
func ParseSchemaString(input string) (*Schema, error) {
	return parseSchema("", []byte(input))
}

// StripComments removes // line comments and single-line /* */ comments.
// It is not a tokenizer: "//" inside string values is stripped as well.
func StripComments(content []byte) []byte {
	content = lineCommentPattern.ReplaceAll(content, nil)
	return blockCommentPattern.ReplaceAll(content, nil)
}

func parseSchema(path string, content []byte) (*Schema, error) {
	stripped := StripComments(content)

	var s Schema
	if err := json.Unmarshal(stripped, &s); err != nil {
		return nil, newSchemaParseError(path, stripped, err)
	}
	if err := s.Validate(); err != nil {
		return nil, &SchemaParseError{Path: path, Err: err}
	}
	return &s, nil
}

// Validate checks the schema shape beyond what JSON decoding enforces.
func (s *Schema) Validate() error {
	if s.Frame.Size.Width <= 0 || s.Frame.Size.Height <= 0 {
		return fmt.Errorf("frame.size 必须为正数，实际 %dx%d", s.Frame.Size.Width, s.Frame.Size.Height)
	}
	for name, asset := range s.Assets {
		if !assetNamePattern.MatchString(name) {
			return fmt.Errorf("资源名 %q 只能包含字母与下划线", name)
		}
		switch {
		case asset.IsFont() && asset.IsImage():
			return fmt.Errorf("资源 %s 不能同时声明 font 与 image", name)
		case asset.IsFont():
			if asset.Size <= 0 {
				return fmt.Errorf("字体资源 %s 的 size 必须为正数", name)
			}
		case asset.IsImage():
		default:
			return fmt.Errorf("资源 %s 缺少 font 或 image", name)
		}
	}
	for i, layer := range s.Frame.Layers {
		if err := layer.validate(); err != nil {
			return fmt.Errorf("frame 第 %d 个 %s 图层: %w", i, layer.Kind(), err)
		}
	}
	return nil
}

var assetNamePattern = regexp.MustCompile(`^[a-zA-Z_]+$`)

func newSchemaParseError(path string, content []byte, err error) error {
	perr := &SchemaParseError{Path: path, Err: err}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		perr.Line, perr.Column = position(content, syntaxErr.Offset)
	case errors.As(err, &typeErr):
		perr.Line, perr.Column = position(content, typeErr.Offset)
	}
	return perr
}

// position converts a byte offset into a 1-based line and column.
func position(content []byte, offset int64) (int, int) {
	if offset > int64(len(content)) {
		offset = int64(len(content))
	}
	head := content[:offset]
	line := bytes.Count(head, []byte{'\n'}) + 1
	col := int(offset) - bytes.LastIndexByte(head, '\n')
	return line, col
}

// SchemaParseError reports invalid schema content.
type SchemaParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *SchemaParseError) Error() string {
	var b strings.Builder
	b.WriteString("[Schema] 组合 schema 无效")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (%d:%d)", e.Line, e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *SchemaParseError) Unwrap() error { return e.Err }
