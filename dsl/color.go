package dsl

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is a schema colour. It accepts "#rgb", "#rrggbb", "#rrggbbaa"
// (the leading "#" is optional) or an [r, g, b] / [r, g, b, a] array of
// 0-255 components. Set is false when the schema omits the colour.
type Color struct {
	RGBA color.NRGBA
	Set  bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Color) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Color{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		col, err := ParseColor(s)
		if err != nil {
			return err
		}
		*c = Color{RGBA: col, Set: true}
		return nil
	}

	var parts []int
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("颜色应为十六进制字符串或 [r, g, b] 数组: %s", string(data))
	}
	if len(parts) != 3 && len(parts) != 4 {
		return fmt.Errorf("颜色数组应包含 3 或 4 个元素，实际 %d 个", len(parts))
	}
	for _, p := range parts {
		if p < 0 || p > 255 {
			return fmt.Errorf("颜色分量 %d 超出 0-255 范围", p)
		}
	}
	col := color.NRGBA{R: uint8(parts[0]), G: uint8(parts[1]), B: uint8(parts[2]), A: 0xff}
	if len(parts) == 4 {
		col.A = uint8(parts[3])
	}
	*c = Color{RGBA: col, Set: true}
	return nil
}

// MarshalJSON writes "#rrggbbaa", or null when the colour was not declared.
func (c Color) MarshalJSON() ([]byte, error) {
	if !c.Set {
		return []byte("null"), nil
	}
	return json.Marshal(fmt.Sprintf("#%02x%02x%02x%02x", c.RGBA.R, c.RGBA.G, c.RGBA.B, c.RGBA.A))
}

// Or returns c when it was declared, otherwise fallback.
func (c *Color) Or(fallback color.NRGBA) color.NRGBA {
	if c == nil || !c.Set {
		return fallback
	}
	return c.RGBA
}

// ParseColor parses a hexadecimal colour string.
func ParseColor(value string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}) + "ff"
	case 6:
		hex += "ff"
	case 8:
	default:
		return color.NRGBA{}, fmt.Errorf("无效的颜色值 %q", value)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("无效的颜色值 %q", value)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
