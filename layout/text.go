package layout

import (
	"fmt"
	"strings"
)

// DrawText 以 anchor 为中心绘制（可能多行的）文本。
//
// faces 按优先级排列。某一行在当前字体下包围盒左边缘落到 x ≤ 0 时，
// 改用下一个字体重试同一行；已切换的字体对后续各行继续生效。
// 所有候选字体都放不下时返回 *TextPlacementError。
// 多行文本的行高取首行在首个字体下的高度，整体在 anchor 处垂直居中。
func DrawText(dst TextCanvas, text string, faces []Face, anchor Point) ([]Placement, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, nil
	}
	if len(faces) == 0 {
		return nil, &TextPlacementError{Line: lines[0]}
	}

	var lineHeight float64
	if len(lines) > 1 {
		box := faces[0].Box(lines[0])
		blockHeight := float64(len(lines)) * box.Height
		lineHeight = blockHeight / float64(len(lines))
		// 以行中心为基准，使首行顶部落在 anchor.Y - blockHeight/2
		anchor.Y = anchor.Y - blockHeight/2 + lineHeight/2
	}

	placements := make([]Placement, 0, len(lines))
	current := 0
	for _, line := range lines {
		placed := false
		for current < len(faces) {
			face := faces[current]
			box := face.Box(line)
			origin, ok := drawPoint(box, anchor)
			if !ok {
				current++
				continue
			}
			if err := dst.DrawText(line, face, origin); err != nil {
				return placements, fmt.Errorf("绘制文本 `%s` 失败: %w", line, err)
			}
			placements = append(placements, Placement{Line: line, FaceIndex: current, Origin: origin, Box: box})
			placed = true
			break
		}
		if !placed {
			return placements, &TextPlacementError{Line: line, Candidates: len(faces)}
		}
		anchor.Y += lineHeight
	}
	return placements, nil
}

// drawPoint 根据期望的中心点与包围盒计算绘制原点；左边缘超出画面时返回 false。
func drawPoint(box Box, center Point) (Point, bool) {
	left := center.X - box.Width/2
	if left <= 0 {
		return Point{}, false
	}
	return Point{X: left, Y: center.Y - box.Height/2}, true
}

func splitLines(text string) []string {
	parts := strings.Split(text, "\n")
	lines := parts[:0]
	for _, p := range parts {
		if p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

// TextPlacementError 表示没有任何候选字体能让该行文本落在画面内。
type TextPlacementError struct {
	Line       string
	Candidates int
}

func (e *TextPlacementError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("[String] 没有可用的字体绘制文本 `%s`", e.Line)
	}
	return fmt.Sprintf("[String] 在 %d 个候选字体中找不到文本 `%s` 的有效坐标", e.Candidates, e.Line)
}
