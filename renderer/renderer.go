package renderer

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ByLCY/imprint/layout"
)

// Renderer 提供合成所需的绘图能力：创建画面、加载字体与图片。
type Renderer interface {
	NewFrame(width, height int, background color.Color) Frame
	LoadFont(path string, size float64, col color.Color) (layout.Face, error)
	OpenImage(path string) (image.Image, error)
}

// Frame 是一行数据对应的可变画面。
type Frame interface {
	layout.TextCanvas
	// Paste 以 at 为左上角贴入图片；图片超出画面时返回错误。
	Paste(img image.Image, at image.Point) error
	Size() image.Point
	// Image 返回光栅化后的结果。
	Image() image.Image
}

// CheckPaste 校验图片贴在 at 处时是否完全位于 size 大小的画面之内。
func CheckPaste(size image.Point, img image.Image, at image.Point) error {
	if at.X < 0 || at.Y < 0 {
		return fmt.Errorf("贴图位置 (%d, %d) 不能为负数", at.X, at.Y)
	}
	b := img.Bounds()
	if at.X+b.Dx() > size.X || at.Y+b.Dy() > size.Y {
		return fmt.Errorf("无法在 (%d, %d) 贴入 %dx%d 的图片：超出 %dx%d 的画面",
			at.X, at.Y, b.Dx(), b.Dy(), size.X, size.Y)
	}
	return nil
}
