package canvasrenderer

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/imprint/fonts"
	"github.com/ByLCY/imprint/layout"
	"github.com/ByLCY/imprint/renderer"
)

// Canvas units are pixels: frames are rasterised at one dot per canvas unit,
// and font sizes are points at 96 DPI, matching the usual GD behaviour.
const (
	dotsPerUnit = 1.0
	fontScale   = 96.0 / 25.4
)

// Renderer draws frames via github.com/tdewolff/canvas.
type Renderer struct {
	// canvas font faces keep shaping caches that are not safe for concurrent
	// use, so measuring, drawing and rasterising share one lock.
	mu       sync.Mutex
	families map[string]*canvas.FontFamily
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ renderer.Frame    = (*Frame)(nil)
	_ layout.Face       = (*Font)(nil)
)

// NewRenderer creates a canvas-based renderer.
func NewRenderer() *Renderer {
	return &Renderer{families: map[string]*canvas.FontFamily{}}
}

// Font is a loaded font face at a fixed size and colour.
type Font struct {
	r    *Renderer
	face *canvas.FontFace
	path string
	size float64
}

// Box measures a single line of text in pixels.
func (f *Font) Box(text string) layout.Box {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return f.box(text)
}

func (f *Font) box(text string) layout.Box {
	m := f.face.Metrics()
	return layout.Box{
		Width:  f.face.TextWidth(text),
		Height: math.Abs(m.Ascent) + math.Abs(m.Descent),
	}
}

func (f *Font) String() string { return fmt.Sprintf("%s@%gpt", f.path, f.size) }

// LoadFont loads the font file at path with the given point size and colour.
// Paths starting with "embed:" select a built-in Go font.
func (r *Renderer) LoadFont(path string, size float64, col color.Color) (layout.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("字体 %s 的字号必须为正数", path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	family, err := r.ensureFontFamily(path)
	if err != nil {
		return nil, err
	}
	face := family.Face(size*fontScale, toCanvasColor(col), canvas.FontRegular, canvas.FontNormal)
	return &Font{r: r, face: face, path: path, size: size}, nil
}

func (r *Renderer) ensureFontFamily(path string) (*canvas.FontFamily, error) {
	if family, ok := r.families[path]; ok {
		return family, nil
	}
	data, err := loadFontBytes(path)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily(path)
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("解析字体 %s 失败: %w", path, err)
	}
	r.families[path] = family
	return family, nil
}

func loadFontBytes(path string) ([]byte, error) {
	if fonts.IsEmbedded(path) {
		return fonts.Load(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", path, err)
	}
	return data, nil
}

// OpenImage decodes the image at path, honouring EXIF orientation.
func (r *Renderer) OpenImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", path, err)
	}
	return img, nil
}

// Frame is a canvas sized in pixels with a top-left origin.
type Frame struct {
	r    *Renderer
	size image.Point
	c    *canvas.Canvas
	ctx  *canvas.Context
}

// NewFrame creates a frame filled with background.
func (r *Renderer) NewFrame(width, height int, background color.Color) renderer.Frame {
	c := canvas.New(float64(width), float64(height))
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与 schema 保持左上角为原点

	ctx.SetFillColor(toCanvasColor(background))
	ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
	ctx.DrawPath(0, 0, canvas.Rectangle(float64(width), float64(height)))

	return &Frame{r: r, size: image.Pt(width, height), c: c, ctx: ctx}
}

// Size returns the frame size in pixels.
func (f *Frame) Size() image.Point { return f.size }

// DrawText draws one line with the top-left corner of its box at origin.
func (f *Frame) DrawText(text string, face layout.Face, origin layout.Point) error {
	font, ok := face.(*Font)
	if !ok {
		return fmt.Errorf("字体 %v 不是由 canvas 渲染器加载的", face)
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()

	line := canvas.NewTextLine(font.face, text, canvas.Left)
	// 基线位置：包围盒顶部加上字体上升部
	baseline := origin.Y + math.Abs(font.face.Metrics().Ascent)
	f.ctx.DrawText(origin.X, baseline, line)
	return nil
}

// Paste draws img with its top-left corner at at.
func (f *Frame) Paste(img image.Image, at image.Point) error {
	if err := renderer.CheckPaste(f.size, img, at); err != nil {
		return err
	}
	f.ctx.DrawImage(float64(at.X), float64(at.Y), img, canvas.DPMM(dotsPerUnit))
	return nil
}

// Image rasterises the frame.
func (f *Frame) Image() image.Image {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return rasterizer.Draw(f.c, canvas.DPMM(dotsPerUnit), canvas.DefaultColorSpace)
}

func toCanvasColor(col color.Color) color.RGBA {
	if col == nil {
		return canvas.Black
	}
	c := color.NRGBAModel.Convert(col).(color.NRGBA)
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, float64(c.A)/255.0)
}
