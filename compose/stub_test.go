package compose_test

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/ByLCY/imprint/layout"
	"github.com/ByLCY/imprint/renderer"
)

// stubFace 按字符数估算宽度：宽 = 字符数 × advance。
type stubFace struct {
	path    string
	advance float64
	height  float64
	color   color.Color
}

func (f *stubFace) Box(text string) layout.Box {
	return layout.Box{Width: float64(len([]rune(text))) * f.advance, Height: f.height}
}

type textCall struct {
	Text   string
	Face   *stubFace
	Origin layout.Point
}

// stubRenderer 在内存中模拟渲染器：字体按字号估算尺寸，图片从 images 中查找。
type stubRenderer struct {
	images map[string]image.Image

	mu     sync.Mutex
	frames []*stubFrame
	opened []string
}

func newStubRenderer() *stubRenderer {
	return &stubRenderer{images: map[string]image.Image{}}
}

func (r *stubRenderer) NewFrame(width, height int, bg color.Color) renderer.Frame {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	f := &stubFrame{img: img}
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	return f
}

func (r *stubRenderer) LoadFont(path string, size float64, col color.Color) (layout.Face, error) {
	if path == "" || size <= 0 {
		return nil, fmt.Errorf("bad font %q size %g", path, size)
	}
	return &stubFace{path: path, advance: size / 2, height: size, color: col}, nil
}

func (r *stubRenderer) OpenImage(path string) (image.Image, error) {
	r.mu.Lock()
	r.opened = append(r.opened, path)
	r.mu.Unlock()
	img, ok := r.images[path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	return img, nil
}

func (r *stubRenderer) lastFrame() *stubFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

type stubFrame struct {
	img    *image.NRGBA
	texts  []textCall
	pasted []image.Rectangle
}

func (f *stubFrame) DrawText(text string, face layout.Face, origin layout.Point) error {
	sf, ok := face.(*stubFace)
	if !ok {
		return fmt.Errorf("unexpected face %T", face)
	}
	f.texts = append(f.texts, textCall{Text: text, Face: sf, Origin: origin})
	// 用字体颜色填充包围盒，方便在输出文件中检查
	box := sf.Box(text)
	rect := image.Rect(int(origin.X), int(origin.Y), int(origin.X+box.Width), int(origin.Y+box.Height))
	draw.Draw(f.img, rect.Intersect(f.img.Bounds()), image.NewUniform(sf.color), image.Point{}, draw.Src)
	return nil
}

func (f *stubFrame) Paste(img image.Image, at image.Point) error {
	if err := renderer.CheckPaste(f.Size(), img, at); err != nil {
		return err
	}
	b := img.Bounds()
	rect := image.Rectangle{Min: at, Max: at.Add(b.Size())}
	draw.Draw(f.img, rect, img, b.Min, draw.Over)
	f.pasted = append(f.pasted, rect)
	return nil
}

func (f *stubFrame) Size() image.Point { return f.img.Bounds().Size() }

func (f *stubFrame) Image() image.Image { return f.img }

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}
