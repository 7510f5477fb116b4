package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/ByLCY/imprint/binding"
	"github.com/ByLCY/imprint/dsl"
	"github.com/ByLCY/imprint/layout"
	"github.com/ByLCY/imprint/renderer"
)

var white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Compose 按声明顺序把各图层画到新画面上。data 应已合并 defaults。
// 出错时返回已完成图层的轨迹，便于定位。
func (e *Engine) Compose(data binding.Data) (renderer.Frame, *layout.Trace, error) {
	size := e.schema.Frame.Size
	frame := e.renderer.NewFrame(size.Width, size.Height, e.schema.Frame.Background.Or(white))
	trace := &layout.Trace{Width: size.Width, Height: size.Height}

	for i, l := range e.schema.Frame.Layers {
		at := l.Anchor()
		lt := layout.LayerTrace{Index: i, Type: l.Kind(), At: layout.Point{X: at.X, Y: at.Y}}

		var err error
		switch layer := l.(type) {
		case *dsl.TextLayer:
			err = e.drawText(frame, layer, data, &lt)
		case *dsl.ImageLayer:
			err = e.drawImage(frame, layer, data, &lt)
		case *dsl.QRCodeLayer:
			err = e.drawQRCode(frame, layer, data, &lt)
		default:
			err = fmt.Errorf("未知的图层类型 %s", l.Kind())
		}
		if err != nil {
			return nil, trace, &LayerError{Index: i, Type: l.Kind(), Err: err}
		}
		trace.Layers = append(trace.Layers, lt)
	}
	return frame, trace, nil
}

func (e *Engine) drawText(frame renderer.Frame, layer *dsl.TextLayer, data binding.Data, lt *layout.LayerTrace) error {
	text, err := e.resolver.Text(layer.String, data)
	if err != nil {
		return err
	}
	// schema 中以字面量 \n 表示换行
	text = strings.ReplaceAll(text, `\n`, "\n")

	faces := make([]layout.Face, 0, len(layer.Fonts))
	for _, expr := range layer.Fonts {
		v, err := e.resolver.Resolve(expr, nil)
		if err != nil {
			return err
		}
		face, ok := v.Asset.(layout.Face)
		if !ok {
			return fmt.Errorf("`%s` 不是字体资源", expr)
		}
		faces = append(faces, face)
	}

	placements, err := layout.DrawText(frame, text, faces, lt.At)
	if err != nil {
		return err
	}
	lt.Source = text
	lt.Lines = placements
	return nil
}

func (e *Engine) drawImage(frame renderer.Frame, layer *dsl.ImageLayer, data binding.Data, lt *layout.LayerTrace) error {
	img, source, err := e.resolveImage(layer, data)
	if err != nil {
		return err
	}
	for _, f := range layer.Filters {
		img = applyFilter(img, f)
	}

	b := img.Bounds()
	lt.Source = source
	lt.Size = &layout.Box{Width: float64(b.Dx()), Height: float64(b.Dy())}
	if err := frame.Paste(img, roundPoint(lt.At)); err != nil {
		return &ImageCompositionError{Expr: layer.Image, Err: err}
	}
	return nil
}

// resolveImage 依次尝试 image 与 default 中的表达式，返回第一个可用的图片。
// 变量未定义等解析错误不会触发回退。
func (e *Engine) resolveImage(layer *dsl.ImageLayer, data binding.Data) (image.Image, string, error) {
	var tried []string
	for _, expr := range append([]string{layer.Image}, layer.Default...) {
		v, err := e.resolver.Resolve(expr, data)
		if err != nil {
			return nil, "", err
		}
		if v.IsAsset() {
			if img, ok := v.Asset.(image.Image); ok {
				return img, expr, nil
			}
			tried = append(tried, expr)
			continue
		}
		img, err := e.renderer.OpenImage(v.Text)
		if err == nil {
			return img, v.Text, nil
		}
		e.logger.Debug("图片不可用，尝试下一个", "path", v.Text, "err", err)
		tried = append(tried, v.Text)
	}
	return nil, "", &ImageResolutionError{Expr: layer.Image, Tried: tried}
}

func applyFilter(img image.Image, f dsl.Filter) image.Image {
	t := f.Thumbnail
	if t == nil {
		return img
	}
	switch t.Mode {
	case dsl.ThumbnailOutbound:
		b := img.Bounds()
		if b.Dx() < t.Width || b.Dy() < t.Height {
			// 不放大：只从中心裁掉超出框的部分
			return imaging.CropCenter(img, min(b.Dx(), t.Width), min(b.Dy(), t.Height))
		}
		return imaging.Fill(img, t.Width, t.Height, imaging.Center, imaging.Lanczos)
	default:
		return imaging.Fit(img, t.Width, t.Height, imaging.Lanczos)
	}
}

var qrLevels = map[string]qrcode.RecoveryLevel{
	"":        qrcode.Medium,
	"low":     qrcode.Low,
	"medium":  qrcode.Medium,
	"high":    qrcode.High,
	"highest": qrcode.Highest,
}

func (e *Engine) drawQRCode(frame renderer.Frame, layer *dsl.QRCodeLayer, data binding.Data, lt *layout.LayerTrace) error {
	content, err := e.resolver.Text(layer.Data, data)
	if err != nil {
		return err
	}
	if content == "" {
		return errors.New("二维码内容为空")
	}
	q, err := qrcode.New(content, qrLevels[layer.Level])
	if err != nil {
		return &ImageCompositionError{Expr: layer.Data, Err: err}
	}
	img := q.Image(layer.Size)

	b := img.Bounds()
	lt.Source = content
	lt.Size = &layout.Box{Width: float64(b.Dx()), Height: float64(b.Dy())}
	if err := frame.Paste(img, roundPoint(lt.At)); err != nil {
		return &ImageCompositionError{Expr: layer.Data, Err: err}
	}
	return nil
}

func roundPoint(p layout.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}
