package compose_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/imprint/binding"
	"github.com/ByLCY/imprint/compose"
	canvasrenderer "github.com/ByLCY/imprint/renderer/canvas"
)

const e2eSchema = `{
  "assets": {
    "name": { "font": "embed:goregular", "size": 16, "color": "#000000" },
    "logo": { "image": "logo.png" }
  },
  "frame": {
    "size": [200, 100],
    "layers": [
      { "type": "image", "image": "@logo", "at": [0, 0] },
      { "type": "text", "string": "${name}", "font": "@name", "at": [100, 50] }
    ]
  }
}`

func setupE2E(t *testing.T) *compose.Engine {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, imaging.Save(solid(20, 20, color.NRGBA{B: 255, A: 255}), filepath.Join(dir, "logo.png")))
	schema := filepath.Join(dir, "badge.json")
	require.NoError(t, os.WriteFile(schema, []byte(e2eSchema), 0o644))

	e, err := compose.Open(schema, canvasrenderer.NewRenderer(), compose.WithLogger(quiet))
	require.NoError(t, err)
	return e
}

func darkPixels(img image.Image, rect image.Rectangle) int {
	n := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if r, g, b, _ := img.At(x, y).RGBA(); r < 0x8000 && g < 0x8000 && b < 0x8000 {
				n++
			}
		}
	}
	return n
}

func TestEndToEndTwoRows(t *testing.T) {
	e := setupE2E(t)
	out := t.TempDir()

	rows := []binding.Data{{"id": "1", "name": "Ada"}, {"id": "2", "name": "Grace Hopper"}}
	res, err := compose.RunBatch(context.Background(), e, rows, compose.BatchOptions{OutputDir: out, Format: "${id}.png"})
	require.NoError(t, err)
	require.Len(t, res.Written, 2)

	var widths []int
	for _, p := range res.Written {
		img, err := imaging.Open(p)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(200, 100), img.Bounds().Size())

		r, g, b, _ := img.At(10, 10).RGBA()
		assert.True(t, r < 0x1000 && g < 0x1000 && b > 0xf000, "logo should be pasted at the origin")

		text := image.Rect(20, 30, 200, 70)
		dark := darkPixels(img, text)
		assert.Positive(t, dark, "text should be drawn around the anchor")
		widths = append(widths, dark)
	}
	assert.Greater(t, widths[1], widths[0], "the longer name should cover more pixels")
}

func TestEndToEndMissingNameWritesNothing(t *testing.T) {
	e := setupE2E(t)
	out := t.TempDir()

	rows := []binding.Data{{"id": "1", "name": "Ada"}, {"id": "2"}}
	_, err := compose.RunBatch(context.Background(), e, rows, compose.BatchOptions{OutputDir: out, Format: "${id}.png"})
	var verr *binding.UndefinedVariableError
	require.ErrorAs(t, err, &verr)

	assert.FileExists(t, filepath.Join(out, "1.png"))
	assert.NoFileExists(t, filepath.Join(out, "2.png"))
}

func TestEndToEndRerunIsByteIdentical(t *testing.T) {
	e := setupE2E(t)
	path := filepath.Join(t.TempDir(), "ada.png")
	row := binding.Data{"name": "Ada"}

	_, err := e.Process(context.Background(), row, path)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = e.Process(context.Background(), row, path)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second), "re-rendering should overwrite with identical bytes")
}
