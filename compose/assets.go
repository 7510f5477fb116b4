package compose

import (
	"image/color"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ByLCY/imprint/dsl"
	"github.com/ByLCY/imprint/fonts"
	"github.com/ByLCY/imprint/renderer"
)

// Registry 保存 schema 中声明并已加载的资源，构造后只读，可并发读取。
type Registry struct {
	assets map[string]any
}

// LoadAssets 相对 baseDir 加载 schema 声明的全部字体与图片资源。
func LoadAssets(s *dsl.Schema, baseDir string, r renderer.Renderer) (*Registry, error) {
	reg := &Registry{assets: make(map[string]any, len(s.Assets))}

	names := make([]string, 0, len(s.Assets))
	for name := range s.Assets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := s.Assets[name]
		switch {
		case spec.IsFont():
			path := assetPath(baseDir, spec.Font)
			face, err := r.LoadFont(path, spec.Size, spec.Color.Or(color.NRGBA{A: 0xff}))
			if err != nil {
				return nil, &AssetLoadError{Name: name, Path: path, Err: err}
			}
			reg.assets[name] = face
		case spec.IsImage():
			path := assetPath(baseDir, spec.Image)
			img, err := r.OpenImage(path)
			if err != nil {
				return nil, &AssetLoadError{Name: name, Path: path, Err: err}
			}
			reg.assets[name] = img
		}
	}
	return reg, nil
}

// assetPath 把 schema 中的路径拼接到 baseDir 之下，开头的 / 与 \ 会被去掉。
func assetPath(baseDir, path string) string {
	if fonts.IsEmbedded(path) {
		return path
	}
	return filepath.Join(baseDir, strings.TrimLeft(path, `/\`))
}

// Lookup 实现 binding.Assets。
func (r *Registry) Lookup(name string) (any, bool) {
	v, ok := r.assets[name]
	return v, ok
}

// Names 返回全部资源名（已排序）。
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.assets))
	for name := range r.assets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
