package binding

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ByLCY/imprint/dsl"
)

var assetPattern = regexp.MustCompile(`^@([a-zA-Z_]+)`)

// Data 是一行输入数据（列名 → 标量值），与 schema defaults 合并后用于解析。
type Data map[string]any

// Merge 返回 defaults 与 row 合并后的新字典，键冲突时 row 优先。
func Merge(defaults, row Data) Data {
	out := make(Data, len(defaults)+len(row))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Assets 提供按名称查找已加载资源的能力。
type Assets interface {
	Lookup(name string) (any, bool)
}

// Value 是表达式解析结果：要么是资源句柄，要么是替换后的文本。
type Value struct {
	Asset any
	Text  string
}

// IsAsset 表示结果是否为 @name 形式引用的资源。
func (v Value) IsAsset() bool { return v.Asset != nil }

// Resolver 解析 schema 表达式。模板在首次使用时编译并缓存，可被多个 goroutine 共享。
type Resolver struct {
	assets    Assets
	filters   map[string]Filter
	templates sync.Map // string → *compiled
}

type compiled struct {
	tpl *dsl.Template
	err error
}

// NewResolver 创建解析器；filters 为 nil 时使用内置的 Filters。
func NewResolver(assets Assets, filters map[string]Filter) *Resolver {
	if filters == nil {
		filters = Filters
	}
	return &Resolver{assets: assets, filters: filters}
}

// Resolve 解析表达式。
//
// 以 "@标识符" 开头的表达式返回注册表中的资源句柄，不查询 data；
// 其余表达式中的 ${name} 与 ${name|filter} 按从左到右的顺序用 data 中的值替换。
func (r *Resolver) Resolve(expr string, data Data) (Value, error) {
	if m := assetPattern.FindStringSubmatch(expr); m != nil {
		name := m[1]
		if r.assets != nil {
			if asset, ok := r.assets.Lookup(name); ok {
				return Value{Asset: asset}, nil
			}
		}
		return Value{}, &UndefinedAssetError{Name: name}
	}

	tpl, err := r.compile(expr)
	if err != nil {
		return Value{}, err
	}

	if tpl.IsLiteral() {
		return Value{Text: tpl.String()}, nil
	}

	var b strings.Builder
	for _, seg := range tpl.Segments {
		if seg.Literal != nil {
			b.WriteString(*seg.Literal)
			continue
		}
		ph := seg.Placeholder
		raw, ok := data[ph.Name]
		if !ok {
			return Value{}, &UndefinedVariableError{Name: ph.Name, Expr: expr}
		}
		text := Stringify(raw)
		if ph.Filter != "" {
			text = r.filters[ph.Filter](text)
		}
		b.WriteString(text)
	}
	return Value{Text: b.String()}, nil
}

// Text 解析表达式并要求结果为文本。
func (r *Resolver) Text(expr string, data Data) (string, error) {
	v, err := r.Resolve(expr, data)
	if err != nil {
		return "", err
	}
	if v.IsAsset() {
		return "", fmt.Errorf("[Resolve] 表达式 `%s` 引用了资源，此处需要文本", expr)
	}
	return v.Text, nil
}

// Compile 预先编译表达式，便于在加载 schema 时提前发现未知滤镜。
func (r *Resolver) Compile(expr string) error {
	if assetPattern.MatchString(expr) {
		return nil
	}
	_, err := r.compile(expr)
	return err
}

func (r *Resolver) compile(expr string) (*dsl.Template, error) {
	if cached, ok := r.templates.Load(expr); ok {
		c := cached.(*compiled)
		return c.tpl, c.err
	}
	tpl, err := dsl.ParseTemplate(expr)
	if err != nil {
		err = fmt.Errorf("[Resolve] 无法解析表达式 `%s`: %w", expr, err)
	} else {
		for _, ph := range tpl.Placeholders() {
			if _, ok := r.filters[ph.Filter]; ph.Filter != "" && !ok {
				err = &UnknownFilterError{Name: ph.Filter, Expr: expr}
				break
			}
		}
	}
	if err != nil {
		tpl = nil
	}
	r.templates.Store(expr, &compiled{tpl: tpl, err: err})
	return tpl, err
}

// Stringify 将行数据中的标量值转换为文本，nil 视为空串。
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
