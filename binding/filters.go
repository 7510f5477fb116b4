package binding

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Filter 把变量值转换为另一段文本，必须是纯函数。
type Filter func(string) string

// Filters 是 ${name|filter} 可用的内置滤镜表。滤镜名只能由小写字母组成。
var Filters = map[string]Filter{
	"slug":  Slugify,
	"upper": func(s string) string { return cases.Upper(language.Und).String(s) },
	"lower": func(s string) string { return cases.Lower(language.Und).String(s) },
	"title": func(s string) string { return cases.Title(language.Und).String(s) },
	"trim":  strings.TrimSpace,
}

// Slugify 生成适合文件名与 URL 的文本："Hello World" → "hello-world"。
// 先去掉重音符号，再把非字母数字的连续片段替换为单个 "-"。
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = cases.Lower(language.Und).String(folded)

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
