package dsl

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	templateLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Placeholder", Pattern: `\$\{[a-zA-Z_]+(?:\|[a-z]+)?\}`},
		{Name: "Text", Pattern: `[^$]+|\$`},
	})

	templateParser = participle.MustBuild[Template](
		participle.Lexer(templateLexer),
	)
)

// Template is the parsed form of a schema expression such as
// "certificates/${name|slug}.png".
type Template struct {
	Segments []*Segment `parser:"@@*"`
}

// Segment is either literal text or a placeholder.
type Segment struct {
	Placeholder *Placeholder `parser:"  @Placeholder"`
	Literal     *string      `parser:"| @Text"`
}

// Placeholder captures `${name}` or `${name|filter}`.
type Placeholder struct {
	Raw    string
	Name   string
	Filter string
}

// Capture implements participle.Capture.
func (p *Placeholder) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("placeholder capture requires value")
	}
	raw := values[0]
	body := strings.TrimSuffix(strings.TrimPrefix(raw, "${"), "}")
	name, filter, _ := strings.Cut(body, "|")
	*p = Placeholder{Raw: raw, Name: name, Filter: filter}
	return nil
}

// ParseTemplate parses an expression into literal and placeholder segments.
// Text that does not form a valid placeholder is kept literally.
func ParseTemplate(expr string) (*Template, error) {
	if expr == "" {
		return &Template{}, nil
	}
	return templateParser.ParseString("", expr)
}

// Placeholders returns the placeholders in left-to-right order.
func (t *Template) Placeholders() []*Placeholder {
	var out []*Placeholder
	for _, seg := range t.Segments {
		if seg.Placeholder != nil {
			out = append(out, seg.Placeholder)
		}
	}
	return out
}

// IsLiteral reports whether the template contains no placeholder.
func (t *Template) IsLiteral() bool {
	return len(t.Placeholders()) == 0
}

// String reassembles the original expression.
func (t *Template) String() string {
	var b strings.Builder
	for _, seg := range t.Segments {
		switch {
		case seg.Placeholder != nil:
			b.WriteString(seg.Placeholder.Raw)
		case seg.Literal != nil:
			b.WriteString(*seg.Literal)
		}
	}
	return b.String()
}
