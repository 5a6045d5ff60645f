package compose

import (
	"fmt"
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

// Placeholders understood by post templates.
const (
	PlaceholderTitle = "title"
	PlaceholderLink  = "link"
)

// TemplateError reports a template body that cannot be rendered.
type TemplateError struct {
	Offset      int
	Placeholder string
	Reason      string
}

func (e *TemplateError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("template error at offset %d: %s {%s}", e.Offset, e.Reason, e.Placeholder)
	}
	return fmt.Sprintf("template error at offset %d: %s", e.Offset, e.Reason)
}

// Validate checks that body only references known placeholders.
func Validate(body string) error {
	_, err := Substitute(body, map[string]string{PlaceholderTitle: "", PlaceholderLink: ""})
	return err
}

// Literal braces are carried through fasttemplate as tags no template
// can spell, since scan rejects every name not in values.
const (
	literalOpen  = "\x00lbrace"
	literalClose = "\x00rbrace"
)

// Substitute replaces every {name} in body with values[name]. Doubled braces
// are literal braces. Unknown names and unbalanced braces are errors.
func Substitute(body string, values map[string]string) (string, error) {
	src, err := scan(body, values)
	if err != nil {
		return "", err
	}

	return fasttemplate.ExecuteFuncStringWithErr(src, "{", "}", func(w io.Writer, tag string) (int, error) {
		switch tag {
		case literalOpen:
			return io.WriteString(w, "{")
		case literalClose:
			return io.WriteString(w, "}")
		}
		v, ok := values[tag]
		if !ok {
			return 0, &TemplateError{Placeholder: tag, Reason: "unknown placeholder"}
		}
		return io.WriteString(w, v)
	})
}

// scan checks the structure of body and rewrites its escapes into tags, so
// every brace left in the result delimits a known placeholder.
func scan(body string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(body))

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '{':
			if i+1 < len(body) && body[i+1] == '{' {
				b.WriteString("{" + literalOpen + "}")
				i++
				continue
			}
			end := strings.IndexByte(body[i+1:], '}')
			if end < 0 {
				return "", &TemplateError{Offset: i, Reason: "unclosed placeholder"}
			}
			name := body[i+1 : i+1+end]
			if _, ok := values[name]; !ok {
				return "", &TemplateError{Offset: i, Placeholder: name, Reason: "unknown placeholder"}
			}
			b.WriteString(body[i : i+end+2])
			i += end + 1
		case '}':
			if i+1 < len(body) && body[i+1] == '}' {
				b.WriteString("{" + literalClose + "}")
				i++
				continue
			}
			return "", &TemplateError{Offset: i, Reason: "single '}' in template"}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
