// Package prompt renders persona templates for agent system prompts. It
// lives in internal to avoid committing to public API stability prematurely.
package prompt

import (
	"bytes"
	"strings"
	"text/template"
)

// Render replaces template variables using Go's text/template package. Texts
// without template markers pass through untouched, so plain system prompts
// need no escaping.
func Render(text string, data any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := template.New("persona").Funcs(template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": func(s string) string {
			if len(s) == 0 {
				return s
			}
			return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
		},
	}).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
