package templates

import (
	"bytes"
	"fmt"
	"regexp"
	"text/template"
)

// Renderer renders short outbound message templates.
type Renderer struct{}

// legacyPlaceholder matches owner-authored "{customer_name}" style fields.
var legacyPlaceholder = regexp.MustCompile(`\{\s*([a-z_]+)\s*\}`)

// Render compiles tmpl with strict missing-key semantics. Single-brace
// placeholders are accepted alongside text/template actions.
func (Renderer) Render(name, tmpl string, data map[string]string) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("templates: template text required")
	}
	t, err := template.New(name).Option("missingkey=error").Parse(ConvertLegacy(tmpl))
	if err != nil {
		return "", fmt.Errorf("templates: parse: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute: %w", err)
	}
	return buf.String(), nil
}

// ConvertLegacy rewrites {field} into {{.field}}. Existing {{ }} actions are
// left as they are.
func ConvertLegacy(tmpl string) string {
	var out bytes.Buffer
	for i := 0; i < len(tmpl); {
		if i+1 < len(tmpl) && tmpl[i] == '{' && tmpl[i+1] == '{' {
			end := bytes.Index([]byte(tmpl[i:]), []byte("}}"))
			if end < 0 {
				out.WriteString(tmpl[i:])
				break
			}
			out.WriteString(tmpl[i : i+end+2])
			i += end + 2
			continue
		}
		if tmpl[i] == '{' {
			if loc := legacyPlaceholder.FindStringSubmatchIndex(tmpl[i:]); loc != nil && loc[0] == 0 {
				out.WriteString("{{." + tmpl[i+loc[2]:i+loc[3]] + "}}")
				i += loc[1]
				continue
			}
		}
		out.WriteByte(tmpl[i])
		i++
	}
	return out.String()
}
