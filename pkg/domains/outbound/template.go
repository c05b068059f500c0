package outbound

import (
	"regexp"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}|\{(\w+)\}`)

// ApplyTemplate substitutes {{var}} and {var} placeholders from the
// context map. Unresolved placeholders are left verbatim so a missing
// variable never turns into an error or an empty hole.
func ApplyTemplate(body string, ctx map[string]string) string {
	if body == "" || len(ctx) == 0 {
		return body
	}

	return placeholderRe.ReplaceAllStringFunc(body, func(match string) string {
		groups := placeholderRe.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		if value, ok := ctx[name]; ok {
			return value
		}
		return match
	})
}
