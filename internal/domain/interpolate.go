package domain

import "regexp"

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Interpolate replaces every {{name}} placeholder with the matching variable
// value in a single pass over the template, so a value that itself contains a
// placeholder is never re-expanded. Placeholders with no matching key are
// left verbatim so a missing variable is visible in the rendered output
// instead of silently blanked.
func Interpolate(template string, variables map[string]string) string {
	if template == "" || len(variables) == 0 {
		return template
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := variables[name]; ok {
			return value
		}
		return match
	})
}
