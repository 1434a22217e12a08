package domain

import "strings"

// NormalizePhone converts a raw phone number to E.164. All formatting is
// stripped; bare national numbers are assumed to be US: a 10-digit number
// gets "+1", an 11-digit number starting with "1" gets "+", and anything
// else keeps its digits behind a "+".
func NormalizePhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return ""
	}

	if hasPlus {
		return "+" + d
	}

	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && d[0] == '1':
		return "+" + d
	default:
		return "+" + d
	}
}
