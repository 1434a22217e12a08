package domain

import "unicode/utf16"

// SMS segment limits per encoding. GSM-7 fits 160 septets in one segment and
// 153 per segment once concatenation headers are needed; UCS-2 fits 70 and 67
// code units respectively.
const (
	gsmSingleSegment = 160
	gsmMultiSegment  = 153
	ucsSingleSegment = 70
	ucsMultiSegment  = 67
)

// gsmBasic is the GSM 03.38 basic character set.
var gsmBasic = map[rune]struct{}{}

// gsmExtended characters are escaped on the wire and cost two septets each.
var gsmExtended = map[rune]struct{}{}

func init() {
	basic := "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
		"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑܧ¿abcdefghijklmnopqrstuvwxyzäöñüà"
	for _, r := range basic {
		gsmBasic[r] = struct{}{}
	}
	for _, r := range "^{}\\[~]|€" {
		gsmExtended[r] = struct{}{}
	}
}

// SegmentCount computes the number of SMS segments a body occupies. The body
// is checked against the GSM-7 character set; extension characters count as
// two septets. Non-GSM bodies are billed as UCS-2 code units, which is also
// how the upstream provider counts them.
func SegmentCount(body string) int {
	if body == "" {
		return 0
	}

	septets := 0
	gsm := true
	for _, r := range body {
		if _, ok := gsmBasic[r]; ok {
			septets++
			continue
		}
		if _, ok := gsmExtended[r]; ok {
			septets += 2
			continue
		}
		gsm = false
		break
	}

	if gsm {
		if septets <= gsmSingleSegment {
			return 1
		}
		return (septets + gsmMultiSegment - 1) / gsmMultiSegment
	}

	units := len(utf16.Encode([]rune(body)))
	if units <= ucsSingleSegment {
		return 1
	}
	return (units + ucsMultiSegment - 1) / ucsMultiSegment
}
