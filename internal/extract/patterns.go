package extract

import (
	"regexp"
	"strings"
)

// Ordered pattern tables, first match wins. The order is part of the
// extraction contract and is exercised directly by tests; do not
// reorder without adjusting them.

// The introducing phrase matches any casing; the captured name itself
// must be capitalized so trailing lowercase words ("und", "wegen") do
// not leak into the family name.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:mein name ist|ich heiße|ich bin)\s+([A-ZÄÖÜ][a-zäöüß]+(?:\s+[A-ZÄÖÜ][a-zäöüß]+){0,2})`),
	regexp.MustCompile(`(?i:name):?\s*([A-ZÄÖÜ][a-zäöüß]+(?:\s+[A-ZÄÖÜ][a-zäöüß]+){0,2})`),
	regexp.MustCompile(`(?i:von|absender)[:\s]\s*([A-ZÄÖÜ][a-zäöüß]+(?:\s+[A-ZÄÖÜ][a-zäöüß]+){0,2})`),
}

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:tel|telefon|mobil|handy)[:\s]*([+\d][\d\s\-/()]{7,})`),
	regexp.MustCompile(`(\+49\s*\d{2,4}\s*\d{3,}\s*\d{3,})`),
	regexp.MustCompile(`(0\d{2,4}[\s\-/]?\d{3,}[\s\-/]?\d{3,})`),
}

var envelopeAddrPattern = regexp.MustCompile(`<(.+?)>`)

var nonPhoneRunes = regexp.MustCompile(`[^\d+]`)

// ExtractName pulls a given/family name pair out of the original-case
// text. One matched token fills the given name only; with more tokens
// the first becomes the given name and the rest the family name. Both
// parts are empty when nothing matches.
func ExtractName(text string) (given, family string) {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		parts := strings.Fields(strings.TrimSpace(m[1]))
		if len(parts) >= 2 {
			return parts[0], strings.Join(parts[1:], " ")
		}
		return parts[0], ""
	}
	return "", ""
}

// ExtractEmail returns the first address-looking token, or "".
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// EnvelopeAddress recovers the bare address from an RFC-5322 From
// header ("Anna Schmidt <anna@example.org>"). Falls back to the raw
// header when no angle-bracket form is present.
func EnvelopeAddress(from string) string {
	if m := envelopeAddrPattern.FindStringSubmatch(from); m != nil {
		return m[1]
	}
	return strings.TrimSpace(from)
}

// ExtractPhone tries the labeled form first, then the +49 country-code
// form, then a domestic leading-zero form. The winning candidate keeps
// only digits and one leading plus.
func ExtractPhone(text string) string {
	for _, re := range phonePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return normalizePhone(m[1])
	}
	return ""
}

func normalizePhone(raw string) string {
	hasPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")
	digits := nonPhoneRunes.ReplaceAllString(raw, "")
	digits = strings.ReplaceAll(digits, "+", "")
	if hasPlus {
		return "+" + digits
	}
	return digits
}
