package intake

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var umlauts = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ß", "ss",
)

// PatientKey derives the state-id-safe key for a patient display name:
// German umlauts transliterate, remaining diacritics strip, and the ASCII
// tokens join CamelCased ("Max Müller" -> "MaxMueller").
func PatientKey(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}

	s = umlauts.Replace(s)

	var ascii strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		ascii.WriteRune(r)
	}

	var tokens []string
	for _, tok := range strings.FieldsFunc(ascii.String(), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		tokens = append(tokens, strings.ToUpper(tok[:1])+tok[1:])
	}

	return strings.Join(tokens, "")
}

// PatientAddress builds the fully qualified state address for a patient key.
func (s *Service) PatientAddress(key string) string {
	return s.namespace + ".patient-" + key
}
