package voters

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// streetSuffixes maps spelled-out and variant street types to the USPS
// abbreviations used in the assessing data.
var streetSuffixes = map[string]string{
	"STREET":    "ST",
	"STR":       "ST",
	"AVENUE":    "AVE",
	"AV":        "AVE",
	"ROAD":      "RD",
	"PLACE":     "PL",
	"TERRACE":   "TER",
	"TERR":      "TER",
	"COURT":     "CT",
	"SQUARE":    "SQ",
	"BOULEVARD": "BLVD",
	"PARKWAY":   "PKWY",
	"DRIVE":     "DR",
	"LANE":      "LN",
	"CIRCLE":    "CIR",
	"HIGHWAY":   "HWY",
	"WAY":       "WAY",
	"ROW":       "ROW",
}

func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// tokens uppercases s, removes diacritics and splits on anything that is
// not a letter or digit.
func tokens(s string) []string {
	if out, _, err := transform.String(stripMarks(), s); err == nil {
		s = out
	}
	s = strings.ToUpper(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NormalizeStreet canonicalizes a street name: "Cambridge Street",
// "CAMBRIDGE ST." and "cambridge st" all become "CAMBRIDGE ST".
func NormalizeStreet(name string) string {
	t := tokens(name)
	if n := len(t); n > 1 {
		if abbr, ok := streetSuffixes[t[n-1]]; ok {
			t[n-1] = abbr
		}
	}
	return strings.Join(t, " ")
}

// NormalizeNumber canonicalizes a house number, keeping letter suffixes
// ("12 A" -> "12A") and dropping a float rendering ("12.0" -> "12").
func NormalizeNumber(num string) string {
	num = strings.TrimSpace(num)
	if i := strings.Index(num, "."); i > 0 && strings.Trim(num[i+1:], "0") == "" {
		num = num[:i]
	}
	return strings.Join(tokens(num), "")
}

// AddressKey is the exact-match key "<number> <street>". It is empty when
// either part is missing.
func AddressKey(number, street string) string {
	n, s := NormalizeNumber(number), NormalizeStreet(street)
	if n == "" || s == "" {
		return ""
	}
	return n + " " + s
}
