package ingest

import (
	"math"
	"strconv"
	"strings"
)

// pidWidth is the width of a Boston assessing PID ("0100001000").
const pidWidth = 10

// CanonicalParcelID normalizes the textual forms one parcel id takes across
// sources: surrounding whitespace, a float rendering ("2100004000.0",
// "2.100004E9") and lost leading zeros ("100001000"). Ids that are not
// numeric are returned trimmed and otherwise untouched.
func CanonicalParcelID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if i := strings.IndexByte(s, '.'); i > 0 && strings.Trim(s[i+1:], "0") == "" && isDigits(s[:i]) {
		s = s[:i]
	} else if strings.ContainsAny(s, "eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f == math.Trunc(f) && f < 1e15 {
			s = strconv.FormatFloat(f, 'f', 0, 64)
		}
	}

	if isDigits(s) && len(s) < pidWidth {
		s = strings.Repeat("0", pidWidth-len(s)) + s
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
