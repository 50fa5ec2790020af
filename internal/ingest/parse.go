package ingest

import (
	"strconv"
	"strings"
)

// ParseDollar parses assessing-style currency ("$1,234,500", "1234500.0").
// Blank or malformed text returns ok == false.
func ParseDollar(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// parseYear parses a year column that may have been written as a float
// ("1925.0"). Zero is treated as missing.
func parseYear(s string) (int, bool) {
	v, ok := ParseDollar(s)
	if !ok || v <= 0 || v != float64(int(v)) {
		return 0, false
	}
	return int(v), true
}

func parseLatLon(latStr, lonStr string) (float64, float64, bool) {
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	return lat, lon, err1 == nil && err2 == nil
}

// firstOf returns the first non-blank value among the given columns.
func firstOf(record map[string]string, columns ...string) string {
	for _, c := range columns {
		if v := strings.TrimSpace(record[c]); v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
