package resolve

import (
	"regexp"
)

// Extractor pulls the parcel code out of a building's local identifier,
// which has the shape <prefix>_<digits>_<suffix> ("Bos_2100004000_B0").
type Extractor struct {
	pattern *regexp.Regexp
}

// NewExtractor returns an Extractor for the given municipality prefix.
func NewExtractor(prefix string) *Extractor {
	return &Extractor{
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_(\d+)_[A-Za-z]\d+$`),
	}
}

// Extract returns the parcel code embedded in localID. A nil, blank or
// differently shaped identifier yields ok == false.
func (e *Extractor) Extract(localID *string) (string, bool) {
	if localID == nil {
		return "", false
	}
	m := e.pattern.FindStringSubmatch(*localID)
	if m == nil {
		return "", false
	}
	return m[1], true
}
