package textutil

import "strings"

// NormalizeStringMap returns a copy of values with surrounding whitespace
// stripped from every key and value. Entries whose key trims to nothing are
// dropped, and a map left empty collapses to nil so callers can treat "no
// attributes" uniformly.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		normalized[key] = strings.TrimSpace(value)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
