// Package contenttype guesses an HTTP Content-Type from a file path's
// suffix, matching the fixed table every streaming route in the
// orchestration HTTP layer uses.
package contenttype

import "strings"

// Guess returns the Content-Type for path, matching suffixes in the order
// listed: the first match wins.
func Guess(path string) string {
	switch {
	case strings.HasSuffix(path, ".iso"):
		return "application/octet-stream"
	case hasAnySuffix(path, ".j2", ".yaml", ".yml", ".ks", ".cfg", ".txt", ".ipxe"):
		return "text/plain; charset=utf-8"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".gz"):
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
