package notion

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ParseID accepts a bare id (32 hex digits, with or without dashes) or a
// notion.so URL and returns the id in dashed 8-4-4-4-12 form.
//
// For URLs the id is taken from the last path segment, after its final '-':
//
//	https://www.notion.so/acme/Roadmap-0123456789abcdef0123456789abcdef
func ParseID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("parse id: empty input")
	}

	candidate := s
	if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("parse id %q: %w", s, err)
		}
		last := path.Base(u.Path)
		if last == "/" || last == "." || last == "" {
			return "", fmt.Errorf("parse id %q: url has no path segment", s)
		}
		candidate = last
		if i := strings.LastIndex(last, "-"); i >= 0 && len(last)-i-1 == 32 {
			candidate = last[i+1:]
		}
	}

	hex := strings.ToLower(strings.ReplaceAll(candidate, "-", ""))
	if len(hex) != 32 || !isHex(hex) {
		return "", fmt.Errorf("parse id %q: not a 32-digit hex id", s)
	}
	return hex[0:8] + "-" + hex[8:12] + "-" + hex[12:16] + "-" + hex[16:20] + "-" + hex[20:32], nil
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
