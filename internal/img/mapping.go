package img

import (
	"encoding/json"
	"strings"
)

// ParseMapping decodes a stored size→filename mapping. ok is false when raw
// is empty, not a JSON object of strings, names a size outside sizes, or
// holds a filename that is blank or not a plain file name.
func ParseMapping(raw []byte, sizes []ThumbnailSpec) (m map[string]string, ok bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, false
	}
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return nil, false
	}
	if len(m) == 0 {
		return m, false
	}
	known := make(map[string]bool, len(sizes))
	for _, s := range sizes {
		known[s.Name] = true
	}
	for size, name := range m {
		if !known[size] || !plainFileName(name) {
			return m, false
		}
	}
	return m, true
}

// plainFileName rejects blanks, "." and "..", and anything with a path
// separator.
func plainFileName(name string) bool {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
