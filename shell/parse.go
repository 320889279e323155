package shell

import (
	"regexp"
	"strings"
)

// FindPattern scans text line by line and returns the submatches of the
// first line that re matches at its start, or nil when no line does.
func FindPattern(re *regexp.Regexp, text string) []string {
	for _, line := range splitLines(text) {
		loc := re.FindStringSubmatchIndex(line)
		if loc == nil || loc[0] != 0 {
			continue
		}
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = line[loc[2*i]:loc[2*i+1]]
			}
		}
		return groups
	}
	return nil
}

// Fields is an insertion-ordered string mapping parsed from tool output.
type Fields struct {
	keys   []string
	values map[string]string
}

// NewFields returns an empty mapping.
func NewFields() *Fields {
	return &Fields{values: map[string]string{}}
}

// Set records key=value. A repeated key keeps its first position and takes
// the latest value.
func (f *Fields) Set(key, value string) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value for key.
func (f *Fields) Get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Keys returns the keys in the order they were first seen.
func (f *Fields) Keys() []string {
	return append([]string(nil), f.keys...)
}

// Len returns the number of keys.
func (f *Fields) Len() int {
	return len(f.keys)
}

// Map returns a copy of the mapping.
func (f *Fields) Map() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

var fieldLine = regexp.MustCompile(`^([^:]+):\s*(.*)$`)

// ParseFields extracts "key: value" lines from text. Scanning stops at the
// first line mentioning "Site Mappings:" or "Host Mappings:"; lines without a
// colon are ignored.
func ParseFields(text string) *Fields {
	fields := NewFields()
	for _, line := range splitLines(text) {
		if strings.Contains(line, "Site Mappings:") || strings.Contains(line, "Host Mappings:") {
			break
		}
		m := fieldLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		fields.Set(strings.TrimSpace(m[1]), m[2])
	}
	return fields
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
