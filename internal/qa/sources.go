package qa

import "strings"

// ParseSourceEntries converts raw disclosed source entries into a
// de-duplicated filename list. Each entry is a multi-line block whose
// first line is a type/category label; the second line carries the name.
// Order of first appearance is preserved.
func ParseSourceEntries(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	var out []string
	for _, entry := range entries {
		lines := nonEmptyLines(entry)
		if len(lines) < 2 {
			continue
		}
		name := lines[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
