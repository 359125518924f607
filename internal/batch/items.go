package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

const maxSlugLen = 80

// Slugify derives a stable, filesystem-safe identity from a label.
// Lowercased, non-alphanumeric runs collapse to a single dash.
func Slugify(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	return slug
}

// Dedupe drops items whose identity already appeared earlier in the list.
// Identity wins over position: only the first occurrence is kept.
func Dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// ManifestEntry is one document reference in a sync manifest file.
type ManifestEntry struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// LoadManifest reads a JSON manifest of document references and converts it
// into the ordered item list for the sync workflow. Targets are resolved
// against baseURL unless already absolute.
func LoadManifest(path, baseURL string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	items := make([]Item, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Title) == "" {
			return nil, fmt.Errorf("manifest entry %d: title is required", i)
		}
		id := Slugify(e.Title)
		if id == "" {
			return nil, fmt.Errorf("manifest entry %d: title %q yields an empty identity", i, e.Title)
		}
		items = append(items, Item{
			ID:      id,
			Label:   e.Title,
			Target:  resolveTarget(baseURL, e.Path),
			Ordinal: i,
		})
	}
	return Dedupe(items), nil
}

// PromptEntry is one question in an ask dataset file. The shape matches the
// RAG evaluation dataset: extra fields are preserved downstream via the
// checkpoint record, not here.
type PromptEntry struct {
	Question string `json:"question"`
	File     string `json:"file,omitempty"`
	Chunk    string `json:"chunk,omitempty"`
}

// LoadPrompts reads a JSON dataset of questions and converts it into the
// ordered item list for the ask workflow. Every item navigates to the same
// conversational surface.
func LoadPrompts(path, chatTarget string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	var entries []PromptEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	items := make([]Item, 0, len(entries))
	for i, e := range entries {
		q := strings.TrimSpace(e.Question)
		if q == "" {
			return nil, fmt.Errorf("prompt entry %d: question is required", i)
		}
		id := Slugify(q)
		if id == "" {
			return nil, fmt.Errorf("prompt entry %d: question %q yields an empty identity", i, q)
		}
		items = append(items, Item{
			ID:      id,
			Label:   q,
			Target:  chatTarget,
			Prompt:  q,
			Ordinal: i,
		})
	}
	return Dedupe(items), nil
}

func resolveTarget(baseURL, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
