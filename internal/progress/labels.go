package progress

import (
	"fmt"
	"regexp"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)
	modulePrefix    = regexp.MustCompile(`^Module\s+\d+:\s+`)
)

// NormalizeCourseName strips every character outside [a-zA-Z0-9]. The result is the
// course matching key; it is idempotent.
func NormalizeCourseName(name string) string {
	return nonAlphanumeric.ReplaceAllString(name, "")
}

// StripModulePrefix removes a leading "Module <n>: " so presentation never double-numbers.
func StripModulePrefix(name string) string {
	return modulePrefix.ReplaceAllString(name, "")
}

// ModuleOrdinal renders the 1-based module sequence label.
func ModuleOrdinal(n int) string {
	return fmt.Sprintf("Module %d:", n)
}

// ItemOrdinal renders the 1-based item sequence label.
func ItemOrdinal(n int) string {
	return fmt.Sprintf("Item %d:", n)
}

// Pair is a single id→label entry.
type Pair struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Labels is an id→label map that remembers first-seen insertion order. Re-setting an
// existing id replaces its label but keeps its position.
type Labels struct {
	keys   []string
	values map[string]string
}

func (l *Labels) set(id, label string) {
	if l.values == nil {
		l.values = make(map[string]string)
	}
	if _, ok := l.values[id]; !ok {
		l.keys = append(l.keys, id)
	}
	l.values[id] = label
}

// Get returns the label for id and whether it is present.
func (l Labels) Get(id string) (string, bool) {
	v, ok := l.values[id]
	return v, ok
}

// Label returns the label for id, or "" when the id is unknown.
func (l Labels) Label(id string) string {
	return l.values[id]
}

// Has reports whether id is present.
func (l Labels) Has(id string) bool {
	_, ok := l.values[id]
	return ok
}

// Len returns the number of ids.
func (l Labels) Len() int {
	return len(l.keys)
}

// Keys returns the ids in insertion order.
func (l Labels) Keys() []string {
	out := make([]string, len(l.keys))
	copy(out, l.keys)
	return out
}

// Pairs returns id/label entries in insertion order.
func (l Labels) Pairs() []Pair {
	out := make([]Pair, 0, len(l.keys))
	for _, k := range l.keys {
		out = append(out, Pair{ID: k, Label: l.values[k]})
	}
	return out
}

func enumerate(src Labels, format func(int) string) Labels {
	var out Labels
	for i, k := range src.keys {
		out.set(k, format(i+1))
	}
	return out
}
