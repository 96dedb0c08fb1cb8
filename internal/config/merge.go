// File: internal/config/merge.go
// Brief: Layer merging and template key naming.

package config

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Merge overlays over onto base. Two mappings merge key by key, recursively;
// in every other case over replaces base. Keys keep the position they had in
// base, new keys are appended in over's order.
func Merge(base, over Value) Value {
	if base.kind != KindMap || over.kind != KindMap {
		return over
	}
	entries := make([]Entry, 0, len(base.keys)+len(over.keys))
	for _, k := range base.keys {
		v := base.m[k]
		if ov, ok := over.m[k]; ok {
			v = Merge(v, ov)
		}
		entries = append(entries, Entry{Key: k, Value: v})
	}
	for _, k := range over.keys {
		if _, ok := base.m[k]; ok {
			continue
		}
		entries = append(entries, Entry{Key: k, Value: over.m[k]})
	}
	return Map(entries...)
}

// CamelKey turns a snake_case key into the capitalized camel form exposed to
// templates: presentation_size -> PresentationSize. Each word keeps only its
// first rune upper-cased, so 2nd_item -> 2ndItem. Empty words become "_".
func CamelKey(key string) string {
	upper, lower := cases.Upper(language.Und), cases.Lower(language.Und)
	var b strings.Builder
	for _, word := range strings.Split(key, "_") {
		if word == "" {
			b.WriteByte('_')
			continue
		}
		_, size := utf8.DecodeRuneInString(word)
		b.WriteString(upper.String(word[:size]))
		b.WriteString(lower.String(word[size:]))
	}
	return b.String()
}
