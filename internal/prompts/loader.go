// Package prompts holds the embedded LLM prompts and generated-file templates.
// Each JSON file maps a key to a template using {{.Name}} placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// catalog parses every embedded file on first use.
var catalog = sync.OnceValues(func() (map[string]map[string]string, error) {
	names, err := fs.Glob(promptFiles, "*.json")
	if err != nil {
		return nil, err
	}
	files := make(map[string]map[string]string, len(names))
	for _, name := range names {
		data, err := promptFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		var entries map[string]string
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
		}
		files[name] = entries
	}
	return files, nil
})

// Get returns the template stored under key in filename (e.g. "gemini.json").
func Get(filename, key string) (string, error) {
	files, err := catalog()
	if err != nil {
		return "", err
	}
	entries, ok := files[filename]
	if !ok {
		return "", fmt.Errorf("prompt file %s not found", filename)
	}
	prompt, ok := entries[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// placeholderPattern matches a {{.Key}} placeholder. Spaced forms such as
// {{ .Key }} are left alone so templates can carry literal Go template text.
var placeholderPattern = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9_]*)\}\}`)

// Format substitutes placeholders from data in a single pass. Placeholders
// without an entry are kept verbatim, and substituted values are never
// expanded again.
func Format(template string, data map[string]string) string {
	return substitute(template, func(key, placeholder string) string {
		if value, ok := data[key]; ok {
			return value
		}
		return placeholder
	})
}

// FormatWithDefault behaves like Format but replaces every placeholder whose
// value is missing or empty with fallback.
func FormatWithDefault(template string, data map[string]string, fallback string) string {
	return substitute(template, func(key, _ string) string {
		if value := data[key]; value != "" {
			return value
		}
		return fallback
	})
}

// Placeholders returns the sorted, distinct placeholder names in template.
func Placeholders(template string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

func substitute(template string, value func(key, placeholder string) string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(placeholder string) string {
		key := placeholderPattern.FindStringSubmatch(placeholder)[1]
		return value(key, placeholder)
	})
}
