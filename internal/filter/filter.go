// Package filter implements the chat profanity check. The word list is a
// YAML file of case-insensitive patterns; a built-in list is used when no
// file is configured.
package filter

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed words.yaml
var defaultWords []byte

// List is the on-disk word list format.
type List struct {
	Words []string `yaml:"words"`
}

// Filter matches messages against a compiled word list. It is immutable and
// safe for concurrent use.
type Filter struct {
	words []string
	re    *regexp.Regexp
}

// New compiles words into a filter. An empty list never matches.
func New(words []string) (*Filter, error) {
	var kept []string
	for i, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, err := regexp.Compile(w); err != nil {
			return nil, fmt.Errorf("word %d (%q): %w", i, w, err)
		}
		kept = append(kept, w)
	}

	f := &Filter{words: kept}
	if len(kept) > 0 {
		f.re = regexp.MustCompile("(?i)" + strings.Join(kept, "|"))
	}
	return f, nil
}

// Parse reads a YAML word list.
func Parse(data []byte) (*Filter, error) {
	var list List
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse word list: %w", err)
	}
	return New(list.Words)
}

// Load reads the word list at path, or the built-in list when path is empty.
func Load(path string) (*Filter, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read word list %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Default returns the built-in filter.
func Default() *Filter {
	f, err := Parse(defaultWords)
	if err != nil {
		panic(fmt.Sprintf("filter: built-in word list: %v", err))
	}
	return f
}

// IsSwear reports whether message contains a filtered word.
func (f *Filter) IsSwear(message string) bool {
	if f == nil || f.re == nil {
		return false
	}
	return f.re.MatchString(message)
}

// Words returns the patterns of the filter.
func (f *Filter) Words() []string {
	return append([]string(nil), f.words...)
}
