package bankmine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Unresolved is written to NewTags when a tag string intersects the
// vocabulary in zero or more than one label. The protocol never picks a
// best guess.
const Unresolved = "UNRESOLVED"

// Vocabulary is the externally maintained set of recognized tag labels.
type Vocabulary struct {
	labels map[string]bool
}

// LoadLabelFile reads a single-column label CSV (header "label", one
// label per row).
func LoadLabelFile(path string) (*Vocabulary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(header) != 1 || !strings.EqualFold(header[0], "label") {
		return nil, fmt.Errorf("%s: expected single \"label\" column, got %v", path, header)
	}

	v := &Vocabulary{labels: make(map[string]bool)}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if label := strings.TrimSpace(record[0]); label != "" {
			v.labels[label] = true
		}
	}
	return v, nil
}

// Len returns the number of labels.
func (v *Vocabulary) Len() int { return len(v.labels) }

// Contains reports whether label is in the vocabulary.
func (v *Vocabulary) Contains(label string) bool { return v.labels[label] }

// Resolve intersects a raw tag string against the vocabulary. Tags are
// "#"-prefixed tokens concatenated with no separator ("#INCO#ALTRO").
// Exactly one intersecting label resolves; zero or multiple return
// Unresolved together with the intersecting candidates so the caller
// can report them.
func (v *Vocabulary) Resolve(tags string) (string, []string) {
	var matches []string
	seen := make(map[string]bool)
	for _, token := range SplitTags(tags) {
		if v.labels[token] && !seen[token] {
			seen[token] = true
			matches = append(matches, token)
		}
	}
	if len(matches) == 1 {
		return matches[0], matches
	}
	return Unresolved, matches
}

// SplitTags splits a raw tag string on its "#" prefixes, dropping empty
// segments, matching the resolution behavior of the source system.
func SplitTags(tags string) []string {
	var tokens []string
	for _, token := range strings.Split(tags, "#") {
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
