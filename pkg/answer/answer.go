// Package answer provides a ports.FieldAnswerer backed by a keyword table.
package answer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tendril/pkg/ports"
)

// ErrNoAnswer is returned when no keyword matches a field label.
var ErrNoAnswer = errors.New("no answer for field")

type entry struct {
	keyword string
	answer  string
}

// Table answers fields whose label contains one of its keywords. Longer
// keywords are tried first so "years of experience" beats "experience".
type Table struct {
	entries []entry
}

var _ ports.FieldAnswerer = (*Table)(nil)

// NewTable builds a table from keyword to answer. Keywords are matched
// case-insensitively.
func NewTable(answers map[string]string) *Table {
	t := &Table{entries: make([]entry, 0, len(answers))}
	for k, v := range answers {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		t.entries = append(t.entries, entry{keyword: k, answer: v})
	}
	sort.Slice(t.entries, func(i, j int) bool {
		a, b := t.entries[i], t.entries[j]
		if len(a.keyword) != len(b.keyword) {
			return len(a.keyword) > len(b.keyword)
		}
		return a.keyword < b.keyword
	})
	return t
}

// Answer implements ports.FieldAnswerer. For fields with options the
// configured answer must name one of them, exactly or as a prefix.
func (t *Table) Answer(_ context.Context, field ports.Field) (string, error) {
	label := strings.ToLower(field.Label)
	for _, e := range t.entries {
		if !strings.Contains(label, e.keyword) {
			continue
		}
		if len(field.Options) == 0 {
			return e.answer, nil
		}
		return pick(field.Options, e.answer)
	}
	return "", fmt.Errorf("%w %q", ErrNoAnswer, field.Label)
}

func pick(options []string, want string) (string, error) {
	for _, o := range options {
		if strings.EqualFold(o, want) {
			return o, nil
		}
	}
	for _, o := range options {
		if strings.HasPrefix(strings.ToLower(o), strings.ToLower(want)) {
			return o, nil
		}
	}
	return "", fmt.Errorf("answer %q matches none of %s", want, strings.Join(options, ", "))
}
