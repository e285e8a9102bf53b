// Package autocomplete suggests known rooms for the room input and tracks
// keyboard selection over the suggestions.
package autocomplete

import (
	"slices"
	"strings"
)

// Filter returns the names containing input, case-insensitively, in their
// original order. Blank input matches nothing.
func Filter(input string, names []string) []string {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return nil
	}
	var out []string
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), needle) {
			out = append(out, n)
		}
	}
	return out
}

// ActionKind is what Enter resolves to.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionJoin
	ActionCreate
)

func (k ActionKind) String() string {
	switch k {
	case ActionJoin:
		return "join"
	case ActionCreate:
		return "create"
	default:
		return "none"
	}
}

// Action is the outcome of pressing Enter in the room input.
type Action struct {
	Kind ActionKind
	Room string
}

// Engine holds the suggestion list and selection. A selection of -1 means none.
type Engine struct {
	input      string
	candidates []string
	selected   int
}

func New() *Engine {
	return &Engine{selected: -1}
}

// Update recomputes candidates for new input text and clears the selection.
func (e *Engine) Update(input string, names []string) {
	e.input = input
	e.candidates = Filter(input, names)
	e.selected = -1
}

// Refresh recomputes candidates for the current input after the room set
// changed. The selection is kept only if the candidates are unchanged.
func (e *Engine) Refresh(names []string) bool {
	next := Filter(e.input, names)
	if slices.Equal(next, e.candidates) {
		return false
	}
	e.candidates = next
	e.selected = -1
	return true
}

// Dismiss hides the suggestions, as on a click outside the input.
func (e *Engine) Dismiss() {
	e.candidates = nil
	e.selected = -1
}

// Reset forgets the input and suggestions.
func (e *Engine) Reset() {
	e.input = ""
	e.Dismiss()
}

func (e *Engine) Candidates() []string {
	return append([]string(nil), e.candidates...)
}

// Selected returns the selected index, if any.
func (e *Engine) Selected() (int, bool) {
	if e.selected < 0 || e.selected >= len(e.candidates) {
		return 0, false
	}
	return e.selected, true
}

func (e *Engine) Down() {
	if len(e.candidates) == 0 {
		return
	}
	e.selected = min(e.selected+1, len(e.candidates)-1)
}

func (e *Engine) Up() {
	if len(e.candidates) == 0 {
		return
	}
	e.selected = max(e.selected-1, 0)
}

// Resolve decides what Enter does with raw as the typed text.
func (e *Engine) Resolve(raw string) Action {
	if i, ok := e.Selected(); ok {
		return Action{Kind: ActionJoin, Room: e.candidates[i]}
	}
	if len(e.candidates) == 1 {
		return Action{Kind: ActionJoin, Room: e.candidates[0]}
	}
	if strings.TrimSpace(raw) == "" {
		return Action{Kind: ActionNone}
	}
	return Action{Kind: ActionCreate, Room: raw}
}
