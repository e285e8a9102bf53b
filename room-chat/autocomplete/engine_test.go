package autocomplete

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	dir := []string{"General", "Genomics", "Random"}

	tests := []struct {
		name  string
		input string
		names []string
		want  []string
	}{
		{name: "prefix keeps order", input: "gen", names: dir, want: []string{"General", "Genomics"}},
		{name: "case insensitive", input: "GEN", names: dir, want: []string{"General", "Genomics"}},
		{name: "substring", input: "dom", names: dir, want: []string{"Random"}},
		{name: "no match", input: "zzz", names: dir, want: nil},
		{name: "empty input", input: "", names: dir, want: nil},
		{name: "blank input", input: "   ", names: dir, want: nil},
		{name: "empty directory", input: "a", names: nil, want: nil},
		{name: "no resorting", input: "a", names: []string{"b-a", "a"}, want: []string{"b-a", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filter(tt.input, tt.names))
		})
	}
}

func TestKeyboardNavigation(t *testing.T) {
	e := New()
	e.Update("o", []string{"one", "two", "four"})
	require.Len(t, e.Candidates(), 3)

	_, ok := e.Selected()
	require.False(t, ok)

	var got []int
	for i := 0; i < 4; i++ {
		e.Down()
		idx, ok := e.Selected()
		require.True(t, ok)
		got = append(got, idx)
	}
	assert.Equal(t, []int{0, 1, 2, 2}, got)

	e.Up()
	idx, _ := e.Selected()
	assert.Equal(t, 1, idx)
	e.Up()
	e.Up()
	idx, _ = e.Selected()
	assert.Equal(t, 0, idx)
}

func TestUpFromNoSelection(t *testing.T) {
	e := New()
	e.Update("o", []string{"one", "two"})
	e.Up()
	idx, ok := e.Selected()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestNavigationWithoutCandidates(t *testing.T) {
	e := New()
	e.Update("x", []string{"one"})
	e.Down()
	e.Up()
	_, ok := e.Selected()
	assert.False(t, ok)
}

func TestInputChangeClearsSelection(t *testing.T) {
	e := New()
	e.Update("o", []string{"one", "two"})
	e.Down()
	e.Update("on", []string{"one", "two"})
	_, ok := e.Selected()
	assert.False(t, ok)
	assert.Equal(t, []string{"one"}, e.Candidates())
}

func TestDismiss(t *testing.T) {
	e := New()
	e.Update("o", []string{"one", "two"})
	e.Down()
	e.Dismiss()
	assert.Empty(t, e.Candidates())
	_, ok := e.Selected()
	assert.False(t, ok)
}

func TestRefresh(t *testing.T) {
	t.Run("identical set keeps selection", func(t *testing.T) {
		e := New()
		names := []string{"General", "Genomics"}
		e.Update("gen", names)
		e.Down()
		e.Down()

		assert.False(t, e.Refresh([]string{"General", "Genomics"}))
		idx, ok := e.Selected()
		require.True(t, ok)
		assert.Equal(t, 1, idx)
	})

	t.Run("changed set resets selection", func(t *testing.T) {
		e := New()
		e.Update("gen", []string{"General", "Genomics"})
		e.Down()

		assert.True(t, e.Refresh([]string{"Genesis", "General", "Genomics"}))
		assert.Equal(t, []string{"Genesis", "General", "Genomics"}, e.Candidates())
		_, ok := e.Selected()
		assert.False(t, ok)
	})

	t.Run("unrelated room does not change candidates", func(t *testing.T) {
		e := New()
		e.Update("gen", []string{"General"})
		e.Down()
		assert.False(t, e.Refresh([]string{"General", "Random"}))
		_, ok := e.Selected()
		assert.True(t, ok)
	})
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		input string
		names []string
		downs int
		want  Action
	}{
		{name: "selected candidate joins", input: "gen", names: []string{"General", "Genomics"}, downs: 2, want: Action{Kind: ActionJoin, Room: "Genomics"}},
		{name: "single candidate joins", input: "d", names: []string{"General", "Dev"}, want: Action{Kind: ActionJoin, Room: "Dev"}},
		{name: "several candidates create", input: "gen", names: []string{"General", "Genomics"}, want: Action{Kind: ActionCreate, Room: "gen"}},
		{name: "no candidates create", input: "Music", names: []string{"General"}, want: Action{Kind: ActionCreate, Room: "Music"}},
		{name: "blank does nothing", input: "  ", names: []string{"General"}, want: Action{Kind: ActionNone}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			e.Update(tt.input, tt.names)
			for i := 0; i < tt.downs; i++ {
				e.Down()
			}
			assert.Equal(t, tt.want, e.Resolve(tt.input))
		})
	}
}

func TestResolveAfterDismissCreates(t *testing.T) {
	e := New()
	e.Update("d", []string{"General", "Dev"})
	e.Dismiss()
	assert.Equal(t, Action{Kind: ActionCreate, Room: "d"}, e.Resolve("d"))
}
