package convo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codediagram/backend/internal/promptlib"
	"github.com/codediagram/backend/internal/provider"
	"github.com/codediagram/backend/internal/scanner"
	"github.com/codediagram/backend/internal/storage"
)

func newTestRegistry() *Registry {
	deps := Deps{
		Scanner:   scanner.New(nil),
		Providers: provider.NewRegistry(&stubProvider{id: "anthropic"}),
		Prompts:   promptlib.NewLibrary(""),
	}
	return NewRegistry(deps)
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := newTestRegistry()
	s := r.Create("k", "anthropic", []string{"m"}, "m", "")

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	require.Same(t, s, got)
}

func TestRegistry_GetUnknownReturnsNotFound(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Get("nope")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRegistry_CreateWithExistingIDDropsOldSession(t *testing.T) {
	r := newTestRegistry()
	first := r.Create("k", "anthropic", []string{"m"}, "m", "fixed-id")
	first.UpdateFiles([]string{"a.py"}, true)

	second := r.Create("k2", "anthropic", []string{"m"}, "m", "fixed-id")
	require.NotSame(t, first, second)
	require.Empty(t, second.Summary().SelectedFiles)
}

func TestRegistry_Drop(t *testing.T) {
	r := newTestRegistry()
	s := r.Create("k", "anthropic", []string{"m"}, "m", "")
	r.Drop(s.ID())

	_, err := r.Get(s.ID())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRegistry_ListIncludesAllLiveSessions(t *testing.T) {
	r := newTestRegistry()
	a := r.Create("k", "anthropic", []string{"m"}, "m", "")
	b := r.Create("k", "anthropic", []string{"m"}, "m", "")

	ids := r.List()
	require.Len(t, ids, 2)
	require.Contains(t, ids, a.ID())
	require.Contains(t, ids, b.ID())
}
