package promptlib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectForQuestion(t *testing.T) {
	lib := NewLibrary("")

	mermaid, _ := lib.Get(MermaidArchitect)
	require.Equal(t, mermaid, lib.SelectForQuestion("please generate a mermaid diagram for this"))

	d2, _ := lib.Get(D2Architect)
	require.Equal(t, d2, lib.SelectForQuestion("create a d2 diagram of the pipeline"))

	def, _ := lib.Get(FormattingDefault)
	require.Equal(t, def, lib.SelectForQuestion("what does this function do?"))
}

func TestNewLibrary_OverridesFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, D2Architect+".txt"), []byte("custom d2 prompt"), 0644))

	lib := NewLibrary(dir)
	p, ok := lib.Get(D2Architect)
	require.True(t, ok)
	require.Equal(t, "custom d2 prompt", p)
}

func TestForDiagramKind_UnknownFallsBackToDefault(t *testing.T) {
	lib := NewLibrary("")
	def, _ := lib.Get(FormattingDefault)
	require.Equal(t, def, lib.ForDiagramKind("unknown"))
}
