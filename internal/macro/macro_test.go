package macro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeMacroFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "macros.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestExpandParameterized(t *testing.T) {
	path := writeMacroFile(t, `
[m(2)]
definition = "src=$arg1$ dst=$arg2$"
args = arg1, arg2
`)
	res, err := Expand("`m(1,2)` index=i", []string{path}, nil)
	require.NoError(t, err)
	require.Equal(t, "src=1 dst=2 index=i", res.Text)
	require.Equal(t, 1, res.UniqueMacrosExpanded)
	require.Equal(t, 1, res.UniqueMacrosFound)
}

func TestExpandNamedArguments(t *testing.T) {
	path := writeMacroFile(t, `
[m(2)]
definition = "src=$arg1$ dst=$arg2$"
args = arg1, arg2
`)
	res, err := Expand("`m(1,arg2=5)`", []string{path}, nil)
	require.NoError(t, err)
	require.Equal(t, "src=1 dst=5", res.Text)
}

func TestExpandChainedToFixedPoint(t *testing.T) {
	path := writeMacroFile(t, `
[a]
definition = "` + "`b`" + `"

[b]
definition = c
`)
	res, err := Expand("`a`", []string{path}, nil)
	require.NoError(t, err)
	require.Equal(t, "c", res.Text)
	require.GreaterOrEqual(t, res.UniqueMacrosExpanded, 2)
}

func TestUnresolvableCallStaysVerbatim(t *testing.T) {
	path := writeMacroFile(t, `
[known]
definition = x
`)
	res, err := Expand("`missing` `known`", []string{path}, nil)
	require.NoError(t, err)
	require.Equal(t, "`missing` x", res.Text)
	require.Equal(t, 1, res.UniqueMacrosExpanded)
	// The unresolved call is re-found on the second pass before the loop
	// notices nothing changed.
	require.Greater(t, res.UniqueMacrosFound, res.UniqueMacrosExpanded)
}

func TestContinuationLines(t *testing.T) {
	path := writeMacroFile(t, "[long]\ndefinition = \"index=a \\\nsourcetype=b\"\n")
	res, err := Expand("`long`", []string{path}, nil)
	require.NoError(t, err)
	require.Contains(t, res.Text, "index=a")
	require.Contains(t, res.Text, "sourcetype=b")
	require.NotContains(t, res.Text, "`")
}

func TestFirstDefinitionWins(t *testing.T) {
	first := writeMacroFile(t, "[m]\ndefinition = one\n")
	second := writeMacroFile(t, "[m]\ndefinition = two\n")
	res, err := Expand("`m`", []string{first, second}, nil)
	require.NoError(t, err)
	require.Equal(t, "one", res.Text)
}

func TestMissingFile(t *testing.T) {
	_, err := Expand("`m`", []string{"/nonexistent/macros.conf"}, nil)
	require.Error(t, err)
}

func TestDefinitionsAreCached(t *testing.T) {
	path := writeMacroFile(t, "[m]\ndefinition = first\n")
	res, err := Expand("`m`", []string{path}, nil)
	require.NoError(t, err)
	require.Equal(t, "first", res.Text)

	// Rewriting the file must not be observed: the parsed definitions are
	// cached per path.
	require.NoError(t, os.WriteFile(path, []byte("[m]\ndefinition = second\n"), 0644))
	res, err = Expand("`m`", []string{path}, nil)
	require.NoError(t, err)
	require.Equal(t, "first", res.Text)
}

func TestSelfReferenceTerminates(t *testing.T) {
	path := writeMacroFile(t, "[loop]\ndefinition = \"`loop`\"\n")
	res, err := Expand("`loop`", []string{path}, nil)
	require.NoError(t, err)
	// The expansion must stop at the iteration cap, not hang.
	require.NotNil(t, res)
}
