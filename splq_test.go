package splq

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splq/splq/internal/parser"
)

func TestAnalyzeBasicPipeline(t *testing.T) {
	res, err := Analyze("index=idx sourcetype=a | stats count by host", &Options{PrintErrors: false})
	require.NoError(t, err)
	require.Equal(t, 0, res.ErrorsCount)
	require.Equal(t, []string{"index", "sourcetype", "host"}, res.Data.Main.Input)
	require.Equal(t, []string{"host", "count"}, res.Data.Main.Output)
}

func TestAnalyzeReportsDiagnostics(t *testing.T) {
	res, err := Analyze("a | sendemail format=html", &Options{PrintErrors: false})
	require.NoError(t, err)
	require.Equal(t, 1, res.ErrorsCount)
	require.Len(t, res.Errors.List, 1)
	ds := res.Errors.Ref[res.Errors.List[0]]
	require.NotEmpty(t, ds)
	require.Contains(t, ds[0].Message, "Missing 'to' argument")
}

func TestAnalyzeWithMacros(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "macros.conf")
	require.NoError(t, os.WriteFile(path, []byte(`
[m(2)]
definition = "src=$arg1$ dst=$arg2$"
args = arg1, arg2
`), 0644))

	res, err := Analyze("`m(1,2)` index=i | stats count by src", &Options{
		PrintErrors: false,
		MacroFiles:  []string{path},
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.ErrorsCount)
	require.Contains(t, res.Data.Main.Input, "src")
	require.Contains(t, res.Data.Main.Input, "dst")
	require.Contains(t, res.Data.Main.Input, "index")
}

func TestAnalyzeSubsearches(t *testing.T) {
	res, err := Analyze("index=a | join id [search index=b | fields id name]", &Options{PrintErrors: false})
	require.NoError(t, err)
	require.Equal(t, 0, res.ErrorsCount)
	require.Len(t, res.Data.Subsearches, 1)
	require.Equal(t, 1, res.Data.Subsearches[0].Level)
	require.Contains(t, res.Data.Subsearches[0].Data.Output, "id")
}

func TestAnalyzeEffectTrail(t *testing.T) {
	res, err := Analyze("| inputlookup t where x>0 | fields - y", &Options{PrintErrors: false})
	require.NoError(t, err)
	require.Equal(t,
		[]parser.Effect{parser.EffectGenerate, parser.EffectRemove},
		res.Data.Main.Effects)
	require.NotContains(t, res.Data.Main.Output, "y")
}

func TestAnalyzeMissingMacroFile(t *testing.T) {
	_, err := Analyze("`m`", &Options{
		PrintErrors: false,
		MacroFiles:  []string{"/does/not/exist.conf"},
	})
	require.Error(t, err)
}

func TestAnalyzeNilOptions(t *testing.T) {
	res, err := Analyze("a", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Data.Main)
}
