package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, cat.Names())

	for _, name := range cat.Names() {
		d := cat.Lookup(name)
		require.NotNil(t, d, name)
		require.True(t, strings.HasPrefix(d.TokenName, "CMD_"), "%s token %q", name, d.TokenName)
		require.NotNil(t, d.Args, name)
	}
}

func TestAliasesShareTokens(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)
	require.Equal(t, cat.TokenName("bin"), cat.TokenName("bucket"))
	require.Equal(t, "CMD_ANALYSEFIELDS", cat.TokenName("af"))
	require.Equal(t, "CMD_ANALYSEFIELDS", cat.TokenName("analyzefields"))
	require.Equal(t, "CMD_SCRIPT", cat.TokenName("run"))
}

func TestIsCommandLowercases(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)
	require.True(t, cat.IsCommand("STATS"))
	require.True(t, cat.IsCommand("Stats"))
	require.False(t, cat.IsCommand("nosuchcommand"))
}

func TestCreatedFieldShapes(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)

	// Scalar form.
	require.Equal(t, []string{"geom"}, cat.Lookup("geom").CreatedList())

	// List form.
	require.Contains(t, cat.Lookup("gentimes").CreatedList(), "starttime")

	// Keyed form.
	ipl := cat.Lookup("iplocation")
	require.Contains(t, ipl.CreatedKeyed("default"), "City")
	require.Contains(t, ipl.CreatedKeyed("extended"), "Timezone")
	require.Nil(t, ipl.CreatedList())
}

func TestHasArg(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)
	require.True(t, cat.Lookup("stats").HasArg("allnum"))
	require.False(t, cat.Lookup("stats").HasArg("to"))
	require.True(t, cat.Lookup("sendemail").HasArg("to"))
}
