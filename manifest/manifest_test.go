package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeManifest(t, `
[link]
inputs = ["app.bc", "/opt/lib/std.bc"]
output = "out/app.bc"
map = "out/app.map"

[policy]
allow = ["print"]
allow-prefixes = ["intrinsic."]

[options]
max-scans = 1000
eliminate-dead-globals = true
exported = ["lib.entry"]
`)
	m, err := Load(dir)
	require.NoError(t, err)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	require.Equal(t, &Manifest{
		Link: Link{
			Inputs: []string{filepath.Join(abs, "app.bc"), "/opt/lib/std.bc"},
			Output: filepath.Join(abs, "out", "app.bc"),
			Map:    filepath.Join(abs, "out", "app.map"),
		},
		Policy:  Policy{Allow: []string{"print"}, AllowPrefixes: []string{"intrinsic."}},
		Options: Options{MaxScans: 1000, EliminateDeadGlobals: true, Exported: []string{"lib.entry"}},
		Dir:     abs,
	}, m)
}

func TestLoad_defaults(t *testing.T) {
	dir := writeManifest(t, "[link]\ninputs = [\"a.bc\"]\n")
	m, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(m.Dir, "a.bc"), m.Link.Output)
	require.Equal(t, "", m.Link.Map)
	require.Equal(t, Options{}, m.Options)
}

func TestLoad_errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{name: "no inputs", content: "[link]\noutput = \"x\"\n", expected: "no inputs"},
		{name: "syntax", content: "[link\n", expected: "parse error"},
		{name: "unknown key", content: "[link]\ninputs = [\"a\"]\nouptut = \"x\"\n", expected: "unknown key link.ouptut"},
		{name: "negative max-scans", content: "[link]\ninputs = [\"a\"]\n[options]\nmax-scans = -1\n", expected: "max-scans must not be negative"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeManifest(t, tc.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.expected)
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := Load(t.TempDir())
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
