package linker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTargets(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		allowed []string
		denied  []string
	}{
		{name: "DenyAll", target: DenyAll, denied: []string{"", "print"}},
		{name: "AllowAll", target: AllowAll, allowed: []string{"", "print"}},
		{
			name:    "AllowSymbols",
			target:  AllowSymbols("print", "exit"),
			allowed: []string{"print", "exit"},
			denied:  []string{"printf", "Print", ""},
		},
		{
			name:    "AllowPrefixes",
			target:  AllowPrefixes("intrinsic.", "env."),
			allowed: []string{"intrinsic.add", "env.args", "intrinsic."},
			denied:  []string{"intrinsic", "lib.env.args"},
		},
		{
			name:    "AnyOf",
			target:  AnyOf(AllowSymbols("print"), nil, AllowPrefixes("intrinsic.")),
			allowed: []string{"print", "intrinsic.add"},
			denied:  []string{"exit"},
		},
		{name: "AnyOf none", target: AnyOf(), denied: []string{"print"}},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			for _, name := range tc.allowed {
				require.True(t, tc.target.AllowUndeclaredSymbol(name), name)
			}
			for _, name := range tc.denied {
				require.False(t, tc.target.AllowUndeclaredSymbol(name), name)
			}
		})
	}
}

func TestSymbolName(t *testing.T) {
	_, ok := SymbolName(ErrScanLimit)
	require.False(t, ok)

	name, ok := SymbolName(&SymbolError{Name: "bar", Err: ErrSymbolNotFound})
	require.True(t, ok)
	require.Equal(t, "bar", name)
}
