package linker

import "strings"

// Target decides which undeclared symbols may stay unresolved after linking, for example because the loader resolves
// them dynamically. It is the only policy hook of the linker.
type Target interface {
	AllowUndeclaredSymbol(name string) bool
}

// TargetFunc adapts a function to Target.
type TargetFunc func(name string) bool

func (f TargetFunc) AllowUndeclaredSymbol(name string) bool {
	return f(name)
}

var (
	// DenyAll requires every referenced symbol to be declared.
	DenyAll Target = TargetFunc(func(string) bool { return false })
	// AllowAll leaves every undeclared symbol to the loader.
	AllowAll Target = TargetFunc(func(string) bool { return true })
)

type symbolSet map[string]struct{}

func (s symbolSet) AllowUndeclaredSymbol(name string) bool {
	_, ok := s[name]
	return ok
}

// AllowSymbols permits exactly the given names.
func AllowSymbols(names ...string) Target {
	s := make(symbolSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

type prefixes []string

func (p prefixes) AllowUndeclaredSymbol(name string) bool {
	for _, prefix := range p {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// AllowPrefixes permits any name starting with one of the prefixes, such as "intrinsic.".
func AllowPrefixes(p ...string) Target {
	return append(prefixes(nil), p...)
}

type anyOf []Target

func (a anyOf) AllowUndeclaredSymbol(name string) bool {
	for _, t := range a {
		if t != nil && t.AllowUndeclaredSymbol(name) {
			return true
		}
	}
	return false
}

// AnyOf permits a name when any of the targets does. With no targets it denies everything.
func AnyOf(targets ...Target) Target {
	return append(anyOf(nil), targets...)
}
