package bclink

import "github.com/tetratelabs/bclink/linker"

// LinkConfig controls Link behavior, with the default implementation as NewLinkConfig.
//
// Each With method returns a copy: a LinkConfig can be shared and specialized without affecting other users.
type LinkConfig struct {
	target        linker.Target
	allowed       []string
	allowedPrefix []string
	maxScans      int
	eliminate     bool
	exported      []string
}

// defaultConfig denies every undeclared symbol and links every global.
var defaultConfig = &LinkConfig{}

// clone ensures all fields are copied even if nil.
func (c *LinkConfig) clone() *LinkConfig {
	return &LinkConfig{
		target:        c.target,
		allowed:       append([]string(nil), c.allowed...),
		allowedPrefix: append([]string(nil), c.allowedPrefix...),
		maxScans:      c.maxScans,
		eliminate:     c.eliminate,
		exported:      append([]string(nil), c.exported...),
	}
}

// NewLinkConfig returns a config that requires every referenced symbol to be declared by one of the linked images.
func NewLinkConfig() *LinkConfig {
	return defaultConfig.clone()
}

// WithTarget sets the policy deciding which undeclared symbols may stay unresolved. Defaults to linker.DenyAll if nil.
//
// Note: Names added by WithAllowedSymbols and WithAllowedPrefixes are allowed in addition to what target allows.
func (c *LinkConfig) WithTarget(target linker.Target) *LinkConfig {
	ret := c.clone()
	ret.target = target
	return ret
}

// WithAllowedSymbols adds names the loader resolves, such as host functions.
func (c *LinkConfig) WithAllowedSymbols(names ...string) *LinkConfig {
	ret := c.clone()
	ret.allowed = append(ret.allowed, names...)
	return ret
}

// WithAllowedPrefixes adds name prefixes the loader resolves, such as "intrinsic.".
func (c *LinkConfig) WithAllowedPrefixes(prefixes ...string) *LinkConfig {
	ret := c.clone()
	ret.allowedPrefix = append(ret.allowedPrefix, prefixes...)
	return ret
}

// WithMaxScans bounds the instruction runs decoded while self-linking. Zero, the default, is unbounded.
//
// See linker.WithMaxScans
func (c *LinkConfig) WithMaxScans(n int) *LinkConfig {
	ret := c.clone()
	ret.maxScans = n
	return ret
}

// WithDeadGlobalElimination only links code reachable from the main entry and the exported globals.
//
// See linker.WithDeadGlobalElimination
func (c *LinkConfig) WithDeadGlobalElimination(exported ...string) *LinkConfig {
	ret := c.clone()
	ret.eliminate = true
	ret.exported = append(ret.exported, exported...)
	return ret
}

// linkTarget combines the configured target with the allow lists.
func (c *LinkConfig) linkTarget() linker.Target {
	var ts []linker.Target
	if c.target != nil {
		ts = append(ts, c.target)
	}
	if len(c.allowed) > 0 {
		ts = append(ts, linker.AllowSymbols(c.allowed...))
	}
	if len(c.allowedPrefix) > 0 {
		ts = append(ts, linker.AllowPrefixes(c.allowedPrefix...))
	}
	switch len(ts) {
	case 0:
		return linker.DenyAll
	case 1:
		return ts[0]
	}
	return linker.AnyOf(ts...)
}

func (c *LinkConfig) options() []linker.Option {
	var opts []linker.Option
	if c.maxScans > 0 {
		opts = append(opts, linker.WithMaxScans(c.maxScans))
	}
	if c.eliminate {
		opts = append(opts, linker.WithDeadGlobalElimination(c.exported...))
	}
	return opts
}
