// Package manifest handles bclink.toml link configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest looked for by Load.
const FileName = "bclink.toml"

// Manifest represents a bclink.toml file.
type Manifest struct {
	Link    Link    `toml:"link"`
	Policy  Policy  `toml:"policy"`
	Options Options `toml:"options"`

	// Dir is the directory containing the manifest (set at load time).
	Dir string `toml:"-"`
}

// Link names the images to link and where to write the results.
type Link struct {
	Inputs []string `toml:"inputs"`
	Output string   `toml:"output"`
	Map    string   `toml:"map"`
}

// Policy lists the undeclared symbols left for the loader to resolve.
type Policy struct {
	Allow         []string `toml:"allow"`
	AllowPrefixes []string `toml:"allow-prefixes"`
}

// Options tune the self-link.
type Options struct {
	MaxScans             int      `toml:"max-scans"`
	EliminateDeadGlobals bool     `toml:"eliminate-dead-globals"`
	Exported             []string `toml:"exported"`
}

var errNoInputs = errors.New("no inputs")

// Load parses the bclink.toml file in dir.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the manifest at path. Relative input, output and map paths are resolved against its directory.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse error in %s: unknown key %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if len(m.Link.Inputs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errNoInputs)
	}
	if m.Options.MaxScans < 0 {
		return nil, fmt.Errorf("%s: max-scans must not be negative", path)
	}

	// Defaults
	if m.Link.Output == "" {
		m.Link.Output = "a.bc"
	}

	for i, in := range m.Link.Inputs {
		m.Link.Inputs[i] = m.resolve(in)
	}
	m.Link.Output = m.resolve(m.Link.Output)
	if m.Link.Map != "" {
		m.Link.Map = m.resolve(m.Link.Map)
	}
	return &m, nil
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Dir, path)
}
