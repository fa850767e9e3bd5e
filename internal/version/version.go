// Package version reports the version of bclink compiled into a binary.
package version

import (
	"runtime/debug"
)

// Default is the version reported when build information is missing, such as in tests or `go run`.
const Default = "dev"

const modulePath = "github.com/tetratelabs/bclink"

// GetVersion returns the version of bclink in the build: the main module version for the bclink CLI, or the
// dependency version when bclink is imported as a library.
func GetVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Default
	}
	return versionOf(info)
}

func versionOf(info *debug.BuildInfo) string {
	if info.Main.Path == modulePath {
		return nonDevel(info.Main.Version)
	}
	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			if dep.Replace != nil {
				return nonDevel(dep.Replace.Version)
			}
			return nonDevel(dep.Version)
		}
	}
	return Default
}

// nonDevel maps the "(devel)" placeholder of local builds to Default.
func nonDevel(v string) string {
	if v == "" || v == "(devel)" {
		return Default
	}
	return v
}
