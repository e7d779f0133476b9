package results

import (
	"runtime/debug"
	"strings"
)

func moduleVersion() string {
	moduleVersion := "devel"
	if bi, ok := debug.ReadBuildInfo(); ok {
		moduleVersion = strings.Trim(bi.Main.Version, "()")
	}

	return moduleVersion
}
