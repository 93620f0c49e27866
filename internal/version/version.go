// Package version provides build version information.
package version

import (
	"fmt"
	"strings"
)

const (
	// Version is the current version of tracedbg
	Version = "0.1.0"

	// ProtocolVersion is the version of the line protocol spoken on the
	// control connection. Controllers compare it against their own with
	// AtLeast before relying on newer commands.
	ProtocolVersion = "1.0.0"
)

// GetVersion returns the current version
func GetVersion() string {
	return Version
}

// AtLeast reports whether have satisfies the minimum version want. Both
// are semver strings; a leading 'v' is ignored.
func AtLeast(have, want string) bool {
	return compareVersions(have, want) >= 0
}

// compareVersions compares two semver strings
// Returns -1 if v1 < v2, 0 if equal, 1 if v1 > v2
func compareVersions(v1, v2 string) int {
	parse := func(v string) (major, minor, patch int) {
		parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
		if len(parts) >= 1 {
			fmt.Sscanf(parts[0], "%d", &major)
		}
		if len(parts) >= 2 {
			fmt.Sscanf(parts[1], "%d", &minor)
		}
		if len(parts) >= 3 {
			// Handle pre-release suffixes like "1.0.0-beta"
			patchStr := strings.Split(parts[2], "-")[0]
			fmt.Sscanf(patchStr, "%d", &patch)
		}
		return
	}

	maj1, min1, pat1 := parse(v1)
	maj2, min2, pat2 := parse(v2)

	if maj1 != maj2 {
		if maj1 < maj2 {
			return -1
		}
		return 1
	}
	if min1 != min2 {
		if min1 < min2 {
			return -1
		}
		return 1
	}
	if pat1 != pat2 {
		if pat1 < pat2 {
			return -1
		}
		return 1
	}
	return 0
}
