// Package version compares the dotted version strings plugins report and
// carries the build version of this module.
package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is the build version, set with -ldflags "-X ...version.Version=v1.2.3".
var Version = "dev"

// IsOutdated reports whether current is older than required. Unreadable
// versions never count as outdated.
func IsOutdated(current, required string) bool {
	cmp, ok := Compare(current, required)
	return ok && cmp < 0
}

// Valid reports whether v parses as a dotted version.
func Valid(v string) bool {
	_, ok := parse(v)
	return ok
}

// Compare returns -1, 0 or 1 as a is older, equal or newer than b. ok is false
// when either side does not parse.
func Compare(a, b string) (cmp int, ok bool) {
	va, okA := parse(a)
	vb, okB := parse(b)
	if !okA || !okB {
		return 0, false
	}
	return va.Compare(vb), true
}

// parse reads a version leniently. Plugin builds such as "2.0.14458.1" keep
// their first three components.
func parse(v string) (*semver.Version, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(v), "V")
	core, suffix := s, ""
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		core, suffix = s[:i], s[i:]
	}
	if parts := strings.Split(core, "."); len(parts) > 3 {
		core = strings.Join(parts[:3], ".")
	}
	sv, err := semver.NewVersion(core + suffix)
	if err != nil {
		return nil, false
	}
	return sv, true
}
