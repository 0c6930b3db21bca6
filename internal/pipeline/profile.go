package pipeline

import "strings"

// Profile is the compilation mode.
type Profile int

const (
	Dev Profile = iota
	Release
	Profiling
)

func (p Profile) String() string {
	switch p {
	case Release:
		return "release"
	case Profiling:
		return "profiling"
	default:
		return "dev"
	}
}

// ParseProfile reads a profile name; unknown names yield Dev.
func ParseProfile(s string) Profile {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "release":
		return Release
	case "profiling", "profile":
		return Profiling
	default:
		return Dev
	}
}

// Effective upgrades requested to Profiling when the profiling flag is set. It never downgrades.
func Effective(requested Profile, profiling bool) Profile {
	if profiling {
		return Profiling
	}
	return requested
}

// Optimized reports whether the profile runs the optimizer.
func (p Profile) Optimized() bool {
	return p == Release || p == Profiling
}

// dir is the intermediate artifact subdirectory for the profile.
func (p Profile) dir() string {
	if p == Dev {
		return "debug"
	}
	return "release"
}
