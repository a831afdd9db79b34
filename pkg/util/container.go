package util

import "os"

// Files a container runtime leaves in the root of the container.
// Docker writes the first and podman the second.
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

// InContainer reports whether the process runs inside a docker or podman
// container.
func InContainer() bool {
	for _, m := range containerMarkers {
		if _, err := os.Stat(m); err == nil {
			return true
		}
	}

	return false
}
