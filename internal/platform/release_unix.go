//go:build unix

package platform

import (
	"golang.org/x/sys/unix"
)

// kernelRelease returns the uname release string, e.g. "6.8.0-45-generic".
func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "unknown"
	}
	return unix.ByteSliceToString(uts.Release[:])
}
