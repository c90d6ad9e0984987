//go:build !unix && !windows

package platform

func kernelRelease() string {
	return "unknown"
}
