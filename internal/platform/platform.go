// Package platform detects which sandboxing primitives the host OS offers.
//
// Detection is a pure function of the OS family: the policy table below is
// the single source of truth and is not probed at runtime. Only descriptive
// fields (architecture, kernel release) come from the live host.
package platform

import (
	"runtime"
	"sync"
)

// OS identifies the host operating system family.
type OS string

const (
	Linux   OS = "linux"
	MacOS   OS = "macos"
	Windows OS = "windows"
	Unknown OS = "unknown"
)

// Feature names a platform-gated sandboxing capability.
type Feature string

const (
	FeatureChroot          Feature = "chroot"
	FeatureNamespaces      Feature = "namespaces"
	FeatureSeccomp         Feature = "seccomp"
	FeatureMAC             Feature = "mac"
	FeatureFileDescriptors Feature = "fileDescriptorLimits"
	FeatureCPULimits       Feature = "cpuLimits"
	FeatureMemoryLimits    Feature = "memoryLimits"
	FeatureSetuidBlocking  Feature = "setuidBlocking"
	FeatureCapabilityDrop  Feature = "capabilities"
)

// Capabilities is an immutable snapshot of the host's sandboxing support.
type Capabilities struct {
	Platform     OS     `json:"platform"`
	PlatformName string `json:"platformName"`
	Architecture string `json:"architecture"`
	Release      string `json:"release"`

	SupportsChroot               bool `json:"supportsChroot"`
	SupportsNamespaces           bool `json:"supportsNamespaces"`
	SupportsSeccomp              bool `json:"supportsSeccomp"`
	SupportsMAC                  bool `json:"supportsMAC"`
	SupportsFileDescriptorLimits bool `json:"supportsFileDescriptorLimits"`
	SupportsCPULimits            bool `json:"supportsCpuLimits"`
	SupportsMemoryLimits         bool `json:"supportsMemoryLimits"`
	SupportsSetuidBlocking       bool `json:"supportsSetuidBlocking"`
	SupportsCapabilities         bool `json:"supportsCapabilities"`
}

// Supports reports whether the snapshot allows the given feature.
func (c Capabilities) Supports(f Feature) bool {
	switch f {
	case FeatureChroot:
		return c.SupportsChroot
	case FeatureNamespaces:
		return c.SupportsNamespaces
	case FeatureSeccomp:
		return c.SupportsSeccomp
	case FeatureMAC:
		return c.SupportsMAC
	case FeatureFileDescriptors:
		return c.SupportsFileDescriptorLimits
	case FeatureCPULimits:
		return c.SupportsCPULimits
	case FeatureMemoryLimits:
		return c.SupportsMemoryLimits
	case FeatureSetuidBlocking:
		return c.SupportsSetuidBlocking
	case FeatureCapabilityDrop:
		return c.SupportsCapabilities
	default:
		return false
	}
}

// policy is the capability table per OS family. Unknown platforms get
// nothing.
var policy = map[OS][]Feature{
	Linux: {
		FeatureChroot, FeatureNamespaces, FeatureSeccomp, FeatureMAC,
		FeatureFileDescriptors, FeatureSetuidBlocking, FeatureCapabilityDrop,
		FeatureCPULimits, FeatureMemoryLimits,
	},
	MacOS: {
		FeatureChroot, FeatureFileDescriptors, FeatureSetuidBlocking,
		FeatureCPULimits, FeatureMemoryLimits,
	},
	Windows: {
		FeatureCPULimits, FeatureMemoryLimits,
	},
}

// FromGOOS maps a Go GOOS value to an OS family.
func FromGOOS(goos string) OS {
	switch goos {
	case "linux", "android":
		return Linux
	case "darwin", "ios":
		return MacOS
	case "windows":
		return Windows
	default:
		return Unknown
	}
}

// DisplayName returns the human-readable platform name used in messages.
func (o OS) DisplayName() string {
	switch o {
	case Linux:
		return "Linux"
	case MacOS:
		return "macOS"
	case Windows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// ForOS builds the capability snapshot for an OS family.
func ForOS(os OS, arch, release string) Capabilities {
	caps := Capabilities{
		Platform:     os,
		PlatformName: os.DisplayName(),
		Architecture: arch,
		Release:      release,
	}

	for _, f := range policy[os] {
		switch f {
		case FeatureChroot:
			caps.SupportsChroot = true
		case FeatureNamespaces:
			caps.SupportsNamespaces = true
		case FeatureSeccomp:
			caps.SupportsSeccomp = true
		case FeatureMAC:
			caps.SupportsMAC = true
		case FeatureFileDescriptors:
			caps.SupportsFileDescriptorLimits = true
		case FeatureCPULimits:
			caps.SupportsCPULimits = true
		case FeatureMemoryLimits:
			caps.SupportsMemoryLimits = true
		case FeatureSetuidBlocking:
			caps.SupportsSetuidBlocking = true
		case FeatureCapabilityDrop:
			caps.SupportsCapabilities = true
		}
	}
	return caps
}

// Detector computes the host capabilities once and serves the cached
// snapshot afterwards.
type Detector struct {
	once sync.Once
	caps Capabilities
}

// NewDetector creates a detector for the running host.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns the host capabilities, computing them on first use.
func (d *Detector) Detect() Capabilities {
	d.once.Do(func() {
		d.caps = ForOS(FromGOOS(runtime.GOOS), runtime.GOARCH, kernelRelease())
	})
	return d.caps
}

// Static returns a detector that always reports caps. Useful for tests and
// for evaluating a configuration against another host.
func Static(caps Capabilities) *Detector {
	d := &Detector{caps: caps}
	d.once.Do(func() {})
	return d
}
