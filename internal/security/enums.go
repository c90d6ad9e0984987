package security

// SeccompProfile selects how restrictive the seccomp filter is.
type SeccompProfile string

const (
	SeccompStrict     SeccompProfile = "strict"
	SeccompModerate   SeccompProfile = "moderate"
	SeccompPermissive SeccompProfile = "permissive"
)

// SeccompProfiles lists the accepted seccomp profiles.
var SeccompProfiles = []SeccompProfile{SeccompStrict, SeccompModerate, SeccompPermissive}

// Valid reports whether p is a known profile.
func (p SeccompProfile) Valid() bool {
	for _, known := range SeccompProfiles {
		if p == known {
			return true
		}
	}
	return false
}

// AuditLogLevel is the verbosity of the server audit log.
type AuditLogLevel string

const (
	AuditError AuditLogLevel = "error"
	AuditWarn  AuditLogLevel = "warn"
	AuditInfo  AuditLogLevel = "info"
	AuditDebug AuditLogLevel = "debug"
)

// AuditLogLevels lists the accepted audit log levels.
var AuditLogLevels = []AuditLogLevel{AuditError, AuditWarn, AuditInfo, AuditDebug}

// Valid reports whether l is a known level.
func (l AuditLogLevel) Valid() bool {
	for _, known := range AuditLogLevels {
		if l == known {
			return true
		}
	}
	return false
}

// Level grades both preset security postures and warning severity.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	default:
		return false
	}
}

// Rank orders levels from low (0) to high (2). Unknown levels rank -1.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 0
	case LevelMedium:
		return 1
	case LevelHigh:
		return 2
	default:
		return -1
	}
}
