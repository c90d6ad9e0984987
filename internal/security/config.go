package security

import (
	"encoding/json"
	"fmt"
)

// ResourceLimits are the default per-process limits applied by the server.
// Nil fields mean "no limit configured".
type ResourceLimits struct {
	MaxCPUPercent      *int `json:"maxCpuPercent,omitempty"`
	MaxMemoryMB        *int `json:"maxMemoryMB,omitempty"`
	MaxFileDescriptors *int `json:"maxFileDescriptors,omitempty"`
	MaxCPUTime         *int `json:"maxCpuTime,omitempty"`
	MaxProcesses       *int `json:"maxProcesses,omitempty"`
}

// Namespaces selects which Linux namespaces isolate spawned processes.
type Namespaces struct {
	PID     bool `json:"pid"`
	Network bool `json:"network"`
	Mount   bool `json:"mount"`
	UTS     bool `json:"uts"`
	IPC     bool `json:"ipc"`
	User    bool `json:"user"`
}

// Config is the strongly typed security configuration consumed by the
// process server.
type Config struct {
	// Executable control
	AllowedExecutables           []string `json:"allowedExecutables"`
	AdditionalBlockedExecutables []string `json:"additionalBlockedExecutables,omitempty"`
	BlockedArgumentPatterns      []string `json:"blockedArgumentPatterns,omitempty"`
	BlockSetuidExecutables       bool     `json:"blockSetuidExecutables"`
	BlockShellInterpreters       bool     `json:"blockShellInterpreters"`

	DefaultResourceLimits ResourceLimits `json:"defaultResourceLimits"`

	MaxConcurrentProcesses int `json:"maxConcurrentProcesses"`
	MaxProcessLifetime     int `json:"maxProcessLifetime"`

	AllowProcessTermination bool `json:"allowProcessTermination"`
	AllowGroupTermination   bool `json:"allowGroupTermination"`
	AllowForcedTermination  bool `json:"allowForcedTermination"`

	AllowStdinInput    bool `json:"allowStdinInput"`
	AllowOutputCapture bool `json:"allowOutputCapture"`

	EnableAuditLog bool          `json:"enableAuditLog"`
	AuditLogLevel  AuditLogLevel `json:"auditLogLevel,omitempty"`

	RequireConfirmation bool `json:"requireConfirmation"`

	// Platform-gated features
	EnableChroot         bool           `json:"enableChroot,omitempty"`
	ChrootDirectory      string         `json:"chrootDirectory,omitempty"`
	EnableNamespaces     bool           `json:"enableNamespaces,omitempty"`
	Namespaces           *Namespaces    `json:"namespaces,omitempty"`
	EnableSeccomp        bool           `json:"enableSeccomp,omitempty"`
	SeccompProfile       SeccompProfile `json:"seccompProfile,omitempty"`
	EnableMAC            bool           `json:"enableMAC,omitempty"`
	MACProfile           string         `json:"macProfile,omitempty"`
	DropCapabilities     []string       `json:"dropCapabilities,omitempty"`
	ReadOnlyFilesystem   bool           `json:"readOnlyFilesystem,omitempty"`
	TmpfsSize            int            `json:"tmpfsSize,omitempty"`
	EnableSecurityAlerts bool           `json:"enableSecurityAlerts,omitempty"`
	SecurityAlertWebhook string         `json:"securityAlertWebhook,omitempty"`
}

// DecodeError is returned when a Document cannot be decoded into a Config.
type DecodeError struct {
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding security config: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode converts a Document into a typed Config. Wrong-typed values make it
// fail; run the document through validation first to get per-field reports.
func Decode(doc Document) (*Config, error) {
	data, err := json.Marshal(map[string]any(doc))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &cfg, nil
}

// Document converts the Config back to its loosely-typed form. Zero-valued
// optional fields are omitted.
func (c *Config) Document() Document {
	data, err := json.Marshal(c)
	if err != nil {
		return Document{}
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Document{}
	}
	return Document(Normalize(m).(map[string]any))
}
