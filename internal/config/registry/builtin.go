package registry

import "github.com/dshills/sandboxctl/internal/security"

// Connection setting paths.
const (
	PathTimeoutInitialization  = "timeout.initialization"
	PathTimeoutStandardRequest = "timeout.standardRequest"
	PathReconnectMaxRetries    = "reconnect.maxRetries"
	PathReconnectRetryDelay    = "reconnect.retryDelay"
)

// RegisterDefaults registers all built-in settings.
func (r *Registry) RegisterDefaults() {
	r.registerServer()
	r.registerUI()
	r.registerConnection()
	r.registerExecutable()
	r.registerResources()
	r.registerProcess()
	r.registerSandbox()
}

func (r *Registry) registerServer() {
	r.MustRegister(Setting{
		Path: "server.serverPath", Section: SectionServer, Field: "serverPath",
		Type: TypeString, Default: "",
		Description: "Path to the process server executable (empty uses the bundled server)",
		Tags:        []string{"server"},
	})
	r.MustRegister(Setting{
		Path: "server.useConfigFile", Section: SectionServer, Field: "useConfigFile",
		Type: TypeBool, Default: false,
		Description: "Start the server with an external configuration file instead of generated settings",
		Tags:        []string{"server"},
	})
	r.MustRegister(Setting{
		Path: "server.configPath", Section: SectionServer, Field: "configPath",
		Type: TypeString, Default: "",
		Description: "External server configuration file used when useConfigFile is set",
		Tags:        []string{"server"},
	})
	r.MustRegister(Setting{
		Path: "server.autoStart", Section: SectionServer, Field: "autoStart",
		Type: TypeBool, Default: true,
		Description: "Start the process server automatically",
		Tags:        []string{"server"},
	})
	r.MustRegister(Setting{
		Path: "server.logLevel", Section: SectionServer, Field: "logLevel",
		Type: TypeEnum, Default: "info",
		Enum:        []string{"error", "warn", "info", "debug"},
		Description: "Process server log verbosity",
		Tags:        []string{"server", "logging"},
	})
}

func (r *Registry) registerUI() {
	r.MustRegister(Setting{
		Path: "ui.refreshInterval", Section: SectionUI, Field: "refreshInterval",
		Type: TypeInt, Default: 2000, Minimum: MinValue(100), Maximum: MaxValue(60000),
		Description: "Process list refresh interval in milliseconds",
		Tags:        []string{"ui"},
	})
	r.MustRegister(Setting{
		Path: "ui.showResourceUsage", Section: SectionUI, Field: "showResourceUsage",
		Type: TypeBool, Default: true,
		Description: "Show CPU and memory usage next to processes",
		Tags:        []string{"ui"},
	})
	r.MustRegister(Setting{
		Path: "ui.showSecurityWarnings", Section: SectionUI, Field: "showSecurityWarnings",
		Type: TypeBool, Default: true,
		Description: "Surface configuration warnings to the user",
		Tags:        []string{"ui", "security"},
	})
	r.MustRegister(Setting{
		Path: "ui.confirmDangerousOperations", Section: SectionUI, Field: "confirmDangerousOperations",
		Type: TypeBool, Default: true,
		Description: "Ask before imports or presets that relax security",
		Tags:        []string{"ui", "security"},
	})
}

func (r *Registry) registerConnection() {
	r.MustRegister(Setting{
		Path: PathTimeoutInitialization, Section: SectionConnection, Field: "initialization",
		Type: TypeInt, Default: 60000, Minimum: MinValue(1000),
		Description: "Server initialization timeout in milliseconds",
		Tags:        []string{"timeout"},
	})
	r.MustRegister(Setting{
		Path: PathTimeoutStandardRequest, Section: SectionConnection, Field: "standardRequest",
		Type: TypeInt, Default: 30000, Minimum: MinValue(100),
		Description: "Timeout for regular server requests in milliseconds",
		Tags:        []string{"timeout"},
	})
	r.MustRegister(Setting{
		Path: PathReconnectMaxRetries, Section: SectionConnection, Field: "maxRetries",
		Type: TypeInt, Default: 3, Minimum: MinValue(0), Maximum: MaxValue(100),
		Description: "Reconnect attempts after the server connection drops",
		Tags:        []string{"reconnect"},
	})
	r.MustRegister(Setting{
		Path: PathReconnectRetryDelay, Section: SectionConnection, Field: "retryDelay",
		Type: TypeInt, Default: 2000, Minimum: MinValue(0),
		Description: "Delay between reconnect attempts in milliseconds",
		Tags:        []string{"reconnect"},
	})
}

func (r *Registry) registerExecutable() {
	r.mustSecurity("executable.allowedExecutables", security.FieldAllowedExecutables, TypeStringList, []string{},
		"Executables the server may launch (empty allows nothing)")
	r.mustSecurity("executable.additionalBlockedExecutables", security.FieldAdditionalBlockedExecutables, TypeStringList, []string{},
		"Executables blocked in addition to the built-in deny list")
	r.mustSecurity("executable.blockedArgumentPatterns", security.FieldBlockedArgumentPatterns, TypeStringList, []string{},
		"Regular expressions rejected in process arguments")
	r.mustSecurity("executable.blockSetuidExecutables", security.FieldBlockSetuidExecutables, TypeBool, true,
		"Refuse to launch setuid/setgid binaries")
	r.mustSecurity("executable.blockShellInterpreters", security.FieldBlockShellInterpreters, TypeBool, true,
		"Refuse to launch shell interpreters directly")
}

func (r *Registry) registerResources() {
	r.mustSecurity("resources.defaultMaxCpuPercent", security.FieldMaxCPUPercent, TypeInt, 50,
		"Default CPU cap per process in percent")
	r.mustSecurity("resources.defaultMaxMemoryMB", security.FieldMaxMemoryMB, TypeInt, 512,
		"Default memory cap per process in MB")
	r.mustSecurity("resources.defaultMaxFileDescriptors", security.FieldMaxFileDescriptors, TypeInt, 1024,
		"Default open file descriptor cap per process")
	r.mustSecurity("resources.defaultMaxCpuTime", security.FieldMaxCPUTime, TypeInt, 300,
		"Default CPU time cap per process in seconds")
	r.mustSecurity("resources.defaultMaxProcesses", security.FieldMaxProcesses, TypeInt, 10,
		"Default child process cap per process")
}

func (r *Registry) registerProcess() {
	r.mustSecurity("process.maxConcurrentProcesses", security.FieldMaxConcurrentProcesses, TypeInt, 10,
		"Maximum processes running at once")
	r.mustSecurity("process.maxProcessLifetime", security.FieldMaxProcessLifetime, TypeInt, 3600,
		"Maximum process lifetime in seconds")

	r.mustSecurity("security.allowProcessTermination", security.FieldAllowProcessTermination, TypeBool, true,
		"Allow terminating managed processes")
	r.mustSecurity("security.allowGroupTermination", security.FieldAllowGroupTermination, TypeBool, true,
		"Allow terminating whole process groups")
	r.mustSecurity("security.allowForcedTermination", security.FieldAllowForcedTermination, TypeBool, false,
		"Allow SIGKILL-style forced termination")
	r.mustSecurity("security.requireConfirmation", security.FieldRequireConfirmation, TypeBool, false,
		"Ask before every process launch")

	r.mustSecurity("io.allowStdinInput", security.FieldAllowStdinInput, TypeBool, true,
		"Allow writing to process stdin")
	r.mustSecurity("io.allowOutputCapture", security.FieldAllowOutputCapture, TypeBool, true,
		"Capture process stdout and stderr")

	r.mustSecurity("audit.enableAuditLog", security.FieldEnableAuditLog, TypeBool, true,
		"Record process lifecycle events in the audit log")
	r.MustRegister(Setting{
		Path: "audit.auditLogLevel", Section: SectionSecurity, Field: security.FieldAuditLogLevel,
		Type: TypeEnum, Default: string(security.AuditInfo),
		Enum:        []string{"error", "warn", "info", "debug"},
		Description: "Audit log verbosity",
		Tags:        []string{"security", "audit"},
	})
}

func (r *Registry) registerSandbox() {
	r.mustSecurity("sandbox.enableChroot", security.FieldEnableChroot, TypeBool, false,
		"Confine processes to a chroot directory")
	r.mustOptionalString("sandbox.chrootDirectory", security.FieldChrootDirectory,
		"Root directory used when chroot is enabled")

	r.mustSecurity("sandbox.enableNamespaces", security.FieldEnableNamespaces, TypeBool, false,
		"Isolate processes in Linux namespaces")
	for _, kind := range security.NamespaceKinds {
		r.mustSecurity("sandbox.namespaces."+kind, security.FieldNamespaces+"."+kind, TypeBool, false,
			"Create a separate "+kind+" namespace")
	}

	r.mustSecurity("sandbox.enableSeccomp", security.FieldEnableSeccomp, TypeBool, false,
		"Filter system calls with seccomp")
	r.MustRegister(Setting{
		Path: "sandbox.seccompProfile", Section: SectionSecurity, Field: security.FieldSeccompProfile,
		Type: TypeEnum, Default: "", Optional: true,
		Enum:        []string{"strict", "moderate", "permissive"},
		Description: "Seccomp filter strictness",
		Tags:        []string{"security", "sandbox"},
	})

	r.mustSecurity("sandbox.enableMAC", security.FieldEnableMAC, TypeBool, false,
		"Apply a mandatory access control profile (AppArmor/SELinux)")
	r.mustOptionalString("sandbox.macProfile", security.FieldMACProfile,
		"MAC profile name applied when MAC is enabled")

	r.mustSecurity("sandbox.dropCapabilities", security.FieldDropCapabilities, TypeStringList, []string{},
		"Linux capabilities dropped before exec")
	r.mustSecurity("sandbox.readOnlyFilesystem", security.FieldReadOnlyFilesystem, TypeBool, false,
		"Mount the process filesystem read-only")
	r.mustSecurity("sandbox.tmpfsSize", security.FieldTmpfsSize, TypeInt, 0,
		"Size of the private tmpfs in MB (0 disables it)")

	r.mustSecurity("alerts.enableSecurityAlerts", security.FieldEnableSecurityAlerts, TypeBool, false,
		"Post security events to a webhook")
	r.mustOptionalString("alerts.securityAlertWebhook", security.FieldSecurityAlertWebhook,
		"Webhook URL receiving security alerts")
}

func (r *Registry) mustSecurity(path, field string, typ SettingType, def any, desc string) {
	r.MustRegister(Setting{
		Path:        path,
		Section:     SectionSecurity,
		Field:       field,
		Type:        typ,
		Default:     def,
		Description: desc,
		Tags:        []string{"security", extractSection(path)},
	})
}

func (r *Registry) mustOptionalString(path, field, desc string) {
	r.MustRegister(Setting{
		Path:        path,
		Section:     SectionSecurity,
		Field:       field,
		Type:        TypeString,
		Default:     "",
		Optional:    true,
		Description: desc,
		Tags:        []string{"security", extractSection(path)},
	})
}

// extractSection extracts the top-level segment from a path.
func extractSection(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
