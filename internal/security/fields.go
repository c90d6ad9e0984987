package security

// SecurityConfig field names. Nested fields use dot-separated paths relative
// to the document root.
const (
	FieldAllowedExecutables           = "allowedExecutables"
	FieldAdditionalBlockedExecutables = "additionalBlockedExecutables"
	FieldBlockedArgumentPatterns      = "blockedArgumentPatterns"
	FieldBlockSetuidExecutables       = "blockSetuidExecutables"
	FieldBlockShellInterpreters       = "blockShellInterpreters"

	FieldDefaultResourceLimits = "defaultResourceLimits"
	FieldMaxCPUPercent         = "defaultResourceLimits.maxCpuPercent"
	FieldMaxMemoryMB           = "defaultResourceLimits.maxMemoryMB"
	FieldMaxFileDescriptors    = "defaultResourceLimits.maxFileDescriptors"
	FieldMaxCPUTime            = "defaultResourceLimits.maxCpuTime"
	FieldMaxProcesses          = "defaultResourceLimits.maxProcesses"

	FieldMaxConcurrentProcesses = "maxConcurrentProcesses"
	FieldMaxProcessLifetime     = "maxProcessLifetime"

	FieldAllowProcessTermination = "allowProcessTermination"
	FieldAllowGroupTermination   = "allowGroupTermination"
	FieldAllowForcedTermination  = "allowForcedTermination"

	FieldAllowStdinInput    = "allowStdinInput"
	FieldAllowOutputCapture = "allowOutputCapture"

	FieldEnableAuditLog = "enableAuditLog"
	FieldAuditLogLevel  = "auditLogLevel"

	FieldRequireConfirmation = "requireConfirmation"

	FieldEnableChroot    = "enableChroot"
	FieldChrootDirectory = "chrootDirectory"

	FieldEnableNamespaces = "enableNamespaces"
	FieldNamespaces       = "namespaces"
	FieldNamespacePID     = "namespaces.pid"
	FieldNamespaceNetwork = "namespaces.network"
	FieldNamespaceMount   = "namespaces.mount"
	FieldNamespaceUTS     = "namespaces.uts"
	FieldNamespaceIPC     = "namespaces.ipc"
	FieldNamespaceUser    = "namespaces.user"

	FieldEnableSeccomp  = "enableSeccomp"
	FieldSeccompProfile = "seccompProfile"

	FieldEnableMAC  = "enableMAC"
	FieldMACProfile = "macProfile"

	FieldDropCapabilities   = "dropCapabilities"
	FieldReadOnlyFilesystem = "readOnlyFilesystem"
	FieldTmpfsSize          = "tmpfsSize"

	FieldEnableSecurityAlerts = "enableSecurityAlerts"
	FieldSecurityAlertWebhook = "securityAlertWebhook"
)

// NamespaceKinds lists the namespace flags in a stable order.
var NamespaceKinds = []string{"pid", "network", "mount", "uts", "ipc", "user"}
