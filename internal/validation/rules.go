package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/dshills/sandboxctl/internal/platform"
	"github.com/dshills/sandboxctl/internal/security"
)

var listFields = []string{
	security.FieldAllowedExecutables,
	security.FieldAdditionalBlockedExecutables,
	security.FieldBlockedArgumentPatterns,
	security.FieldDropCapabilities,
}

var boolFields = []string{
	security.FieldBlockSetuidExecutables,
	security.FieldBlockShellInterpreters,
	security.FieldAllowProcessTermination,
	security.FieldAllowGroupTermination,
	security.FieldAllowForcedTermination,
	security.FieldAllowStdinInput,
	security.FieldAllowOutputCapture,
	security.FieldEnableAuditLog,
	security.FieldRequireConfirmation,
	security.FieldEnableChroot,
	security.FieldEnableNamespaces,
	security.FieldEnableSeccomp,
	security.FieldEnableMAC,
	security.FieldReadOnlyFilesystem,
	security.FieldEnableSecurityAlerts,
}

var stringFields = []string{
	security.FieldChrootDirectory,
	security.FieldMACProfile,
	security.FieldSecurityAlertWebhook,
}

var groupFields = []string{
	security.FieldDefaultResourceLimits,
	security.FieldNamespaces,
}

func checkTypes(c *check) {
	for _, field := range listFields {
		v, ok := c.value(field)
		if !ok {
			continue
		}
		items, ok := listItems(v)
		if !ok {
			c.fail(field, CodeTypeMismatch,
				fmt.Sprintf("%s must be an array", field),
				fmt.Sprintf(`Set %s to a list of strings, e.g. ["node"]`, field))
			continue
		}
		for i, item := range items {
			if _, ok := item.(string); !ok {
				c.fail(fmt.Sprintf("%s[%d]", field, i), CodeTypeMismatch,
					fmt.Sprintf("%s entries must be strings", field),
					"Quote the entry or remove it")
			}
		}
	}

	for _, field := range boolFields {
		v, ok := c.value(field)
		if !ok {
			continue
		}
		if _, ok := v.(bool); !ok {
			c.fail(field, CodeTypeMismatch,
				fmt.Sprintf("%s must be a boolean", field),
				fmt.Sprintf("Set %s to true or false", field))
		}
	}

	for _, field := range stringFields {
		v, ok := c.value(field)
		if !ok {
			continue
		}
		if _, ok := v.(string); !ok {
			c.fail(field, CodeTypeMismatch,
				fmt.Sprintf("%s must be a string", field),
				fmt.Sprintf("Set %s to a string value", field))
		}
	}

	for _, field := range groupFields {
		v, ok := c.value(field)
		if !ok {
			continue
		}
		if !isObject(v) {
			c.fail(field, CodeTypeMismatch,
				fmt.Sprintf("%s must be an object", field),
				fmt.Sprintf("Set %s to an object of named values", field))
		}
	}

	for _, kind := range security.NamespaceKinds {
		field := security.FieldNamespaces + "." + kind
		v, ok := c.value(field)
		if !ok {
			continue
		}
		if _, ok := v.(bool); !ok {
			c.fail(field, CodeTypeMismatch,
				fmt.Sprintf("%s must be a boolean", field),
				fmt.Sprintf("Set %s to true or false", field))
		}
	}
}

// numericRule bounds a whole-number field. Setting is the path issues are
// reported at.
type numericRule struct {
	field   string
	setting string
	min     float64
	max     float64
	hasMax  bool
}

// maxWhole caps every numeric setting so decoded values fit an int on all
// platforms.
const maxWhole = math.MaxInt32

var numericRules = []numericRule{
	{field: security.FieldMaxConcurrentProcesses, setting: "maxConcurrentProcesses", min: 1},
	{field: security.FieldMaxProcessLifetime, setting: "maxProcessLifetime", min: 1},
	{field: security.FieldMaxCPUPercent, setting: "resources.defaultMaxCpuPercent", min: 0, max: 100, hasMax: true},
	{field: security.FieldMaxMemoryMB, setting: "resources.defaultMaxMemoryMB", min: 0},
	{field: security.FieldMaxFileDescriptors, setting: "resources.defaultMaxFileDescriptors", min: 0},
	{field: security.FieldMaxCPUTime, setting: "resources.defaultMaxCpuTime", min: 0},
	{field: security.FieldMaxProcesses, setting: "resources.defaultMaxProcesses", min: 0},
	{field: security.FieldTmpfsSize, setting: "tmpfsSize", min: 0},
}

func checkRanges(c *check) {
	for _, r := range numericRules {
		v, ok := c.value(r.field)
		if !ok {
			continue
		}
		n, ok := number(v)
		if !ok {
			c.fail(r.setting, CodeTypeMismatch,
				fmt.Sprintf("%s must be a number", r.setting),
				fmt.Sprintf("Set %s to a whole number", r.setting))
			continue
		}
		if n != math.Trunc(n) {
			c.fail(r.setting, CodeTypeMismatch,
				fmt.Sprintf("%s must be a whole number, got %v", r.setting, n),
				fmt.Sprintf("Round %s to a whole number", r.setting))
			continue
		}
		switch {
		case r.hasMax && (n < r.min || n > r.max):
			c.fail(r.setting, CodeOutOfRange,
				fmt.Sprintf("%s must be between %g and %g, got %g", r.setting, r.min, r.max, n),
				fmt.Sprintf("Use a value from %g to %g", r.min, r.max))
		case n < r.min:
			c.fail(r.setting, CodeOutOfRange,
				fmt.Sprintf("%s must be at least %g, got %g", r.setting, r.min, n),
				fmt.Sprintf("Use a value of %g or more", r.min))
		case n > maxWhole:
			c.fail(r.setting, CodeOutOfRange,
				fmt.Sprintf("%s must be at most %d, got %g", r.setting, math.MaxInt32, n),
				fmt.Sprintf("Use a value of %d or less", math.MaxInt32))
		}
	}
}

func checkEnums(c *check) {
	if v, ok := c.value(security.FieldSeccompProfile); ok {
		s, isString := v.(string)
		if !isString || (s != "" && !security.SeccompProfile(s).Valid()) {
			c.fail(security.FieldSeccompProfile, CodeInvalidEnum,
				fmt.Sprintf("seccompProfile must be one of strict, moderate, permissive, got %v", v),
				`Use "strict", "moderate" or "permissive"`)
		}
	}

	if v, ok := c.value(security.FieldAuditLogLevel); ok {
		s, isString := v.(string)
		if !isString || !security.AuditLogLevel(s).Valid() {
			c.fail(security.FieldAuditLogLevel, CodeInvalidEnum,
				fmt.Sprintf("auditLogLevel must be one of error, warn, info, debug, got %v", v),
				`Use "error", "warn", "info" or "debug"`)
		}
	}
}

func checkPatterns(c *check) {
	v, ok := c.value(security.FieldBlockedArgumentPatterns)
	if !ok {
		return
	}
	items, ok := listItems(v)
	if !ok {
		return
	}
	for i, item := range items {
		pattern, ok := item.(string)
		if !ok {
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			c.fail(fmt.Sprintf("%s[%d]", security.FieldBlockedArgumentPatterns, i), CodeInvalidPattern,
				fmt.Sprintf("%q is not a valid regular expression: %v", pattern, err),
				"Escape regular expression metacharacters with a backslash")
		}
	}
}

func checkDependencies(c *check) {
	if c.isTrue(security.FieldEnableChroot) && c.blank(security.FieldChrootDirectory) {
		c.fail(security.FieldChrootDirectory, CodeDependency,
			"chrootDirectory is required when enableChroot is true",
			"Set chrootDirectory to an existing directory or disable chroot")
	}

	if c.isTrue(security.FieldEnableMAC) && c.blank(security.FieldMACProfile) {
		c.fail(security.FieldMACProfile, CodeDependency,
			"macProfile is required when enableMAC is true",
			"Set macProfile to an AppArmor or SELinux profile name or disable MAC")
	}

	if c.isTrue(security.FieldEnableSecurityAlerts) {
		switch {
		case c.blank(security.FieldSecurityAlertWebhook):
			c.fail(security.FieldSecurityAlertWebhook, CodeDependency,
				"securityAlertWebhook is required when enableSecurityAlerts is true",
				"Set securityAlertWebhook to an http(s) URL or disable security alerts")
		default:
			raw, _ := c.value(security.FieldSecurityAlertWebhook)
			if s, ok := raw.(string); ok && !validURL(s) {
				c.fail(security.FieldSecurityAlertWebhook, CodeDependency,
					fmt.Sprintf("securityAlertWebhook %q is not a valid URL", s),
					"Use an absolute URL such as https://alerts.example.com/hook")
			}
		}
	}
}

// blank reports whether a string field is absent or whitespace. Values of
// other types are left to the type rules.
func (c *check) blank(field string) bool {
	v, ok := c.value(field)
	if !ok {
		return true
	}
	s, isString := v.(string)
	return isString && strings.TrimSpace(s) == ""
}

// gate warns when an enabled feature is unsupported on the host.
type gate struct {
	feature  platform.Feature
	setting  string
	label    string
	severity security.Level
	enabled  func(c *check) bool
}

func flag(field string) func(c *check) bool {
	return func(c *check) bool { return c.isTrue(field) }
}

var gates = []gate{
	{platform.FeatureChroot, security.FieldEnableChroot, "Chroot", security.LevelHigh, flag(security.FieldEnableChroot)},
	{platform.FeatureNamespaces, security.FieldEnableNamespaces, "Namespaces", security.LevelHigh, flag(security.FieldEnableNamespaces)},
	{platform.FeatureSeccomp, security.FieldEnableSeccomp, "Seccomp", security.LevelHigh, flag(security.FieldEnableSeccomp)},
	{platform.FeatureMAC, security.FieldEnableMAC, "Mandatory access control", security.LevelHigh, flag(security.FieldEnableMAC)},
	{platform.FeatureFileDescriptors, "resources.defaultMaxFileDescriptors", "File descriptor limits", security.LevelMedium,
		func(c *check) bool {
			v, ok := c.value(security.FieldMaxFileDescriptors)
			if !ok {
				return false
			}
			_, isNumber := number(v)
			return isNumber
		}},
	{platform.FeatureSetuidBlocking, security.FieldBlockSetuidExecutables, "Setuid blocking", security.LevelMedium, flag(security.FieldBlockSetuidExecutables)},
	{platform.FeatureCapabilityDrop, security.FieldDropCapabilities, "Capability dropping", security.LevelMedium,
		func(c *check) bool {
			v, _ := c.value(security.FieldDropCapabilities)
			items, ok := listItems(v)
			return ok && len(items) > 0
		}},
}

func checkPlatform(c *check) {
	name := c.caps.PlatformName
	if name == "" {
		name = "this platform"
	}
	for _, g := range gates {
		if !g.enabled(c) || c.caps.Supports(g.feature) {
			continue
		}
		c.warn(g.setting, g.severity, CodePlatform,
			fmt.Sprintf("%s is not supported on %s and will be ignored", g.label, name),
			fmt.Sprintf("Disable %s or run the server on a platform that supports it", g.setting))
	}
}

func checkConsistency(c *check) {
	var selected []string
	for _, kind := range security.NamespaceKinds {
		if c.isTrue(security.FieldNamespaces + "." + kind) {
			selected = append(selected, kind)
		}
	}
	if len(selected) > 0 && c.isFalse(security.FieldEnableNamespaces) {
		c.warn(security.FieldEnableNamespaces, security.LevelMedium, CodeConsistency,
			fmt.Sprintf("Namespace flags (%s) are set but enableNamespaces is false", strings.Join(selected, ", ")),
			"Set enableNamespaces to true or clear the namespace flags")
	}

	if v, ok := c.value(security.FieldSeccompProfile); ok {
		if s, isString := v.(string); isString && s != "" && c.isFalse(security.FieldEnableSeccomp) {
			c.warn(security.FieldEnableSeccomp, security.LevelLow, CodeConsistency,
				fmt.Sprintf("seccompProfile %q is set but enableSeccomp is false", s),
				"Set enableSeccomp to true or clear seccompProfile")
		}
	}

	if v, ok := c.value(security.FieldAllowedExecutables); ok {
		if items, isList := listItems(v); isList && len(items) == 0 {
			c.warn(security.FieldAllowedExecutables, security.LevelLow, CodeConsistency,
				"allowedExecutables is empty, so no executable may be launched",
				"Add the executables the server may run")
		}
	}

	if c.isTrue(security.FieldAllowForcedTermination) && c.isFalse(security.FieldAllowProcessTermination) {
		c.warn(security.FieldAllowForcedTermination, security.LevelMedium, CodeConsistency,
			"allowForcedTermination has no effect while allowProcessTermination is false",
			"Enable allowProcessTermination or disable allowForcedTermination")
	}

	if c.isFalse(security.FieldEnableAuditLog) {
		c.warn(security.FieldEnableAuditLog, security.LevelMedium, CodeConsistency,
			"Audit logging is disabled, so process activity will not be recorded",
			"Set enableAuditLog to true")
	}
}

func listItems(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		items := make([]any, len(list))
		for i, s := range list {
			items[i] = s
		}
		return items, true
	default:
		return nil, false
	}
}

func isObject(v any) bool {
	switch v.(type) {
	case map[string]any, security.Document:
		return true
	default:
		return false
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case float64:
		return n, !math.IsNaN(n)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func validURL(raw string) bool {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	return err == nil && u.Scheme != "" && u.Host != ""
}
