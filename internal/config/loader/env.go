package loader

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/dshills/sandboxctl/internal/config/registry"
)

// DefaultEnvPrefix is the prefix of environment overrides.
const DefaultEnvPrefix = "SANDBOXCTL_"

// EnvLoader reads settings overrides from environment variables. Only
// registered settings are recognized: "process.maxConcurrentProcesses" is
// read from SANDBOXCTL_PROCESS_MAX_CONCURRENT_PROCESSES.
type EnvLoader struct {
	prefix   string
	registry *registry.Registry
	mapping  map[string]*registry.Setting
	lookup   func(string) (string, bool)
}

// NewEnvLoader creates a loader for every setting in reg.
func NewEnvLoader(prefix string, reg *registry.Registry) *EnvLoader {
	l := &EnvLoader{
		prefix:   prefix,
		registry: reg,
		mapping:  make(map[string]*registry.Setting),
		lookup:   os.LookupEnv,
	}
	for _, s := range reg.All() {
		l.mapping[PathToEnv(prefix, s.Path)] = s
	}
	return l
}

// Variables returns the recognized variable names mapped to store paths.
func (l *EnvLoader) Variables() map[string]string {
	out := make(map[string]string, len(l.mapping))
	for env, s := range l.mapping {
		out[env] = s.Path
	}
	return out
}

// Load reads every recognized variable that is set and returns the values
// as a nested map. Values that cannot be parsed for their setting's type
// are reported together and left out.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)
	var errs []error

	for env, s := range l.mapping {
		raw, ok := l.lookup(env)
		if !ok {
			continue
		}
		val, err := parseValue(s, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", env, err))
			continue
		}
		setByPath(config, s.Path, val)
	}
	return config, errors.Join(errs...)
}

// PathToEnv converts a store path to its environment variable name.
// "resources.defaultMaxCpuPercent" becomes RESOURCES_DEFAULT_MAX_CPU_PERCENT.
func PathToEnv(prefix, path string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i, seg := range strings.Split(path, ".") {
		if i > 0 {
			b.WriteByte('_')
		}
		for j, r := range seg {
			if j > 0 && unicode.IsUpper(r) && !unicode.IsUpper(rune(seg[j-1])) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func parseValue(s *registry.Setting, raw string) (any, error) {
	switch s.Type {
	case registry.TypeBool:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case registry.TypeInt:
		return strconv.Atoi(strings.TrimSpace(raw))
	case registry.TypeStringList:
		return parseList(raw)
	default:
		return raw, nil
	}
}

// parseList accepts a JSON array or a comma-separated list.
func parseList(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []string{}, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		if !gjson.Valid(trimmed) {
			return nil, errors.New("invalid JSON array")
		}
		var out []string
		var bad bool
		gjson.Parse(trimmed).ForEach(func(_, v gjson.Result) bool {
			if v.Type != gjson.String {
				bad = true
				return false
			}
			out = append(out, v.String())
			return true
		})
		if bad {
			return nil, errors.New("array items must be strings")
		}
		if out == nil {
			out = []string{}
		}
		return out, nil
	}

	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
