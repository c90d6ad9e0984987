// Package loader decodes and encodes settings documents and reads
// environment overrides.
//
// Settings files are nested maps keyed by path segment, so the document
//
//	[process]
//	maxConcurrentProcesses = 4
//
// sets "process.maxConcurrentProcesses". JSON, TOML and YAML are supported.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a settings file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for file extensions with no codec.
var ErrUnknownFormat = errors.New("unknown settings format")

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Decode parses data in the given format. Empty input decodes to an empty
// map.
func Decode(format Format, source string, data []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return make(map[string]any), nil
	}

	var (
		m   map[string]any
		err error
	)
	switch format {
	case FormatJSON:
		m, err = decodeJSON(data)
	case FormatTOML:
		m, err = decodeTOML(data)
	case FormatYAML:
		m, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, &ParseError{Path: source, Format: format, Message: err.Error(), Err: err}
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}

// Encode serializes a nested settings map in the given format.
func Encode(format Format, data map[string]any) ([]byte, error) {
	if data == nil {
		data = make(map[string]any)
	}
	switch format {
	case FormatJSON:
		return encodeJSON(data)
	case FormatTOML:
		return encodeTOML(data)
	case FormatYAML:
		return encodeYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// LoadFile reads and decodes a settings file, picking the format from its
// extension. A missing file yields an empty map and no error.
func LoadFile(path string) (map[string]any, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}
	return Decode(format, path, data)
}

// ParseError represents an error while decoding a settings document.
type ParseError struct {
	Path    string
	Format  Format
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s (%s) at line %d: %s", e.Path, e.Format, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s (%s): %s", e.Path, e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
