// Package schema checks the structure of configuration snapshots against
// JSON Schema documents.
//
// It only checks shape: which sections exist and what JSON type each one
// has. Setting-level rules (ranges, enums, cross-field dependencies) are the
// validation engine's job, which reports them with remediation hints.
package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed envelope.schema.json
var envelopeSchema []byte

// EnvelopeURL identifies the embedded snapshot envelope schema.
const EnvelopeURL = "https://schemas.sandboxctl.dev/export-envelope.json"

var printer = message.NewPrinter(language.English)

// Schema is a compiled JSON Schema.
type Schema struct {
	compiled *jsonschema.Schema
}

// Compile compiles a JSON Schema document registered under url.
func Compile(url string, doc []byte) (*Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parsing schema %s: %w", url, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("adding schema %s: %w", url, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", url, err)
	}
	return &Schema{compiled: compiled}, nil
}

var (
	envelope     *Schema
	envelopeOnce sync.Once
)

// Envelope returns the compiled schema for exported configuration
// snapshots. The embedded schema is fixed at build time, so a compile
// failure panics.
func Envelope() *Schema {
	envelopeOnce.Do(func() {
		s, err := Compile(EnvelopeURL, envelopeSchema)
		if err != nil {
			panic(err)
		}
		envelope = s
	})
	return envelope
}

// Validate checks an instance decoded by ParseJSON (or built from plain maps,
// slices, strings, numbers and bools). It returns nil when the instance
// conforms.
func (s *Schema) Validate(instance any) Violations {
	err := s.compiled.Validate(instance)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return Violations{{Message: err.Error()}}
	}
	var out Violations
	flatten(verr, &out)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Location < out[j].Location
	})
	return out
}

// ParseJSON decodes JSON keeping numbers exact, as the validator expects.
func ParseJSON(data []byte) (any, error) {
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// flatten keeps the leaves of the cause tree; inner nodes only say that a
// subschema failed.
func flatten(verr *jsonschema.ValidationError, out *Violations) {
	if len(verr.Causes) == 0 {
		*out = append(*out, Violation{
			Location: strings.Join(verr.InstanceLocation, "."),
			Message:  verr.ErrorKind.LocalizedString(printer),
		})
		return
	}
	for _, cause := range verr.Causes {
		flatten(cause, out)
	}
}
