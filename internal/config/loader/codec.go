package loader

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"
)

var errNotObject = errors.New("top-level value is not an object")

func decodeJSON(data []byte) (map[string]any, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil, errNotObject
	}
	m, _ := res.Value().(map[string]any)
	return m, nil
}

// encodeJSON writes 2-space indented JSON with a trailing newline.
func encodeJSON(data map[string]any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return pretty.PrettyOptions(raw, &pretty.Options{Width: 80, Indent: "  ", SortKeys: true}), nil
}

func decodeTOML(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("line %d, column %d: %w", row, col, err)
		}
		return nil, err
	}
	return m, nil
}

func encodeTOML(data map[string]any) ([]byte, error) {
	return toml.Marshal(data)
}

func decodeYAML(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeYAML(data map[string]any) ([]byte, error) {
	return yaml.Marshal(data)
}
