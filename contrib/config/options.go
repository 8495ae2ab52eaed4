package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Option is config option.
type Option func(*options)

type options struct {
	sources []Source
}

// WithSource with config source.
func WithSource(s ...Source) Option {
	return func(o *options) {
		o.sources = s
	}
}

type Unmarshal func(data []byte, v any) error

func toUnmarshal(format string) Unmarshal {
	switch format {
	case "yaml", "yml":
		return yaml.Unmarshal
	default:
		return json.Unmarshal
	}
}

func decodeTree(kv *KeyValue) (map[string]any, error) {
	unmarshal := toUnmarshal(kv.Format)
	tree := make(map[string]any)
	if err := unmarshal(kv.Value, &tree); err != nil {
		return nil, fmt.Errorf("decode %s (%s): %w", kv.Key, kv.Format, err)
	}
	return tree, nil
}
