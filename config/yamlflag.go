package config

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// yamlFlag sets a structured option from a YAML document given as flag
// value, or from the matching key of the config file.
type yamlFlag[T any] struct {
	Ptr   **T
	value string
}

func newYamlFlag[T any](ptr **T) *yamlFlag[T] {
	return &yamlFlag[T]{Ptr: ptr}
}

func (yf *yamlFlag[T]) Set(value string) error {
	opts := new(T)
	if err := yaml.UnmarshalStrict([]byte(value), opts); err != nil {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}

	*yf.Ptr = opts
	yf.value = value
	return nil
}

func (yf *yamlFlag[T]) UnmarshalYAML(unmarshal func(any) error) error {
	opts := new(T)
	if err := unmarshal(opts); err != nil {
		return err
	}

	*yf.Ptr = opts
	return nil
}

func (yf *yamlFlag[T]) String() string {
	if yf == nil {
		return ""
	}

	return yf.value
}
