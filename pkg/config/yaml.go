package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAMLFile decodes the YAML document at path into v.
func LoadYAMLFile[T any](path string, v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(ErrReadingFile, err)
	}
	return DecodeYAML(bytes.NewReader(data), v)
}

// DecodeYAML decodes a single YAML document from r into v.
// Unknown fields are rejected and an empty document leaves v untouched.
func DecodeYAML[T any](r io.Reader, v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Join(ErrDecodingYAML, err)
	}
	return nil
}
