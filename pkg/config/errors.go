package config

import "errors"

var (
	ErrParsingConfig   = errors.New("config: failed to parse environment variables")
	ErrConfigNotLoaded = errors.New("config: configuration has not been loaded")
	ErrNilPointer      = errors.New("config: nil pointer provided to loader")
	ErrReadingFile     = errors.New("config: failed to read file")
	ErrDecodingYAML    = errors.New("config: failed to decode yaml")
)
