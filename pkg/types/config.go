package types

import (
	"errors"
	"fmt"
)

// Config holds the parameters of a single partition run.
type Config struct {
	DataDir       string  `json:"data_dir" yaml:"data_dir"`
	OutputDir     string  `json:"output_dir" yaml:"output_dir"`
	ValFraction   float64 `json:"val_perc" yaml:"val_perc"`
	Seed          int64   `json:"seed" yaml:"seed"`
	WriteValIndex bool    `json:"val_index" yaml:"val_index"`
	MappingFormat string  `json:"mapping_format" yaml:"mapping_format"`
	Manifest      bool    `json:"manifest" yaml:"manifest"`
	Progress      bool    `json:"progress" yaml:"progress"`
}

// Default configuration values.
const (
	DefaultValFraction   = 0.1
	DefaultMappingFormat = MappingFormatJSON
)

// Supported mapping artifact formats.
const (
	MappingFormatJSON = "json"
	MappingFormatYAML = "yaml"
)

// knownMappingFormats lists the formats that Validate accepts.
var knownMappingFormats = map[string]bool{
	MappingFormatJSON: true,
	MappingFormatYAML: true,
}

// Config validation errors.
var (
	ErrDataDirEmpty         = errors.New("data directory must not be empty")
	ErrOutputDirEmpty       = errors.New("output directory must not be empty")
	ErrValFractionRange     = errors.New("validation fraction must be within [0, 1]")
	ErrMappingFormatUnknown = errors.New("unknown mapping format")
)

// Validate checks that the Config is well-formed. It does not touch the
// filesystem; existence checks happen when the run starts.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	if c.OutputDir == "" {
		return ErrOutputDirEmpty
	}
	// NaN fails both comparisons, so test the accepted range directly.
	if !(c.ValFraction >= 0 && c.ValFraction <= 1) {
		return fmt.Errorf("%w: got %v", ErrValFractionRange, c.ValFraction)
	}
	if !knownMappingFormats[c.MappingFormatOrDefault()] {
		return fmt.Errorf("%w: %q", ErrMappingFormatUnknown, c.MappingFormat)
	}
	return nil
}

// MappingFormatOrDefault returns the mapping format, falling back to
// DefaultMappingFormat when unset.
func (c Config) MappingFormatOrDefault() string {
	if c.MappingFormat == "" {
		return DefaultMappingFormat
	}
	return c.MappingFormat
}
