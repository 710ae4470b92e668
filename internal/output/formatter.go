// Package output formats backend status, driver configuration, run history
// and libvirt pools as tables, YAML or JSON.
package output

import (
	"github.com/pkg/errors"

	"github.com/jbweber/cinder-lvm/api/v1alpha1"
	"github.com/jbweber/cinder-lvm/internal/backend"
	"github.com/jbweber/cinder-lvm/internal/journal"
	"github.com/jbweber/cinder-lvm/internal/libvirt"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format for declarative configs.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats cinder-lvm resources for output.
type Formatter interface {
	// FormatBackend formats an LVMBackend resource.
	FormatBackend(b *v1alpha1.LVMBackend) (string, error)

	// FormatDriverOptions formats the driver options of a backend.
	FormatDriverOptions(backendName string, opts []backend.Option) (string, error)

	// FormatHistory formats journal entries.
	FormatHistory(entries []journal.Entry) (string, error)

	// FormatPool formats a libvirt pool.
	FormatPool(info *libvirt.PoolInfo) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// DriverConfig is the structured form of a backend's driver options.
type DriverConfig struct {
	BackendName string           `json:"backendName" yaml:"backendName"`
	Options     []backend.Option `json:"options" yaml:"options"`
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, errors.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	switch Format(format) {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return errors.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
