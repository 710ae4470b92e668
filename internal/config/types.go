package config

import (
	"fmt"
	"strings"

	"github.com/jbweber/cinder-lvm/internal/device"
	"github.com/jbweber/cinder-lvm/internal/naming"
)

// Allocation types accepted by the Cinder LVM driver (lvm_type).
const (
	AllocationDefault = "default"
	AllocationThin    = "thin"
	AllocationAuto    = "auto"
)

// Defaults for optional settings.
const (
	DefaultAllocationType = AllocationDefault
	DefaultEraseSize      = "0"
)

// Options represents the backend configuration.
// Keys mirror the operator-facing option names.
type Options struct {
	Alias              string `mapstructure:"alias" yaml:"alias"`
	UniqueBackend      bool   `mapstructure:"unique-backend" yaml:"unique-backend"`
	BlockDevice        string `mapstructure:"block-device" yaml:"block-device"`
	Overwrite          bool   `mapstructure:"overwrite" yaml:"overwrite"`
	RemoveMissing      bool   `mapstructure:"remove-missing" yaml:"remove-missing"`
	RemoveMissingForce bool   `mapstructure:"remove-missing-force" yaml:"remove-missing-force"`
	EphemeralUnmount   string `mapstructure:"ephemeral-unmount" yaml:"ephemeral-unmount,omitempty"`
	AllocationType     string `mapstructure:"allocation-type" yaml:"allocation-type"`
	EraseSize          string `mapstructure:"erase-size" yaml:"erase-size"`
	ConfigFlags        string `mapstructure:"config-flags" yaml:"config-flags,omitempty"`

	// LibvirtPool publishes the volume group as a libvirt storage pool when set.
	LibvirtPool string `mapstructure:"libvirt-pool" yaml:"libvirt-pool,omitempty"`
	// Journal is the path of the SQLite run journal. Empty disables it.
	Journal string `mapstructure:"journal" yaml:"journal,omitempty"`
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Key, e.Reason)
}

// Normalize trims user input and fills defaults for empty optional values.
func (o *Options) Normalize() {
	o.Alias = strings.TrimSpace(o.Alias)
	o.BlockDevice = strings.TrimSpace(o.BlockDevice)
	o.EphemeralUnmount = strings.TrimSpace(o.EphemeralUnmount)
	o.AllocationType = strings.ToLower(strings.TrimSpace(o.AllocationType))
	o.EraseSize = strings.TrimSpace(o.EraseSize)

	if o.AllocationType == "" {
		o.AllocationType = DefaultAllocationType
	}
	if o.EraseSize == "" {
		o.EraseSize = DefaultEraseSize
	}
}

// Validate checks the configuration for errors.
// Device specifications are parsed but no host state is inspected.
func (o *Options) Validate() error {
	if o.Alias == "" {
		return &ValidationError{Key: "alias", Reason: "is required"}
	}
	if strings.ContainsAny(o.Alias, " \t\n/") {
		return &ValidationError{Key: "alias", Reason: fmt.Sprintf("must not contain whitespace or '/', got %q", o.Alias)}
	}
	if o.BlockDevice == "" {
		return &ValidationError{Key: "block-device", Reason: "is required (use \"none\" for no devices)"}
	}

	for _, spec := range o.Devices() {
		if _, err := device.Resolve(spec); err != nil {
			return err
		}
	}

	switch o.AllocationType {
	case AllocationDefault, AllocationThin, AllocationAuto:
	default:
		return &ValidationError{Key: "allocation-type", Reason: fmt.Sprintf("must be one of default, thin, auto, got %q", o.AllocationType)}
	}

	if o.EraseSize != "" {
		for _, r := range o.EraseSize {
			if r < '0' || r > '9' {
				return &ValidationError{Key: "erase-size", Reason: fmt.Sprintf("must be a whole number of MiB, got %q", o.EraseSize)}
			}
		}
	}

	return nil
}

// Devices returns the device specifications listed in block-device.
func (o *Options) Devices() []string {
	return device.ParseList(o.BlockDevice)
}

// VolumeGroup returns the volume group name for the configured alias.
func (o *Options) VolumeGroup() string {
	return naming.VolumeGroupName(o.Alias)
}

// BackendName returns the backend name for the configured alias, resolving
// the hostname when unique-backend is set.
func (o *Options) BackendName() (string, error) {
	return naming.CurrentBackendName(o.Alias, o.UniqueBackend)
}
