package output

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/cinder-lvm/api/v1alpha1"
	"github.com/jbweber/cinder-lvm/internal/backend"
	"github.com/jbweber/cinder-lvm/internal/journal"
	"github.com/jbweber/cinder-lvm/internal/libvirt"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatBackend formats an LVMBackend as YAML.
func (f *YAMLFormatter) FormatBackend(b *v1alpha1.LVMBackend) (string, error) {
	v1alpha1.SetDefaultAPIVersion(b)
	return marshalYAML(b, "backend")
}

// FormatDriverOptions formats driver options as YAML.
func (f *YAMLFormatter) FormatDriverOptions(backendName string, opts []backend.Option) (string, error) {
	return marshalYAML(DriverConfig{BackendName: backendName, Options: opts}, "driver options")
}

// FormatHistory formats journal entries as a YAML sequence.
func (f *YAMLFormatter) FormatHistory(entries []journal.Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	return marshalYAML(entries, "history")
}

// FormatPool formats a libvirt pool as YAML.
func (f *YAMLFormatter) FormatPool(info *libvirt.PoolInfo) (string, error) {
	return marshalYAML(info, "pool")
}

func marshalYAML(v any, what string) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", errors.Wrapf(err, "failed to marshal %s to YAML", what)
	}
	return string(data), nil
}
