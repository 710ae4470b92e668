package output

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/jbweber/cinder-lvm/api/v1alpha1"
	"github.com/jbweber/cinder-lvm/internal/backend"
	"github.com/jbweber/cinder-lvm/internal/journal"
	"github.com/jbweber/cinder-lvm/internal/libvirt"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatBackend formats an LVMBackend as JSON.
func (f *JSONFormatter) FormatBackend(b *v1alpha1.LVMBackend) (string, error) {
	v1alpha1.SetDefaultAPIVersion(b)
	return marshalJSON(b, "backend")
}

// FormatDriverOptions formats driver options as a JSON object with an
// ordered options array.
func (f *JSONFormatter) FormatDriverOptions(backendName string, opts []backend.Option) (string, error) {
	return marshalJSON(DriverConfig{BackendName: backendName, Options: opts}, "driver options")
}

// FormatHistory formats journal entries as a JSON array.
func (f *JSONFormatter) FormatHistory(entries []journal.Entry) (string, error) {
	if len(entries) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(entries, "history")
}

// FormatPool formats a libvirt pool as JSON.
func (f *JSONFormatter) FormatPool(info *libvirt.PoolInfo) (string, error) {
	return marshalJSON(info, "pool")
}

func marshalJSON(v any, what string) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "failed to marshal %s to JSON", what)
	}
	return string(data) + "\n", nil
}
