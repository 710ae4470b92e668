package backend

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/jbweber/cinder-lvm/internal/config"
)

// Fixed driver settings for the Cinder LVM driver.
const (
	VolumeDriver       = "cinder.volume.drivers.lvm.LVMVolumeDriver"
	VolumesDir         = "/var/lib/cinder/volumes"
	VolumeNameTemplate = "volume-%s"
	VolumeClear        = "zero"
)

// Option is one driver configuration key/value pair.
type Option struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// DriverOptions returns the driver configuration for a backend, in order.
// Entries parsed from config-flags come last so they override the fixed
// settings when applied in order.
func DriverOptions(cfg *config.Options, backendName string) ([]Option, error) {
	flags, err := ParseConfigFlags(cfg.ConfigFlags)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		{Key: "volume_driver", Value: VolumeDriver},
		{Key: "volumes_dir", Value: VolumesDir},
		{Key: "volume_name_template", Value: VolumeNameTemplate},
		{Key: "volume_group", Value: cfg.VolumeGroup()},
		{Key: "volume_backend_name", Value: backendName},
		{Key: "lvm_type", Value: cfg.AllocationType},
		{Key: "volume_clear", Value: VolumeClear},
		{Key: "volume_clear_size", Value: cfg.EraseSize},
	}
	return append(opts, flags...), nil
}

// ParseConfigFlags splits a comma-separated list of key=value pairs.
// Each pair is split on its first '='. Empty segments are skipped.
func ParseConfigFlags(flags string) ([]Option, error) {
	var opts []Option
	for _, segment := range strings.Split(flags, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		kv := strings.SplitN(segment, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, &config.ValidationError{
				Key:    "config-flags",
				Reason: fmt.Sprintf("expected key=value, got %q", segment),
			}
		}
		opts = append(opts, Option{Key: strings.TrimSpace(kv[0]), Value: strings.TrimSpace(kv[1])})
	}
	return opts, nil
}

// Effective collapses duplicate keys, keeping the position of the first
// occurrence and the value of the last.
func Effective(opts []Option) []Option {
	index := make(map[string]int, len(opts))
	var out []Option
	for _, o := range opts {
		if i, ok := index[o.Key]; ok {
			out[i].Value = o.Value
			continue
		}
		index[o.Key] = len(out)
		out = append(out, o)
	}
	return out
}

// RenderINI renders options as a cinder.conf backend section.
func RenderINI(section string, opts []Option) ([]byte, error) {
	f := ini.Empty()
	sec, err := f.NewSection(section)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create section %s", section)
	}
	for _, o := range opts {
		if _, err := sec.NewKey(o.Key, o.Value); err != nil {
			return nil, errors.Wrapf(err, "failed to set %s", o.Key)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to render driver configuration")
	}
	return buf.Bytes(), nil
}
