// Package config loads and validates the LVM backend configuration.
//
// Values come from, in increasing precedence: built-in defaults, a YAML
// options file, CINDER_LVM_* environment variables and bound command-line
// flags.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix, e.g. CINDER_LVM_BLOCK_DEVICE.
const EnvPrefix = "CINDER_LVM"

// keys lists every option so that environment overrides are visible to
// Unmarshal even when the options file omits them.
var keys = map[string]interface{}{
	"alias":                "",
	"unique-backend":       false,
	"block-device":         "",
	"overwrite":            false,
	"remove-missing":       false,
	"remove-missing-force": false,
	"ephemeral-unmount":    "",
	"allocation-type":      DefaultAllocationType,
	"erase-size":           DefaultEraseSize,
	"config-flags":         "",
	"libvirt-pool":         "",
	"journal":              "",
}

// NewViper returns a viper instance with defaults and environment binding set up.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range keys {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the options file at path (optional when empty) into v and
// returns the normalized, validated options.
func Load(v *viper.Viper, path string) (*Options, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	opts.Normalize()

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &opts, nil
}
