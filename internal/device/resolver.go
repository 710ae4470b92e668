// Package device parses block-device specifications from configuration into
// concrete device paths and loopback sizes.
//
// A specification is one of:
//
//	/dev/sdb           existing block device
//	sdb                bare name, expanded to /dev/sdb
//	/srv/loop0|10G     file-backed loopback device of the given size
//	/srv/loop0         file-backed loopback device of DefaultLoopbackSize
//	None, none         no device
package device

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// DefaultLoopbackSize is used for loopback specifications without a size.
const DefaultLoopbackSize = "5G"

// Resolved is a device specification resolved to a path.
// LoopbackSize is zero for real block devices; otherwise Path is the backing
// file of a loopback device of that many bytes.
type Resolved struct {
	Path         string
	LoopbackSize uint64
}

// IsLoopback reports whether the device must be backed by a loopback file.
func (r Resolved) IsLoopback() bool {
	return r.LoopbackSize > 0
}

// ConfigurationError reports a malformed device specification.
type ConfigurationError struct {
	Spec   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid block device %q: %s", e.Spec, e.Reason)
}

// IsNone reports whether spec denotes "no device".
func IsNone(spec string) bool {
	switch strings.TrimSpace(spec) {
	case "", "None", "none":
		return true
	}
	return false
}

// Resolve parses a single device specification. It returns nil, nil when the
// specification denotes no device.
func Resolve(spec string) (*Resolved, error) {
	if IsNone(spec) {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(spec, "/dev/"):
		return &Resolved{Path: spec}, nil
	case strings.HasPrefix(spec, "/"):
		return resolveLoopback(spec)
	default:
		return &Resolved{Path: "/dev/" + spec}, nil
	}
}

func resolveLoopback(spec string) (*Resolved, error) {
	parts := strings.Split(spec, "|")

	path, size := spec, DefaultLoopbackSize
	switch len(parts) {
	case 1:
	case 2:
		path, size = parts[0], parts[1]
	default:
		return nil, &ConfigurationError{Spec: spec, Reason: "more than one '|' separator"}
	}

	bytes, err := ParseSize(size)
	if err != nil {
		return nil, &ConfigurationError{Spec: spec, Reason: err.Error()}
	}
	if bytes == 0 {
		return nil, &ConfigurationError{Spec: spec, Reason: "loopback size must be greater than zero"}
	}

	return &Resolved{Path: path, LoopbackSize: bytes}, nil
}

var sizePattern = regexp.MustCompile(`^([0-9]+)\s*([A-Za-z]*)$`)

// iecUnits maps the accepted size suffixes to their IEC spelling. Suffixes are
// binary multiples: 1K == 1024.
var iecUnits = map[string]string{
	"":   "B",
	"B":  "B",
	"K":  "KiB",
	"KB": "KiB",
	"M":  "MiB",
	"MB": "MiB",
	"G":  "GiB",
	"GB": "GiB",
	"T":  "TiB",
	"TB": "TiB",
	"P":  "PiB",
	"PB": "PiB",
}

// ParseSize converts a human byte count such as "100", "512M" or "5G" into
// bytes.
//
// Example: "5G" → 5368709120
func ParseSize(s string) (uint64, error) {
	m := sizePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, errors.Errorf("invalid size %q", s)
	}

	unit, ok := iecUnits[strings.ToUpper(m[2])]
	if !ok {
		return 0, errors.Errorf("invalid size unit %q", m[2])
	}

	n, err := humanize.ParseBytes(m[1] + " " + unit)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", s)
	}
	return n, nil
}

// ParseList splits the whitespace-separated block-device option into
// individual specifications. None, none and the empty string yield an empty
// list.
func ParseList(field string) []string {
	if IsNone(field) {
		return []string{}
	}
	return strings.Fields(field)
}
