// Package naming provides the naming conventions for a Cinder LVM backend:
// the backend name advertised to the block-storage service and the volume
// group that backs it.
//
// Names are pure functions of (hostname, alias, unique) and are recomputed
// on every call; nothing is cached.
package naming

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// VolumeGroupPrefix is prepended to the alias to form the volume group name.
const VolumeGroupPrefix = "cinder-volumes-"

// Hostname returns the local host name. Tests replace it.
var Hostname = os.Hostname

// BackendName returns the backend name for alias.
// Format: LVM-{hostname}-{alias} when unique, otherwise LVM-{alias}
//
// Example: ("node1", "fast", true) → LVM-node1-fast
func BackendName(hostname, alias string, unique bool) string {
	if unique {
		return fmt.Sprintf("LVM-%s-%s", hostname, alias)
	}
	return fmt.Sprintf("LVM-%s", alias)
}

// VolumeGroupName returns the volume group name for alias.
// Format: cinder-volumes-{alias}
func VolumeGroupName(alias string) string {
	return VolumeGroupPrefix + alias
}

// CurrentBackendName resolves the hostname and returns BackendName for it.
// The hostname is only looked up when unique is set.
func CurrentBackendName(alias string, unique bool) (string, error) {
	if !unique {
		return BackendName("", alias, false), nil
	}
	host, err := Hostname()
	if err != nil {
		return "", errors.Wrap(err, "failed to get hostname")
	}
	return BackendName(host, alias, true), nil
}
