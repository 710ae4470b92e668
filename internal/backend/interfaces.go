package backend

import (
	"context"

	"github.com/jbweber/cinder-lvm/internal/journal"
	"github.com/jbweber/cinder-lvm/internal/reconcile"
	"github.com/jbweber/cinder-lvm/internal/storage"
)

// Reconciler converges host LVM state for a device list.
//
// In production, this is satisfied by *reconcile.Engine.
type Reconciler interface {
	Reconcile(ctx context.Context, specs []string, opts reconcile.Options) (*reconcile.Result, error)
}

// Host defines the host queries and mount operations the service needs
// outside of reconciliation.
//
// In production, this is satisfied by *storage.Manager.
// In tests, this is satisfied by mock implementations.
type Host interface {
	// IsMounted reports whether path is a mount point
	IsMounted(ctx context.Context, path string) (bool, error)

	// Unmount unmounts a mount point, optionally removing its fstab entry
	Unmount(ctx context.Context, mountPoint string, persist bool) error

	// VolumeGroupExists reports whether a volume group exists
	VolumeGroupExists(ctx context.Context, vg string) (bool, error)

	// GetVolumeGroup returns details for a volume group
	GetVolumeGroup(ctx context.Context, vg string) (*storage.VolumeGroup, error)

	// ListPhysicalVolumes lists every PV on the host
	ListPhysicalVolumes(ctx context.Context) ([]storage.PhysicalVolume, error)

	// ListThinPools lists thin pools in a volume group as "vg/lv"
	ListThinPools(ctx context.Context, vg string) ([]string, error)
}

// PoolPublisher publishes a volume group as a libvirt storage pool.
//
// In production, this is satisfied by *libvirt.PoolManager.
type PoolPublisher interface {
	EnsureLogicalPool(ctx context.Context, name, vg string) error
}

// Recorder persists reconcile runs.
//
// In production, this is satisfied by *journal.Journal.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}
