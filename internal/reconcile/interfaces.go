package reconcile

import (
	"context"

	"github.com/jbweber/cinder-lvm/internal/storage"
)

// Storage defines the host storage operations needed for reconciliation.
//
// In production, this is satisfied by *storage.Manager.
// In tests, this is satisfied by an in-memory fake host.
type Storage interface {
	// Mounts returns the current mount table
	Mounts(ctx context.Context) ([]storage.Mount, error)

	// Unmount unmounts a mount point, optionally removing its fstab entry
	Unmount(ctx context.Context, mountPoint string, persist bool) error

	// IsDeviceMounted reports whether a device or any of its partitions is mounted
	IsDeviceMounted(ctx context.Context, device string) (bool, error)

	// IsBlockDevice reports whether a path is an existing block device
	IsBlockDevice(ctx context.Context, path string) (bool, error)

	// EnsureLoopbackDevice attaches (or reuses) a loopback device for a backing file
	EnsureLoopbackDevice(ctx context.Context, path string, size uint64) (string, error)

	// ProbePartitionTable reports which partition table formats are absent
	ProbePartitionTable(ctx context.Context, device string) (storage.PartitionTableProbe, error)

	// ZapDisk destroys partition tables and signatures
	ZapDisk(ctx context.Context, device string) error

	// IsPhysicalVolume reports whether a device carries an LVM PV label
	IsPhysicalVolume(ctx context.Context, device string) (bool, error)

	// VolumeGroupForDevice returns the volume group a PV belongs to
	VolumeGroupForDevice(ctx context.Context, device string) (string, error)

	// CreatePhysicalVolume initializes a device as a PV
	CreatePhysicalVolume(ctx context.Context, device string) error

	// RemovePhysicalVolume strips the PV label from a device
	RemovePhysicalVolume(ctx context.Context, device string) error

	// DeactivateVolumeGroup deactivates the volume group owning a device
	DeactivateVolumeGroup(ctx context.Context, device string) error

	// CreateVolumeGroup creates a volume group with a single PV
	CreateVolumeGroup(ctx context.Context, vg, device string) error

	// VolumeGroupExists reports whether a volume group exists
	VolumeGroupExists(ctx context.Context, vg string) (bool, error)

	// RemoveVolumeGroup forcibly removes a volume group
	RemoveVolumeGroup(ctx context.Context, vg string) error

	// ExtendVolumeGroup adds a PV to a volume group
	ExtendVolumeGroup(ctx context.Context, vg, device string) error

	// ReduceVolumeGroupMissing drops missing PVs from a volume group
	ReduceVolumeGroupMissing(ctx context.Context, vg string, force bool) error

	// ListThinPools lists thin pools in a volume group as "vg/lv"
	ListThinPools(ctx context.Context, vg string) ([]string, error)

	// ExtendLogicalVolume extends a logical volume onto a device
	ExtendLogicalVolume(ctx context.Context, lv, device string) error

	// Scan collects pvscan/vgscan diagnostics
	Scan(ctx context.Context) storage.ScanReport
}
