package reconcile

import (
	"context"

	"github.com/pkg/errors"
)

// PrepareVolume cleans device and initializes it as an LVM physical volume.
//
// This is destructive:
//  1. Unmount every mount of the device, removing fstab entries
//  2. If the device is a PV, deactivate its volume group and strip the label
//  3. Zap partition tables and signatures
//  4. Create a fresh PV
//
// There is no rollback. A failed step leaves the device as that step left it
// and the next run starts over.
func (e *Engine) PrepareVolume(ctx context.Context, device string) error {
	log := e.log.WithField("device", device)
	log.Info("Preparing volume")

	mounts, err := e.storage.Mounts(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list mounts")
	}
	for _, mnt := range mounts {
		if mnt.Source != device {
			continue
		}
		log.WithField("mount_point", mnt.MountPoint).Info("Found device mounted, unmounting")
		if err := e.storage.Unmount(ctx, mnt.MountPoint, true); err != nil {
			return errors.Wrapf(err, "failed to unmount %s", mnt.MountPoint)
		}
	}

	isPV, err := e.storage.IsPhysicalVolume(ctx, device)
	if err != nil {
		return errors.Wrap(err, "failed to check physical volume")
	}
	if isPV {
		log.Info("Removing existing physical volume")
		if err := e.storage.DeactivateVolumeGroup(ctx, device); err != nil {
			return errors.Wrap(err, "failed to deactivate volume group")
		}
		if err := e.storage.RemovePhysicalVolume(ctx, device); err != nil {
			return errors.Wrap(err, "failed to remove physical volume")
		}
	}

	if err := e.storage.ZapDisk(ctx, device); err != nil {
		return errors.Wrap(err, "failed to zap disk")
	}

	if err := e.storage.CreatePhysicalVolume(ctx, device); err != nil {
		return errors.Wrap(err, "failed to create physical volume")
	}

	log.WithField("was_pv", isPV).Info("Prepared volume")
	return nil
}
