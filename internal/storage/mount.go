package storage

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Mounts returns the current host mount table.
func (m *Manager) Mounts(ctx context.Context) ([]Mount, error) {
	infos, err := m.mountTable()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mount table")
	}

	mounts := make([]Mount, 0, len(infos))
	for _, info := range infos {
		mounts = append(mounts, Mount{
			Source:     info.Source,
			MountPoint: info.Mountpoint,
			FSType:     info.FSType,
		})
	}
	return mounts, nil
}

// IsMounted reports whether path appears in the mount table, either as a
// mount point or as a mount source.
func (m *Manager) IsMounted(ctx context.Context, path string) (bool, error) {
	mounts, err := m.Mounts(ctx)
	if err != nil {
		return false, err
	}
	for _, mnt := range mounts {
		if mnt.MountPoint == path || mnt.Source == path {
			return true, nil
		}
	}
	return false, nil
}

// lsblkOutput is the JSON produced by lsblk --json.
type lsblkOutput struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name       string        `json:"name"`
	MountPoint *string       `json:"mountpoint"`
	Children   []lsblkDevice `json:"children,omitempty"`
}

func (d lsblkDevice) mounted() bool {
	if d.MountPoint != nil && *d.MountPoint != "" {
		return true
	}
	for _, child := range d.Children {
		if child.mounted() {
			return true
		}
	}
	return false
}

// IsDeviceMounted reports whether the device, or any partition or holder
// below it, is mounted. Paths lsblk cannot inspect are reported as not
// mounted.
func (m *Manager) IsDeviceMounted(ctx context.Context, device string) (bool, error) {
	out, err := m.runner.Run(ctx, "lsblk", "--json", "--paths", "--output", "NAME,MOUNTPOINT", device)
	if err != nil {
		return false, nil
	}

	var report lsblkOutput
	if err := json.Unmarshal(out, &report); err != nil {
		return false, errors.Wrapf(err, "failed to parse lsblk output for %s", device)
	}

	for _, dev := range report.BlockDevices {
		if dev.mounted() {
			return true, nil
		}
	}
	return false, nil
}

// Unmount unmounts mountPoint. When persist is set, matching entries are
// also removed from the persistent mount table so the mount does not return
// after reboot.
func (m *Manager) Unmount(ctx context.Context, mountPoint string, persist bool) error {
	if _, err := m.run(ctx, "unmount filesystem", "umount", mountPoint); err != nil {
		return err
	}

	if persist {
		if err := m.removeFstabEntry(mountPoint); err != nil {
			return &OperationError{Op: "remove fstab entry", Command: m.fstabPath, Err: err}
		}
	}
	return nil
}

// removeFstabEntry drops every fstab line whose mount point is mountPoint.
func (m *Manager) removeFstabEntry(mountPoint string) error {
	data, err := os.ReadFile(m.fstabPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	lines := strings.SplitAfter(string(data), "\n")
	kept := make([]string, 0, len(lines))
	removed := false
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 2 && !strings.HasPrefix(fields[0], "#") && fields[1] == mountPoint {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		return nil
	}

	info, err := os.Stat(m.fstabPath)
	if err != nil {
		return err
	}
	m.log.WithField("mount_point", mountPoint).Info("Removing fstab entry")
	return os.WriteFile(m.fstabPath, []byte(strings.Join(kept, "")), info.Mode().Perm())
}
