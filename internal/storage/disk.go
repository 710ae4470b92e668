package storage

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// gptBackupSectors is the number of trailing 512-byte sectors wiped to destroy
// the backup GPT header.
const gptBackupSectors = 100

// IsBlockDevice reports whether path exists and is a block device.
func (m *Manager) IsBlockDevice(ctx context.Context, path string) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOTDIR) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to stat %s", path)
	}
	return st.Mode&unix.S_IFMT == unix.S_IFBLK, nil
}

// ProbePartitionTable runs gdisk in list mode and reports which partition
// table formats it found absent.
func (m *Manager) ProbePartitionTable(ctx context.Context, device string) (PartitionTableProbe, error) {
	out, err := m.runner.CombinedOutput(ctx, "gdisk", "-l", device)
	if err != nil {
		return PartitionTableProbe{}, &OperationError{
			Op:      "probe partition table",
			Command: commandLine("gdisk", []string{"-l", device}),
			Err:     errors.Wrap(err, strings.TrimSpace(string(out))),
		}
	}

	text := string(out)
	return PartitionTableProbe{
		MBRAbsent: strings.Contains(text, "MBR: not present"),
		GPTAbsent: strings.Contains(text, "GPT: not present"),
	}, nil
}

// ZapDisk destroys partition tables and signatures on device. Signature and
// partition-table removal via wipefs and sgdisk is best effort; zeroing the
// first MiB and the backup GPT area must succeed.
func (m *Manager) ZapDisk(ctx context.Context, device string) error {
	m.log.WithField("device", device).Warn("Zapping disk")

	m.runTolerated(ctx, "wipefs", "--all", "--force", device)
	m.runTolerated(ctx, "sgdisk", "--zap-all", "--", device)
	m.runTolerated(ctx, "sgdisk", "--clear", "--mbrtogpt", "--", device)

	out, err := m.run(ctx, "read device size", "blockdev", "--getsz", device)
	if err != nil {
		return err
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return &OperationError{Op: "read device size", Command: "blockdev --getsz " + device, Err: errors.New("empty output")}
	}
	sectors, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return &OperationError{Op: "read device size", Command: "blockdev --getsz " + device, Err: err}
	}

	if _, err := m.run(ctx, "zero disk header", "dd", "if=/dev/zero", "of="+device, "bs=1M", "count=1"); err != nil {
		return err
	}

	if sectors > gptBackupSectors {
		seek := strconv.FormatUint(sectors-gptBackupSectors, 10)
		if _, err := m.run(ctx, "zero backup partition table", "dd", "if=/dev/zero", "of="+device, "bs=512",
			"count="+strconv.Itoa(gptBackupSectors), "seek="+seek); err != nil {
			return err
		}
	}

	return nil
}
