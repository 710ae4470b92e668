package storage

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// losetupReport is the JSON produced by losetup --list --json.
type losetupReport struct {
	LoopDevices []struct {
		Name     string `json:"name"`
		BackFile string `json:"back-file"` // may end with " (deleted)"
	} `json:"loopdevices"`
}

// losetupLine matches one line of losetup -a, e.g.
// "/dev/loop0: [2049]:1835012 (/srv/cinder.img)".
var losetupLine = regexp.MustCompile(`^(/dev/loop[0-9]+):.*\((.*)\)\s*$`)

// ListLoopbackDevices returns the attached loopback devices.
func (m *Manager) ListLoopbackDevices(ctx context.Context) ([]LoopDevice, error) {
	out, err := m.runner.Run(ctx, "losetup", "--list", "--json", "--output", "NAME,BACK-FILE")
	if err == nil {
		if len(strings.TrimSpace(string(out))) == 0 {
			return []LoopDevice{}, nil
		}
		var report losetupReport
		if err := json.Unmarshal(out, &report); err != nil {
			return nil, errors.Wrap(err, "failed to parse losetup output")
		}
		devices := make([]LoopDevice, 0, len(report.LoopDevices))
		for _, d := range report.LoopDevices {
			devices = append(devices, LoopDevice{
				Name:     d.Name,
				BackFile: strings.TrimSuffix(d.BackFile, " (deleted)"),
			})
		}
		return devices, nil
	}

	// Older util-linux releases lack --json.
	out, err = m.run(ctx, "list loopback devices", "losetup", "-a")
	if err != nil {
		return nil, err
	}
	var devices []LoopDevice
	for _, line := range strings.Split(string(out), "\n") {
		match := losetupLine.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		devices = append(devices, LoopDevice{Name: match[1], BackFile: match[2]})
	}
	return devices, nil
}

// EnsureLoopbackDevice returns a loopback device backed by path with at least
// size bytes. An attached device is reused and grown when the backing file is
// smaller than size. Otherwise the backing file is created if missing and a
// free loopback device is attached.
func (m *Manager) EnsureLoopbackDevice(ctx context.Context, path string, size uint64) (string, error) {
	devices, err := m.ListLoopbackDevices(ctx)
	if err != nil {
		return "", err
	}

	for _, dev := range devices {
		if dev.BackFile != path {
			continue
		}
		grown, err := m.ensureBackingFile(ctx, path, size)
		if err != nil {
			return "", err
		}
		if grown {
			if _, err := m.run(ctx, "resize loopback device", "losetup", "--set-capacity", dev.Name); err != nil {
				return "", err
			}
		}
		return dev.Name, nil
	}

	if _, err := m.ensureBackingFile(ctx, path, size); err != nil {
		return "", err
	}

	out, err := m.run(ctx, "attach loopback device", "losetup", "--find", "--show", path)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(out))
	if name == "" {
		return "", &OperationError{
			Op:      "attach loopback device",
			Command: commandLine("losetup", []string{"--find", "--show", path}),
			Err:     errors.New("losetup returned no device"),
		}
	}

	m.log.WithFields(logrus.Fields{
		"device":    name,
		"back_file": path,
	}).Info("Attached loopback device")
	return name, nil
}

// ensureBackingFile creates path with size bytes, or grows it when smaller.
// It reports whether the file size changed.
func (m *Manager) ensureBackingFile(ctx context.Context, path string, size uint64) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return false, errors.Wrapf(err, "failed to stat %s", path)
	case uint64(info.Size()) >= size:
		return false, nil
	}

	if _, err := m.run(ctx, "size loopback backing file", "truncate", "--size", strconv.FormatUint(size, 10), path); err != nil {
		return false, err
	}
	return true, nil
}
