package reconcile

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/cinder-lvm/internal/storage"
)

// fakeHost is an in-memory model of a host's block devices and LVM state.
// It implements Storage and records every mutating call.
type fakeHost struct {
	mu sync.Mutex

	blockDevices   map[string]bool                        // existing block devices
	mountedDevices map[string]bool                        // devices lsblk reports as mounted
	mounts         []storage.Mount                        // mount table
	partitions     map[string]storage.PartitionTableProbe // probe results; blank when absent
	pvs            map[string]string                      // PV device -> volume group ("" for none)
	vgs            map[string]bool                        // existing volume groups
	thinPools      map[string][]string                    // volume group -> thin pools
	loops          map[string]string                      // backing file -> loop device

	// Failure injection
	zapErr    error
	reduceErr error
	extendErr map[string]error // device -> vgextend error

	// Call tracking
	calls []string
	scans int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		blockDevices:   make(map[string]bool),
		mountedDevices: make(map[string]bool),
		partitions:     make(map[string]storage.PartitionTableProbe),
		pvs:            make(map[string]string),
		vgs:            make(map[string]bool),
		thinPools:      make(map[string][]string),
		loops:          make(map[string]string),
		extendErr:      make(map[string]error),
	}
}

// addDisk adds a blank block device.
func (f *fakeHost) addDisk(devices ...string) *fakeHost {
	for _, d := range devices {
		f.blockDevices[d] = true
	}
	return f
}

// addMember adds a block device that is already a PV in vg.
func (f *fakeHost) addMember(vg string, devices ...string) *fakeHost {
	f.vgs[vg] = true
	for _, d := range devices {
		f.blockDevices[d] = true
		f.pvs[d] = vg
	}
	return f
}

func (f *fakeHost) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// callsWithPrefix returns the recorded calls starting with prefix.
func (f *fakeHost) callsWithPrefix(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			matched = append(matched, c)
		}
	}
	return matched
}

// destructiveCalls returns calls that change device or LVM state.
func (f *fakeHost) destructiveCalls() []string {
	var out []string
	for _, prefix := range []string{"zap", "pvcreate", "pvremove", "vgcreate", "vgremove", "vgextend", "lvextend", "unmount"} {
		out = append(out, f.callsWithPrefix(prefix)...)
	}
	sort.Strings(out)
	return out
}

func (f *fakeHost) Mounts(ctx context.Context) ([]storage.Mount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storage.Mount(nil), f.mounts...), nil
}

func (f *fakeHost) Unmount(ctx context.Context, mountPoint string, persist bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("unmount %s persist=%t", mountPoint, persist)
	kept := f.mounts[:0]
	for _, m := range f.mounts {
		if m.MountPoint != mountPoint {
			kept = append(kept, m)
		}
	}
	f.mounts = kept
	return nil
}

func (f *fakeHost) IsDeviceMounted(ctx context.Context, device string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mountedDevices[device], nil
}

func (f *fakeHost) IsBlockDevice(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockDevices[path], nil
}

func (f *fakeHost) EnsureLoopbackDevice(ctx context.Context, path string, size uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ensure-loop %s %d", path, size)
	if dev, ok := f.loops[path]; ok {
		return dev, nil
	}
	dev := fmt.Sprintf("/dev/loop%d", len(f.loops))
	f.loops[path] = dev
	f.blockDevices[dev] = true
	return dev, nil
}

func (f *fakeHost) ProbePartitionTable(ctx context.Context, device string) (storage.PartitionTableProbe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if probe, ok := f.partitions[device]; ok {
		return probe, nil
	}
	return storage.PartitionTableProbe{MBRAbsent: true, GPTAbsent: true}, nil
}

func (f *fakeHost) ZapDisk(ctx context.Context, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("zap %s", device)
	if f.zapErr != nil {
		return f.zapErr
	}
	delete(f.partitions, device)
	return nil
}

func (f *fakeHost) IsPhysicalVolume(ctx context.Context, device string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pvs[device]
	return ok, nil
}

func (f *fakeHost) VolumeGroupForDevice(ctx context.Context, device string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pvs[device], nil
}

func (f *fakeHost) CreatePhysicalVolume(ctx context.Context, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("pvcreate %s", device)
	f.pvs[device] = ""
	return nil
}

func (f *fakeHost) RemovePhysicalVolume(ctx context.Context, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("pvremove %s", device)
	delete(f.pvs, device)
	return nil
}

func (f *fakeHost) DeactivateVolumeGroup(ctx context.Context, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if vg := f.pvs[device]; vg != "" {
		f.record("vgchange -an %s", vg)
	}
	return nil
}

func (f *fakeHost) CreateVolumeGroup(ctx context.Context, vg, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("vgcreate %s %s", vg, device)
	if f.vgs[vg] {
		return &storage.OperationError{Op: "create volume group", Command: "vgcreate " + vg, Err: fmt.Errorf("volume group %s already exists", vg)}
	}
	f.vgs[vg] = true
	f.pvs[device] = vg
	return nil
}

func (f *fakeHost) VolumeGroupExists(ctx context.Context, vg string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vgs[vg], nil
}

func (f *fakeHost) RemoveVolumeGroup(ctx context.Context, vg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("vgremove %s", vg)
	delete(f.vgs, vg)
	for dev, owner := range f.pvs {
		if owner == vg {
			f.pvs[dev] = ""
		}
	}
	return nil
}

func (f *fakeHost) ExtendVolumeGroup(ctx context.Context, vg, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("vgextend %s %s", vg, device)
	if err := f.extendErr[device]; err != nil {
		return err
	}
	f.pvs[device] = vg
	return nil
}

func (f *fakeHost) ReduceVolumeGroupMissing(ctx context.Context, vg string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("vgreduce %s force=%t", vg, force)
	if f.reduceErr != nil {
		return f.reduceErr
	}
	if !f.vgs[vg] {
		return &storage.OperationError{Op: "reduce volume group", Command: "vgreduce --removemissing " + vg, Err: fmt.Errorf("volume group %q not found", vg)}
	}
	return nil
}

func (f *fakeHost) ListThinPools(ctx context.Context, vg string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.thinPools[vg]...), nil
}

func (f *fakeHost) ExtendLogicalVolume(ctx context.Context, lv, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("lvextend %s %s", lv, device)
	return nil
}

func (f *fakeHost) Scan(ctx context.Context) storage.ScanReport {
	f.mu.Lock()
	f.scans++
	f.mu.Unlock()
	return storage.ScanReport{PVScan: "  No matching physical volumes found\n", VGScan: "  Found volume group\n"}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
