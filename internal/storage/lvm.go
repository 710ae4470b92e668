package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LVM JSON reports, as produced by pvs/vgs/lvs --reportformat json.

type pvReport struct {
	Report []struct {
		PV []reportPV `json:"pv"`
	} `json:"report"`
}

type reportPV struct {
	Name   string `json:"pv_name"`
	VGName string `json:"vg_name"`
	Size   string `json:"pv_size"`
	Free   string `json:"pv_free"`
}

type vgReport struct {
	Report []struct {
		VG []reportVG `json:"vg"`
	} `json:"report"`
}

type reportVG struct {
	Name    string `json:"vg_name"`
	UUID    string `json:"vg_uuid"`
	Size    string `json:"vg_size"`
	Free    string `json:"vg_free"`
	PVCount string `json:"pv_count"`
	LVCount string `json:"lv_count"`
}

type lvReport struct {
	Report []struct {
		LV []reportLV `json:"lv"`
	} `json:"report"`
}

type reportLV struct {
	VGName string `json:"vg_name"`
	Name   string `json:"lv_name"`
	Attr   string `json:"lv_attr"`
}

func parseBytes(s string) uint64 {
	n, _ := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return n
}

func (m *Manager) physicalVolumes(ctx context.Context, args ...string) ([]reportPV, error) {
	base := []string{"--reportformat", "json", "--units", "b", "--nosuffix", "-o", "pv_name,vg_name,pv_size,pv_free"}
	out, err := m.run(ctx, "list physical volumes", "pvs", append(base, args...)...)
	if err != nil {
		return nil, err
	}

	var report pvReport
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, errors.Wrap(err, "failed to parse pvs report")
	}
	var pvs []reportPV
	for _, r := range report.Report {
		pvs = append(pvs, r.PV...)
	}
	return pvs, nil
}

// IsPhysicalVolume reports whether device is initialized as an LVM physical
// volume. A failing query is treated as "not a physical volume".
func (m *Manager) IsPhysicalVolume(ctx context.Context, device string) (bool, error) {
	pvs, err := m.physicalVolumes(ctx, device)
	if err != nil {
		if IsOperationError(err) {
			return false, nil
		}
		return false, err
	}
	return len(pvs) > 0, nil
}

// ListPhysicalVolumes returns every physical volume on the host.
func (m *Manager) ListPhysicalVolumes(ctx context.Context) ([]PhysicalVolume, error) {
	pvs, err := m.physicalVolumes(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]PhysicalVolume, 0, len(pvs))
	for _, pv := range pvs {
		result = append(result, PhysicalVolume{
			Device:      pv.Name,
			VolumeGroup: pv.VGName,
			Size:        parseBytes(pv.Size),
			Free:        parseBytes(pv.Free),
		})
	}
	return result, nil
}

// VolumeGroupForDevice returns the volume group the physical volume belongs
// to, or an empty string when it has none.
func (m *Manager) VolumeGroupForDevice(ctx context.Context, device string) (string, error) {
	pvs, err := m.physicalVolumes(ctx, device)
	if err != nil {
		return "", err
	}
	if len(pvs) == 0 {
		return "", nil
	}
	return pvs[0].VGName, nil
}

// CreatePhysicalVolume initializes device as an LVM physical volume.
func (m *Manager) CreatePhysicalVolume(ctx context.Context, device string) error {
	_, err := m.run(ctx, "create physical volume", "pvcreate", device)
	return err
}

// RemovePhysicalVolume strips the physical volume label from device.
func (m *Manager) RemovePhysicalVolume(ctx context.Context, device string) error {
	_, err := m.run(ctx, "remove physical volume", "pvremove", "-ff", "-y", device)
	return err
}

// DeactivateVolumeGroup deactivates the volume group that owns device, if any.
func (m *Manager) DeactivateVolumeGroup(ctx context.Context, device string) error {
	vg, err := m.VolumeGroupForDevice(ctx, device)
	if err != nil {
		return err
	}
	if vg == "" {
		return nil
	}
	_, err = m.run(ctx, "deactivate volume group", "vgchange", "-an", vg)
	return err
}

// CreateVolumeGroup creates volume group vg with device as its only member.
func (m *Manager) CreateVolumeGroup(ctx context.Context, vg, device string) error {
	_, err := m.run(ctx, "create volume group", "vgcreate", vg, device)
	return err
}

// VolumeGroupExists reports whether volume group vg exists. A failing query
// is treated as "does not exist".
func (m *Manager) VolumeGroupExists(ctx context.Context, vg string) (bool, error) {
	if _, err := m.run(ctx, "query volume group", "vgs", "--reportformat", "json", "-o", "vg_name", vg); err != nil {
		if IsOperationError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetVolumeGroup returns details for volume group vg.
func (m *Manager) GetVolumeGroup(ctx context.Context, vg string) (*VolumeGroup, error) {
	out, err := m.run(ctx, "query volume group", "vgs", "--reportformat", "json", "--units", "b", "--nosuffix",
		"-o", "vg_name,vg_uuid,vg_size,vg_free,pv_count,lv_count", vg)
	if err != nil {
		return nil, err
	}

	var report vgReport
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, errors.Wrap(err, "failed to parse vgs report")
	}
	for _, r := range report.Report {
		for _, v := range r.VG {
			if v.Name != vg {
				continue
			}
			pvCount, _ := strconv.Atoi(v.PVCount)
			lvCount, _ := strconv.Atoi(v.LVCount)
			return &VolumeGroup{
				Name:    v.Name,
				UUID:    v.UUID,
				Size:    parseBytes(v.Size),
				Free:    parseBytes(v.Free),
				PVCount: pvCount,
				LVCount: lvCount,
			}, nil
		}
	}
	return nil, errors.Errorf("volume group %s not found", vg)
}

// RemoveVolumeGroup forcibly removes volume group vg and its logical volumes.
func (m *Manager) RemoveVolumeGroup(ctx context.Context, vg string) error {
	_, err := m.run(ctx, "remove volume group", "vgremove", "--force", vg)
	return err
}

// ExtendVolumeGroup adds the physical volume device to volume group vg.
func (m *Manager) ExtendVolumeGroup(ctx context.Context, vg, device string) error {
	_, err := m.run(ctx, "extend volume group", "vgextend", vg, device)
	return err
}

// ReduceVolumeGroupMissing removes missing physical volumes from vg. Without
// force LVM refuses when logical volumes are allocated on a missing volume;
// with force those logical volumes are removed too.
func (m *Manager) ReduceVolumeGroupMissing(ctx context.Context, vg string, force bool) error {
	args := []string{"--removemissing"}
	if force {
		args = append(args, "--force")
	}
	_, err := m.run(ctx, "reduce volume group", "vgreduce", append(args, vg)...)
	return err
}

// ListThinPools returns the thin pools in vg as "vg/lv" paths.
func (m *Manager) ListThinPools(ctx context.Context, vg string) ([]string, error) {
	out, err := m.run(ctx, "list logical volumes", "lvs", "--reportformat", "json", "-o", "vg_name,lv_name,lv_attr", vg)
	if err != nil {
		return nil, err
	}

	var report lvReport
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, errors.Wrap(err, "failed to parse lvs report")
	}

	pools := []string{}
	for _, r := range report.Report {
		for _, lv := range r.LV {
			// lv_attr volume type 't' is a thin pool.
			if strings.HasPrefix(lv.Attr, "t") && lv.VGName == vg {
				pools = append(pools, lv.VGName+"/"+lv.Name)
			}
		}
	}
	return pools, nil
}

// ExtendLogicalVolume extends logical volume lv ("vg/lv") onto device.
func (m *Manager) ExtendLogicalVolume(ctx context.Context, lv, device string) error {
	_, err := m.run(ctx, "extend logical volume", "lvextend", lv, device)
	return err
}

// Scan collects pvscan and vgscan output. Failures are recorded in the
// report, not returned.
func (m *Manager) Scan(ctx context.Context) ScanReport {
	var report ScanReport

	out, err := m.run(ctx, "scan physical volumes", "pvscan")
	report.PVScan, report.PVScanErr = string(out), err

	out, err = m.run(ctx, "scan volume groups", "vgscan")
	report.VGScan, report.VGScanErr = string(out), err

	return report
}
