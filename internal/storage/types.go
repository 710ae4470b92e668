package storage

import "github.com/dustin/go-humanize"

// Mount is one entry of the host mount table.
type Mount struct {
	Source     string // Mounted device or filesystem source
	MountPoint string // Mount target path
	FSType     string // Filesystem type
}

// LoopDevice is an attached loopback device.
type LoopDevice struct {
	Name     string // Device path, e.g. /dev/loop0
	BackFile string // Backing file path
}

// PartitionTableProbe is the result of probing a device for partition tables.
type PartitionTableProbe struct {
	MBRAbsent bool // Probe reported no MBR
	GPTAbsent bool // Probe reported no GPT
}

// PhysicalVolume is an LVM physical volume as reported by pvs.
type PhysicalVolume struct {
	Device      string // Device path
	VolumeGroup string // Owning volume group, empty when unassigned
	Size        uint64 // Size in bytes
	Free        uint64 // Unallocated bytes
}

// SizeHuman returns the size in IEC notation.
func (p *PhysicalVolume) SizeHuman() string {
	return humanize.IBytes(p.Size)
}

// VolumeGroup is an LVM volume group as reported by vgs.
type VolumeGroup struct {
	Name    string // Volume group name
	UUID    string // LVM UUID
	Size    uint64 // Size in bytes
	Free    uint64 // Unallocated bytes
	PVCount int    // Number of physical volumes
	LVCount int    // Number of logical volumes
}

// SizeHuman returns the size in IEC notation.
func (v *VolumeGroup) SizeHuman() string {
	return humanize.IBytes(v.Size)
}

// FreeHuman returns the free space in IEC notation.
func (v *VolumeGroup) FreeHuman() string {
	return humanize.IBytes(v.Free)
}

// ScanReport holds pvscan and vgscan output for diagnostics.
type ScanReport struct {
	PVScan    string
	PVScanErr error
	VGScan    string
	VGScanErr error
}
