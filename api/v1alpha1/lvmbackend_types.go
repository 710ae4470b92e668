package v1alpha1

// LVMBackend is a Cinder LVM volume backend on one host: the desired device
// set and volume group (Spec) and what the host currently has (Status).
//
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="VG",type=string,JSONPath=`.spec.volumeGroup`
type LVMBackend struct {
	TypeMeta `json:",inline" yaml:",inline"`

	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec LVMBackendSpec `json:"spec" yaml:"spec"`

	// +optional
	Status LVMBackendStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// LVMBackendSpec echoes the effective configuration.
type LVMBackendSpec struct {
	Alias         string `json:"alias" yaml:"alias"`
	UniqueBackend bool   `json:"uniqueBackend,omitempty" yaml:"uniqueBackend,omitempty"`

	// VolumeGroup is derived from Alias: cinder-volumes-<alias>.
	VolumeGroup string `json:"volumeGroup" yaml:"volumeGroup"`

	// BlockDevices are the configured device specifications, unresolved.
	// +optional
	BlockDevices []string `json:"blockDevices,omitempty" yaml:"blockDevices,omitempty"`

	Overwrite          bool `json:"overwrite,omitempty" yaml:"overwrite,omitempty"`
	RemoveMissing      bool `json:"removeMissing,omitempty" yaml:"removeMissing,omitempty"`
	RemoveMissingForce bool `json:"removeMissingForce,omitempty" yaml:"removeMissingForce,omitempty"`

	// +kubebuilder:validation:Enum=default;thin;auto
	AllocationType string `json:"allocationType,omitempty" yaml:"allocationType,omitempty"`

	// LibvirtPool names the libvirt storage pool the volume group is published as.
	// +optional
	LibvirtPool string `json:"libvirtPool,omitempty" yaml:"libvirtPool,omitempty"`
}

// LVMBackendStatus is the observed host state.
type LVMBackendStatus struct {
	// +kubebuilder:validation:Enum=Pending;Reconciling;Ready;Degraded;Failed
	Phase BackendPhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// +optional
	// +listType=map
	// +listMapKey=type
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// +optional
	VolumeGroup *VolumeGroupStatus `json:"volumeGroup,omitempty" yaml:"volumeGroup,omitempty"`

	// PhysicalVolumes lists the PVs of the volume group.
	// +optional
	PhysicalVolumes []PhysicalVolumeStatus `json:"physicalVolumes,omitempty" yaml:"physicalVolumes,omitempty"`

	// ThinPools lists thin pools in the volume group as vg/lv.
	// +optional
	ThinPools []string `json:"thinPools,omitempty" yaml:"thinPools,omitempty"`

	// LastRunID is the ID of the last reconcile run.
	// +optional
	LastRunID string `json:"lastRunID,omitempty" yaml:"lastRunID,omitempty"`

	// +optional
	LastReconcileTime Time `json:"lastReconcileTime,omitempty" yaml:"lastReconcileTime,omitempty"`

	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`
}

// VolumeGroupStatus describes the backing volume group.
type VolumeGroupStatus struct {
	Name      string `json:"name" yaml:"name"`
	UUID      string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	SizeBytes uint64 `json:"sizeBytes" yaml:"sizeBytes"`
	FreeBytes uint64 `json:"freeBytes" yaml:"freeBytes"`
	PVCount   int    `json:"pvCount" yaml:"pvCount"`
	LVCount   int    `json:"lvCount" yaml:"lvCount"`
}

// PhysicalVolumeStatus describes one PV in the volume group.
type PhysicalVolumeStatus struct {
	Device    string `json:"device" yaml:"device"`
	SizeBytes uint64 `json:"sizeBytes" yaml:"sizeBytes"`
	FreeBytes uint64 `json:"freeBytes" yaml:"freeBytes"`
}

// BackendPhase is the lifecycle phase of an LVMBackend.
type BackendPhase string

const (
	// PhasePending means no reconcile has run yet.
	PhasePending BackendPhase = "Pending"

	// PhaseReconciling means a reconcile run is in progress.
	PhaseReconciling BackendPhase = "Reconciling"

	// PhaseReady means the last run succeeded and the volume group exists.
	PhaseReady BackendPhase = "Ready"

	// PhaseDegraded means the last run succeeded but a tolerated step failed,
	// or the run succeeded without any volume group to show for it.
	PhaseDegraded BackendPhase = "Degraded"

	// PhaseFailed means the last run returned an error.
	PhaseFailed BackendPhase = "Failed"
)

// Condition types for LVMBackend resources.
const (
	// ConditionReady indicates the backend can serve volumes.
	ConditionReady = "Ready"

	// ConditionVolumeGroupReady indicates the volume group exists.
	ConditionVolumeGroupReady = "VolumeGroupReady"

	// ConditionMissingPVsPruned reports the outcome of removing missing PVs.
	ConditionMissingPVsPruned = "MissingPVsPruned"

	// ConditionPoolPublished indicates the libvirt pool is defined and active.
	ConditionPoolPublished = "PoolPublished"
)

// DeepCopy creates a deep copy of LVMBackend.
func (in *LVMBackend) DeepCopy() *LVMBackend {
	if in == nil {
		return nil
	}
	out := new(LVMBackend)
	out.TypeMeta = in.TypeMeta
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = *in.Spec.DeepCopy()
	out.Status = *in.Status.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of LVMBackendSpec.
func (in *LVMBackendSpec) DeepCopy() *LVMBackendSpec {
	if in == nil {
		return nil
	}
	out := new(LVMBackendSpec)
	*out = *in
	if in.BlockDevices != nil {
		out.BlockDevices = make([]string, len(in.BlockDevices))
		copy(out.BlockDevices, in.BlockDevices)
	}
	return out
}

// DeepCopy creates a deep copy of LVMBackendStatus.
func (in *LVMBackendStatus) DeepCopy() *LVMBackendStatus {
	if in == nil {
		return nil
	}
	out := new(LVMBackendStatus)
	*out = *in

	if in.Conditions != nil {
		out.Conditions = make([]Condition, len(in.Conditions))
		copy(out.Conditions, in.Conditions)
	}
	if in.VolumeGroup != nil {
		vg := *in.VolumeGroup
		out.VolumeGroup = &vg
	}
	if in.PhysicalVolumes != nil {
		out.PhysicalVolumes = make([]PhysicalVolumeStatus, len(in.PhysicalVolumes))
		copy(out.PhysicalVolumes, in.PhysicalVolumes)
	}
	if in.ThinPools != nil {
		out.ThinPools = make([]string, len(in.ThinPools))
		copy(out.ThinPools, in.ThinPools)
	}
	return out
}
