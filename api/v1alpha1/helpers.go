package v1alpha1

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// GroupName is the API group for cinder-lvm resources.
	GroupName = "storage.cofront.xyz"

	// Version is the API version.
	Version = "v1alpha1"

	// LVMBackendKind is the kind string for LVMBackend resources.
	LVMBackendKind = "LVMBackend"
)

// NewLVMBackend creates a new LVMBackend with TypeMeta and ObjectMeta defaults.
func NewLVMBackend(name string) *LVMBackend {
	return &LVMBackend{
		TypeMeta: TypeMeta{
			APIVersion: GroupName + "/" + Version,
			Kind:       LVMBackendKind,
		},
		ObjectMeta: ObjectMeta{
			Name:              name,
			UID:               uuid.New().String(),
			CreationTimestamp: Now(),
			Generation:        1,
		},
		Spec: LVMBackendSpec{
			AllocationType: "default",
		},
		Status: LVMBackendStatus{
			Phase: PhasePending,
		},
	}
}

// SetDefaultAPIVersion ensures the backend has the correct apiVersion and kind.
func SetDefaultAPIVersion(b *LVMBackend) {
	if b.APIVersion == "" {
		b.APIVersion = GroupName + "/" + Version
	}
	if b.Kind == "" {
		b.Kind = LVMBackendKind
	}
}

// SetPhase sets the backend phase in status.
func (b *LVMBackend) SetPhase(phase BackendPhase) {
	b.Status.Phase = phase
}

// GetPhase returns the current backend phase.
func (b *LVMBackend) GetPhase() BackendPhase {
	return b.Status.Phase
}

// UpdateObservedGeneration updates status.observedGeneration to match metadata.generation.
func (b *LVMBackend) UpdateObservedGeneration() {
	b.Status.ObservedGeneration = b.Generation
}

// HasVolumeGroup reports whether the observed volume group exists.
func (b *LVMBackend) HasVolumeGroup() bool {
	return b.Status.VolumeGroup != nil
}

// DeviceList returns the configured block devices joined for display.
// Returns "none" when no devices are configured.
func (b *LVMBackend) DeviceList() string {
	if len(b.Spec.BlockDevices) == 0 {
		return "none"
	}
	return strings.Join(b.Spec.BlockDevices, " ")
}

