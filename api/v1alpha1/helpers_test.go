package v1alpha1

import "testing"

func TestNewLVMBackend(t *testing.T) {
	b := NewLVMBackend("LVM-fast")

	if b.APIVersion != "storage.cofront.xyz/v1alpha1" {
		t.Errorf("Expected APIVersion 'storage.cofront.xyz/v1alpha1', got %s", b.APIVersion)
	}
	if b.Kind != "LVMBackend" {
		t.Errorf("Expected Kind 'LVMBackend', got %s", b.Kind)
	}
	if b.Name != "LVM-fast" {
		t.Errorf("Expected Name 'LVM-fast', got %s", b.Name)
	}
	if b.UID == "" {
		t.Error("Expected UID to be generated")
	}
	if b.CreationTimestamp.IsZero() {
		t.Error("Expected CreationTimestamp to be set")
	}
	if b.Generation != 1 {
		t.Errorf("Expected Generation 1, got %d", b.Generation)
	}
	if b.Spec.AllocationType != "default" {
		t.Errorf("Expected AllocationType 'default', got %s", b.Spec.AllocationType)
	}
	if b.GetPhase() != PhasePending {
		t.Errorf("Expected Phase Pending, got %s", b.GetPhase())
	}

	other := NewLVMBackend("LVM-fast")
	if other.UID == b.UID {
		t.Error("Expected unique UIDs")
	}
}

func TestSetDefaultAPIVersion(t *testing.T) {
	tests := []struct {
		name string
		in   LVMBackend
		want TypeMeta
	}{
		{
			name: "empty fields filled",
			want: TypeMeta{APIVersion: "storage.cofront.xyz/v1alpha1", Kind: "LVMBackend"},
		},
		{
			name: "existing fields preserved",
			in:   LVMBackend{TypeMeta: TypeMeta{APIVersion: "storage.cofront.xyz/v1beta1", Kind: "Custom"}},
			want: TypeMeta{APIVersion: "storage.cofront.xyz/v1beta1", Kind: "Custom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.in
			SetDefaultAPIVersion(&b)
			if b.TypeMeta != tt.want {
				t.Errorf("TypeMeta = %+v, want %+v", b.TypeMeta, tt.want)
			}
		})
	}
}

func TestPhaseGettersSetters(t *testing.T) {
	b := NewLVMBackend("LVM-fast")
	b.SetPhase(PhaseDegraded)
	if b.GetPhase() != PhaseDegraded {
		t.Errorf("Expected phase Degraded, got %s", b.GetPhase())
	}
}

func TestUpdateObservedGeneration(t *testing.T) {
	b := NewLVMBackend("LVM-fast")
	b.Generation = 4
	b.UpdateObservedGeneration()
	if b.Status.ObservedGeneration != 4 {
		t.Errorf("Expected ObservedGeneration 4, got %d", b.Status.ObservedGeneration)
	}
}

func TestDeviceList(t *testing.T) {
	b := NewLVMBackend("LVM-fast")
	if got := b.DeviceList(); got != "none" {
		t.Errorf("DeviceList() = %q, want none", got)
	}

	b.Spec.BlockDevices = []string{"/dev/sdb", "/srv/img|10G"}
	if got := b.DeviceList(); got != "/dev/sdb /srv/img|10G" {
		t.Errorf("DeviceList() = %q", got)
	}
}

func TestHasVolumeGroup(t *testing.T) {
	b := NewLVMBackend("LVM-fast")
	if b.HasVolumeGroup() {
		t.Error("expected no volume group")
	}
	b.Status.VolumeGroup = &VolumeGroupStatus{Name: "cinder-volumes-fast"}
	if !b.HasVolumeGroup() {
		t.Error("expected volume group")
	}
}
