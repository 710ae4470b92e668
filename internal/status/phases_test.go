package status

import (
	"testing"

	"github.com/jbweber/cinder-lvm/api/v1alpha1"
)

func TestTransitionToReconciling(t *testing.T) {
	tests := []struct {
		name      string
		phase     v1alpha1.BackendPhase
		wantError bool
	}{
		{name: "from Pending", phase: v1alpha1.PhasePending},
		{name: "from Ready", phase: v1alpha1.PhaseReady},
		{name: "from Degraded", phase: v1alpha1.PhaseDegraded},
		{name: "from Failed", phase: v1alpha1.PhaseFailed},
		{name: "already Reconciling", phase: v1alpha1.PhaseReconciling, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := v1alpha1.NewLVMBackend("LVM-fast")
			b.SetPhase(tt.phase)

			err := TransitionToReconciling(b)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if GetCondition(b, v1alpha1.ConditionReady) != nil {
					t.Error("Conditions should not change on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if b.GetPhase() != v1alpha1.PhaseReconciling {
				t.Errorf("Expected phase Reconciling, got %s", b.GetPhase())
			}
			if !IsConditionFalse(b, v1alpha1.ConditionReady) {
				t.Error("Expected Ready condition to be False while reconciling")
			}
		})
	}
}

func TestCompleteReconcile(t *testing.T) {
	tests := []struct {
		name       string
		phase      v1alpha1.BackendPhase
		hasVG      bool
		degraded   bool
		wantPhase  v1alpha1.BackendPhase
		wantReady  v1alpha1.ConditionStatus
		wantReason string
		wantError  bool
	}{
		{
			name:       "ready",
			phase:      v1alpha1.PhaseReconciling,
			hasVG:      true,
			wantPhase:  v1alpha1.PhaseReady,
			wantReady:  v1alpha1.ConditionTrue,
			wantReason: "Reconciled",
		},
		{
			name:       "degraded by tolerated failure",
			phase:      v1alpha1.PhaseReconciling,
			hasVG:      true,
			degraded:   true,
			wantPhase:  v1alpha1.PhaseDegraded,
			wantReady:  v1alpha1.ConditionTrue,
			wantReason: "ReconciledWithWarnings",
		},
		{
			name:       "no volume group",
			phase:      v1alpha1.PhaseReconciling,
			wantPhase:  v1alpha1.PhaseDegraded,
			wantReady:  v1alpha1.ConditionFalse,
			wantReason: "NoVolumeGroup",
		},
		{
			name:      "not reconciling",
			phase:     v1alpha1.PhasePending,
			wantPhase: v1alpha1.PhasePending,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := v1alpha1.NewLVMBackend("LVM-fast")
			b.Generation = 3
			b.SetPhase(tt.phase)
			if tt.hasVG {
				b.Status.VolumeGroup = &v1alpha1.VolumeGroupStatus{Name: "cinder-volumes-fast"}
			}

			err := CompleteReconcile(b, tt.degraded, "done")
			if (err != nil) != tt.wantError {
				t.Fatalf("CompleteReconcile() error = %v, wantError %v", err, tt.wantError)
			}
			if b.GetPhase() != tt.wantPhase {
				t.Errorf("Expected phase %s, got %s", tt.wantPhase, b.GetPhase())
			}
			if tt.wantError {
				return
			}

			cond := GetCondition(b, v1alpha1.ConditionReady)
			if cond == nil {
				t.Fatal("Expected Ready condition")
			}
			if cond.Status != tt.wantReady || cond.Reason != tt.wantReason {
				t.Errorf("Ready = %s/%s, want %s/%s", cond.Status, cond.Reason, tt.wantReady, tt.wantReason)
			}
			if b.Status.ObservedGeneration != 3 {
				t.Errorf("Expected ObservedGeneration 3, got %d", b.Status.ObservedGeneration)
			}
			if b.Status.LastReconcileTime.IsZero() {
				t.Error("Expected LastReconcileTime to be set")
			}
		})
	}
}

func TestTransitionToFailed(t *testing.T) {
	for _, phase := range []v1alpha1.BackendPhase{v1alpha1.PhasePending, v1alpha1.PhaseReconciling, v1alpha1.PhaseReady} {
		t.Run(string(phase), func(t *testing.T) {
			b := v1alpha1.NewLVMBackend("LVM-fast")
			b.SetPhase(phase)

			TransitionToFailed(b, "VolumeGroupCreateFailed", "vgcreate exited 5")

			if b.GetPhase() != v1alpha1.PhaseFailed {
				t.Errorf("Expected phase Failed, got %s", b.GetPhase())
			}
			cond := GetCondition(b, v1alpha1.ConditionReady)
			if cond == nil || cond.Status != v1alpha1.ConditionFalse || cond.Reason != "VolumeGroupCreateFailed" {
				t.Errorf("Unexpected Ready condition %+v", cond)
			}
		})
	}
}
