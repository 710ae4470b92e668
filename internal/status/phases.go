package status

import (
	"github.com/pkg/errors"

	"github.com/jbweber/cinder-lvm/api/v1alpha1"
)

// TransitionToReconciling marks the start of a reconcile run.
// A run may start from any phase except Reconciling.
func TransitionToReconciling(b *v1alpha1.LVMBackend) error {
	if b.GetPhase() == v1alpha1.PhaseReconciling {
		return errors.Errorf("cannot transition to Reconciling from phase %s", b.GetPhase())
	}

	b.SetPhase(v1alpha1.PhaseReconciling)
	SetCondition(b, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "Reconciling", "Reconcile in progress")
	return nil
}

// CompleteReconcile finishes a successful run. The phase becomes Ready, or
// Degraded when degraded is set or the volume group is absent.
func CompleteReconcile(b *v1alpha1.LVMBackend, degraded bool, message string) error {
	if b.GetPhase() != v1alpha1.PhaseReconciling {
		return errors.Errorf("cannot complete reconcile from phase %s", b.GetPhase())
	}

	b.Status.LastReconcileTime = v1alpha1.Now()
	b.UpdateObservedGeneration()

	switch {
	case !b.HasVolumeGroup():
		b.SetPhase(v1alpha1.PhaseDegraded)
		SetCondition(b, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "NoVolumeGroup", "No usable devices; volume group does not exist")
	case degraded:
		b.SetPhase(v1alpha1.PhaseDegraded)
		SetCondition(b, v1alpha1.ConditionReady, v1alpha1.ConditionTrue, "ReconciledWithWarnings", message)
	default:
		b.SetPhase(v1alpha1.PhaseReady)
		SetCondition(b, v1alpha1.ConditionReady, v1alpha1.ConditionTrue, "Reconciled", message)
	}
	return nil
}

// TransitionToFailed marks a failed run. This can happen from any phase.
func TransitionToFailed(b *v1alpha1.LVMBackend, reason, message string) {
	b.Status.LastReconcileTime = v1alpha1.Now()
	b.SetPhase(v1alpha1.PhaseFailed)
	SetCondition(b, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, reason, message)
}
