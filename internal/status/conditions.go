// Package status manages LVMBackend status fields: conditions and phase
// transitions driven by reconcile runs.
package status

import (
	"github.com/jbweber/cinder-lvm/api/v1alpha1"
)

// SetCondition adds or updates a condition in the backend status.
// LastTransitionTime only changes when the status changes.
func SetCondition(b *v1alpha1.LVMBackend, condType string, status v1alpha1.ConditionStatus, reason, message string) {
	now := v1alpha1.Now()

	for i := range b.Status.Conditions {
		existing := &b.Status.Conditions[i]
		if existing.Type != condType {
			continue
		}
		if existing.Status != status {
			existing.LastTransitionTime = now
		}
		existing.Status = status
		existing.Reason = reason
		existing.Message = message
		existing.ObservedGeneration = b.Generation
		return
	}

	b.Status.Conditions = append(b.Status.Conditions, v1alpha1.Condition{
		Type:               condType,
		Status:             status,
		ObservedGeneration: b.Generation,
		LastTransitionTime: now,
		Reason:             reason,
		Message:            message,
	})
}

// GetCondition returns a condition by type, or nil if not found.
func GetCondition(b *v1alpha1.LVMBackend, condType string) *v1alpha1.Condition {
	for i := range b.Status.Conditions {
		if b.Status.Conditions[i].Type == condType {
			return &b.Status.Conditions[i]
		}
	}
	return nil
}

// IsConditionTrue returns true if the condition exists and has status True.
func IsConditionTrue(b *v1alpha1.LVMBackend, condType string) bool {
	cond := GetCondition(b, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionTrue
}

// IsConditionFalse returns true if the condition exists and has status False.
func IsConditionFalse(b *v1alpha1.LVMBackend, condType string) bool {
	cond := GetCondition(b, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionFalse
}

// RemoveCondition removes a condition by type.
func RemoveCondition(b *v1alpha1.LVMBackend, condType string) {
	filtered := make([]v1alpha1.Condition, 0, len(b.Status.Conditions))
	for _, c := range b.Status.Conditions {
		if c.Type != condType {
			filtered = append(filtered, c)
		}
	}
	b.Status.Conditions = filtered
}

// MarkVolumeGroupReady records that the volume group exists.
func MarkVolumeGroupReady(b *v1alpha1.LVMBackend, reason, message string) {
	SetCondition(b, v1alpha1.ConditionVolumeGroupReady, v1alpha1.ConditionTrue, reason, message)
}

// MarkVolumeGroupMissing records that the volume group does not exist.
func MarkVolumeGroupMissing(b *v1alpha1.LVMBackend, message string) {
	SetCondition(b, v1alpha1.ConditionVolumeGroupReady, v1alpha1.ConditionFalse, "VolumeGroupNotFound", message)
}

// MarkPruned records a successful removal of missing physical volumes.
func MarkPruned(b *v1alpha1.LVMBackend, force bool) {
	reason := "MissingRemoved"
	if force {
		reason = "MissingForceRemoved"
	}
	SetCondition(b, v1alpha1.ConditionMissingPVsPruned, v1alpha1.ConditionTrue, reason, "Missing physical volumes removed")
}

// MarkPruneFailed records a tolerated failure to remove missing physical volumes.
func MarkPruneFailed(b *v1alpha1.LVMBackend, message string) {
	SetCondition(b, v1alpha1.ConditionMissingPVsPruned, v1alpha1.ConditionFalse, "PruneFailed", message)
}

// MarkPoolPublished records that the libvirt pool is defined and active.
func MarkPoolPublished(b *v1alpha1.LVMBackend, pool string) {
	SetCondition(b, v1alpha1.ConditionPoolPublished, v1alpha1.ConditionTrue, "PoolActive", "Published as libvirt pool "+pool)
}

// MarkPoolFailed records a failure to publish the libvirt pool.
func MarkPoolFailed(b *v1alpha1.LVMBackend, err error) {
	SetCondition(b, v1alpha1.ConditionPoolPublished, v1alpha1.ConditionFalse, "PoolPublishFailed", err.Error())
}
