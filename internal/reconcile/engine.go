// Package reconcile converges host LVM state toward a configured device list
// and volume group.
//
// Every run queries live host state; nothing about devices or volume groups
// is remembered between runs. Running twice with the same input and no
// outside changes performs no destructive operation the second time.
package reconcile

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/cinder-lvm/internal/device"
)

// Options controls a reconciliation run.
type Options struct {
	// VolumeGroup is the target volume group name.
	VolumeGroup string
	// Overwrite allows wiping devices that carry data or belong to another group.
	Overwrite bool
	// RemoveMissing drops missing PVs that have no allocated logical volumes.
	RemoveMissing bool
	// RemoveMissingForce drops missing PVs even with allocated logical volumes.
	// Takes precedence over RemoveMissing.
	RemoveMissingForce bool
}

// ThinPoolExtension records a thin pool extended onto a device.
type ThinPoolExtension struct {
	Pool   string `json:"pool" yaml:"pool"`
	Device string `json:"device" yaml:"device"`
}

// SkippedDevice records a candidate device left untouched and why.
type SkippedDevice struct {
	Device string `json:"device" yaml:"device"`
	Reason string `json:"reason" yaml:"reason"`
}

// Result summarizes what a reconciliation run changed.
type Result struct {
	RunID              string              `json:"runID" yaml:"runID"`
	VolumeGroup        string              `json:"volumeGroup" yaml:"volumeGroup"`
	VolumeGroupFound   bool                `json:"volumeGroupFound" yaml:"volumeGroupFound"`
	Created            bool                `json:"created" yaml:"created"`
	Prepared           []string            `json:"prepared,omitempty" yaml:"prepared,omitempty"`
	Extended           []string            `json:"extended,omitempty" yaml:"extended,omitempty"`
	ThinPoolExtensions []ThinPoolExtension `json:"thinPoolExtensions,omitempty" yaml:"thinPoolExtensions,omitempty"`
	Skipped            []SkippedDevice     `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Pruned             bool                `json:"pruned" yaml:"pruned"`
	PruneError         string              `json:"pruneError,omitempty" yaml:"pruneError,omitempty"`
}

// Degraded reports whether the run completed but a tolerated step failed.
func (r *Result) Degraded() bool {
	return r.PruneError != ""
}

// Skip reasons.
const (
	SkipMounted        = "mounted"
	SkipNotBlockDevice = "not a block device"
	SkipPartitioned    = "has partition table"
	SkipForeignGroup   = "physical volume in another volume group"
)

// Engine runs reconciliation against host storage.
type Engine struct {
	storage Storage
	log     logrus.FieldLogger
}

// NewEngine creates a reconciliation engine.
func NewEngine(s Storage, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{storage: s, log: log}
}

// Reconcile brings the volume group named in opts into line with specs.
//
// This runs in phases:
//  1. Resolve device specifications, skipping mounted and missing devices
//     and attaching loopback devices
//  2. Classify each device; prepare the ones that may be claimed
//  3. Create the volume group from the first prepared device if it has no
//     member yet
//  4. Prune missing physical volumes when requested
//  5. Extend the volume group, and a lone thin pool, onto the remaining
//     prepared devices
//
// Reconcile runs even when specs is empty, since pruning may still apply.
// Failures of external commands are returned; a failed prune is logged and
// recorded on the result instead.
func (e *Engine) Reconcile(ctx context.Context, specs []string, opts Options) (*Result, error) {
	result := &Result{
		RunID:       uuid.New().String(),
		VolumeGroup: opts.VolumeGroup,
	}
	log := e.log.WithFields(logrus.Fields{
		"run_id":       result.RunID,
		"volume_group": opts.VolumeGroup,
	})

	e.logLVMInfo(ctx, log, "LVM info before preparation")
	log.WithField("block_devices", strings.Join(specs, ",")).Info("Reconciling block devices")

	candidates, err := e.resolveCandidates(ctx, log, specs, result)
	if err != nil {
		return result, err
	}

	staged, err := e.classify(ctx, log, candidates, opts, result)
	if err != nil {
		return result, err
	}

	e.logLVMInfo(ctx, log, "LVM info mid preparation")

	if !result.VolumeGroupFound && len(staged) > 0 {
		if err := e.createVolumeGroup(ctx, log, opts, staged[0]); err != nil {
			return result, err
		}
		result.Created = true
		staged = staged[1:]
	}

	e.pruneMissing(ctx, log, opts, result)

	if err := e.extend(ctx, log, opts.VolumeGroup, staged, result); err != nil {
		return result, err
	}

	e.logLVMInfo(ctx, log, "LVM info after preparation")
	return result, nil
}

// resolveCandidates turns specifications into usable device paths.
func (e *Engine) resolveCandidates(ctx context.Context, log logrus.FieldLogger, specs []string, result *Result) ([]string, error) {
	var candidates []string
	for _, spec := range specs {
		resolved, err := device.Resolve(spec)
		if err != nil {
			return nil, err
		}
		if resolved == nil {
			continue
		}

		mounted, err := e.storage.IsDeviceMounted(ctx, resolved.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to check mounts for %s", resolved.Path)
		}
		if mounted {
			log.WithField("device", resolved.Path).Info("Device is mounted, skipping")
			result.Skipped = append(result.Skipped, SkippedDevice{Device: resolved.Path, Reason: SkipMounted})
			continue
		}

		if resolved.IsLoopback() {
			dev, err := e.storage.EnsureLoopbackDevice(ctx, resolved.Path, resolved.LoopbackSize)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to ensure loopback device for %s", resolved.Path)
			}
			log.WithFields(logrus.Fields{"device": dev, "back_file": resolved.Path}).Info("Using loopback device")
			candidates = append(candidates, dev)
			continue
		}

		isBlock, err := e.storage.IsBlockDevice(ctx, resolved.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to check block device %s", resolved.Path)
		}
		if !isBlock {
			log.WithField("device", resolved.Path).Warn("Not a block device, skipping")
			result.Skipped = append(result.Skipped, SkippedDevice{Device: resolved.Path, Reason: SkipNotBlockDevice})
			continue
		}
		candidates = append(candidates, resolved.Path)
	}
	return candidates, nil
}

// classify prepares every device that may be claimed and returns them in
// input order. It sets result.VolumeGroupFound when a device is already a
// member of the target group.
func (e *Engine) classify(ctx context.Context, log logrus.FieldLogger, devices []string, opts Options, result *Result) ([]string, error) {
	var staged []string
	for _, dev := range devices {
		devLog := log.WithField("device", dev)

		isPV, err := e.storage.IsPhysicalVolume(ctx, dev)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to check physical volume %s", dev)
		}

		if !isPV {
			eligible := opts.Overwrite
			if !eligible {
				probe, err := e.storage.ProbePartitionTable(ctx, dev)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to probe partition table on %s", dev)
				}
				// Either absence marker makes the device eligible.
				eligible = probe.MBRAbsent || probe.GPTAbsent
			}
			if !eligible {
				devLog.Info("Device has a partition table and overwrite is not set, skipping")
				result.Skipped = append(result.Skipped, SkippedDevice{Device: dev, Reason: SkipPartitioned})
				continue
			}
			if err := e.PrepareVolume(ctx, dev); err != nil {
				return nil, err
			}
			result.Prepared = append(result.Prepared, dev)
			staged = append(staged, dev)
			continue
		}

		vg, err := e.storage.VolumeGroupForDevice(ctx, dev)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to look up volume group for %s", dev)
		}
		if vg == opts.VolumeGroup {
			devLog.Debug("Device already in volume group")
			result.VolumeGroupFound = true
			continue
		}

		if !opts.Overwrite {
			devLog.WithField("current_volume_group", vg).Info("Device belongs to another volume group and overwrite is not set, skipping")
			result.Skipped = append(result.Skipped, SkippedDevice{Device: dev, Reason: SkipForeignGroup})
			continue
		}
		if err := e.PrepareVolume(ctx, dev); err != nil {
			return nil, err
		}
		result.Prepared = append(result.Prepared, dev)
		staged = append(staged, dev)
	}
	return staged, nil
}

// createVolumeGroup creates the target group on dev. With overwrite set, a
// stale group of the same name is removed first.
func (e *Engine) createVolumeGroup(ctx context.Context, log logrus.FieldLogger, opts Options, dev string) error {
	if opts.Overwrite {
		exists, err := e.storage.VolumeGroupExists(ctx, opts.VolumeGroup)
		if err != nil {
			return errors.Wrap(err, "failed to check volume group")
		}
		if exists {
			log.Warn("Removing existing volume group before create")
			if err := e.storage.RemoveVolumeGroup(ctx, opts.VolumeGroup); err != nil {
				return errors.Wrap(err, "failed to remove volume group")
			}
		}
	}

	log.WithField("device", dev).Info("Creating volume group")
	if err := e.storage.CreateVolumeGroup(ctx, opts.VolumeGroup, dev); err != nil {
		return errors.Wrap(err, "failed to create volume group")
	}
	return nil
}

// pruneMissing drops missing physical volumes. Failure is tolerated: the
// group may not exist yet on a fresh host.
func (e *Engine) pruneMissing(ctx context.Context, log logrus.FieldLogger, opts Options, result *Result) {
	if !opts.RemoveMissing && !opts.RemoveMissingForce {
		return
	}

	force := opts.RemoveMissingForce
	log = log.WithField("force", force)
	log.Info("Removing missing physical volumes")

	if err := e.storage.ReduceVolumeGroupMissing(ctx, opts.VolumeGroup, force); err != nil {
		log.WithError(err).Warn("Failed to remove missing physical volumes, LVM may not be fully configured yet")
		result.PruneError = err.Error()
		return
	}
	result.Pruned = true
}

// extend adds every staged device to the group and mirrors each addition onto
// a lone thin pool.
func (e *Engine) extend(ctx context.Context, log logrus.FieldLogger, vg string, staged []string, result *Result) error {
	for _, dev := range staged {
		devLog := log.WithField("device", dev)

		devLog.Info("Extending volume group")
		if err := e.storage.ExtendVolumeGroup(ctx, vg, dev); err != nil {
			return errors.Wrapf(err, "failed to extend volume group onto %s", dev)
		}
		result.Extended = append(result.Extended, dev)

		pools, err := e.storage.ListThinPools(ctx, vg)
		if err != nil {
			return errors.Wrap(err, "failed to list thin pools")
		}

		switch len(pools) {
		case 0:
			devLog.Info("No thin pools found")
		case 1:
			devLog.WithField("thin_pool", pools[0]).Info("Thin pool found, extending")
			if err := e.storage.ExtendLogicalVolume(ctx, pools[0], dev); err != nil {
				return errors.Wrapf(err, "failed to extend thin pool %s", pools[0])
			}
			result.ThinPoolExtensions = append(result.ThinPoolExtensions, ThinPoolExtension{Pool: pools[0], Device: dev})
		default:
			devLog.WithField("thin_pools", strings.Join(pools, ",")).Info("Multiple thin pools found, skipping auto extending")
		}
	}
	return nil
}

// logLVMInfo logs pvscan and vgscan output. Scan failures are only logged.
func (e *Engine) logLVMInfo(ctx context.Context, log logrus.FieldLogger, msg string) {
	report := e.storage.Scan(ctx)
	log.Info(msg)

	if report.PVScanErr != nil {
		log.WithError(report.PVScanErr).Info("pvscan did not complete successfully; may not be setup yet")
	} else {
		log.Infof("pvscan:\n%s", report.PVScan)
	}

	if report.VGScanErr != nil {
		log.WithError(report.VGScanErr).Info("vgscan did not complete successfully")
	} else {
		log.Infof("vgscan:\n%s", report.VGScan)
	}
}
