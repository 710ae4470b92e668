// Package backend turns a backend configuration into host LVM state and the
// Cinder driver settings that describe it.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/cinder-lvm/api/v1alpha1"
	"github.com/jbweber/cinder-lvm/internal/config"
	"github.com/jbweber/cinder-lvm/internal/device"
	"github.com/jbweber/cinder-lvm/internal/journal"
	"github.com/jbweber/cinder-lvm/internal/reconcile"
	"github.com/jbweber/cinder-lvm/internal/status"
	"github.com/jbweber/cinder-lvm/internal/storage"
)

// Failure reasons recorded on the Ready condition.
const (
	ReasonInvalidConfiguration   = "InvalidConfiguration"
	ReasonStorageOperationFailed = "StorageOperationFailed"
	ReasonObserveFailed          = "ObserveFailed"
	ReasonReconcileFailed        = "ReconcileFailed"
)

// Configuration is the outcome of configuring a backend.
type Configuration struct {
	BackendName   string            `json:"backendName" yaml:"backendName"`
	VolumeGroup   string            `json:"volumeGroup" yaml:"volumeGroup"`
	DriverOptions []Option          `json:"driverOptions" yaml:"driverOptions"`
	Result        *reconcile.Result `json:"result,omitempty" yaml:"result,omitempty"`
}

// Service configures one Cinder LVM backend on the local host.
type Service struct {
	host    Host
	engine  Reconciler
	pools   PoolPublisher
	journal Recorder
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a backend service.
func NewService(host Host, engine Reconciler, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		host:   host,
		engine: engine,
		log:    log,
		now:    time.Now,
	}
}

// SetPoolPublisher enables publishing the volume group as a libvirt pool.
func (s *Service) SetPoolPublisher(p PoolPublisher) {
	s.pools = p
}

// SetRecorder enables recording runs in the journal.
func (s *Service) SetRecorder(r Recorder) {
	s.journal = r
}

// Configure reconciles host storage for cfg and returns the driver options.
//
// The driver options are computed first so a malformed config-flags value
// fails before any host change. When ephemeral-unmount names a mounted path
// it is unmounted for this boot only. Reconciliation runs even when no block
// devices are configured.
func (s *Service) Configure(ctx context.Context, cfg *config.Options) (*Configuration, error) {
	backendName, err := cfg.BackendName()
	if err != nil {
		return nil, errors.Wrap(err, "failed to determine backend name")
	}

	opts, err := DriverOptions(cfg, backendName)
	if err != nil {
		return nil, err
	}

	conf := &Configuration{
		BackendName:   backendName,
		VolumeGroup:   cfg.VolumeGroup(),
		DriverOptions: opts,
	}

	if err := s.ephemeralUnmount(ctx, cfg.EphemeralUnmount); err != nil {
		return conf, err
	}

	result, err := s.engine.Reconcile(ctx, cfg.Devices(), reconcile.Options{
		VolumeGroup:        conf.VolumeGroup,
		Overwrite:          cfg.Overwrite,
		RemoveMissing:      cfg.RemoveMissing,
		RemoveMissingForce: cfg.RemoveMissingForce,
	})
	conf.Result = result
	return conf, err
}

func (s *Service) ephemeralUnmount(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	mounted, err := s.host.IsMounted(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "failed to check mount %s", path)
	}
	if !mounted {
		s.log.WithField("path", path).Debug("Ephemeral mount not present")
		return nil
	}

	s.log.WithField("path", path).Info("Unmounting ephemeral storage")
	return s.host.Unmount(ctx, path, false)
}

// Run configures the backend and reports the outcome as an LVMBackend.
//
// The returned backend is Failed when configuration failed, Degraded when a
// tolerated step failed or no volume group exists, and Ready otherwise.
// The run is recorded in the journal when one is set; journal failures are
// logged only.
func (s *Service) Run(ctx context.Context, cfg *config.Options) (*v1alpha1.LVMBackend, *Configuration, error) {
	started := s.now()

	backendName, err := cfg.BackendName()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to determine backend name")
	}
	b := newBackend(cfg, backendName)
	if err := status.TransitionToReconciling(b); err != nil {
		return b, nil, err
	}

	conf, err := s.Configure(ctx, cfg)
	if conf != nil && conf.Result != nil {
		b.Status.LastRunID = conf.Result.RunID
	}
	if err != nil {
		status.TransitionToFailed(b, FailureReason(err), err.Error())
		s.record(ctx, b, conf, started, err)
		return b, conf, err
	}

	if err := s.observe(ctx, b); err != nil {
		status.TransitionToFailed(b, ReasonObserveFailed, err.Error())
		s.record(ctx, b, conf, started, err)
		return b, conf, err
	}

	applyResult(b, cfg, conf.Result)
	published := s.publishPool(ctx, b)

	degraded := conf.Result.Degraded() || !published
	if err := status.CompleteReconcile(b, degraded, summarize(conf.Result)); err != nil {
		return b, conf, err
	}

	s.log.WithFields(logrus.Fields{
		"backend": b.Name,
		"phase":   b.GetPhase(),
		"run_id":  b.Status.LastRunID,
	}).Info("Backend reconciled")

	s.record(ctx, b, conf, started, nil)
	return b, conf, nil
}

// Describe reports the live state of the backend without changing the host.
func (s *Service) Describe(ctx context.Context, cfg *config.Options) (*v1alpha1.LVMBackend, error) {
	backendName, err := cfg.BackendName()
	if err != nil {
		return nil, errors.Wrap(err, "failed to determine backend name")
	}
	b := newBackend(cfg, backendName)

	if err := s.observe(ctx, b); err != nil {
		return nil, err
	}

	if b.HasVolumeGroup() {
		b.SetPhase(v1alpha1.PhaseReady)
		status.MarkVolumeGroupReady(b, "VolumeGroupFound", "Volume group "+b.Spec.VolumeGroup+" exists")
	} else {
		status.MarkVolumeGroupMissing(b, "Volume group "+b.Spec.VolumeGroup+" does not exist")
	}
	return b, nil
}

// FailureReason classifies err for the Ready condition.
func FailureReason(err error) string {
	var (
		cfgErr *device.ConfigurationError
		valErr *config.ValidationError
		opErr  *storage.OperationError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr):
		return ReasonInvalidConfiguration
	case errors.As(err, &opErr):
		return ReasonStorageOperationFailed
	default:
		return ReasonReconcileFailed
	}
}

func newBackend(cfg *config.Options, backendName string) *v1alpha1.LVMBackend {
	b := v1alpha1.NewLVMBackend(backendName)
	b.Labels = map[string]string{"alias": cfg.Alias}
	b.Spec = v1alpha1.LVMBackendSpec{
		Alias:              cfg.Alias,
		UniqueBackend:      cfg.UniqueBackend,
		VolumeGroup:        cfg.VolumeGroup(),
		BlockDevices:       cfg.Devices(),
		Overwrite:          cfg.Overwrite,
		RemoveMissing:      cfg.RemoveMissing,
		RemoveMissingForce: cfg.RemoveMissingForce,
		AllocationType:     cfg.AllocationType,
		LibvirtPool:        cfg.LibvirtPool,
	}
	return b
}

// observe fills the status with the live volume group, its physical volumes
// and thin pools.
func (s *Service) observe(ctx context.Context, b *v1alpha1.LVMBackend) error {
	vgName := b.Spec.VolumeGroup
	b.Status.VolumeGroup = nil
	b.Status.PhysicalVolumes = nil
	b.Status.ThinPools = nil

	exists, err := s.host.VolumeGroupExists(ctx, vgName)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	vg, err := s.host.GetVolumeGroup(ctx, vgName)
	if err != nil {
		return err
	}
	b.Status.VolumeGroup = &v1alpha1.VolumeGroupStatus{
		Name:      vg.Name,
		UUID:      vg.UUID,
		SizeBytes: vg.Size,
		FreeBytes: vg.Free,
		PVCount:   vg.PVCount,
		LVCount:   vg.LVCount,
	}

	pvs, err := s.host.ListPhysicalVolumes(ctx)
	if err != nil {
		return err
	}
	for _, pv := range pvs {
		if pv.VolumeGroup != vgName {
			continue
		}
		b.Status.PhysicalVolumes = append(b.Status.PhysicalVolumes, v1alpha1.PhysicalVolumeStatus{
			Device:    pv.Device,
			SizeBytes: pv.Size,
			FreeBytes: pv.Free,
		})
	}

	pools, err := s.host.ListThinPools(ctx, vgName)
	if err != nil {
		return err
	}
	b.Status.ThinPools = pools

	s.log.WithFields(logrus.Fields{
		"volume_group": vg.Name,
		"size":         vg.SizeHuman(),
		"free":         vg.FreeHuman(),
		"pvs":          vg.PVCount,
	}).Debug("Observed volume group")
	return nil
}

func applyResult(b *v1alpha1.LVMBackend, cfg *config.Options, result *reconcile.Result) {
	switch {
	case !b.HasVolumeGroup():
		status.MarkVolumeGroupMissing(b, "No usable block devices")
	case result.Created:
		status.MarkVolumeGroupReady(b, "VolumeGroupCreated", "Volume group "+b.Spec.VolumeGroup+" created")
	default:
		status.MarkVolumeGroupReady(b, "VolumeGroupFound", "Volume group "+b.Spec.VolumeGroup+" exists")
	}

	if !cfg.RemoveMissing && !cfg.RemoveMissingForce {
		status.RemoveCondition(b, v1alpha1.ConditionMissingPVsPruned)
		return
	}
	switch {
	case result.PruneError != "":
		status.MarkPruneFailed(b, result.PruneError)
	case result.Pruned:
		status.MarkPruned(b, cfg.RemoveMissingForce)
	}
}

// publishPool publishes the volume group as a libvirt pool when configured.
// It returns false only when publishing was attempted and failed.
func (s *Service) publishPool(ctx context.Context, b *v1alpha1.LVMBackend) bool {
	pool := b.Spec.LibvirtPool
	if pool == "" || s.pools == nil || !b.HasVolumeGroup() {
		status.RemoveCondition(b, v1alpha1.ConditionPoolPublished)
		return true
	}

	log := s.log.WithFields(logrus.Fields{"pool": pool, "volume_group": b.Spec.VolumeGroup})
	if err := s.pools.EnsureLogicalPool(ctx, pool, b.Spec.VolumeGroup); err != nil {
		log.WithError(err).Warn("Failed to publish libvirt pool")
		status.MarkPoolFailed(b, err)
		return false
	}

	log.Info("Published libvirt pool")
	status.MarkPoolPublished(b, pool)
	return true
}

func (s *Service) record(ctx context.Context, b *v1alpha1.LVMBackend, conf *Configuration, started time.Time, runErr error) {
	if s.journal == nil {
		return
	}

	entry := journal.Entry{
		RunID:       b.Status.LastRunID,
		BackendName: b.Name,
		VolumeGroup: b.Spec.VolumeGroup,
		StartedAt:   started,
		FinishedAt:  s.now(),
		Outcome:     runOutcome(b.GetPhase()),
	}
	if conf != nil && conf.Result != nil {
		entry.Created = conf.Result.Created
		entry.Prepared = conf.Result.Prepared
		entry.Extended = conf.Result.Extended
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}

	if err := s.journal.Record(ctx, entry); err != nil {
		s.log.WithError(err).Warn("Failed to record reconcile run")
	}
}

// runOutcome maps the final phase of a run to its journal outcome.
func runOutcome(phase v1alpha1.BackendPhase) string {
	switch phase {
	case v1alpha1.PhaseReady:
		return journal.OutcomeReady
	case v1alpha1.PhaseDegraded:
		return journal.OutcomeDegraded
	default:
		return journal.OutcomeFailed
	}
}

func summarize(r *reconcile.Result) string {
	return fmt.Sprintf("created=%t prepared=%d extended=%d skipped=%d",
		r.Created, len(r.Prepared), len(r.Extended), len(r.Skipped))
}
