package backend

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/cinder-lvm/internal/journal"
	"github.com/jbweber/cinder-lvm/internal/reconcile"
	"github.com/jbweber/cinder-lvm/internal/storage"
)

// mockHost is a mock implementation of the Host interface for testing.
type mockHost struct {
	mounted map[string]bool
	vgs     map[string]*storage.VolumeGroup
	pvs     []storage.PhysicalVolume
	pools   map[string][]string

	isMountedErr error
	unmountErr   error
	listPVsErr   error

	// Call tracking
	unmountCalls []string
}

func newMockHost() *mockHost {
	return &mockHost{
		mounted: make(map[string]bool),
		vgs:     make(map[string]*storage.VolumeGroup),
		pools:   make(map[string][]string),
	}
}

func (m *mockHost) IsMounted(_ context.Context, path string) (bool, error) {
	if m.isMountedErr != nil {
		return false, m.isMountedErr
	}
	return m.mounted[path], nil
}

func (m *mockHost) Unmount(_ context.Context, mountPoint string, persist bool) error {
	m.unmountCalls = append(m.unmountCalls, fmt.Sprintf("%s persist=%t", mountPoint, persist))
	if m.unmountErr != nil {
		return m.unmountErr
	}
	delete(m.mounted, mountPoint)
	return nil
}

func (m *mockHost) VolumeGroupExists(_ context.Context, vg string) (bool, error) {
	_, ok := m.vgs[vg]
	return ok, nil
}

func (m *mockHost) GetVolumeGroup(_ context.Context, vg string) (*storage.VolumeGroup, error) {
	info, ok := m.vgs[vg]
	if !ok {
		return nil, fmt.Errorf("volume group %s not found", vg)
	}
	return info, nil
}

func (m *mockHost) ListPhysicalVolumes(_ context.Context) ([]storage.PhysicalVolume, error) {
	if m.listPVsErr != nil {
		return nil, m.listPVsErr
	}
	return m.pvs, nil
}

func (m *mockHost) ListThinPools(_ context.Context, vg string) ([]string, error) {
	return m.pools[vg], nil
}

// mockReconciler records reconcile calls and returns a canned result.
// When onReconcile is set it runs first, so tests can change host state.
type mockReconciler struct {
	result      *reconcile.Result
	err         error
	onReconcile func(specs []string, opts reconcile.Options)

	calls []reconcileCall
}

type reconcileCall struct {
	specs []string
	opts  reconcile.Options
}

func (m *mockReconciler) Reconcile(_ context.Context, specs []string, opts reconcile.Options) (*reconcile.Result, error) {
	m.calls = append(m.calls, reconcileCall{specs: specs, opts: opts})
	if m.onReconcile != nil {
		m.onReconcile(specs, opts)
	}
	result := m.result
	if result == nil {
		result = &reconcile.Result{RunID: "run-1", VolumeGroup: opts.VolumeGroup}
	}
	return result, m.err
}

// mockPublisher is a mock implementation of the PoolPublisher interface.
type mockPublisher struct {
	err   error
	calls []string
}

func (m *mockPublisher) EnsureLogicalPool(_ context.Context, name, vg string) error {
	m.calls = append(m.calls, name+"="+vg)
	return m.err
}

// mockRecorder is a mock implementation of the Recorder interface.
type mockRecorder struct {
	err     error
	entries []journal.Entry
}

func (m *mockRecorder) Record(_ context.Context, e journal.Entry) error {
	m.entries = append(m.entries, e)
	return m.err
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
