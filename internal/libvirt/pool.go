package libvirt

import (
	"context"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	libvirtxml "libvirt.org/go/libvirtxml"
)

// poolClient defines the libvirt storage pool operations used by PoolManager.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by an in-memory mock.
type poolClient interface {
	StoragePoolLookupByName(Name string) (libvirt.StoragePool, error)
	StoragePoolDefineXML(XML string, Flags uint32) (libvirt.StoragePool, error)
	StoragePoolCreate(Pool libvirt.StoragePool, Flags libvirt.StoragePoolCreateFlags) error
	StoragePoolSetAutostart(Pool libvirt.StoragePool, Autostart int32) error
	StoragePoolGetAutostart(Pool libvirt.StoragePool) (int32, error)
	StoragePoolDestroy(Pool libvirt.StoragePool) error
	StoragePoolUndefine(Pool libvirt.StoragePool) error
	StoragePoolGetInfo(Pool libvirt.StoragePool) (rState uint8, rCapacity uint64, rAllocation uint64, rAvailable uint64, err error)
	StoragePoolGetXMLDesc(Pool libvirt.StoragePool, Flags libvirt.StorageXMLFlags) (string, error)
	StoragePoolRefresh(Pool libvirt.StoragePool, Flags uint32) error
}

// PoolInfo describes a libvirt storage pool backed by a volume group.
type PoolInfo struct {
	Name        string `json:"name" yaml:"name"`
	UUID        string `json:"uuid" yaml:"uuid"`
	Type        string `json:"type" yaml:"type"`
	VolumeGroup string `json:"volumeGroup,omitempty" yaml:"volumeGroup,omitempty"`
	Target      string `json:"target,omitempty" yaml:"target,omitempty"`
	State       string `json:"state" yaml:"state"`
	Autostart   bool   `json:"autostart" yaml:"autostart"`
	Capacity    uint64 `json:"capacity" yaml:"capacity"`
	Allocation  uint64 `json:"allocation" yaml:"allocation"`
	Available   uint64 `json:"available" yaml:"available"`
}

// PoolManager publishes volume groups as libvirt logical pools.
type PoolManager struct {
	client poolClient
	log    logrus.FieldLogger
}

// NewPoolManager creates a pool manager.
func NewPoolManager(client poolClient, log logrus.FieldLogger) *PoolManager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PoolManager{client: client, log: log}
}

// EnsureLogicalPool makes pool name an active, autostarted logical pool over
// volume group vg.
//
// A missing pool is defined and started. An existing pool must already use vg
// as its source; it is started if inactive and refreshed so libvirt sees
// logical volumes created since the last run.
func (m *PoolManager) EnsureLogicalPool(_ context.Context, name, vg string) error {
	log := m.log.WithFields(logrus.Fields{"pool": name, "volume_group": vg})

	pool, err := m.client.StoragePoolLookupByName(name)
	if err != nil {
		log.Info("Defining libvirt pool")
		return m.createLogicalPool(name, vg)
	}

	def, err := m.poolDefinition(pool)
	if err != nil {
		return err
	}
	if source := sourceName(def); def.Type != "logical" || source != vg {
		return errors.Errorf("pool %s already exists as %s pool for %q, not volume group %s", name, def.Type, source, vg)
	}

	state, _, _, _, err := m.client.StoragePoolGetInfo(pool)
	if err != nil {
		return errors.Wrapf(err, "failed to get pool %s info", name)
	}
	if libvirt.StoragePoolState(state) != libvirt.StoragePoolRunning {
		log.Info("Starting libvirt pool")
		if err := m.client.StoragePoolCreate(pool, 0); err != nil {
			return errors.Wrapf(err, "failed to start pool %s", name)
		}
	}

	autostart, err := m.client.StoragePoolGetAutostart(pool)
	if err != nil {
		return errors.Wrapf(err, "failed to get pool %s autostart", name)
	}
	if autostart == 0 {
		if err := m.client.StoragePoolSetAutostart(pool, 1); err != nil {
			return errors.Wrapf(err, "failed to set pool %s autostart", name)
		}
	}

	if err := m.client.StoragePoolRefresh(pool, 0); err != nil {
		return errors.Wrapf(err, "failed to refresh pool %s", name)
	}
	log.Debug("Libvirt pool up to date")
	return nil
}

func (m *PoolManager) createLogicalPool(name, vg string) error {
	poolXML, err := generateLogicalPoolXML(name, vg)
	if err != nil {
		return errors.Wrap(err, "failed to generate pool XML")
	}

	pool, err := m.client.StoragePoolDefineXML(poolXML, 0)
	if err != nil {
		return errors.Wrapf(err, "failed to define pool %s", name)
	}

	if err := m.client.StoragePoolCreate(pool, 0); err != nil {
		_ = m.client.StoragePoolUndefine(pool)
		return errors.Wrapf(err, "failed to start pool %s", name)
	}

	if err := m.client.StoragePoolSetAutostart(pool, 1); err != nil {
		return errors.Wrapf(err, "pool %s started but failed to set autostart", name)
	}
	return nil
}

// GetPoolInfo returns details about pool name.
func (m *PoolManager) GetPoolInfo(_ context.Context, name string) (*PoolInfo, error) {
	pool, err := m.client.StoragePoolLookupByName(name)
	if err != nil {
		return nil, errors.Wrapf(err, "pool %s not found", name)
	}

	state, capacity, allocation, available, err := m.client.StoragePoolGetInfo(pool)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get pool %s info", name)
	}

	def, err := m.poolDefinition(pool)
	if err != nil {
		return nil, err
	}

	autostart, err := m.client.StoragePoolGetAutostart(pool)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get pool %s autostart", name)
	}

	info := &PoolInfo{
		Name:        pool.Name,
		UUID:        uuid.UUID(pool.UUID).String(),
		Type:        def.Type,
		VolumeGroup: sourceName(def),
		State:       stateString(libvirt.StoragePoolState(state)),
		Autostart:   autostart != 0,
		Capacity:    capacity,
		Allocation:  allocation,
		Available:   available,
	}
	if def.Target != nil {
		info.Target = def.Target.Path
	}
	return info, nil
}

// DeletePool stops and undefines pool name. The volume group and its logical
// volumes are left untouched.
func (m *PoolManager) DeletePool(_ context.Context, name string) error {
	pool, err := m.client.StoragePoolLookupByName(name)
	if err != nil {
		return errors.Wrapf(err, "pool %s not found", name)
	}

	state, _, _, _, err := m.client.StoragePoolGetInfo(pool)
	if err != nil {
		return errors.Wrapf(err, "failed to get pool %s info", name)
	}
	if libvirt.StoragePoolState(state) == libvirt.StoragePoolRunning {
		if err := m.client.StoragePoolDestroy(pool); err != nil {
			return errors.Wrapf(err, "failed to stop pool %s", name)
		}
	}

	if err := m.client.StoragePoolUndefine(pool); err != nil {
		return errors.Wrapf(err, "failed to undefine pool %s", name)
	}
	m.log.WithField("pool", name).Info("Deleted libvirt pool")
	return nil
}

func (m *PoolManager) poolDefinition(pool libvirt.StoragePool) (*libvirtxml.StoragePool, error) {
	xmlDesc, err := m.client.StoragePoolGetXMLDesc(pool, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get pool %s XML", pool.Name)
	}

	var def libvirtxml.StoragePool
	if err := def.Unmarshal(xmlDesc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse pool %s XML", pool.Name)
	}
	return &def, nil
}

func sourceName(def *libvirtxml.StoragePool) string {
	if def.Source == nil {
		return ""
	}
	return def.Source.Name
}

func stateString(state libvirt.StoragePoolState) string {
	switch state {
	case libvirt.StoragePoolInactive:
		return "inactive"
	case libvirt.StoragePoolBuilding:
		return "building"
	case libvirt.StoragePoolRunning:
		return "running"
	case libvirt.StoragePoolDegraded:
		return "degraded"
	case libvirt.StoragePoolInaccessible:
		return "inaccessible"
	default:
		return "unknown"
	}
}

// generateLogicalPoolXML generates XML for a pool over an existing volume group.
//
// Example target: cinder-volumes-fast → /dev/cinder-volumes-fast
func generateLogicalPoolXML(name, vg string) (string, error) {
	pool := &libvirtxml.StoragePool{
		Type: "logical",
		Name: name,
		Source: &libvirtxml.StoragePoolSource{
			Name:   vg,
			Format: &libvirtxml.StoragePoolSourceFormat{Type: "lvm2"},
		},
		Target: &libvirtxml.StoragePoolTarget{
			Path: "/dev/" + vg,
		},
	}

	doc, err := pool.Marshal()
	if err != nil {
		return "", err
	}
	doc = strings.TrimPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`)
	return strings.TrimSpace(doc), nil
}
