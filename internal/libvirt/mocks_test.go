package libvirt

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
	libvirtxml "libvirt.org/go/libvirtxml"
)

// mockPoolClient is an in-memory libvirt daemon for pool tests.
type mockPoolClient struct {
	pools map[string]*mockPool

	createErr    error
	autostartErr error

	// Call tracking
	calls []string
}

type mockPool struct {
	name      string
	uuid      libvirt.UUID
	state     libvirt.StoragePoolState
	autostart int32
	capacity  uint64
	allocated uint64
	available uint64
	xmlDesc   string
}

func newMockPoolClient() *mockPoolClient {
	return &mockPoolClient{pools: make(map[string]*mockPool)}
}

// addPool registers an existing pool defined by xmlDesc.
func (m *mockPoolClient) addPool(xmlDesc string, state libvirt.StoragePoolState, autostart int32) *mockPool {
	var def libvirtxml.StoragePool
	if err := def.Unmarshal(xmlDesc); err != nil {
		panic(err)
	}
	p := &mockPool{
		name:      def.Name,
		state:     state,
		autostart: autostart,
		capacity:  100 << 30,
		allocated: 40 << 30,
		available: 60 << 30,
		xmlDesc:   xmlDesc,
	}
	copy(p.uuid[:], []byte("0123456789abcdef"))
	m.pools[def.Name] = p
	return p
}

func (m *mockPoolClient) get(pool libvirt.StoragePool) (*mockPool, error) {
	p, ok := m.pools[pool.Name]
	if !ok {
		return nil, fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return p, nil
}

func (m *mockPoolClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	p, ok := m.pools[name]
	if !ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool not found: %s", name)
	}
	return libvirt.StoragePool{Name: p.name, UUID: p.uuid}, nil
}

func (m *mockPoolClient) StoragePoolDefineXML(xml string, _ uint32) (libvirt.StoragePool, error) {
	m.calls = append(m.calls, "define")
	var def libvirtxml.StoragePool
	if err := def.Unmarshal(xml); err != nil {
		return libvirt.StoragePool{}, fmt.Errorf("invalid pool XML: %w", err)
	}
	if _, ok := m.pools[def.Name]; ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool already exists: %s", def.Name)
	}
	p := m.addPool(xml, libvirt.StoragePoolInactive, 0)
	return libvirt.StoragePool{Name: p.name, UUID: p.uuid}, nil
}

func (m *mockPoolClient) StoragePoolCreate(pool libvirt.StoragePool, _ libvirt.StoragePoolCreateFlags) error {
	m.calls = append(m.calls, "start")
	p, err := m.get(pool)
	if err != nil {
		return err
	}
	if m.createErr != nil {
		return m.createErr
	}
	p.state = libvirt.StoragePoolRunning
	return nil
}

func (m *mockPoolClient) StoragePoolSetAutostart(pool libvirt.StoragePool, autostart int32) error {
	m.calls = append(m.calls, "autostart")
	p, err := m.get(pool)
	if err != nil {
		return err
	}
	if m.autostartErr != nil {
		return m.autostartErr
	}
	p.autostart = autostart
	return nil
}

func (m *mockPoolClient) StoragePoolGetAutostart(pool libvirt.StoragePool) (int32, error) {
	p, err := m.get(pool)
	if err != nil {
		return 0, err
	}
	return p.autostart, nil
}

func (m *mockPoolClient) StoragePoolDestroy(pool libvirt.StoragePool) error {
	m.calls = append(m.calls, "stop")
	p, err := m.get(pool)
	if err != nil {
		return err
	}
	p.state = libvirt.StoragePoolInactive
	return nil
}

func (m *mockPoolClient) StoragePoolUndefine(pool libvirt.StoragePool) error {
	m.calls = append(m.calls, "undefine")
	if _, err := m.get(pool); err != nil {
		return err
	}
	delete(m.pools, pool.Name)
	return nil
}

func (m *mockPoolClient) StoragePoolGetInfo(pool libvirt.StoragePool) (uint8, uint64, uint64, uint64, error) {
	p, err := m.get(pool)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return uint8(p.state), p.capacity, p.allocated, p.available, nil
}

func (m *mockPoolClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, _ libvirt.StorageXMLFlags) (string, error) {
	p, err := m.get(pool)
	if err != nil {
		return "", err
	}
	return p.xmlDesc, nil
}

func (m *mockPoolClient) StoragePoolRefresh(pool libvirt.StoragePool, _ uint32) error {
	m.calls = append(m.calls, "refresh")
	_, err := m.get(pool)
	return err
}
