// Package libvirt publishes LVM volume groups to the local libvirt daemon as
// logical storage pools.
//
// A published pool lets libvirt tools see the volumes Cinder creates in the
// backend's volume group:
//
//	client, err := libvirt.ConnectWithContext(ctx, "", 0)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	pools := libvirt.NewPoolManager(client.Libvirt(), log)
//	if err := pools.EnsureLogicalPool(ctx, "cinder-fast", "cinder-volumes-fast"); err != nil {
//	    return err
//	}
//
// Pools are never built: the volume group already exists, and building a
// logical pool would run vgcreate on its source devices. Deleting a pool
// only stops and undefines it.
//
// The PoolManager accepts a consumer-side interface satisfied by
// *libvirt.Libvirt, so tests can substitute an in-memory daemon.
package libvirt
