// Package storage provides the host storage operations used to reconcile LVM
// state: mount inspection, loopback devices, partition-table probing, disk
// wiping and the LVM physical volume, volume group and logical volume
// primitives.
//
// The package carries no policy. Every method maps to one or a few external
// commands and reports fresh host state on each call; nothing is cached.
//
// Command execution:
//
// All commands go through the Runner interface so callers and tests can swap
// the process executor. ExecRunner runs real processes with the caller's
// context. A failed command is reported as an *OperationError naming the
// operation and the command line.
//
// LVM queries use the JSON report format:
//
//	pvs --reportformat json -o pv_name,vg_name /dev/sdb
//	lvs --reportformat json -o vg_name,lv_name,lv_attr cinder-volumes-fast
//
// Example usage:
//
//	mgr := storage.NewManager(storage.ExecRunner{}, logrus.StandardLogger())
//
//	isPV, err := mgr.IsPhysicalVolume(ctx, "/dev/sdb")
//	if err != nil {
//	    return err
//	}
//	if !isPV {
//	    if err := mgr.CreatePhysicalVolume(ctx, "/dev/sdb"); err != nil {
//	        return err
//	    }
//	}
package storage
