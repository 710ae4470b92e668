package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jbweber/cinder-lvm/internal/backend"
	"github.com/jbweber/cinder-lvm/internal/config"
	"github.com/jbweber/cinder-lvm/internal/device"
	"github.com/jbweber/cinder-lvm/internal/journal"
	"github.com/jbweber/cinder-lvm/internal/libvirt"
	"github.com/jbweber/cinder-lvm/internal/reconcile"
	"github.com/jbweber/cinder-lvm/internal/storage"
)

func init() {
	addOutputFlag(reconcileCmd, "output format (table, yaml, json)")
	addOutputFlag(statusCmd, "output format (table, yaml, json)")
	addOutputFlag(driverConfigCmd, "output format (table, yaml, json, ini)")
}

// newService wires the backend service to the host. The returned cleanup
// closes the libvirt connection and journal when they were opened.
func newService(ctx context.Context, cfg *config.Options) (*backend.Service, func(), error) {
	mgr := storage.NewManager(storage.ExecRunner{}, log)
	svc := backend.NewService(mgr, reconcile.NewEngine(mgr, log), log)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.LibvirtPool != "" {
		client, err := libvirt.ConnectWithContext(ctx, libvirtSocket, 0)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect to libvirt: %w", err)
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("Failed to close libvirt connection")
			}
		})
		svc.SetPoolPublisher(libvirt.NewPoolManager(client.Libvirt(), log))
	}

	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			log.WithError(err).WithField("journal", cfg.Journal).Warn("Run journal unavailable")
		} else {
			log.WithField("journal", j.Path()).Debug("Recording reconcile runs")
			closers = append(closers, func() { _ = j.Close() })
			svc.SetRecorder(j)
		}
	}

	return svc, cleanup, nil
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Bring host storage in line with the backend configuration",
	Long: `Reconcile the backend's volume group with the configured block devices.

This will:
- Unmount the ephemeral-unmount path, if set, for this boot only
- Wipe and claim usable devices (never mounted ones)
- Create the volume group from the first device if it does not exist
- Remove missing physical volumes when remove-missing is set
- Extend the volume group, and a lone thin pool, onto the other devices
- Publish the volume group as a libvirt pool when libvirt-pool is set

Devices already in the volume group are left alone, so running it again
changes nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		svc, cleanup, err := newService(ctx, cfg)
		defer cleanup()
		if err != nil {
			return err
		}

		b, _, runErr := svc.Run(ctx, cfg)
		if b != nil {
			out, err := formatter.FormatBackend(b)
			if err != nil {
				return err
			}
			fmt.Print(out)
		}
		if runErr != nil {
			return fmt.Errorf("reconcile failed: %w", runErr)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live state of the backend",
	Long: `Show the backend's volume group, physical volumes and thin pools as the
host reports them now. Nothing on the host is changed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		mgr := storage.NewManager(storage.ExecRunner{}, log)
		svc := backend.NewService(mgr, reconcile.NewEngine(mgr, log), log)

		b, err := svc.Describe(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to query backend: %w", err)
		}

		out, err := formatter.FormatBackend(b)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var driverConfigCmd = &cobra.Command{
	Use:   "driver-config",
	Short: "Print the Cinder driver settings for the backend",
	Long: `Print the volume driver settings for the backend.

With -o ini the output is a cinder.conf section named after the backend,
ready to be merged into the block-storage service configuration. Entries
from config-flags come last and override the fixed settings.

Example:
  cinder-lvm driver-config -o ini >> /etc/cinder/cinder.conf.d/lvm.conf`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		name, err := cfg.BackendName()
		if err != nil {
			return err
		}
		opts, err := backend.DriverOptions(cfg, name)
		if err != nil {
			return err
		}

		if outputFormat == "ini" {
			data, err := backend.RenderINI(name, opts)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		}

		formatter, err := newFormatter()
		if err != nil {
			return err
		}
		out, err := formatter.FormatDriverOptions(name, opts)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var backendNameCmd = &cobra.Command{
	Use:   "backend-name",
	Short: "Print the backend and volume group names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		name, err := cfg.BackendName()
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", name, cfg.VolumeGroup())
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <spec>...",
	Short: "Show how block device specifications resolve",
	Long: `Parse block device specifications without touching the host.

Example:
  cinder-lvm resolve sdb /dev/sdc '/srv/cinder.img|20G' none`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SPEC\tPATH\tLOOPBACK SIZE")

		for _, spec := range args {
			r, err := device.Resolve(spec)
			if err != nil {
				_ = w.Flush()
				return err
			}
			switch {
			case r == nil:
				_, _ = fmt.Fprintf(w, "%s\t-\t-\n", spec)
			case r.IsLoopback():
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", spec, r.Path, humanize.IBytes(r.LoopbackSize))
			default:
				_, _ = fmt.Fprintf(w, "%s\t%s\t-\n", spec, r.Path)
			}
		}
		return w.Flush()
	},
}
