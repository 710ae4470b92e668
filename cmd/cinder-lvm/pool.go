package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/cinder-lvm/internal/libvirt"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage the libvirt pool for the backend volume group",
	Long: `Manage the libvirt logical pool that exposes the backend's volume group.

The pool name defaults to libvirt-pool from the options file. Deleting the
pool never touches the volume group or its logical volumes.`,
}

func init() {
	addOutputFlag(poolInfoCmd, "output format (table, yaml, json)")

	poolCmd.AddCommand(poolInfoCmd)
	poolCmd.AddCommand(poolPublishCmd)
	poolCmd.AddCommand(poolDeleteCmd)
}

// withPoolManager connects to libvirt for the duration of fn.
func withPoolManager(cmd *cobra.Command, fn func(*libvirt.PoolManager) error) error {
	client, err := libvirt.ConnectWithContext(cmd.Context(), libvirtSocket, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Failed to close libvirt connection")
		}
	}()

	return fn(libvirt.NewPoolManager(client.Libvirt(), log))
}

// poolName returns the pool named on the command line, or the configured one.
func poolName(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.LibvirtPool == "" {
		return "", fmt.Errorf("no pool name given and libvirt-pool is not set in %s", configPath)
	}
	return cfg.LibvirtPool, nil
}

var poolInfoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show pool state and capacity",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := poolName(args)
		if err != nil {
			return err
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		return withPoolManager(cmd, func(m *libvirt.PoolManager) error {
			info, err := m.GetPoolInfo(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("failed to get pool info: %w", err)
			}
			out, err := formatter.FormatPool(info)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		})
	},
}

var poolPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Define, start and refresh the pool over the volume group",
	Long: `Publish the backend's volume group as a libvirt logical pool.

The volume group must already exist; run reconcile first. An existing pool
with the same name must already point at the same volume group.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.LibvirtPool == "" {
			return fmt.Errorf("libvirt-pool is not set in %s", configPath)
		}

		return withPoolManager(cmd, func(m *libvirt.PoolManager) error {
			if err := m.EnsureLogicalPool(cmd.Context(), cfg.LibvirtPool, cfg.VolumeGroup()); err != nil {
				return fmt.Errorf("failed to publish pool: %w", err)
			}
			fmt.Printf("Pool %s published for volume group %s\n", cfg.LibvirtPool, cfg.VolumeGroup())
			return nil
		})
	},
}

var poolDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Stop and undefine the pool",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := poolName(args)
		if err != nil {
			return err
		}

		return withPoolManager(cmd, func(m *libvirt.PoolManager) error {
			if err := m.DeletePool(cmd.Context(), name); err != nil {
				return fmt.Errorf("failed to delete pool: %w", err)
			}
			fmt.Printf("Pool %s deleted\n", name)
			return nil
		})
	},
}
