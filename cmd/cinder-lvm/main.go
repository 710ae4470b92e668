package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbweber/cinder-lvm/internal/config"
	"github.com/jbweber/cinder-lvm/internal/libvirt"
	"github.com/jbweber/cinder-lvm/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

// DefaultConfigPath is where the backend options file lives on a storage host.
const DefaultConfigPath = "/etc/cinder-lvm/backend.yaml"

var (
	configPath    string
	logLevel      string
	logFormat     string
	libvirtSocket string
	outputFormat  string

	v   = config.NewViper()
	log = logrus.New()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cinder-lvm",
	Short: "cinder-lvm - Cinder LVM backend storage reconciler",
	Long: `cinder-lvm prepares block devices on a storage host and keeps the
volume group behind a Cinder LVM backend in line with its configuration.

It creates the volume group from the first usable device, extends it (and a
lone thin pool) onto the rest, optionally prunes missing physical volumes,
and prints the driver settings for the backend's cinder.conf section.`,
	Version:           fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", DefaultConfigPath, "backend options file (YAML)")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	flags.String("journal", "", "SQLite run journal path (overrides the options file)")
	flags.StringVar(&libvirtSocket, "libvirt-socket", libvirt.DefaultSocket, "libvirt daemon socket")

	_ = v.BindPFlag("journal", flags.Lookup("journal"))

	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(driverConfigCmd)
	rootCmd.AddCommand(backendNameCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(historyCmd)
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	switch logFormat {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid --log-format: %s (valid formats: text, json)", logFormat)
	}
	return nil
}

// loadConfig reads and validates the backend options.
func loadConfig() (*config.Options, error) {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"config": configPath,
		"alias":  cfg.Alias,
	}).Debug("Loaded backend options")
	return cfg, nil
}

// addOutputFlag registers -o on cmd.
func addOutputFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().StringVarP(&outputFormat, "output", "o", string(output.FormatTable), usage)
}

func newFormatter() (output.Formatter, error) {
	return output.NewFormatter(output.Options{Format: output.Format(outputFormat)})
}
