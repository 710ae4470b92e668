package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jbweber/cinder-lvm/api/v1alpha1"
	"github.com/jbweber/cinder-lvm/internal/backend"
	"github.com/jbweber/cinder-lvm/internal/journal"
	"github.com/jbweber/cinder-lvm/internal/libvirt"
)

// now is replaced in tests.
var now = time.Now

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header rows.
	NoHeaders bool
}

// FormatBackend formats an LVMBackend as a summary row followed by its
// physical volumes and conditions.
func (f *TableFormatter) FormatBackend(b *v1alpha1.LVMBackend) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tPHASE\tVG\tSIZE\tFREE\tPVS\tLVS\tTHIN POOLS\tDEVICES")
	}

	size, free, pvs, lvs := "-", "-", "-", "-"
	if vg := b.Status.VolumeGroup; vg != nil {
		size = humanize.IBytes(vg.SizeBytes)
		free = humanize.IBytes(vg.FreeBytes)
		pvs = fmt.Sprintf("%d", vg.PVCount)
		lvs = fmt.Sprintf("%d", vg.LVCount)
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		b.Name, orDash(string(b.GetPhase())), b.Spec.VolumeGroup,
		size, free, pvs, lvs, orDash(strings.Join(b.Status.ThinPools, ",")), b.DeviceList())
	_ = w.Flush()

	if len(b.Status.PhysicalVolumes) > 0 {
		buf.WriteString("\n")
		w = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		if !f.NoHeaders {
			_, _ = fmt.Fprintln(w, "PV\tSIZE\tFREE")
		}
		for _, pv := range b.Status.PhysicalVolumes {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", pv.Device, humanize.IBytes(pv.SizeBytes), humanize.IBytes(pv.FreeBytes))
		}
		_ = w.Flush()
	}

	if len(b.Status.Conditions) > 0 {
		buf.WriteString("\n")
		w = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		if !f.NoHeaders {
			_, _ = fmt.Fprintln(w, "CONDITION\tSTATUS\tREASON\tAGE\tMESSAGE")
		}
		for _, c := range b.Status.Conditions {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				c.Type, c.Status, orDash(c.Reason), age(c.LastTransitionTime.Time), c.Message)
		}
		_ = w.Flush()
	}

	return buf.String(), nil
}

// FormatDriverOptions formats the effective driver options, one per row.
// Later duplicates from config-flags replace earlier values.
func (f *TableFormatter) FormatDriverOptions(backendName string, opts []backend.Option) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintf(w, "BACKEND %s\n", backendName)
		_, _ = fmt.Fprintln(w, "KEY\tVALUE")
	}
	for _, o := range backend.Effective(opts) {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", o.Key, o.Value)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatHistory formats journal entries as a table, in the order given.
func (f *TableFormatter) FormatHistory(entries []journal.Entry) (string, error) {
	if len(entries) == 0 {
		return "No runs recorded\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "RUN\tBACKEND\tOUTCOME\tCREATED\tPREPARED\tEXTENDED\tDURATION\tAGE\tERROR")
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%d\t%s\t%s\t%s\n",
			shortID(e.RunID), e.BackendName, e.Outcome, e.Created,
			len(e.Prepared), len(e.Extended),
			e.Duration().Round(time.Millisecond), age(e.StartedAt), orDash(e.Error))
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatPool formats a libvirt pool as a table row.
func (f *TableFormatter) FormatPool(info *libvirt.PoolInfo) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tTYPE\tSTATE\tAUTOSTART\tVG\tTARGET\tCAPACITY\tALLOCATION\tAVAILABLE")
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\t%s\t%s\n",
		info.Name, info.Type, info.State, info.Autostart,
		orDash(info.VolumeGroup), orDash(info.Target),
		humanize.IBytes(info.Capacity), humanize.IBytes(info.Allocation), humanize.IBytes(info.Available))

	_ = w.Flush()
	return buf.String(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return orDash(id)
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return formatAge(now().Sub(t))
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	if years := days / 365; years > 0 {
		return fmt.Sprintf("%dy", years)
	}
	return fmt.Sprintf("%dd", days)
}
