package backend

import (
	"errors"
	"strings"
	"testing"

	"gopkg.in/ini.v1"

	"github.com/jbweber/cinder-lvm/internal/config"
)

func testOptions() *config.Options {
	cfg := &config.Options{
		Alias:       "fast",
		BlockDevice: "/dev/sdb /dev/sdc",
	}
	cfg.Normalize()
	return cfg
}

func TestDriverOptions_Order(t *testing.T) {
	cfg := testOptions()
	cfg.AllocationType = config.AllocationThin
	cfg.EraseSize = "100"

	got, err := DriverOptions(cfg, "LVM-fast")
	if err != nil {
		t.Fatalf("DriverOptions() error = %v", err)
	}

	want := []Option{
		{Key: "volume_driver", Value: "cinder.volume.drivers.lvm.LVMVolumeDriver"},
		{Key: "volumes_dir", Value: "/var/lib/cinder/volumes"},
		{Key: "volume_name_template", Value: "volume-%s"},
		{Key: "volume_group", Value: "cinder-volumes-fast"},
		{Key: "volume_backend_name", Value: "LVM-fast"},
		{Key: "lvm_type", Value: "thin"},
		{Key: "volume_clear", Value: "zero"},
		{Key: "volume_clear_size", Value: "100"},
	}
	if len(got) != len(want) {
		t.Fatalf("DriverOptions() returned %d options, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("option %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDriverOptions_ConfigFlagsLast(t *testing.T) {
	cfg := testOptions()
	cfg.ConfigFlags = "volume_clear=none,target_helper=lioadm"

	got, err := DriverOptions(cfg, "LVM-fast")
	if err != nil {
		t.Fatalf("DriverOptions() error = %v", err)
	}

	n := len(got)
	if got[n-2] != (Option{Key: "volume_clear", Value: "none"}) {
		t.Errorf("second to last option = %+v", got[n-2])
	}
	if got[n-1] != (Option{Key: "target_helper", Value: "lioadm"}) {
		t.Errorf("last option = %+v", got[n-1])
	}

	// The fixed volume_clear stays in place; the flag overrides it when
	// applied in order.
	effective := Effective(got)
	for _, o := range effective {
		if o.Key == "volume_clear" && o.Value != "none" {
			t.Errorf("effective volume_clear = %s, want none", o.Value)
		}
	}
	if len(effective) != n-1 {
		t.Errorf("Effective() returned %d options, want %d", len(effective), n-1)
	}
}

func TestDriverOptions_InvalidFlags(t *testing.T) {
	cfg := testOptions()
	cfg.ConfigFlags = "volume_clear"

	_, err := DriverOptions(cfg, "LVM-fast")
	var valErr *config.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("DriverOptions() error = %v, want *config.ValidationError", err)
	}
	if valErr.Key != "config-flags" {
		t.Errorf("ValidationError.Key = %s, want config-flags", valErr.Key)
	}
}

func TestParseConfigFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   string
		want    []Option
		wantErr bool
	}{
		{name: "empty", flags: ""},
		{name: "single", flags: "a=b", want: []Option{{Key: "a", Value: "b"}}},
		{
			name:  "empty segments skipped",
			flags: "a=b,,c=d,",
			want:  []Option{{Key: "a", Value: "b"}, {Key: "c", Value: "d"}},
		},
		{
			name:  "split on first equals",
			flags: "lvm_conf_file=a=b",
			want:  []Option{{Key: "lvm_conf_file", Value: "a=b"}},
		},
		{
			name:  "whitespace trimmed",
			flags: " a = b , c=",
			want:  []Option{{Key: "a", Value: "b"}, {Key: "c", Value: ""}},
		},
		{name: "missing equals", flags: "a=b,novalue", wantErr: true},
		{name: "missing key", flags: "=value", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigFlags(tt.flags)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseConfigFlags(%q) error = %v, wantErr %v", tt.flags, err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseConfigFlags(%q) = %+v, want %+v", tt.flags, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("option %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRenderINI_LastDuplicateWins(t *testing.T) {
	cfg := testOptions()
	cfg.ConfigFlags = "volume_clear=none,volume_clear=shred"

	opts, err := DriverOptions(cfg, "LVM-node1-fast")
	if err != nil {
		t.Fatalf("DriverOptions() error = %v", err)
	}

	data, err := RenderINI("LVM-node1-fast", opts)
	if err != nil {
		t.Fatalf("RenderINI() error = %v", err)
	}
	if !strings.Contains(string(data), "[LVM-node1-fast]") {
		t.Errorf("missing section header:\n%s", data)
	}

	f, err := ini.Load(data)
	if err != nil {
		t.Fatalf("ini.Load() error = %v", err)
	}
	sec := f.Section("LVM-node1-fast")

	tests := map[string]string{
		"volume_driver":        VolumeDriver,
		"volume_name_template": "volume-%s",
		"volume_group":         "cinder-volumes-fast",
		"volume_backend_name":  "LVM-node1-fast",
		"lvm_type":             "default",
		"volume_clear":         "shred",
		"volume_clear_size":    "0",
	}
	for key, want := range tests {
		if got := sec.Key(key).String(); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if n := len(sec.Keys()); n != 8 {
		t.Errorf("section has %d keys, want 8", n)
	}
}
