package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/HerbHall/lockboxctl/internal/discovery"
	"github.com/HerbHall/lockboxctl/internal/password"
)

func TestViperConfigGetString(t *testing.T) {
	v := viper.New()
	v.Set("name", "lockbox")
	cfg := New(v)

	if got := cfg.GetString("name"); got != "lockbox" {
		t.Errorf("GetString('name') = %q, want %q", got, "lockbox")
	}
}

func TestConfigGet(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set(KeyDevice, "box1")
	cfg := New(v)

	tests := []struct {
		key  string
		want string
	}{
		{KeyDevice, "box1"},
		{KeyDiscoveryAttempts, "5"},
		{KeyPasswordFile, password.DefaultFile},
	}
	for _, tt := range tests {
		got, err := cfg.Get(tt.key)
		if err != nil {
			t.Fatalf("Get(%q): %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}

	if _, err := cfg.Get("discovery.colour"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get(unknown) error = %v, want ErrUnknownKey", err)
	}
}

func TestViperConfigUnmarshal(t *testing.T) {
	v := viper.New()
	v.Set("device", "lockbox_000000._ekilb._tcp.local.")
	v.Set("http.timeout", "3s")
	cfg := New(v)

	var target struct {
		Device string `mapstructure:"device"`
		HTTP   struct {
			Timeout time.Duration `mapstructure:"timeout"`
		} `mapstructure:"http"`
	}
	if err := cfg.Unmarshal(&target); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if target.Device != "lockbox_000000._ekilb._tcp.local." {
		t.Errorf("Device = %q, want %q", target.Device, "lockbox_000000._ekilb._tcp.local.")
	}
	if target.HTTP.Timeout != 3*time.Second {
		t.Errorf("HTTP.Timeout = %v, want %v", target.HTTP.Timeout, 3*time.Second)
	}
}

func TestNilViper(t *testing.T) {
	cfg := New(nil)
	// Should not panic and return zero values.
	if got := cfg.GetString("key"); got != "" {
		t.Errorf("nil viper GetString() = %q, want empty", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdirForTest(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if s.Discovery.Service != discovery.Service {
		t.Errorf("Discovery.Service = %q, want %q", s.Discovery.Service, discovery.Service)
	}
	if s.Discovery.Interval != time.Second || s.Discovery.Attempts != 5 {
		t.Errorf("Discovery window = %v x %d, want 1s x 5", s.Discovery.Interval, s.Discovery.Attempts)
	}
	if s.Password.File != password.DefaultFile {
		t.Errorf("Password.File = %q, want %q", s.Password.File, password.DefaultFile)
	}
	if !s.Discovery.DisableIPv6 {
		t.Error("Discovery.DisableIPv6 = false, want true")
	}
	if s.HostOverride != "" || s.Device != "" {
		t.Errorf("HostOverride/Device = %q/%q, want empty", s.HostOverride, s.Device)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lockboxctl.yaml")
	data := strings.Join([]string{
		"discovery:",
		"  interval: 250ms",
		"  attempts: 8",
		"password:",
		"  file: /tmp/pw.png",
		"device: lockbox_000001._ekilb._tcp.local.",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if s.Discovery.Interval != 250*time.Millisecond {
		t.Errorf("Discovery.Interval = %v, want 250ms", s.Discovery.Interval)
	}
	if s.Discovery.Attempts != 8 {
		t.Errorf("Discovery.Attempts = %d, want 8", s.Discovery.Attempts)
	}
	if s.Password.File != "/tmp/pw.png" {
		t.Errorf("Password.File = %q, want /tmp/pw.png", s.Password.File)
	}
	if s.Device != "lockbox_000001._ekilb._tcp.local." {
		t.Errorf("Device = %q", s.Device)
	}
	if cfg.ConfigFile() != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile(), path)
	}
}

func TestLoad_DiscoveredInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "lockboxctl.yaml"), []byte("host_override: http://10.0.0.5:5000\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.GetString(KeyHostOverride); got != "http://10.0.0.5:5000" {
		t.Errorf("host_override = %q, want http://10.0.0.5:5000", got)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load(missing) error = nil, want error")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("discovery: [unterminated"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load(malformed) error = nil, want error")
	}
}

func TestLoad_Env(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("LOCKBOX_DISCOVERY_ATTEMPTS", "2")
	t.Setenv("LOCKBOX_HTTP_TIMEOUT", "30s")
	t.Setenv("LOCKBOX_DEVICE", "box1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if s.Discovery.Attempts != 2 {
		t.Errorf("Discovery.Attempts = %d, want 2", s.Discovery.Attempts)
	}
	if s.HTTP.Timeout != 30*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 30s", s.HTTP.Timeout)
	}
	if s.Device != "box1" {
		t.Errorf("Device = %q, want box1", s.Device)
	}
}

func TestBindFlag_Overrides(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("LOCKBOX_PASSWORD_FILE", "env.txt")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("password-file", password.DefaultFile, "")
	if err := cfg.BindFlag(KeyPasswordFile, fs.Lookup("password-file")); err != nil {
		t.Fatalf("BindFlag: %v", err)
	}

	// Unchanged flag leaves the environment value in place.
	if got := cfg.GetString(KeyPasswordFile); got != "env.txt" {
		t.Errorf("password.file = %q, want env.txt", got)
	}

	if err := fs.Parse([]string{"--password-file", "flag.png"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.GetString(KeyPasswordFile); got != "flag.png" {
		t.Errorf("password.file = %q, want flag.png", got)
	}
}

func TestSettings_Validate(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set(KeyDiscoveryAttempts, 0)

	if _, err := New(v).Settings(); err == nil {
		t.Error("Settings with zero attempts: error = nil, want error")
	}
}

// chdirForTest changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, which needs Go 1.24).
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
