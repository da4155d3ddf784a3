package config

import (
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joshuafuller/httpu/transport"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.Transport.Bind != "0.0.0.0:0" {
		t.Errorf("Transport.Bind = %s, want 0.0.0.0:0", cfg.Transport.Bind)
	}
	if cfg.Send.Host != "239.255.255.250" || cfg.Send.Port != 1900 {
		t.Errorf("Send = %s:%d, want 239.255.255.250:1900", cfg.Send.Host, cfg.Send.Port)
	}
	if cfg.Listen.Bind != "0.0.0.0:1900" {
		t.Errorf("Listen.Bind = %s, want 0.0.0.0:1900", cfg.Listen.Bind)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestParse_ValidConfig(t *testing.T) {
	yamlConfig := `
log_level: debug
log_format: json
metrics_addr: "127.0.0.1:9100"

transport:
  bind: "[::]:0"
  ip_version: v6
  multicast_ttl: 4

send:
  host: "ff02::c"
  port: 1900
  count: 3
  interval: 250ms

listen:
  bind: "[::]:1900"
  group: "ff02::c"
  interface: "::%2"
`
	cfg, err := Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("logging = %s/%s, want debug/json", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MetricsAddr != "127.0.0.1:9100" {
		t.Errorf("MetricsAddr = %s", cfg.MetricsAddr)
	}
	if mode, _ := cfg.IPVersionMode(); mode != transport.IPVersionV6Only {
		t.Errorf("IPVersionMode() = %v, want v6only", mode)
	}
	if cfg.Transport.MulticastTTL != 4 {
		t.Errorf("MulticastTTL = %d, want 4", cfg.Transport.MulticastTTL)
	}
	if cfg.Send.Count != 3 || cfg.Send.Interval != 250*time.Millisecond {
		t.Errorf("Send = %d every %v, want 3 every 250ms", cfg.Send.Count, cfg.Send.Interval)
	}

	iface, err := cfg.InterfaceAddr(true)
	if err != nil {
		t.Fatalf("InterfaceAddr() error = %v", err)
	}
	if !iface.Is6() || iface.ScopeID != 2 {
		t.Errorf("InterfaceAddr() = %+v, want IPv6 with scope 2", iface)
	}
	group, err := cfg.GroupAddr()
	if err != nil || group != transport.SSDPGroupV6LinkLocal {
		t.Errorf("GroupAddr() = %v, %v, want ff02::c", group, err)
	}
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("send:\n  count: 5\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Send.Count != 5 {
		t.Errorf("Send.Count = %d, want 5", cfg.Send.Count)
	}
	if cfg.Send.Port != transport.SSDPPort {
		t.Errorf("Send.Port = %d, want default %d", cfg.Send.Port, transport.SSDPPort)
	}
	if cfg.Listen.Group != "239.255.255.250" {
		t.Errorf("Listen.Group = %s, want default", cfg.Listen.Group)
	}
}

func TestParse_EnvVars(t *testing.T) {
	t.Setenv("HTTPU_TEST_HOST", "192.168.1.20")

	yamlConfig := `
send:
  host: "${HTTPU_TEST_HOST}"
  port: ${HTTPU_TEST_UNSET_PORT:-8080}
`
	cfg, err := Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Send.Host != "192.168.1.20" {
		t.Errorf("Send.Host = %s, want 192.168.1.20", cfg.Send.Host)
	}
	if cfg.Send.Port != 8080 {
		t.Errorf("Send.Port = %d, want 8080", cfg.Send.Port)
	}
}

func TestExpandEnvVars_UnknownKept(t *testing.T) {
	if got := expandEnvVars("$HTTPU_TEST_DEFINITELY_UNSET"); got != "$HTTPU_TEST_DEFINITELY_UNSET" {
		t.Errorf("expandEnvVars() = %q, want reference kept", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad log level", "log_level: verbose", "log_level"},
		{"bad log format", "log_format: xml", "log_format"},
		{"bad metrics addr", "metrics_addr: 9100", "metrics_addr"},
		{"bad ip version", "transport:\n  ip_version: v5", "ip_version"},
		{"bind without port", "transport:\n  bind: 127.0.0.1", "transport.bind"},
		{"bind family mismatch", "transport:\n  bind: \"[::1]:0\"\n  ip_version: v4", "does not match"},
		{"ttl too large", "transport:\n  multicast_ttl: 300", "multicast_ttl"},
		{"zero port", "send:\n  port: 0", "send.port"},
		{"port overflow", "send:\n  port: 70000", "failed to parse"},
		{"zero count", "send:\n  count: 0", "send.count"},
		{"repeat without interval", "send:\n  count: 2\n  interval: 0s", "send.interval"},
		{"group not multicast", "listen:\n  group: 10.0.0.1", "not a multicast"},
		{"group family mismatch", "listen:\n  group: \"ff02::c\"", "same IP version"},
		{"group bind mismatch", "listen:\n  bind: \"[::]:1900\"", "listen.bind"},
		{"malformed yaml", "send: [", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "httpu.yaml")
	if err := os.WriteFile(path, []byte("listen:\n  group: \"\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen.Group != "" {
		t.Errorf("Listen.Group = %q, want empty", cfg.Listen.Group)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) error = nil")
	}
}

func TestInterfaceAddr_IPv4(t *testing.T) {
	cfg := Default()
	cfg.Listen.Interface = "192.168.1.10"

	got, err := cfg.InterfaceAddr(false)
	if err != nil {
		t.Fatalf("InterfaceAddr() error = %v", err)
	}
	if got.Addr != netip.MustParseAddr("192.168.1.10") {
		t.Errorf("InterfaceAddr() = %v", got)
	}
}

func TestInterfaceAddr_ByName(t *testing.T) {
	ifaces, err := net.Interfaces()
	if err != nil || len(ifaces) == 0 {
		t.Skip("no network interfaces")
	}
	ifi := ifaces[0]

	cfg := Default()
	cfg.Listen.Interface = ifi.Name

	got, err := cfg.InterfaceAddr(true)
	if err != nil {
		t.Fatalf("InterfaceAddr(v6) error = %v", err)
	}
	if got.ScopeID != uint32(ifi.Index) {
		t.Errorf("InterfaceAddr(v6).ScopeID = %d, want %d", got.ScopeID, ifi.Index)
	}
}
