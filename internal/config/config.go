// Package config provides configuration parsing and validation for the httpu
// command.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshuafuller/httpu/internal/logging"
	"github.com/joshuafuller/httpu/transport"
)

// Config represents the complete httpu configuration.
type Config struct {
	LogLevel    string          `yaml:"log_level"`    // debug, info, warn, error
	LogFormat   string          `yaml:"log_format"`   // text, json
	MetricsAddr string          `yaml:"metrics_addr"` // empty disables the metrics endpoint
	Transport   TransportConfig `yaml:"transport"`
	Send        SendConfig      `yaml:"send"`
	Listen      ListenConfig    `yaml:"listen"`
}

// TransportConfig holds connector settings shared by all commands.
type TransportConfig struct {
	Bind         string `yaml:"bind"`          // host:port for the connector socket
	IPVersion    string `yaml:"ip_version"`    // any, v4, v6
	MulticastTTL uint32 `yaml:"multicast_ttl"` // 0 leaves it unset
}

// SendConfig defines what `httpu send` transmits.
type SendConfig struct {
	Host        string        `yaml:"host"`
	Port        uint16        `yaml:"port"`
	Count       int           `yaml:"count"`
	Interval    time.Duration `yaml:"interval"`
	PayloadFile string        `yaml:"payload_file"` // empty sends an SSDP M-SEARCH
}

// ListenConfig defines the socket `httpu listen` reads from.
type ListenConfig struct {
	Bind      string `yaml:"bind"`
	Group     string `yaml:"group"`     // multicast group, empty skips the join
	Interface string `yaml:"interface"` // interface address; "%scope" suffix for IPv6
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Transport: TransportConfig{
			Bind:      "0.0.0.0:0",
			IPVersion: "any",
		},
		Send: SendConfig{
			Host:     transport.SSDPGroupV4.String(),
			Port:     transport.SSDPPort,
			Count:    1,
			Interval: time.Second,
		},
		Listen: ListenConfig{
			Bind:      fmt.Sprintf("0.0.0.0:%d", transport.SSDPPort),
			Group:     transport.SSDPGroupV4.String(),
			Interface: "0.0.0.0",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes. Values not present in data keep
// their defaults.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
// ${VAR:-default} falls back to default; unknown variables are left as is.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors. Bind addresses are checked
// for syntax only; host names in them are resolved when the socket is bound.
func (c *Config) Validate() error {
	var errs []string

	if !logging.IsValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}
	if !logging.IsValidFormat(c.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log_format: %s (must be text or json)", c.LogFormat))
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs = append(errs, fmt.Sprintf("invalid metrics_addr: %v", err))
		}
	}

	mode, err := c.IPVersionMode()
	if err != nil {
		errs = append(errs, fmt.Sprintf("transport.ip_version: %v", err))
	}
	if err := validateBind(c.Transport.Bind, mode); err != nil {
		errs = append(errs, fmt.Sprintf("transport.bind: %v", err))
	}
	if c.Transport.MulticastTTL > 255 {
		errs = append(errs, "transport.multicast_ttl must be between 0 and 255")
	}

	if c.Send.Host == "" {
		errs = append(errs, "send.host is required")
	}
	if c.Send.Port == 0 {
		errs = append(errs, "send.port must be between 1 and 65535")
	}
	if c.Send.Count < 1 {
		errs = append(errs, "send.count must be positive")
	}
	if c.Send.Count > 1 && c.Send.Interval <= 0 {
		errs = append(errs, "send.interval must be positive when send.count > 1")
	}

	if err := validateBind(c.Listen.Bind, mode); err != nil {
		errs = append(errs, fmt.Sprintf("listen.bind: %v", err))
	}
	if c.Listen.Group != "" {
		if err := validateGroup(c.Listen.Group, c.Listen.Interface, c.Listen.Bind); err != nil {
			errs = append(errs, fmt.Sprintf("listen.group: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IPVersionMode returns the parsed transport.ip_version.
func (c *Config) IPVersionMode() (transport.IPVersionMode, error) {
	return transport.ParseIPVersionMode(c.Transport.IPVersion)
}

// InterfaceAddr returns listen.interface as a socket address usable with
// transport.JoinMulticast for a group of the given family.
//
// The interface may be an address ("192.168.1.10", "fe80::1%eth0", "::%2")
// or an interface name ("eth0"). A name resolves to its first IPv4 address
// for IPv4 groups, and to its index as the scope id for IPv6 groups.
func (c *Config) InterfaceAddr(v6 bool) (transport.SockAddr, error) {
	return parseInterface(c.Listen.Interface, v6)
}

// GroupAddr returns listen.group.
func (c *Config) GroupAddr() (netip.Addr, error) {
	return netip.ParseAddr(c.Listen.Group)
}

func validateBind(bind string, mode transport.IPVersionMode) error {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		// Host names are resolved at bind time.
		return nil
	}
	if !mode.Matches(transport.SockAddr{Addr: ip.Unmap()}) {
		return fmt.Errorf("%s does not match ip_version %s", bind, mode)
	}
	return nil
}

func validateGroup(group, iface, bind string) error {
	g, err := netip.ParseAddr(group)
	if err != nil {
		return err
	}
	if !g.IsMulticast() {
		return fmt.Errorf("%s is not a multicast address", group)
	}
	if host, _, err := net.SplitHostPort(bind); err == nil {
		if ip, err := netip.ParseAddr(host); err == nil && ip.Unmap().Is4() != g.Is4() {
			return fmt.Errorf("group %s and listen.bind %s are not the same IP version", group, bind)
		}
	}
	ifAddr, err := parseInterface(iface, g.Is6())
	if err != nil {
		return fmt.Errorf("listen.interface: %w", err)
	}
	if g.Is4() != ifAddr.Is4() {
		return fmt.Errorf("group %s and interface %s are not the same IP version", group, iface)
	}
	return nil
}

func parseInterface(iface string, v6 bool) (transport.SockAddr, error) {
	if ifi, err := net.InterfaceByName(iface); err == nil {
		return interfaceByIndex(ifi, v6)
	}
	return transport.ResolveAddr(transport.HostPort(net.JoinHostPort(iface, "0")))
}

func interfaceByIndex(ifi *net.Interface, v6 bool) (transport.SockAddr, error) {
	if v6 {
		return transport.SockAddr{Addr: netip.IPv6Unspecified(), ScopeID: uint32(ifi.Index)}, nil
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return transport.SockAddr{}, err
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip, ok := netip.AddrFromSlice(ipNet.IP); ok && ip.Unmap().Is4() {
			return transport.SockAddr{Addr: ip.Unmap()}, nil
		}
	}
	return transport.SockAddr{}, fmt.Errorf("interface %s has no IPv4 address", ifi.Name)
}

// String returns the configuration as YAML.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
