// Package config loads the process configuration
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	monitor "github.com/nikiz24/hostmonitor"
)

const DefaultStoreURL = "postgres://localhost:5432/system_monitor"

type Config struct {
	StoreURL     string
	MonitorsFile string
	SelfMonitor  bool
	LogLevel     string
	LogFormat    string

	Namespace string
	DNS       monitor.DNSConfig
}

// Load reads the environment, after merging a .env file when one exists
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StoreURL:     getenv("STORE_URL", DefaultStoreURL),
		MonitorsFile: os.Getenv("MONITORS_FILE"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "json"),
		Namespace:    getenv("REMOTE_WRITE_NAMESPACE", "hostmonitor"),
	}

	var err error
	if cfg.SelfMonitor, err = getbool("SELF_MONITOR"); err != nil {
		return nil, err
	}
	if cfg.DNS.Enabled, err = getbool("REMOTE_WRITE_DNS"); err != nil {
		return nil, err
	}
	if raw := os.Getenv("REMOTE_WRITE_DNS_SERVERS"); raw != "" {
		if err := parseDNSServers(raw, &cfg.DNS); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

// parseDNSServers splits a comma separated list of udp://host:port,
// tls://host:port and https:// endpoints. A bare host:port is udp.
func parseDNSServers(raw string, dns *monitor.DNSConfig) error {
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		switch {
		case s == "":
			continue
		case strings.HasPrefix(s, "https://"):
			dns.DoHEndpoints = append(dns.DoHEndpoints, s)
		case strings.HasPrefix(s, "tls://"):
			dns.TLSServers = append(dns.TLSServers, strings.TrimPrefix(s, "tls://"))
		case strings.HasPrefix(s, "udp://"):
			dns.UDPServers = append(dns.UDPServers, strings.TrimPrefix(s, "udp://"))
		case strings.Contains(s, "://"):
			return fmt.Errorf("unsupported dns server %q", s)
		default:
			dns.UDPServers = append(dns.UDPServers, s)
		}
	}
	return nil
}

// MonitorOverrides is one entry of the monitors file. Durations are in
// milliseconds; absent fields keep their defaults.
type MonitorOverrides struct {
	Interval         *int64  `yaml:"interval"`
	Collection       *string `yaml:"collection"`
	UpdateInterval   *int64  `yaml:"updateInterval"`
	PercentageOutput *bool   `yaml:"percentageOutput"`
	MountPoint       *string `yaml:"mountPoint"`
}

// Layer converts the entry to monitor options
func (o MonitorOverrides) Layer() monitor.Layer {
	var l monitor.Layer
	if o.Interval != nil {
		l.Interval = monitor.Duration(time.Duration(*o.Interval) * time.Millisecond)
	}
	if o.UpdateInterval != nil {
		l.UpdateInterval = monitor.Duration(time.Duration(*o.UpdateInterval) * time.Millisecond)
	}
	l.Collection = o.Collection
	l.PercentageOutput = o.PercentageOutput
	l.MountPoint = o.MountPoint
	return l
}

type monitorsFile struct {
	Monitors map[string]MonitorOverrides `yaml:"monitors"`
}

// LoadOverrides reads per-monitor overrides keyed by monitor key.
// An empty path yields no overrides.
func LoadOverrides(path string) (map[string]MonitorOverrides, error) {
	if path == "" {
		return nil, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read monitors file: %w", err)
	}

	var f monitorsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse monitors yaml: %w", err)
	}
	return f.Monitors, nil
}

// ApplyOverrides configures the registered monitors. Unknown keys are an error.
func ApplyOverrides(r *monitor.Registry, overrides map[string]MonitorOverrides) error {
	for key, o := range overrides {
		m, ok := r.Get(key)
		if !ok {
			return fmt.Errorf("monitors file names unknown monitor %q", key)
		}
		m.Configure(o.Layer())
	}
	return nil
}
