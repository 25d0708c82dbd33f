package config

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// ThresholdsConfig holds the latency hysteresis band.
type ThresholdsConfig struct {
	OK  Duration `yaml:"ok"`
	Bad Duration `yaml:"bad"`
}

// ProbeConfig controls how candidates are probed.
type ProbeConfig struct {
	Type        string   `yaml:"type"`
	Timeout     Duration `yaml:"timeout"`
	Concurrency int      `yaml:"concurrency"`
	Query       string   `yaml:"query"`
}

// GatewayConfig selects the mechanism used to read and write the OS resolvers.
type GatewayConfig struct {
	Type    string   `yaml:"type"`
	Timeout Duration `yaml:"timeout"`
}

// WebhookConfig holds alert webhook settings.
type WebhookConfig struct {
	URL      string   `yaml:"url"`
	Cooldown Duration `yaml:"cooldown"`
}

// AlertsConfig holds all alert configuration.
type AlertsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Config is the root application configuration.
type Config struct {
	Interface     string           `yaml:"interface"`
	Candidates    []string         `yaml:"candidates"`
	Thresholds    ThresholdsConfig `yaml:"thresholds"`
	Probe         ProbeConfig      `yaml:"probe"`
	Interval      Duration         `yaml:"interval"`
	DriftInterval Duration         `yaml:"drift_interval"`
	Autostart     bool             `yaml:"autostart"`
	Gateway       GatewayConfig    `yaml:"gateway"`
	Alerts        AlertsConfig     `yaml:"alerts"`
	Server        ServerConfig     `yaml:"server"`
	Storage       StorageConfig    `yaml:"storage"`
}

var validProbeTypes = map[string]bool{
	"ping": true,
	"dns":  true,
	"tcp":  true,
}

var validGatewayTypes = map[string]bool{
	"powershell": true,
	"resolvectl": true,
	"dryrun":     true,
}

// Load reads, parses, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML config data, applying defaults.
func Parse(data []byte) (*Config, error) {
	// Unmarshal into a raw intermediate to detect YAML parse errors vs duration errors.
	type rawConfig struct {
		Interface  string   `yaml:"interface"`
		Candidates []string `yaml:"candidates"`
		Thresholds struct {
			OK  string `yaml:"ok"`
			Bad string `yaml:"bad"`
		} `yaml:"thresholds"`
		Probe struct {
			Type        string `yaml:"type"`
			Timeout     string `yaml:"timeout"`
			Concurrency int    `yaml:"concurrency"`
			Query       string `yaml:"query"`
		} `yaml:"probe"`
		Interval      string `yaml:"interval"`
		DriftInterval string `yaml:"drift_interval"`
		Autostart     *bool  `yaml:"autostart"`
		Gateway       struct {
			Type    string `yaml:"type"`
			Timeout string `yaml:"timeout"`
		} `yaml:"gateway"`
		Alerts struct {
			Webhook struct {
				URL      string `yaml:"url"`
				Cooldown string `yaml:"cooldown"`
			} `yaml:"webhook"`
		} `yaml:"alerts"`
		Server  ServerConfig  `yaml:"server"`
		Storage StorageConfig `yaml:"storage"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults.
	if raw.Server.Address == "" {
		raw.Server.Address = ":8080"
	}
	if raw.Storage.Path == "" {
		raw.Storage.Path = "dnsswitch.db"
	}
	if raw.Probe.Type == "" {
		raw.Probe.Type = "ping"
	}
	if raw.Probe.Concurrency == 0 {
		raw.Probe.Concurrency = 15
	}
	if raw.Probe.Query == "" {
		raw.Probe.Query = "."
	}
	if raw.Gateway.Type == "" {
		raw.Gateway.Type = "powershell"
	}
	if len(raw.Candidates) == 0 {
		raw.Candidates = DefaultCandidates()
	}

	cfg := &Config{
		Interface:  raw.Interface,
		Candidates: raw.Candidates,
		Autostart:  true,
		Server:     raw.Server,
		Storage:    raw.Storage,
	}
	if raw.Autostart != nil {
		cfg.Autostart = *raw.Autostart
	}

	durations := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *Duration
	}{
		{"thresholds.ok", raw.Thresholds.OK, 75 * time.Millisecond, &cfg.Thresholds.OK},
		{"thresholds.bad", raw.Thresholds.Bad, 90 * time.Millisecond, &cfg.Thresholds.Bad},
		{"probe.timeout", raw.Probe.Timeout, time.Second, &cfg.Probe.Timeout},
		{"interval", raw.Interval, 5 * time.Second, &cfg.Interval},
		{"drift_interval", raw.DriftInterval, 2 * time.Second, &cfg.DriftInterval},
		{"gateway.timeout", raw.Gateway.Timeout, 5 * time.Second, &cfg.Gateway.Timeout},
		{"alerts.webhook.cooldown", raw.Alerts.Webhook.Cooldown, 5 * time.Minute, &cfg.Alerts.Webhook.Cooldown},
	}
	for _, d := range durations {
		if d.raw == "" {
			*d.dst = Duration{d.def}
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", d.name, d.raw)
		}
		*d.dst = Duration{v}
	}

	if cfg.Thresholds.OK.Duration >= cfg.Thresholds.Bad.Duration {
		return nil, fmt.Errorf("thresholds.ok (%s) must be below thresholds.bad (%s)",
			cfg.Thresholds.OK.Duration, cfg.Thresholds.Bad.Duration)
	}

	if !validProbeTypes[raw.Probe.Type] {
		return nil, fmt.Errorf("invalid probe type %q (must be ping, dns, or tcp)", raw.Probe.Type)
	}
	if raw.Probe.Concurrency < 1 {
		return nil, fmt.Errorf("probe.concurrency must be at least 1, got %d", raw.Probe.Concurrency)
	}
	cfg.Probe.Type = raw.Probe.Type
	cfg.Probe.Concurrency = raw.Probe.Concurrency
	cfg.Probe.Query = raw.Probe.Query

	if !validGatewayTypes[raw.Gateway.Type] {
		return nil, fmt.Errorf("invalid gateway type %q (must be powershell, resolvectl, or dryrun)", raw.Gateway.Type)
	}
	cfg.Gateway.Type = raw.Gateway.Type
	if cfg.Interface == "" && cfg.Gateway.Type != "dryrun" {
		return nil, fmt.Errorf("interface is required for gateway type %q", cfg.Gateway.Type)
	}

	cfg.Alerts.Webhook.URL = raw.Alerts.Webhook.URL

	distinct := make(map[string]bool, len(cfg.Candidates))
	for i, c := range cfg.Candidates {
		if _, err := netip.ParseAddr(c); err != nil {
			return nil, fmt.Errorf("candidate[%d]: invalid address %q", i, c)
		}
		distinct[c] = true
	}
	if len(distinct) < 2 {
		return nil, fmt.Errorf("at least two distinct candidates must be configured")
	}

	return cfg, nil
}

// DefaultCandidates returns the built-in list of public resolvers.
func DefaultCandidates() []string {
	return []string{
		"1.0.0.1", "1.1.1.1", "1.1.4.1", "1.4.1.1", "4.2.2.1", "4.2.2.2", "4.2.2.3", "4.2.2.4",
		"4.2.2.5", "4.2.2.6", "8.20.247.20", "8.26.56.26", "8.8.4.4", "8.8.8.8", "9.9.9.10",
		"9.9.9.9", "10.202.10.10", "10.202.10.102", "10.202.10.11", "10.202.10.202",
		"45.90.28.230", "45.90.30.230", "64.6.64.6", "64.6.65.6", "74.82.42.42", "78.157.42.100",
		"78.157.42.101", "80.67.169.12", "80.67.169.40", "80.80.80.80", "80.80.81.81", "84.200.69.80",
		"84.200.70.40", "86.54.11.100", "86.54.11.200", "91.239.100.100", "94.140.14.14", "94.140.15.15",
		"149.112.112.10", "149.112.112.112", "156.154.70.1", "156.154.70.22", "156.154.70.5", "156.154.71.1",
		"156.154.71.22", "156.154.71.5", "178.22.122.100", "185.51.200.2", "195.46.39.39", "195.46.39.40",
		"195.92.195.94", "195.92.195.95", "198.153.192.1", "198.153.194.1", "199.2.252.10", "199.85.126.10",
		"199.85.127.10", "204.69.234.1", "204.74.101.1", "204.97.212.10", "204.117.214.10", "205.171.2.65",
		"205.171.3.65", "208.67.220.220", "208.67.220.222", "208.67.222.220", "208.67.222.222",
	}
}
