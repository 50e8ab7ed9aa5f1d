package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Section names used by the bridge.
const (
	SectionPrinter = "prusalink"
	SectionBroker  = "mqtt_broker"
	SectionTopics  = "mqtt_topics"
	SectionBridge  = "bridge"
	SectionCustom  = "custom"
	SectionLogging = "logging"
	SectionAPI     = "api"
)

// redacted replaces secret values in String output.
const redacted = "********"

// Config is a section/key configuration tree loaded from YAML or INI.
//
// Every lookup is addressed by (section, key), mirroring the layout of the
// configuration file:
//
//	prusalink:
//	  ip_address: 192.168.1.50
//	  api_key: abc123
//
// Thread Safety: a Config is read-only after Load and safe for concurrent use.
type Config struct {
	path     string
	sections map[string]map[string]any
}

// Key identifies a single configuration field.
type Key struct {
	Section string
	Name    string
}

func (k Key) String() string {
	return k.Section + "." + k.Name
}

// requiredKeys must be present (and non-empty) in every configuration.
var requiredKeys = []Key{
	{SectionPrinter, "ip_address"},
	{SectionPrinter, "api_key"},
	{SectionBroker, "broker_ip"},
	{SectionBroker, "broker_port"},
}

// secretKeys are redacted by String.
var secretKeys = map[Key]bool{
	{SectionPrinter, "api_key"}: true,
	{SectionBroker, "password"}: true,
}

// Load reads configuration from a YAML or INI file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values (override defaults)
//  3. Environment variables (override file values)
//
// The format is chosen by file extension: .yaml/.yml are parsed with yaml.v3,
// .ini (the legacy config.ini layout) is parsed with viper.
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	cfg.path = path

	fileSections, err := readSections(path)
	if err != nil {
		return nil, err
	}
	cfg.merge(fileSections)

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// FromSections builds a Config from an in-memory tree on top of the defaults.
// It does not validate; call Validate when the tree comes from user input.
func FromSections(sections map[string]map[string]any) *Config {
	cfg := defaultConfig()
	cfg.merge(sections)
	return cfg
}

// readSections parses the file at path into a section tree.
func readSections(path string) (map[string]map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		var sections map[string]map[string]any
		if err := yaml.Unmarshal(data, &sections); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		return sections, nil

	case ".ini":
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("ini")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		sections := make(map[string]map[string]any)
		for name, raw := range v.AllSettings() {
			values, ok := raw.(map[string]any)
			if !ok {
				// Keys outside any [section] have nowhere to live.
				continue
			}
			sections[name] = values
		}
		return sections, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// defaultConfig returns a Config holding the optional keys' defaults.
func defaultConfig() *Config {
	return &Config{
		sections: map[string]map[string]any{
			SectionPrinter: {},
			SectionBroker: {
				"client_id": "prusalink-bridge-" + uuid.NewString()[:8],
				"qos":       0,
				"keepalive": "60s",
				"tls":       false,
			},
			SectionTopics: {},
			SectionBridge: {
				"poll_interval":   "1s",
				"request_timeout": "750ms",
			},
			SectionCustom: {
				"nozzle_location": "nozzle",
				"bed_location":    "bed",
			},
			SectionLogging: {
				"level":  "info",
				"format": "json",
				"output": "stdout",
			},
			SectionAPI: {
				"enabled":          false,
				"host":             "127.0.0.1",
				"port":             8089,
				"ping_interval":    "30s",
				"pong_timeout":     "10s",
				"max_message_size": 8192,
			},
		},
	}
}

// merge overlays sections onto the receiver. Section and key names are
// lowercased so YAML and INI files address the same keys.
func (c *Config) merge(sections map[string]map[string]any) {
	for name, values := range sections {
		name = strings.ToLower(name)
		dst, ok := c.sections[name]
		if !ok {
			dst = make(map[string]any, len(values))
			c.sections[name] = dst
		}
		for key, v := range values {
			dst[strings.ToLower(key)] = v
		}
	}
}

// set stores a single value, creating the section if needed.
func (c *Config) set(section, key string, value any) {
	if c.sections[section] == nil {
		c.sections[section] = make(map[string]any)
	}
	c.sections[section][key] = value
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PRUSALINK_BRIDGE_<NAME>
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env string
		key Key
	}{
		{"PRUSALINK_BRIDGE_PRINTER_ADDRESS", Key{SectionPrinter, "ip_address"}},
		{"PRUSALINK_BRIDGE_API_KEY", Key{SectionPrinter, "api_key"}},
		{"PRUSALINK_BRIDGE_MQTT_HOST", Key{SectionBroker, "broker_ip"}},
		{"PRUSALINK_BRIDGE_MQTT_PORT", Key{SectionBroker, "broker_port"}},
		{"PRUSALINK_BRIDGE_MQTT_USERNAME", Key{SectionBroker, "username"}},
		{"PRUSALINK_BRIDGE_MQTT_PASSWORD", Key{SectionBroker, "password"}},
		{"PRUSALINK_BRIDGE_LOG_LEVEL", Key{SectionLogging, "level"}},
	}

	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			cfg.set(o.key.Section, o.key.Name, v)
		}
	}
}

// Validate checks the configuration for empty fields and missing or
// malformed required keys.
//
// Returns:
//   - error: Description of all validation failures, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	for _, k := range c.EmptyFields() {
		errs = append(errs, fmt.Sprintf("%s is empty", k))
	}

	for _, k := range requiredKeys {
		if !c.Has(k.Section, k.Name) {
			errs = append(errs, fmt.Sprintf("%s is required", k))
		}
	}

	if c.Has(SectionBroker, "broker_port") {
		port, err := c.GetInt(SectionBroker, "broker_port")
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, "mqtt_broker.broker_port must be between 1 and 65535")
		}
	}

	if qos, err := c.GetInt(SectionBroker, "qos"); err != nil || qos < 0 || qos > 2 {
		errs = append(errs, "mqtt_broker.qos must be 0, 1, or 2")
	}

	interval, errInterval := c.GetDuration(SectionBridge, "poll_interval")
	timeout, errTimeout := c.GetDuration(SectionBridge, "request_timeout")
	switch {
	case errInterval != nil || interval <= 0:
		errs = append(errs, "bridge.poll_interval must be a positive duration")
	case errTimeout != nil || timeout <= 0:
		errs = append(errs, "bridge.request_timeout must be a positive duration")
	case timeout >= interval:
		errs = append(errs, "bridge.request_timeout must be shorter than bridge.poll_interval")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Require checks that every named key exists in section and is non-empty.
// Callers use it for keys whose set is owned elsewhere (the topic schema).
func (c *Config) Require(section string, keys ...string) error {
	var missing []string
	for _, key := range keys {
		if !c.Has(section, key) || isEmpty(c.sections[section][key]) {
			missing = append(missing, Key{section, key}.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, ", "))
	}
	return nil
}

// EmptyFields returns every present key whose value is empty, sorted.
func (c *Config) EmptyFields() []Key {
	var empty []Key
	for section, values := range c.sections {
		for key, v := range values {
			if isEmpty(v) {
				empty = append(empty, Key{section, key})
			}
		}
	}
	sort.Slice(empty, func(i, j int) bool {
		return empty[i].String() < empty[j].String()
	})
	return empty
}

// CheckAnyEmpty reports whether any present field is empty.
func (c *Config) CheckAnyEmpty() bool {
	return len(c.EmptyFields()) > 0
}

// isEmpty treats nil, blank strings and empty lists as empty.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	default:
		return false
	}
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Has reports whether section.key is present.
func (c *Config) Has(section, key string) bool {
	values, ok := c.sections[section]
	if !ok {
		return false
	}
	_, ok = values[key]
	return ok
}

// lookup returns the raw value of section.key.
func (c *Config) lookup(section, key string) (any, error) {
	values, ok := c.sections[section]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, Key{section, key})
	}
	v, ok := values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, Key{section, key})
	}
	return v, nil
}

// Get returns section.key as a string.
func (c *Config) Get(section, key string) (string, error) {
	v, err := c.lookup(section, key)
	if err != nil {
		return "", err
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidValue, Key{section, key}, err)
	}
	return s, nil
}

// GetInt returns section.key as an int.
func (c *Config) GetInt(section, key string) (int, error) {
	v, err := c.lookup(section, key)
	if err != nil {
		return 0, err
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidValue, Key{section, key}, err)
	}
	return n, nil
}

// GetFloat returns section.key as a float64.
func (c *Config) GetFloat(section, key string) (float64, error) {
	v, err := c.lookup(section, key)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidValue, Key{section, key}, err)
	}
	return f, nil
}

// GetBool returns section.key as a bool.
// Accepts the usual spellings (true/false, 1/0, t/f).
func (c *Config) GetBool(section, key string) (bool, error) {
	v, err := c.lookup(section, key)
	if err != nil {
		return false, err
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrInvalidValue, Key{section, key}, err)
	}
	return b, nil
}

// GetList returns section.key as a list.
// Strings are split on commas; YAML sequences are used as-is.
func (c *Config) GetList(section, key string) ([]string, error) {
	v, err := c.lookup(section, key)
	if err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
	list, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, Key{section, key}, err)
	}
	return list, nil
}

// GetDuration returns section.key as a Duration.
// Strings use time.ParseDuration syntax ("750ms", "1s"); bare numbers are seconds.
func (c *Config) GetDuration(section, key string) (time.Duration, error) {
	v, err := c.lookup(section, key)
	if err != nil {
		return 0, err
	}
	switch v.(type) {
	case int, int64, uint, uint64, float64, float32:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidValue, Key{section, key}, err)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	// INI values and quoted YAML arrive as strings; a bare number is still seconds.
	if s, ok := v.(string); ok {
		if secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidValue, Key{section, key}, err)
	}
	return d, nil
}

// String renders the configuration as indented JSON with secrets redacted.
func (c *Config) String() string {
	out := make(map[string]map[string]any, len(c.sections))
	for section, values := range c.sections {
		out[section] = make(map[string]any, len(values))
		for key, v := range values {
			if secretKeys[Key{section, key}] {
				v = redacted
			}
			out[section][key] = v
		}
	}
	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
