package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/c360/signalbridge/signal"
)

// Config is the complete application configuration. It is loaded once at
// startup and treated as immutable afterwards.
type Config struct {
	Service ServiceConfig `json:"service"`
	Broker  BrokerConfig  `json:"broker"`
	NATS    NATSConfig    `json:"nats"`
	Bridge  BridgeConfig  `json:"bridge"`
	Metrics MetricsConfig `json:"metrics,omitempty"`
	Health  HealthConfig  `json:"health,omitempty"`
	Logging LoggingConfig `json:"logging,omitempty"`
}

// ServiceConfig identifies this deployment.
type ServiceConfig struct {
	Name        string `json:"name"`
	InstanceID  string `json:"instance_id,omitempty"`
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// BrokerConfig defines the connection to the signal broker.
type BrokerConfig struct {
	Address     string            `json:"address"`
	Metadata    map[string]string `json:"metadata,omitempty"` // per-call gRPC headers (e.g. dapr-app-id)
	CallTimeout time.Duration     `json:"call_timeout,omitempty"`
}

// NATSConfig defines NATS connection settings.
type NATSConfig struct {
	URLs          []string        `json:"urls,omitempty"`
	MaxReconnects int             `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration   `json:"reconnect_wait,omitempty"`
	Username      string          `json:"username,omitempty"`
	Password      string          `json:"password,omitempty"`
	Token         string          `json:"token,omitempty"`
	JetStream     JetStreamConfig `json:"jetstream,omitempty"`
}

// JetStreamConfig enables durable republishing through a JetStream stream.
type JetStreamConfig struct {
	Enabled bool   `json:"enabled"`
	Stream  string `json:"stream,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// BridgeConfig declares the signal routes the bridge serves.
type BridgeConfig struct {
	SubjectPrefix string        `json:"subject_prefix,omitempty"`
	Routes        []RouteConfig `json:"routes"`
}

// RouteConfig maps one signal path to a NATS subject. Path matching is
// exact: a route for "Vehicle.Speed" never fires for
// "Vehicle.Speed.Displayed". Kind names a signal kind ("float", "uint8[]",
// ...) used to decode updates; empty means the inferred value is published
// as-is. A route with a RequestSubject also answers on-demand reads: a
// message on that subject triggers a get and the result is published on
// Subject.
type RouteConfig struct {
	Path           string `json:"path"`
	Subject        string `json:"subject"`
	Field          string `json:"field,omitempty"`
	Kind           string `json:"kind,omitempty"`
	RequestSubject string `json:"request_subject,omitempty"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// HealthConfig controls the health endpoint and poll cadence.
type HealthConfig struct {
	Port     int           `json:"port,omitempty"`
	Interval time.Duration `json:"interval,omitempty"`
}

// LoggingConfig controls the slog handler built in cmd.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // json or text
}

// Default returns the configuration used when a field is absent from the
// loaded file.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "signalbridge",
			Environment: "dev",
		},
		Broker: BrokerConfig{
			Address:     "127.0.0.1:55555",
			CallTimeout: 5 * time.Second,
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Bridge: BridgeConfig{
			SubjectPrefix: "signals",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Port:     8080,
			Interval: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the JSON file at path, merges it over the defaults, applies
// SIGNALBRIDGE_* environment overrides, and validates the result. An empty
// path loads defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		merged, err := mergeFromMap(cfg, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
		cfg = merged
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the config for use. It normalizes the subject prefix and
// rejects anything the bridge cannot run with.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.New("service.name is required")
	}
	if c.Broker.Address == "" {
		return errors.New("broker.address is required")
	}
	if c.Broker.CallTimeout < 0 {
		return errors.New("broker.call_timeout cannot be negative")
	}

	if len(c.NATS.URLs) == 0 {
		return errors.New("nats.urls is required")
	}
	if c.NATS.JetStream.Enabled && c.NATS.JetStream.Stream == "" {
		return errors.New("nats.jetstream.stream is required when jetstream is enabled")
	}

	c.Bridge.SubjectPrefix = strings.TrimSuffix(c.Bridge.SubjectPrefix, ".")
	if c.Bridge.SubjectPrefix != "" && !isValidSubjectPart(c.Bridge.SubjectPrefix) {
		return fmt.Errorf(
			"bridge.subject_prefix '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
			c.Bridge.SubjectPrefix,
		)
	}

	seen := make(map[string]string, len(c.Bridge.Routes))
	for i, route := range c.Bridge.Routes {
		if err := route.Validate(); err != nil {
			return fmt.Errorf("bridge.routes[%d]: %w", i, err)
		}
		if prev, dup := seen[route.Path]; dup {
			return fmt.Errorf("bridge.routes[%d]: path '%s' already routed to '%s'", i, route.Path, prev)
		}
		seen[route.Path] = route.Subject
	}

	if c.Metrics.Enabled {
		if err := validatePort("metrics.port", c.Metrics.Port); err != nil {
			return err
		}
	}
	if c.Health.Port != 0 {
		if err := validatePort("health.port", c.Health.Port); err != nil {
			return err
		}
	}
	if c.Health.Interval < 0 {
		return errors.New("health.interval cannot be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level '%s' is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format '%s' is not one of json, text", c.Logging.Format)
	}

	return nil
}

// Validate checks a single route entry.
func (r *RouteConfig) Validate() error {
	if r.Path == "" {
		return errors.New("path is required")
	}
	if strings.ContainsAny(r.Path, " \t") {
		return fmt.Errorf("path '%s' cannot contain whitespace", r.Path)
	}
	if r.Subject == "" {
		return errors.New("subject is required")
	}
	if !isValidSubjectPart(r.Subject) {
		return fmt.Errorf("subject '%s' is not valid for NATS", r.Subject)
	}
	if r.RequestSubject != "" && !isValidSubjectPart(r.RequestSubject) {
		return fmt.Errorf("request_subject '%s' is not valid for NATS", r.RequestSubject)
	}
	if r.Kind != "" {
		if _, ok := signal.ParseKind(r.Kind); !ok {
			return fmt.Errorf("kind '%s' is not a known signal kind", r.Kind)
		}
	}
	return nil
}

// SignalKind returns the declared decode kind of the route, or
// KindUnspecified when none is configured.
func (r *RouteConfig) SignalKind() signal.Kind {
	k, _ := signal.ParseKind(r.Kind)
	return k
}

// isValidSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d is out of range (1-65535)", field, port)
	}
	return nil
}

// loadRawJSON loads configuration from a JSON file as a map so that absent
// keys can be told apart from zero values during the merge.
func loadRawJSON(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	parseDurations(raw)
	return raw, nil
}

// parseDurations converts human duration strings ("2s", "500ms") to
// nanoseconds so they unmarshal into time.Duration fields.
func parseDurations(raw map[string]any) {
	parseDurationKey(raw, "nats", "reconnect_wait")
	parseDurationKey(raw, "broker", "call_timeout")
	parseDurationKey(raw, "health", "interval")
}

func parseDurationKey(raw map[string]any, section, key string) {
	m, ok := raw[section].(map[string]any)
	if !ok {
		return
	}
	s, ok := m[key].(string)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(s); err == nil {
		m[key] = d.Nanoseconds()
	}
}

// mergeFromMap overlays the raw map onto base, only overriding fields that
// are present in the map.
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedMap := deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return nil, err
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking
// precedence. Slices replace rather than append.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// envPrefix is the prefix of all environment overrides.
const envPrefix = "SIGNALBRIDGE"

// applyEnvOverrides applies environment variable overrides for the values
// an operator most often needs to change per deployment.
func applyEnvOverrides(cfg *Config) error {
	overrides := []struct {
		key   string
		apply func(string) error
	}{
		{"SERVICE_NAME", func(v string) error { cfg.Service.Name = v; return nil }},
		{"SERVICE_INSTANCE_ID", func(v string) error { cfg.Service.InstanceID = v; return nil }},
		{"SERVICE_ENVIRONMENT", func(v string) error { cfg.Service.Environment = v; return nil }},
		{"BROKER_ADDRESS", func(v string) error { cfg.Broker.Address = v; return nil }},
		{"NATS_URLS", func(v string) error { cfg.NATS.URLs = strings.Split(v, ","); return nil }},
		{"NATS_USERNAME", func(v string) error { cfg.NATS.Username = v; return nil }},
		{"NATS_PASSWORD", func(v string) error { cfg.NATS.Password = v; return nil }},
		{"NATS_TOKEN", func(v string) error { cfg.NATS.Token = v; return nil }},
		{"LOG_LEVEL", func(v string) error { cfg.Logging.Level = v; return nil }},
		{"LOG_FORMAT", func(v string) error { cfg.Logging.Format = v; return nil }},
		{"METRICS_PORT", func(v string) error {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid port: %w", err)
			}
			cfg.Metrics.Port = port
			return nil
		}},
		{"HEALTH_PORT", func(v string) error {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid port: %w", err)
			}
			cfg.Health.Port = port
			return nil
		}},
	}

	for _, o := range overrides {
		key := envPrefix + "_" + o.key
		val := os.Getenv(key)
		if val == "" {
			continue
		}
		if err := validateEnvVar(key, val); err != nil {
			return err
		}
		if err := o.apply(val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// SaveToFile writes the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return safeWriteFile(path, data)
}

// String returns a JSON representation of the config with credentials
// redacted.
func (c *Config) String() string {
	clone := *c
	if clone.NATS.Password != "" {
		clone.NATS.Password = "***"
	}
	if clone.NATS.Token != "" {
		clone.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(&clone, "", "  ")
	return string(data)
}

// UnmarshalJSON accepts durations either as nanosecond numbers or as Go
// duration strings.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		Broker struct {
			Address     string            `json:"address"`
			Metadata    map[string]string `json:"metadata,omitempty"`
			CallTimeout any               `json:"call_timeout,omitempty"`
		} `json:"broker"`
		NATS struct {
			URLs          []string        `json:"urls,omitempty"`
			MaxReconnects int             `json:"max_reconnects,omitempty"`
			ReconnectWait any             `json:"reconnect_wait,omitempty"`
			Username      string          `json:"username,omitempty"`
			Password      string          `json:"password,omitempty"`
			Token         string          `json:"token,omitempty"`
			JetStream     JetStreamConfig `json:"jetstream,omitempty"`
		} `json:"nats"`
		Health struct {
			Port     int `json:"port,omitempty"`
			Interval any `json:"interval,omitempty"`
		} `json:"health,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.Broker.Address = aux.Broker.Address
	c.Broker.Metadata = aux.Broker.Metadata
	c.NATS.URLs = aux.NATS.URLs
	c.NATS.MaxReconnects = aux.NATS.MaxReconnects
	c.NATS.Username = aux.NATS.Username
	c.NATS.Password = aux.NATS.Password
	c.NATS.Token = aux.NATS.Token
	c.NATS.JetStream = aux.NATS.JetStream
	c.Health.Port = aux.Health.Port

	var err error
	if c.Broker.CallTimeout, err = asDuration(aux.Broker.CallTimeout); err != nil {
		return fmt.Errorf("broker.call_timeout: %w", err)
	}
	if c.NATS.ReconnectWait, err = asDuration(aux.NATS.ReconnectWait); err != nil {
		return fmt.Errorf("nats.reconnect_wait: %w", err)
	}
	if c.Health.Interval, err = asDuration(aux.Health.Interval); err != nil {
		return fmt.Errorf("health.interval: %w", err)
	}

	return nil
}

func asDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case string:
		return time.ParseDuration(d)
	case float64:
		return time.Duration(d), nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
}
