package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor types understood by the node.
const (
	SensorTypeDS18B20 = "ds18b20"
	SensorTypeModbus  = "modbus"
)

// Telemetry routing modes.
const (
	// RoutingStatic publishes every reading to telemetry.topic.
	RoutingStatic = "static"

	// RoutingPerKind publishes to Sensors/<location>/<sensorKind>.
	RoutingPerKind = "per_kind"
)

// Restart modes.
const (
	RestartModeExit    = "exit"
	RestartModeCommand = "command"
)

// maxPacingMS bounds the inter-publish pacing delay.
const maxPacingMS = 2000

// minSettleMS is the DS18B20 12-bit conversion time. Reading earlier returns
// the previous or power-on scratchpad.
const minSettleMS = 750

// Config is the root configuration structure for a Gray Logic Node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Network   NetworkConfig   `yaml:"network"`
	Sensors   []SensorConfig  `yaml:"sensors"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Restart   RestartConfig   `yaml:"restart"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Journal   JournalConfig   `yaml:"journal"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// NodeConfig identifies the node and where it is installed.
type NodeConfig struct {
	ID       string `yaml:"id"`
	Location string `yaml:"location"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	QoS       int              `yaml:"qos"`
	KeepAlive int              `yaml:"keepalive"` // seconds

	// SubscribeInbound subscribes to cmd/<client_id>/# and config/<client_id>
	// so inbound traffic is logged. Off by default: each subscription costs
	// broker traffic on every reconnect.
	SubscribeInbound bool `yaml:"subscribe_inbound"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TelemetryConfig controls how readings are published.
type TelemetryConfig struct {
	// Topic is the static topic used when Routing is "static".
	Topic string `yaml:"topic"`

	// Routing is "static" or "per_kind".
	Routing string `yaml:"routing"`

	// Retain sets the MQTT retained flag on every reading.
	Retain bool `yaml:"retain"`

	// PacingMS is the delay between successive publishes within one cycle.
	PacingMS int `yaml:"pacing_ms"`
}

// ScheduleConfig holds the outer timing of the control loop (seconds).
type ScheduleConfig struct {
	CycleInterval       int `yaml:"cycle_interval"`
	Cooldown            int `yaml:"cooldown"`
	LinkFailureDelay    int `yaml:"link_failure_delay"`
	SessionFailureDelay int `yaml:"session_failure_delay"`
}

// NetworkConfig describes how the physical link is brought up.
type NetworkConfig struct {
	// Interface is the network interface that must hold an address (e.g. "wlan0").
	// Empty means any non-loopback interface.
	Interface string `yaml:"interface"`

	// WaitTimeout is how long to wait for the link to come up (seconds).
	WaitTimeout int `yaml:"wait_timeout"`

	// Supervisor optionally runs a link daemon (e.g. wpa_supplicant) as a child process.
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// TimeSyncCommand is run once after link-up (e.g. "chronyc waitsync 10").
	TimeSyncCommand []string `yaml:"time_sync_command"`
}

// SupervisorConfig configures a supervised link daemon.
type SupervisorConfig struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`

	// HealthInterval is how often the interface address is checked while the
	// daemon runs (seconds). Three failed checks in a row restart the daemon.
	// 0 disables the check.
	HealthInterval int `yaml:"health_interval"`
}

// SensorConfig describes one sensor bus or probe.
type SensorConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Active   bool   `yaml:"active"`
	Kind     string `yaml:"kind"`
	Location string `yaml:"location"`
	IDPrefix string `yaml:"id_prefix"`
	Unit     string `yaml:"unit"`

	OneWire OneWireConfig `yaml:"onewire"`
	Modbus  ModbusConfig  `yaml:"modbus"`
}

// OneWireConfig addresses a one-wire master on an I²C bus.
type OneWireConfig struct {
	I2CBus     string  `yaml:"i2c_bus"`
	I2CAddress uint16  `yaml:"i2c_address"`
	SettleMS   int     `yaml:"settle_ms"`
	Sentinel   float64 `yaml:"sentinel"`
}

// ModbusConfig addresses a Modbus slave and the registers to sample.
type ModbusConfig struct {
	Protocol   string        `yaml:"protocol"` // tcp | rtu
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	SerialPort string        `yaml:"serial_port"`
	BaudRate   int           `yaml:"baud_rate"`
	Parity     string        `yaml:"parity"`
	SlaveID    uint8         `yaml:"slave_id"`
	Timeout    int           `yaml:"timeout_ms"`
	Points     []ModbusPoint `yaml:"points"`
}

// ModbusPoint is a single register-backed value.
type ModbusPoint struct {
	Name     string  `yaml:"name"`
	Register string  `yaml:"register"` // holding | input
	Address  uint16  `yaml:"address"`
	Signed   bool    `yaml:"signed"`
	Scale    float64 `yaml:"scale"`
	Offset   float64 `yaml:"offset"`
	Unit     string  `yaml:"unit"`
}

// IndicatorConfig configures the optional status LED.
type IndicatorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Pin     string `yaml:"pin"`
}

// RestartConfig configures the restart primitive used after fatal startup failures.
type RestartConfig struct {
	Mode     string   `yaml:"mode"`
	Command  []string `yaml:"command"`
	ExitCode int      `yaml:"exit_code"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// JournalConfig contains the local SQLite journal settings.
type JournalConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	WALMode       bool   `yaml:"wal_mode"`
	BusyTimeout   int    `yaml:"busy_timeout"`
	RetentionDays int    `yaml:"retention_days"`
}

// APIConfig contains the local diagnostics HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYNODE_SECTION_KEY
// For example: GRAYNODE_MQTT_HOST, GRAYNODE_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applySensorDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the defaults of the reference node.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ID:       "node-001",
			Location: "Outdoor",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graynode",
			},
			QoS:       0,
			KeepAlive: 60,
		},
		Telemetry: TelemetryConfig{
			Topic:    "Sensors",
			Routing:  RoutingStatic,
			PacingMS: 500,
		},
		Schedule: ScheduleConfig{
			CycleInterval:       900,
			Cooldown:            10,
			LinkFailureDelay:    10,
			SessionFailureDelay: 30,
		},
		Network: NetworkConfig{
			WaitTimeout: 30,
		},
		Restart: RestartConfig{
			Mode:     RestartModeExit,
			ExitCode: 3,
		},
		Journal: JournalConfig{
			Path:          "./data/graynode.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 7,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applySensorDefaults fills per-sensor fields the YAML left empty.
func applySensorDefaults(cfg *Config) {
	for i := range cfg.Sensors {
		s := &cfg.Sensors[i]
		if s.Location == "" {
			s.Location = cfg.Node.Location
		}
		switch s.Type {
		case SensorTypeDS18B20:
			if s.Kind == "" {
				s.Kind = "DS18B20"
			}
			if s.Unit == "" {
				s.Unit = "C"
			}
			if s.IDPrefix == "" {
				s.IDPrefix = "temp"
			}
			if s.OneWire.I2CAddress == 0 {
				s.OneWire.I2CAddress = 0x18
			}
			if s.OneWire.SettleMS == 0 {
				s.OneWire.SettleMS = minSettleMS
			}
			if s.OneWire.Sentinel == 0 {
				s.OneWire.Sentinel = 85.0
			}
		case SensorTypeModbus:
			if s.Kind == "" {
				s.Kind = "Modbus"
			}
			if s.Modbus.Timeout == 0 {
				s.Modbus.Timeout = 1000
			}
			for j := range s.Modbus.Points {
				if s.Modbus.Points[j].Scale == 0 {
					s.Modbus.Points[j].Scale = 1
				}
				if s.Modbus.Points[j].Register == "" {
					s.Modbus.Points[j].Register = "holding"
				}
			}
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYNODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("GRAYNODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYNODE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYNODE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("GRAYNODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYNODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYNODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Journal
	if v := os.Getenv("GRAYNODE_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	// API
	if v := os.Getenv("GRAYNODE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Node.ID == "" {
		errs = append(errs, "node.id is required")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive <= 0 {
		errs = append(errs, "mqtt.keepalive must be positive")
	}

	// Telemetry validation
	switch c.Telemetry.Routing {
	case RoutingStatic:
		if c.Telemetry.Topic == "" {
			errs = append(errs, "telemetry.topic is required for static routing")
		}
	case RoutingPerKind:
	default:
		errs = append(errs, fmt.Sprintf("telemetry.routing %q must be %q or %q", c.Telemetry.Routing, RoutingStatic, RoutingPerKind))
	}
	if c.Telemetry.PacingMS < 0 || c.Telemetry.PacingMS > maxPacingMS {
		errs = append(errs, "telemetry.pacing_ms must be between 0 and 2000")
	}

	// Schedule validation
	if c.Schedule.CycleInterval <= 0 {
		errs = append(errs, "schedule.cycle_interval must be positive")
	}
	if c.Network.Supervisor.HealthInterval < 0 {
		errs = append(errs, "network.supervisor.health_interval must not be negative")
	}
	if c.Schedule.Cooldown < 0 || c.Schedule.LinkFailureDelay < 0 || c.Schedule.SessionFailureDelay < 0 {
		errs = append(errs, "schedule delays must not be negative")
	}

	errs = append(errs, c.validateSensors()...)

	if c.Indicator.Enabled && c.Indicator.Pin == "" {
		errs = append(errs, "indicator.pin is required when the indicator is enabled")
	}

	switch c.Restart.Mode {
	case RestartModeExit:
	case RestartModeCommand:
		if len(c.Restart.Command) == 0 {
			errs = append(errs, "restart.command is required for command mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("restart.mode %q must be %q or %q", c.Restart.Mode, RestartModeExit, RestartModeCommand))
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateSensors checks every sensor entry, active or not.
func (c *Config) validateSensors() []string {
	var errs []string
	names := make(map[string]bool, len(c.Sensors))

	for i, s := range c.Sensors {
		label := fmt.Sprintf("sensors[%d]", i)
		if s.Name == "" {
			errs = append(errs, label+".name is required")
		} else if names[s.Name] {
			errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", label, s.Name))
		}
		names[s.Name] = true

		switch s.Type {
		case SensorTypeDS18B20:
			if s.OneWire.SettleMS != 0 && s.OneWire.SettleMS < minSettleMS {
				errs = append(errs, fmt.Sprintf("%s.onewire.settle_ms must be at least %d", label, minSettleMS))
			}
		case SensorTypeModbus:
			switch s.Modbus.Protocol {
			case "tcp":
				if s.Modbus.Host == "" {
					errs = append(errs, label+".modbus.host is required for tcp")
				}
			case "rtu":
				if s.Modbus.SerialPort == "" {
					errs = append(errs, label+".modbus.serial_port is required for rtu")
				}
			default:
				errs = append(errs, fmt.Sprintf("%s.modbus.protocol %q must be tcp or rtu", label, s.Modbus.Protocol))
			}
			if len(s.Modbus.Points) == 0 {
				errs = append(errs, label+".modbus.points must not be empty")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s.type %q is not supported", label, s.Type))
		}
	}

	return errs
}

// ActiveSensors returns the sensors marked active, in configuration order.
func (c *Config) ActiveSensors() []SensorConfig {
	active := make([]SensorConfig, 0, len(c.Sensors))
	for _, s := range c.Sensors {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}

// GetCycleInterval returns the duty-cycle sleep as a Duration.
func (c *Config) GetCycleInterval() time.Duration {
	return time.Duration(c.Schedule.CycleInterval) * time.Second
}

// GetCooldown returns the post-error cooldown as a Duration.
func (c *Config) GetCooldown() time.Duration {
	return time.Duration(c.Schedule.Cooldown) * time.Second
}

// GetLinkFailureDelay returns the wait before restarting after a link failure.
func (c *Config) GetLinkFailureDelay() time.Duration {
	return time.Duration(c.Schedule.LinkFailureDelay) * time.Second
}

// GetSessionFailureDelay returns the wait before restarting after a session failure.
func (c *Config) GetSessionFailureDelay() time.Duration {
	return time.Duration(c.Schedule.SessionFailureDelay) * time.Second
}

// GetPacing returns the inter-publish pacing delay as a Duration.
func (c *Config) GetPacing() time.Duration {
	return time.Duration(c.Telemetry.PacingMS) * time.Millisecond
}

// GetSettle returns the one-wire settling delay as a Duration.
func (s SensorConfig) GetSettle() time.Duration {
	return time.Duration(s.OneWire.SettleMS) * time.Millisecond
}
