package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ConnectorType identifies which transport backend should be used.
type ConnectorType string

// ControlSource names a gamepad control cluster that can drive a pair of axes.
type ControlSource string

const (
	ConnectorWebSocket ConnectorType = "websocket"
	ConnectorTCP       ConnectorType = "tcp"
	ConnectorSerial    ConnectorType = "serial"

	ControlSourceLeftStick   ControlSource = "left_stick"
	ControlSourceRightStick  ControlSource = "right_stick"
	ControlSourceDPad        ControlSource = "dpad"
	ControlSourceFaceButtons ControlSource = "face_buttons"

	DefaultHost       = "10.10.10.10"
	DefaultPort       = 5000
	DefaultStreamPort = 8889
	DefaultSerialBaud = 115200

	DefaultHeartbeatInterval = 2 * time.Second
	DefaultLivenessTimeout   = 6 * time.Second
	DefaultLivenessCheck     = 250 * time.Millisecond
	DefaultReconnectBackoff  = 3 * time.Second
	DefaultConnectTimeout    = 5 * time.Second
	DefaultWriteTimeout      = 2 * time.Second
	DefaultOutboxCapacity    = 16

	DefaultSampleInterval = 16 * time.Millisecond
	DefaultPollTimeout    = 8 * time.Millisecond
	DefaultDeadZone       = 0.05
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level" toml:"level"`
	LogToFile bool   `json:"log_to_file" toml:"log_to_file"`
}

// ConnectionConfig identifies the vehicle endpoint. Host is a device path for
// the serial connector.
type ConnectionConfig struct {
	Connector  ConnectorType `json:"connector" toml:"connector"`
	Host       string        `json:"host" toml:"host"`
	Port       int           `json:"port" toml:"port"`
	SerialBaud int           `json:"serial_baud" toml:"serial_baud"`
	StreamPort int           `json:"stream_port" toml:"stream_port"`
}

// LinkConfig holds control-link timing. All values are milliseconds.
type LinkConfig struct {
	HeartbeatIntervalMS int `json:"heartbeat_interval_ms" toml:"heartbeat_interval_ms"`
	LivenessTimeoutMS   int `json:"liveness_timeout_ms" toml:"liveness_timeout_ms"`
	LivenessCheckMS     int `json:"liveness_check_ms" toml:"liveness_check_ms"`
	ReconnectBackoffMS  int `json:"reconnect_backoff_ms" toml:"reconnect_backoff_ms"`
	ConnectTimeoutMS    int `json:"connect_timeout_ms" toml:"connect_timeout_ms"`
	WriteTimeoutMS      int `json:"write_timeout_ms" toml:"write_timeout_ms"`
	OutboxCapacity      int `json:"outbox_capacity" toml:"outbox_capacity"`
}

// KeyboardBindings maps logical axis directions to key codes (KeyW, Space, ShiftLeft...).
type KeyboardBindings struct {
	MoveForward  string `json:"move_forward" toml:"move_forward"`
	MoveBackward string `json:"move_backward" toml:"move_backward"`
	MoveLeft     string `json:"move_left" toml:"move_left"`
	MoveRight    string `json:"move_right" toml:"move_right"`
	MoveUp       string `json:"move_up" toml:"move_up"`
	MoveDown     string `json:"move_down" toml:"move_down"`
	PitchUp      string `json:"pitch_up" toml:"pitch_up"`
	PitchDown    string `json:"pitch_down" toml:"pitch_down"`
	YawLeft      string `json:"yaw_left" toml:"yaw_left"`
	YawRight     string `json:"yaw_right" toml:"yaw_right"`
	RollLeft     string `json:"roll_left" toml:"roll_left"`
	RollRight    string `json:"roll_right" toml:"roll_right"`
}

// ControllerBindings maps gamepad controls to logical axes. Button fields hold
// standard gamepad button indices ("0".."16").
type ControllerBindings struct {
	Movement  ControlSource `json:"movement" toml:"movement"`
	PitchYaw  ControlSource `json:"pitch_yaw" toml:"pitch_yaw"`
	MoveUp    string        `json:"move_up" toml:"move_up"`
	MoveDown  string        `json:"move_down" toml:"move_down"`
	RollLeft  string        `json:"roll_left" toml:"roll_left"`
	RollRight string        `json:"roll_right" toml:"roll_right"`
}

// InputConfig controls command sampling and device bindings.
type InputConfig struct {
	SampleIntervalMS int                `json:"sample_interval_ms" toml:"sample_interval_ms"`
	PollTimeoutMS    int                `json:"poll_timeout_ms" toml:"poll_timeout_ms"`
	DeadZone         float64            `json:"dead_zone" toml:"dead_zone"`
	Keyboard         KeyboardBindings   `json:"keyboard" toml:"keyboard"`
	Controller       ControllerBindings `json:"controller" toml:"controller"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	Enabled           bool                     `json:"enabled" toml:"enabled"`
	NotifyWhenFocused bool                     `json:"notify_when_focused" toml:"notify_when_focused"`
	Events            NotificationEventsConfig `json:"events" toml:"events"`
}

// NotificationEventsConfig stores per-event notification toggles.
type NotificationEventsConfig struct {
	ConnectionStatus bool `json:"connection_status" toml:"connection_status"`
	VehicleToast     bool `json:"vehicle_toast" toml:"vehicle_toast"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection    ConnectionConfig   `json:"connection" toml:"connection"`
	Link          LinkConfig         `json:"link" toml:"link"`
	Input         InputConfig        `json:"input" toml:"input"`
	Logging       LoggingConfig      `json:"logging" toml:"logging"`
	Notifications NotificationConfig `json:"notifications" toml:"notifications"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:  ConnectorWebSocket,
			Host:       DefaultHost,
			Port:       DefaultPort,
			SerialBaud: DefaultSerialBaud,
			StreamPort: DefaultStreamPort,
		},
		Link: LinkConfig{
			HeartbeatIntervalMS: int(DefaultHeartbeatInterval / time.Millisecond),
			LivenessTimeoutMS:   int(DefaultLivenessTimeout / time.Millisecond),
			LivenessCheckMS:     int(DefaultLivenessCheck / time.Millisecond),
			ReconnectBackoffMS:  int(DefaultReconnectBackoff / time.Millisecond),
			ConnectTimeoutMS:    int(DefaultConnectTimeout / time.Millisecond),
			WriteTimeoutMS:      int(DefaultWriteTimeout / time.Millisecond),
			OutboxCapacity:      DefaultOutboxCapacity,
		},
		Input: InputConfig{
			SampleIntervalMS: int(DefaultSampleInterval / time.Millisecond),
			PollTimeoutMS:    int(DefaultPollTimeout / time.Millisecond),
			DeadZone:         DefaultDeadZone,
			Keyboard:         DefaultKeyboardBindings(),
			Controller:       DefaultControllerBindings(),
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Events: NotificationEventsConfig{
				ConnectionStatus: true,
				VehicleToast:     true,
			},
		},
	}
}

func DefaultKeyboardBindings() KeyboardBindings {
	return KeyboardBindings{
		MoveForward:  "KeyW",
		MoveBackward: "KeyS",
		MoveLeft:     "KeyA",
		MoveRight:    "KeyD",
		MoveUp:       "Space",
		MoveDown:     "ShiftLeft",
		PitchUp:      "KeyI",
		PitchDown:    "KeyK",
		YawLeft:      "KeyQ",
		YawRight:     "KeyE",
		RollLeft:     "KeyJ",
		RollRight:    "KeyL",
	}
}

func DefaultControllerBindings() ControllerBindings {
	return ControllerBindings{
		Movement:  ControlSourceLeftStick,
		PitchYaw:  ControlSourceRightStick,
		MoveUp:    "7",
		MoveDown:  "6",
		RollLeft:  "4",
		RollRight: "5",
	}
}

// Load reads a JSON config, or TOML when the file has a .toml extension, and
// layers it on top of the defaults. A missing file yields defaults.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if isTOML(cleanPath) {
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("decode config toml: %w", err)
		}
	} else if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

// LoadOrDefault never fails the caller: a config that cannot be read or
// decoded is replaced by defaults, and the problem is returned for logging.
func LoadOrDefault(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return Default(), err
	}

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	def := Default()

	if c.Connection.Connector == "" {
		c.Connection.Connector = def.Connection.Connector
	}
	c.Connection.Connector = ConnectorType(strings.ToLower(strings.TrimSpace(string(c.Connection.Connector))))
	c.Connection.Host = strings.TrimSpace(c.Connection.Host)
	if c.Connection.Port == 0 {
		c.Connection.Port = def.Connection.Port
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = def.Connection.SerialBaud
	}
	if c.Connection.StreamPort <= 0 {
		c.Connection.StreamPort = def.Connection.StreamPort
	}

	fillPositive(&c.Link.HeartbeatIntervalMS, def.Link.HeartbeatIntervalMS)
	fillPositive(&c.Link.LivenessTimeoutMS, def.Link.LivenessTimeoutMS)
	fillPositive(&c.Link.LivenessCheckMS, def.Link.LivenessCheckMS)
	fillPositive(&c.Link.ReconnectBackoffMS, def.Link.ReconnectBackoffMS)
	fillPositive(&c.Link.ConnectTimeoutMS, def.Link.ConnectTimeoutMS)
	fillPositive(&c.Link.WriteTimeoutMS, def.Link.WriteTimeoutMS)
	fillPositive(&c.Link.OutboxCapacity, def.Link.OutboxCapacity)

	fillPositive(&c.Input.SampleIntervalMS, def.Input.SampleIntervalMS)
	fillPositive(&c.Input.PollTimeoutMS, def.Input.PollTimeoutMS)
	if c.Input.DeadZone < 0 || c.Input.DeadZone >= 1 {
		c.Input.DeadZone = def.Input.DeadZone
	}
	c.Input.Keyboard = fillKeyboardBindings(c.Input.Keyboard, def.Input.Keyboard)
	c.Input.Controller = fillControllerBindings(c.Input.Controller, def.Input.Controller)

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

func fillPositive(v *int, fallback int) {
	if *v <= 0 {
		*v = fallback
	}
}

func fillString(v *string, fallback string) {
	if strings.TrimSpace(*v) == "" {
		*v = fallback
	}
}

func fillKeyboardBindings(b, def KeyboardBindings) KeyboardBindings {
	fillString(&b.MoveForward, def.MoveForward)
	fillString(&b.MoveBackward, def.MoveBackward)
	fillString(&b.MoveLeft, def.MoveLeft)
	fillString(&b.MoveRight, def.MoveRight)
	fillString(&b.MoveUp, def.MoveUp)
	fillString(&b.MoveDown, def.MoveDown)
	fillString(&b.PitchUp, def.PitchUp)
	fillString(&b.PitchDown, def.PitchDown)
	fillString(&b.YawLeft, def.YawLeft)
	fillString(&b.YawRight, def.YawRight)
	fillString(&b.RollLeft, def.RollLeft)
	fillString(&b.RollRight, def.RollRight)

	return b
}

func fillControllerBindings(b, def ControllerBindings) ControllerBindings {
	b.Movement = normalizeControlSource(b.Movement, def.Movement)
	b.PitchYaw = normalizeControlSource(b.PitchYaw, def.PitchYaw)
	fillString(&b.MoveUp, def.MoveUp)
	fillString(&b.MoveDown, def.MoveDown)
	fillString(&b.RollLeft, def.RollLeft)
	fillString(&b.RollRight, def.RollRight)

	return b
}

func normalizeControlSource(src, fallback ControlSource) ControlSource {
	switch src {
	case ControlSourceLeftStick, ControlSourceRightStick, ControlSourceDPad, ControlSourceFaceButtons:
		return src
	default:
		return fallback
	}
}

func (c AppConfig) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.Link.Validate(); err != nil {
		return err
	}

	return c.Logging.Validate()
}

// Sanitize resets every invalid section to its default and returns one error
// per section it replaced.
func (c *AppConfig) Sanitize() []error {
	defaults := Default()
	var replaced []error
	if err := c.Connection.Validate(); err != nil {
		c.Connection = defaults.Connection
		replaced = append(replaced, fmt.Errorf("connection: %w", err))
	}
	if err := c.Link.Validate(); err != nil {
		c.Link = defaults.Link
		replaced = append(replaced, fmt.Errorf("link: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		c.Logging.Level = defaults.Logging.Level
		replaced = append(replaced, fmt.Errorf("logging: %w", err))
	}

	return replaced
}

func (c ConnectionConfig) Validate() error {
	switch c.Connector {
	case ConnectorWebSocket, ConnectorTCP:
		if strings.TrimSpace(c.Host) == "" {
			return errors.New("host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("port must be in 1..65535: %d", c.Port)
		}
	case ConnectorSerial:
		if strings.TrimSpace(c.Host) == "" {
			return errors.New("serial device path is required")
		}
		if c.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Connector)
	}

	return nil
}

func (c LinkConfig) Validate() error {
	if c.HeartbeatIntervalMS >= c.LivenessTimeoutMS {
		return errors.New("link.heartbeat_interval_ms must be lower than link.liveness_timeout_ms")
	}

	return nil
}

// Validate accepts the level names the logging package understands.
func (c LoggingConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("unsupported log level: %q", c.Level)
	}
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var (
		raw []byte
		err error
	)
	if isTOML(path) {
		raw, err = toml.Marshal(cfg)
	} else {
		raw, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Target renders the endpoint for status display and logs.
func (c ConnectionConfig) Target() string {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return ""
	}
	if c.Connector == ConnectorSerial {
		return host
	}

	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// SameTarget reports whether both configs point at the same peer. Fields that
// don't affect where the link dials are ignored.
func (c ConnectionConfig) SameTarget(other ConnectionConfig) bool {
	if c.Connector != other.Connector {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(c.Host), strings.TrimSpace(other.Host)) {
		return false
	}
	if c.Connector == ConnectorSerial {
		return c.SerialBaud == other.SerialBaud
	}

	return c.Port == other.Port
}

func (l LinkConfig) HeartbeatInterval() time.Duration { return millis(l.HeartbeatIntervalMS) }
func (l LinkConfig) LivenessTimeout() time.Duration   { return millis(l.LivenessTimeoutMS) }
func (l LinkConfig) LivenessCheck() time.Duration     { return millis(l.LivenessCheckMS) }
func (l LinkConfig) ReconnectBackoff() time.Duration  { return millis(l.ReconnectBackoffMS) }
func (l LinkConfig) ConnectTimeout() time.Duration    { return millis(l.ConnectTimeoutMS) }
func (l LinkConfig) WriteTimeout() time.Duration      { return millis(l.WriteTimeoutMS) }

func (i InputConfig) SampleInterval() time.Duration { return millis(i.SampleIntervalMS) }
func (i InputConfig) PollTimeout() time.Duration    { return millis(i.PollTimeoutMS) }

func millis(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
