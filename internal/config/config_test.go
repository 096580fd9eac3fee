package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAppConfigFillMissingDefaults(t *testing.T) {
	cfg := AppConfig{}
	cfg.FillMissingDefaults()

	if cfg.Connection.Connector != ConnectorWebSocket {
		t.Fatalf("expected default connector %q, got %q", ConnectorWebSocket, cfg.Connection.Connector)
	}
	if cfg.Connection.Port != DefaultPort {
		t.Fatalf("expected default port %d, got %d", DefaultPort, cfg.Connection.Port)
	}
	if cfg.Connection.SerialBaud != DefaultSerialBaud {
		t.Fatalf("expected default serial baud %d, got %d", DefaultSerialBaud, cfg.Connection.SerialBaud)
	}
	if cfg.Link.HeartbeatInterval() != DefaultHeartbeatInterval {
		t.Fatalf("expected default heartbeat interval %s, got %s", DefaultHeartbeatInterval, cfg.Link.HeartbeatInterval())
	}
	if cfg.Link.LivenessTimeout() != DefaultLivenessTimeout {
		t.Fatalf("expected default liveness timeout %s, got %s", DefaultLivenessTimeout, cfg.Link.LivenessTimeout())
	}
	if cfg.Link.ReconnectBackoff() != DefaultReconnectBackoff {
		t.Fatalf("expected default backoff %s, got %s", DefaultReconnectBackoff, cfg.Link.ReconnectBackoff())
	}
	if cfg.Input.SampleInterval() != DefaultSampleInterval {
		t.Fatalf("expected default sample interval %s, got %s", DefaultSampleInterval, cfg.Input.SampleInterval())
	}
	if cfg.Input.DeadZone != DefaultDeadZone {
		t.Fatalf("expected default dead zone %v, got %v", DefaultDeadZone, cfg.Input.DeadZone)
	}
	if cfg.Input.Keyboard != DefaultKeyboardBindings() {
		t.Fatalf("expected default keyboard bindings, got %+v", cfg.Input.Keyboard)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Logging.Level)
	}
}

func TestAppConfigFillMissingDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := AppConfig{
		Connection: ConnectionConfig{Connector: " TCP ", Host: " 192.168.2.2 ", Port: 7000},
		Link:       LinkConfig{HeartbeatIntervalMS: 500},
		Input: InputConfig{
			DeadZone:   0.1,
			Keyboard:   KeyboardBindings{MoveForward: "ArrowUp"},
			Controller: ControllerBindings{Movement: ControlSourceDPad, PitchYaw: "bogus"},
		},
	}
	cfg.FillMissingDefaults()

	if cfg.Connection.Connector != ConnectorTCP {
		t.Fatalf("expected connector to normalize to tcp, got %q", cfg.Connection.Connector)
	}
	if cfg.Connection.Host != "192.168.2.2" {
		t.Fatalf("expected trimmed host, got %q", cfg.Connection.Host)
	}
	if cfg.Connection.Port != 7000 {
		t.Fatalf("expected port 7000, got %d", cfg.Connection.Port)
	}
	if cfg.Link.HeartbeatIntervalMS != 500 {
		t.Fatalf("expected heartbeat 500ms, got %d", cfg.Link.HeartbeatIntervalMS)
	}
	if cfg.Input.DeadZone != 0.1 {
		t.Fatalf("expected dead zone 0.1, got %v", cfg.Input.DeadZone)
	}
	if cfg.Input.Keyboard.MoveForward != "ArrowUp" {
		t.Fatalf("expected explicit binding to stay, got %q", cfg.Input.Keyboard.MoveForward)
	}
	if cfg.Input.Keyboard.MoveBackward != "KeyS" {
		t.Fatalf("expected missing binding to default to KeyS, got %q", cfg.Input.Keyboard.MoveBackward)
	}
	if cfg.Input.Controller.Movement != ControlSourceDPad {
		t.Fatalf("expected dpad movement source, got %q", cfg.Input.Controller.Movement)
	}
	if cfg.Input.Controller.PitchYaw != ControlSourceRightStick {
		t.Fatalf("expected invalid source to fall back to right stick, got %q", cfg.Input.Controller.PitchYaw)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load missing config: %v", err)
	}
	if cfg.Connection.Host != DefaultHost {
		t.Fatalf("expected default host, got %q", cfg.Connection.Host)
	}
}

func TestLoadOrDefaultFallsBackOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected load error for corrupt config")
	}

	cfg, err := LoadOrDefault(path)
	if err == nil {
		t.Fatalf("expected corrupt config to be reported")
	}
	if cfg != Default() {
		t.Fatalf("expected defaults for corrupt config, got %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
[connection]
connector = "tcp"
host = "192.168.0.42"
port = 9000

[link]
liveness_timeout_ms = 10000
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load toml config: %v", err)
	}
	if cfg.Connection.Connector != ConnectorTCP || cfg.Connection.Host != "192.168.0.42" || cfg.Connection.Port != 9000 {
		t.Fatalf("unexpected connection config: %+v", cfg.Connection)
	}
	if cfg.Link.LivenessTimeout() != 10*time.Second {
		t.Fatalf("expected 10s liveness timeout, got %s", cfg.Link.LivenessTimeout())
	}
	if cfg.Link.HeartbeatInterval() != DefaultHeartbeatInterval {
		t.Fatalf("expected default heartbeat interval, got %s", cfg.Link.HeartbeatInterval())
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.toml"} {
		path := filepath.Join(t.TempDir(), name)
		cfg := Default()
		cfg.Connection.Host = "192.168.1.77"
		cfg.Input.Keyboard.YawLeft = "ArrowLeft"

		if err := Save(path, cfg); err != nil {
			t.Fatalf("%s: save config: %v", name, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("%s: load config: %v", name, err)
		}
		if got != cfg {
			t.Fatalf("%s: expected %+v, got %+v", name, cfg, got)
		}
	}
}

func TestAppConfigValidate(t *testing.T) {
	valid := Default()

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*AppConfig) {}},
		{name: "tcp", mutate: func(c *AppConfig) { c.Connection.Connector = ConnectorTCP }},
		{name: "missing host", mutate: func(c *AppConfig) { c.Connection.Host = "" }, wantErr: true},
		{name: "port out of range", mutate: func(c *AppConfig) { c.Connection.Port = 70000 }, wantErr: true},
		{
			name: "serial",
			mutate: func(c *AppConfig) {
				c.Connection.Connector = ConnectorSerial
				c.Connection.Host = "/dev/ttyUSB0"
			},
		},
		{
			name: "serial without baud",
			mutate: func(c *AppConfig) {
				c.Connection.Connector = ConnectorSerial
				c.Connection.Host = "/dev/ttyUSB0"
				c.Connection.SerialBaud = 0
			},
			wantErr: true,
		},
		{name: "unknown connector", mutate: func(c *AppConfig) { c.Connection.Connector = "usb" }, wantErr: true},
		{
			name: "heartbeat slower than liveness timeout",
			mutate: func(c *AppConfig) {
				c.Link.HeartbeatIntervalMS = 8000
				c.Link.LivenessTimeoutMS = 5000
			},
			wantErr: true,
		},
		{name: "upper case log level", mutate: func(c *AppConfig) { c.Logging.Level = " WARN " }},
		{name: "unknown log level", mutate: func(c *AppConfig) { c.Logging.Level = "verbose" }, wantErr: true},
	}

	for _, tc := range tests {
		cfg := valid
		tc.mutate(&cfg)
		err := cfg.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: expected no error, got %v", tc.name, err)
		}
	}
}

func TestAppConfigSanitizeResetsOnlyInvalidSections(t *testing.T) {
	cfg := Default()
	cfg.Connection.Host = "10.0.0.7"
	cfg.Link.HeartbeatIntervalMS = 10000
	cfg.Link.LivenessTimeoutMS = 300
	cfg.Logging.Level = "verbose"
	cfg.Logging.LogToFile = true

	replaced := cfg.Sanitize()
	if len(replaced) != 2 {
		t.Fatalf("expected 2 replaced sections, got %v", replaced)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected sanitized config to validate, got %v", err)
	}
	if cfg.Link != Default().Link {
		t.Fatalf("expected default link timing, got %+v", cfg.Link)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.LogToFile {
		t.Fatalf("expected level reset with file logging kept, got %+v", cfg.Logging)
	}
	if cfg.Connection.Host != "10.0.0.7" {
		t.Fatalf("expected valid connection kept, got %q", cfg.Connection.Host)
	}

	if again := cfg.Sanitize(); len(again) != 0 {
		t.Fatalf("expected nothing left to replace, got %v", again)
	}
}

func TestConnectionConfigSameTarget(t *testing.T) {
	base := ConnectionConfig{Connector: ConnectorWebSocket, Host: "10.0.0.1", Port: 5000, StreamPort: 8889}

	tests := []struct {
		name  string
		other ConnectionConfig
		want  bool
	}{
		{name: "identical", other: base, want: true},
		{name: "stream port only", other: ConnectionConfig{Connector: ConnectorWebSocket, Host: "10.0.0.1", Port: 5000, StreamPort: 9999}, want: true},
		{name: "host case", other: ConnectionConfig{Connector: ConnectorWebSocket, Host: "10.0.0.1 ", Port: 5000}, want: true},
		{name: "host", other: ConnectionConfig{Connector: ConnectorWebSocket, Host: "10.0.0.2", Port: 5000}, want: false},
		{name: "port", other: ConnectionConfig{Connector: ConnectorWebSocket, Host: "10.0.0.1", Port: 5001}, want: false},
		{name: "connector", other: ConnectionConfig{Connector: ConnectorTCP, Host: "10.0.0.1", Port: 5000}, want: false},
	}

	for _, tc := range tests {
		if got := base.SameTarget(tc.other); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestConnectionConfigTarget(t *testing.T) {
	if got := (ConnectionConfig{Connector: ConnectorWebSocket, Host: "10.0.0.1", Port: 5000}).Target(); got != "10.0.0.1:5000" {
		t.Fatalf("expected host:port target, got %q", got)
	}
	if got := (ConnectionConfig{Connector: ConnectorSerial, Host: "/dev/ttyUSB0", Port: 5000}).Target(); got != "/dev/ttyUSB0" {
		t.Fatalf("expected device path target, got %q", got)
	}
	if got := (ConnectionConfig{Connector: ConnectorTCP}).Target(); got != "" {
		t.Fatalf("expected empty target, got %q", got)
	}
}

func TestWatcherReportsChangedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	initial := Default()
	if err := Save(path, initial); err != nil {
		t.Fatalf("save initial config: %v", err)
	}

	changes := make(chan AppConfig, 4)
	w := NewWatcher(path, nil, func(cfg AppConfig) { changes <- cfg })
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	next := initial
	next.Connection.Host = "192.168.50.5"
	if err := Save(path, next); err != nil {
		t.Fatalf("save updated config: %v", err)
	}

	select {
	case got := <-changes:
		if got.Connection.Host != "192.168.50.5" {
			t.Fatalf("expected reloaded host 192.168.50.5, got %q", got.Connection.Host)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for config change")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watcher returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop after cancel")
	}
}

func TestWatcherKeepsCurrentConfigOnCorruptWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, Default()); err != nil {
		t.Fatalf("save initial config: %v", err)
	}

	changes := make(chan AppConfig, 4)
	w := NewWatcher(path, nil, func(cfg AppConfig) { changes <- cfg })
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write corrupt config: %v", err)
	}

	select {
	case got := <-changes:
		t.Fatalf("expected no callback for corrupt config, got %+v", got)
	case <-time.After(300 * time.Millisecond):
	}
}
