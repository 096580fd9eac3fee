package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/skobkin/rovlink/internal/config"
	"github.com/skobkin/rovlink/internal/events"
	"github.com/skobkin/rovlink/internal/mockrov"
	"github.com/skobkin/rovlink/internal/protocol"
)

func startMockVehicle(t *testing.T) (*mockrov.Server, config.ConnectionConfig) {
	t.Helper()

	opts := mockrov.DefaultOptions()
	opts.TelemetryInterval = 20 * time.Millisecond
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	mock := mockrov.New(opts)
	srv := httptest.NewServer(mock)
	t.Cleanup(func() {
		mock.CloseAll()
		srv.Close()
	})

	host, portRaw, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("split %q: %v", srv.URL, err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	endpoint := config.Default().Connection
	endpoint.Host = host
	endpoint.Port = port

	return mock, endpoint
}

func fastRuntimeConfig(endpoint config.ConnectionConfig) config.AppConfig {
	cfg := config.Default()
	cfg.Connection = endpoint
	cfg.Link.HeartbeatIntervalMS = 50
	cfg.Link.LivenessTimeoutMS = 500
	cfg.Link.LivenessCheckMS = 20
	cfg.Link.ReconnectBackoffMS = 50
	cfg.Logging.Level = "error"

	return cfg
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func receivedType(mock *mockrov.Server, want protocol.Type) bool {
	for _, msg := range mock.Received() {
		if msg.Type == want {
			return true
		}
	}

	return false
}

func TestInitializeFallsBackToDefaultsOnCorruptConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFilename)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	rt, err := Initialize(context.Background(), Options{ConfigPath: path, Sender: newCollectingNotificationSender()})
	if err != nil {
		t.Fatalf("expected corrupt config to fall back to defaults, got %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	got := rt.CurrentConfig()
	if got.Connection.Host != config.DefaultHost || got.Connection.Port != config.DefaultPort {
		t.Fatalf("expected default endpoint, got %+v", got.Connection)
	}
	if got.Link.LivenessTimeoutMS != int(config.DefaultLivenessTimeout/time.Millisecond) {
		t.Fatalf("expected default liveness timeout, got %d", got.Link.LivenessTimeoutMS)
	}
}

func TestInitializeAppliesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFilename)
	rt, err := Initialize(context.Background(), Options{
		ConfigPath: path,
		Sender:     newCollectingNotificationSender(),
		Override: func(cfg *config.AppConfig) {
			cfg.Connection.Host = "192.168.2.2"
			cfg.Connection.Port = 81
		},
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	endpoint, _ := rt.Endpoints.Current()
	if endpoint.Target() != "192.168.2.2:81" {
		t.Fatalf("expected overridden endpoint, got %q", endpoint.Target())
	}

	// Overrides survive a save that tries to move the endpoint elsewhere.
	cfg := rt.CurrentConfig()
	cfg.Connection.Host = "10.0.0.1"
	if err := rt.SaveAndApplyConfig(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := rt.CurrentConfig().Connection.Host; got != "192.168.2.2" {
		t.Fatalf("expected override to win, got %q", got)
	}
}

func TestInitializeReplacesInvalidSectionsAndStarts(t *testing.T) {
	defaultLink := config.Default().Link

	tests := []struct {
		name      string
		raw       string
		wantLevel string
	}{
		{
			name:      "unknown log level",
			raw:       `{"connection":{"host":"%s","port":%d},"logging":{"level":"verbose"}}`,
			wantLevel: "info",
		},
		{
			name:      "heartbeat slower than liveness timeout",
			raw:       `{"connection":{"host":"%s","port":%d},"link":{"heartbeat_interval_ms":10000,"liveness_timeout_ms":300},"logging":{"level":"error"}}`,
			wantLevel: "error",
		},
	}

	for _, tc := range tests {
		mock, endpoint := startMockVehicle(t)
		path := filepath.Join(t.TempDir(), ConfigFilename)
		raw := fmt.Sprintf(tc.raw, endpoint.Host, endpoint.Port)
		if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
			t.Fatalf("%s: write config: %v", tc.name, err)
		}

		rt, err := Initialize(context.Background(), Options{ConfigPath: path, Sender: newCollectingNotificationSender()})
		if err != nil {
			t.Fatalf("%s: expected startup with defaults, got %v", tc.name, err)
		}

		got := rt.CurrentConfig()
		if err := got.Validate(); err != nil {
			_ = rt.Close()
			t.Fatalf("%s: expected a valid running config, got %v", tc.name, err)
		}
		if got.Logging.Level != tc.wantLevel {
			_ = rt.Close()
			t.Fatalf("%s: expected level %q, got %q", tc.name, tc.wantLevel, got.Logging.Level)
		}
		if got.Link.HeartbeatIntervalMS != defaultLink.HeartbeatIntervalMS || got.Link.LivenessTimeoutMS != defaultLink.LivenessTimeoutMS {
			_ = rt.Close()
			t.Fatalf("%s: expected default link timing, got %+v", tc.name, got.Link)
		}
		if got.Connection.Target() != endpoint.Target() {
			_ = rt.Close()
			t.Fatalf("%s: expected endpoint %q kept, got %q", tc.name, endpoint.Target(), got.Connection.Target())
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- rt.Run(ctx) }()
		waitUntil(t, tc.name+": handshake", func() bool { return receivedType(mock, protocol.TypeHello) })
		cancel()
		<-done
		_ = rt.Close()
	}
}

func TestInitializeKeepsRunningWhenLogFileCannotOpen(t *testing.T) {
	dir := t.TempDir()
	// A directory where the log file should be makes opening it fail.
	if err := os.Mkdir(filepath.Join(dir, LogFilename), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, ConfigFilename)
	cfg := config.Default()
	cfg.Logging.LogToFile = true
	cfg.Logging.Level = "error"
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	rt, err := Initialize(context.Background(), Options{ConfigPath: path, Sender: newCollectingNotificationSender()})
	if err != nil {
		t.Fatalf("expected startup without file logging, got %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	if rt.CurrentConfig().Logging.LogToFile {
		t.Fatalf("expected file logging to be switched off")
	}
}

func TestSaveAndApplyConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFilename)
	rt, err := Initialize(context.Background(), Options{ConfigPath: path, Sender: newCollectingNotificationSender()})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	cfg := rt.CurrentConfig()
	cfg.Connection.Connector = "carrier-pigeon"
	if err := rt.SaveAndApplyConfig(cfg); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected nothing to be saved, stat error: %v", err)
	}
	if got := rt.CurrentConfig().Connection.Connector; got != config.ConnectorWebSocket {
		t.Fatalf("expected connector to stay websocket, got %q", got)
	}
}

func TestRuntimeDrivesVehicleLink(t *testing.T) {
	mockA, endpointA := startMockVehicle(t)
	mockB, endpointB := startMockVehicle(t)

	path := filepath.Join(t.TempDir(), ConfigFilename)
	if err := config.Save(path, fastRuntimeConfig(endpointA)); err != nil {
		t.Fatalf("save config: %v", err)
	}

	sender := newCollectingNotificationSender()
	rt, err := Initialize(context.Background(), Options{ConfigPath: path, Sender: sender})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	waitUntil(t, "connected snapshot with telemetry", func() bool {
		snap := rt.VehicleState.Snapshot()
		return snap.ConnectionKnown && snap.Connection.State == events.ConnectionStateConnected && snap.Telemetry != nil
	})

	waitUntil(t, "vehicle config", func() bool {
		rt.Commands.RequestConfig()
		return rt.VehicleState.Snapshot().Config != nil
	})
	if !receivedType(mockA, protocol.TypeGetConfig) {
		t.Fatalf("expected vehicle A to receive getConfig")
	}
	if !receivedType(mockA, protocol.TypeMovementCommand) {
		t.Fatalf("expected sampler to stream movement commands")
	}

	got := sender.waitForCount(t, 1)
	if got[0].Title != "WebSocket - connected" || got[0].Content != endpointA.Target() {
		t.Fatalf("unexpected notification: %+v", got[0])
	}

	cfg := rt.CurrentConfig()
	cfg.Connection = endpointB
	if err := rt.SaveAndApplyConfig(cfg); err != nil {
		t.Fatalf("save and apply: %v", err)
	}
	waitUntil(t, "switch to vehicle B", func() bool {
		snap := rt.VehicleState.Snapshot()
		return mockB.Accepted() >= 1 && snap.Connection.State == events.ConnectionStateConnected && snap.Connection.Target == endpointB.Target()
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("runtime did not stop")
	}
}

func TestRuntimeHotReloadsEndpointFromDisk(t *testing.T) {
	_, endpointA := startMockVehicle(t)
	mockB, endpointB := startMockVehicle(t)

	path := filepath.Join(t.TempDir(), ConfigFilename)
	cfg := fastRuntimeConfig(endpointA)
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	rt, err := Initialize(context.Background(), Options{ConfigPath: path, Sender: newCollectingNotificationSender()})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = rt.Run(ctx) }()

	waitUntil(t, "first connection", func() bool {
		return rt.VehicleState.Snapshot().Connection.State == events.ConnectionStateConnected
	})

	// Give the watcher time to register before editing behind its back.
	time.Sleep(100 * time.Millisecond)
	cfg.Connection = endpointB
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	waitUntil(t, "reconnect to vehicle B", func() bool {
		return mockB.Accepted() >= 1
	})
	if endpoint, _ := rt.Endpoints.Current(); endpoint.Target() != endpointB.Target() {
		t.Fatalf("expected endpoint %q, got %q", endpointB.Target(), endpoint.Target())
	}
}
