package mockrov

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skobkin/rovlink/internal/protocol"
)

func startServer(t *testing.T, opts Options) (*Server, *websocket.Conn) {
	t.Helper()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(opts)
	httpSrv := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.CloseAll()
		httpSrv.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(httpSrv.URL, "http")+"/", nil)
	if err != nil {
		t.Fatalf("dial mock: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return srv, conn
}

func send(t *testing.T, conn *websocket.Conn, msg protocol.Message) {
	t.Helper()
	raw, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil returns the first message of type want.
func readUntil(t *testing.T, conn *websocket.Conn, want protocol.Type) protocol.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		msg, err := protocol.Decode(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type == want {
			return msg
		}
	}
}

func TestServer_AnswersPingWithPong(t *testing.T) {
	_, conn := startServer(t, Options{})

	send(t, conn, protocol.NewPing(1234))
	msg := readUntil(t, conn, protocol.TypePong)
	if ts := msg.Payload.(protocol.Timestamp); ts.Timestamp != 1234 {
		t.Fatalf("expected echoed timestamp 1234, got %d", ts.Timestamp)
	}
}

func TestServer_ConfigRoundTrip(t *testing.T) {
	_, conn := startServer(t, Options{})

	cfg := DefaultVehicleConfig()
	cfg.FluidType = protocol.FluidFreshwater
	send(t, conn, protocol.NewSetConfig(cfg))
	readUntil(t, conn, protocol.TypeShowToast)

	send(t, conn, protocol.NewSignal(protocol.TypeGetConfig))
	msg := readUntil(t, conn, protocol.TypeConfig)
	if got := msg.Payload.(protocol.VehicleConfig).FluidType; got != protocol.FluidFreshwater {
		t.Fatalf("expected freshwater, got %q", got)
	}
}

func TestServer_StreamsTelemetry(t *testing.T) {
	_, conn := startServer(t, Options{TelemetryInterval: 10 * time.Millisecond})

	msg := readUntil(t, conn, protocol.TypeTelemetry)
	if tel := msg.Payload.(protocol.Telemetry); tel.ThrusterRPMs[7] != 60000 {
		t.Fatalf("unexpected telemetry: %#v", tel)
	}
}

func TestServer_ToggleFlipsStatus(t *testing.T) {
	_, conn := startServer(t, Options{})

	send(t, conn, protocol.NewSignal(protocol.TypeTogglePitchStabilization))
	msg := readUntil(t, conn, protocol.TypeStatusUpdate)
	if msg.Payload.(protocol.StatusUpdate).PitchStabilization {
		t.Fatalf("expected pitch stabilization to be switched off")
	}
}

func TestServer_SilentDropsReplies(t *testing.T) {
	srv, conn := startServer(t, Options{})
	srv.SetSilent(true)

	send(t, conn, protocol.NewPing(1))
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no frames while silent")
	}

	deadline := time.Now().Add(time.Second)
	for len(srv.Received()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected ping to be recorded while silent")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := srv.Received()[0].Type; got != protocol.TypePing {
		t.Fatalf("expected recorded ping, got %q", got)
	}
}
