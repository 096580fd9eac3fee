// Package mockrov is a bench stand-in for the vehicle endpoint. It speaks the
// same websocket protocol, streams synthetic telemetry and can be told to go
// silent to exercise liveness handling.
package mockrov

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skobkin/rovlink/internal/protocol"
)

const (
	DefaultTelemetryInterval = 50 * time.Millisecond
	DefaultStatusInterval    = 500 * time.Millisecond
	DefaultFirmwareVersion   = "mock-1.0.0"

	sendBuffer   = 64
	writeTimeout = 2 * time.Second
	maxRecorded  = 4096
)

// Options tune the server. Zero intervals disable the matching stream.
type Options struct {
	TelemetryInterval time.Duration
	StatusInterval    time.Duration
	HeartbeatInterval time.Duration
	FirmwareVersion   string
	Logger            *slog.Logger
}

// DefaultOptions streams telemetry and status like a real vehicle.
func DefaultOptions() Options {
	return Options{
		TelemetryInterval: DefaultTelemetryInterval,
		StatusInterval:    DefaultStatusInterval,
		FirmwareVersion:   DefaultFirmwareVersion,
	}
}

type Server struct {
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
	started  time.Time
	silent   atomic.Bool

	mu       sync.Mutex
	peers    map[*peer]struct{}
	accepted int
	received []protocol.Message
	vehicle  protocol.VehicleConfig
	status   protocol.StatusUpdate
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FirmwareVersion == "" {
		opts.FirmwareVersion = DefaultFirmwareVersion
	}

	return &Server{
		opts:   opts,
		logger: opts.Logger.With("component", "mockrov"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		started: time.Now(),
		peers:   make(map[*peer]struct{}),
		vehicle: DefaultVehicleConfig(),
		status: protocol.StatusUpdate{
			PitchStabilization: true,
			RollStabilization:  true,
			DepthStabilization: true,
			BatteryPercentage:  87,
		},
	}
}

// SetSilent stops every outbound frame, replies included, without closing
// the socket.
func (s *Server) SetSilent(silent bool) {
	s.silent.Store(silent)
	s.logger.Info("silence toggled", "silent", silent)
}

// Received returns a copy of the recently decoded client messages.
func (s *Server) Received() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]protocol.Message(nil), s.received...)
}

// Accepted counts websocket connections accepted since start.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accepted
}

// Broadcast sends msg to every connected client.
func (s *Server) Broadcast(msg protocol.Message) error {
	raw, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	for _, p := range s.snapshotPeers() {
		p.enqueue(raw)
	}

	return nil
}

// CloseAll drops every client connection.
func (s *Server) CloseAll() {
	for _, p := range s.snapshotPeers() {
		p.close()
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	p := &peer{
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.accepted++
	s.mu.Unlock()
	s.logger.Info("client connected", "remote", conn.RemoteAddr().String())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go p.writeLoop(ctx)
	go p.streamLoop(ctx)
	p.readLoop()

	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
	p.close()
	s.logger.Info("client disconnected", "remote", conn.RemoteAddr().String())
}

func (s *Server) snapshotPeers() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		out = append(out, p)
	}

	return out
}

func (s *Server) record(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) >= maxRecorded {
		s.received = append(s.received[:0], s.received[len(s.received)-maxRecorded/2:]...)
	}
	s.received = append(s.received, msg)
}

// reply builds the vehicle's answer to msg, if any.
func (s *Server) reply(msg protocol.Message) []protocol.Message {
	switch msg.Type {
	case protocol.TypePing:
		ts := msg.Payload.(protocol.Timestamp)
		return []protocol.Message{protocol.NewPong(ts.Timestamp)}
	case protocol.TypeGetConfig:
		s.mu.Lock()
		cfg := s.vehicle
		s.mu.Unlock()
		return []protocol.Message{{Type: protocol.TypeConfig, Payload: cfg}}
	case protocol.TypeSetConfig:
		s.mu.Lock()
		s.vehicle = msg.Payload.(protocol.VehicleConfig)
		s.mu.Unlock()
		return []protocol.Message{toast(protocol.ToastSuccess, "Config saved")}
	case protocol.TypeGetFirmwareVersion:
		return []protocol.Message{{Type: protocol.TypeFirmwareVersion, Payload: protocol.FirmwareVersion{Version: s.opts.FirmwareVersion}}}
	case protocol.TypeTogglePitchStabilization, protocol.TypeToggleRollStabilization, protocol.TypeToggleDepthStabilization:
		return []protocol.Message{s.toggle(msg.Type)}
	case protocol.TypeStartThrusterTest:
		id := msg.Payload.(protocol.ThrusterTest)
		return []protocol.Message{{
			Type: protocol.TypeShowToast,
			Payload: protocol.Toast{
				ID:            "thruster-test",
				ToastType:     protocol.ToastLoading,
				Message:       "Testing thruster",
				Description:   "Thruster " + strconv.Itoa(int(id)),
				CancelCommand: string(protocol.TypeCancelThrusterTest),
			},
		}}
	case protocol.TypeStartRegulatorAutoTuning:
		return []protocol.Message{
			{Type: protocol.TypeRegulatorSuggestions, Payload: protocol.RegulatorSuggestions(DefaultVehicleConfig().Regulator)},
		}
	default:
		return nil
	}
}

func (s *Server) toggle(t protocol.Type) protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t {
	case protocol.TypeTogglePitchStabilization:
		s.status.PitchStabilization = !s.status.PitchStabilization
	case protocol.TypeToggleRollStabilization:
		s.status.RollStabilization = !s.status.RollStabilization
	case protocol.TypeToggleDepthStabilization:
		s.status.DepthStabilization = !s.status.DepthStabilization
	}

	return protocol.Message{Type: protocol.TypeStatusUpdate, Payload: s.status}
}

func (s *Server) currentStatus() protocol.StatusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// telemetryAt produces smooth synthetic motion.
func (s *Server) telemetryAt(now time.Time) protocol.Telemetry {
	t := now.Sub(s.started).Seconds()
	round := func(v float64) float64 { return math.Round(v*100) / 100 }

	return protocol.Telemetry{
		Pitch:        round(20 * math.Sin(t/2)),
		Roll:         round(15 * math.Cos(t/3)),
		DesiredPitch: round(25 * math.Sin(t/2)),
		DesiredRoll:  round(20 * math.Cos(t/3)),
		Depth:        round(10 + 5*math.Sin(t/4)),
		Temperature:  round(20 + 5*math.Cos(t/5)),
		ThrusterRPMs: [8]float64{0, 937, 1875, 3750, 7500, 15000, 30000, 60000},
	}
}

func toast(kind protocol.ToastType, message string) protocol.Message {
	return protocol.Message{Type: protocol.TypeShowToast, Payload: protocol.Toast{ToastType: kind, Message: message}}
}

// DefaultVehicleConfig mirrors a freshly flashed vehicle.
func DefaultVehicleConfig() protocol.VehicleConfig {
	var allocation protocol.ThrusterAllocation
	for i := range allocation {
		allocation[i][i] = 1
	}

	return protocol.VehicleConfig{
		FluidType: protocol.FluidSaltwater,
		ThrusterPinSetup: protocol.ThrusterPinSetup{
			Identifiers:    [8]uint8{5, 4, 3, 1, 2, 7, 6, 8},
			SpinDirections: [8]int8{1, -1, 1, -1, 1, -1, 1, -1},
		},
		ThrusterAllocation: allocation,
		Regulator: protocol.Regulator{
			Pitch: protocol.PID{Kp: 1, Ki: 0.1, Kd: 0.05},
			Roll:  protocol.PID{Kp: 1, Ki: 0.1, Kd: 0.05},
			Depth: protocol.PID{Kp: 2, Ki: 0.2, Kd: 0.1},
		},
		MovementCoefficients: protocol.MovementCoefficients{
			Horizontal: 1, Strafe: 1, Vertical: 1, Pitch: 1, Yaw: 1, Roll: 1,
		},
		Power: protocol.Power{
			UserMaxPower:      0.8,
			RegulatorMaxPower: 0.3,
			BatteryMinVoltage: 9.6,
			BatteryMaxVoltage: 12.6,
		},
	}
}
