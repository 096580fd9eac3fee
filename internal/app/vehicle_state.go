package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/skobkin/rovlink/internal/bus"
	"github.com/skobkin/rovlink/internal/events"
	"github.com/skobkin/rovlink/internal/protocol"
)

// VehicleSnapshot is the latest known state. Nothing older than the last
// message of each kind is kept.
type VehicleSnapshot struct {
	Connection      events.ConnectionStatus
	ConnectionKnown bool

	Telemetry       *events.VehicleMessage
	Status          *events.VehicleMessage
	Config          *protocol.VehicleConfig
	Suggestions     *protocol.RegulatorSuggestions
	FirmwareVersion string
}

// VehicleState keeps the latest vehicle messages in memory and forwards
// vehicle log lines to the local logger.
type VehicleState struct {
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot VehicleSnapshot
}

var vehicleStateTopics = []string{
	events.TopicConnStatus,
	events.TopicMessage(protocol.TypeTelemetry),
	events.TopicMessage(protocol.TypeStatusUpdate),
	events.TopicMessage(protocol.TypeConfig),
	events.TopicMessage(protocol.TypeRegulatorSuggestions),
	events.TopicMessage(protocol.TypeFirmwareVersion),
	events.TopicMessage(protocol.TypeLogMessage),
}

func NewVehicleState(logger *slog.Logger) *VehicleState {
	if logger == nil {
		logger = slog.Default().With("component", "vehicle")
	}

	return &VehicleState{logger: logger}
}

// Start subscribes before returning and consumes events until ctx is done.
func (s *VehicleState) Start(ctx context.Context, messageBus bus.MessageBus) {
	sub := messageBus.Subscribe(vehicleStateTopics...)

	go func() {
		defer messageBus.Unsubscribe(sub, vehicleStateTopics...)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				s.apply(raw)
			}
		}
	}()
}

func (s *VehicleState) Snapshot() VehicleSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot
}

func (s *VehicleState) apply(raw any) {
	switch ev := raw.(type) {
	case events.ConnectionStatus:
		s.mu.Lock()
		s.snapshot.Connection = ev
		s.snapshot.ConnectionKnown = true
		s.mu.Unlock()
	case events.VehicleMessage:
		s.applyMessage(ev)
	}
}

func (s *VehicleState) applyMessage(msg events.VehicleMessage) {
	if msg.Type == protocol.TypeLogMessage {
		if entry, ok := msg.Payload.(protocol.LogEntry); ok {
			s.logVehicleEntry(entry)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch payload := msg.Payload.(type) {
	case protocol.Telemetry:
		s.snapshot.Telemetry = &msg
	case protocol.StatusUpdate:
		s.snapshot.Status = &msg
	case protocol.VehicleConfig:
		s.snapshot.Config = &payload
	case protocol.RegulatorSuggestions:
		s.snapshot.Suggestions = &payload
	case protocol.FirmwareVersion:
		s.snapshot.FirmwareVersion = payload.Version
	}
}

func (s *VehicleState) logVehicleEntry(entry protocol.LogEntry) {
	level := slog.LevelInfo
	switch entry.Level {
	case protocol.LogLevelWarn:
		level = slog.LevelWarn
	case protocol.LogLevelError:
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, entry.Message, "origin", entry.Origin)
}
