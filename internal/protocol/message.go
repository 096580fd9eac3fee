// Package protocol defines the typed messages exchanged with the vehicle and
// their wire encoding: one JSON object per frame, {"type": tag, "payload": ...}.
//
// The tag set changes between firmware releases, so decoding rejects unknown
// tags with ErrUnknownType instead of treating them as fatal.
package protocol

// Type is the wire tag selecting a payload shape.
type Type string

const (
	TypeHello           Type = "hello"
	TypeMovementCommand Type = "movementCommand"
	TypePing            Type = "ping"
	TypePong            Type = "pong"
	TypeHeartbeat       Type = "heartbeat"

	TypeGetConfig Type = "getConfig"
	TypeSetConfig Type = "setConfig"
	TypeConfig    Type = "config"

	TypeStatusUpdate         Type = "statusUpdate"
	TypeTelemetry            Type = "telemetry"
	TypeShowToast            Type = "showToast"
	TypeLogMessage           Type = "logMessage"
	TypeGetFirmwareVersion   Type = "getFirmwareVersion"
	TypeFirmwareVersion      Type = "firmwareVersion"
	TypeRegulatorSuggestions Type = "regulatorSuggestions"

	TypeStartThrusterTest         Type = "startThrusterTest"
	TypeCancelThrusterTest        Type = "cancelThrusterTest"
	TypeStartRegulatorAutoTuning  Type = "startRegulatorAutoTuning"
	TypeCancelRegulatorAutoTuning Type = "cancelRegulatorAutoTuning"

	TypeRunAction1               Type = "runAction1"
	TypeRunAction2               Type = "runAction2"
	TypeTogglePitchStabilization Type = "togglePitchStabilization"
	TypeToggleRollStabilization  Type = "toggleRollStabilization"
	TypeToggleDepthStabilization Type = "toggleDepthStabilization"
)

// Message is one decoded frame. Payload holds the value type registered for
// Type (see payloads.go), or nil for tags without a payload.
type Message struct {
	Type    Type
	Payload any
}

func NewHello(client, version, sessionID string) Message {
	return Message{Type: TypeHello, Payload: Hello{Client: client, Version: version, SessionID: sessionID}}
}

func NewMovementCommand(axes [6]float64) Message {
	return Message{Type: TypeMovementCommand, Payload: MovementCommand(axes)}
}

func NewPing(unixMillis int64) Message {
	return Message{Type: TypePing, Payload: Timestamp{Timestamp: unixMillis}}
}

func NewPong(unixMillis int64) Message {
	return Message{Type: TypePong, Payload: Timestamp{Timestamp: unixMillis}}
}

// NewHeartbeat builds a heartbeat; a zero timestamp is omitted on the wire.
func NewHeartbeat(unixMillis int64) Message {
	hb := Heartbeat{}
	if unixMillis > 0 {
		ts := unixMillis
		hb.Timestamp = &ts
	}

	return Message{Type: TypeHeartbeat, Payload: hb}
}

func NewSetConfig(cfg VehicleConfig) Message {
	return Message{Type: TypeSetConfig, Payload: cfg}
}

func NewThrusterTest(t Type, thruster uint8) Message {
	return Message{Type: t, Payload: ThrusterTest(thruster)}
}

// NewSignal builds a message for tags that carry no payload.
func NewSignal(t Type) Message {
	return Message{Type: t}
}
