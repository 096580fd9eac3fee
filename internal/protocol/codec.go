package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownType     = errors.New("unknown message type")
	ErrMissingType     = errors.New("message type is missing")
	ErrMissingPayload  = errors.New("message payload is missing")
	ErrPayloadMismatch = errors.New("payload does not match message type")
)

// DecodeError describes why an inbound frame could not be turned into a
// Message. It is recoverable: callers log it and keep the session open.
type DecodeError struct {
	Type Type
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode message: %v", e.Err)
	}

	return fmt.Sprintf("decode %q message: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type validator interface {
	Validate() error
}

type payloadCodec struct {
	// decode is nil for tags without a payload.
	decode  func(json.RawMessage) (any, error)
	matches func(any) bool
}

func payloadOf[T any]() payloadCodec {
	return payloadCodec{
		decode: func(raw json.RawMessage) (any, error) {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			if val, ok := any(v).(validator); ok {
				if err := val.Validate(); err != nil {
					return nil, err
				}
			}

			return v, nil
		},
		matches: func(p any) bool {
			_, ok := p.(T)
			return ok
		},
	}
}

func signal() payloadCodec {
	return payloadCodec{matches: func(p any) bool { return p == nil }}
}

var registry = map[Type]payloadCodec{
	TypeHello:           payloadOf[Hello](),
	TypeMovementCommand: payloadOf[MovementCommand](),
	TypePing:            payloadOf[Timestamp](),
	TypePong:            payloadOf[Timestamp](),
	TypeHeartbeat:       payloadOf[Heartbeat](),

	TypeGetConfig: signal(),
	TypeSetConfig: payloadOf[VehicleConfig](),
	TypeConfig:    payloadOf[VehicleConfig](),

	TypeStatusUpdate:         payloadOf[StatusUpdate](),
	TypeTelemetry:            payloadOf[Telemetry](),
	TypeShowToast:            payloadOf[Toast](),
	TypeLogMessage:           payloadOf[LogEntry](),
	TypeGetFirmwareVersion:   signal(),
	TypeFirmwareVersion:      payloadOf[FirmwareVersion](),
	TypeRegulatorSuggestions: payloadOf[RegulatorSuggestions](),

	TypeStartThrusterTest:         payloadOf[ThrusterTest](),
	TypeCancelThrusterTest:        payloadOf[ThrusterTest](),
	TypeStartRegulatorAutoTuning:  signal(),
	TypeCancelRegulatorAutoTuning: signal(),

	TypeRunAction1:               signal(),
	TypeRunAction2:               signal(),
	TypeTogglePitchStabilization: signal(),
	TypeToggleRollStabilization:  signal(),
	TypeToggleDepthStabilization: signal(),
}

// Known reports whether t is part of the message catalog.
func Known(t Type) bool {
	_, ok := registry[t]
	return ok
}

// Types lists the catalog in stable order.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses one frame. Every failure is returned as *DecodeError.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, &DecodeError{Err: err}
	}
	if env.Type == "" {
		return Message{}, &DecodeError{Err: ErrMissingType}
	}

	codec, ok := registry[env.Type]
	if !ok {
		return Message{}, &DecodeError{Type: env.Type, Err: ErrUnknownType}
	}
	if codec.decode == nil {
		// Payload on a signal tag is ignored for forward compatibility.
		return Message{Type: env.Type}, nil
	}

	trimmed := bytes.TrimSpace(env.Payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Message{}, &DecodeError{Type: env.Type, Err: ErrMissingPayload}
	}

	payload, err := codec.decode(trimmed)
	if err != nil {
		return Message{}, &DecodeError{Type: env.Type, Err: err}
	}

	return Message{Type: env.Type, Payload: payload}, nil
}

// Encode serializes msg after checking its payload against the catalog.
func Encode(msg Message) ([]byte, error) {
	codec, ok := registry[msg.Type]
	if !ok {
		return nil, fmt.Errorf("encode %q message: %w", msg.Type, ErrUnknownType)
	}
	if !codec.matches(msg.Payload) {
		return nil, fmt.Errorf("encode %q message with %T: %w", msg.Type, msg.Payload, ErrPayloadMismatch)
	}

	env := envelope{Type: msg.Type}
	if codec.decode != nil {
		raw, err := json.Marshal(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %q payload: %w", msg.Type, err)
		}
		env.Payload = raw
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %q message: %w", msg.Type, err)
	}

	return out, nil
}
