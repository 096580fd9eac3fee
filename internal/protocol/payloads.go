package protocol

import (
	"errors"
	"strings"
)

// Hello identifies the operator station right after connecting.
type Hello struct {
	Client    string `json:"client"`
	Version   string `json:"version"`
	SessionID string `json:"sessionId"`
}

// MovementCommand is the 6-axis command vector: surge, sway, heave, pitch, yaw, roll.
type MovementCommand [6]float64

// Timestamp carries unix milliseconds for ping/pong round trips.
type Timestamp struct {
	Timestamp int64 `json:"timestamp"`
}

func (t Timestamp) Validate() error {
	if t.Timestamp <= 0 {
		return errors.New("timestamp must be positive")
	}

	return nil
}

type Heartbeat struct {
	Timestamp *int64 `json:"timestamp,omitempty"`
}

type FluidType string

const (
	FluidSaltwater  FluidType = "saltwater"
	FluidFreshwater FluidType = "freshwater"
)

type ThrusterPinSetup struct {
	Identifiers    [8]uint8 `json:"identifiers"`
	SpinDirections [8]int8  `json:"spinDirections"`
}

type ThrusterAllocation [8][8]float64

type PID struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
}

type Regulator struct {
	Pitch PID `json:"pitch"`
	Roll  PID `json:"roll"`
	Depth PID `json:"depth"`
}

type MovementCoefficients struct {
	Horizontal float64 `json:"horizontal"`
	Strafe     float64 `json:"strafe"`
	Vertical   float64 `json:"vertical"`
	Pitch      float64 `json:"pitch"`
	Yaw        float64 `json:"yaw"`
	Roll       float64 `json:"roll"`
}

type Power struct {
	UserMaxPower      float64 `json:"userMaxPower"`
	RegulatorMaxPower float64 `json:"regulatorMaxPower"`
	BatteryMinVoltage float64 `json:"batteryMinVoltage"`
	BatteryMaxVoltage float64 `json:"batteryMaxVoltage"`
}

// VehicleConfig is the vehicle-side configuration exchanged by getConfig,
// setConfig and config.
type VehicleConfig struct {
	FluidType            FluidType            `json:"fluidType"`
	ThrusterPinSetup     ThrusterPinSetup     `json:"thrusterPinSetup"`
	ThrusterAllocation   ThrusterAllocation   `json:"thrusterAllocation"`
	Regulator            Regulator            `json:"regulator"`
	MovementCoefficients MovementCoefficients `json:"movementCoefficients"`
	Power                Power                `json:"power"`
}

// RegulatorSuggestions are PID values proposed by vehicle auto-tuning.
type RegulatorSuggestions Regulator

type StatusUpdate struct {
	PitchStabilization bool  `json:"pitchStabilization"`
	RollStabilization  bool  `json:"rollStabilization"`
	DepthStabilization bool  `json:"depthStabilization"`
	BatteryPercentage  uint8 `json:"batteryPercentage"`
	WaterDetected      bool  `json:"waterDetected"`
}

type Telemetry struct {
	Pitch        float64    `json:"pitch"`
	Roll         float64    `json:"roll"`
	DesiredPitch float64    `json:"desiredPitch"`
	DesiredRoll  float64    `json:"desiredRoll"`
	Depth        float64    `json:"depth"`
	Temperature  float64    `json:"temperature"`
	ThrusterRPMs [8]float64 `json:"thrusterRpms"`
}

type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastInfo    ToastType = "info"
	ToastWarn    ToastType = "warn"
	ToastError   ToastType = "error"
	ToastLoading ToastType = "loading"
)

// Toast is a user-facing notification pushed by the vehicle. CancelCommand,
// when set, names a message tag the UI may send to cancel the operation.
type Toast struct {
	ID            string    `json:"id,omitempty"`
	ToastType     ToastType `json:"toastType,omitempty"`
	Message       string    `json:"message"`
	Description   string    `json:"description,omitempty"`
	CancelCommand string    `json:"cancelCommand,omitempty"`
}

func (t Toast) Validate() error {
	if strings.TrimSpace(t.Message) == "" {
		return errors.New("toast message is empty")
	}

	return nil
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type LogOrigin string

const (
	LogOriginFirmware LogOrigin = "firmware"
	LogOriginBackend  LogOrigin = "backend"
	LogOriginFrontend LogOrigin = "frontend"
)

type LogEntry struct {
	Level   LogLevel  `json:"level"`
	Origin  LogOrigin `json:"origin"`
	Message string    `json:"message"`
}

type FirmwareVersion struct {
	Version string `json:"version"`
}

// ThrusterTest selects a thruster by its identifier.
type ThrusterTest uint8
