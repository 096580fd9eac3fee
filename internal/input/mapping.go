package input

import (
	"strconv"
	"strings"

	"github.com/skobkin/rovlink/internal/config"
)

// KeySet holds the key codes (KeyW, Space, ShiftLeft...) currently held down.
type KeySet map[string]bool

func NewKeySet(codes ...string) KeySet {
	keys := make(KeySet, len(codes))
	for _, code := range codes {
		keys[code] = true
	}

	return keys
}

func (k KeySet) Pressed(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}

	return k[code]
}

// Standard gamepad layout. Stick Y axes grow downwards.
const (
	GamepadLeftX = iota
	GamepadLeftY
	GamepadRightX
	GamepadRightY

	gamepadAxisCount = 4
)

const (
	ButtonA = iota
	ButtonB
	ButtonX
	ButtonY
	ButtonLeftShoulder
	ButtonRightShoulder
	ButtonLeftTrigger
	ButtonRightTrigger
	ButtonBack
	ButtonStart
	ButtonLeftStick
	ButtonRightStick
	ButtonDPadUp
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight
	ButtonGuide

	gamepadButtonCount = 17
)

// GamepadState is one gamepad snapshot. Button values are 0 or 1, except the
// triggers which report their travel in [0, 1].
type GamepadState struct {
	Connected bool
	Axes      [gamepadAxisCount]float64
	Buttons   [gamepadButtonCount]float64
}

// Button reads a button by its configured index ("0".."16"). Unknown indices
// read as released.
func (s GamepadState) Button(index string) float64 {
	i, err := strconv.Atoi(strings.TrimSpace(index))
	if err != nil || i < 0 || i >= gamepadButtonCount {
		return 0
	}

	return s.Buttons[i]
}

func (s GamepadState) pressed(i int) bool {
	return s.Buttons[i] > 0.5
}

func keyPair(positive, negative bool) float64 {
	switch {
	case positive && !negative:
		return 1
	case negative && !positive:
		return -1
	default:
		return 0
	}
}

// MapKeyboard converts held keys into a vector. Opposing keys cancel out.
func MapKeyboard(keys KeySet, b config.KeyboardBindings) Vector {
	return Vector{
		AxisSurge: keyPair(keys.Pressed(b.MoveForward), keys.Pressed(b.MoveBackward)),
		AxisSway:  keyPair(keys.Pressed(b.MoveRight), keys.Pressed(b.MoveLeft)),
		AxisHeave: keyPair(keys.Pressed(b.MoveUp), keys.Pressed(b.MoveDown)),
		AxisPitch: keyPair(keys.Pressed(b.PitchUp), keys.Pressed(b.PitchDown)),
		AxisYaw:   keyPair(keys.Pressed(b.YawRight), keys.Pressed(b.YawLeft)),
		AxisRoll:  keyPair(keys.Pressed(b.RollRight), keys.Pressed(b.RollLeft)),
	}
}

// MapGamepad converts a gamepad snapshot into a vector. A disconnected pad
// maps to zero.
func MapGamepad(s GamepadState, b config.ControllerBindings) Vector {
	var v Vector
	if !s.Connected {
		return v
	}

	v[AxisSurge], v[AxisSway] = s.pair(b.Movement)
	v[AxisPitch], v[AxisYaw] = s.pair(b.PitchYaw)
	v[AxisHeave] = s.Button(b.MoveUp) - s.Button(b.MoveDown)
	v[AxisRoll] = s.Button(b.RollRight) - s.Button(b.RollLeft)

	return Clamp(v)
}

// pair reads a control cluster as (forward, right).
func (s GamepadState) pair(src config.ControlSource) (float64, float64) {
	switch src {
	case config.ControlSourceLeftStick:
		return -s.Axes[GamepadLeftY], s.Axes[GamepadLeftX]
	case config.ControlSourceRightStick:
		return -s.Axes[GamepadRightY], s.Axes[GamepadRightX]
	case config.ControlSourceDPad:
		return keyPair(s.pressed(ButtonDPadUp), s.pressed(ButtonDPadDown)),
			keyPair(s.pressed(ButtonDPadRight), s.pressed(ButtonDPadLeft))
	case config.ControlSourceFaceButtons:
		return keyPair(s.pressed(ButtonY), s.pressed(ButtonA)),
			keyPair(s.pressed(ButtonB), s.pressed(ButtonX))
	default:
		return 0, 0
	}
}
