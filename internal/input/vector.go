// Package input turns keyboard and gamepad state into the 6-axis movement
// command sent to the vehicle.
package input

import "math"

// Axis indexes a Vector.
type Axis int

const (
	AxisSurge Axis = iota
	AxisSway
	AxisHeave
	AxisPitch
	AxisYaw
	AxisRoll

	AxisCount = 6
)

var axisNames = [AxisCount]string{"surge", "sway", "heave", "pitch", "yaw", "roll"}

func (a Axis) String() string {
	if a < 0 || int(a) >= AxisCount {
		return "unknown"
	}

	return axisNames[a]
}

// Vector is a movement command: surge, sway, heave, pitch, yaw, roll.
type Vector [AxisCount]float64

// Clamp limits every element to [-1, 1]. NaN becomes 0.
func Clamp(v Vector) Vector {
	var out Vector
	for i, x := range v {
		switch {
		case math.IsNaN(x):
			out[i] = 0
		case x > 1:
			out[i] = 1
		case x < -1:
			out[i] = -1
		default:
			out[i] = x
		}
	}

	return out
}

// ApplyDeadZone zeroes elements whose magnitude is below threshold.
func ApplyDeadZone(v Vector, threshold float64) Vector {
	out := v
	for i, x := range out {
		if math.Abs(x) < threshold {
			out[i] = 0
		}
	}

	return out
}

// Merge sums a and b per axis and clamps the result.
func Merge(a, b Vector) Vector {
	var sum Vector
	for i := range sum {
		sum[i] = a[i] + b[i]
	}

	return Clamp(sum)
}

func (v Vector) IsZero() bool {
	return v == Vector{}
}
