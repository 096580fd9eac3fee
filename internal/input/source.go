package input

import (
	"context"
	"errors"

	"github.com/skobkin/rovlink/internal/config"
)

var ErrNoDevice = errors.New("input device not available")

// Source produces one vector per poll. Implementations may block or panic;
// the sampler isolates them.
type Source interface {
	Poll(ctx context.Context, cfg config.InputConfig) (Vector, error)
}

type SourceFunc func(ctx context.Context, cfg config.InputConfig) (Vector, error)

func (f SourceFunc) Poll(ctx context.Context, cfg config.InputConfig) (Vector, error) {
	return f(ctx, cfg)
}

// KeyReader reads the set of held keys from the platform.
type KeyReader interface {
	PressedKeys(ctx context.Context) (KeySet, error)
}

// GamepadReader reads the first attached gamepad from the platform.
type GamepadReader interface {
	ReadGamepad(ctx context.Context) (GamepadState, error)
}

func KeyboardSource(r KeyReader) Source {
	return SourceFunc(func(ctx context.Context, cfg config.InputConfig) (Vector, error) {
		if r == nil {
			return Vector{}, ErrNoDevice
		}
		keys, err := r.PressedKeys(ctx)
		if err != nil {
			return Vector{}, err
		}

		return MapKeyboard(keys, cfg.Keyboard), nil
	})
}

func GamepadSource(r GamepadReader) Source {
	return SourceFunc(func(ctx context.Context, cfg config.InputConfig) (Vector, error) {
		if r == nil {
			return Vector{}, ErrNoDevice
		}
		state, err := r.ReadGamepad(ctx)
		if err != nil {
			return Vector{}, err
		}

		return MapGamepad(state, cfg.Controller), nil
	})
}
