package app

import (
	"fmt"

	"github.com/skobkin/rovlink/internal/protocol"
)

// StabilizationAxis selects a vehicle stabilization loop.
type StabilizationAxis string

const (
	StabilizePitch StabilizationAxis = "pitch"
	StabilizeRoll  StabilizationAxis = "roll"
	StabilizeDepth StabilizationAxis = "depth"
)

// Outbox accepts best-effort outbound messages. link.Outbox satisfies it.
type Outbox interface {
	Offer(msg protocol.Message) bool
}

// Commands sends operator requests to the vehicle. Every method reports
// whether the message was queued; nothing is queued while disconnected.
type Commands struct {
	outbox Outbox
}

func NewCommands(outbox Outbox) *Commands {
	return &Commands{outbox: outbox}
}

func (c *Commands) RequestConfig() bool {
	return c.signal(protocol.TypeGetConfig)
}

func (c *Commands) SetConfig(cfg protocol.VehicleConfig) bool {
	return c.offer(protocol.NewSetConfig(cfg))
}

func (c *Commands) RequestFirmwareVersion() bool {
	return c.signal(protocol.TypeGetFirmwareVersion)
}

func (c *Commands) StartThrusterTest(thruster uint8) bool {
	return c.offer(protocol.NewThrusterTest(protocol.TypeStartThrusterTest, thruster))
}

func (c *Commands) CancelThrusterTest(thruster uint8) bool {
	return c.offer(protocol.NewThrusterTest(protocol.TypeCancelThrusterTest, thruster))
}

func (c *Commands) StartRegulatorAutoTuning() bool {
	return c.signal(protocol.TypeStartRegulatorAutoTuning)
}

func (c *Commands) CancelRegulatorAutoTuning() bool {
	return c.signal(protocol.TypeCancelRegulatorAutoTuning)
}

// RunAction triggers one of the two vehicle-defined action buttons.
func (c *Commands) RunAction(n int) error {
	switch n {
	case 1:
		c.signal(protocol.TypeRunAction1)
	case 2:
		c.signal(protocol.TypeRunAction2)
	default:
		return fmt.Errorf("unknown action %d", n)
	}

	return nil
}

func (c *Commands) ToggleStabilization(axis StabilizationAxis) error {
	switch axis {
	case StabilizePitch:
		c.signal(protocol.TypeTogglePitchStabilization)
	case StabilizeRoll:
		c.signal(protocol.TypeToggleRollStabilization)
	case StabilizeDepth:
		c.signal(protocol.TypeToggleDepthStabilization)
	default:
		return fmt.Errorf("unknown stabilization axis %q", axis)
	}

	return nil
}

func (c *Commands) signal(t protocol.Type) bool {
	return c.offer(protocol.NewSignal(t))
}

func (c *Commands) offer(msg protocol.Message) bool {
	if c == nil || c.outbox == nil {
		return false
	}

	return c.outbox.Offer(msg)
}
