package events

import "github.com/skobkin/rovlink/internal/bus"

// BusSink publishes link events onto the message bus.
type BusSink struct {
	bus bus.MessageBus
}

func NewBusSink(messageBus bus.MessageBus) *BusSink {
	return &BusSink{bus: messageBus}
}

func (s *BusSink) ConnectionStatus(status ConnectionStatus) {
	s.bus.Publish(TopicConnStatus, status)
}

func (s *BusSink) Message(msg VehicleMessage) {
	s.bus.Publish(TopicMessage(msg.Type), msg)
}

func (s *BusSink) Notification(n Notification) {
	s.bus.Publish(TopicNotification, n)
}
