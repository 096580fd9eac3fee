package events

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/skobkin/rovlink/internal/bus"
	"github.com/skobkin/rovlink/internal/protocol"
)

func TestBusSink_PublishesPerTopic(t *testing.T) {
	messageBus := bus.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(messageBus.Close)

	statusSub := messageBus.Subscribe(TopicConnStatus)
	telemetrySub := messageBus.Subscribe(TopicMessage(protocol.TypeTelemetry))
	toastSub := messageBus.Subscribe(TopicNotification)

	sink := NewBusSink(messageBus)
	sink.ConnectionStatus(ConnectionStatus{State: ConnectionStateConnected, Connected: true})
	sink.Message(VehicleMessage{Type: protocol.TypeTelemetry, Payload: protocol.Telemetry{Depth: 4}})
	sink.Notification(Notification{Toast: protocol.Toast{Message: "Low battery"}})

	status := receive(t, statusSub).(ConnectionStatus)
	if status.State != ConnectionStateConnected {
		t.Fatalf("expected connected status, got %q", status.State)
	}

	msg := receive(t, telemetrySub).(VehicleMessage)
	if tel, ok := msg.Payload.(protocol.Telemetry); !ok || tel.Depth != 4 {
		t.Fatalf("unexpected telemetry payload: %#v", msg.Payload)
	}

	n := receive(t, toastSub).(Notification)
	if n.Toast.Message != "Low battery" {
		t.Fatalf("expected toast message, got %q", n.Toast.Message)
	}
}

func TestTopicMessage(t *testing.T) {
	if got := TopicMessage(protocol.TypeStatusUpdate); got != "message.statusUpdate" {
		t.Fatalf("expected message.statusUpdate, got %q", got)
	}
}

func receive(t *testing.T, sub bus.Subscription) any {
	t.Helper()

	select {
	case v, ok := <-sub:
		if !ok {
			t.Fatalf("subscription closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for bus event")
	}

	return nil
}
