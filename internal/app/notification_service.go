package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/rovlink/internal/bus"
	"github.com/skobkin/rovlink/internal/config"
	"github.com/skobkin/rovlink/internal/events"
	"github.com/skobkin/rovlink/internal/notifications"
	"github.com/skobkin/rovlink/internal/protocol"
)

const notificationTitleVehicle = "Vehicle"

// NotificationService listens to bus events and emits user-facing notifications.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	isForeground  func() bool
	sender        notifications.Sender
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    events.ConnectionState
	lastConnStateSet bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	isForeground func() bool,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		isForeground:  isForeground,
		sender:        sender,
		logger:        logger,
	}
}

// Start subscribes before returning, so nothing published afterwards is
// missed, and delivers notifications until ctx is cancelled or the bus closes.
func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	connSub := s.bus.Subscribe(events.TopicConnStatus)
	toastSub := s.bus.Subscribe(events.TopicNotification)

	go func() {
		defer s.bus.Unsubscribe(connSub, events.TopicConnStatus)
		defer s.bus.Unsubscribe(toastSub, events.TopicNotification)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				status, ok := raw.(events.ConnectionStatus)
				if !ok {
					continue
				}
				s.handleConnectionStatus(status)
			case raw, ok := <-toastSub:
				if !ok {
					return
				}
				n, ok := raw.(events.Notification)
				if !ok {
					continue
				}
				s.handleToast(n.Toast)
			}
		}
	}()
}

func (s *NotificationService) handleConnectionStatus(status events.ConnectionStatus) {
	prefs := s.notificationPrefs()
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.connStatusMu.Unlock()

	if status.State != events.ConnectionStateConnected &&
		status.State != events.ConnectionStateDisconnected {
		return
	}
	if !s.shouldNotify(prefs, prefs.Events.ConnectionStatus) {
		return
	}

	transport := notificationTransportName(status.TransportName)
	if transport == "" {
		transport = "Link"
	}
	details := strings.TrimSpace(status.Target)
	if details == "" {
		details = "No connection details"
	}
	urgency := notifications.UrgencySuccess
	if status.State == events.ConnectionStateDisconnected {
		urgency = notifications.UrgencyWarning
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("%s - %s", transport, status.State),
		Content: details,
		Urgency: urgency,
	})
}

// handleToast skips loading toasts: the vehicle replaces them by id once the
// operation finishes, and that follow-up is what the operator cares about.
func (s *NotificationService) handleToast(toast protocol.Toast) {
	prefs := s.notificationPrefs()
	if toast.ToastType == protocol.ToastLoading {
		return
	}
	if !s.shouldNotify(prefs, prefs.Events.VehicleToast) {
		return
	}

	content := strings.TrimSpace(toast.Message)
	if desc := strings.TrimSpace(toast.Description); desc != "" {
		content = content + "\n" + desc
	}

	s.send(notifications.Payload{
		Title:   notificationTitleVehicle,
		Content: content,
		Urgency: toastUrgency(toast.ToastType),
	})
}

func (s *NotificationService) shouldNotify(prefs config.NotificationConfig, kindEnabled bool) bool {
	if !prefs.Enabled || !kindEnabled {
		return false
	}
	if prefs.NotifyWhenFocused {
		return true
	}
	if s.isForeground == nil {
		return true
	}

	return !s.isForeground()
}

func (s *NotificationService) notificationPrefs() config.NotificationConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
	}

	return cfg.Notifications
}

func (s *NotificationService) send(notification notifications.Payload) {
	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}
	s.logger.Debug("sending notification", "title", title)
	s.sender.Send(notifications.Payload{
		Title:   title,
		Content: content,
		Urgency: notification.Urgency,
	})
}

func toastUrgency(kind protocol.ToastType) notifications.Urgency {
	switch kind {
	case protocol.ToastSuccess:
		return notifications.UrgencySuccess
	case protocol.ToastWarn:
		return notifications.UrgencyWarning
	case protocol.ToastError:
		return notifications.UrgencyError
	default:
		return notifications.UrgencyInfo
	}
}

func notificationTransportName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(config.ConnectorWebSocket):
		return "WebSocket"
	case string(config.ConnectorTCP):
		return "TCP"
	case string(config.ConnectorSerial):
		return "Serial"
	default:
		return strings.TrimSpace(name)
	}
}
