package notifications

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

// DesktopSender shows notifications through the OS notification center.
type DesktopSender struct {
	appName string
	notify  func(title, message string, icon any) error
	alert   func(title, message string, icon any) error
	logger  *slog.Logger
}

func NewDesktopSender(appName string, logger *slog.Logger) *DesktopSender {
	if logger == nil {
		logger = slog.Default()
	}
	appName = strings.TrimSpace(appName)
	if appName != "" {
		beeep.AppName = appName
	}

	return &DesktopSender{
		appName: appName,
		notify:  beeep.Notify,
		alert:   beeep.Alert,
		logger:  logger.With("component", "notifications.desktop"),
	}
}

// Send never blocks the caller on a failing backend; errors are logged.
func (s *DesktopSender) Send(payload Payload) {
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = s.appName
	}
	content := strings.TrimSpace(payload.Content)

	show := s.notify
	if payload.Urgency == UrgencyError {
		show = s.alert
	}
	if err := show(title, content, ""); err != nil {
		s.logger.Warn("desktop notification failed", "title", title, "error", err)
	}
}
