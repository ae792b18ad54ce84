package worker

import (
	"github.com/spec-kit/case-service/internal/service"
)

// StartNotificationWorker subscribes the notification service to case
// lifecycle events: openings, stage changes, guardian-visible notes and
// mediation milestones. No-op when notifications are not configured.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
