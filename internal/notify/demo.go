package notify

import (
	"time"

	"github.com/Babylonias/adminnexus-portal/internal/domain"
)

// DemoNotifications 演示用的初始通知（相对 now 计算创建时间）
func DemoNotifications(now time.Time) []domain.Notification {
	return []domain.Notification{
		{
			ID:        1,
			Title:     "New classroom added",
			Message:   "Classroom Sciences 200 was added to Université Paris Tech",
			Severity:  domain.SeveritySuccess,
			CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			ID:        2,
			Title:     "Scheduled maintenance",
			Message:   "Maintenance planned for Amphi Central on March 15",
			Severity:  domain.SeverityWarning,
			CreatedAt: now.Add(-4 * time.Hour),
		},
		{
			ID:        3,
			Title:     "System update",
			Message:   "The platform was updated to version 2.1.0",
			Severity:  domain.SeverityInfo,
			Read:      true,
			CreatedAt: now.Add(-24 * time.Hour),
		},
		{
			ID:        4,
			Title:     "Synchronization error",
			Message:   "A synchronization problem with the database was detected",
			Severity:  domain.SeverityError,
			CreatedAt: now.Add(-30 * time.Minute),
		},
	}
}
