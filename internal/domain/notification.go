package domain

import "time"

// Severity 通知级别
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Severities 全部通知级别
var Severities = []Severity{SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError}

// Notification 本地通知（无服务端持久化）
type Notification struct {
	ID        int        `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Severity  Severity   `json:"type"`
	Read      bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NotificationDraft 新增通知的输入，ID 与 CreatedAt 由 feed 分配
type NotificationDraft struct {
	Title     string
	Message   string
	Severity  Severity
	Read      bool
	ExpiresAt *time.Time
}
