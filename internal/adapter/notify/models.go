package notify

import "time"

// NotificationModel is one in-app notification row, read by the portal UI.
type NotificationModel struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null;index"`
	Kind      string `gorm:"type:varchar(50);not null"`
	ProjectID int64  `gorm:"not null;index"`
	PhaseKey  string `gorm:"type:varchar(20)"`
	Payload   string `gorm:"type:text"`
	ReadAt    *time.Time
	CreatedAt time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

// EmailQueueModel is one durable queued email awaiting relay delivery.
type EmailQueueModel struct {
	ID           int64       `gorm:"primaryKey"`
	TemplateKind string      `gorm:"type:varchar(50);not null"`
	Recipient    string      `gorm:"type:varchar(255);not null"`
	Payload      string      `gorm:"type:text"`
	Status       EmailStatus `gorm:"type:varchar(20);not null"`
	Attempts     int         `gorm:"not null;default:0"`
	LastError    string      `gorm:"type:text"`
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (EmailQueueModel) TableName() string {
	return "email_queue"
}

// PushSubscriptionModel is one stored browser push subscription.
type PushSubscriptionModel struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null;index"`
	Endpoint  string `gorm:"type:text;not null;uniqueIndex"`
	P256dhKey string `gorm:"type:varchar(255);not null"`
	AuthKey   string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
}

func (PushSubscriptionModel) TableName() string {
	return "push_subscriptions"
}
