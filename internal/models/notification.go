package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

// Notification is an in-app message. Rows with OutletID are shown to every
// user of that outlet; rows with UserID only to that user, which is how
// managers are told about submissions and revisions.
type Notification struct {
	ID        string           `gorm:"primaryKey" json:"id"`
	OutletID  *uint            `json:"outlet_id,omitempty" gorm:"index"`
	UserID    *uint            `json:"user_id,omitempty" gorm:"index"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// BeforeCreate assigns a UUID when none is set.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
