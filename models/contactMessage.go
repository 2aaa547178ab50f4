package models

import "gorm.io/gorm"

const (
	MessageStatusUnread   = "unread"
	MessageStatusRead     = "read"
	MessageStatusReplied  = "replied"
	MessageStatusArchived = "archived"
)

type ContactMessage struct {
	gorm.Model
	Name    string `gorm:"size:100;not null" json:"name"`
	Email   string `gorm:"size:255;not null" json:"email"`
	Phone   string `gorm:"size:50" json:"phone"`
	Subject string `gorm:"size:255;not null" json:"subject"`
	Message string `gorm:"type:text;not null" json:"message"`
	Status  string `gorm:"size:20;not null;default:unread;index" json:"status"`
}

func IsValidMessageStatus(status string) bool {
	switch status {
	case MessageStatusUnread, MessageStatusRead, MessageStatusReplied, MessageStatusArchived:
		return true
	}
	return false
}
