package domain

import (
	"fmt"
	"strings"
	"time"
)

type NotificationType string

const (
	NotificationCreated NotificationType = "CREATED"
	NotificationUpdated NotificationType = "UPDATED"
	NotificationDeleted NotificationType = "DELETED"
)

// ParseNotificationType accepts the type names case-insensitively.
func ParseNotificationType(s string) (NotificationType, error) {
	switch t := NotificationType(strings.ToUpper(strings.TrimSpace(s))); t {
	case NotificationCreated, NotificationUpdated, NotificationDeleted:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown notification type %q", ErrInvalidInput, s)
	}
}

// Notification describes a user lifecycle change. It is immutable once built.
type Notification struct {
	Type      NotificationType `json:"type"`
	User      User             `json:"user"`
	Timestamp time.Time        `json:"timestamp"`
	Message   string           `json:"message"`
}

func NewCreatedNotification(user *User, at time.Time) Notification {
	return Notification{
		Type:      NotificationCreated,
		User:      *user,
		Timestamp: at,
		Message:   fmt.Sprintf("User %s created", user.Name),
	}
}

func NewUpdatedNotification(user *User, at time.Time) Notification {
	return Notification{
		Type:      NotificationUpdated,
		User:      *user,
		Timestamp: at,
		Message:   fmt.Sprintf("User %s updated", user.Name),
	}
}

// NewDeletedNotification carries only the id of the removed user.
func NewDeletedNotification(id UserID, at time.Time) Notification {
	return Notification{
		Type:      NotificationDeleted,
		User:      User{ID: id},
		Timestamp: at,
		Message:   fmt.Sprintf("User %s deleted", id),
	}
}
