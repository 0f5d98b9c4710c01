package model

// NotificationLevel classifies a user-visible notification
type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationSuccess NotificationLevel = "success"
	NotificationFailure NotificationLevel = "failure"
)

// Notification is a transient message shown to the user
type Notification struct {
	Level   NotificationLevel
	Title   string
	Message string
}
