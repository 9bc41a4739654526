package notifications

// Notifier defines the interface for notification services
type Notifier interface {
	// SendAlert sends an alert with the specified level: info, warning, error or success.
	SendAlert(level, message string) error
}
