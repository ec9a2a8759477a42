package notifications

// Notifier receives catalog health transitions. Calls may block on the
// network; callers run them off the hot path.
type Notifier interface {
	NotifyRowEmpty(row string, kept int)
	NotifyRowRecovered(row string, count int)
	Test() error
}
