package manager

import "github.com/voxhost/voxhost/internal/engine"

// Notification levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notification is a user-visible message about engine state. These reach the
// UI layer; they are for events the user must see (a crashed engine mid-use),
// not routine logging.
type Notification struct {
	Level   string    `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Engine  engine.ID `json:"engine,omitempty"`
}

// Notifier delivers notifications to whoever is listening.
type Notifier interface {
	Notify(n Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
