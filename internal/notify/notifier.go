package notify

import (
	"time"

	"go.uber.org/zap"
)

// event types pushed to subscribers
const (
	TypeConnectivity    = "connectivity"
	TypeSyncResult      = "sync_result"
	TypeSubmission      = "submission"
	TypeLessonCompleted = "lesson_completed"
	TypeLessonsUnlocked = "lessons_unlocked"
)

// Event is one user-facing notice raised by the sync pipeline
type Event struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	At     int64  `json:"at"` // epoch milliseconds
}

// NewEvent create a timestamped Event
func NewEvent(eventType, title, detail string) Event {
	return Event{
		Type:   eventType,
		Title:  title,
		Detail: detail,
		At:     time.Now().Unix() * 1e3,
	}
}

// Notifier delivers pipeline notices to the user
type Notifier interface {
	Notify(ev Event)
}

// ZapNotifier writes notices to the agent log
type ZapNotifier struct {
	logger *zap.Logger
}

var _ Notifier = &ZapNotifier{}

// NewZapNotifier create a ZapNotifier instance
func NewZapNotifier(logger *zap.Logger) *ZapNotifier {
	return &ZapNotifier{logger: logger}
}

// Notify implement Notifier
func (zn *ZapNotifier) Notify(ev Event) {
	zn.logger.Info(ev.Title,
		zap.String("event.type", ev.Type),
		zap.String("event.detail", ev.Detail),
	)
}

// MultiNotifier fans one notice out to several notifiers
type MultiNotifier []Notifier

var _ Notifier = MultiNotifier{}

// Multi combine notifiers
func Multi(notifiers ...Notifier) MultiNotifier {
	return MultiNotifier(notifiers)
}

// Notify implement Notifier
func (mn MultiNotifier) Notify(ev Event) {
	for _, n := range mn {
		n.Notify(ev)
	}
}
