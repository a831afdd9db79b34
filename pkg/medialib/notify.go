package medialib

import "sync"

type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// Notification is a user-facing message produced at an operation boundary.
type Notification struct {
	Level   Level
	Message string
	Err     error
}

type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Notification) {})

// Scope forwards notifications to a view until the view is closed. After
// Close, results of operations that were still running are dropped silently.
type Scope struct {
	mu     sync.Mutex
	next   Notifier
	closed bool
}

func NewScope(next Notifier) *Scope {
	if next == nil {
		next = Discard
	}

	return &Scope{next: next}
}

func (s *Scope) Notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.next.Notify(n)
}

func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
