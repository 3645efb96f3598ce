// AngelaMos | 2026
// events.go

package session

import (
	"sync"

	"github.com/planejarpatrimonio/backend/internal/identity"
)

type Event string

const (
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// Listener receives every auth state change with the session that is
// current afterwards, or nil once signed out.
type Listener func(event Event, s *identity.Session)

type subscription struct {
	id       uint64
	listener Listener
}

type listeners struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

func (l *listeners) add(fn Listener) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, subscription{id: id, listener: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *listeners) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}

func (l *listeners) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// emit calls listeners in registration order outside the lock, so a
// listener may unsubscribe itself.
func (l *listeners) emit(event Event, s *identity.Session) {
	l.mu.Lock()
	snapshot := make([]Listener, 0, len(l.subs))
	for _, sub := range l.subs {
		snapshot = append(snapshot, sub.listener)
	}
	l.mu.Unlock()

	for _, fn := range snapshot {
		fn(event, s)
	}
}
