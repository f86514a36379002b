package service

import (
	"sort"
	"sync"
	"time"
)

// typingTracker keeps the set of users currently typing per channel. Entries
// expire after the window unless refreshed; every state change rebroadcasts
// the full set so clients never have to reconcile deltas.
type typingTracker struct {
	mu      sync.Mutex
	window  time.Duration
	typing  map[uint]map[string]time.Time
	notify  func(channelID uint, userIDs []string)
	now     func() time.Time
	after   func(d time.Duration, f func()) *time.Timer
	pending map[uint]*time.Timer
}

func newTypingTracker(window time.Duration, notify func(channelID uint, userIDs []string)) *typingTracker {
	return &typingTracker{
		window:  window,
		typing:  make(map[uint]map[string]time.Time),
		notify:  notify,
		now:     time.Now,
		after:   time.AfterFunc,
		pending: make(map[uint]*time.Timer),
	}
}

// Set marks or clears a user's typing state and pushes the updated set.
func (t *typingTracker) Set(channelID uint, userID string, typing bool) {
	t.mu.Lock()

	users, ok := t.typing[channelID]
	if !ok {
		if !typing {
			t.mu.Unlock()
			return
		}
		users = make(map[string]time.Time)
		t.typing[channelID] = users
	}

	changed := false
	if typing {
		if _, present := users[userID]; !present {
			changed = true
		}
		users[userID] = t.now()
		t.scheduleSweepLocked(channelID)
	} else if _, present := users[userID]; present {
		delete(users, userID)
		changed = true
	}

	var snapshot []string
	if changed {
		snapshot = t.snapshotLocked(channelID)
	}
	t.mu.Unlock()

	if changed {
		t.notify(channelID, snapshot)
	}
}

// Active returns the users currently typing in a channel.
func (t *typingTracker) Active(channelID uint) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(channelID)
}

func (t *typingTracker) snapshotLocked(channelID uint) []string {
	users := t.typing[channelID]
	cutoff := t.now().Add(-t.window)
	out := make([]string, 0, len(users))
	for id, last := range users {
		if last.After(cutoff) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// scheduleSweepLocked arms a single expiry timer per channel. The sweep drops
// stale entries and rebroadcasts if the set shrank.
func (t *typingTracker) scheduleSweepLocked(channelID uint) {
	if _, armed := t.pending[channelID]; armed {
		return
	}
	t.pending[channelID] = t.after(t.window, func() {
		t.sweep(channelID)
	})
}

func (t *typingTracker) sweep(channelID uint) {
	t.mu.Lock()
	delete(t.pending, channelID)

	users := t.typing[channelID]
	cutoff := t.now().Add(-t.window)
	changed := false
	for id, last := range users {
		if !last.After(cutoff) {
			delete(users, id)
			changed = true
		}
	}
	if len(users) == 0 {
		delete(t.typing, channelID)
	} else {
		t.scheduleSweepLocked(channelID)
	}

	var snapshot []string
	if changed {
		snapshot = t.snapshotLocked(channelID)
	}
	t.mu.Unlock()

	if changed {
		t.notify(channelID, snapshot)
	}
}
