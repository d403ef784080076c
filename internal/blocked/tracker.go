// SPDX-License-Identifier: MPL-2.0

package blocked

import "github.com/modgate/modgate/pkg/content"

// Tracker is the consumer-side view of a session's item list. It applies
// update events, fencing out any event whose session id differs from the
// one the tracker was created for — stale events from a previous,
// already-closed session must never overwrite the current list.
type Tracker struct {
	session    SessionID
	items      []content.BlockedItem
	allMatched bool
}

// NewTracker creates a tracker bound to one session id.
func NewTracker(id SessionID) *Tracker {
	return &Tracker{session: id}
}

// Apply replaces the tracked item list wholesale with the update's list.
// It reports whether the update was accepted; updates carrying a foreign
// session id leave the tracker unchanged.
func (t *Tracker) Apply(u Update) bool {
	if u.SessionID != t.session {
		return false
	}
	t.items = append([]content.BlockedItem(nil), u.Items...)
	t.allMatched = u.AllMatched
	return true
}

// Items returns the tracked item list.
func (t *Tracker) Items() []content.BlockedItem { return t.items }

// AllMatched reports whether the last accepted update had every item
// matched. This is the condition gating the confirm action.
func (t *Tracker) AllMatched() bool { return t.allMatched }
