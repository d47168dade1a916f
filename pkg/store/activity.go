package store

import (
	"slices"
	"sync"

	"github.com/grovetools/invoicedash/pkg/models"
)

// DefaultMaxActivities bounds the activity feed.
const DefaultMaxActivities = 200

// ActivityOption configures an ActivityStore.
type ActivityOption func(*ActivityStore)

// WithMaxActivities bounds the feed to n entries; n <= 0 disables the bound.
func WithMaxActivities(n int) ActivityOption {
	return func(s *ActivityStore) { s.max = n }
}

// ActivityStore holds the activity feed, newest first.
type ActivityStore struct {
	mu         sync.RWMutex
	activities []models.Activity
	max        int
	changes    *broadcaster
}

// NewActivityStore creates an empty feed.
func NewActivityStore(opts ...ActivityOption) *ActivityStore {
	s := &ActivityStore{
		activities: []models.Activity{},
		max:        DefaultMaxActivities,
		changes:    newBroadcaster(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PushActivity inserts an activity at the front of the feed, dropping the
// oldest entries past the bound.
func (s *ActivityStore) PushActivity(a models.Activity) {
	s.mu.Lock()
	s.activities = slices.Insert(s.activities, 0, a)
	if s.max > 0 && len(s.activities) > s.max {
		s.activities = s.activities[:s.max]
	}
	s.mu.Unlock()

	s.changes.publish(Change{Type: ChangeActivities, Op: "push"})
}

// Activities returns a copy of the whole feed.
func (s *ActivityStore) Activities() []models.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.activities)
}

// RecentActivities returns the first RecentLimit entries. The feed is kept
// in insertion order, so this is a prefix rather than a sort.
func (s *ActivityStore) RecentActivities() []models.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(len(s.activities), RecentLimit)
	return slices.Clone(s.activities[:n])
}

// Subscribe creates a new subscription channel for feed changes.
func (s *ActivityStore) Subscribe() chan Change {
	return s.changes.subscribe()
}

// Unsubscribe removes a subscription and closes its channel.
func (s *ActivityStore) Unsubscribe(ch chan Change) {
	s.changes.unsubscribe(ch)
}
