package store

import (
	"testing"
	"time"

	"github.com/grovetools/invoicedash/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activity(id int64) models.Activity {
	return models.Activity{
		ID:     id,
		Actor:  "System",
		Action: "Performed action",
		Time:   time.Unix(id, 0).UTC(),
	}
}

func TestPushActivityPrepends(t *testing.T) {
	s := NewActivityStore()
	s.PushActivity(activity(1))
	s.PushActivity(activity(2))

	list := s.Activities()
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, int64(1), list[1].ID)
}

func TestRecentActivitiesIsPrefix(t *testing.T) {
	s := NewActivityStore()
	assert.Empty(t, s.RecentActivities())

	for i := int64(1); i <= 7; i++ {
		s.PushActivity(activity(i))
	}

	recent := s.RecentActivities()
	require.Len(t, recent, RecentLimit)
	assert.Equal(t, s.Activities()[:RecentLimit], recent)
	assert.Equal(t, int64(7), recent[0].ID)
}

func TestActivityFeedIsBounded(t *testing.T) {
	s := NewActivityStore(WithMaxActivities(3))
	for i := int64(1); i <= 5; i++ {
		s.PushActivity(activity(i))
	}

	list := s.Activities()
	require.Len(t, list, 3)
	assert.Equal(t, int64(5), list[0].ID)
	assert.Equal(t, int64(3), list[2].ID)
}

func TestActivitySubscription(t *testing.T) {
	s := NewActivityStore()
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.PushActivity(activity(1))

	select {
	case c := <-ch:
		assert.Equal(t, ChangeActivities, c.Type)
	case <-time.After(time.Second):
		t.Fatal("expected activity change")
	}
}
