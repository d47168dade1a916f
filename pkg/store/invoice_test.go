package store

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/invoicedash/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// newTestStore returns a store whose initial load never completes during
// the test.
func newTestStore(t *testing.T, opts ...InvoiceOption) *InvoiceStore {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	opts = append([]InvoiceOption{WithSeedDelay(time.Hour), WithLogger(quietLogger())}, opts...)
	return NewInvoiceStore(ctx, opts...)
}

func makeInvoice(id int64, overrides ...func(*models.Invoice)) models.Invoice {
	inv := models.Invoice{
		ID:          id,
		CreatedAt:   time.Now().UTC(),
		Number:      "INV-1",
		Reference:   "REF-1",
		DueDate:     "2025-10-01",
		Amount:      100,
		Status:      models.StatusDraft,
		ClientName:  "Test Client",
		ClientPhone: "123",
		ClientEmail: "test@example.com",
		IssueDate:   "2025-09-01",
		Currency:    "USD",
		Items:       []models.InvoiceItem{},
	}
	for _, o := range overrides {
		o(&inv)
	}
	return inv
}

func TestFreshStoreDefaults(t *testing.T) {
	s := newTestStore(t)

	assert.Empty(t, s.Invoices())
	assert.Nil(t, s.SelectedInvoice())
	assert.False(t, s.IsModalOpen())
	assert.True(t, s.IsLoading())
}

func TestSetInvoicesReplacesList(t *testing.T) {
	s := newTestStore(t)
	s.PushInvoice(makeInvoice(9))

	list := []models.Invoice{makeInvoice(1), makeInvoice(2), makeInvoice(3)}
	s.SetInvoices(list)

	assert.Equal(t, list, s.Invoices())
}

func TestAddInvoicePrepends(t *testing.T) {
	fixed := time.Date(2025, 10, 15, 9, 30, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return fixed }))
	s.PushInvoice(makeInvoice(1))

	inv := s.AddInvoice(models.InvoiceDraft{
		Number:      "INV-2",
		Reference:   "REF-2",
		DueDate:     "2025-10-10",
		Amount:      200,
		Status:      models.StatusPaid,
		ClientName:  "Client 2",
		ClientPhone: "555",
		ClientEmail: "c2@example.com",
		IssueDate:   "2025-09-05",
		Currency:    "USD",
	})

	assert.NotZero(t, inv.ID)
	assert.Equal(t, fixed, inv.CreatedAt)
	list := s.Invoices()
	require.Len(t, list, 2)
	assert.Equal(t, inv, list[0])
	assert.Equal(t, int64(1), list[1].ID)
}

func TestAddInvoiceAssignsDistinctIDs(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddInvoice(models.InvoiceDraft{Number: "INV", Status: models.StatusDraft})
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, inv := range s.Invoices() {
		assert.False(t, seen[inv.ID], "duplicate id %d", inv.ID)
		seen[inv.ID] = true
	}
	assert.Len(t, seen, 50)
}

func TestPushInvoicePrependsWithoutReordering(t *testing.T) {
	s := newTestStore(t)
	s.SetInvoices([]models.Invoice{makeInvoice(1), makeInvoice(2)})

	pushed := makeInvoice(3)
	s.PushInvoice(pushed)

	list := s.Invoices()
	require.Len(t, list, 3)
	assert.Equal(t, pushed, list[0])
	assert.Equal(t, int64(1), list[1].ID)
	assert.Equal(t, int64(2), list[2].ID)
}

func TestPushInvoiceKeepsDuplicateIDs(t *testing.T) {
	s := newTestStore(t)
	s.PushInvoice(makeInvoice(5))
	s.PushInvoice(makeInvoice(5))

	assert.Len(t, s.Invoices(), 2)
}

func TestRecentInvoicesTakesFiveNewest(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	for i := 0; i < 6; i++ {
		s.PushInvoice(makeInvoice(int64(i), func(inv *models.Invoice) {
			inv.CreatedAt = now.Add(-time.Duration(i) * time.Second)
		}))
	}

	recent := s.RecentInvoices()
	require.Len(t, recent, 5)

	ids := make([]int64, 0, len(recent))
	for _, inv := range recent {
		ids = append(ids, inv.ID)
	}
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, ids)
	assert.NotContains(t, ids, int64(5))

	// The underlying physical order is untouched: last pushed first.
	assert.Equal(t, int64(5), s.Invoices()[0].ID)
}

func TestRecentInvoicesTieKeepsListOrder(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetInvoices([]models.Invoice{
		makeInvoice(1, func(inv *models.Invoice) { inv.CreatedAt = at }),
		makeInvoice(2, func(inv *models.Invoice) { inv.CreatedAt = at }),
		makeInvoice(3, func(inv *models.Invoice) { inv.CreatedAt = at.Add(time.Minute) }),
	})

	recent := s.RecentInvoices()
	require.Len(t, recent, 3)
	assert.Equal(t, int64(3), recent[0].ID)
	assert.Equal(t, int64(1), recent[1].ID)
	assert.Equal(t, int64(2), recent[2].ID)
}

func TestRecentInvoicesIncludesPushed(t *testing.T) {
	s := newTestStore(t)
	s.SetInvoices([]models.Invoice{makeInvoice(1), makeInvoice(2)})

	pushed := makeInvoice(3)
	s.PushInvoice(pushed)

	assert.Contains(t, s.RecentInvoices(), pushed)
}

func TestTotalStats(t *testing.T) {
	s := newTestStore(t)
	s.SetInvoices([]models.Invoice{
		makeInvoice(1, func(inv *models.Invoice) { inv.Amount, inv.Status = 100, models.StatusPaid }),
		makeInvoice(2, func(inv *models.Invoice) { inv.Amount, inv.Status = 50, models.StatusOverdue }),
		makeInvoice(3, func(inv *models.Invoice) { inv.Amount, inv.Status = 30, models.StatusDraft }),
		makeInvoice(4, func(inv *models.Invoice) { inv.Amount, inv.Status = 20, models.StatusSent }),
	})

	assert.Equal(t, Stats{TotalPaid: 100, TotalOverdue: 50, TotalDraft: 30, TotalUnpaid: 20}, s.TotalStats())
}

func TestTotalStatsUnpaidBucket(t *testing.T) {
	s := newTestStore(t)
	s.SetInvoices([]models.Invoice{
		makeInvoice(1, func(inv *models.Invoice) { inv.Amount, inv.Status = 10, models.StatusSent }),
		makeInvoice(2, func(inv *models.Invoice) { inv.Amount, inv.Status = 20, models.StatusViewed }),
		makeInvoice(3, func(inv *models.Invoice) { inv.Amount, inv.Status = 40, models.StatusPending }),
		makeInvoice(4, func(inv *models.Invoice) { inv.Amount, inv.Status = 80, "ARCHIVED" }),
	})

	assert.Equal(t, Stats{TotalUnpaid: 70}, s.TotalStats())
}

func TestInvoiceModal(t *testing.T) {
	s := newTestStore(t)
	inv := makeInvoice(99)

	s.OpenInvoiceModal(inv)
	require.NotNil(t, s.SelectedInvoice())
	assert.Equal(t, inv, *s.SelectedInvoice())
	assert.True(t, s.IsModalOpen())

	s.CloseInvoiceModal()
	assert.Nil(t, s.SelectedInvoice())
	assert.False(t, s.IsModalOpen())
}

func TestSelectedInvoiceSeesStatusUpdates(t *testing.T) {
	s := newTestStore(t)
	inv := makeInvoice(202, func(inv *models.Invoice) { inv.Status = models.StatusDraft })
	s.PushInvoice(inv)

	s.OpenInvoiceModal(inv)
	s.UpdateInvoiceStatus(202, models.StatusPaid)

	require.NotNil(t, s.SelectedInvoice())
	assert.Equal(t, models.StatusPaid, s.SelectedInvoice().Status)
}

func TestUpdateInvoiceStatus(t *testing.T) {
	s := newTestStore(t)
	s.SetInvoices([]models.Invoice{makeInvoice(201), makeInvoice(202), makeInvoice(203)})

	assert.True(t, s.UpdateInvoiceStatus(202, models.StatusPaid))

	list := s.Invoices()
	assert.Equal(t, models.StatusDraft, list[0].Status)
	assert.Equal(t, models.StatusPaid, list[1].Status)
	assert.Equal(t, models.StatusDraft, list[2].Status)
}

func TestUpdateInvoiceStatusMissIsNoop(t *testing.T) {
	s := newTestStore(t)
	s.SetInvoices([]models.Invoice{makeInvoice(1), makeInvoice(2)})
	before := s.Invoices()

	assert.False(t, s.UpdateInvoiceStatus(404, models.StatusPaid))
	assert.Equal(t, before, s.Invoices())
}

func TestLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	s.PushInvoice(makeInvoice(7))

	// Local edit followed by a remote update for the same invoice.
	s.UpdateInvoiceStatus(7, models.StatusPaid)
	s.UpdateInvoiceStatus(7, models.StatusOverdue)

	assert.Equal(t, models.StatusOverdue, s.Invoices()[0].Status)
}

func TestLoadInvoicesInstallsSeed(t *testing.T) {
	seed := []models.Invoice{makeInvoice(1), makeInvoice(2)}
	s := NewInvoiceStore(context.Background(),
		WithLogger(quietLogger()),
		WithSeedDelay(time.Millisecond),
		WithSeed(func(context.Context) ([]models.Invoice, error) { return seed, nil }),
	)

	select {
	case <-s.Loaded():
	case <-time.After(2 * time.Second):
		t.Fatal("initial load did not finish")
	}

	assert.Equal(t, seed, s.Invoices())
	assert.False(t, s.IsLoading())
}

func TestLoadInvoicesFailureKeepsList(t *testing.T) {
	calls := 0
	s := NewInvoiceStore(context.Background(),
		WithLogger(quietLogger()),
		WithSeedDelay(0),
		WithSeed(func(context.Context) ([]models.Invoice, error) {
			calls++
			if calls == 1 {
				return []models.Invoice{makeInvoice(1)}, nil
			}
			return nil, errors.New("network down")
		}),
	)
	<-s.Loaded()

	s.LoadInvoices(context.Background())

	assert.Len(t, s.Invoices(), 1)
	assert.False(t, s.IsLoading())
}

func TestLoadInvoicesCancelledClearsLoading(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewInvoiceStore(ctx, WithLogger(quietLogger()), WithSeedDelay(time.Hour))
	assert.True(t, s.IsLoading())

	cancel()
	select {
	case <-s.Loaded():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled load did not finish")
	}

	assert.False(t, s.IsLoading())
	assert.Empty(t, s.Invoices())
}

func TestSubscribeReceivesChanges(t *testing.T) {
	s := newTestStore(t)
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.PushInvoice(makeInvoice(11))
	s.UpdateInvoiceStatus(11, models.StatusSent)
	s.UpdateInvoiceStatus(12, models.StatusSent)
	s.OpenInvoiceModal(makeInvoice(11))

	want := []Change{
		{Type: ChangeInvoices, Op: "push", InvoiceID: 11},
		{Type: ChangeInvoices, Op: "status", InvoiceID: 11},
		{Type: ChangeSelection, Op: "open", InvoiceID: 11},
	}
	for _, w := range want {
		select {
		case got := <-ch:
			assert.Equal(t, w, got)
		case <-time.After(time.Second):
			t.Fatalf("missing change %+v", w)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := newTestStore(t)
	ch := s.Subscribe()
	s.Unsubscribe(ch)
	s.Unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestSnapshotIsConsistent(t *testing.T) {
	s := newTestStore(t)
	s.SetInvoices([]models.Invoice{
		makeInvoice(1, func(inv *models.Invoice) { inv.Status = models.StatusPaid }),
	})
	s.OpenInvoiceModal(makeInvoice(1))

	snap := s.Snapshot()
	assert.Len(t, snap.Invoices, 1)
	assert.Len(t, snap.Recent, 1)
	assert.Equal(t, 100.0, snap.Stats.TotalPaid)
	require.NotNil(t, snap.Selected)
	assert.Equal(t, int64(1), snap.Selected.ID)
	assert.True(t, snap.ModalOpen)
	assert.True(t, snap.Loading)
}
