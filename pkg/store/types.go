// Package store provides the in-memory invoice and activity state
// containers of the dashboard.
package store

import (
	"sync"

	"github.com/grovetools/invoicedash/pkg/models"
)

// RecentLimit is the size of the recency views.
const RecentLimit = 5

// ChangeType defines what kind of data changed.
type ChangeType string

const (
	ChangeInvoices   ChangeType = "invoices"
	ChangeSelection  ChangeType = "selection"
	ChangeLoading    ChangeType = "loading"
	ChangeActivities ChangeType = "activities"
)

// Change describes a mutation of a store.
type Change struct {
	Type      ChangeType
	Op        string // e.g. "set", "add", "push", "status", "open", "close"
	InvoiceID int64  // Zero when the change is not about a single invoice
}

// Stats holds the per-status totals of the invoice list. Each invoice
// contributes to at most one bucket.
type Stats struct {
	TotalPaid    float64 `json:"totalPaid"`
	TotalOverdue float64 `json:"totalOverdue"`
	TotalDraft   float64 `json:"totalDraft"`
	TotalUnpaid  float64 `json:"totalUnpaid"`
}

// Snapshot is a consistent copy of the invoice store state.
type Snapshot struct {
	Invoices  []models.Invoice `json:"invoices"`
	Recent    []models.Invoice `json:"recentInvoices"`
	Stats     Stats            `json:"totalStats"`
	Selected  *models.Invoice  `json:"selectedInvoice"`
	ModalOpen bool             `json:"isModalOpen"`
	Loading   bool             `json:"isLoading"`
}

// broadcaster fans changes out to subscribers.
type broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan Change]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: make(map[chan Change]struct{})}
}

func (b *broadcaster) subscribe() chan Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Change, 100) // Buffered
	b.subscribers[ch] = struct{}{}
	return ch
}

func (b *broadcaster) unsubscribe(ch chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

func (b *broadcaster) publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- c:
		default:
			// Non-blocking send so a slow reader never stalls a mutation
		}
	}
}
