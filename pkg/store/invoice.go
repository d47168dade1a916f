package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/grovetools/invoicedash/logging"
	"github.com/grovetools/invoicedash/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultSeedDelay is the simulated fetch latency of the initial load.
const DefaultSeedDelay = time.Second

// SeedFunc returns the dataset the initial load installs.
type SeedFunc func(ctx context.Context) ([]models.Invoice, error)

// InvoiceOption configures an InvoiceStore.
type InvoiceOption func(*InvoiceStore)

// WithLogger sets the store logger.
func WithLogger(logger *logrus.Entry) InvoiceOption {
	return func(s *InvoiceStore) { s.logger = logger }
}

// WithSeed sets the dataset source used by LoadInvoices.
func WithSeed(seed SeedFunc) InvoiceOption {
	return func(s *InvoiceStore) { s.seed = seed }
}

// WithSeedDelay sets the simulated fetch latency.
func WithSeedDelay(d time.Duration) InvoiceOption {
	return func(s *InvoiceStore) { s.seedDelay = d }
}

// WithClock replaces time.Now for CreatedAt stamping.
func WithClock(now func() time.Time) InvoiceOption {
	return func(s *InvoiceStore) { s.now = now }
}

// WithIDGenerator replaces the id source of AddInvoice.
func WithIDGenerator(ids IDGenerator) InvoiceOption {
	return func(s *InvoiceStore) { s.ids = ids }
}

// InvoiceStore owns the canonical invoice list and the invoice modal state.
// It is safe for concurrent use; every mutation is atomic with respect to
// the others. Records are kept by pointer so the selected invoice and the
// list entry are the same record.
type InvoiceStore struct {
	mu        sync.RWMutex
	invoices  []*models.Invoice
	selected  *models.Invoice
	modalOpen bool
	pending   int // in-flight loads

	loaded    chan struct{}
	seed      SeedFunc
	seedDelay time.Duration
	now       func() time.Time
	ids       IDGenerator
	logger    *logrus.Entry
	changes   *broadcaster
}

// NewInvoiceStore creates the store and starts the initial load in the
// background. The store reports loading until that load finishes; ctx
// bounds the load and nothing else.
func NewInvoiceStore(ctx context.Context, opts ...InvoiceOption) *InvoiceStore {
	s := &InvoiceStore{
		invoices:  []*models.Invoice{},
		pending:   1,
		loaded:    make(chan struct{}),
		seedDelay: DefaultSeedDelay,
		now:       time.Now,
		changes:   newBroadcaster(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("invoice-store")
	}
	if s.ids == nil {
		ids, err := NewSnowflakeIDs(1)
		if err != nil {
			s.ids = IDFunc(func() int64 { return time.Now().UnixMilli() })
		} else {
			s.ids = ids
		}
	}

	go func() {
		defer close(s.loaded)
		s.load(ctx)
	}()

	return s
}

// Loaded is closed once the construction-time load has finished,
// successfully or not.
func (s *InvoiceStore) Loaded() <-chan struct{} {
	return s.loaded
}

// LoadInvoices replaces the list with the seed dataset after the simulated
// delay. Failures, including ctx cancellation, are logged and swallowed:
// the previous list is kept and the loading flag is always cleared.
func (s *InvoiceStore) LoadInvoices(ctx context.Context) {
	s.mu.Lock()
	s.pending++
	first := s.pending == 1
	s.mu.Unlock()
	if first {
		s.changes.publish(Change{Type: ChangeLoading, Op: "start"})
	}
	s.load(ctx)
}

func (s *InvoiceStore) load(ctx context.Context) {
	defer s.endLoad()

	invoices, err := s.fetch(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load invoices")
		return
	}
	if invoices == nil {
		return
	}
	s.SetInvoices(invoices)
	s.logger.WithField("count", len(invoices)).Debug("Invoices loaded")
}

func (s *InvoiceStore) fetch(ctx context.Context) ([]models.Invoice, error) {
	timer := time.NewTimer(s.seedDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("simulated fetch aborted: %w", ctx.Err())
	case <-timer.C:
	}

	if s.seed == nil {
		return nil, nil
	}
	return s.seed(ctx)
}

func (s *InvoiceStore) endLoad() {
	s.mu.Lock()
	s.pending--
	done := s.pending == 0
	s.mu.Unlock()
	if done {
		s.changes.publish(Change{Type: ChangeLoading, Op: "done"})
	}
}

// SetInvoices replaces the whole list. No validation, no merge.
func (s *InvoiceStore) SetInvoices(invoices []models.Invoice) {
	list := make([]*models.Invoice, len(invoices))
	for i := range invoices {
		inv := invoices[i].Clone()
		list[i] = &inv
	}

	s.mu.Lock()
	s.invoices = list
	s.mu.Unlock()

	s.changes.publish(Change{Type: ChangeInvoices, Op: "set"})
}

// AddInvoice creates a locally authored invoice, assigning its id and
// creation time, and inserts it at the front of the list.
func (s *InvoiceStore) AddInvoice(draft models.InvoiceDraft) models.Invoice {
	inv := draft.Materialize(s.ids.NextID(), s.now().UTC())

	s.mu.Lock()
	rec := inv.Clone()
	s.invoices = slices.Insert(s.invoices, 0, &rec)
	s.mu.Unlock()

	s.changes.publish(Change{Type: ChangeInvoices, Op: "add", InvoiceID: inv.ID})
	return inv
}

// PushInvoice inserts an already materialized invoice, typically received
// from the server, at the front of the list. Id uniqueness is not checked.
func (s *InvoiceStore) PushInvoice(inv models.Invoice) {
	rec := inv.Clone()
	if rec.Items == nil {
		rec.Items = []models.InvoiceItem{}
	}

	s.mu.Lock()
	s.invoices = slices.Insert(s.invoices, 0, &rec)
	s.mu.Unlock()

	s.changes.publish(Change{Type: ChangeInvoices, Op: "push", InvoiceID: inv.ID})
}

// OpenInvoiceModal selects an invoice and opens the modal in one step.
// When the list holds a record with the same id, that record is selected
// so later status updates show through it.
func (s *InvoiceStore) OpenInvoiceModal(inv models.Invoice) {
	s.mu.Lock()
	if rec := s.find(inv.ID); rec != nil {
		s.selected = rec
	} else {
		cp := inv.Clone()
		s.selected = &cp
	}
	s.modalOpen = true
	s.mu.Unlock()

	s.logger.WithField("invoice_id", inv.ID).Debug("Opened invoice modal")
	s.changes.publish(Change{Type: ChangeSelection, Op: "open", InvoiceID: inv.ID})
}

// CloseInvoiceModal clears the selection and closes the modal.
func (s *InvoiceStore) CloseInvoiceModal() {
	s.mu.Lock()
	s.selected = nil
	s.modalOpen = false
	s.mu.Unlock()

	s.changes.publish(Change{Type: ChangeSelection, Op: "close"})
}

// UpdateInvoiceStatus sets the status of the first invoice with the given
// id. It reports whether a record was found; a miss changes nothing.
func (s *InvoiceStore) UpdateInvoiceStatus(id int64, status models.InvoiceStatus) bool {
	s.mu.Lock()
	rec := s.find(id)
	if rec != nil {
		rec.Status = status
	}
	s.mu.Unlock()

	if rec == nil {
		return false
	}
	s.changes.publish(Change{Type: ChangeInvoices, Op: "status", InvoiceID: id})
	return true
}

// find returns the first record with the given id. Callers hold s.mu.
func (s *InvoiceStore) find(id int64) *models.Invoice {
	for _, inv := range s.invoices {
		if inv.ID == id {
			return inv
		}
	}
	return nil
}

// Invoices returns a copy of the list in physical order.
func (s *InvoiceStore) Invoices() []models.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyList()
}

// RecentInvoices returns the RecentLimit most recently created invoices,
// newest first. Equal CreatedAt values keep their list order.
func (s *InvoiceStore) RecentInvoices() []models.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return recent(s.copyList())
}

// TotalStats folds the list into per-status totals.
func (s *InvoiceStore) TotalStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totals(s.invoices)
}

// SelectedInvoice returns a copy of the selected invoice, or nil.
func (s *InvoiceStore) SelectedInvoice() *models.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copySelected()
}

// IsModalOpen reports whether the invoice modal is open.
func (s *InvoiceStore) IsModalOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modalOpen
}

// IsLoading reports whether a load is in flight.
func (s *InvoiceStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

// Snapshot returns every view computed from one consistent state.
func (s *InvoiceStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.copyList()
	return Snapshot{
		Invoices:  list,
		Recent:    recent(slices.Clone(list)),
		Stats:     totals(s.invoices),
		Selected:  s.copySelected(),
		ModalOpen: s.modalOpen,
		Loading:   s.pending > 0,
	}
}

// Subscribe creates a new subscription channel for store changes.
func (s *InvoiceStore) Subscribe() chan Change {
	return s.changes.subscribe()
}

// Unsubscribe removes a subscription and closes its channel.
func (s *InvoiceStore) Unsubscribe(ch chan Change) {
	s.changes.unsubscribe(ch)
}

func (s *InvoiceStore) copyList() []models.Invoice {
	out := make([]models.Invoice, len(s.invoices))
	for i, inv := range s.invoices {
		out[i] = inv.Clone()
	}
	return out
}

func (s *InvoiceStore) copySelected() *models.Invoice {
	if s.selected == nil {
		return nil
	}
	cp := s.selected.Clone()
	return &cp
}

// recent sorts list in place, newest first, and truncates it.
func recent(list []models.Invoice) []models.Invoice {
	slices.SortStableFunc(list, func(a, b models.Invoice) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(list) > RecentLimit {
		list = list[:RecentLimit]
	}
	return list
}

func totals(list []*models.Invoice) Stats {
	var st Stats
	for _, inv := range list {
		switch {
		case inv.Status == models.StatusPaid:
			st.TotalPaid += inv.Amount
		case inv.Status == models.StatusOverdue:
			st.TotalOverdue += inv.Amount
		case inv.Status == models.StatusDraft:
			st.TotalDraft += inv.Amount
		case inv.Status.Unpaid():
			st.TotalUnpaid += inv.Amount
		}
	}
	return st
}
