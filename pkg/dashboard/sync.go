// Package dashboard wires the realtime transport to the invoice and
// activity stores.
package dashboard

import (
	"slices"
	"sync"
	"time"

	"github.com/grovetools/invoicedash/logging"
	"github.com/grovetools/invoicedash/pkg/models"
	"github.com/grovetools/invoicedash/pkg/realtime"
	"github.com/grovetools/invoicedash/pkg/store"
	"github.com/sirupsen/logrus"
)

// notificationHistory bounds the notifications kept for rendering.
const notificationHistory = 5

// Transport is the part of *realtime.Client the dashboard needs.
type Transport interface {
	OnInvoiceUpdated(func(models.InvoiceUpdate))
	OnInvoiceCreated(func(models.NewInvoice))
	OnNotification(func(models.Notification))
	OnActivityCreated(func(models.Activity))
	EmitInvoiceUpdate(models.InvoiceUpdate, realtime.AckFunc) error
	CreateInvoice(models.NewInvoiceRequest, realtime.AckFunc) error
	Connected() bool
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(d *Dashboard) { d.logger = logger }
}

// WithClock replaces time.Now for updatedAt stamping.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

// Dashboard applies remote events to the stores and broadcasts local
// mutations. Concurrent local and remote changes to the same invoice
// resolve as last write wins.
type Dashboard struct {
	transport  Transport
	invoices   *store.InvoiceStore
	activities *store.ActivityStore
	logger     *logrus.Entry
	now        func() time.Time

	mu            sync.Mutex
	hooks         []func(models.Notification)
	notifications []models.Notification
}

// New creates a dashboard. Call Bind to start applying remote events.
func New(transport Transport, invoices *store.InvoiceStore, activities *store.ActivityStore, opts ...Option) *Dashboard {
	d := &Dashboard{
		transport:  transport,
		invoices:   invoices,
		activities: activities,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.NewLogger("dashboard")
	}
	return d
}

// Bind registers the store handlers on the transport. Handlers are
// additive, so binding twice applies every event twice.
func (d *Dashboard) Bind() {
	d.transport.OnInvoiceUpdated(func(u models.InvoiceUpdate) {
		if !d.invoices.UpdateInvoiceStatus(u.ID, u.Status) {
			d.logger.WithField("invoice_id", u.ID).Debug("Status update for unknown invoice")
		}
	})
	d.transport.OnInvoiceCreated(func(n models.NewInvoice) {
		d.invoices.PushInvoice(n.Invoice())
	})
	d.transport.OnActivityCreated(func(a models.Activity) {
		d.activities.PushActivity(a)
	})
	d.transport.OnNotification(d.notify)
}

// OnNotification adds a hook called for every server notification.
func (d *Dashboard) OnNotification(fn func(models.Notification)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, fn)
}

// Notifications returns the most recent notifications, newest first.
func (d *Dashboard) Notifications() []models.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.notifications)
}

func (d *Dashboard) notify(n models.Notification) {
	d.logger.WithField("type", n.Type).Info(n.Message)

	d.mu.Lock()
	d.notifications = slices.Insert(d.notifications, 0, n)
	if len(d.notifications) > notificationHistory {
		d.notifications = d.notifications[:notificationHistory]
	}
	hooks := d.hooks
	d.mu.Unlock()

	for _, fn := range hooks {
		fn(n)
	}
}

// CreateInvoice adds the invoice locally and broadcasts it. The local
// record is kept even when the broadcast fails; that error is returned.
func (d *Dashboard) CreateInvoice(draft models.InvoiceDraft, ack realtime.AckFunc) (models.Invoice, error) {
	inv := d.invoices.AddInvoice(draft)
	if err := d.transport.CreateInvoice(models.RequestFor(inv), ack); err != nil {
		d.logger.WithError(err).WithField("invoice_id", inv.ID).Warn("Invoice created locally but not broadcast")
		return inv, err
	}
	return inv, nil
}

// UpdateInvoiceStatus changes the status locally and broadcasts it.
func (d *Dashboard) UpdateInvoiceStatus(id int64, status models.InvoiceStatus, ack realtime.AckFunc) error {
	if !d.invoices.UpdateInvoiceStatus(id, status) {
		d.logger.WithField("invoice_id", id).Debug("Broadcasting status for invoice not held locally")
	}
	update := models.InvoiceUpdate{ID: id, Status: status, UpdatedAt: d.now().UTC()}
	if err := d.transport.EmitInvoiceUpdate(update, ack); err != nil {
		d.logger.WithError(err).WithField("invoice_id", id).Warn("Status changed locally but not broadcast")
		return err
	}
	return nil
}

// Capture reads both stores into a View.
func (d *Dashboard) Capture() View {
	snap := d.invoices.Snapshot()
	return View{
		Connected:     d.transport.Connected(),
		Loading:       snap.Loading,
		InvoiceCount:  len(snap.Invoices),
		Stats:         snap.Stats,
		Recent:        snap.Recent,
		Activities:    d.activities.RecentActivities(),
		Notifications: d.Notifications(),
	}
}
