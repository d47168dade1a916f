package mockserver

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/grovetools/invoicedash/config"
	"github.com/grovetools/invoicedash/pkg/models"
	"github.com/grovetools/invoicedash/pkg/realtime"
)

// Rand is the random source of the generators.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.Intn(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// updateStatuses are the statuses a random invoice-updated picks from.
var updateStatuses = []models.InvoiceStatus{
	models.StatusPaid,
	models.StatusViewed,
	models.StatusOverdue,
	models.StatusSent,
	models.StatusDraft,
}

// runGenerators feeds c until ctx is done. Each loop re-reads its period
// after every tick so a reload applies without reconnecting.
func (s *Server) runGenerators(ctx context.Context, c *conn) {
	go s.every(ctx, config.ServerConfig.InvoiceUpdateInterval, func() {
		c.enqueue(s.envelope(realtime.EventInvoiceUpdated, s.randomUpdate()))
	})
	go s.every(ctx, config.ServerConfig.InvoiceCreateInterval, func() {
		if inv, ok := s.randomInvoice(); ok {
			c.enqueue(s.envelope(realtime.EventInvoiceCreated, inv))
		}
	})
	go s.every(ctx, config.ServerConfig.ActivityInterval, func() {
		if a, ok := s.randomActivity(); ok {
			c.enqueue(s.envelope(realtime.EventActivityCreated, a))
		}
	})
}

func (s *Server) every(ctx context.Context, period func(config.ServerConfig) time.Duration, tick func()) {
	timer := time.NewTimer(period(s.config()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			tick()
			timer.Reset(period(s.config()))
		}
	}
}

func (s *Server) randomUpdate() models.InvoiceUpdate {
	cfg := s.config()
	status := updateStatuses[s.rng.IntN(len(updateStatuses))]
	id := int64(s.rng.IntN(cfg.SampleInvoiceCount) + 1)
	return models.InvoiceUpdate{
		ID:        id,
		Status:    status,
		UpdatedAt: s.now().UTC(),
		Message:   fmt.Sprintf("Invoice #%d status changed to %s", id, status),
	}
}

func (s *Server) randomInvoice() (models.NewInvoice, bool) {
	if s.rng.Float64() >= s.config().InvoiceCreateChance {
		return models.NewInvoice{}, false
	}
	amount := math.Floor(s.rng.Float64()*10000*100) / 100
	return models.NewInvoice{
		ID:         s.ids.NextID(),
		Number:     fmt.Sprintf("INV-%d", s.rng.IntN(10000)),
		Status:     models.StatusDraft,
		Amount:     amount,
		ClientName: "New Client",
		CreatedAt:  s.now().UTC(),
	}, true
}

func (s *Server) randomActivity() (models.Activity, bool) {
	if s.rng.Float64() >= s.config().ActivityChance {
		return models.Activity{}, false
	}
	return models.Activity{
		ID:     s.ids.NextID(),
		Actor:  "System",
		Action: fmt.Sprintf("Performed action #%d", s.rng.IntN(100)),
		Time:   s.now().UTC(),
	}, true
}
