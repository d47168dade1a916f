// Package models defines the invoice and activity records shared by the
// stores, the realtime transport and the mock server.
package models

import (
	"slices"
	"strings"
	"time"

	"github.com/grovetools/invoicedash/errors"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	StatusPaid    InvoiceStatus = "PAID"
	StatusOverdue InvoiceStatus = "OVERDUE"
	StatusDraft   InvoiceStatus = "DRAFT"
	StatusSent    InvoiceStatus = "SENT"
	StatusViewed  InvoiceStatus = "VIEWED"
	StatusPending InvoiceStatus = "PENDING"
)

// AllStatuses lists every known status in display order.
var AllStatuses = []InvoiceStatus{
	StatusPaid, StatusOverdue, StatusDraft, StatusSent, StatusViewed, StatusPending,
}

// Valid reports whether s is one of the known statuses.
func (s InvoiceStatus) Valid() bool {
	return slices.Contains(AllStatuses, s)
}

// Unpaid reports whether s counts towards the unpaid total.
// OVERDUE is tracked in its own bucket and is not unpaid here.
func (s InvoiceStatus) Unpaid() bool {
	switch s {
	case StatusSent, StatusViewed, StatusPending:
		return true
	}
	return false
}

// ParseInvoiceStatus parses a status name in any case.
func ParseInvoiceStatus(v string) (InvoiceStatus, error) {
	s := InvoiceStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", errors.InvalidInput("status", v).WithDetail("allowed", AllStatuses)
	}
	return s, nil
}

// InvoiceItem is a single line on an invoice.
type InvoiceItem struct {
	Description string  `json:"description" yaml:"description"`
	Quantity    float64 `json:"quantity" yaml:"quantity"`
	UnitPrice   float64 `json:"unitPrice" yaml:"unitPrice"`
	Total       float64 `json:"total" yaml:"total"`
	Details     string  `json:"details,omitempty" yaml:"details,omitempty"`
}

// Invoice is a billable document. CreatedAt is set once, when the record
// is created, and is the only recency sort key.
type Invoice struct {
	ID           int64         `json:"id" yaml:"id"`
	Number       string        `json:"number" yaml:"number"`
	Reference    string        `json:"reference" yaml:"reference"`
	Status       InvoiceStatus `json:"status" yaml:"status"`
	Amount       float64       `json:"amount" yaml:"amount"`
	Currency     string        `json:"currency" yaml:"currency"`
	ClientName   string        `json:"clientName" yaml:"clientName"`
	ClientPhone  string        `json:"clientPhone" yaml:"clientPhone"`
	ClientEmail  string        `json:"clientEmail" yaml:"clientEmail"`
	IssueDate    string        `json:"issueDate" yaml:"issueDate"`
	DueDate      string        `json:"dueDate" yaml:"dueDate"`
	CreatedAt    time.Time     `json:"createdAt" yaml:"createdAt"`
	Items        []InvoiceItem `json:"items" yaml:"items"`
	DiscountRate *float64      `json:"discountRate,omitempty" yaml:"discountRate,omitempty"`
}

// Clone returns a deep copy of the invoice.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.Items != nil {
		out.Items = slices.Clone(inv.Items)
	}
	if inv.DiscountRate != nil {
		rate := *inv.DiscountRate
		out.DiscountRate = &rate
	}
	return out
}

// InvoiceDraft carries the user-authored fields of a new invoice.
// The store assigns ID and CreatedAt.
type InvoiceDraft struct {
	Number       string        `json:"number" yaml:"number"`
	Reference    string        `json:"reference" yaml:"reference"`
	Status       InvoiceStatus `json:"status" yaml:"status"`
	Amount       float64       `json:"amount" yaml:"amount"`
	Currency     string        `json:"currency" yaml:"currency"`
	ClientName   string        `json:"clientName" yaml:"clientName"`
	ClientPhone  string        `json:"clientPhone" yaml:"clientPhone"`
	ClientEmail  string        `json:"clientEmail" yaml:"clientEmail"`
	IssueDate    string        `json:"issueDate" yaml:"issueDate"`
	DueDate      string        `json:"dueDate" yaml:"dueDate"`
	Items        []InvoiceItem `json:"items" yaml:"items"`
	DiscountRate *float64      `json:"discountRate,omitempty" yaml:"discountRate,omitempty"`
}

// Materialize builds the full invoice from the draft.
func (d InvoiceDraft) Materialize(id int64, createdAt time.Time) Invoice {
	inv := Invoice{
		ID:           id,
		Number:       d.Number,
		Reference:    d.Reference,
		Status:       d.Status,
		Amount:       d.Amount,
		Currency:     d.Currency,
		ClientName:   d.ClientName,
		ClientPhone:  d.ClientPhone,
		ClientEmail:  d.ClientEmail,
		IssueDate:    d.IssueDate,
		DueDate:      d.DueDate,
		CreatedAt:    createdAt,
		Items:        d.Items,
		DiscountRate: d.DiscountRate,
	}
	inv = inv.Clone()
	if inv.Items == nil {
		inv.Items = []InvoiceItem{}
	}
	return inv
}
