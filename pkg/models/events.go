package models

import "time"

// InvoiceUpdate is the payload of invoice-updated (inbound) and
// update-invoice (outbound).
type InvoiceUpdate struct {
	ID        int64         `json:"id"`
	Status    InvoiceStatus `json:"status"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Message   string        `json:"message,omitempty"`
}

// NewInvoice is the payload of invoice-created.
type NewInvoice struct {
	ID         int64         `json:"id"`
	Number     string        `json:"number"`
	Status     InvoiceStatus `json:"status"`
	Amount     float64       `json:"amount"`
	ClientName string        `json:"clientName"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Invoice materializes the event as a store record. Fields the event does
// not carry are left empty.
func (n NewInvoice) Invoice() Invoice {
	return Invoice{
		ID:         n.ID,
		Number:     n.Number,
		Status:     n.Status,
		Amount:     n.Amount,
		ClientName: n.ClientName,
		CreatedAt:  n.CreatedAt,
		Items:      []InvoiceItem{},
	}
}

// NewInvoiceRequest is the payload of create-invoice: an invoice-created
// payload without the server-assigned id and createdAt.
type NewInvoiceRequest struct {
	Number     string        `json:"number"`
	Status     InvoiceStatus `json:"status"`
	Amount     float64       `json:"amount"`
	ClientName string        `json:"clientName"`
}

// RequestFor builds the create-invoice payload for a local invoice.
func RequestFor(inv Invoice) NewInvoiceRequest {
	return NewInvoiceRequest{
		Number:     inv.Number,
		Status:     inv.Status,
		Amount:     inv.Amount,
		ClientName: inv.ClientName,
	}
}

// Notification is a free-form message pushed by the server.
type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
