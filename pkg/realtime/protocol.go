// Package realtime is the WebSocket transport between the dashboard and the
// event server. Every text frame carries one JSON Envelope.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Event names on the wire.
const (
	// Server to client
	EventInvoiceUpdated  = "invoice-updated"
	EventInvoiceCreated  = "invoice-created"
	EventNotification    = "notification"
	EventActivityCreated = "create-activity"
	EventError           = "error"

	// Client to server
	EventUpdateInvoice = "update-invoice"
	EventCreateInvoice = "create-invoice"

	// Either direction; answers a frame that carried an ackId
	EventAck = "ack"
)

// Envelope is a single frame. A non-zero AckID on a request asks the peer
// to answer with an EventAck frame carrying the same id.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID uint64          `json:"ackId,omitempty"`
}

// ErrorPayload is the data of an EventError frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope marshals data into a frame.
func NewEnvelope(event string, data interface{}, ackID uint64) (Envelope, error) {
	env := Envelope{Event: event, AckID: ackID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", event, err)
		}
		env.Data = raw
	}
	return env, nil
}

// Decode unmarshals the frame payload into v.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s frame has no data", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Event, err)
	}
	return nil
}

// Ack builds the acknowledgment answering e.
func (e Envelope) Ack(data interface{}) (Envelope, error) {
	return NewEnvelope(EventAck, data, e.AckID)
}
