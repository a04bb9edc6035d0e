package amqp

import (
	"encoding/json"
	"time"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// TransactionEvent is a lightweight change notification published after a
// successful remote mutation. It carries only identifiers; consumers fetch
// the full record from the store when they need it.
type TransactionEvent struct {
	Action        string    `json:"action"`
	TransactionID string    `json:"transactionId"`
	OwnerID       string    `json:"ownerId"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(action, transactionID, ownerID string) *TransactionEvent {
	return &TransactionEvent{
		Action:        action,
		TransactionID: transactionID,
		OwnerID:       ownerID,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON creates an event from JSON bytes
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
