package amqp

import (
	"testing"
)

func TestTransactionEventJSON(t *testing.T) {
	ev := NewTransactionEvent(ActionCreated, "tx-1", "owner-1")
	if ev.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}

	body, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := TransactionEventFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Action != ActionCreated || got.TransactionID != "tx-1" || got.OwnerID != "owner-1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestTransactionEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := TransactionEventFromJSON([]byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
