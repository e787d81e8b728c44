package ledger

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// auditEvent is the single-line JSON trace emitted for every balance
// mutation and failure, independent of the persisted audit tables.
type auditEvent struct {
	Timestamp     time.Time       `json:"timestamp"`
	EventType     string          `json:"event_type"`
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Details       any             `json:"details,omitempty"`
}

func logApplied(transactionID, txType string, amount decimal.Decimal, status string, details any) {
	emit(auditEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     txType,
		TransactionID: transactionID,
		Amount:        amount,
		Status:        status,
		Details:       details,
	})
}

func logFailure(transactionID, accountID string, err error) {
	emit(auditEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func emit(event auditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
