package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionRecord links an agent-mediated transaction to the
// commission it earned. Created atomically with the transaction; paid
// flips when the commission is settled out to the agent.
type CommissionRecord struct {
	ID            string          `json:"id" db:"id"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	AgentID       string          `json:"agent_id" db:"agent_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Rate          decimal.Decimal `json:"rate" db:"rate"` // percent applied
	Paid          bool            `json:"paid" db:"paid"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
