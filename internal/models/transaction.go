package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the operation family of a ledger transaction.
type TransactionType string

const (
	TxDeposit          TransactionType = "DEPOSIT"
	TxWithdrawal       TransactionType = "WITHDRAWAL"
	TxTransfer         TransactionType = "TRANSFER"
	TxBillPayment      TransactionType = "BILL_PAYMENT"
	TxVote             TransactionType = "VOTE"
	TxInvestment       TransactionType = "INVESTMENT"
	TxInvestmentReturn TransactionType = "INVESTMENT_RETURN"
	TxCommission       TransactionType = "COMMISSION"
	TxAgentCredit      TransactionType = "AGENT_CREDIT"
	TxCurrencyBuy      TransactionType = "CURRENCY_BUY"
	TxCurrencySell     TransactionType = "CURRENCY_SELL"
	TxRefund           TransactionType = "REFUND"
)

// TransactionStatus is the lifecycle state of a transaction record.
// COMPLETED and FAILED are terminal; a record never leaves them.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
	TxFailed    TransactionStatus = "FAILED"
)

// Terminal reports whether the status will never change again.
func (s TransactionStatus) Terminal() bool {
	return s == TxCompleted || s == TxFailed
}

// Transaction is the append-only record of one monetary event.
// At least one of SourceID/DestinationID is set, never neither.
// NetAmount = Amount - Fee for sourced (debit) operations and Amount
// for pure credits.
type Transaction struct {
	ID            int64             `json:"-" db:"id"`
	TransactionID string            `json:"transaction_id" db:"transaction_id"`
	SourceID      *string           `json:"source_id" db:"source_id"`
	DestinationID *string           `json:"destination_id" db:"destination_id"`
	Type          TransactionType   `json:"type" db:"type"`
	Amount        decimal.Decimal   `json:"amount" db:"amount"`
	Fee           decimal.Decimal   `json:"fee" db:"fee"`
	NetAmount     decimal.Decimal   `json:"net_amount" db:"net_amount"`
	Currency      string            `json:"currency" db:"currency"`
	Status        TransactionStatus `json:"status" db:"status"`
	Description   string            `json:"description" db:"description"`
	Metadata      Metadata          `json:"metadata" db:"metadata"`
	FailureReason *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	ProcessedAt   *time.Time        `json:"processed_at" db:"processed_at"`
}

// Sourced reports whether the operation debits an internal account.
func (t *Transaction) Sourced() bool {
	return t.SourceID != nil && *t.SourceID != ""
}
