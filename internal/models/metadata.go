package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MetadataKind tags the shape of the metadata attached to a
// transaction. Exactly one payload field may be set and it must match
// the kind; arbitrary maps are not accepted.
type MetadataKind string

const (
	MetaNone            MetadataKind = ""
	MetaAdminAdjustment MetadataKind = "admin_adjustment"
	MetaBillPayment     MetadataKind = "bill_payment"
	MetaVote            MetadataKind = "vote"
	MetaCurrencyTrade   MetadataKind = "currency_trade"
	MetaAgent           MetadataKind = "agent"
	MetaHold            MetadataKind = "hold"
)

// AdminAdjustmentMeta links a transaction produced by a manual
// balance adjustment back to its audit entry.
type AdminAdjustmentMeta struct {
	AuditEntryID string `json:"audit_entry_id"`
	AdminID      string `json:"admin_id"`
	Reason       string `json:"reason"`
}

type BillPaymentMeta struct {
	BillerCode string `json:"biller_code"`
	BillerName string `json:"biller_name"`
	Reference  string `json:"reference"`
}

type VoteMeta struct {
	PollID      string `json:"poll_id"`
	CandidateID string `json:"candidate_id"`
	VoteCount   int    `json:"vote_count"`
}

type CurrencyTradeMeta struct {
	Pair     string          `json:"pair"`     // e.g. USD/XAU
	Rate     decimal.Decimal `json:"rate"`     // quote used for the conversion
	Quantity decimal.Decimal `json:"quantity"` // units of the traded asset
}

// AgentMeta ties an agent-mediated or commission transaction to the
// mediating agent and, for commission legs, to the parent transaction.
type AgentMeta struct {
	AgentID       string          `json:"agent_id"`
	Rate          decimal.Decimal `json:"rate"`
	ParentTxID    string          `json:"parent_transaction_id,omitempty"`
	CashDirection string          `json:"cash_direction,omitempty"` // IN or OUT
}

// HoldMeta marks a PENDING transaction whose funds are held awaiting
// finalization (e.g. a withdrawal request pending admin approval).
type HoldMeta struct {
	RequestedBy string `json:"requested_by"`
	Channel     string `json:"channel"`
}

// Metadata is a tagged union of the known per-type metadata shapes.
type Metadata struct {
	Kind            MetadataKind         `json:"kind,omitempty"`
	AdminAdjustment *AdminAdjustmentMeta `json:"admin_adjustment,omitempty"`
	BillPayment     *BillPaymentMeta     `json:"bill_payment,omitempty"`
	Vote            *VoteMeta            `json:"vote,omitempty"`
	CurrencyTrade   *CurrencyTradeMeta   `json:"currency_trade,omitempty"`
	Agent           *AgentMeta           `json:"agent,omitempty"`
	Hold            *HoldMeta            `json:"hold,omitempty"`
}

// Validate checks that the populated payload matches the kind.
func (m Metadata) Validate() error {
	set := map[MetadataKind]bool{
		MetaAdminAdjustment: m.AdminAdjustment != nil,
		MetaBillPayment:     m.BillPayment != nil,
		MetaVote:            m.Vote != nil,
		MetaCurrencyTrade:   m.CurrencyTrade != nil,
		MetaAgent:           m.Agent != nil,
		MetaHold:            m.Hold != nil,
	}
	count := 0
	for _, present := range set {
		if present {
			count++
		}
	}
	if m.Kind == MetaNone {
		if count != 0 {
			return fmt.Errorf("metadata payload present without a kind")
		}
		return nil
	}
	if count != 1 || !set[m.Kind] {
		return fmt.Errorf("metadata payload does not match kind %q", m.Kind)
	}
	return nil
}

// Value serializes the metadata as JSON for a NULLable jsonb column.
func (m Metadata) Value() (driver.Value, error) {
	if m.Kind == MetaNone {
		return nil, nil
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Scan deserializes a jsonb column into the tagged union.
func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata column type %T", src)
	}
	if len(raw) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(raw, m)
}
