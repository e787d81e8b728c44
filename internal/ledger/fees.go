package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/zumapay/backend/internal/models"
)

// feeRule is one cell of the fee decision table:
// fee = clamp(amount * rate / 100, floor, cap), cap absent = no cap.
type feeRule struct {
	rate   decimal.Decimal // percent
	floor  decimal.Decimal
	cap    decimal.Decimal
	capped bool
}

var (
	zero = decimal.Zero

	freeRule = feeRule{}

	// The fee table is product policy and is reproduced verbatim, not
	// derived. Index 0 = verified (KYC APPROVED), index 1 = unverified.
	feeTable = map[models.TransactionType][2]feeRule{
		models.TxDeposit: {freeRule, freeRule},
		models.TxWithdrawal: {
			{rate: decimal.NewFromInt(1), floor: decimal.NewFromInt(50), cap: decimal.NewFromInt(500), capped: true},
			{rate: decimal.NewFromInt(2), floor: decimal.NewFromInt(100), cap: decimal.NewFromInt(1000), capped: true},
		},
		models.TxTransfer: {
			{rate: decimal.RequireFromString("0.5"), floor: decimal.NewFromInt(10), cap: decimal.NewFromInt(200), capped: true},
			{rate: decimal.NewFromInt(1), floor: decimal.NewFromInt(20), cap: decimal.NewFromInt(500), capped: true},
		},
		models.TxBillPayment: {
			{rate: decimal.NewFromInt(2), floor: decimal.NewFromInt(20)},
			{rate: decimal.NewFromInt(2), floor: decimal.NewFromInt(20)},
		},
		models.TxVote:             {freeRule, freeRule},
		models.TxInvestment:       {freeRule, freeRule},
		models.TxInvestmentReturn: {freeRule, freeRule},
		models.TxRefund:           {freeRule, freeRule},
		models.TxCurrencyBuy:      {freeRule, freeRule},
		models.TxCurrencySell:     {freeRule, freeRule},
		models.TxCommission:       {freeRule, freeRule},
		models.TxAgentCredit:      {freeRule, freeRule},
	}
)

// Fee resolves the fee for an operation. Pure function of
// (type, amount, verification tier); no I/O.
func Fee(txType models.TransactionType, amount decimal.Decimal, verified bool) decimal.Decimal {
	rules, ok := feeTable[txType]
	if !ok {
		return zero
	}
	rule := rules[1]
	if verified {
		rule = rules[0]
	}
	if rule.rate.IsZero() && rule.floor.IsZero() {
		return zero
	}
	fee := amount.Mul(rule.rate).Div(decimal.NewFromInt(100)).Round(2)
	if fee.LessThan(rule.floor) {
		fee = rule.floor
	}
	if rule.capped && fee.GreaterThan(rule.cap) {
		fee = rule.cap
	}
	return fee
}

// Commission computes an agent's cut of a gross amount at the given
// percentage rate. Pure function; rounded to two decimal places.
func Commission(amount, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.LessThanOrEqual(zero) {
		return zero
	}
	return amount.Mul(ratePercent).Div(decimal.NewFromInt(100)).Round(2)
}
