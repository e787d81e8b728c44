package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zumapay/backend/internal/models"
)

// Engine is the only component permitted to mutate an account balance
// or append a transaction record. Every Apply runs as one database
// transaction: row locks in sorted id order, sufficiency check against
// the locked balance, record insert, balance writes with an optimistic
// version check. A transaction-id collision or version conflict is
// retried once with a fresh read; the second failure surfaces as
// ErrInternal.
type Engine struct {
	db               *sql.DB
	revenueAccountID string
}

// Operation is one typed request against the ledger.
type Operation struct {
	Type          models.TransactionType
	Amount        decimal.Decimal
	Currency      string
	SourceID      string // debited account, empty for pure credits
	DestinationID string // credited account, empty for pure debits
	Description   string
	Metadata      models.Metadata

	// AgentID and CommissionRate describe an agent-mediated operation.
	// When set, the agent earns a commission as a separate COMMISSION
	// transaction paid out of the platform revenue wallet.
	AgentID        string
	CommissionRate decimal.Decimal

	// Hold records the transaction as PENDING with the source debited
	// up front (funds held). Finalize later completes or refunds it.
	Hold bool
}

// Outcome carries the records created by a successful Apply and the
// post-commit balances of every account the operation touched.
type Outcome struct {
	Transaction      *models.Transaction
	Commission       *models.Transaction
	CommissionRecord *models.CommissionRecord
	Balances         map[string]decimal.Decimal
}

func NewEngine(db *sql.DB) *Engine {
	revenue := "SYS-REVENUE"
	if env := os.Getenv("PLATFORM_REVENUE_ACCOUNT"); env != "" {
		revenue = env
	}
	return &Engine{db: db, revenueAccountID: revenue}
}

// Apply validates and executes an operation atomically.
func (e *Engine) Apply(ctx context.Context, op Operation) (*Outcome, error) {
	if op.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if op.SourceID == "" && op.DestinationID == "" {
		return nil, fmt.Errorf("%w: operation must name a source or destination", ErrInvalidAmount)
	}
	if op.Hold && op.DestinationID != "" {
		return nil, fmt.Errorf("%w: held operations settle externally and cannot credit an internal account", ErrInvalidAmount)
	}
	if op.Hold && op.AgentID != "" {
		// A commission paid while the parent is PENDING could not be
		// clawed back on rejection.
		return nil, fmt.Errorf("%w: held operations cannot carry a commission leg", ErrInvalidAmount)
	}
	if err := op.Metadata.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	var (
		out *Outcome
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		out, err = e.applyOnce(ctx, op)
		if err == nil {
			return out, nil
		}
		if terminalForRequest(err) {
			return nil, err
		}
		log.Printf("[LEDGER] apply %s failed (attempt %d), retrying: %v", op.Type, attempt+1, err)
	}
	logFailure("", op.SourceID, err)
	if errors.Is(err, ErrInternal) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %v", ErrInternal, err)
}

func (e *Engine) applyOnce(ctx context.Context, op Operation) (*Outcome, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// Lock every involved row in sorted id order to prevent deadlocks
	// between concurrent cross-account operations.
	lockIDs := map[string]bool{}
	if op.SourceID != "" {
		lockIDs[op.SourceID] = true
	}
	if op.DestinationID != "" {
		lockIDs[op.DestinationID] = true
	}
	if op.AgentID != "" {
		lockIDs[op.AgentID] = true
	}
	if op.SourceID != "" || op.AgentID != "" {
		// Fees and commissions settle against the revenue wallet.
		lockIDs[e.revenueAccountID] = true
	}
	ordered := make([]string, 0, len(lockIDs))
	for id := range lockIDs {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	accounts := make(map[string]*models.Account, len(ordered))
	for _, id := range ordered {
		acct, err := lockAccount(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = acct
	}

	var fee decimal.Decimal
	if op.SourceID != "" {
		fee = Fee(op.Type, op.Amount, accounts[op.SourceID].Verified())
	}
	net := op.Amount
	if op.SourceID != "" {
		net = op.Amount.Sub(fee)
	}
	total := op.Amount.Add(fee)

	deltas := map[string]decimal.Decimal{}
	if op.SourceID != "" {
		src := accounts[op.SourceID]
		if src.Type != models.AccountSystem && src.Balance.LessThan(total) {
			return nil, ErrInsufficientBalance
		}
		deltas[op.SourceID] = deltas[op.SourceID].Sub(total)
		if !op.Hold {
			// The withheld remainder (sender and recipient fee legs)
			// accrues to the revenue wallet; for held operations it is
			// credited at finalization. For pure debits the net amount
			// leaves the system (cash payout, biller settlement) and
			// only the withheld value stays.
			deltas[e.revenueAccountID] = deltas[e.revenueAccountID].Add(total.Sub(net))
		}
	}
	if op.DestinationID != "" {
		deltas[op.DestinationID] = deltas[op.DestinationID].Add(net)
	}

	var commission decimal.Decimal
	if op.AgentID != "" {
		commission = Commission(op.Amount, op.CommissionRate)
		if commission.IsPositive() {
			deltas[op.AgentID] = deltas[op.AgentID].Add(commission)
			deltas[e.revenueAccountID] = deltas[e.revenueAccountID].Sub(commission)
		}
	}

	now := time.Now().UTC()
	status := models.TxCompleted
	var processedAt *time.Time
	if op.Hold {
		status = models.TxPending
	} else {
		processedAt = &now
	}

	record := &models.Transaction{
		TransactionID: NewTransactionID(PrefixTransaction),
		Type:          op.Type,
		Amount:        op.Amount,
		Fee:           fee,
		NetAmount:     net,
		Currency:      op.Currency,
		Status:        status,
		Description:   op.Description,
		Metadata:      op.Metadata,
		CreatedAt:     now,
		ProcessedAt:   processedAt,
	}
	if op.SourceID != "" {
		record.SourceID = &op.SourceID
	}
	if op.DestinationID != "" {
		record.DestinationID = &op.DestinationID
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return nil, err
	}

	for _, id := range ordered {
		delta, ok := deltas[id]
		if !ok || delta.IsZero() {
			continue
		}
		acct := accounts[id]
		newBalance := acct.Balance.Add(delta)
		if newBalance.IsNegative() && acct.Type != models.AccountSystem {
			return nil, ErrInsufficientBalance
		}
		if err := updateBalance(ctx, tx, acct, newBalance, now); err != nil {
			return nil, err
		}
		acct.Balance = newBalance
	}

	out := &Outcome{Transaction: record, Balances: map[string]decimal.Decimal{}}

	if op.AgentID != "" && commission.IsPositive() {
		commTx := &models.Transaction{
			TransactionID: NewTransactionID(PrefixTransaction),
			SourceID:      &e.revenueAccountID,
			DestinationID: &op.AgentID,
			Type:          models.TxCommission,
			Amount:        commission,
			Fee:           decimal.Zero,
			NetAmount:     commission,
			Currency:      op.Currency,
			Status:        models.TxCompleted,
			Description:   fmt.Sprintf("Commission for %s", record.TransactionID),
			Metadata: models.Metadata{
				Kind: models.MetaAgent,
				Agent: &models.AgentMeta{
					AgentID:    op.AgentID,
					Rate:       op.CommissionRate,
					ParentTxID: record.TransactionID,
				},
			},
			CreatedAt:   now,
			ProcessedAt: &now,
		}
		if err := insertTransaction(ctx, tx, commTx); err != nil {
			return nil, err
		}
		commRecord := &models.CommissionRecord{
			ID:            uuid.NewString(),
			TransactionID: record.TransactionID,
			AgentID:       op.AgentID,
			Amount:        commission,
			Rate:          op.CommissionRate,
			CreatedAt:     now,
		}
		if err := insertCommission(ctx, tx, commRecord); err != nil {
			return nil, err
		}
		out.Commission = commTx
		out.CommissionRecord = commRecord
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	for id, acct := range accounts {
		out.Balances[id] = acct.Balance
	}
	logApplied(record.TransactionID, string(op.Type), op.Amount, string(status), map[string]string{
		"source":      op.SourceID,
		"destination": op.DestinationID,
	})
	return out, nil
}

// Finalize resolves a PENDING (held) transaction. Approval credits the
// withheld fee value to the revenue wallet and marks the record
// COMPLETED; rejection refunds the full held amount to the source and
// marks it FAILED with the given reason. Either way the transition and
// the balance mutation commit together.
func (e *Engine) Finalize(ctx context.Context, transactionID string, approve bool, reason string) (*models.Transaction, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	record, err := lockTransaction(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.TxPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, transactionID, record.Status)
	}
	if !record.Sourced() {
		return nil, fmt.Errorf("%w: held transaction %s has no source", ErrInternal, transactionID)
	}

	now := time.Now().UTC()
	if approve {
		withheld := record.Amount.Add(record.Fee).Sub(record.NetAmount)
		if withheld.IsPositive() {
			revenue, err := lockAccount(ctx, tx, e.revenueAccountID)
			if err != nil {
				return nil, err
			}
			if err := updateBalance(ctx, tx, revenue, revenue.Balance.Add(withheld), now); err != nil {
				return nil, err
			}
		}
		record.Status = models.TxCompleted
		record.ProcessedAt = &now
	} else {
		source, err := lockAccount(ctx, tx, *record.SourceID)
		if err != nil {
			return nil, err
		}
		refund := record.Amount.Add(record.Fee)
		if err := updateBalance(ctx, tx, source, source.Balance.Add(refund), now); err != nil {
			return nil, err
		}
		record.Status = models.TxFailed
		if reason == "" {
			reason = "rejected"
		}
		record.FailureReason = &reason
		record.ProcessedAt = &now
	}

	if err := finalizeTransaction(ctx, tx, record); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}
	logApplied(record.TransactionID, string(record.Type), record.Amount, string(record.Status), nil)
	return record, nil
}

// GetTransaction fetches a transaction record by its public id.
func (e *Engine) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return scanTransaction(e.db.QueryRowContext(ctx, `
		SELECT id, transaction_id, source_id, destination_id, type, amount, fee, net_amount,
		       currency, status, description, metadata, failure_reason, created_at, processed_at
		FROM transactions
		WHERE transaction_id = $1`, transactionID))
}

// GetAccount fetches an account row without locking it.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var acct models.Account
	err := e.db.QueryRowContext(ctx, `
		SELECT id, owner_id, type, currency, balance, kyc_status, commission_rate, version, updated_at
		FROM accounts
		WHERE id = $1`, accountID).Scan(
		&acct.ID, &acct.OwnerID, &acct.Type, &acct.Currency, &acct.Balance,
		&acct.KYCStatus, &acct.CommissionRate, &acct.Version, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return &acct, nil
}

// RevenueAccountID exposes the platform revenue wallet id for callers
// that need to report on fee income.
func (e *Engine) RevenueAccountID() string {
	return e.revenueAccountID
}

// --- row helpers ---

func lockAccount(ctx context.Context, tx *sql.Tx, accountID string) (*models.Account, error) {
	var acct models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT id, owner_id, type, currency, balance, kyc_status, commission_rate, version, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(
		&acct.ID, &acct.OwnerID, &acct.Type, &acct.Currency, &acct.Balance,
		&acct.KYCStatus, &acct.CommissionRate, &acct.Version, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lock account %s: %w", accountID, err)
	}
	return &acct, nil
}

func updateBalance(ctx context.Context, tx *sql.Tx, acct *models.Account, newBalance decimal.Decimal, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, last_transaction_at = $2, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, now, acct.ID, acct.Version)
	if err != nil {
		return fmt.Errorf("update balance %s: %w", acct.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update balance %s: %w", acct.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: account %s version %d", ErrConcurrentModification, acct.ID, acct.Version)
	}
	acct.Version++
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, record *models.Transaction) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO transactions
		(transaction_id, source_id, destination_id, type, amount, fee, net_amount, currency, status, description, metadata, failure_reason, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		record.TransactionID, record.SourceID, record.DestinationID, record.Type,
		record.Amount, record.Fee, record.NetAmount, record.Currency, record.Status,
		record.Description, record.Metadata, record.FailureReason, record.CreatedAt, record.ProcessedAt,
	).Scan(&record.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction id %s", ErrConcurrentModification, record.TransactionID)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func insertCommission(ctx context.Context, tx *sql.Tx, record *models.CommissionRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO commissions (id, transaction_id, agent_id, amount, rate, paid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.TransactionID, record.AgentID, record.Amount, record.Rate, record.Paid, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert commission: %w", err)
	}
	return nil
}

func lockTransaction(ctx context.Context, tx *sql.Tx, transactionID string) (*models.Transaction, error) {
	return scanTransaction(tx.QueryRowContext(ctx, `
		SELECT id, transaction_id, source_id, destination_id, type, amount, fee, net_amount,
		       currency, status, description, metadata, failure_reason, created_at, processed_at
		FROM transactions
		WHERE transaction_id = $1
		FOR UPDATE`, transactionID))
}

func finalizeTransaction(ctx context.Context, tx *sql.Tx, record *models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, failure_reason = $2, processed_at = $3
		WHERE transaction_id = $4 AND status = 'PENDING'`,
		record.Status, record.FailureReason, record.ProcessedAt, record.TransactionID)
	if err != nil {
		return fmt.Errorf("finalize transaction %s: %w", record.TransactionID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var record models.Transaction
	err := row.Scan(
		&record.ID, &record.TransactionID, &record.SourceID, &record.DestinationID,
		&record.Type, &record.Amount, &record.Fee, &record.NetAmount, &record.Currency,
		&record.Status, &record.Description, &record.Metadata, &record.FailureReason,
		&record.CreatedAt, &record.ProcessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return &record, nil
}
