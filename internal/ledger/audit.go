package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zumapay/backend/internal/models"
)

// Recorder executes manual (admin-initiated) balance adjustments and
// keeps their immutable audit trail. Each adjustment mutates the
// balance, appends a tagged transaction record and appends the audit
// entry in one database transaction; an adjustment missing any of the
// three is impossible, not merely discouraged.
type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Adjustment describes one manual balance correction.
type Adjustment struct {
	AccountID string
	AdminID   string
	Amount    decimal.Decimal // signed; positive credits, negative debits
	Action    models.AuditAction
	Reason    string
	Notes     *string
	IPAddress string
}

// AdjustmentOutcome is the result of a committed adjustment.
type AdjustmentOutcome struct {
	Entry       *models.AuditEntry
	Transaction *models.Transaction
	NewBalance  decimal.Decimal
}

// AuditFilter narrows audit trail reads.
type AuditFilter struct {
	AccountID string
	AdminID   string
	Action    models.AuditAction
	Limit     int
	Offset    int
}

// AdjustBalance applies a manual credit or debit. Zero amounts and
// empty reasons are rejected; a debit may never drive the balance
// negative. Retried once on a concurrent-modification conflict.
func (r *Recorder) AdjustBalance(ctx context.Context, adj Adjustment) (*AdjustmentOutcome, error) {
	if adj.Amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(adj.Reason) == "" {
		return nil, ErrReasonRequired
	}
	if adj.Action == "" {
		if adj.Amount.IsPositive() {
			adj.Action = models.AuditManualCredit
		} else {
			adj.Action = models.AuditManualDebit
		}
	}

	var (
		out *AdjustmentOutcome
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		out, err = r.adjustOnce(ctx, adj)
		if err == nil {
			return out, nil
		}
		if terminalForRequest(err) {
			return nil, err
		}
		log.Printf("[AUDIT] adjustment on %s failed (attempt %d), retrying: %v", adj.AccountID, attempt+1, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrInternal, err)
}

func (r *Recorder) adjustOnce(ctx context.Context, adj Adjustment) (*AdjustmentOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	acct, err := lockAccount(ctx, tx, adj.AccountID)
	if err != nil {
		return nil, err
	}

	before := acct.Balance
	after := before.Add(adj.Amount)
	if adj.Amount.IsNegative() && after.IsNegative() {
		return nil, ErrInsufficientBalance
	}

	now := time.Now().UTC()
	entryID := uuid.NewString()
	txType := models.TxDeposit
	if adj.Amount.IsNegative() {
		txType = models.TxWithdrawal
	}

	record := &models.Transaction{
		TransactionID: NewTransactionID(PrefixAdjustment),
		Type:          txType,
		Amount:        adj.Amount.Abs(),
		Fee:           decimal.Zero,
		NetAmount:     adj.Amount.Abs(),
		Currency:      acct.Currency,
		Status:        models.TxCompleted,
		Description:   adj.Reason,
		Metadata: models.Metadata{
			Kind: models.MetaAdminAdjustment,
			AdminAdjustment: &models.AdminAdjustmentMeta{
				AuditEntryID: entryID,
				AdminID:      adj.AdminID,
				Reason:       adj.Reason,
			},
		},
		CreatedAt:   now,
		ProcessedAt: &now,
	}
	if adj.Amount.IsPositive() {
		record.DestinationID = &adj.AccountID
	} else {
		record.SourceID = &adj.AccountID
	}

	if err := insertTransaction(ctx, tx, record); err != nil {
		return nil, err
	}
	if err := updateBalance(ctx, tx, acct, after, now); err != nil {
		return nil, err
	}

	entry := &models.AuditEntry{
		ID:            entryID,
		AccountID:     adj.AccountID,
		AdminID:       adj.AdminID,
		Action:        adj.Action,
		Amount:        adj.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reason:        adj.Reason,
		Notes:         adj.Notes,
		TransactionID: record.TransactionID,
		IPAddress:     adj.IPAddress,
		CreatedAt:     now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_entries
		(id, account_id, admin_id, action, amount, balance_before, balance_after, reason, notes, transaction_id, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.AccountID, entry.AdminID, entry.Action, entry.Amount,
		entry.BalanceBefore, entry.BalanceAfter, entry.Reason, entry.Notes,
		entry.TransactionID, entry.IPAddress, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logApplied(record.TransactionID, string(adj.Action), adj.Amount, "SUCCESS", map[string]string{
		"admin_id":   adj.AdminID,
		"account_id": adj.AccountID,
	})
	return &AdjustmentOutcome{Entry: entry, Transaction: record, NewBalance: after}, nil
}

// TrailForAccount returns the audit entries of one account, newest
// first, with the total count for pagination.
func (r *Recorder) TrailForAccount(ctx context.Context, accountID string, limit, offset int) ([]models.AuditEntry, int64, error) {
	return r.Entries(ctx, AuditFilter{AccountID: accountID, Limit: limit, Offset: offset})
}

// Entries returns audit entries matching the filter, newest first.
func (r *Recorder) Entries(ctx context.Context, filter AuditFilter) ([]models.AuditEntry, int64, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.AccountID != "" {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIndex))
		args = append(args, filter.AccountID)
		argIndex++
	}
	if filter.AdminID != "" {
		conditions = append(conditions, fmt.Sprintf("admin_id = $%d", argIndex))
		args = append(args, filter.AdminID)
		argIndex++
	}
	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argIndex))
		args = append(args, filter.Action)
		argIndex++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count audit entries: %v", ErrInternal, err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
		SELECT id, account_id, admin_id, action, amount, balance_before, balance_after, reason, notes, transaction_id, ip_address, created_at
		FROM audit_entries` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: fetch audit entries: %v", ErrInternal, err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var entry models.AuditEntry
		if err := rows.Scan(
			&entry.ID, &entry.AccountID, &entry.AdminID, &entry.Action, &entry.Amount,
			&entry.BalanceBefore, &entry.BalanceAfter, &entry.Reason, &entry.Notes,
			&entry.TransactionID, &entry.IPAddress, &entry.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("%w: scan audit entry: %v", ErrInternal, err)
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}
