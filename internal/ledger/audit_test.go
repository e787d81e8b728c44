package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zumapay/backend/internal/models"
)

const insertAuditQuery = `INSERT INTO audit_entries`

func TestRecorder_AdjustBalance_ManualCredit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recorder := NewRecorder(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAccountQuery).WithArgs("WAL-4000").
		WillReturnRows(accountRow(mock, "WAL-4000", "user-4", "USER", "200", "APPROVED", 2))
	mock.ExpectQuery(insertTxQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))
	mock.ExpectExec(updateQuery).
		WithArgs(d("250"), sqlmock.AnyArg(), "WAL-4000", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertAuditQuery).
		WithArgs(sqlmock.AnyArg(), "WAL-4000", "admin-1", "MANUAL_CREDIT", d("50"),
			d("200"), d("250"), "goodwill gesture", nil, sqlmock.AnyArg(), "10.0.0.5", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	out, err := recorder.AdjustBalance(context.Background(), Adjustment{
		AccountID: "WAL-4000",
		AdminID:   "admin-1",
		Amount:    d("50"),
		Reason:    "goodwill gesture",
		IPAddress: "10.0.0.5",
	})
	require.NoError(t, err)
	assert.True(t, out.NewBalance.Equal(d("250")))
	assert.Equal(t, models.AuditManualCredit, out.Entry.Action)
	assert.True(t, out.Entry.BalanceBefore.Equal(d("200")))
	assert.True(t, out.Entry.BalanceAfter.Equal(d("250")))
	assert.Equal(t, out.Transaction.TransactionID, out.Entry.TransactionID)
	assert.Equal(t, models.TxDeposit, out.Transaction.Type)
	require.NotNil(t, out.Transaction.DestinationID)
	assert.Equal(t, "WAL-4000", *out.Transaction.DestinationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_AdjustBalance_DebitCannotGoNegative(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recorder := NewRecorder(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAccountQuery).WithArgs("WAL-4000").
		WillReturnRows(accountRow(mock, "WAL-4000", "user-4", "USER", "100", "APPROVED", 2))
	mock.ExpectRollback()

	out, err := recorder.AdjustBalance(context.Background(), Adjustment{
		AccountID: "WAL-4000",
		AdminID:   "admin-1",
		Amount:    d("-300"),
		Reason:    "chargeback",
	})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_AdjustBalance_ManualDebit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recorder := NewRecorder(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAccountQuery).WithArgs("WAL-4000").
		WillReturnRows(accountRow(mock, "WAL-4000", "user-4", "USER", "500", "APPROVED", 9))
	mock.ExpectQuery(insertTxQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(31))
	mock.ExpectExec(updateQuery).
		WithArgs(d("380"), sqlmock.AnyArg(), "WAL-4000", 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertAuditQuery).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	out, err := recorder.AdjustBalance(context.Background(), Adjustment{
		AccountID: "WAL-4000",
		AdminID:   "admin-2",
		Amount:    d("-120"),
		Reason:    "duplicate deposit reversal",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AuditManualDebit, out.Entry.Action)
	assert.Equal(t, models.TxWithdrawal, out.Transaction.Type)
	require.NotNil(t, out.Transaction.SourceID)
	assert.Equal(t, "WAL-4000", *out.Transaction.SourceID)
	// The record carries the magnitude, the entry keeps the sign.
	assert.True(t, out.Transaction.Amount.Equal(d("120")))
	assert.True(t, out.Entry.Amount.Equal(d("-120")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_AdjustBalance_Rejections(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recorder := NewRecorder(db)

	_, err = recorder.AdjustBalance(context.Background(), Adjustment{
		AccountID: "WAL-4000",
		AdminID:   "admin-1",
		Amount:    d("0"),
		Reason:    "noop",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = recorder.AdjustBalance(context.Background(), Adjustment{
		AccountID: "WAL-4000",
		AdminID:   "admin-1",
		Amount:    d("25"),
		Reason:    "   ",
	})
	assert.ErrorIs(t, err, ErrReasonRequired)
}

func TestRecorder_Entries_FiltersAndPaginates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recorder := NewRecorder(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_entries WHERE account_id = \$1`).
		WithArgs("WAL-4000").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT id, account_id, admin_id, action, amount, balance_before, balance_after, reason, notes, transaction_id, ip_address, created_at FROM audit_entries WHERE account_id = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("WAL-4000", 50, 0).
		WillReturnRows(auditRows())

	entries, total, err := recorder.TrailForAccount(context.Background(), "WAL-4000", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "MANUAL_DEBIT", string(entries[0].Action))
	assert.Equal(t, "admin-2", entries[0].AdminID)
	assert.True(t, entries[1].Amount.Equal(d("50")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func auditRows() *sqlmock.Rows {
	cols := []string{"id", "account_id", "admin_id", "action", "amount", "balance_before",
		"balance_after", "reason", "notes", "transaction_id", "ip_address", "created_at"}
	return sqlmock.NewRows(cols).
		AddRow("e2", "WAL-4000", "admin-2", "MANUAL_DEBIT", "-120", "500", "380",
			"duplicate deposit reversal", nil, "ADJ20260830000002", "10.0.0.5", time.Now()).
		AddRow("e1", "WAL-4000", "admin-1", "MANUAL_CREDIT", "50", "200", "250",
			"goodwill gesture", nil, "ADJ20260830000001", "10.0.0.5", time.Now())
}
