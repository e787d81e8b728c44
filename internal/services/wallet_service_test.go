package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zumapay/backend/internal/ledger"
)

const (
	testLockQuery   = `SELECT id, owner_id, type, currency, balance, kyc_status, commission_rate, version, updated_at FROM accounts WHERE id = \$1 FOR UPDATE`
	testUpdateQuery = `UPDATE accounts SET balance = \$1, version = version \+ 1`
	testInsertQuery = `INSERT INTO transactions`
)

func testAccountRow(id, ownerID, acctType, balance, kyc string, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "type", "currency", "balance",
		"kyc_status", "commission_rate", "version", "updated_at"}).
		AddRow(id, ownerID, acctType, "NGN", balance, kyc, "0", version, time.Now())
}

func TestWalletService_Deposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db, ledger.NewEngine(db), "NGN")

	t.Run("successful deposit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(testLockQuery).WithArgs("WAL-1001").
			WillReturnRows(testAccountRow("WAL-1001", "u-1", "USER", "200", "APPROVED", 1))
		mock.ExpectQuery(testInsertQuery).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectExec(testUpdateQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(DepositRequest{
			AccountID: "WAL-1001",
			Amount:    decimal.NewFromInt(5000),
		})
		r := httptest.NewRequest("POST", "/wallet/deposit", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Deposit(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp OperationResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "DEPOSIT", string(resp.Transaction.Type))
		assert.True(t, resp.Balances["WAL-1001"].Equal(decimal.NewFromInt(5200)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account id", func(t *testing.T) {
		body, _ := json.Marshal(DepositRequest{Amount: decimal.NewFromInt(5000)})
		r := httptest.NewRequest("POST", "/wallet/deposit", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Deposit(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("zero amount", func(t *testing.T) {
		body, _ := json.Marshal(DepositRequest{AccountID: "WAL-1001"})
		r := httptest.NewRequest("POST", "/wallet/deposit", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Deposit(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWalletService_Withdraw_InsufficientBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db, ledger.NewEngine(db), "NGN")

	mock.ExpectBegin()
	mock.ExpectQuery(testLockQuery).WithArgs("SYS-REVENUE").
		WillReturnRows(testAccountRow("SYS-REVENUE", "platform", "SYSTEM", "0", "APPROVED", 1))
	mock.ExpectQuery(testLockQuery).WithArgs("WAL-1001").
		WillReturnRows(testAccountRow("WAL-1001", "u-1", "USER", "500", "APPROVED", 1))
	mock.ExpectRollback()

	body, _ := json.Marshal(WithdrawRequest{
		AccountID: "WAL-1001",
		Amount:    decimal.NewFromInt(600),
	})
	r := httptest.NewRequest("POST", "/wallet/withdraw", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	service.Withdraw(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "Insufficient balance", resp.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletService_Transfer_RejectsSelfTransfer(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db, ledger.NewEngine(db), "NGN")

	body, _ := json.Marshal(TransferRequest{
		SourceID:      "WAL-1001",
		DestinationID: "WAL-1001",
		Amount:        decimal.NewFromInt(100),
	})
	r := httptest.NewRequest("POST", "/wallet/transfer", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	service.Transfer(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWalletService_GetBalance_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db, ledger.NewEngine(db), "NGN")

	mock.ExpectQuery(`SELECT id, owner_id, type, currency, balance, kyc_status, commission_rate, version, updated_at FROM accounts WHERE id = \$1`).
		WithArgs("WAL-9999").
		WillReturnError(errNoRows())

	r := httptest.NewRequest("GET", "/wallet/WAL-9999/balance", nil)
	r = withURLParam(r, "accountID", "WAL-9999")
	w := httptest.NewRecorder()

	service.GetBalance(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
