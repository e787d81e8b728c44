package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zumapay/backend/internal/ledger"
)

func TestVoteService_CastVotes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, redisMock := redismock.NewClientMock()
	otp := NewOTPService(rdb, otpTestConfig())
	service := NewVoteService(ledger.NewEngine(db), otp, "NGN", decimal.NewFromInt(100))

	t.Run("invalid otp blocks the purchase", func(t *testing.T) {
		redisMock.ExpectGet("otp:challenge:VOTE:WAL-1001").RedisNil()

		body, _ := json.Marshal(VoteRequest{
			AccountID:   "WAL-1001",
			PollID:      "poll-2026-talent",
			CandidateID: "cand-12",
			VoteCount:   5,
			OTP:         "000000",
		})
		r := httptest.NewRequest("POST", "/vote", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.CastVotes(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("successful purchase debits votes times the platform price", func(t *testing.T) {
		redisMock.ExpectGet("otp:challenge:VOTE:WAL-1001").SetVal(otp.hashCode("493817"))
		redisMock.ExpectDel("otp:challenge:VOTE:WAL-1001").SetVal(1)

		// Vote purchases are fee free; the full 500 lands on the
		// revenue wallet.
		mock.ExpectBegin()
		mock.ExpectQuery(testLockQuery).WithArgs("SYS-REVENUE").
			WillReturnRows(testAccountRow("SYS-REVENUE", "platform", "SYSTEM", "0", "APPROVED", 1))
		mock.ExpectQuery(testLockQuery).WithArgs("WAL-1001").
			WillReturnRows(testAccountRow("WAL-1001", "u-1", "USER", "2000", "APPROVED", 1))
		mock.ExpectQuery(testInsertQuery).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectExec(testUpdateQuery).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(testUpdateQuery).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(VoteRequest{
			AccountID:   "WAL-1001",
			PollID:      "poll-2026-talent",
			CandidateID: "cand-12",
			VoteCount:   5,
			OTP:         "493817",
		})
		r := httptest.NewRequest("POST", "/vote", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.CastVotes(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp OperationResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.True(t, resp.Transaction.Amount.Equal(decimal.NewFromInt(500)))
		assert.True(t, resp.Transaction.Fee.IsZero())
		assert.True(t, resp.Balances["WAL-1001"].Equal(decimal.NewFromInt(1500)))
		assert.True(t, resp.Balances["SYS-REVENUE"].Equal(decimal.NewFromInt(500)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing otp fails validation", func(t *testing.T) {
		body, _ := json.Marshal(VoteRequest{
			AccountID:   "WAL-1001",
			PollID:      "poll-2026-talent",
			CandidateID: "cand-12",
			VoteCount:   5,
		})
		r := httptest.NewRequest("POST", "/vote", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.CastVotes(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("client supplied price is rejected", func(t *testing.T) {
		// The price per vote is platform policy; a caller quoting
		// their own is refused before any OTP or balance work.
		body := []byte(`{"accountId":"WAL-1001","pollId":"poll-2026-talent","candidateId":"cand-12","voteCount":5,"pricePerVote":"0.01","otp":"493817"}`)
		r := httptest.NewRequest("POST", "/vote", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.CastVotes(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
