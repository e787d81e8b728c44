package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/zumapay/backend/internal/config"
)

func otpTestConfig() *config.LedgerConfig {
	return &config.LedgerConfig{
		OTPLength:          6,
		OTPTimeout:         5 * time.Minute,
		MaxOTPPerUser:      3,
		OTPRateLimitWindow: time.Hour,
		OTPHashIterations:  100,
	}
}

func TestOTPService_VerifyConsumesCode(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	service := NewOTPService(rdb, otpTestConfig())

	stored := service.hashCode("493817")
	mock.ExpectGet("otp:challenge:VOTE:WAL-1001").SetVal(stored)
	mock.ExpectDel("otp:challenge:VOTE:WAL-1001").SetVal(1)

	err := service.Verify(context.Background(), "WAL-1001", OTPVote, "493817")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPService_VerifyRejectsWrongCode(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	service := NewOTPService(rdb, otpTestConfig())

	mock.ExpectGet("otp:challenge:VOTE:WAL-1001").SetVal(service.hashCode("493817"))

	err := service.Verify(context.Background(), "WAL-1001", OTPVote, "111111")
	assert.ErrorIs(t, err, ErrOTPInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPService_VerifyRejectsExpiredCode(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	service := NewOTPService(rdb, otpTestConfig())

	mock.ExpectGet("otp:challenge:VOTE:WAL-1001").RedisNil()

	err := service.Verify(context.Background(), "WAL-1001", OTPVote, "493817")
	assert.ErrorIs(t, err, ErrOTPInvalid)
}

func TestOTPService_PurposeScoping(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	service := NewOTPService(rdb, otpTestConfig())

	// A code issued for voting does not exist under the trade purpose.
	mock.ExpectGet("otp:challenge:CURRENCY_TRADE:WAL-1001").RedisNil()

	err := service.Verify(context.Background(), "WAL-1001", OTPCurrencyTrade, "493817")
	assert.ErrorIs(t, err, ErrOTPInvalid)
}

func TestOTPService_IssueRateLimited(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	service := NewOTPService(rdb, otpTestConfig())

	mock.ExpectGet("otp:ratelimit:WAL-1001").SetVal("3")

	_, err := service.Issue(context.Background(), "WAL-1001", OTPVote)
	assert.ErrorIs(t, err, ErrOTPRateLimited)
}
