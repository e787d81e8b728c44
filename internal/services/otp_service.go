package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"

	"github.com/go-redis/redis/v8"

	"github.com/zumapay/backend/internal/config"
)

// OTPPurpose scopes a one-time code to the operation it authorizes; a
// code issued for voting cannot be replayed against a currency trade.
type OTPPurpose string

const (
	OTPVote          OTPPurpose = "VOTE"
	OTPCurrencyTrade OTPPurpose = "CURRENCY_TRADE"
)

var (
	ErrOTPRateLimited = errors.New("otp rate limit exceeded")
	ErrOTPInvalid     = errors.New("invalid or expired otp")
)

// OTPService issues and verifies short-lived numeric codes. Codes are
// stored hashed in Redis with the configured TTL and consumed on first
// successful verification.
type OTPService struct {
	redis  *redis.Client
	config *config.LedgerConfig
}

func NewOTPService(redisClient *redis.Client, cfg *config.LedgerConfig) *OTPService {
	return &OTPService{redis: redisClient, config: cfg}
}

func (s *OTPService) challengeKey(purpose OTPPurpose, accountID string) string {
	return fmt.Sprintf("otp:challenge:%s:%s", purpose, accountID)
}

func (s *OTPService) rateLimitKey(accountID string) string {
	return fmt.Sprintf("otp:ratelimit:%s", accountID)
}

// Issue generates a code for the account and purpose. The caller is
// responsible for delivering it (SMS gateway); it is never returned in
// an API response in production paths.
func (s *OTPService) Issue(ctx context.Context, accountID string, purpose OTPPurpose) (string, error) {
	if s.redis == nil {
		return "", errors.New("otp service unavailable without redis")
	}
	if err := s.checkRateLimit(ctx, accountID); err != nil {
		return "", err
	}

	code := s.generateCode()
	err := s.redis.Set(ctx, s.challengeKey(purpose, accountID), s.hashCode(code), s.config.OTPTimeout).Err()
	if err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	s.incrementRateLimit(ctx, accountID)

	log.Printf("[OTP] Issued %s code for %s, expires in %s", purpose, accountID, s.config.OTPTimeout)
	return code, nil
}

// Verify consumes the code for the account and purpose. A code survives
// at most one successful verification.
func (s *OTPService) Verify(ctx context.Context, accountID string, purpose OTPPurpose, code string) error {
	if s.redis == nil {
		return errors.New("otp service unavailable without redis")
	}
	key := s.challengeKey(purpose, accountID)
	stored, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrOTPInvalid
		}
		return fmt.Errorf("read otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(s.hashCode(code))) != 1 {
		log.Printf("[OTP] Verification failed for %s (%s)", accountID, purpose)
		return ErrOTPInvalid
	}
	s.redis.Del(ctx, key)
	return nil
}

func (s *OTPService) generateCode() string {
	const charset = "0123456789"
	code := make([]byte, s.config.OTPLength)
	charsetLen := big.NewInt(int64(len(charset)))
	for i := range code {
		n, _ := rand.Int(rand.Reader, charsetLen)
		code[i] = charset[n.Int64()]
	}
	return string(code)
}

func (s *OTPService) hashCode(code string) string {
	hash := sha256.Sum256([]byte(code))
	for i := 1; i < s.config.OTPHashIterations; i++ {
		hash = sha256.Sum256(hash[:])
	}
	return hex.EncodeToString(hash[:])
}

func (s *OTPService) checkRateLimit(ctx context.Context, accountID string) error {
	count, err := s.redis.Get(ctx, s.rateLimitKey(accountID)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if count >= s.config.MaxOTPPerUser {
		return ErrOTPRateLimited
	}
	return nil
}

func (s *OTPService) incrementRateLimit(ctx context.Context, accountID string) {
	key := s.rateLimitKey(accountID)
	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.OTPRateLimitWindow)
	pipe.Exec(ctx)
}
