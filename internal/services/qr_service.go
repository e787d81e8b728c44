package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// CashInVoucher is the payload encoded into an agent cash-in QR code.
// A user presents it at an agent shop; scanning and redeeming it fills
// in the cash-in request without the agent typing account numbers.
type CashInVoucher struct {
	UserAccountID string          `json:"userAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     int64           `json:"timestamp"`
	Nonce         string          `json:"nonce"`
}

// QRService issues short-lived cash-in vouchers as QR codes backed by
// Redis; redemption is single use.
type QRService struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewQRService(redisClient *redis.Client) *QRService {
	return &QRService{redis: redisClient, ttl: 5 * time.Minute}
}

// GenerateVoucher builds a cash-in voucher for the user and returns the
// opaque code plus a base64 PNG of its QR rendering.
func (s *QRService) GenerateVoucher(ctx context.Context, userAccountID string, amount decimal.Decimal) (string, string, error) {
	voucher := CashInVoucher{
		UserAccountID: userAccountID,
		Amount:        amount,
		Timestamp:     time.Now().Unix(),
		Nonce:         s.generateNonce(),
	}

	jsonData, err := json.Marshal(voucher)
	if err != nil {
		return "", "", err
	}

	code := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("cashin_qr:%s", code)
	if err := s.redis.Set(ctx, key, jsonData, s.ttl).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return code, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// RedeemVoucher consumes a scanned voucher. Expired, unknown or already
// redeemed codes fail.
func (s *QRService) RedeemVoucher(ctx context.Context, code string) (*CashInVoucher, error) {
	key := fmt.Sprintf("cashin_qr:%s", code)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired QR code")
	}
	if err != nil {
		return nil, err
	}

	var voucher CashInVoucher
	if err := json.Unmarshal(data, &voucher); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return &voucher, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
