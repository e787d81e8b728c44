package services

import (
	"errors"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/zumapay/backend/internal/ledger"
	"github.com/zumapay/backend/internal/models"
	"github.com/zumapay/backend/internal/rates"
)

// CurrencyService trades foreign currency and commodity units against
// wallet balance at the cached market rate. The platform treasury takes
// the other side of every trade; holdings are recorded in transaction
// metadata, the wallet balance itself stays in the home currency.
type CurrencyService struct {
	engine    *ledger.Engine
	rates     *rates.Cache
	otp       *OTPService
	validator *ValidationHelper
	currency  string
}

func NewCurrencyService(engine *ledger.Engine, rateCache *rates.Cache, otp *OTPService, defaultCurrency string) *CurrencyService {
	return &CurrencyService{
		engine:    engine,
		rates:     rateCache,
		otp:       otp,
		validator: NewValidationHelper(),
		currency:  defaultCurrency,
	}
}

// TradeRequest buys or sells units of a quoted asset.
// @Description Currency trade request structure
type TradeRequest struct {
	AccountID string          `json:"accountId" validate:"required" example:"WAL-1001"`
	Pair      string          `json:"pair" validate:"required" example:"USD/NGN"`
	Quantity  decimal.Decimal `json:"quantity" example:"25"`
	OTP       string          `json:"otp,omitempty" example:"493817"`
}

// TradeResponse reports the executed trade and the rate used.
type TradeResponse struct {
	Success     bool                       `json:"success"`
	Transaction *models.Transaction        `json:"transaction"`
	Rate        *rates.Rate                `json:"rate"`
	Balances    map[string]decimal.Decimal `json:"balances,omitempty"`
}

// GetRate returns the current cached rate for a pair
// @Summary Get a market rate
// @Tags currency
// @Produce json
// @Param pair query string true "Pair, e.g. USD/NGN"
// @Success 200 {object} rates.Rate
// @Failure 502 {object} ErrorResponse
// @Router /currency/rate [get]
func (cs *CurrencyService) GetRate(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		SendErrorResponse(w, "pair is required", http.StatusBadRequest, nil)
		return
	}
	rate, err := cs.rates.Get(r.Context(), pair)
	if err != nil {
		log.Printf("[CURRENCY] Rate fetch for %s failed: %v", pair, err)
		SendErrorResponse(w, "Rate unavailable", http.StatusBadGateway, nil)
		return
	}
	SendJSON(w, http.StatusOK, rate)
}

// Buy purchases asset units with wallet balance
// @Summary Buy currency or commodity units
// @Description Debit the wallet for quantity * rate at the current cached rate
// @Tags currency
// @Accept json
// @Produce json
// @Param request body TradeRequest true "Trade request"
// @Success 201 {object} TradeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /currency/buy [post]
func (cs *CurrencyService) Buy(w http.ResponseWriter, r *http.Request) {
	cs.trade(w, r, models.TxCurrencyBuy)
}

// Sell converts asset units back to wallet balance
// @Summary Sell currency or commodity units
// @Description Credit the wallet with quantity * rate; requires a valid OTP
// @Tags currency
// @Accept json
// @Produce json
// @Param request body TradeRequest true "Trade request"
// @Success 201 {object} TradeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /currency/sell [post]
func (cs *CurrencyService) Sell(w http.ResponseWriter, r *http.Request) {
	cs.trade(w, r, models.TxCurrencySell)
}

// RequestTradeOTP issues the OTP that authorizes a sell
// @Summary Request a trade OTP
// @Tags currency
// @Accept json
// @Produce json
// @Param request body map[string]string true "Account ID"
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} ErrorResponse
// @Router /currency/otp [post]
func (cs *CurrencyService) RequestTradeOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId" validate:"required"`
	}
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	code, err := cs.otp.Issue(r.Context(), req.AccountID, OTPCurrencyTrade)
	if err != nil {
		if errors.Is(err, ErrOTPRateLimited) {
			SendErrorResponse(w, "Too many OTP requests", http.StatusTooManyRequests, nil)
			return
		}
		log.Printf("[CURRENCY] OTP issue for %s failed: %v", req.AccountID, err)
		SendErrorResponse(w, "Failed to issue OTP", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[CURRENCY] OTP issued for %s", req.AccountID)
	SendJSON(w, http.StatusOK, map[string]any{
		"message":     "OTP sent",
		"sandboxCode": code,
	})
}

func (cs *CurrencyService) trade(w http.ResponseWriter, r *http.Request, txType models.TransactionType) {
	var req TradeRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if !req.Quantity.IsPositive() {
		SendErrorResponse(w, "Invalid quantity", http.StatusBadRequest, nil)
		return
	}

	// Money leaving the platform needs a second factor.
	if txType == models.TxCurrencySell {
		if err := cs.otp.Verify(r.Context(), req.AccountID, OTPCurrencyTrade, req.OTP); err != nil {
			if errors.Is(err, ErrOTPInvalid) {
				SendErrorResponse(w, "Invalid or expired OTP", http.StatusUnauthorized, nil)
				return
			}
			log.Printf("[CURRENCY] OTP verify for %s failed: %v", req.AccountID, err)
			SendErrorResponse(w, "Failed to verify OTP", http.StatusInternalServerError, nil)
			return
		}
	}

	amount, rate, err := cs.rates.Convert(r.Context(), req.Pair, req.Quantity)
	if err != nil {
		log.Printf("[CURRENCY] Rate fetch for %s failed: %v", req.Pair, err)
		SendErrorResponse(w, "Rate unavailable", http.StatusBadGateway, nil)
		return
	}

	op := ledger.Operation{
		Type:     txType,
		Amount:   amount,
		Currency: cs.currency,
		Metadata: models.Metadata{
			Kind: models.MetaCurrencyTrade,
			CurrencyTrade: &models.CurrencyTradeMeta{
				Pair:     req.Pair,
				Rate:     rate.Value,
				Quantity: req.Quantity,
			},
		},
	}
	if txType == models.TxCurrencyBuy {
		op.SourceID = req.AccountID
		op.DestinationID = cs.engine.RevenueAccountID()
		op.Description = "Buy " + req.Pair
	} else {
		op.SourceID = cs.engine.RevenueAccountID()
		op.DestinationID = req.AccountID
		op.Description = "Sell " + req.Pair
	}

	out, err := cs.engine.Apply(r.Context(), op)
	if err != nil {
		log.Printf("[CURRENCY] Trade %s by %s failed: %v", req.Pair, req.AccountID, err)
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, TradeResponse{
		Success:     true,
		Transaction: out.Transaction,
		Rate:        rate,
		Balances:    out.Balances,
	})
}
