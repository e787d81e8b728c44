package services

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/zumapay/backend/internal/ledger"
	"github.com/zumapay/backend/internal/models"
)

// AgentService handles cash-in and cash-out through the agent network.
// An agent fronts physical cash against their float wallet and earns a
// commission per operation, paid from platform revenue.
type AgentService struct {
	db             *sql.DB
	engine         *ledger.Engine
	qr             *QRService
	validator      *ValidationHelper
	currency       string
	defaultRatePct decimal.Decimal
}

func NewAgentService(db *sql.DB, engine *ledger.Engine, qr *QRService, defaultCurrency string, defaultRatePct decimal.Decimal) *AgentService {
	return &AgentService{
		db:             db,
		engine:         engine,
		qr:             qr,
		validator:      NewValidationHelper(),
		currency:       defaultCurrency,
		defaultRatePct: defaultRatePct,
	}
}

// CashRequest is one agent-mediated cash movement.
// @Description Agent cash-in / cash-out request structure
type CashRequest struct {
	AgentAccountID string          `json:"agentAccountId" validate:"required" example:"AGT-7000"`
	UserAccountID  string          `json:"userAccountId" validate:"required,nefield=AgentAccountID" example:"WAL-2000"`
	Amount         decimal.Decimal `json:"amount" example:"1000"`
	Currency       string          `json:"currency,omitempty" example:"NGN"`
	Reference      string          `json:"reference,omitempty" example:"shop till 4"`
}

// CashResponse reports the movement and the agent's commission.
type CashResponse struct {
	Success     bool                       `json:"success"`
	Transaction *models.Transaction        `json:"transaction"`
	Commission  *models.CommissionRecord   `json:"commission,omitempty"`
	Balances    map[string]decimal.Decimal `json:"balances,omitempty"`
}

// commissionRate prefers the per-agent rate configured on the float
// account and falls back to the platform default.
func (as *AgentService) commissionRate(r *http.Request, agentAccountID string) (decimal.Decimal, error) {
	acct, err := as.engine.GetAccount(r.Context(), agentAccountID)
	if err != nil {
		return decimal.Zero, err
	}
	if acct.Type != models.AccountAgent {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	if acct.CommissionRate.IsPositive() {
		return acct.CommissionRate, nil
	}
	return as.defaultRatePct, nil
}

// CashIn converts physical cash to wallet money via an agent
// @Summary Agent cash-in
// @Description The agent's float funds the user's wallet; the agent earns a commission
// @Tags agent
// @Accept json
// @Produce json
// @Param request body CashRequest true "Cash-in request"
// @Success 201 {object} CashResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /agent/cash-in [post]
func (as *AgentService) CashIn(w http.ResponseWriter, r *http.Request) {
	var req CashRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	rate, err := as.commissionRate(r, req.AgentAccountID)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	out, err := as.engine.Apply(r.Context(), ledger.Operation{
		Type:          models.TxDeposit,
		Amount:        req.Amount,
		Currency:      as.currencyOr(req.Currency),
		SourceID:      req.AgentAccountID,
		DestinationID: req.UserAccountID,
		Description:   "Agent cash-in " + req.Reference,
		Metadata: models.Metadata{
			Kind: models.MetaAgent,
			Agent: &models.AgentMeta{
				AgentID:       req.AgentAccountID,
				Rate:          rate,
				CashDirection: "IN",
			},
		},
		AgentID:        req.AgentAccountID,
		CommissionRate: rate,
	})
	if err != nil {
		log.Printf("[AGENT] Cash-in %s -> %s failed: %v", req.AgentAccountID, req.UserAccountID, err)
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, CashResponse{
		Success:     true,
		Transaction: out.Transaction,
		Commission:  out.CommissionRecord,
		Balances:    out.Balances,
	})
}

// CashOut converts wallet money to physical cash via an agent
// @Summary Agent cash-out
// @Description The user's wallet funds the agent's float; the user pays the withdrawal fee and the agent earns a commission
// @Tags agent
// @Accept json
// @Produce json
// @Param request body CashRequest true "Cash-out request"
// @Success 201 {object} CashResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /agent/cash-out [post]
func (as *AgentService) CashOut(w http.ResponseWriter, r *http.Request) {
	var req CashRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	rate, err := as.commissionRate(r, req.AgentAccountID)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	out, err := as.engine.Apply(r.Context(), ledger.Operation{
		Type:          models.TxWithdrawal,
		Amount:        req.Amount,
		Currency:      as.currencyOr(req.Currency),
		SourceID:      req.UserAccountID,
		DestinationID: req.AgentAccountID,
		Description:   "Agent cash-out " + req.Reference,
		Metadata: models.Metadata{
			Kind: models.MetaAgent,
			Agent: &models.AgentMeta{
				AgentID:       req.AgentAccountID,
				Rate:          rate,
				CashDirection: "OUT",
			},
		},
		AgentID:        req.AgentAccountID,
		CommissionRate: rate,
	})
	if err != nil {
		log.Printf("[AGENT] Cash-out %s -> %s failed: %v", req.UserAccountID, req.AgentAccountID, err)
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, CashResponse{
		Success:     true,
		Transaction: out.Transaction,
		Commission:  out.CommissionRecord,
		Balances:    out.Balances,
	})
}

// Commissions lists an agent's earned commissions
// @Summary List agent commissions
// @Tags agent
// @Produce json
// @Param accountID path string true "Agent account ID"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /agent/{accountID}/commissions [get]
func (as *AgentService) Commissions(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "accountID")

	rows, err := as.db.QueryContext(r.Context(), `
		SELECT id, transaction_id, agent_id, amount, rate, paid, created_at
		FROM commissions
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT 100`, agentID)
	if err != nil {
		log.Printf("[AGENT] Commission fetch for %s failed: %v", agentID, err)
		SendErrorResponse(w, "Failed to fetch commissions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	records := []models.CommissionRecord{}
	total := decimal.Zero
	for rows.Next() {
		var rec models.CommissionRecord
		if err := rows.Scan(&rec.ID, &rec.TransactionID, &rec.AgentID, &rec.Amount,
			&rec.Rate, &rec.Paid, &rec.CreatedAt); err != nil {
			log.Printf("[AGENT] Commission scan for %s failed: %v", agentID, err)
			SendErrorResponse(w, "Failed to fetch commissions", http.StatusInternalServerError, nil)
			return
		}
		records = append(records, rec)
		total = total.Add(rec.Amount)
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"commissions": records,
		"totalEarned": total,
	})
}

func (as *AgentService) currencyOr(c string) string {
	if c != "" {
		return c
	}
	return as.currency
}

// GenerateCashInQR issues a cash-in voucher QR for a user
// @Summary Generate a cash-in QR voucher
// @Description The user presents the QR at an agent shop instead of dictating account numbers
// @Tags agent
// @Accept json
// @Produce json
// @Param request body map[string]string true "User account and amount"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /agent/cash-in/qr [post]
func (as *AgentService) GenerateCashInQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserAccountID string          `json:"userAccountId" validate:"required"`
		Amount        decimal.Decimal `json:"amount"`
	}
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if !req.Amount.IsPositive() {
		SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		return
	}

	code, image, err := as.qr.GenerateVoucher(r.Context(), req.UserAccountID, req.Amount)
	if err != nil {
		log.Printf("[AGENT] QR voucher for %s failed: %v", req.UserAccountID, err)
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusCreated, map[string]any{
		"code":    code,
		"qrImage": image,
	})
}

// RedeemCashInQR performs a cash-in from a scanned voucher
// @Summary Redeem a cash-in QR voucher
// @Description The agent scans the user's voucher; the cash-in executes with the voucher's account and amount
// @Tags agent
// @Accept json
// @Produce json
// @Param request body map[string]string true "Agent account and scanned code"
// @Success 201 {object} CashResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /agent/cash-in/redeem [post]
func (as *AgentService) RedeemCashInQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentAccountID string `json:"agentAccountId" validate:"required"`
		Code           string `json:"code" validate:"required"`
	}
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	voucher, err := as.qr.RedeemVoucher(r.Context(), req.Code)
	if err != nil {
		SendErrorResponse(w, "Invalid or expired QR code", http.StatusBadRequest, nil)
		return
	}

	rate, err := as.commissionRate(r, req.AgentAccountID)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	out, err := as.engine.Apply(r.Context(), ledger.Operation{
		Type:          models.TxDeposit,
		Amount:        voucher.Amount,
		Currency:      as.currency,
		SourceID:      req.AgentAccountID,
		DestinationID: voucher.UserAccountID,
		Description:   "Agent cash-in via QR",
		Metadata: models.Metadata{
			Kind: models.MetaAgent,
			Agent: &models.AgentMeta{
				AgentID:       req.AgentAccountID,
				Rate:          rate,
				CashDirection: "IN",
			},
		},
		AgentID:        req.AgentAccountID,
		CommissionRate: rate,
	})
	if err != nil {
		log.Printf("[AGENT] QR cash-in %s -> %s failed: %v", req.AgentAccountID, voucher.UserAccountID, err)
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, CashResponse{
		Success:     true,
		Transaction: out.Transaction,
		Commission:  out.CommissionRecord,
		Balances:    out.Balances,
	})
}
