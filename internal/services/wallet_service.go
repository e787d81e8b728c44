package services

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/zumapay/backend/internal/ledger"
	"github.com/zumapay/backend/internal/models"
)

type WalletService struct {
	db        *sql.DB
	engine    *ledger.Engine
	validator *ValidationHelper
	currency  string
}

func NewWalletService(db *sql.DB, engine *ledger.Engine, defaultCurrency string) *WalletService {
	return &WalletService{
		db:        db,
		engine:    engine,
		validator: NewValidationHelper(),
		currency:  defaultCurrency,
	}
}

// DepositRequest funds a wallet from an external source (bank inflow).
// @Description Deposit request structure
type DepositRequest struct {
	AccountID   string          `json:"accountId" validate:"required" example:"WAL-1001"`
	Amount      decimal.Decimal `json:"amount" example:"5000"`
	Currency    string          `json:"currency,omitempty" example:"NGN"`
	Description string          `json:"description,omitempty" example:"Bank transfer top-up"`
}

// WithdrawRequest moves wallet funds out to an external destination.
// @Description Withdrawal request structure
type WithdrawRequest struct {
	AccountID   string          `json:"accountId" validate:"required" example:"WAL-1001"`
	Amount      decimal.Decimal `json:"amount" example:"10000"`
	Currency    string          `json:"currency,omitempty" example:"NGN"`
	Description string          `json:"description,omitempty" example:"Bank payout"`
	Hold        bool            `json:"hold,omitempty"` // settle later via admin approval
}

// TransferRequest moves funds between two wallets.
// @Description Transfer request structure
type TransferRequest struct {
	SourceID      string          `json:"sourceId" validate:"required" example:"WAL-1001"`
	DestinationID string          `json:"destinationId" validate:"required,nefield=SourceID" example:"WAL-2002"`
	Amount        decimal.Decimal `json:"amount" example:"2500"`
	Currency      string          `json:"currency,omitempty" example:"NGN"`
	Description   string          `json:"description,omitempty" example:"Rent split"`
}

// OperationResponse is the common success payload for ledger operations.
type OperationResponse struct {
	Success     bool                       `json:"success"`
	Transaction *models.Transaction        `json:"transaction"`
	Balances    map[string]decimal.Decimal `json:"balances,omitempty"`
}

func (ws *WalletService) currencyOr(c string) string {
	if c != "" {
		return c
	}
	return ws.currency
}

// Deposit credits a wallet from an external inflow
// @Summary Deposit into a wallet
// @Description Credit a wallet from an external source such as a bank inflow
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body DepositRequest true "Deposit request"
// @Success 201 {object} OperationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /wallet/deposit [post]
func (ws *WalletService) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := ws.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	out, err := ws.engine.Apply(r.Context(), ledger.Operation{
		Type:          models.TxDeposit,
		Amount:        req.Amount,
		Currency:      ws.currencyOr(req.Currency),
		DestinationID: req.AccountID,
		Description:   req.Description,
	})
	if err != nil {
		log.Printf("[WALLET] Deposit into %s failed: %v", req.AccountID, err)
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, OperationResponse{
		Success:     true,
		Transaction: out.Transaction,
		Balances:    out.Balances,
	})
}

// Withdraw debits a wallet for an external payout
// @Summary Withdraw from a wallet
// @Description Debit a wallet for an external payout; fees depend on KYC status
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body WithdrawRequest true "Withdrawal request"
// @Success 201 {object} OperationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /wallet/withdraw [post]
func (ws *WalletService) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := ws.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	op := ledger.Operation{
		Type:        models.TxWithdrawal,
		Amount:      req.Amount,
		Currency:    ws.currencyOr(req.Currency),
		SourceID:    req.AccountID,
		Description: req.Description,
		Hold:        req.Hold,
	}
	if req.Hold {
		op.Metadata = models.Metadata{
			Kind: models.MetaHold,
			Hold: &models.HoldMeta{RequestedBy: req.AccountID, Channel: "api"},
		}
	}

	out, err := ws.engine.Apply(r.Context(), op)
	if err != nil {
		log.Printf("[WALLET] Withdrawal from %s failed: %v", req.AccountID, err)
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, OperationResponse{
		Success:     true,
		Transaction: out.Transaction,
		Balances:    out.Balances,
	})
}

// Transfer moves funds between wallets
// @Summary Transfer between wallets
// @Description Move funds from one wallet to another; the recipient receives the amount net of the fee
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body TransferRequest true "Transfer request"
// @Success 201 {object} OperationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /wallet/transfer [post]
func (ws *WalletService) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := ws.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	out, err := ws.engine.Apply(r.Context(), ledger.Operation{
		Type:          models.TxTransfer,
		Amount:        req.Amount,
		Currency:      ws.currencyOr(req.Currency),
		SourceID:      req.SourceID,
		DestinationID: req.DestinationID,
		Description:   req.Description,
	})
	if err != nil {
		log.Printf("[WALLET] Transfer %s -> %s failed: %v", req.SourceID, req.DestinationID, err)
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, OperationResponse{
		Success:     true,
		Transaction: out.Transaction,
		Balances:    out.Balances,
	})
}

// GetBalance returns the current balance of a wallet
// @Summary Get wallet balance
// @Tags wallet
// @Produce json
// @Param accountID path string true "Account ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /wallet/{accountID}/balance [get]
func (ws *WalletService) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	acct, err := ws.engine.GetAccount(r.Context(), accountID)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"accountId": acct.ID,
		"balance":   acct.Balance,
		"currency":  acct.Currency,
		"kycStatus": acct.KYCStatus,
	})
}

// GetTransaction returns one transaction by its public id
// @Summary Get a transaction
// @Tags wallet
// @Produce json
// @Param transactionID path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{transactionID} [get]
func (ws *WalletService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	record, err := ws.engine.GetTransaction(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
			return
		}
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, record)
}

// GetHistory lists the transactions touching a wallet, newest first
// @Summary Get wallet transaction history
// @Tags wallet
// @Produce json
// @Param accountID path string true "Account ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /wallet/{accountID}/transactions [get]
func (ws *WalletService) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	var total int64
	err := ws.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM transactions WHERE source_id = $1 OR destination_id = $1`,
		accountID).Scan(&total)
	if err != nil {
		log.Printf("[WALLET] History count for %s failed: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	rows, err := ws.db.QueryContext(r.Context(), `
		SELECT id, transaction_id, source_id, destination_id, type, amount, fee, net_amount,
		       currency, status, description, metadata, failure_reason, created_at, processed_at
		FROM transactions
		WHERE source_id = $1 OR destination_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		log.Printf("[WALLET] History fetch for %s failed: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var record models.Transaction
		if err := rows.Scan(
			&record.ID, &record.TransactionID, &record.SourceID, &record.DestinationID,
			&record.Type, &record.Amount, &record.Fee, &record.NetAmount, &record.Currency,
			&record.Status, &record.Description, &record.Metadata, &record.FailureReason,
			&record.CreatedAt, &record.ProcessedAt); err != nil {
			log.Printf("[WALLET] History scan for %s failed: %v", accountID, err)
			SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, record)
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}
