package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/zumapay/backend/internal/ledger"
	"github.com/zumapay/backend/internal/models"
)

// AdminService exposes the operations reserved for back-office staff:
// manual balance adjustments with their audit trail, finalization of
// held transactions, and account administration.
type AdminService struct {
	db        *sql.DB
	engine    *ledger.Engine
	recorder  *ledger.Recorder
	validator *ValidationHelper
}

func NewAdminService(db *sql.DB, engine *ledger.Engine, recorder *ledger.Recorder) *AdminService {
	return &AdminService{
		db:        db,
		engine:    engine,
		recorder:  recorder,
		validator: NewValidationHelper(),
	}
}

// AdjustmentRequest is one manual balance correction.
// @Description Manual adjustment request structure
type AdjustmentRequest struct {
	AccountID string          `json:"accountId" validate:"required" example:"WAL-1001"`
	Amount    decimal.Decimal `json:"amount" example:"50"` // signed; negative debits
	Action    string          `json:"action,omitempty" validate:"omitempty,oneof=MANUAL_CREDIT MANUAL_DEBIT CORRECTION REFUND"`
	Reason    string          `json:"reason" validate:"required" example:"goodwill gesture"`
	Notes     *string         `json:"notes,omitempty"`
}

// FinalizeRequest resolves a held transaction.
// @Description Finalization request structure
type FinalizeRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty" example:"kyc mismatch"`
}

func adminIDFromContext(r *http.Request) string {
	if v := r.Context().Value("userID"); v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// AdjustBalance applies a manual credit or debit with an audit entry
// @Summary Manually adjust a balance
// @Description Credit or debit an account; the adjustment, its transaction record and its audit entry commit together
// @Tags admin
// @Accept json
// @Produce json
// @Param request body AdjustmentRequest true "Adjustment request"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /admin/adjustments [post]
func (s *AdminService) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	adminID := adminIDFromContext(r)
	out, err := s.recorder.AdjustBalance(r.Context(), ledger.Adjustment{
		AccountID: req.AccountID,
		AdminID:   adminID,
		Amount:    req.Amount,
		Action:    models.AuditAction(req.Action),
		Reason:    req.Reason,
		Notes:     req.Notes,
		IPAddress: r.RemoteAddr,
	})
	if err != nil {
		log.Printf("[ADMIN] Adjustment on %s by %s failed: %v", req.AccountID, adminID, err)
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"entry":       out.Entry,
		"transaction": out.Transaction,
		"newBalance":  out.NewBalance,
	})
}

// AuditTrail lists audit entries, optionally filtered
// @Summary List audit entries
// @Tags admin
// @Produce json
// @Param accountId query string false "Filter by account"
// @Param adminId query string false "Filter by admin"
// @Param action query string false "Filter by action"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /admin/audit [get]
func (s *AdminService) AuditTrail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.AuditFilter{
		AccountID: q.Get("accountId"),
		AdminID:   q.Get("adminId"),
		Action:    models.AuditAction(q.Get("action")),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	entries, total, err := s.recorder.Entries(r.Context(), filter)
	if err != nil {
		log.Printf("[ADMIN] Audit trail fetch failed: %v", err)
		SendErrorResponse(w, "Failed to fetch audit trail", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
	})
}

// AccountAuditTrail lists the audit entries of one account
// @Summary List an account's audit entries
// @Tags admin
// @Produce json
// @Param accountID path string true "Account ID"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /admin/accounts/{accountID}/audit [get]
func (s *AdminService) AccountAuditTrail(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	entries, total, err := s.recorder.TrailForAccount(r.Context(), accountID, 0, 0)
	if err != nil {
		log.Printf("[ADMIN] Audit trail fetch for %s failed: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch audit trail", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
	})
}

// FinalizeTransaction resolves a held (PENDING) transaction
// @Summary Finalize a held transaction
// @Description Approve completes the hold; reject refunds the held funds to the source
// @Tags admin
// @Accept json
// @Produce json
// @Param transactionID path string true "Transaction ID"
// @Param request body FinalizeRequest true "Finalization request"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/transactions/{transactionID}/finalize [post]
func (s *AdminService) FinalizeTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	var req FinalizeRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if !req.Approve && req.Reason == "" {
		SendErrorResponse(w, "A reason is required to reject", http.StatusBadRequest, nil)
		return
	}

	record, err := s.engine.Finalize(r.Context(), transactionID, req.Approve, req.Reason)
	if err != nil {
		log.Printf("[ADMIN] Finalize %s failed: %v", transactionID, err)
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, record)
}

// SetCommissionRate updates an agent's commission rate
// @Summary Set an agent's commission rate
// @Tags admin
// @Accept json
// @Produce json
// @Param accountID path string true "Agent account ID"
// @Param request body map[string]string true "Rate in percent"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /admin/agents/{accountID}/commission-rate [patch]
func (s *AdminService) SetCommissionRate(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if req.Rate.IsNegative() || req.Rate.GreaterThan(decimal.NewFromInt(100)) {
		SendErrorResponse(w, "Rate must be between 0 and 100", http.StatusBadRequest, nil)
		return
	}

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE accounts SET commission_rate = $1, updated_at = NOW()
		WHERE id = $2 AND type = 'AGENT'`, req.Rate, accountID)
	if err != nil {
		log.Printf("[ADMIN] Commission rate update for %s failed: %v", accountID, err)
		SendErrorResponse(w, "Failed to update commission rate", http.StatusInternalServerError, nil)
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		SendErrorResponse(w, "Agent account not found", http.StatusNotFound, nil)
		return
	}

	SendJSON(w, http.StatusOK, map[string]any{"success": true, "rate": req.Rate})
}

// SetKYCStatus updates an account's KYC verification status
// @Summary Set an account's KYC status
// @Tags admin
// @Accept json
// @Produce json
// @Param accountID path string true "Account ID"
// @Param request body map[string]string true "KYC status"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /admin/accounts/{accountID}/kyc [patch]
func (s *AdminService) SetKYCStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req struct {
		Status models.KYCStatus `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED"`
	}
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE accounts SET kyc_status = $1, updated_at = NOW()
		WHERE id = $2`, req.Status, accountID)
	if err != nil {
		log.Printf("[ADMIN] KYC update for %s failed: %v", accountID, err)
		SendErrorResponse(w, "Failed to update KYC status", http.StatusInternalServerError, nil)
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[ADMIN] KYC status for %s set to %s by %s", accountID, req.Status, adminIDFromContext(r))
	SendJSON(w, http.StatusOK, map[string]any{"success": true, "kycStatus": req.Status})
}
