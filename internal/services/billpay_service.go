package services

import (
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/zumapay/backend/internal/ledger"
	"github.com/zumapay/backend/internal/models"
)

// Biller is one payable service in the catalog.
type Biller struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	MinAmount decimal.Decimal `json:"minAmount"`
}

// BillPayService pays utility and airtime bills from wallet balance.
// Settlement to the biller happens off-ledger; the debit plus the fee
// leaves the wallet and only the fee remains in the system.
type BillPayService struct {
	engine    *ledger.Engine
	validator *ValidationHelper
	currency  string
	billers   map[string]Biller
}

func NewBillPayService(engine *ledger.Engine, defaultCurrency string) *BillPayService {
	billers := map[string]Biller{}
	for _, b := range []Biller{
		{Code: "PHCN-PRE", Name: "PHCN Prepaid", Category: "electricity", MinAmount: decimal.NewFromInt(500)},
		{Code: "DSTV-BOX", Name: "DStv Subscription", Category: "tv", MinAmount: decimal.NewFromInt(1850)},
		{Code: "MTN-AIR", Name: "MTN Airtime", Category: "airtime", MinAmount: decimal.NewFromInt(50)},
		{Code: "GLO-AIR", Name: "Glo Airtime", Category: "airtime", MinAmount: decimal.NewFromInt(50)},
		{Code: "LAG-WATER", Name: "Lagos Water Corporation", Category: "water", MinAmount: decimal.NewFromInt(200)},
	} {
		billers[b.Code] = b
	}
	return &BillPayService{
		engine:    engine,
		validator: NewValidationHelper(),
		currency:  defaultCurrency,
		billers:   billers,
	}
}

// BillPaymentRequest pays one bill.
// @Description Bill payment request structure
type BillPaymentRequest struct {
	AccountID  string          `json:"accountId" validate:"required" example:"WAL-1001"`
	BillerCode string          `json:"billerCode" validate:"required" example:"PHCN-PRE"`
	Amount     decimal.Decimal `json:"amount" example:"3000"`
	Reference  string          `json:"reference" validate:"required" example:"meter 04512098761"`
}

// ListBillers returns the payable biller catalog
// @Summary List billers
// @Tags bills
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /bills/billers [get]
func (bs *BillPayService) ListBillers(w http.ResponseWriter, r *http.Request) {
	catalog := make([]Biller, 0, len(bs.billers))
	for _, b := range bs.billers {
		catalog = append(catalog, b)
	}
	SendJSON(w, http.StatusOK, map[string]any{"billers": catalog})
}

// PayBill debits a wallet for a bill payment
// @Summary Pay a bill
// @Description Pay a biller from wallet balance; a 2% fee with a floor of 20 applies
// @Tags bills
// @Accept json
// @Produce json
// @Param request body BillPaymentRequest true "Bill payment request"
// @Success 201 {object} OperationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /bills/pay [post]
func (bs *BillPayService) PayBill(w http.ResponseWriter, r *http.Request) {
	var req BillPaymentRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := bs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	biller, ok := bs.billers[req.BillerCode]
	if !ok {
		SendErrorResponse(w, "Unknown biller", http.StatusBadRequest, nil)
		return
	}
	if req.Amount.LessThan(biller.MinAmount) {
		SendErrorResponse(w, "Amount below biller minimum", http.StatusBadRequest, nil)
		return
	}

	out, err := bs.engine.Apply(r.Context(), ledger.Operation{
		Type:        models.TxBillPayment,
		Amount:      req.Amount,
		Currency:    bs.currency,
		SourceID:    req.AccountID,
		Description: "Bill payment to " + biller.Name,
		Metadata: models.Metadata{
			Kind: models.MetaBillPayment,
			BillPayment: &models.BillPaymentMeta{
				BillerCode: biller.Code,
				BillerName: biller.Name,
				Reference:  req.Reference,
			},
		},
	})
	if err != nil {
		log.Printf("[BILLS] Payment by %s to %s failed: %v", req.AccountID, biller.Code, err)
		SendLedgerError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, OperationResponse{
		Success:     true,
		Transaction: out.Transaction,
		Balances:    out.Balances,
	})
}
