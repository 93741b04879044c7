package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/GiorgiUbiria/investment_wallet/internal/gateway"
	"github.com/GiorgiUbiria/investment_wallet/internal/httputil"
	"github.com/GiorgiUbiria/investment_wallet/internal/ledger"
	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"github.com/GiorgiUbiria/investment_wallet/internal/verifier"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type InvestmentPaymentRequest struct {
	PlanID int             `json:"plan_id"`
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

type WithdrawalPaymentRequest struct {
	Amount      decimal.Decimal    `json:"amount"`
	Method      string             `json:"method"`
	BankDetails models.BankDetails `json:"bank_details"`
}

type PaymentResponse struct {
	Payment           *gateway.Payment          `json:"payment"`
	Progress          int                       `json:"progress"`
	State             verifier.State            `json:"state,omitempty"`
	WithdrawalRequest *models.WithdrawalRequest `json:"withdrawal_request,omitempty"`
}

func normalizeMethod(m string) string {
	switch m = strings.ToLower(strings.TrimSpace(m)); m {
	case gateway.MethodPhonePe, gateway.MethodGooglePay:
		return m
	default:
		return gateway.MethodUPI
	}
}

// InvestmentPayment starts a payment for a plan. The investment itself is
// only created once the payment confirms.
func (h *Handler) InvestmentPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req InvestmentPaymentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	plan, ok := ledger.LookupPlan(req.PlanID)
	if !ok {
		writeServiceError(w, ledger.ErrUnknownPlan)
		return
	}
	if !plan.Accepts(req.Amount) {
		httputil.WriteError(w, http.StatusBadRequest,
			"amount must be between "+plan.MinAmount.String()+" and "+plan.MaxAmount.String()+" for "+plan.Name)
		return
	}
	user, err := h.Ledger.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	method := normalizeMethod(req.Method)
	pay, err := h.Payments.Generate(gateway.Request{
		Kind:      gateway.KindInvestment,
		Amount:    req.Amount,
		UserID:    user.ID,
		UserPhone: user.Phone,
		PlanID:    plan.ID,
		Method:    method,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	in := ledger.NewInvestment{UserID: user.ID, PlanID: plan.ID, Amount: req.Amount, Method: method, PaymentRef: pay.ID}
	err = h.Watcher.Watch(pay.ID, verifier.Callbacks{
		OnConfirmed: func(ctx context.Context) error {
			_, err := h.Ledger.AddInvestment(ctx, in)
			return err
		},
	})
	if err != nil {
		h.Payments.Fail(pay.ID)
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, PaymentResponse{Payment: pay, State: verifier.StateWatching})
}

// WithdrawalPayment reserves the amount, then starts the payout payment.
// A payment that fails or is abandoned releases the reservation.
func (h *Handler) WithdrawalPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req WithdrawalPaymentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	bd := req.BankDetails
	if strings.TrimSpace(bd.AccountHolder) == "" || strings.TrimSpace(bd.AccountNumber) == "" || strings.TrimSpace(bd.IFSCCode) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "bank details are required")
		return
	}

	ctx := r.Context()
	user, err := h.Ledger.GetUser(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	wr, err := h.Ledger.CreateWithdrawalRequest(ctx, userID, req.Amount, bd)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pay, err := h.Payments.Generate(gateway.Request{
		Kind:      gateway.KindWithdrawal,
		Amount:    req.Amount,
		UserID:    user.ID,
		UserPhone: user.Phone,
		Method:    normalizeMethod(req.Method),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Ledger.AttachWithdrawalPayment(ctx, wr.ID, pay.ID); err != nil {
		h.Payments.Fail(pay.ID)
		writeServiceError(w, err)
		return
	}

	amount := wr.Amount
	err = h.Watcher.Watch(pay.ID, verifier.Callbacks{
		OnConfirmed: func(ctx context.Context) error {
			_, err := h.Ledger.CompleteWithdrawalAfterPayment(ctx, userID, amount, pay.ID)
			return err
		},
		OnFailed: func(ctx context.Context) error {
			return h.Ledger.CancelWithdrawal(ctx, userID, pay.ID)
		},
	})
	if err != nil {
		h.abandon(ctx, pay)
		writeServiceError(w, err)
		return
	}
	pid := pay.ID
	wr.PaymentTransactionID = &pid
	httputil.WriteJSON(w, http.StatusCreated, PaymentResponse{Payment: pay, State: verifier.StateWatching, WithdrawalRequest: wr})
}

func (h *Handler) ownedPayment(w http.ResponseWriter, r *http.Request) (*gateway.Payment, bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	pay, err := h.Payments.Get(chi.URLParam(r, "id"))
	if err != nil || pay.UserID != userID {
		writeServiceError(w, gateway.ErrNotFound)
		return nil, false
	}
	return pay, true
}

func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	pay, ok := h.ownedPayment(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.paymentResponse(pay))
}

// CancelPayment is called when the client stops waiting for a payment.
// Polling stops and a pending payment is failed.
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	pay, ok := h.ownedPayment(w, r)
	if !ok {
		return
	}
	if pay.Status == gateway.StatusCompleted {
		httputil.WriteError(w, http.StatusConflict, "payment already completed")
		return
	}
	h.abandon(r.Context(), pay)

	pay, err := h.Payments.Get(pay.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.paymentResponse(pay))
}

// paymentResponse reports watch progress, falling back to the gateway
// status once a finished watch has been forgotten.
func (h *Handler) paymentResponse(pay *gateway.Payment) PaymentResponse {
	resp := PaymentResponse{Payment: pay}
	if pct, state, ok := h.Watcher.Progress(pay.ID); ok {
		resp.Progress, resp.State = pct, state
		return resp
	}
	switch pay.Status {
	case gateway.StatusCompleted:
		resp.Progress, resp.State = 100, verifier.StateConfirmed
	case gateway.StatusFailed:
		resp.State = verifier.StateFailed
	}
	return resp
}

func (h *Handler) abandon(ctx context.Context, pay *gateway.Payment) {
	h.Watcher.Cancel(pay.ID)
	if !h.Payments.Fail(pay.ID) || pay.Kind != gateway.KindWithdrawal {
		return
	}
	err := h.Ledger.CancelWithdrawal(context.WithoutCancel(ctx), pay.UserID, pay.ID)
	if err != nil && !errors.Is(err, ledger.ErrNoPendingWithdrawal) {
		logger.Log.Error("release withdrawal reservation failed", zap.String("payment_id", pay.ID), zap.Error(err))
	}
}
