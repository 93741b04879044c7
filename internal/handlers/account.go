package handlers

import (
	"net/http"

	"github.com/GiorgiUbiria/investment_wallet/internal/httputil"
	"github.com/GiorgiUbiria/investment_wallet/internal/ledger"
	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"github.com/shopspring/decimal"
)

type MeResponse struct {
	User               *models.User               `json:"user"`
	AvailableBalance   decimal.Decimal            `json:"available_balance"`
	ActiveInvestments  []models.Investment        `json:"active_investments"`
	PendingWithdrawals []models.WithdrawalRequest `json:"pending_withdrawals"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	user, err := h.Ledger.GetUser(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	active, err := h.Ledger.ActiveInvestments(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pending, err := h.Ledger.PendingWithdrawals(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MeResponse{
		User:               user,
		AvailableBalance:   user.Available(),
		ActiveInvestments:  active,
		PendingWithdrawals: pending,
	})
}

func (h *Handler) MyInvestments(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	invs, err := h.Ledger.ListInvestments(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invs)
}

func (h *Handler) MyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, ok := limitParam(w, r, ledger.DefaultTransactionLimit)
	if !ok {
		return
	}
	txs, err := h.Ledger.Transactions(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, txs)
}
