package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/export"
	"github.com/GiorgiUbiria/investment_wallet/internal/httputil"
	"github.com/GiorgiUbiria/investment_wallet/internal/ledger"
	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletAdjustmentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type ExportResponse struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type SystemInfo struct {
	GoVersion       string `json:"go_version"`
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	DBDialect       string `json:"db_dialect"`
	Uptime          string `json:"uptime"`
	Goroutines      int    `json:"goroutines"`
	PendingPayments int    `json:"pending_payments"`
	TotalUsers      int64  `json:"total_users"`
	ExportUploads   bool   `json:"export_uploads"`
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Ledger.PlatformStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Ledger.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) AdminUserDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	d, err := h.Ledger.UserDetail(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) AdminAdjustWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req WalletAdjustmentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.Ledger.UpdateUserWallet(r.Context(), id, req.Amount, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteUser(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminCancelWithdrawal releases a pending withdrawal's reservation and
// stops its payment, if one is still being watched.
func (h *Handler) AdminCancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req, err := h.Ledger.CancelWithdrawalRequest(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if req.PaymentTransactionID != nil {
		h.Watcher.Cancel(*req.PaymentTransactionID)
		h.Payments.Fail(*req.PaymentTransactionID)
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) AdminInvestments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Ledger.ListAllInvestments(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) AdminTransactions(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r, ledger.DefaultAdminTransactionLimit)
	if !ok {
		return
	}
	rows, err := h.Ledger.ListAllTransactions(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rows)
}

// AdminRunReturns triggers the daily accrual on demand. Investments
// already credited today are skipped.
func (h *Handler) AdminRunReturns(w http.ResponseWriter, r *http.Request) {
	res, err := h.Ledger.CalculateDailyReturns(r.Context())
	if err != nil {
		if res == nil {
			writeServiceError(w, err)
			return
		}
		logger.Log.Warn("accrual finished with errors", zap.Error(err))
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// AdminExportTransactions streams a CSV, or with ?upload=true stores it in
// the export bucket and returns a download link.
func (h *Handler) AdminExportTransactions(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("upload") == "true" {
		url, key, err := h.Exporter.Publish(r.Context())
		if errors.Is(err, export.ErrNoUploader) {
			httputil.WriteError(w, http.StatusNotImplemented, err.Error())
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ExportResponse{URL: url, Key: key})
		return
	}

	var buf bytes.Buffer
	if err := h.Exporter.TransactionsCSV(r.Context(), &buf); err != nil {
		writeServiceError(w, err)
		return
	}
	name := "transactions-" + time.Now().UTC().Format("20060102") + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Log.Warn("csv export write failed", zap.Error(err))
	}
}

func (h *Handler) AdminSystem(w http.ResponseWriter, r *http.Request) {
	st, err := h.Ledger.PlatformStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SystemInfo{
		GoVersion:       runtime.Version(),
		OS:              runtime.GOOS,
		Arch:            runtime.GOARCH,
		DBDialect:       h.cfg.DBDialect,
		Uptime:          time.Since(h.started).Round(time.Second).String(),
		Goroutines:      runtime.NumGoroutine(),
		PendingPayments: len(h.Payments.Pending()),
		TotalUsers:      st.TotalUsers,
		ExportUploads:   h.Exporter.CanPublish(),
	})
}
