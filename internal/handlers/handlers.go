package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/auth"
	"github.com/GiorgiUbiria/investment_wallet/internal/gateway"
	"github.com/GiorgiUbiria/investment_wallet/internal/httputil"
	"github.com/GiorgiUbiria/investment_wallet/internal/ledger"
	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	appmw "github.com/GiorgiUbiria/investment_wallet/internal/middleware"
	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"github.com/GiorgiUbiria/investment_wallet/internal/otp"
	"github.com/GiorgiUbiria/investment_wallet/internal/verifier"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Ledger interface {
	Register(ctx context.Context, phone, securityCode, referralCode string) (*models.User, error)
	Login(ctx context.Context, phone, securityCode string) (*models.User, error)
	GetUser(ctx context.Context, userID uint64) (*models.User, error)
	ActiveInvestments(ctx context.Context, userID uint64) ([]models.Investment, error)
	ListInvestments(ctx context.Context, userID uint64) ([]models.Investment, error)
	Transactions(ctx context.Context, userID uint64, limit int) ([]models.Transaction, error)
	PendingWithdrawals(ctx context.Context, userID uint64) ([]models.WithdrawalRequest, error)

	AddInvestment(ctx context.Context, in ledger.NewInvestment) (*models.Investment, error)
	CreateWithdrawalRequest(ctx context.Context, userID uint64, amount decimal.Decimal, bank models.BankDetails) (*models.WithdrawalRequest, error)
	AttachWithdrawalPayment(ctx context.Context, requestID uint64, gatewayTxID string) error
	CompleteWithdrawalAfterPayment(ctx context.Context, userID uint64, amount decimal.Decimal, gatewayTxID string) (*models.WithdrawalRequest, error)
	CancelWithdrawal(ctx context.Context, userID uint64, gatewayTxID string) error
	CancelWithdrawalRequest(ctx context.Context, requestID uint64) (*models.WithdrawalRequest, error)

	PlatformStats(ctx context.Context) (*ledger.PlatformStats, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UserDetail(ctx context.Context, userID uint64) (*ledger.UserDetail, error)
	UpdateUserWallet(ctx context.Context, userID uint64, amount decimal.Decimal, reason string) (*models.User, error)
	DeleteUser(ctx context.Context, userID uint64) error
	ListAllInvestments(ctx context.Context) ([]ledger.InvestmentRow, error)
	ListAllTransactions(ctx context.Context, limit int) ([]ledger.TransactionRow, error)
	CalculateDailyReturns(ctx context.Context) (*ledger.AccrualResult, error)
}

type OTP interface {
	Issue(ctx context.Context, phone string) (*otp.Codes, error)
	Verify(ctx context.Context, phone, code string) (bool, error)
	SecurityCode(ctx context.Context, phone string) (string, error)
	Consume(ctx context.Context, phone string) error
}

type Payments interface {
	Generate(req gateway.Request) (*gateway.Payment, error)
	Get(id string) (*gateway.Payment, error)
	Fail(id string) bool
	Pending() []gateway.Payment
}

type Watcher interface {
	Watch(id string, cb verifier.Callbacks) error
	Cancel(id string) bool
	Progress(id string) (int, verifier.State, bool)
}

type Exporter interface {
	TransactionsCSV(ctx context.Context, w io.Writer) error
	Publish(ctx context.Context) (url, key string, err error)
	CanPublish() bool
}

type Tokens interface {
	Issue(userID uint64, role auth.Role) (string, error)
}

type Deps struct {
	Ledger   Ledger
	OTP      OTP
	Payments Payments
	Watcher  Watcher
	Exporter Exporter
	Tokens   Tokens
}

type Config struct {
	AdminPassword   string
	AdminLoginPhone string
	AdminLoginCode  string
	// ExposeCodes returns issued OTPs in the response body. There is no
	// SMS delivery, so demo deployments rely on it.
	ExposeCodes bool
	DBDialect   string
}

type Handler struct {
	Deps
	cfg     Config
	started time.Time
}

func New(d Deps, cfg Config) *Handler {
	return &Handler{Deps: d, cfg: cfg, started: time.Now()}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ledger.Plans())
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidPhone),
		errors.Is(err, ledger.ErrInvalidSecurityCode),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrZeroAdjustment),
		errors.Is(err, otp.ErrInvalidPhone),
		errors.Is(err, gateway.ErrInvalidAmount),
		errors.Is(err, gateway.ErrUnknownKind):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, ledger.ErrUnknownPlan),
		errors.Is(err, ledger.ErrNoPendingWithdrawal),
		errors.Is(err, gateway.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrPhoneRegistered),
		errors.Is(err, ledger.ErrReferralCodeTaken),
		errors.Is(err, ledger.ErrConcurrentUpdate),
		errors.Is(err, verifier.ErrAlreadyWatching):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrBelowMinimum):
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrInvalidCredentials):
		httputil.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, verifier.ErrClosed):
		httputil.WriteError(w, http.StatusServiceUnavailable, "server is shutting down")
	default:
		logger.Log.Error("request failed", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, ok := appmw.UserIDFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return id, true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func limitParam(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 1000 {
		httputil.WriteError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
		return 0, false
	}
	return n, true
}
