package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/auth"
	"github.com/GiorgiUbiria/investment_wallet/internal/export"
	"github.com/GiorgiUbiria/investment_wallet/internal/gateway"
	"github.com/GiorgiUbiria/investment_wallet/internal/handlers"
	"github.com/GiorgiUbiria/investment_wallet/internal/ledger"
	"github.com/GiorgiUbiria/investment_wallet/internal/otp"
	"github.com/GiorgiUbiria/investment_wallet/internal/routes"
	"github.com/GiorgiUbiria/investment_wallet/internal/store"
	"github.com/GiorgiUbiria/investment_wallet/internal/verifier"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminPassword = "let-me-in"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	router http.Handler
	svc    *ledger.Service
	clock  *clock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvAt(t, filepath.Join(t.TempDir(), "api.db"))
}

// newTestEnvAt builds a server over the database at path, releasing any
// withdrawals left pending by an earlier server the way startup does.
func newTestEnvAt(t *testing.T, path string) *testEnv {
	t.Helper()
	db, err := store.NewDB("sqlite", path, false)
	require.NoError(t, err)
	require.NoError(t, store.DBMigrate(db))

	c := &clock{t: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := ledger.NewService(db, ledger.WithClock(c.Now))
	_, err = svc.ReleaseOrphanedWithdrawals(context.Background())
	require.NoError(t, err)
	gw := gateway.New(gateway.Config{UpiID: "merchant@ybl", PayeeName: "InvestmentApp"}, c.Now)
	watcher := verifier.New(gw, verifier.Config{Interval: 5 * time.Millisecond, Timeout: 5 * time.Second, Retention: 20 * time.Millisecond})
	tokens := auth.NewIssuer("test-secret", time.Hour, nil)

	h := handlers.New(handlers.Deps{
		Ledger:   svc,
		OTP:      otp.NewStore(db, otp.DefaultTTL, c.Now),
		Payments: gw,
		Watcher:  watcher,
		Exporter: export.NewExporter(svc, nil, c.Now),
		Tokens:   tokens,
	}, handlers.Config{
		AdminPassword:   adminPassword,
		AdminLoginPhone: "0000000000",
		AdminLoginCode:  "000000",
		ExposeCodes:     true,
		DBDialect:       "sqlite",
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = watcher.Shutdown(ctx)
		store.Close(db)
	})
	return &testEnv{router: routes.NewRoutes(h, tokens), svc: svc, clock: c}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// signUp registers phone through the OTP flow and returns its token.
func (e *testEnv) signUp(t *testing.T, phone, referral string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/auth/otp", "", map[string]string{"phone": phone})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	codes := decode[handlers.OTPResponse](t, rr)

	rr = e.do(t, http.MethodPost, "/auth/register", "", handlers.RegisterRequest{
		Phone: phone, OTP: codes.OTP, SecurityCode: codes.SecurityCode, ReferralCode: referral,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[handlers.LoginResponse](t, rr).Token
}

func (e *testEnv) me(t *testing.T, token string) handlers.MeResponse {
	t.Helper()
	rr := e.do(t, http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[handlers.MeResponse](t, rr)
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/admin/login", "", handlers.AdminLoginRequest{Password: adminPassword})
	require.Equal(t, http.StatusOK, rr.Code)
	return decode[handlers.LoginResponse](t, rr).Token
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPublicEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = e.do(t, http.MethodGet, "/plans", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	plans := decode[[]ledger.Plan](t, rr)
	require.Len(t, plans, 3)
	assert.Equal(t, "Starter Plan", plans[0].Name)

	rr = e.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRegistrationFlow(t *testing.T) {
	e := newTestEnv(t)

	t.Run("InvalidPhone", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/auth/otp", "", map[string]string{"phone": "123"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("WrongOTP", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/auth/otp", "", map[string]string{"phone": "9888888888"})
		require.Equal(t, http.StatusOK, rr.Code)
		codes := decode[handlers.OTPResponse](t, rr)
		rr = e.do(t, http.MethodPost, "/auth/register", "", handlers.RegisterRequest{
			Phone: "9888888888", OTP: "000000", SecurityCode: codes.SecurityCode,
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("ReferralScenario", func(t *testing.T) {
		referrerToken := e.signUp(t, "9999999999", "")
		referrer := e.me(t, referrerToken)
		assert.Equal(t, "999999", referrer.User.ReferralCode)
		assert.True(t, referrer.User.WalletBalance.IsZero())

		referredToken := e.signUp(t, "9123456789", "999999")
		assert.True(t, dec("50").Equal(e.me(t, referrerToken).User.WalletBalance))
		assert.True(t, e.me(t, referredToken).User.WalletBalance.IsZero())

		rr := e.do(t, http.MethodGet, "/transactions", referrerToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		txs := decode[[]map[string]any](t, rr)
		require.Len(t, txs, 1)
		assert.Equal(t, "referral", txs[0]["type"])
	})

	t.Run("DuplicatePhone", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/auth/otp", "", map[string]string{"phone": "9999999999"})
		codes := decode[handlers.OTPResponse](t, rr)
		rr = e.do(t, http.MethodPost, "/auth/register", "", handlers.RegisterRequest{
			Phone: "9999999999", OTP: codes.OTP, SecurityCode: codes.SecurityCode,
		})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, err := e.svc.Register(ctx, "9876543210", "246810", "")
	require.NoError(t, err)
	_, err = e.svc.Register(ctx, "0000000000", "000000", "")
	require.NoError(t, err)

	rr := e.do(t, http.MethodPost, "/auth/login", "", handlers.LoginRequest{Phone: "9876543210", SecurityCode: "246810"})
	require.Equal(t, http.StatusOK, rr.Code)
	user := decode[handlers.LoginResponse](t, rr)
	assert.Equal(t, auth.RoleUser, user.Role)

	rr = e.do(t, http.MethodPost, "/auth/login", "", handlers.LoginRequest{Phone: "9876543210", SecurityCode: "135791"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = e.do(t, http.MethodPost, "/auth/login", "", handlers.LoginRequest{Phone: "0000000000", SecurityCode: "000000"})
	require.Equal(t, http.StatusOK, rr.Code)
	admin := decode[handlers.LoginResponse](t, rr)
	assert.Equal(t, auth.RoleAdmin, admin.Role)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/admin/stats", admin.Token, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/admin/stats", user.Token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/admin/stats", "", nil).Code)
}

func TestInvestmentPayment(t *testing.T) {
	e := newTestEnv(t)
	token := e.signUp(t, "9999999999", "")

	t.Run("Validation", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/payments/investment", token, map[string]any{"plan_id": 9, "amount": 1000})
		assert.Equal(t, http.StatusNotFound, rr.Code)
		rr = e.do(t, http.MethodPost, "/payments/investment", token, map[string]any{"plan_id": 1, "amount": 5000})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		rr = e.do(t, http.MethodPost, "/payments/investment", token, map[string]any{"plan_id": 1, "amount": 1000.555})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		rr = e.do(t, http.MethodPost, "/payments/investment", token, map[string]any{"plan_id": 1, "amount": "abc"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("ConfirmsAndCredits", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/payments/investment", token, map[string]any{"plan_id": 1, "amount": 1000, "method": "phonepe"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		started := decode[handlers.PaymentResponse](t, rr)
		require.NotNil(t, started.Payment)
		assert.Contains(t, started.Payment.URL, "phonepe://pay?")

		rr = e.do(t, http.MethodGet, "/payments/"+started.Payment.ID, token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, gateway.StatusPending, decode[handlers.PaymentResponse](t, rr).Payment.Status)
		assert.Empty(t, e.me(t, token).ActiveInvestments)

		e.clock.Advance(121 * time.Second)
		require.Eventually(t, func() bool {
			rr := e.do(t, http.MethodGet, "/payments/"+started.Payment.ID, token, nil)
			resp := decode[handlers.PaymentResponse](t, rr)
			return resp.State == verifier.StateConfirmed && resp.Progress == 100
		}, 2*time.Second, 10*time.Millisecond)

		me := e.me(t, token)
		require.Len(t, me.ActiveInvestments, 1)
		assert.Equal(t, 80, me.ActiveInvestments[0].DaysRemaining)
		assert.True(t, dec("40").Equal(me.User.WalletBalance))
	})

	t.Run("OtherUsersPaymentIsHidden", func(t *testing.T) {
		other := e.signUp(t, "9876543210", "")
		rr := e.do(t, http.MethodPost, "/payments/investment", token, map[string]any{"plan_id": 2, "amount": 2000})
		require.Equal(t, http.StatusCreated, rr.Code)
		id := decode[handlers.PaymentResponse](t, rr).Payment.ID

		assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/payments/"+id, other, nil).Code)
		assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/payments/"+id, other, nil).Code)
	})
}

func TestWithdrawalPayment(t *testing.T) {
	e := newTestEnv(t)
	token := e.signUp(t, "9999999999", "")
	me := e.me(t, token)
	_, err := e.svc.UpdateUserWallet(context.Background(), me.User.ID, dec("500"), "test funds")
	require.NoError(t, err)

	bank := map[string]string{"account_holder": "Asha Rao", "account_number": "001122334455", "ifsc_code": "HDFC0001234"}
	withdraw := func(amount int) *httptest.ResponseRecorder {
		return e.do(t, http.MethodPost, "/payments/withdrawal", token, map[string]any{"amount": amount, "method": "googlepay", "bank_details": bank})
	}

	t.Run("Validation", func(t *testing.T) {
		assert.Equal(t, http.StatusUnprocessableEntity, withdraw(50).Code)
		assert.Equal(t, http.StatusUnprocessableEntity, withdraw(501).Code)
		rr := e.do(t, http.MethodPost, "/payments/withdrawal", token, map[string]any{"amount": 100.005, "bank_details": bank})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.True(t, e.me(t, token).User.ReservedBalance.IsZero())
		rr = e.do(t, http.MethodPost, "/payments/withdrawal", token, map[string]any{"amount": 200})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("CancelReleasesReservation", func(t *testing.T) {
		rr := withdraw(200)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		resp := decode[handlers.PaymentResponse](t, rr)
		require.NotNil(t, resp.WithdrawalRequest)
		assert.True(t, dec("300").Equal(e.me(t, token).AvailableBalance))

		rr = e.do(t, http.MethodDelete, "/payments/"+resp.Payment.ID, token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, gateway.StatusFailed, decode[handlers.PaymentResponse](t, rr).Payment.Status)

		after := e.me(t, token)
		assert.True(t, dec("500").Equal(after.AvailableBalance))
		assert.Empty(t, after.PendingWithdrawals)
	})

	t.Run("ConfirmedPaymentDebits", func(t *testing.T) {
		rr := withdraw(200)
		require.Equal(t, http.StatusCreated, rr.Code)
		id := decode[handlers.PaymentResponse](t, rr).Payment.ID

		e.clock.Advance(121 * time.Second)
		require.Eventually(t, func() bool {
			return e.me(t, token).User.WalletBalance.Equal(dec("300"))
		}, 2*time.Second, 10*time.Millisecond)

		after := e.me(t, token)
		assert.True(t, after.User.ReservedBalance.IsZero())
		assert.Equal(t, http.StatusConflict, e.do(t, http.MethodDelete, "/payments/"+id, token, nil).Code)
		require.NoError(t, e.svc.CheckBalanceInvariant(context.Background(), after.User.ID))
	})
}

func TestAdminConsole(t *testing.T) {
	e := newTestEnv(t)
	userToken := e.signUp(t, "9999999999", "")
	userID := e.me(t, userToken).User.ID

	rr := e.do(t, http.MethodPost, "/admin/login", "", handlers.AdminLoginRequest{Password: "guess"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	admin := e.adminToken(t)

	t.Run("AdjustWallet", func(t *testing.T) {
		path := "/admin/users/" + jsonID(userID) + "/wallet"
		rr := e.do(t, http.MethodPost, path, admin, map[string]any{"amount": 0, "reason": "noop"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		rr = e.do(t, http.MethodPost, path, admin, map[string]any{"amount": "125.50", "reason": "goodwill"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.True(t, dec("125.50").Equal(e.me(t, userToken).User.WalletBalance))
		rr = e.do(t, http.MethodPost, "/admin/users/999/wallet", admin, map[string]any{"amount": 5, "reason": "x"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Listings", func(t *testing.T) {
		rr := e.do(t, http.MethodGet, "/admin/users", admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]map[string]any](t, rr), 1)

		rr = e.do(t, http.MethodGet, "/admin/users/"+jsonID(userID), admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		detail := decode[ledger.UserDetail](t, rr)
		assert.Len(t, detail.Transactions, 1)

		rr = e.do(t, http.MethodGet, "/admin/transactions?limit=5", admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		txs := decode[[]ledger.TransactionRow](t, rr)
		require.Len(t, txs, 1)
		assert.Equal(t, "9999999999", txs[0].Phone)

		assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/admin/transactions?limit=-1", admin, nil).Code)
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/admin/investments", admin, nil).Code)
	})

	t.Run("RunReturnsAndStats", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/admin/returns/run", admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		res := decode[ledger.AccrualResult](t, rr)
		assert.Equal(t, "2024-03-10", res.RunDate)

		rr = e.do(t, http.MethodGet, "/admin/stats", admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		st := decode[ledger.PlatformStats](t, rr)
		assert.EqualValues(t, 1, st.TotalUsers)
		require.NotNil(t, st.LastAccrualRun)
	})

	t.Run("ExportAndSystem", func(t *testing.T) {
		rr := e.do(t, http.MethodGet, "/admin/export/transactions", admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Body.String(), "Admin adjustment: goodwill")

		rr = e.do(t, http.MethodGet, "/admin/export/transactions?upload=true", admin, nil)
		assert.Equal(t, http.StatusNotImplemented, rr.Code)

		rr = e.do(t, http.MethodGet, "/admin/system", admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		info := decode[handlers.SystemInfo](t, rr)
		assert.Equal(t, "sqlite", info.DBDialect)
		assert.False(t, info.ExportUploads)
	})

	t.Run("DeleteUser", func(t *testing.T) {
		rr := e.do(t, http.MethodDelete, "/admin/users/"+jsonID(userID), admin, nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/me", userToken, nil).Code)
		assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodDelete, "/admin/users/abc", admin, nil).Code)
	})
}

func jsonID(id uint64) string { return strconv.FormatUint(id, 10) }

func TestAdminCancelWithdrawal(t *testing.T) {
	e := newTestEnv(t)
	token := e.signUp(t, "9999999999", "")
	_, err := e.svc.UpdateUserWallet(context.Background(), e.me(t, token).User.ID, dec("500"), "test funds")
	require.NoError(t, err)
	admin := e.adminToken(t)

	rr := e.do(t, http.MethodPost, "/payments/withdrawal", token, map[string]any{
		"amount":       500,
		"bank_details": map[string]string{"account_holder": "Asha Rao", "account_number": "001122334455", "ifsc_code": "HDFC0001234"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	started := decode[handlers.PaymentResponse](t, rr)
	path := "/admin/withdrawals/" + jsonID(started.WithdrawalRequest.ID) + "/cancel"

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, path, token, nil).Code)

	rr = e.do(t, http.MethodPost, path, admin, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "cancelled", decode[map[string]any](t, rr)["status"])
	assert.True(t, dec("500").Equal(e.me(t, token).AvailableBalance))

	rr = e.do(t, http.MethodGet, "/payments/"+started.Payment.ID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, gateway.StatusFailed, decode[handlers.PaymentResponse](t, rr).Payment.Status)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, path, admin, nil).Code)
}

func TestRestartReleasesPendingWithdrawals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.db")
	before := newTestEnvAt(t, path)
	token := before.signUp(t, "9999999999", "")
	_, err := before.svc.UpdateUserWallet(context.Background(), before.me(t, token).User.ID, dec("500"), "test funds")
	require.NoError(t, err)

	rr := before.do(t, http.MethodPost, "/payments/withdrawal", token, map[string]any{
		"amount":       500,
		"bank_details": map[string]string{"account_holder": "Asha Rao", "account_number": "001122334455", "ifsc_code": "HDFC0001234"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	paymentID := decode[handlers.PaymentResponse](t, rr).Payment.ID
	assert.True(t, before.me(t, token).AvailableBalance.IsZero())

	after := newTestEnvAt(t, path)
	assert.Equal(t, http.StatusNotFound, after.do(t, http.MethodGet, "/payments/"+paymentID, token, nil).Code)
	me := after.me(t, token)
	assert.True(t, dec("500").Equal(me.AvailableBalance))
	assert.Empty(t, me.PendingWithdrawals)

	rr = after.do(t, http.MethodPost, "/payments/withdrawal", token, map[string]any{
		"amount":       100,
		"bank_details": map[string]string{"account_holder": "Asha Rao", "account_number": "001122334455", "ifsc_code": "HDFC0001234"},
	})
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}
