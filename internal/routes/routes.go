package routes

import (
	"net/http"

	_ "github.com/GiorgiUbiria/investment_wallet/docs"
	"github.com/GiorgiUbiria/investment_wallet/internal/handlers"
	"github.com/GiorgiUbiria/investment_wallet/internal/httputil"
	appmw "github.com/GiorgiUbiria/investment_wallet/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func NewRoutes(h *handlers.Handler, tokens appmw.TokenParser) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmw.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Get("/plans", h.Plans)

	r.Post("/auth/otp", h.RequestOTP)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(appmw.Authenticated(tokens))

		r.Get("/me", h.Me)
		r.Get("/investments", h.MyInvestments)
		r.Get("/transactions", h.MyTransactions)

		r.Post("/payments/investment", h.InvestmentPayment)
		r.Post("/payments/withdrawal", h.WithdrawalPayment)
		r.Get("/payments/{id}", h.PaymentStatus)
		r.Delete("/payments/{id}", h.CancelPayment)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", h.AdminLogin)

		r.Group(func(r chi.Router) {
			r.Use(appmw.Authenticated(tokens))
			r.Use(appmw.AdminOnly)

			r.Get("/stats", h.AdminStats)
			r.Get("/users", h.AdminUsers)
			r.Get("/users/{id}", h.AdminUserDetail)
			r.Post("/users/{id}/wallet", h.AdminAdjustWallet)
			r.Delete("/users/{id}", h.AdminDeleteUser)
			r.Post("/withdrawals/{id}/cancel", h.AdminCancelWithdrawal)
			r.Get("/investments", h.AdminInvestments)
			r.Get("/transactions", h.AdminTransactions)
			r.Post("/returns/run", h.AdminRunReturns)
			r.Get("/export/transactions", h.AdminExportTransactions)
			r.Get("/system", h.AdminSystem)
		})
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "not found")
	})

	return r
}
