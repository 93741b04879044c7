package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/GiorgiUbiria/investment_wallet/internal/auth"
	"github.com/GiorgiUbiria/investment_wallet/internal/httputil"
	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"go.uber.org/zap"
)

type OTPRequest struct {
	Phone string `json:"phone"`
}

type OTPResponse struct {
	Message      string `json:"message"`
	OTP          string `json:"otp,omitempty"`
	SecurityCode string `json:"security_code,omitempty"`
}

type RegisterRequest struct {
	Phone        string `json:"phone"`
	OTP          string `json:"otp"`
	SecurityCode string `json:"security_code"`
	ReferralCode string `json:"referral_code"`
}

type LoginRequest struct {
	Phone        string `json:"phone"`
	SecurityCode string `json:"security_code"`
}

type AdminLoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	Role  auth.Role    `json:"role"`
	User  *models.User `json:"user,omitempty"`
}

func equalSecret(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	codes, err := h.OTP.Issue(r.Context(), req.Phone)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := OTPResponse{Message: "OTP sent"}
	if h.cfg.ExposeCodes {
		resp.OTP = codes.OTP
		resp.SecurityCode = codes.SecurityCode
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !models.ValidPhone(req.Phone) {
		httputil.WriteError(w, http.StatusBadRequest, "phone number must be 10 digits")
		return
	}
	if !models.ValidSecurityCode(req.OTP) || !models.ValidSecurityCode(req.SecurityCode) {
		httputil.WriteError(w, http.StatusBadRequest, "otp and security code must be 6 digits")
		return
	}

	ctx := r.Context()
	ok, err := h.OTP.Verify(ctx, req.Phone, req.OTP)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid or expired otp")
		return
	}
	issued, err := h.OTP.SecurityCode(ctx, req.Phone)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !equalSecret(issued, req.SecurityCode) {
		httputil.WriteError(w, http.StatusUnauthorized, "security code does not match")
		return
	}

	user, err := h.Ledger.Register(ctx, req.Phone, req.SecurityCode, req.ReferralCode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.OTP.Consume(ctx, req.Phone); err != nil {
		logger.Log.Warn("otp consume failed", zap.String("phone", req.Phone), zap.Error(err))
	}

	token, err := h.Tokens.Issue(user.ID, auth.RoleUser)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, LoginResponse{Token: token, Role: auth.RoleUser, User: user})
}

// Login also opens the admin console when the configured admin phone and
// code pair authenticates.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !models.ValidPhone(req.Phone) || !models.ValidSecurityCode(req.SecurityCode) {
		httputil.WriteError(w, http.StatusBadRequest, "phone must be 10 digits and security code 6 digits")
		return
	}

	user, err := h.Ledger.Login(r.Context(), req.Phone, req.SecurityCode)
	if err != nil {
		logger.Log.Info("login rejected", zap.String("phone", req.Phone), zap.Error(err))
		httputil.WriteError(w, http.StatusUnauthorized, "invalid phone number or security code")
		return
	}

	role := auth.RoleUser
	if h.cfg.AdminLoginPhone != "" &&
		equalSecret(req.Phone, h.cfg.AdminLoginPhone) &&
		equalSecret(req.SecurityCode, h.cfg.AdminLoginCode) {
		role = auth.RoleAdmin
	}
	token, err := h.Tokens.Issue(user.ID, role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{Token: token, Role: role, User: user})
}

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if h.cfg.AdminPassword == "" || !equalSecret(req.Password, h.cfg.AdminPassword) {
		logger.Log.Warn("admin login rejected")
		httputil.WriteError(w, http.StatusUnauthorized, "invalid admin password")
		return
	}
	token, err := h.Tokens.Issue(0, auth.RoleAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	logger.Log.Info("admin logged in")
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{Token: token, Role: auth.RoleAdmin})
}
