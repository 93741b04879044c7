package ledger

import "errors"

var (
	ErrInvalidPhone        = errors.New("phone number must be 10 digits")
	ErrInvalidSecurityCode = errors.New("security code must be 6 digits")
	ErrInvalidCredentials  = errors.New("invalid security code")
	ErrUserNotFound        = errors.New("user not found")
	ErrPhoneRegistered     = errors.New("phone number already registered")
	ErrReferralCodeTaken   = errors.New("referral code already assigned to another user")
	ErrUnknownPlan         = errors.New("unknown plan")
	ErrInvalidAmount       = errors.New("amount must be positive with at most two decimal places")
	ErrBelowMinimum        = errors.New("amount below minimum withdrawal")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNoPendingWithdrawal = errors.New("no matching pending withdrawal")
	ErrZeroAdjustment      = errors.New("adjustment amount cannot be zero")
	ErrConcurrentUpdate    = errors.New("wallet was modified concurrently")
)
