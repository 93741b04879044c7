package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxInvestment      TransactionType = "investment"
	TxReturn          TransactionType = "return"
	TxWithdrawal      TransactionType = "withdrawal"
	TxReferral        TransactionType = "referral"
	TxAdminAdjustment TransactionType = "admin_adjustment"
)

// Settlement tells whether a transaction moved money inside the wallet or
// outside of it (investment principal paid through the payment link).
type Settlement string

const (
	SettlementWallet   Settlement = "wallet"
	SettlementExternal Settlement = "external"
)

const (
	InvestmentActive    = "active"
	InvestmentCompleted = "completed"

	TxStatusCompleted = "completed"

	WithdrawalPending   = "pending"
	WithdrawalCompleted = "completed"
	WithdrawalCancelled = "cancelled"
)

type User struct {
	ID               uint64          `gorm:"primaryKey" json:"id"`
	Phone            string          `gorm:"uniqueIndex;size:10;not null" json:"phone"`
	SecurityCodeHash string          `gorm:"size:255;not null" json:"-"`
	WalletBalance    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"wallet_balance"`
	ReservedBalance  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"reserved_balance"`
	ReferralCode     string          `gorm:"uniqueIndex;size:6;not null" json:"referral_code"`
	ReferredBy       *string         `gorm:"size:6" json:"referred_by,omitempty"`
	Version          uint64          `gorm:"not null;default:0" json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (User) TableName() string { return "users" }

// Available is the part of the wallet not held by pending withdrawals.
func (u User) Available() decimal.Decimal {
	return u.WalletBalance.Sub(u.ReservedBalance)
}

type Investment struct {
	ID            uint64          `gorm:"primaryKey" json:"id"`
	UserID        uint64          `gorm:"index;not null" json:"user_id"`
	PlanID        int             `gorm:"not null" json:"plan_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	DailyReturn   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"daily_return"`
	TotalDays     int             `gorm:"not null" json:"total_days"`
	DaysRemaining int             `gorm:"not null" json:"days_remaining"`
	TotalProfit   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_profit"`
	Status        string          `gorm:"size:16;index;not null" json:"status"`
	PaymentMethod string          `gorm:"size:32" json:"payment_method"`
	PaymentRef    *string         `gorm:"uniqueIndex;size:64" json:"payment_ref,omitempty"`
	LastAccruedOn *string         `gorm:"size:10" json:"last_accrued_on,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (Investment) TableName() string { return "investments" }

type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	IFSCCode      string `json:"ifsc_code"`
}

type Transaction struct {
	ID          uint64          `gorm:"primaryKey" json:"id"`
	UserID      uint64          `gorm:"index;not null" json:"user_id"`
	Type        TransactionType `gorm:"size:32;index;not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Settlement  Settlement      `gorm:"size:16;not null" json:"settlement"`
	Description string          `gorm:"size:255" json:"description"`
	Status      string          `gorm:"size:16;not null" json:"status"`
	BankDetails *BankDetails    `gorm:"serializer:json;type:text" json:"bank_details,omitempty"`
	Reference   string          `gorm:"size:64;index" json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

type OTPRecord struct {
	Phone        string    `gorm:"primaryKey;size:10"`
	OTP          string    `gorm:"column:otp;size:6;not null"`
	SecurityCode string    `gorm:"size:6;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (OTPRecord) TableName() string { return "otp_store" }

type WithdrawalRequest struct {
	ID                   uint64          `gorm:"primaryKey" json:"id"`
	UserID               uint64          `gorm:"index;not null" json:"user_id"`
	Amount               decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	BankDetails          *BankDetails    `gorm:"serializer:json;type:text" json:"bank_details,omitempty"`
	Status               string          `gorm:"size:16;index;not null" json:"status"`
	PaymentTransactionID *string         `gorm:"size:64;index" json:"payment_transaction_id,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (WithdrawalRequest) TableName() string { return "withdrawal_requests" }

type AccrualRun struct {
	ID          uint64          `gorm:"primaryKey" json:"id"`
	RunDate     string          `gorm:"size:10;index;not null" json:"run_date"`
	Credited    int             `gorm:"not null" json:"credited"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_amount"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

func (AccrualRun) TableName() string { return "accrual_runs" }

// All lists every model for migration.
func All() []any {
	return []any{
		&User{},
		&Investment{},
		&Transaction{},
		&OTPRecord{},
		&WithdrawalRequest{},
		&AccrualRun{},
	}
}
