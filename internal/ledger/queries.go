package ledger

import (
	"context"
	"fmt"

	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultTransactionLimit      = 20
	DefaultAdminTransactionLimit = 100
)

type InvestmentRow struct {
	models.Investment
	Phone string `json:"phone"`
}

type TransactionRow struct {
	models.Transaction
	Phone string `json:"phone"`
}

type UserDetail struct {
	User               models.User                `json:"user"`
	Investments        []models.Investment        `json:"investments"`
	Transactions       []models.Transaction       `json:"transactions"`
	PendingWithdrawals []models.WithdrawalRequest `json:"pending_withdrawals"`
}

type PlatformStats struct {
	TotalUsers            int64              `json:"total_users"`
	TotalInvestments      int64              `json:"total_investments"`
	ActiveInvestments     int64              `json:"active_investments"`
	TotalInvestmentAmount decimal.Decimal    `json:"total_investment_amount"`
	TotalReturnsPaid      decimal.Decimal    `json:"total_returns_paid"`
	TotalWithdrawals      decimal.Decimal    `json:"total_withdrawals"`
	TotalWalletBalance    decimal.Decimal    `json:"total_wallet_balance"`
	TotalReserved         decimal.Decimal    `json:"total_reserved"`
	PendingWithdrawals    int64              `json:"pending_withdrawals"`
	LastAccrualRun        *models.AccrualRun `json:"last_accrual_run,omitempty"`
}

// Transactions returns the user's most recent entries, newest first.
func (s *Service) Transactions(ctx context.Context, userID uint64, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	var out []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (s *Service) ListAllInvestments(ctx context.Context) ([]InvestmentRow, error) {
	var out []InvestmentRow
	err := s.db.WithContext(ctx).
		Model(&models.Investment{}).
		Select("investments.*, users.phone AS phone").
		Joins("JOIN users ON users.id = investments.user_id").
		Order("investments.created_at DESC, investments.id DESC").
		Scan(&out).Error
	return out, err
}

// ListAllTransactions returns the newest entries across all users.
// A negative limit returns everything.
func (s *Service) ListAllTransactions(ctx context.Context, limit int) ([]TransactionRow, error) {
	if limit == 0 {
		limit = DefaultAdminTransactionLimit
	}
	q := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("transactions.*, users.phone AS phone").
		Joins("JOIN users ON users.id = transactions.user_id").
		Order("transactions.created_at DESC, transactions.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []TransactionRow
	err := q.Scan(&out).Error
	return out, err
}

func (s *Service) UserDetail(ctx context.Context, userID uint64) (*UserDetail, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	d := &UserDetail{User: *u}
	if d.Investments, err = s.ListInvestments(ctx, userID); err != nil {
		return nil, err
	}
	if d.Transactions, err = s.Transactions(ctx, userID, DefaultTransactionLimit); err != nil {
		return nil, err
	}
	if d.PendingWithdrawals, err = s.PendingWithdrawals(ctx, userID); err != nil {
		return nil, err
	}
	return d, nil
}

func sum(q *gorm.DB, column string) (decimal.Decimal, error) {
	var v decimal.NullDecimal
	if err := q.Select("SUM(" + column + ")").Row().Scan(&v); err != nil {
		return decimal.Zero, err
	}
	if !v.Valid {
		return decimal.Zero, nil
	}
	return v.Decimal.Round(2), nil
}

func (s *Service) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	db := s.db.WithContext(ctx)
	var st PlatformStats
	var err error

	if err = db.Model(&models.User{}).Count(&st.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&models.Investment{}).Count(&st.TotalInvestments).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&models.Investment{}).Where("status = ?", models.InvestmentActive).
		Count(&st.ActiveInvestments).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&models.WithdrawalRequest{}).Where("status = ?", models.WithdrawalPending).
		Count(&st.PendingWithdrawals).Error; err != nil {
		return nil, err
	}
	if st.TotalInvestmentAmount, err = sum(db.Model(&models.Investment{}), "amount"); err != nil {
		return nil, err
	}
	if st.TotalReturnsPaid, err = sum(db.Model(&models.Transaction{}).Where("type = ?", models.TxReturn), "amount"); err != nil {
		return nil, err
	}
	withdrawn, err := sum(db.Model(&models.Transaction{}).Where("type = ?", models.TxWithdrawal), "amount")
	if err != nil {
		return nil, err
	}
	st.TotalWithdrawals = withdrawn.Abs()
	if st.TotalWalletBalance, err = sum(db.Model(&models.User{}), "wallet_balance"); err != nil {
		return nil, err
	}
	if st.TotalReserved, err = sum(db.Model(&models.User{}), "reserved_balance"); err != nil {
		return nil, err
	}
	if st.LastAccrualRun, err = s.LastAccrualRun(ctx); err != nil {
		return nil, err
	}
	return &st, nil
}

// CheckBalanceInvariant verifies that the wallet equals the sum of its
// wallet-settled transactions and that reserved equals pending withdrawals.
func (s *Service) CheckBalanceInvariant(ctx context.Context, userID uint64) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	db := s.db.WithContext(ctx)
	logged, err := sum(db.Model(&models.Transaction{}).
		Where("user_id = ? AND settlement = ?", userID, models.SettlementWallet), "amount")
	if err != nil {
		return err
	}
	if !logged.Equal(u.WalletBalance.Round(2)) {
		return fmt.Errorf("user %d: wallet %s != logged %s", userID, u.WalletBalance, logged)
	}
	reserved, err := sum(db.Model(&models.WithdrawalRequest{}).
		Where("user_id = ? AND status = ?", userID, models.WithdrawalPending), "amount")
	if err != nil {
		return err
	}
	if !reserved.Equal(u.ReservedBalance.Round(2)) {
		return fmt.Errorf("user %d: reserved %s != pending %s", userID, u.ReservedBalance, reserved)
	}
	return nil
}
