package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateWithdrawalRequest records a pending withdrawal and reserves its
// amount so that pending requests can never exceed the wallet.
func (s *Service) CreateWithdrawalRequest(ctx context.Context, userID uint64, amount decimal.Decimal, bank models.BankDetails) (*models.WithdrawalRequest, error) {
	if !models.WholePaise(amount) {
		return nil, ErrInvalidAmount
	}
	if amount.LessThan(MinWithdrawal) {
		return nil, ErrBelowMinimum
	}

	var req models.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(u.Available()) {
			return ErrInsufficientFunds
		}
		now := s.timestamp()
		req = models.WithdrawalRequest{
			UserID:      u.ID,
			Amount:      amount,
			BankDetails: &bank,
			Status:      models.WithdrawalPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&req).Error; err != nil {
			return fmt.Errorf("create withdrawal request: %w", err)
		}
		return adjustWallet(tx, u, decimal.Zero, amount)
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("withdrawal requested",
		zap.Uint64("user_id", userID),
		zap.Uint64("request_id", req.ID),
		zap.String("amount", amount.String()),
	)
	return &req, nil
}

// AttachWithdrawalPayment links a pending request to the gateway payment
// that will settle it.
func (s *Service) AttachWithdrawalPayment(ctx context.Context, requestID uint64, gatewayTxID string) error {
	res := s.db.WithContext(ctx).Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", requestID, models.WithdrawalPending).
		Updates(map[string]any{
			"payment_transaction_id": gatewayTxID,
			"updated_at":             s.timestamp(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoPendingWithdrawal
	}
	return nil
}

// CompleteWithdrawalAfterPayment settles the request linked to gatewayTxID,
// falling back to the most recent pending request of the same user and
// amount. Settling the same gateway id twice is a no-op.
func (s *Service) CompleteWithdrawalAfterPayment(ctx context.Context, userID uint64, amount decimal.Decimal, gatewayTxID string) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	settled := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if gatewayTxID != "" {
			err := tx.Where("user_id = ? AND payment_transaction_id = ? AND status = ?",
				userID, gatewayTxID, models.WithdrawalCompleted).
				First(&req).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		found, err := findPendingWithdrawal(tx, userID, amount, gatewayTxID)
		if err != nil {
			return err
		}
		req = *found

		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if err := adjustWallet(tx, u, req.Amount.Neg(), req.Amount.Neg()); err != nil {
			return err
		}

		now := s.timestamp()
		res := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", req.ID, models.WithdrawalPending).
			Updates(map[string]any{
				"status":                 models.WithdrawalCompleted,
				"payment_transaction_id": gatewayTxID,
				"updated_at":             now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoPendingWithdrawal
		}
		req.Status = models.WithdrawalCompleted
		req.PaymentTransactionID = &gatewayTxID
		req.UpdatedAt = now

		if _, err := s.appendTx(tx, models.Transaction{
			UserID:      u.ID,
			Type:        models.TxWithdrawal,
			Amount:      req.Amount.Neg(),
			Description: "Withdrawal completed",
			BankDetails: req.BankDetails,
			Reference:   gatewayTxID,
		}); err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if settled {
		logger.Log.Info("withdrawal completed",
			zap.Uint64("user_id", userID),
			zap.Uint64("request_id", req.ID),
			zap.String("payment_id", gatewayTxID),
		)
	}
	return &req, nil
}

func findPendingWithdrawal(tx *gorm.DB, userID uint64, amount decimal.Decimal, gatewayTxID string) (*models.WithdrawalRequest, error) {
	if gatewayTxID != "" {
		// A request already linked to this payment is the only candidate,
		// even when it has been cancelled since.
		var linked models.WithdrawalRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ? AND payment_transaction_id = ?",
			userID, gatewayTxID).First(&linked).Error
		if err == nil {
			if linked.Status != models.WithdrawalPending || !linked.Amount.Equal(amount) {
				return nil, ErrNoPendingWithdrawal
			}
			return &linked, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var pending []models.WithdrawalRequest
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ? AND status = ?", userID, models.WithdrawalPending).
		Order("created_at DESC, id DESC").
		Find(&pending).Error; err != nil {
		return nil, err
	}
	for i := range pending {
		if pending[i].Amount.Equal(amount) {
			return &pending[i], nil
		}
	}
	return nil, ErrNoPendingWithdrawal
}

// CancelWithdrawal is the failure path of a withdrawal payment: the
// reservation is released and the request is marked cancelled.
func (s *Service) CancelWithdrawal(ctx context.Context, userID uint64, gatewayTxID string) error {
	var req models.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND status = ? AND payment_transaction_id = ?",
				userID, models.WithdrawalPending, gatewayTxID).
			First(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoPendingWithdrawal
		}
		if err != nil {
			return err
		}
		return s.releaseWithdrawal(tx, &req)
	})
	if err != nil {
		return err
	}
	logger.Log.Info("withdrawal cancelled",
		zap.Uint64("user_id", userID),
		zap.Uint64("request_id", req.ID),
		zap.String("payment_id", gatewayTxID),
	)
	return nil
}

// CancelWithdrawalRequest cancels a pending request by id, whatever state
// its payment is in.
func (s *Service) CancelWithdrawalRequest(ctx context.Context, requestID uint64) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", requestID, models.WithdrawalPending).
			First(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoPendingWithdrawal
		}
		if err != nil {
			return err
		}
		return s.releaseWithdrawal(tx, &req)
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Warn("withdrawal cancelled by admin",
		zap.Uint64("user_id", req.UserID),
		zap.Uint64("request_id", req.ID),
	)
	return &req, nil
}

// ReleaseOrphanedWithdrawals cancels every pending request. Payments live
// in process memory, so at startup no pending request can still settle.
func (s *Service) ReleaseOrphanedWithdrawals(ctx context.Context) (int, error) {
	var ids []uint64
	if err := s.db.WithContext(ctx).Model(&models.WithdrawalRequest{}).
		Where("status = ?", models.WithdrawalPending).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("list pending withdrawals: %w", err)
	}

	released := 0
	var errs []error
	for _, id := range ids {
		_, err := s.CancelWithdrawalRequest(ctx, id)
		switch {
		case err == nil:
			released++
		case errors.Is(err, ErrNoPendingWithdrawal):
		default:
			errs = append(errs, fmt.Errorf("withdrawal %d: %w", id, err))
		}
	}
	if released > 0 {
		logger.Log.Warn("released orphaned withdrawals", zap.Int("count", released))
	}
	return released, errors.Join(errs...)
}

// releaseWithdrawal returns req's reservation to the wallet and marks req
// cancelled. req must be locked and pending.
func (s *Service) releaseWithdrawal(tx *gorm.DB, req *models.WithdrawalRequest) error {
	u, err := lockUser(tx, req.UserID)
	if err != nil {
		return err
	}
	if err := adjustWallet(tx, u, decimal.Zero, req.Amount.Neg()); err != nil {
		return err
	}
	now := s.timestamp()
	if err := tx.Model(&models.WithdrawalRequest{}).
		Where("id = ?", req.ID).
		Updates(map[string]any{
			"status":     models.WithdrawalCancelled,
			"updated_at": now,
		}).Error; err != nil {
		return err
	}
	req.Status = models.WithdrawalCancelled
	req.UpdatedAt = now
	return nil
}

func (s *Service) PendingWithdrawals(ctx context.Context, userID uint64) ([]models.WithdrawalRequest, error) {
	var out []models.WithdrawalRequest
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.WithdrawalPending).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}
