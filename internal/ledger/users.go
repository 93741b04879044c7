package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Register creates a user with a zero wallet. A referral code that resolves
// to an existing user credits that user the referral bonus in the same
// database transaction; an unknown code is ignored.
func (s *Service) Register(ctx context.Context, phone, securityCode, referralCode string) (*models.User, error) {
	if !models.ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}
	if !models.ValidSecurityCode(securityCode) {
		return nil, ErrInvalidSecurityCode
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(securityCode), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash security code: %w", err)
	}
	referralCode = strings.ToUpper(strings.TrimSpace(referralCode))
	ownCode := models.ReferralCodeFor(phone)

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("phone = ?", phone).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrPhoneRegistered
		}
		if err := tx.Model(&models.User{}).Where("referral_code = ?", ownCode).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrReferralCodeTaken
		}

		var referrer *models.User
		if referralCode != "" {
			var r models.User
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("referral_code = ?", referralCode).First(&r).Error
			switch {
			case err == nil:
				referrer = &r
			case errors.Is(err, gorm.ErrRecordNotFound):
				logger.Log.Info("unknown referral code ignored", zap.String("referral_code", referralCode))
			default:
				return err
			}
		}

		user = models.User{
			Phone:            phone,
			SecurityCodeHash: string(hash),
			WalletBalance:    decimal.Zero,
			ReservedBalance:  decimal.Zero,
			ReferralCode:     ownCode,
			CreatedAt:        s.timestamp(),
		}
		if referrer != nil {
			user.ReferredBy = &referrer.ReferralCode
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrPhoneRegistered
			}
			return err
		}

		if referrer == nil {
			return nil
		}
		if err := adjustWallet(tx, referrer, ReferralBonus, decimal.Zero); err != nil {
			return err
		}
		_, err := s.appendTx(tx, models.Transaction{
			UserID:      referrer.ID,
			Type:        models.TxReferral,
			Amount:      ReferralBonus,
			Description: fmt.Sprintf("Referral bonus from %s", phone),
			Reference:   fmt.Sprintf("referral:%d", user.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("user registered", zap.Uint64("user_id", user.ID), zap.Bool("referred", user.ReferredBy != nil))
	return &user, nil
}

func (s *Service) Login(ctx context.Context, phone, securityCode string) (*models.User, error) {
	if !models.ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}
	if !models.ValidSecurityCode(securityCode) {
		return nil, ErrInvalidSecurityCode
	}
	user, err := s.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.SecurityCodeHash), []byte(securityCode)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, userID uint64) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) WalletBalance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return u.WalletBalance, nil
}

// UpdateUserWallet applies an admin credit (positive) or debit (negative).
func (s *Service) UpdateUserWallet(ctx context.Context, userID uint64, amount decimal.Decimal, reason string) (*models.User, error) {
	if amount.IsZero() {
		return nil, ErrZeroAdjustment
	}
	if !models.WholePaise(amount) {
		return nil, ErrInvalidAmount
	}
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if err := adjustWallet(tx, u, amount, decimal.Zero); err != nil {
			return err
		}
		if _, err := s.appendTx(tx, models.Transaction{
			UserID:      u.ID,
			Type:        models.TxAdminAdjustment,
			Amount:      amount,
			Description: fmt.Sprintf("Admin adjustment: %s", reason),
		}); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("wallet adjusted by admin",
		zap.Uint64("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("reason", reason),
	)
	return user, nil
}

// DeleteUser removes the user and everything they own. Irreversible.
func (s *Service) DeleteUser(ctx context.Context, userID uint64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockUser(tx, userID); err != nil {
			return err
		}
		for _, m := range []any{&models.Transaction{}, &models.Investment{}, &models.WithdrawalRequest{}} {
			if err := tx.Where("user_id = ?", userID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.User{}, userID).Error
	})
	if err != nil {
		return err
	}
	logger.Log.Warn("user deleted", zap.Uint64("user_id", userID))
	return nil
}
