package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/GiorgiUbiria/investment_wallet/internal/ledger"
	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	demoPhone      = "9000000001"
	demoCode       = "111111"
	demoPaymentRef = "SEED-DEMO-1"
)

type Ledger interface {
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	Register(ctx context.Context, phone, securityCode, referralCode string) (*models.User, error)
	AddInvestment(ctx context.Context, in ledger.NewInvestment) (*models.Investment, error)
}

// Run creates the admin login user and a demo investor referred by it.
// It is a no-op when the admin user already exists.
func Run(ctx context.Context, l Ledger, adminPhone, adminCode string) error {
	if _, err := l.GetUserByPhone(ctx, adminPhone); err == nil {
		logger.Log.Info("seed already applied, skipping")
		return nil
	} else if !errors.Is(err, ledger.ErrUserNotFound) {
		return fmt.Errorf("seed check: %w", err)
	}

	admin, err := l.Register(ctx, adminPhone, adminCode, "")
	if err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	demo, err := l.Register(ctx, demoPhone, demoCode, admin.ReferralCode)
	if err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}
	if _, err := l.AddInvestment(ctx, ledger.NewInvestment{
		UserID:     demo.ID,
		PlanID:     1,
		Amount:     decimal.NewFromInt(1000),
		Method:     "upi",
		PaymentRef: demoPaymentRef,
	}); err != nil {
		return fmt.Errorf("seed demo investment: %w", err)
	}

	logger.Log.Info("seeded admin and demo users",
		zap.String("admin_phone", adminPhone),
		zap.String("demo_phone", demoPhone),
		zap.String("demo_code", demoCode),
	)
	return nil
}
