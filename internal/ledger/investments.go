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

type NewInvestment struct {
	UserID uint64
	PlanID int
	Amount decimal.Decimal
	Method string
	// PaymentRef is the id of the payment that funded the investment. A
	// second call with the same ref returns the first investment.
	PaymentRef string
}

// AddInvestment opens an investment and pays its first day's return at
// purchase time. That credit leaves days_remaining and last_accrued_on
// untouched, so the daily job may credit again on the same calendar day.
func (s *Service) AddInvestment(ctx context.Context, in NewInvestment) (*models.Investment, error) {
	plan, ok := LookupPlan(in.PlanID)
	if !ok {
		return nil, ErrUnknownPlan
	}
	if !in.Amount.IsPositive() || !models.WholePaise(in.Amount) {
		return nil, ErrInvalidAmount
	}

	var inv models.Investment
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ref *string
		if in.PaymentRef != "" {
			err := tx.Where("payment_ref = ?", in.PaymentRef).First(&inv).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			ref = &in.PaymentRef
		}

		u, err := lockUser(tx, in.UserID)
		if err != nil {
			return err
		}

		daily := plan.DailyReturnFor(in.Amount)
		inv = models.Investment{
			UserID:        u.ID,
			PlanID:        plan.ID,
			Amount:        in.Amount,
			DailyReturn:   daily,
			TotalDays:     plan.TotalDays,
			DaysRemaining: plan.TotalDays,
			TotalProfit:   daily,
			Status:        models.InvestmentActive,
			PaymentMethod: in.Method,
			PaymentRef:    ref,
			CreatedAt:     s.timestamp(),
		}
		if err := tx.Create(&inv).Error; err != nil {
			return fmt.Errorf("create investment: %w", err)
		}

		if _, err := s.appendTx(tx, models.Transaction{
			UserID:      u.ID,
			Type:        models.TxInvestment,
			Amount:      in.Amount,
			Settlement:  models.SettlementExternal,
			Description: fmt.Sprintf("Invested in Plan %d", plan.ID),
			Reference:   in.PaymentRef,
		}); err != nil {
			return err
		}

		if err := adjustWallet(tx, u, daily, decimal.Zero); err != nil {
			return err
		}
		if _, err := s.appendTx(tx, models.Transaction{
			UserID:      u.ID,
			Type:        models.TxReturn,
			Amount:      daily,
			Description: fmt.Sprintf("First day return from Plan %d", plan.ID),
			Reference:   fmt.Sprintf("investment:%d", inv.ID),
		}); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		logger.Log.Info("investment created",
			zap.Uint64("user_id", inv.UserID),
			zap.Uint64("investment_id", inv.ID),
			zap.Int("plan_id", inv.PlanID),
			zap.String("amount", inv.Amount.String()),
		)
	}
	return &inv, nil
}

type AccrualResult struct {
	RunDate   string          `json:"run_date"`
	Processed int             `json:"processed"`
	Credited  int             `json:"credited"`
	Completed int             `json:"completed"`
	Skipped   int             `json:"skipped"`
	Total     decimal.Decimal `json:"total"`
}

type accrual struct {
	credited  bool
	completed bool
	amount    decimal.Decimal
}

// CalculateDailyReturns credits one day's return to every active investment
// that has not yet been credited today. Each investment is settled in its
// own database transaction; a failure on one does not stop the others.
func (s *Service) CalculateDailyReturns(ctx context.Context) (*AccrualResult, error) {
	started := s.timestamp()
	today := s.today()

	var ids []uint64
	if err := s.db.WithContext(ctx).Model(&models.Investment{}).
		Where("status = ? AND days_remaining > 0", models.InvestmentActive).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list active investments: %w", err)
	}

	result := &AccrualResult{RunDate: today, Total: decimal.Zero}
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result.Processed++
		a, err := s.accrueOne(ctx, id, today)
		if err != nil {
			logger.Log.Error("accrual failed", zap.Uint64("investment_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("investment %d: %w", id, err))
			continue
		}
		if !a.credited {
			result.Skipped++
			continue
		}
		result.Credited++
		result.Total = result.Total.Add(a.amount)
		if a.completed {
			result.Completed++
		}
	}

	run := models.AccrualRun{
		RunDate:     today,
		Credited:    result.Credited,
		TotalAmount: result.Total,
		StartedAt:   started,
		FinishedAt:  s.timestamp(),
	}
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(&run).Error; err != nil {
		errs = append(errs, fmt.Errorf("record accrual run: %w", err))
	}

	logger.Log.Info("daily returns calculated",
		zap.String("run_date", today),
		zap.Int("processed", result.Processed),
		zap.Int("credited", result.Credited),
		zap.Int("completed", result.Completed),
		zap.String("total", result.Total.String()),
	)
	return result, errors.Join(errs...)
}

func (s *Service) accrueOne(ctx context.Context, investmentID uint64, today string) (accrual, error) {
	var out accrual
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Investment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, investmentID).Error; err != nil {
			return err
		}
		if inv.Status != models.InvestmentActive || inv.DaysRemaining <= 0 {
			return nil
		}
		if inv.LastAccruedOn != nil && *inv.LastAccruedOn == today {
			return nil
		}

		remaining := inv.DaysRemaining - 1
		status := models.InvestmentActive
		if remaining == 0 {
			status = models.InvestmentCompleted
		}
		res := tx.Model(&models.Investment{}).
			Where("id = ? AND days_remaining = ? AND (last_accrued_on IS NULL OR last_accrued_on <> ?)",
				inv.ID, inv.DaysRemaining, today).
			Updates(map[string]any{
				"days_remaining":  remaining,
				"total_profit":    inv.TotalProfit.Add(inv.DailyReturn),
				"status":          status,
				"last_accrued_on": today,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		u, err := lockUser(tx, inv.UserID)
		if err != nil {
			return err
		}
		if err := adjustWallet(tx, u, inv.DailyReturn, decimal.Zero); err != nil {
			return err
		}
		if _, err := s.appendTx(tx, models.Transaction{
			UserID:      u.ID,
			Type:        models.TxReturn,
			Amount:      inv.DailyReturn,
			Description: fmt.Sprintf("Daily return from Plan %d", inv.PlanID),
			Reference:   fmt.Sprintf("investment:%d:%s", inv.ID, today),
		}); err != nil {
			return err
		}
		out = accrual{credited: true, completed: remaining == 0, amount: inv.DailyReturn}
		return nil
	})
	return out, err
}

// LastAccrualRun returns nil when the job has never run.
func (s *Service) LastAccrualRun(ctx context.Context) (*models.AccrualRun, error) {
	var run models.AccrualRun
	err := s.db.WithContext(ctx).Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Service) ActiveInvestments(ctx context.Context, userID uint64) ([]models.Investment, error) {
	var out []models.Investment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.InvestmentActive).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (s *Service) ListInvestments(ctx context.Context, userID uint64) ([]models.Investment, error) {
	var out []models.Investment
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}
