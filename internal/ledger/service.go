package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ReferralBonus = decimal.NewFromInt(50)
	MinWithdrawal = decimal.NewFromInt(100)
)

// Service owns every write to wallets, investments and the transaction log.
// Each operation commits its wallet mutation and log entries together.
type Service struct {
	db  *gorm.DB
	now func() time.Time
	loc *time.Location
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the calendar used for the once-per-day accrual guard.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{db: db, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(time.DateOnly)
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func lockUser(tx *gorm.DB, userID uint64) (*models.User, error) {
	var u models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return &u, nil
}

// adjustWallet applies deltas to the locked user row guarded by its version.
func adjustWallet(tx *gorm.DB, u *models.User, balanceDelta, reservedDelta decimal.Decimal) error {
	balance := u.WalletBalance.Add(balanceDelta)
	reserved := u.ReservedBalance.Add(reservedDelta)
	res := tx.Model(&models.User{}).
		Where("id = ? AND version = ?", u.ID, u.Version).
		Updates(map[string]any{
			"wallet_balance":   balance,
			"reserved_balance": reserved,
			"version":          u.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("update wallet %d: %w", u.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	u.WalletBalance = balance
	u.ReservedBalance = reserved
	u.Version++
	return nil
}

func (s *Service) appendTx(tx *gorm.DB, t models.Transaction) (*models.Transaction, error) {
	if t.Settlement == "" {
		t.Settlement = models.SettlementWallet
	}
	if t.Status == "" {
		t.Status = models.TxStatusCompleted
	}
	t.CreatedAt = s.timestamp()
	if err := tx.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("log %s transaction: %w", t.Type, err)
	}
	return &t, nil
}
