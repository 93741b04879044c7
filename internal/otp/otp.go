package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidPhone = errors.New("phone number must be 10 digits")
	ErrNotFound     = errors.New("no code issued for this phone")
)

const DefaultTTL = 10 * time.Minute

type Codes struct {
	OTP          string
	SecurityCode string
}

// Store keeps one code pair per phone in the otp_store table.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewStore(db *gorm.DB, ttl time.Duration, now func() time.Time) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, ttl: ttl, now: now}
}

func sixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue generates a fresh pair for phone, replacing any earlier one.
func (s *Store) Issue(ctx context.Context, phone string) (*Codes, error) {
	if !models.ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}
	otp, err := sixDigits()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	code, err := sixDigits()
	if err != nil {
		return nil, fmt.Errorf("generate security code: %w", err)
	}

	rec := models.OTPRecord{Phone: phone, OTP: otp, SecurityCode: code, CreatedAt: s.now().UTC()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"otp", "security_code", "created_at"}),
	}).Create(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}
	logger.Log.Info("otp issued", zap.String("phone", phone))
	return &Codes{OTP: otp, SecurityCode: code}, nil
}

func (s *Store) load(ctx context.Context, phone string) (*models.OTPRecord, error) {
	var rec models.OTPRecord
	err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Verify accepts code only if it matches the latest OTP issued for phone
// and that OTP is no older than the TTL.
func (s *Store) Verify(ctx context.Context, phone, code string) (bool, error) {
	rec, err := s.load(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s.now().Sub(rec.CreatedAt) > s.ttl {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(rec.OTP), []byte(code)) == 1, nil
}

// SecurityCode returns the security code paired with the phone's OTP.
func (s *Store) SecurityCode(ctx context.Context, phone string) (string, error) {
	rec, err := s.load(ctx, phone)
	if err != nil {
		return "", err
	}
	return rec.SecurityCode, nil
}

func (s *Store) Consume(ctx context.Context, phone string) error {
	return s.db.WithContext(ctx).Where("phone = ?", phone).Delete(&models.OTPRecord{}).Error
}
