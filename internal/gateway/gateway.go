// Package gateway is an in-memory stand-in for a UPI payment provider.
// Payments confirm themselves once they have been pending long enough;
// nothing survives a restart.
package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Kind string

const (
	KindInvestment Kind = "investment"
	KindWithdrawal Kind = "withdrawal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	MethodPhonePe   = "phonepe"
	MethodGooglePay = "googlepay"
	MethodUPI       = "upi"
)

const DefaultVerifyAfter = 120 * time.Second

var (
	ErrNotFound      = errors.New("payment not found")
	ErrInvalidAmount = errors.New("payment amount must be positive with at most two decimal places")
	ErrUnknownKind   = errors.New("unknown payment kind")
)

type Request struct {
	Kind      Kind
	Amount    decimal.Decimal
	UserID    uint64
	UserPhone string
	PlanID    int
	Method    string
}

type Payment struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	UserID     uint64          `json:"user_id"`
	UserPhone  string          `json:"user_phone"`
	PlanID     int             `json:"plan_id,omitempty"`
	Method     string          `json:"method"`
	URL        string          `json:"url"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
}

type Config struct {
	UpiID       string
	PayeeName   string
	VerifyAfter time.Duration
}

type Gateway struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	payments map[string]*Payment
}

func New(cfg Config, now func() time.Time) *Gateway {
	if cfg.VerifyAfter <= 0 {
		cfg.VerifyAfter = DefaultVerifyAfter
	}
	if now == nil {
		now = time.Now
	}
	return &Gateway{cfg: cfg, now: now, payments: make(map[string]*Payment)}
}

func prefix(k Kind) string {
	if k == KindWithdrawal {
		return "WD"
	}
	return "INV"
}

func lastDigits(phone string, n int) string {
	if len(phone) <= n {
		return phone
	}
	return phone[len(phone)-n:]
}

// DeepLink builds the app-specific payment URL for method.
func DeepLink(method, upiID, payee string, amount decimal.Decimal, note string) string {
	q := strings.Join([]string{
		"pa=" + strings.ReplaceAll(url.QueryEscape(upiID), "%40", "@"),
		"am=" + url.QueryEscape(amount.String()),
		"pn=" + url.QueryEscape(payee),
		"tn=" + url.QueryEscape(note),
	}, "&")
	switch method {
	case MethodPhonePe:
		return "phonepe://pay?" + q
	case MethodGooglePay:
		return "tez://upi/pay?" + q
	default:
		return "upi://pay?" + q
	}
}

func note(req Request) string {
	if req.Kind == KindWithdrawal {
		return "Withdrawal"
	}
	if req.PlanID > 0 {
		return fmt.Sprintf("Investment Plan %d", req.PlanID)
	}
	return "Investment"
}

// Generate records a pending payment and returns it with its deep link.
func (g *Gateway) Generate(req Request) (*Payment, error) {
	if req.Kind != KindInvestment && req.Kind != KindWithdrawal {
		return nil, ErrUnknownKind
	}
	if !req.Amount.IsPositive() || !models.WholePaise(req.Amount) {
		return nil, ErrInvalidAmount
	}
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	id := fmt.Sprintf("%s%d%s", prefix(req.Kind), now.Unix(), lastDigits(req.UserPhone, 4))
	if _, taken := g.payments[id]; taken {
		id = id + "-" + uuid.NewString()[:8]
	}
	p := &Payment{
		ID:        id,
		Kind:      req.Kind,
		Amount:    req.Amount,
		UserID:    req.UserID,
		UserPhone: req.UserPhone,
		PlanID:    req.PlanID,
		Method:    req.Method,
		URL:       DeepLink(req.Method, g.cfg.UpiID, g.cfg.PayeeName, req.Amount, note(req)),
		Status:    StatusPending,
		CreatedAt: now,
	}
	g.payments[id] = p
	logger.Log.Info("payment generated",
		zap.String("payment_id", id),
		zap.String("kind", string(req.Kind)),
		zap.String("amount", req.Amount.String()),
		zap.String("method", req.Method),
	)
	cp := *p
	return &cp, nil
}

// AutoVerify reports whether the payment is confirmed. A pending payment
// confirms once VerifyAfter has elapsed since creation; the transition is
// recorded once and later calls keep returning true.
func (g *Gateway) AutoVerify(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[id]
	if !ok {
		return false
	}
	switch p.Status {
	case StatusCompleted:
		return true
	case StatusFailed:
		return false
	}
	now := g.now()
	if now.Sub(p.CreatedAt) < g.cfg.VerifyAfter {
		return false
	}
	p.Status = StatusCompleted
	p.ResolvedAt = &now
	logger.Log.Info("payment confirmed", zap.String("payment_id", id))
	return true
}

// Fail moves a pending payment to failed. It reports whether it did so;
// completed payments are never failed.
func (g *Gateway) Fail(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[id]
	if !ok || p.Status != StatusPending {
		return false
	}
	now := g.now()
	p.Status = StatusFailed
	p.ResolvedAt = &now
	logger.Log.Warn("payment failed", zap.String("payment_id", id))
	return true
}

func (g *Gateway) Get(id string) (*Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Pending lists pending payments, oldest first.
func (g *Gateway) Pending() []Payment {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Payment
	for _, p := range g.payments {
		if p.Status == StatusPending {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
