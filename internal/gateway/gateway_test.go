package gateway

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestGateway() (*Gateway, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	return New(Config{UpiID: "merchant@ybl", PayeeName: "InvestmentApp", VerifyAfter: 120 * time.Second}, clock.Now), clock
}

func TestGenerate(t *testing.T) {
	g, _ := newTestGateway()

	t.Run("IDAndLink", func(t *testing.T) {
		p, err := g.Generate(Request{Kind: KindInvestment, Amount: decimal.NewFromInt(1000), UserPhone: "9876543210", PlanID: 1, Method: MethodPhonePe})
		require.NoError(t, err)
		assert.Equal(t, "INV17000000003210", p.ID)
		assert.Equal(t, StatusPending, p.Status)
		assert.Equal(t, "phonepe://pay?pa=merchant@ybl&am=1000&pn=InvestmentApp&tn=Investment+Plan+1", p.URL)
	})

	t.Run("CollisionGetsSuffix", func(t *testing.T) {
		p, err := g.Generate(Request{Kind: KindInvestment, Amount: decimal.NewFromInt(1000), UserPhone: "9876543210", Method: MethodUPI})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(p.ID, "INV17000000003210-"))
		assert.Len(t, p.ID, len("INV17000000003210")+9)
	})

	t.Run("WithdrawalPrefix", func(t *testing.T) {
		p, err := g.Generate(Request{Kind: KindWithdrawal, Amount: decimal.NewFromInt(150), UserPhone: "9999999999", Method: MethodGooglePay})
		require.NoError(t, err)
		assert.Equal(t, "WD17000000009999", p.ID)
		assert.True(t, strings.HasPrefix(p.URL, "tez://upi/pay?pa="))
	})

	t.Run("Rejects", func(t *testing.T) {
		_, err := g.Generate(Request{Kind: KindInvestment, Amount: decimal.Zero, UserPhone: "9999999999"})
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = g.Generate(Request{Kind: KindWithdrawal, Amount: decimal.RequireFromString("100.005"), UserPhone: "9999999999"})
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = g.Generate(Request{Kind: "refund", Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, ErrUnknownKind)
	})
}

func TestDeepLink(t *testing.T) {
	amt := decimal.RequireFromString("599.5")
	assert.Equal(t, "upi://pay?pa=a@b&am=599.5&pn=Pay+Me&tn=Investment", DeepLink("upi", "a@b", "Pay Me", amt, "Investment"))
	assert.Equal(t, "upi://pay?pa=shop%2Bone@okaxis&am=100&pn=A%26B&tn=x", DeepLink("upi", "shop+one@okaxis", "A&B", decimal.NewFromInt(100), "x"))
	assert.True(t, strings.HasPrefix(DeepLink("other", "a@b", "x", amt, "y"), "upi://pay?"))
	assert.True(t, strings.HasPrefix(DeepLink(MethodGooglePay, "a@b", "x", amt, "y"), "tez://upi/pay?"))
}

func TestAutoVerify(t *testing.T) {
	g, clock := newTestGateway()
	p, err := g.Generate(Request{Kind: KindInvestment, Amount: decimal.NewFromInt(1000), UserPhone: "9999999999", Method: MethodUPI})
	require.NoError(t, err)

	assert.False(t, g.AutoVerify("missing"))
	assert.False(t, g.AutoVerify(p.ID))

	clock.t = clock.t.Add(119 * time.Second)
	assert.False(t, g.AutoVerify(p.ID))

	clock.t = clock.t.Add(time.Second)
	assert.True(t, g.AutoVerify(p.ID))
	got, err := g.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.ResolvedAt)
	resolved := *got.ResolvedAt

	clock.t = clock.t.Add(time.Hour)
	assert.True(t, g.AutoVerify(p.ID))
	got, err = g.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, resolved, *got.ResolvedAt)

	assert.False(t, g.Fail(p.ID))
	assert.Empty(t, g.Pending())
}

func TestFail(t *testing.T) {
	g, clock := newTestGateway()
	p, err := g.Generate(Request{Kind: KindWithdrawal, Amount: decimal.NewFromInt(200), UserPhone: "9999999999"})
	require.NoError(t, err)
	require.Len(t, g.Pending(), 1)

	assert.True(t, g.Fail(p.ID))
	assert.False(t, g.Fail(p.ID))

	clock.t = clock.t.Add(time.Hour)
	assert.False(t, g.AutoVerify(p.ID))

	_, err = g.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
