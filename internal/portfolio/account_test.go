package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuyCreatesHolding(t *testing.T) {
	acct := NewAccount("u1", dec("1000"))

	next, trade, err := acct.Buy("AAPL", dec("10"), dec("100"))
	require.NoError(t, err)

	h, ok := next.Holding("AAPL")
	require.True(t, ok)
	assert.True(t, h.Quantity.Equal(dec("10")), "quantity = %s", h.Quantity)
	assert.True(t, h.AvgBuyPrice.Equal(dec("100")), "avg = %s", h.AvgBuyPrice)
	assert.True(t, next.Cash.Equal(dec("0")), "cash = %s", next.Cash)
	assert.True(t, next.Invested.Equal(dec("1000")))

	assert.Equal(t, SideBuy, trade.Side)
	assert.True(t, trade.Total.Equal(dec("1000")))
}

func TestBuyAccumulatesWeightedAverage(t *testing.T) {
	acct := NewAccount("u1", dec("100000"))

	next, _, err := acct.Buy("AAPL", dec("10"), dec("100"))
	require.NoError(t, err)
	next, _, err = next.Buy("AAPL", dec("10"), dec("200"))
	require.NoError(t, err)

	h, ok := next.Holding("AAPL")
	require.True(t, ok)
	// (10*100 + 10*200) / 20
	assert.True(t, h.AvgBuyPrice.Equal(dec("150")), "avg = %s", h.AvgBuyPrice)
	assert.True(t, h.Quantity.Equal(dec("20")))
	assert.True(t, next.Cash.Equal(dec("97000")))
}

func TestBuyWeightedAverageFullPrecision(t *testing.T) {
	acct := NewAccount("u1", dec("100000"))

	next, _, err := acct.Buy("TSLA", dec("3"), dec("10"))
	require.NoError(t, err)
	next, _, err = next.Buy("TSLA", dec("1"), dec("11"))
	require.NoError(t, err)

	h, _ := next.Holding("TSLA")
	// 41/4 exactly, no pre-rounded intermediates
	assert.True(t, h.AvgBuyPrice.Equal(dec("10.25")), "avg = %s", h.AvgBuyPrice)

	// a third buy keeps weighting against the true cost basis
	next, _, err = next.Buy("TSLA", dec("2"), dec("9.5"))
	require.NoError(t, err)
	h, _ = next.Holding("TSLA")
	// (41 + 19) / 6 = 10
	assert.True(t, h.AvgBuyPrice.Equal(dec("10")), "avg = %s", h.AvgBuyPrice)
}

func TestBuyInsufficientFunds(t *testing.T) {
	acct := NewAccount("u1", dec("1000"))
	acct, _, err := acct.Buy("AAPL", dec("10"), dec("100"))
	require.NoError(t, err)
	require.True(t, acct.Cash.Equal(dec("0")))

	_, _, err = acct.Buy("AAPL", dec("5"), dec("200"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// rejection leaves the account untouched
	h, ok := acct.Holding("AAPL")
	require.True(t, ok)
	assert.True(t, h.Quantity.Equal(dec("10")))
	assert.True(t, h.AvgBuyPrice.Equal(dec("100")))
	assert.True(t, acct.Cash.Equal(dec("0")))
}

func TestBuyExactBalanceAllowed(t *testing.T) {
	acct := NewAccount("u1", dec("999.90"))
	next, _, err := acct.Buy("MSFT", dec("3"), dec("333.30"))
	require.NoError(t, err)
	assert.True(t, next.Cash.IsZero(), "cash = %s", next.Cash)
}

func TestSellPartialPreservesAvgPrice(t *testing.T) {
	acct := NewAccount("u1", dec("1000"))
	acct, _, err := acct.Buy("AAPL", dec("10"), dec("100"))
	require.NoError(t, err)

	next, trade, err := acct.Sell("AAPL", dec("4"), dec("150"))
	require.NoError(t, err)

	h, ok := next.Holding("AAPL")
	require.True(t, ok)
	assert.True(t, h.Quantity.Equal(dec("6")))
	assert.True(t, h.AvgBuyPrice.Equal(dec("100")), "avg must not change on sell, got %s", h.AvgBuyPrice)
	assert.True(t, next.Cash.Equal(dec("600")))
	assert.True(t, next.Invested.Equal(dec("600")))
	assert.Equal(t, SideSell, trade.Side)
	assert.True(t, trade.Total.Equal(dec("600")))
}

func TestSellFullLiquidationRemovesHolding(t *testing.T) {
	acct := NewAccount("u1", dec("1000"))
	acct, _, err := acct.Buy("AAPL", dec("10"), dec("100"))
	require.NoError(t, err)

	next, _, err := acct.Sell("AAPL", dec("10"), dec("150"))
	require.NoError(t, err)

	_, ok := next.Holding("AAPL")
	assert.False(t, ok, "holding must be deleted, not stored as zero")
	// cash is credited even though the holding is deleted
	assert.True(t, next.Cash.Equal(dec("1500")), "cash = %s", next.Cash)
	assert.True(t, next.Invested.Equal(dec("0")))
}

func TestSellInsufficientShares(t *testing.T) {
	acct := NewAccount("u1", dec("1000"))
	acct, _, err := acct.Buy("AAPL", dec("10"), dec("100"))
	require.NoError(t, err)

	_, _, err = acct.Sell("AAPL", dec("15"), dec("150"))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	h, ok := acct.Holding("AAPL")
	require.True(t, ok)
	assert.True(t, h.Quantity.Equal(dec("10")))
	assert.True(t, acct.Cash.Equal(dec("0")))
}

func TestSellNoSuchHolding(t *testing.T) {
	acct := NewAccount("u1", dec("1000"))
	_, _, err := acct.Sell("GOOG", dec("1"), dec("150"))
	assert.ErrorIs(t, err, ErrNoSuchHolding)
	assert.True(t, acct.Cash.Equal(dec("1000")))
}

func TestCashConservation(t *testing.T) {
	acct := NewAccount("u1", dec("5000"))

	next, _, err := acct.Buy("NVDA", dec("7"), dec("123.45"))
	require.NoError(t, err)
	assert.True(t, acct.Cash.Sub(next.Cash).Equal(dec("7").Mul(dec("123.45"))))

	sold, _, err := next.Sell("NVDA", dec("7"), dec("130.01"))
	require.NoError(t, err)
	assert.True(t, sold.Cash.Sub(next.Cash).Equal(dec("7").Mul(dec("130.01"))))
}

func TestInvalidInputsRejected(t *testing.T) {
	acct := NewAccount("u1", dec("1000"))

	_, _, err := acct.Buy("AAPL", dec("0"), dec("100"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, _, err = acct.Buy("AAPL", dec("-1"), dec("100"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, _, err = acct.Buy("AAPL", dec("1"), dec("0"))
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, _, err = acct.Sell("AAPL", dec("-2"), dec("100"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestMutatorsDoNotShareState(t *testing.T) {
	acct := NewAccount("u1", dec("10000"))
	acct, _, err := acct.Buy("AAPL", dec("10"), dec("100"))
	require.NoError(t, err)

	next, _, err := acct.Buy("AAPL", dec("10"), dec("200"))
	require.NoError(t, err)

	// the original aggregate must be unaffected by the new one
	h, _ := acct.Holding("AAPL")
	assert.True(t, h.Quantity.Equal(dec("10")))
	assert.True(t, h.AvgBuyPrice.Equal(dec("100")))

	nh, _ := next.Holding("AAPL")
	assert.True(t, nh.Quantity.Equal(dec("20")))
}

func TestDeposit(t *testing.T) {
	acct := NewAccount("u1", dec("100"))
	next, err := acct.Deposit(dec("250.50"))
	require.NoError(t, err)
	assert.True(t, next.Cash.Equal(dec("350.50")))
	assert.True(t, next.Invested.Equal(dec("0")))

	_, err = acct.Deposit(dec("0"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestReset(t *testing.T) {
	acct := NewAccount("u1", dec("10000"))
	acct, _, err := acct.Buy("AAPL", dec("5"), dec("100"))
	require.NoError(t, err)

	reset := acct.Reset(dec("10000"))
	assert.Empty(t, reset.Holdings)
	assert.True(t, reset.Cash.Equal(dec("10000")))
	assert.True(t, reset.Invested.IsZero())
}

func TestFractionalShares(t *testing.T) {
	acct := NewAccount("u1", dec("1000"))

	next, _, err := acct.Buy("VOO", dec("1.5"), dec("400"))
	require.NoError(t, err)
	h, _ := next.Holding("VOO")
	assert.True(t, h.Quantity.Equal(dec("1.5")))
	assert.True(t, next.Cash.Equal(dec("400")))

	next, _, err = next.Sell("VOO", dec("1.5"), dec("410"))
	require.NoError(t, err)
	_, ok := next.Holding("VOO")
	assert.False(t, ok)
	assert.True(t, next.Cash.Equal(dec("1015")))
}
