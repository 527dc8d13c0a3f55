package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL is not set; skipping integration tests")
	}
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	b, err := os.ReadFile("../../migrations/0001_init.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := db.Exec(string(b)); err != nil {
		t.Logf("exec migration: %v", err)
	}
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestUser(t *testing.T, r *Repo) string {
	t.Helper()
	email := fmt.Sprintf("it-%d@example.com", time.Now().UnixNano())
	id, err := r.CreateUser(context.Background(), email, "x", dec("1000"))
	require.NoError(t, err)
	return id
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())

	email := fmt.Sprintf("dup-%d@example.com", time.Now().UnixNano())
	_, err := r.CreateUser(context.Background(), email, "x", dec("1000"))
	require.NoError(t, err)

	_, err = r.CreateUser(context.Background(), email, "x", dec("1000"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestExecuteTradeBuyThenSellAll(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()
	userID := newTestUser(t, r)

	acct, err := r.LoadAccount(ctx, userID)
	require.NoError(t, err)
	require.True(t, acct.Cash.Equal(dec("1000")))
	require.Equal(t, int64(1), acct.Version)

	next, trade, err := acct.Buy("AAPL", dec("10"), dec("100"))
	require.NoError(t, err)
	row, err := r.ExecuteTrade(ctx, userID, acct.Version, next, trade)
	require.NoError(t, err)
	assert.Equal(t, "BUY", row.Side)
	assert.False(t, row.CreatedAt.IsZero())

	acct, err = r.LoadAccount(ctx, userID)
	require.NoError(t, err)
	assert.True(t, acct.Cash.IsZero(), "cash = %s", acct.Cash)
	assert.Equal(t, int64(2), acct.Version)
	h, ok := acct.Holding("AAPL")
	require.True(t, ok)
	assert.True(t, h.Quantity.Equal(dec("10")))
	assert.True(t, h.AvgBuyPrice.Equal(dec("100")))

	next, trade, err = acct.Sell("AAPL", dec("10"), dec("150"))
	require.NoError(t, err)
	_, err = r.ExecuteTrade(ctx, userID, acct.Version, next, trade)
	require.NoError(t, err)

	acct, err = r.LoadAccount(ctx, userID)
	require.NoError(t, err)
	assert.True(t, acct.Cash.Equal(dec("1500")), "cash = %s", acct.Cash)
	_, ok = acct.Holding("AAPL")
	assert.False(t, ok, "liquidated holding must have no row")

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM holdings WHERE user_id = $1`, userID))
	assert.Zero(t, count)

	history, err := r.ListTransactions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "BUY", history[0].Side)
	assert.Equal(t, "SELL", history[1].Side)
}

func TestExecuteTradeStaleVersion(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()
	userID := newTestUser(t, r)

	acct, err := r.LoadAccount(ctx, userID)
	require.NoError(t, err)

	next, trade, err := acct.Buy("MSFT", dec("2"), dec("100"))
	require.NoError(t, err)
	_, err = r.ExecuteTrade(ctx, userID, acct.Version, next, trade)
	require.NoError(t, err)

	// replay against the stale version: the whole write must roll back
	_, err = r.ExecuteTrade(ctx, userID, acct.Version, next, trade)
	assert.ErrorIs(t, err, ErrVersionConflict)

	history, err := r.ListTransactions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "conflicted trade must not leave a record")
}

func TestUpdateBalance(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()
	userID := newTestUser(t, r)

	acct, err := r.LoadAccount(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, r.UpdateBalance(ctx, userID, acct.Version, dec("1500"), acct.Invested))
	assert.ErrorIs(t, r.UpdateBalance(ctx, userID, acct.Version, dec("2000"), acct.Invested), ErrVersionConflict)

	acct, err = r.LoadAccount(ctx, userID)
	require.NoError(t, err)
	assert.True(t, acct.Cash.Equal(dec("1500")))
}

func TestResetAccount(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()
	userID := newTestUser(t, r)

	acct, err := r.LoadAccount(ctx, userID)
	require.NoError(t, err)
	next, trade, err := acct.Buy("NVDA", dec("3"), dec("200"))
	require.NoError(t, err)
	_, err = r.ExecuteTrade(ctx, userID, acct.Version, next, trade)
	require.NoError(t, err)

	require.NoError(t, r.ResetAccount(ctx, userID, dec("1000")))

	acct, err = r.LoadAccount(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, acct.Holdings)
	assert.True(t, acct.Cash.Equal(dec("1000")))
	assert.True(t, acct.Invested.IsZero())

	history, err := r.ListTransactions(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, r.ResetAccount(ctx, "00000000-0000-0000-0000-000000000000", dec("1000")), ErrNotFound)
}

func TestHeldSymbols(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()
	userID := newTestUser(t, r)

	acct, err := r.LoadAccount(ctx, userID)
	require.NoError(t, err)
	next, trade, err := acct.Buy("GOOG", dec("1"), dec("100"))
	require.NoError(t, err)
	_, err = r.ExecuteTrade(ctx, userID, acct.Version, next, trade)
	require.NoError(t, err)

	symbols, err := r.HeldSymbols(ctx)
	require.NoError(t, err)
	assert.Contains(t, symbols, "GOOG")
}

func TestLoadAccountMissingUser(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())

	_, err := r.LoadAccount(context.Background(), "00000000-0000-0000-0000-000000000001")
	assert.ErrorIs(t, err, ErrNotFound)
}
