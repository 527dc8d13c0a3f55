package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"papertrade/internal/portfolio"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrVersionConflict means the user row changed between load and
	// save; the caller should reload and retry.
	ErrVersionConflict = errors.New("version conflict")
)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

func (r *Repo) CreateUser(ctx context.Context, email, passwordHash string, initialCash decimal.Decimal) (string, error) {
	id := uuid.NewString()
	q := `INSERT INTO users (id, email, password_hash, cash, invested, version, created_at) VALUES ($1, $2, $3, $4::numeric, 0, 1, now())`
	if _, err := r.db.ExecContext(ctx, q, id, email, passwordHash, initialCash.String()); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", ErrAlreadyExists
		}
		return "", err
	}
	return id, nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	var u UserRow
	err := r.db.GetContext(ctx, &u, `SELECT id, email, password_hash, cash, invested, version, created_at FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRow{}, ErrNotFound
	}
	return u, err
}

// LoadAccount reads the user row plus holdings and assembles the
// portfolio aggregate the mutators operate on.
func (r *Repo) LoadAccount(ctx context.Context, userID string) (portfolio.Account, error) {
	var u UserRow
	err := r.db.GetContext(ctx, &u, `SELECT id, email, password_hash, cash, invested, version, created_at FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return portfolio.Account{}, ErrNotFound
	}
	if err != nil {
		return portfolio.Account{}, err
	}

	acct := portfolio.Account{
		UserID:   u.ID,
		Cash:     u.Cash,
		Invested: u.Invested,
		Version:  u.Version,
		Holdings: make(map[portfolio.Symbol]portfolio.Holding),
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT symbol, quantity, avg_buy_price FROM holdings WHERE user_id = $1`, userID)
	if err != nil {
		return portfolio.Account{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var h HoldingRow
		if err := rows.StructScan(&h); err != nil {
			return portfolio.Account{}, err
		}
		sym, err := portfolio.ParseSymbol(h.Symbol)
		if err != nil {
			r.log.Warnf("skipping holding with bad symbol %q for user %s: %v", h.Symbol, userID, err)
			continue
		}
		acct.Holdings[sym] = portfolio.Holding{Symbol: sym, Quantity: h.Quantity, AvgBuyPrice: h.AvgBuyPrice}
	}
	return acct, rows.Err()
}

// ExecuteTrade persists a successful mutation and its history entry as
// one SQL transaction: a version-checked update of the user row, the
// holding upsert or delete, and the transaction-record insert. The
// record can therefore never exist without the persisted mutation. A
// stale expectedVersion rolls everything back with ErrVersionConflict.
func (r *Repo) ExecuteTrade(ctx context.Context, userID string, expectedVersion int64, next portfolio.Account, trade portfolio.Trade) (TransactionRow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return TransactionRow{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET cash = $1::numeric, invested = $2::numeric, version = version + 1 WHERE id = $3 AND version = $4`,
		next.Cash.String(), next.Invested.String(), userID, expectedVersion)
	if err != nil {
		return TransactionRow{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return TransactionRow{}, err
	} else if n == 0 {
		return TransactionRow{}, ErrVersionConflict
	}

	if h, ok := next.Holding(trade.Symbol); ok {
		upsert := `INSERT INTO holdings (user_id, symbol, quantity, avg_buy_price, last_updated) VALUES ($1, $2, $3::numeric, $4::numeric, now())
			ON CONFLICT (user_id, symbol) DO UPDATE SET quantity = $3::numeric, avg_buy_price = $4::numeric, last_updated = now()`
		if _, err := tx.ExecContext(ctx, upsert, userID, trade.Symbol.String(), h.Quantity.String(), h.AvgBuyPrice.String()); err != nil {
			return TransactionRow{}, err
		}
	} else {
		// position fully liquidated; zero rows are never stored
		if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE user_id = $1 AND symbol = $2`, userID, trade.Symbol.String()); err != nil {
			return TransactionRow{}, err
		}
	}

	row := TransactionRow{
		ID:       uuid.NewString(),
		Side:     string(trade.Side),
		Symbol:   trade.Symbol.String(),
		Quantity: trade.Quantity,
		Price:    trade.Price,
		Total:    trade.Total,
	}
	insert := `INSERT INTO transactions (id, user_id, side, symbol, quantity, price, total, created_at) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, now()) RETURNING created_at`
	if err := tx.QueryRowContext(ctx, insert, row.ID, userID, row.Side, row.Symbol, row.Quantity.String(), row.Price.String(), row.Total.String()).Scan(&row.CreatedAt); err != nil {
		return TransactionRow{}, err
	}

	if err := tx.Commit(); err != nil {
		return TransactionRow{}, err
	}
	return row, nil
}

// UpdateBalance persists a deposit with the same version check as
// ExecuteTrade.
func (r *Repo) UpdateBalance(ctx context.Context, userID string, expectedVersion int64, cash, invested decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET cash = $1::numeric, invested = $2::numeric, version = version + 1 WHERE id = $3 AND version = $4`,
		cash.String(), invested.String(), userID, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ResetAccount restores the initial buying power and wipes holdings and
// history in one transaction.
func (r *Repo) ResetAccount(ctx context.Context, userID string, initialCash decimal.Decimal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET cash = $1::numeric, invested = 0, version = version + 1 WHERE id = $2`,
		initialCash.String(), userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListTransactions returns the user's history in insertion order.
func (r *Repo) ListTransactions(ctx context.Context, userID string) ([]TransactionRow, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT id, side, symbol, quantity, price, total, created_at FROM transactions WHERE user_id = $1 ORDER BY seq ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []TransactionRow{}
	for rows.Next() {
		var t TransactionRow
		if err := rows.StructScan(&t); err != nil {
			r.log.Warnf("scan transaction failed: %v", err)
			continue
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// HeldSymbols lists every symbol currently held by any user, used by
// the quote refresh job.
func (r *Repo) HeldSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT DISTINCT symbol FROM holdings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			r.log.Warnf("scan symbol failed: %v", err)
			continue
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
