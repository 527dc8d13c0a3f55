package database

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserRow struct {
	ID           string          `db:"id" json:"id"`
	Email        string          `db:"email" json:"email"`
	PasswordHash string          `db:"password_hash" json:"-"`
	Cash         decimal.Decimal `db:"cash" json:"cash"`
	Invested     decimal.Decimal `db:"invested" json:"invested"`
	Version      int64           `db:"version" json:"-"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

type HoldingRow struct {
	Symbol      string          `db:"symbol" json:"symbol"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	AvgBuyPrice decimal.Decimal `db:"avg_buy_price" json:"avg_buy_price"`
}

// TransactionRow is one immutable history entry. Rows are never updated
// after insert; account reset deletes the whole sequence.
type TransactionRow struct {
	ID        string          `db:"id" json:"id"`
	Side      string          `db:"side" json:"side"`
	Symbol    string          `db:"symbol" json:"symbol"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Total     decimal.Decimal `db:"total" json:"total"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
