// Package portfolio holds the trading core: a user's account aggregate
// and the pure buy/sell mutations on it. No I/O happens here; loading
// and persisting the aggregate is the caller's job.
package portfolio

import (
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Holding is one open position: shares owned plus the quantity-weighted
// average price paid across all buys of the symbol. Quantity is always
// positive; a position sold down to zero is removed from the account,
// never stored as zero.
type Holding struct {
	Symbol      Symbol
	Quantity    decimal.Decimal
	AvgBuyPrice decimal.Decimal
}

// Trade is one executed buy or sell as produced by the mutators. The
// recorder stamps it and appends it to the user's history.
type Trade struct {
	Side     Side
	Symbol   Symbol
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Total    decimal.Decimal
}

// Account is the aggregate root for one user's financial state: buying
// power, cost basis of open positions, and holdings keyed by symbol.
// Version is the optimistic-concurrency token the store checks on write.
//
// Mutators are value-semantic: they return a new Account and never
// modify the receiver, so a rejected trade leaves the caller's state
// exactly as it was.
type Account struct {
	UserID   string
	Cash     decimal.Decimal
	Invested decimal.Decimal
	Version  int64
	Holdings map[Symbol]Holding
}

func NewAccount(userID string, cash decimal.Decimal) Account {
	return Account{
		UserID:   userID,
		Cash:     cash,
		Invested: decimal.Zero,
		Version:  1,
		Holdings: make(map[Symbol]Holding),
	}
}

// Holding returns the position for sym, if any.
func (a Account) Holding(sym Symbol) (Holding, bool) {
	h, ok := a.Holdings[sym]
	return h, ok
}

func (a Account) clone() Account {
	next := a
	next.Holdings = make(map[Symbol]Holding, len(a.Holdings))
	for sym, h := range a.Holdings {
		next.Holdings[sym] = h
	}
	return next
}

// Buy purchases qty shares of sym at price. It rejects with
// ErrInsufficientFunds when the total cost exceeds buying power. On an
// existing position the average buy price is recomputed as the
// cost-basis weighted average at full precision; intermediate values
// are never rounded, so repeated partial buys do not drift.
func (a Account) Buy(sym Symbol, qty, price decimal.Decimal) (Account, Trade, error) {
	if !qty.IsPositive() {
		return Account{}, Trade{}, ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return Account{}, Trade{}, ErrInvalidPrice
	}

	total := price.Mul(qty)
	if total.GreaterThan(a.Cash) {
		return Account{}, Trade{}, ErrInsufficientFunds
	}

	next := a.clone()
	if h, ok := next.Holdings[sym]; ok {
		newQty := h.Quantity.Add(qty)
		cost := h.AvgBuyPrice.Mul(h.Quantity).Add(total)
		h.AvgBuyPrice = cost.Div(newQty)
		h.Quantity = newQty
		next.Holdings[sym] = h
	} else {
		next.Holdings[sym] = Holding{Symbol: sym, Quantity: qty, AvgBuyPrice: price}
	}
	next.Cash = next.Cash.Sub(total)
	next.Invested = next.Invested.Add(total)

	return next, Trade{Side: SideBuy, Symbol: sym, Quantity: qty, Price: price, Total: total}, nil
}

// Sell disposes of qty shares of sym at price. It rejects with
// ErrNoSuchHolding when the symbol is not owned and ErrInsufficientShares
// when qty exceeds the position. Selling the full position deletes the
// holding; a partial sell reduces quantity and leaves the average buy
// price untouched. Cash is credited with qty*price in both branches.
func (a Account) Sell(sym Symbol, qty, price decimal.Decimal) (Account, Trade, error) {
	if !qty.IsPositive() {
		return Account{}, Trade{}, ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return Account{}, Trade{}, ErrInvalidPrice
	}

	h, ok := a.Holdings[sym]
	if !ok {
		return Account{}, Trade{}, ErrNoSuchHolding
	}
	if qty.GreaterThan(h.Quantity) {
		return Account{}, Trade{}, ErrInsufficientShares
	}

	total := price.Mul(qty)
	next := a.clone()
	remaining := h.Quantity.Sub(qty)
	if remaining.IsZero() {
		delete(next.Holdings, sym)
	} else {
		h.Quantity = remaining
		next.Holdings[sym] = h
	}
	next.Cash = next.Cash.Add(total)
	next.Invested = next.Invested.Sub(h.AvgBuyPrice.Mul(qty))

	return next, Trade{Side: SideSell, Symbol: sym, Quantity: qty, Price: price, Total: total}, nil
}

// Deposit adds uncommitted funds to buying power.
func (a Account) Deposit(amount decimal.Decimal) (Account, error) {
	if !amount.IsPositive() {
		return Account{}, ErrInvalidAmount
	}
	next := a.clone()
	next.Cash = next.Cash.Add(amount)
	return next, nil
}

// Reset wipes the account back to its starting state: no holdings,
// buying power restored to initialCash, nothing invested. The caller
// also clears the transaction history, the one bulk delete allowed on
// the otherwise append-only sequence.
func (a Account) Reset(initialCash decimal.Decimal) Account {
	next := a
	next.Cash = initialCash
	next.Invested = decimal.Zero
	next.Holdings = make(map[Symbol]Holding)
	return next
}
