// Package service orchestrates trades: it loads the account aggregate,
// applies the pure portfolio mutation, and persists the result together
// with its history record through the version-checked store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"papertrade/internal/auth"
	"papertrade/internal/database"
	"papertrade/internal/portfolio"
)

// Store is the persistence surface the service needs. *database.Repo
// implements it; tests substitute an in-memory fake.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string, initialCash decimal.Decimal) (string, error)
	GetUserByEmail(ctx context.Context, email string) (database.UserRow, error)
	LoadAccount(ctx context.Context, userID string) (portfolio.Account, error)
	ExecuteTrade(ctx context.Context, userID string, expectedVersion int64, next portfolio.Account, trade portfolio.Trade) (database.TransactionRow, error)
	UpdateBalance(ctx context.Context, userID string, expectedVersion int64, cash, invested decimal.Decimal) error
	ResetAccount(ctx context.Context, userID string, initialCash decimal.Decimal) error
	ListTransactions(ctx context.Context, userID string) ([]database.TransactionRow, error)
}

// Quoter supplies execution prices.
type Quoter interface {
	GetQuote(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error)
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict means concurrent mutations kept invalidating the
	// version check and the retries ran out.
	ErrConflict = errors.New("account was modified concurrently, retry")
)

// Each trade reloads and recomputes on a version conflict; past this
// many attempts we give up and surface ErrConflict.
const maxTradeAttempts = 3

type TradingService struct {
	store       Store
	quotes      Quoter
	auth        *auth.Manager
	log         *logrus.Logger
	initialCash decimal.Decimal
}

func New(store Store, quotes Quoter, authMgr *auth.Manager, log *logrus.Logger, initialCash decimal.Decimal) *TradingService {
	return &TradingService{store: store, quotes: quotes, auth: authMgr, log: log, initialCash: initialCash}
}

func (s *TradingService) Register(ctx context.Context, email, password string) (string, string, error) {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return "", "", err
	}
	userID, err := s.store.CreateUser(ctx, email, hash, s.initialCash)
	if err != nil {
		return "", "", err
	}
	token, err := s.auth.IssueToken(userID)
	if err != nil {
		return "", "", err
	}
	return userID, token, nil
}

func (s *TradingService) Login(ctx context.Context, email, password string) (string, string, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return "", "", ErrInvalidCredentials
	}
	if err != nil {
		return "", "", err
	}
	if err := s.auth.CheckPassword(u.PasswordHash, password); err != nil {
		return "", "", ErrInvalidCredentials
	}
	token, err := s.auth.IssueToken(u.ID)
	if err != nil {
		return "", "", err
	}
	return u.ID, token, nil
}

func (s *TradingService) Quote(ctx context.Context, sym portfolio.Symbol) (decimal.Decimal, error) {
	price, _, err := s.quotes.GetQuote(ctx, sym.String())
	return price, err
}

// Buy fetches the execution price and applies a buy as one
// read-mutate-persist cycle. The pure mutation and the version-checked
// write make the cycle safe against the lost-update hazard of two
// concurrent trades on the same user: the loser of the race reloads
// fresh state and recomputes.
func (s *TradingService) Buy(ctx context.Context, userID string, sym portfolio.Symbol, qty decimal.Decimal) (portfolio.Account, database.TransactionRow, error) {
	price, _, err := s.quotes.GetQuote(ctx, sym.String())
	if err != nil {
		return portfolio.Account{}, database.TransactionRow{}, fmt.Errorf("quote %s: %w", sym, err)
	}
	return s.executeTrade(ctx, userID, func(acct portfolio.Account) (portfolio.Account, portfolio.Trade, error) {
		return acct.Buy(sym, qty, price)
	})
}

// Sell mirrors Buy for the sell side.
func (s *TradingService) Sell(ctx context.Context, userID string, sym portfolio.Symbol, qty decimal.Decimal) (portfolio.Account, database.TransactionRow, error) {
	price, _, err := s.quotes.GetQuote(ctx, sym.String())
	if err != nil {
		return portfolio.Account{}, database.TransactionRow{}, fmt.Errorf("quote %s: %w", sym, err)
	}
	return s.executeTrade(ctx, userID, func(acct portfolio.Account) (portfolio.Account, portfolio.Trade, error) {
		return acct.Sell(sym, qty, price)
	})
}

func (s *TradingService) executeTrade(ctx context.Context, userID string, mutate func(portfolio.Account) (portfolio.Account, portfolio.Trade, error)) (portfolio.Account, database.TransactionRow, error) {
	for attempt := 1; attempt <= maxTradeAttempts; attempt++ {
		acct, err := s.store.LoadAccount(ctx, userID)
		if err != nil {
			return portfolio.Account{}, database.TransactionRow{}, err
		}
		next, trade, err := mutate(acct)
		if err != nil {
			// rejection: nothing was mutated, nothing gets recorded
			return portfolio.Account{}, database.TransactionRow{}, err
		}
		row, err := s.store.ExecuteTrade(ctx, userID, acct.Version, next, trade)
		if errors.Is(err, database.ErrVersionConflict) {
			s.log.Warnf("trade for user %s lost version race (attempt %d/%d)", userID, attempt, maxTradeAttempts)
			continue
		}
		if err != nil {
			return portfolio.Account{}, database.TransactionRow{}, err
		}
		next.Version = acct.Version + 1
		return next, row, nil
	}
	return portfolio.Account{}, database.TransactionRow{}, ErrConflict
}

func (s *TradingService) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (portfolio.Account, error) {
	for attempt := 1; attempt <= maxTradeAttempts; attempt++ {
		acct, err := s.store.LoadAccount(ctx, userID)
		if err != nil {
			return portfolio.Account{}, err
		}
		next, err := acct.Deposit(amount)
		if err != nil {
			return portfolio.Account{}, err
		}
		err = s.store.UpdateBalance(ctx, userID, acct.Version, next.Cash, next.Invested)
		if errors.Is(err, database.ErrVersionConflict) {
			s.log.Warnf("deposit for user %s lost version race (attempt %d/%d)", userID, attempt, maxTradeAttempts)
			continue
		}
		if err != nil {
			return portfolio.Account{}, err
		}
		next.Version = acct.Version + 1
		return next, nil
	}
	return portfolio.Account{}, ErrConflict
}

func (s *TradingService) Reset(ctx context.Context, userID string) error {
	return s.store.ResetAccount(ctx, userID, s.initialCash)
}

func (s *TradingService) History(ctx context.Context, userID string) ([]database.TransactionRow, error) {
	return s.store.ListTransactions(ctx, userID)
}

// PositionView is one priced holding in the portfolio response.
type PositionView struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	CurrentValue decimal.Decimal `json:"current_value"`
	GainLoss     decimal.Decimal `json:"gain_loss"`
}

type PortfolioView struct {
	Cash          decimal.Decimal `json:"cash"`
	Invested      decimal.Decimal `json:"invested"`
	Positions     []PositionView  `json:"positions"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// Portfolio prices every holding at the current quote. A symbol whose
// quote fails still shows up with a zero price rather than hiding the
// position.
func (s *TradingService) Portfolio(ctx context.Context, userID string) (PortfolioView, error) {
	acct, err := s.store.LoadAccount(ctx, userID)
	if err != nil {
		return PortfolioView{}, err
	}

	view := PortfolioView{
		Cash:          acct.Cash,
		Invested:      acct.Invested,
		Positions:     []PositionView{},
		HoldingsValue: decimal.Zero,
	}
	for sym, h := range acct.Holdings {
		pos := PositionView{
			Symbol:      sym.String(),
			Quantity:    h.Quantity,
			AvgBuyPrice: h.AvgBuyPrice,
		}
		price, _, err := s.quotes.GetQuote(ctx, sym.String())
		if err != nil {
			s.log.Warnf("no quote for held symbol %s: %v", sym, err)
		} else {
			pos.CurrentPrice = price
			pos.CurrentValue = h.Quantity.Mul(price)
			pos.GainLoss = pos.CurrentValue.Sub(h.AvgBuyPrice.Mul(h.Quantity))
			view.HoldingsValue = view.HoldingsValue.Add(pos.CurrentValue)
		}
		view.Positions = append(view.Positions, pos)
	}
	sort.Slice(view.Positions, func(i, j int) bool { return view.Positions[i].Symbol < view.Positions[j].Symbol })
	view.TotalValue = view.Cash.Add(view.HoldingsValue)
	return view, nil
}
