package quotes

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SymbolSource lists the symbols worth keeping warm in the cache.
type SymbolSource interface {
	HeldSymbols(ctx context.Context) ([]string, error)
}

// Service is the quote lookup consumed by the trading layer:
// cache-first, falling through to the external API.
type Service struct {
	client  *Client
	cache   *Cache
	symbols SymbolSource
	log     *logrus.Logger
}

func NewService(client *Client, cache *Cache, symbols SymbolSource, log *logrus.Logger) *Service {
	return &Service{client: client, cache: cache, symbols: symbols, log: log}
}

func (s *Service) GetQuote(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	if price, hit, err := s.cache.Get(ctx, symbol); err != nil {
		// a broken cache must not take quoting down
		s.log.Warnf("quote cache read for %s failed: %v", symbol, err)
	} else if hit {
		return price, time.Now().UTC(), nil
	}

	price, err := s.client.Fetch(ctx, symbol)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	if err := s.cache.Set(ctx, symbol, price); err != nil {
		s.log.Warnf("quote cache write for %s failed: %v", symbol, err)
	}
	return price, time.Now().UTC(), nil
}

// RefreshHeldSymbols re-fetches and caches a fresh price for every
// currently held symbol. Wired to the background scheduler.
func (s *Service) RefreshHeldSymbols(ctx context.Context) error {
	symbols, err := s.symbols.HeldSymbols(ctx)
	if err != nil {
		return err
	}
	for _, sym := range symbols {
		price, err := s.client.Fetch(ctx, sym)
		if err != nil {
			s.log.Warnf("refresh quote for %s failed: %v", sym, err)
			continue
		}
		if err := s.cache.Set(ctx, sym, price); err != nil {
			s.log.Warnf("refresh cache write for %s failed: %v", sym, err)
		}
	}
	return nil
}
