// Package quotes fetches execution prices from the external quote API
// and caches them in redis for a short TTL.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrQuoteNotFound = errors.New("quote not found")
	ErrBadQuote      = errors.New("quote API returned an unusable price")
)

type Client struct {
	http *resty.Client
	log  *logrus.Logger
}

func NewClient(baseURL string, timeout time.Duration, debug bool, log *logrus.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetDebug(debug)
	return &Client{http: c, log: log}
}

type quoteResponse struct {
	Symbol string      `json:"symbol"`
	Price  json.Number `json:"price"`
}

// Fetch asks the quote API for the latest price of symbol. The price is
// treated as an opaque positive decimal; anything else is rejected.
func (c *Client) Fetch(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("symbol", symbol).
		Get("/quote")
	if err != nil {
		c.log.Warnf("quote API request for %s failed: %v", symbol, err)
		return decimal.Zero, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return decimal.Zero, fmt.Errorf("%w: %s", ErrQuoteNotFound, symbol)
	default:
		return decimal.Zero, fmt.Errorf("quote API returned status %d for %s", resp.StatusCode(), symbol)
	}

	var q quoteResponse
	if err := json.Unmarshal(resp.Body(), &q); err != nil {
		return decimal.Zero, fmt.Errorf("decode quote for %s: %w", symbol, err)
	}
	price, err := decimal.NewFromString(q.Price.String())
	if err != nil || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s price %q", ErrBadQuote, symbol, q.Price)
	}
	return price, nil
}
