package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"papertrade/internal/auth"
	"papertrade/internal/database"
	"papertrade/internal/portfolio"
	"papertrade/internal/quotes"
	"papertrade/internal/service"
)

type Handler struct {
	svc *service.TradingService
	log *logrus.Logger
}

func NewHandler(svc *service.TradingService, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *Handler) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid register body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, token, err := h.svc.Register(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, database.ErrAlreadyExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}
	if err != nil {
		h.log.Errorf("register failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": userID, "token": token})
}

func (h *Handler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid login body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		h.log.Errorf("login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "token": token})
}

func (h *Handler) GetQuote(c *gin.Context) {
	sym, err := portfolio.ParseSymbol(c.Param("symbol"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
		return
	}
	price, err := h.svc.Quote(c.Request.Context(), sym)
	if errors.Is(err, quotes.ErrQuoteNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found"})
		return
	}
	if err != nil {
		h.log.Errorf("quote fetch failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quote fetch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": sym.String(), "price": price})
}

type TradeRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Quantity string `json:"quantity" binding:"required"`
}

type tradeFn func(ctx context.Context, userID string, sym portfolio.Symbol, qty decimal.Decimal) (portfolio.Account, database.TransactionRow, error)

func (h *Handler) PostBuy(c *gin.Context)  { h.trade(c, h.svc.Buy) }
func (h *Handler) PostSell(c *gin.Context) { h.trade(c, h.svc.Sell) }

func (h *Handler) trade(c *gin.Context, exec tradeFn) {
	var req TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid trade body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sym, err := portfolio.ParseSymbol(req.Symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
		return
	}
	// numeric boundary: parsed exactly once, validated by the mutator
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity format"})
		return
	}

	acct, row, err := exec(c.Request.Context(), c.GetString(auth.ContextUserKey), sym, qty)
	if err != nil {
		h.tradeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction": row,
		"cash":        acct.Cash,
	})
}

// tradeError maps mutator rejections to client errors; everything else
// is an internal fault.
func (h *Handler) tradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, portfolio.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient funds"})
	case errors.Is(err, portfolio.ErrInsufficientShares):
		c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient shares"})
	case errors.Is(err, portfolio.ErrNoSuchHolding):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no position in symbol"})
	case errors.Is(err, portfolio.ErrInvalidQuantity), errors.Is(err, portfolio.ErrInvalidPrice), errors.Is(err, portfolio.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, quotes.ErrQuoteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "account busy, retry"})
	default:
		h.log.Errorf("trade failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

type DepositRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (h *Handler) PostDeposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount format"})
		return
	}
	acct, err := h.svc.Deposit(c.Request.Context(), c.GetString(auth.ContextUserKey), amount)
	if err != nil {
		h.tradeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cash": acct.Cash})
}

func (h *Handler) PostReset(c *gin.Context) {
	if err := h.svc.Reset(c.Request.Context(), c.GetString(auth.ContextUserKey)); err != nil {
		h.log.Errorf("reset failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	view, err := h.svc.Portfolio(c.Request.Context(), c.GetString(auth.ContextUserKey))
	if err != nil {
		h.log.Errorf("get portfolio failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetHistory(c *gin.Context) {
	rows, err := h.svc.History(c.Request.Context(), c.GetString(auth.ContextUserKey))
	if err != nil {
		h.log.Errorf("get history failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, rows)
}
