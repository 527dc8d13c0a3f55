// Seeds a demo account with a small portfolio so the frontend has
// something to show on first run.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"papertrade/internal/database"
	"papertrade/internal/portfolio"
)

func mustSymbol(s string) portfolio.Symbol {
	sym, err := portfolio.ParseSymbol(s)
	if err != nil {
		log.Fatalf("bad seed symbol %q: %v", s, err)
	}
	return sym
}

func main() {
	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := database.New(db, logrus.New())

	hash, err := bcrypt.GenerateFromPassword([]byte("demo-password"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	userID, err := repo.CreateUser(ctx, "demo@papertrade.local", string(hash), decimal.NewFromInt(10000))
	if err == database.ErrAlreadyExists {
		log.Fatal("demo user already exists; reset the account instead of reseeding")
	}
	if err != nil {
		log.Fatalf("create demo user: %v", err)
	}
	fmt.Printf("Created demo user %s\n", userID)

	// a couple of positions at fixed prices
	trades := []struct {
		symbol   string
		quantity string
		price    string
	}{
		{"AAPL", "10", "185.50"},
		{"MSFT", "5", "410.20"},
		{"VOO", "2.5", "455.00"},
	}
	for _, tr := range trades {
		acct, err := repo.LoadAccount(ctx, userID)
		if err != nil {
			log.Fatalf("load account: %v", err)
		}
		next, trade, err := acct.Buy(
			mustSymbol(tr.symbol),
			decimal.RequireFromString(tr.quantity),
			decimal.RequireFromString(tr.price),
		)
		if err != nil {
			log.Fatalf("seed buy %s: %v", tr.symbol, err)
		}
		if _, err := repo.ExecuteTrade(ctx, userID, acct.Version, next, trade); err != nil {
			log.Fatalf("persist seed buy %s: %v", tr.symbol, err)
		}
		fmt.Printf("Bought %s x %s @ %s\n", tr.quantity, tr.symbol, tr.price)
	}

	fmt.Println("Demo account ready: demo@papertrade.local / demo-password")
}
