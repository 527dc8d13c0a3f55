// Smoke-tests a running server end to end: register, trade, inspect,
// reset. Not a go test; run it against a live stack.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const baseURL = "http://localhost:8080"

var token string

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health check
	checkEndpoint("GET", "/health", nil, 200)

	// 2. Register a fresh user
	email := fmt.Sprintf("e2e-%d@example.com", time.Now().UnixNano())
	creds := map[string]string{"email": email, "password": "correct-horse"}
	token = extractToken(checkEndpoint("POST", "/api/register", creds, 201))
	fmt.Println("Registered and got token")

	// 3. Login works too
	extractToken(checkEndpoint("POST", "/api/login", creds, 200))

	// 4. Quote lookup
	checkEndpoint("GET", "/api/quote/AAPL", nil, 200)

	// 5. Buy
	checkEndpoint("POST", "/api/buy", map[string]string{"symbol": "AAPL", "quantity": "2"}, 200)

	// 6. Portfolio shows the position
	checkEndpoint("GET", "/api/portfolio", nil, 200)

	// 7. Sell part of it
	checkEndpoint("POST", "/api/sell", map[string]string{"symbol": "AAPL", "quantity": "1"}, 200)

	// 8. Overselling is rejected
	checkEndpoint("POST", "/api/sell", map[string]string{"symbol": "AAPL", "quantity": "999"}, 400)

	// 9. History has both trades
	checkEndpoint("GET", "/api/history", nil, 200)

	// 10. Deposit and reset
	checkEndpoint("POST", "/api/deposit", map[string]string{"amount": "500"}, 200)
	checkEndpoint("POST", "/api/reset", nil, 200)

	fmt.Println("ALL TESTS PASSED")
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) []byte {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("%s %s: expected status %d, got %d: %s", method, path, expectedStatus, resp.StatusCode, respBody)
	}
	return respBody
}

func extractToken(body []byte) string {
	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Token == "" {
		log.Fatalf("no token in response: %s", body)
	}
	return parsed.Token
}
