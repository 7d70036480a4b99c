// Smoke test against a running server. Registers a fresh user, trades
// a liquid symbol both ways, and walks the read endpoints with the
// issued token. Needs the server up on localhost and a reachable
// quote provider.
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

	checkEndpoint("GET", "/health", nil, 200)

	registerUser()
	fmt.Println("Registered user, token issued")

	checkEndpoint("POST", "/api/transactions", map[string]interface{}{
		"side": "BUY", "symbol": "AAPL", "quantity": 2,
	}, 201)

	checkEndpoint("POST", "/api/transactions", map[string]interface{}{
		"side": "SELL", "symbol": "AAPL", "quantity": 1,
	}, 201)

	// a limit buy far below market must be rejected without a record
	checkEndpoint("POST", "/api/transactions", map[string]interface{}{
		"side": "BUY", "symbol": "AAPL", "quantity": 1,
		"order_kind": "LIMIT", "limit_price": "0.01",
	}, 422)

	checkEndpoint("GET", "/api/transactions", nil, 200)
	checkEndpoint("GET", "/api/portfolio", nil, 200)
	checkEndpoint("GET", "/api/portfolio/performance", nil, 200)
	checkEndpoint("GET", "/api/portfolio/history?period=1w", nil, 200)
	checkEndpoint("GET", "/api/stocks/quote/MSFT", nil, 200)
	checkEndpoint("GET", "/api/stocks/trending", nil, 200)

	checkEndpoint("POST", "/api/watchlist", map[string]interface{}{"symbol": "TSLA"}, 201)
	checkEndpoint("GET", "/api/watchlist", nil, 200)
	checkEndpoint("DELETE", "/api/watchlist/TSLA", nil, 204)

	fmt.Println("ALL TESTS PASSED")
}

func registerUser() {
	body := map[string]interface{}{
		"name":  "E2E Smoke",
		"email": fmt.Sprintf("e2e-%d@example.com", time.Now().UnixNano()),
	}
	jsonBody, _ := json.Marshal(body)
	resp, err := http.Post(baseURL+"/api/users", "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Fatalf("Register failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 201 {
		respBody, _ := io.ReadAll(resp.Body)
		log.Fatalf("Register failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var res struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil || res.Token == "" {
		log.Fatalf("Register response missing token: %v", err)
	}
	token = res.Token
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) {
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
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))
}
