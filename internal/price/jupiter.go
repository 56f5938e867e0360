package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// TokenPrice is a USD quote with the token's on-chain decimal scale.
type TokenPrice struct {
	Price    float64 `json:"price"`
	Decimals int     `json:"decimals"`
}

type jupiterQuote struct {
	UsdPrice float64 `json:"usdPrice"`
	Decimals int     `json:"decimals"`
}

// JupiterClient fetches spot USD prices from the Jupiter price API.
type JupiterClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewJupiterClient(baseURL, apiKey string) *JupiterClient {
	return &JupiterClient{
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// GetPriceUsd returns the current quote for a mint, or nil when the API does
// not know the token.
func (c *JupiterClient) GetPriceUsd(ctx context.Context, mint string) (*TokenPrice, error) {
	reqURL := c.baseURL + "?ids=" + url.QueryEscape(mint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create price request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read price response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price api status %d: %s", resp.StatusCode, string(body))
	}

	var quotes map[string]jupiterQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("unmarshal price response: %w", err)
	}

	quote, ok := quotes[mint]
	if !ok {
		return nil, nil
	}
	return &TokenPrice{Price: quote.UsdPrice, Decimals: quote.Decimals}, nil
}
