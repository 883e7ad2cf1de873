// Package client is a typed Go client for the curiod HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client wraps a curiod endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	authToken  string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithAuthToken sets the bearer token attached to every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = strings.TrimSpace(token)
	}
}

// New creates a client for the given base endpoint, e.g. "http://localhost:8651".
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("curiod: %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			message = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// AcquisitionReceipt is the settlement accounting returned by Purchase.
type AcquisitionReceipt struct {
	ItemID      uint64   `json:"itemId"`
	Payer       string   `json:"payer"`
	Total       string   `json:"total"`
	PlatformCut string   `json:"platformCut"`
	Distributed string   `json:"distributed"`
	Dust        string   `json:"dust"`
	Shares      []string `json:"shares"`
}

// Purchase settles a primary sale of the item for the payer.
func (c *Client) Purchase(ctx context.Context, payer string, itemID uint64) (*AcquisitionReceipt, error) {
	receipt := &AcquisitionReceipt{}
	err := c.do(ctx, http.MethodPost, "/v1/market/purchase", map[string]interface{}{
		"payer":  payer,
		"itemId": itemID,
	}, receipt)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// SaleReceipt is the settlement accounting returned by Sell.
type SaleReceipt struct {
	ItemID         uint64 `json:"itemId"`
	Seller         string `json:"seller"`
	Buyer          string `json:"buyer"`
	SalePrice      string `json:"salePrice"`
	RoyaltyAmount  string `json:"royaltyAmount"`
	RoyaltyPaid    string `json:"royaltyPaid"`
	RoyaltyResidue string `json:"royaltyResidue"`
	PlatformCut    string `json:"platformCut"`
	SellerProceeds string `json:"sellerProceeds"`
}

// Sell settles a secondary sale. The caller must be the seller of record.
func (c *Client) Sell(ctx context.Context, caller, seller, buyer, salePrice string, itemID uint64) (*SaleReceipt, error) {
	receipt := &SaleReceipt{}
	err := c.do(ctx, http.MethodPost, "/v1/market/sell", map[string]interface{}{
		"caller":    caller,
		"seller":    seller,
		"buyer":     buyer,
		"salePrice": salePrice,
		"itemId":    itemID,
	}, receipt)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Lease is a stored lease record.
type Lease struct {
	ItemID uint64 `json:"itemId"`
	Holder string `json:"holder"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
	Price  string `json:"price"`
	Active bool   `json:"active"`
}

// CreateLease opens a lease over the item for the holder.
func (c *Client) CreateLease(ctx context.Context, holder string, itemID uint64, duration int64, price string) (*Lease, error) {
	l := &Lease{}
	err := c.do(ctx, http.MethodPost, "/v1/leases", map[string]interface{}{
		"holder":   holder,
		"itemId":   itemID,
		"duration": duration,
		"price":    price,
	}, l)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ExtendLease pushes a running lease's end forward.
func (c *Client) ExtendLease(ctx context.Context, caller string, itemID uint64, extraDuration int64, extraPrice string) (*Lease, error) {
	l := &Lease{}
	err := c.do(ctx, http.MethodPost, "/v1/leases/extend", map[string]interface{}{
		"caller":        caller,
		"itemId":        itemID,
		"extraDuration": extraDuration,
		"extraPrice":    extraPrice,
	}, l)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// EndLease terminates a running lease.
func (c *Client) EndLease(ctx context.Context, caller string, itemID uint64) error {
	return c.do(ctx, http.MethodPost, "/v1/leases/end", map[string]interface{}{
		"caller": caller,
		"itemId": itemID,
	}, nil)
}

// GetLease fetches the stored lease record for the item.
func (c *Client) GetLease(ctx context.Context, itemID uint64) (*Lease, error) {
	l := &Lease{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/leases/%d", itemID), nil, l); err != nil {
		return nil, err
	}
	return l, nil
}

// CurrentHolder returns the account currently entitled to use the item.
func (c *Client) CurrentHolder(ctx context.Context, itemID uint64) (string, error) {
	var out struct {
		Holder string `json:"holder"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/leases/%d/holder", itemID), nil, &out); err != nil {
		return "", err
	}
	return out.Holder, nil
}

// Item is the registry view of a minted item.
type Item struct {
	ItemID uint64 `json:"itemId"`
	Owner  string `json:"owner"`
	URI    string `json:"uri"`
}

// GetItem fetches ownership and metadata for the item.
func (c *Client) GetItem(ctx context.Context, itemID uint64) (*Item, error) {
	item := &Item{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/items/%d", itemID), nil, item); err != nil {
		return nil, err
	}
	return item, nil
}

// RoyaltyInfo reports the first resale receiver and its share for a
// hypothetical sale price.
func (c *Client) RoyaltyInfo(ctx context.Context, itemID uint64, salePrice string) (receiver, amount string, err error) {
	var out struct {
		Receiver string `json:"receiver"`
		Amount   string `json:"amount"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/items/%d/royalty?salePrice=%s", itemID, salePrice), nil, &out); err != nil {
		return "", "", err
	}
	return out.Receiver, out.Amount, nil
}

// Balance returns the stablecoin balance of the account.
func (c *Client) Balance(ctx context.Context, address string) (string, error) {
	var out struct {
		Balance string `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+address+"/balance", nil, &out); err != nil {
		return "", err
	}
	return out.Balance, nil
}

// Approve grants the module vault an allowance over the owner's funds.
func (c *Client) Approve(ctx context.Context, owner, amount string) error {
	return c.do(ctx, http.MethodPost, "/v1/token/approve", map[string]interface{}{
		"owner":  owner,
		"amount": amount,
	}, nil)
}
