package mesomb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

const (
	collectEndpoint      = "/payment/collect/v1/"
	transactionsEndpoint = "/payment/transactions/"

	// USSD confirmation on the payer's handset is slow; MeSomb holds the
	// collect call open until the payer responds or the prompt expires.
	collectTimeout = 60 * time.Second
)

// ErrUnreachable covers transport-level failures (timeout, connection
// refused). No provider detail exists for these, and the collect call must
// not be retried: a duplicate collect can double-charge the payer.
var ErrUnreachable = errors.New("payment gateway unreachable")

// GatewayError is a structured rejection from MeSomb. The raw payload is kept
// for debuggability and passed through to callers.
type GatewayError struct {
	StatusCode int
	Body       []byte
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mesomb rejected request: status %d: %s", e.StatusCode, e.Body)
}

// CollectResult is the gateway's acceptance of a collect request. Reference
// is the provider-side transaction id used for all later reconciliation.
type CollectResult struct {
	Reference string
	Raw       []byte
}

type collectRequest struct {
	Amount   int64  `json:"amount"`
	Service  string `json:"service"`
	Payer    string `json:"payer"`
	Nonce    string `json:"nonce"`
	TrxID    string `json:"trxID"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

// Client issues signed requests against the MeSomb collection API.
type Client struct {
	cfg        *Config
	httpClient *http.Client
}

func NewClient(cfg *Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: collectTimeout},
	}
}

// Collect asks MeSomb to prompt the payer for amount on the given mobile
// money channel, with trxID as the external reference. Exactly one attempt is
// made; on transport failure the outcome is unknown and the caller reports
// initiation failure upward instead of retrying.
func (c *Client) Collect(ctx context.Context, trxID string, amount int64, service, payer string) (*CollectResult, error) {
	nonce, err := Nonce()
	if err != nil {
		return nil, err
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	body, err := json.Marshal(collectRequest{
		Amount:   amount,
		Service:  service,
		Payer:    payer,
		Nonce:    nonce,
		TrxID:    trxID,
		Country:  "CM",
		Currency: "XAF",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collect request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+collectEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build collect request: %v", err)
	}
	c.setHeaders(req, http.MethodPost, collectEndpoint, timestamp, nonce, string(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Collect request failed for trxID %s: %v", trxID, err)
		return nil, ErrUnreachable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Failed to read collect response for trxID %s: %v", trxID, err)
		return nil, ErrUnreachable
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Collect rejected for trxID %s: status %d: %s", trxID, resp.StatusCode, raw)
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: raw}
	}

	var result struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode collect response: %v", err)
	}
	if result.Reference == "" {
		return nil, fmt.Errorf("collect response missing reference")
	}

	return &CollectResult{Reference: result.Reference, Raw: raw}, nil
}

// QueryStatus fetches the current state of a transaction by its provider
// reference. Returns SUCCESS, FAILED, or whatever pending value MeSomb
// reports.
func (c *Client) QueryStatus(ctx context.Context, reference string) (string, error) {
	nonce, err := Nonce()
	if err != nil {
		return "", err
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	endpoint := transactionsEndpoint + reference + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build status request: %v", err)
	}
	c.setHeaders(req, http.MethodGet, endpoint, timestamp, nonce, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Status query failed for reference %s: %v", reference, err)
		return "", ErrUnreachable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Failed to read status response for reference %s: %v", reference, err)
		return "", ErrUnreachable
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Status query rejected for reference %s: status %d: %s", reference, resp.StatusCode, raw)
		return "", &GatewayError{StatusCode: resp.StatusCode, Body: raw}
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to decode status response: %v", err)
	}

	return result.Status, nil
}

func (c *Client) setHeaders(req *http.Request, method, endpoint, timestamp, nonce, body string) {
	req.Header.Set("X-MeSomb-Application", c.cfg.ApplicationKey)
	req.Header.Set("X-MeSomb-Access", c.cfg.AccessKey)
	req.Header.Set("X-MeSomb-Timestamp", timestamp)
	req.Header.Set("X-MeSomb-Nonce", nonce)
	req.Header.Set("X-MeSomb-Signature", Sign(c.cfg.SecretKey, method, endpoint, timestamp, nonce, body))
}
