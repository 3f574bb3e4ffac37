package mesomb

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&Config{
		ApplicationKey: "app-key",
		AccessKey:      "access-key",
		SecretKey:      "secret-key",
		BaseURL:        baseURL,
	})
}

func TestCollect(t *testing.T) {
	var gotBody []byte
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/payment/collect/v1/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]string{"reference": "mesomb-ref-1", "status": "PENDING"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result, err := client.Collect(context.Background(), "appt-1", 1500, "MTN", "670000000")
	if err != nil {
		t.Fatalf("collect: unexpected error: %v", err)
	}
	if result.Reference != "mesomb-ref-1" {
		t.Fatalf("expected reference mesomb-ref-1, got %q", result.Reference)
	}
	if len(result.Raw) == 0 {
		t.Fatal("expected raw response snapshot")
	}

	var body struct {
		Amount   int64  `json:"amount"`
		Service  string `json:"service"`
		Payer    string `json:"payer"`
		Nonce    string `json:"nonce"`
		TrxID    string `json:"trxID"`
		Country  string `json:"country"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if body.Amount != 1500 || body.Service != "MTN" || body.Payer != "670000000" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.TrxID != "appt-1" {
		t.Fatalf("expected trxID appt-1, got %q", body.TrxID)
	}
	if body.Country != "CM" || body.Currency != "XAF" {
		t.Fatalf("expected CM/XAF constants, got %s/%s", body.Country, body.Currency)
	}
	if body.Nonce == "" || body.Nonce != gotHeaders.Get("X-MeSomb-Nonce") {
		t.Fatalf("body nonce %q must match header nonce %q", body.Nonce, gotHeaders.Get("X-MeSomb-Nonce"))
	}

	if gotHeaders.Get("X-MeSomb-Application") != "app-key" {
		t.Fatalf("unexpected application header %q", gotHeaders.Get("X-MeSomb-Application"))
	}
	if gotHeaders.Get("X-MeSomb-Access") != "access-key" {
		t.Fatalf("unexpected access header %q", gotHeaders.Get("X-MeSomb-Access"))
	}

	// The receiver must be able to recompute the signature over the exact
	// bytes transmitted.
	expected := Sign("secret-key", "POST", "/payment/collect/v1/",
		gotHeaders.Get("X-MeSomb-Timestamp"), gotHeaders.Get("X-MeSomb-Nonce"), string(gotBody))
	if gotHeaders.Get("X-MeSomb-Signature") != expected {
		t.Fatalf("signature mismatch: header %q, recomputed %q", gotHeaders.Get("X-MeSomb-Signature"), expected)
	}
}

func TestCollect_GatewayRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"detail":"insufficient funds"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Collect(context.Background(), "appt-1", 1500, "MTN", "670000000")

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *GatewayError, got %v", err)
	}
	if gwErr.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d", gwErr.StatusCode)
	}
	if string(gwErr.Body) != `{"detail":"insufficient funds"}` {
		t.Fatalf("expected provider payload preserved, got %q", gwErr.Body)
	}
}

func TestCollect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	client := newTestClient(srv.URL)
	_, err := client.Collect(context.Background(), "appt-1", 1500, "MTN", "670000000")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestQueryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/payment/transactions/mesomb-ref-1/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Bodyless requests are signed over the empty string.
		expected := Sign("secret-key", "GET", "/payment/transactions/mesomb-ref-1/",
			r.Header.Get("X-MeSomb-Timestamp"), r.Header.Get("X-MeSomb-Nonce"), "")
		if r.Header.Get("X-MeSomb-Signature") != expected {
			t.Errorf("signature mismatch on status query")
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "SUCCESS"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	status, err := client.QueryStatus(context.Background(), "mesomb-ref-1")
	if err != nil {
		t.Fatalf("query status: unexpected error: %v", err)
	}
	if status != "SUCCESS" {
		t.Fatalf("expected SUCCESS, got %q", status)
	}
}

func TestQueryStatus_GatewayRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"transaction not found"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.QueryStatus(context.Background(), "missing-ref")

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *GatewayError, got %v", err)
	}
	if gwErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", gwErr.StatusCode)
	}
}
