package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/Ihimbru-K/sheydoc/internal/mesomb"
	"github.com/Ihimbru-K/sheydoc/internal/services"
	"github.com/Ihimbru-K/sheydoc/internal/store"
)

// WebhookHandler receives MeSomb's asynchronous payment notifications. The
// signature is recomputed over the exact received bytes, so the body must be
// read raw before any JSON decoding.
type WebhookHandler struct {
	service *services.PaymentService
	secret  string
}

func NewWebhookHandler(service *services.PaymentService, secret string) *WebhookHandler {
	return &WebhookHandler{service: service, secret: secret}
}

func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Failed to read webhook body: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	signature := r.Header.Get("X-MeSomb-Signature")
	if !mesomb.VerifySignature(h.secret, payload, signature) {
		log.Printf("Webhook rejected: signature mismatch")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var body struct {
		Status string `json:"status"`
		TrxID  string `json:"trxID"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		// Authentic but unparseable: treated as a processing failure so the
		// response stays within the 200/401/404/405/500 contract.
		log.Printf("Failed to decode webhook payload: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if err := h.service.HandleWebhook(r.Context(), body.Status, body.TrxID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Appointment not found", http.StatusNotFound)
			return
		}
		// A genuine processing failure: answer non-200 so MeSomb retries.
		log.Printf("Webhook processing failed for trxID %s: %v", body.TrxID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
