package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Ihimbru-K/sheydoc/internal/mesomb"
	"github.com/Ihimbru-K/sheydoc/internal/services"
	"github.com/Ihimbru-K/sheydoc/internal/store"
)

type PaymentHandler struct {
	service   *services.PaymentService
	jwtSecret []byte
}

func NewPaymentHandler(service *services.PaymentService, jwtSecret string) *PaymentHandler {
	return &PaymentHandler{service: service, jwtSecret: []byte(jwtSecret)}
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Provider-structured rejections are passed through for debuggability;
// everything else internal is logged and answered generically.
func writeServiceError(w http.ResponseWriter, err error) {
	var gwErr *mesomb.GatewayError
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		http.Error(w, `{"error":"User must be logged in"}`, http.StatusUnauthorized)
	case errors.Is(err, services.ErrInvalidArgument):
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, `{"error":"Not found"}`, http.StatusNotFound)
	case errors.Is(err, services.ErrPermissionDenied):
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusForbidden)
	case errors.As(err, &gwErr):
		http.Error(w, fmt.Sprintf(`{"error":"Payment failed","detail":%q}`, gwErr.Body), http.StatusBadGateway)
	case errors.Is(err, mesomb.ErrUnreachable):
		http.Error(w, `{"error":"Payment gateway unavailable"}`, http.StatusBadGateway)
	default:
		log.Printf("Internal error: %v", err)
		http.Error(w, `{"error":"Internal error"}`, http.StatusInternalServerError)
	}
}

func (h *PaymentHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	requester, err := authenticate(r, h.jwtSecret)
	if err != nil {
		http.Error(w, `{"error":"User must be logged in"}`, http.StatusUnauthorized)
		return
	}

	var req services.InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	result, err := h.service.InitializePayment(r.Context(), requester, req)
	if err != nil {
		log.Printf("Failed to initialize payment: %v", err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("Failed to encode payment result: %v", err)
	}
}

func (h *PaymentHandler) CheckPaymentStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	requester, err := authenticate(r, h.jwtSecret)
	if err != nil {
		http.Error(w, `{"error":"User must be logged in"}`, http.StatusUnauthorized)
		return
	}

	appointmentID := mux.Vars(r)["appointmentID"]
	if appointmentID == "" {
		http.Error(w, `{"error":"Appointment ID is required"}`, http.StatusBadRequest)
		return
	}

	result, err := h.service.CheckPaymentStatus(r.Context(), requester, appointmentID)
	if err != nil {
		log.Printf("Failed to check payment status for %s: %v", appointmentID, err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("Failed to encode status result: %v", err)
	}
}

func (h *PaymentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	requester, err := authenticate(r, h.jwtSecret)
	if err != nil {
		http.Error(w, `{"error":"User must be logged in"}`, http.StatusUnauthorized)
		return
	}

	appts, err := h.service.ListAppointments(r.Context(), requester, r.URL.Query().Get("payment_status"))
	if err != nil {
		log.Printf("Failed to list appointments for %s: %v", requester, err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(appts); err != nil {
		log.Printf("Failed to encode appointments: %v", err)
	}
}

func (h *PaymentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	requester, err := authenticate(r, h.jwtSecret)
	if err != nil {
		http.Error(w, `{"error":"User must be logged in"}`, http.StatusUnauthorized)
		return
	}

	appointmentID := mux.Vars(r)["appointmentID"]
	if appointmentID == "" {
		http.Error(w, `{"error":"Appointment ID is required"}`, http.StatusBadRequest)
		return
	}

	appt, err := h.service.GetAppointment(r.Context(), requester, appointmentID)
	if err != nil {
		log.Printf("Failed to fetch appointment %s: %v", appointmentID, err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(appt); err != nil {
		log.Printf("Failed to encode appointment: %v", err)
	}
}
