package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/Ihimbru-K/sheydoc/internal/mesomb"
	"github.com/Ihimbru-K/sheydoc/internal/models"
)

var (
	ErrUnauthenticated  = errors.New("user must be logged in")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("unauthorized")
)

const (
	minAmount = 100
	maxAmount = 1_000_000
)

// Cameroonian mobile numbers: nine digits starting with 6.
var phonePattern = regexp.MustCompile(`^6[0-9]{8}$`)

var allowedServices = map[string]bool{"MTN": true, "ORANGE": true}

// AppointmentStore is the persisted ledger of appointments and their payment
// attempts.
type AppointmentStore interface {
	Create(ctx context.Context, appt *models.Appointment) (string, error)
	Get(ctx context.Context, id string) (*models.Appointment, error)
	ListByUser(ctx context.Context, userID string, paymentStatus *models.PaymentStatus) ([]models.Appointment, error)
	MarkProcessing(ctx context.Context, id, reference string, raw []byte) error
	MarkInitiationFailure(ctx context.Context, id, reason string) error
	CloseIfProcessing(ctx context.Context, id string, paymentStatus models.PaymentStatus, status models.Status, confirmedAt *time.Time, viaWebhook bool) (bool, error)
}

// UserStore resolves doctors for the booking-fee check.
type UserStore interface {
	GetDoctor(ctx context.Context, doctorID string) (*models.User, error)
}

// WebhookEventStore keeps the webhook delivery audit trail.
type WebhookEventStore interface {
	Record(ctx context.Context, event *models.WebhookEvent) error
}

// Gateway is the outbound MeSomb surface.
type Gateway interface {
	Collect(ctx context.Context, trxID string, amount int64, service, payer string) (*mesomb.CollectResult, error)
	QueryStatus(ctx context.Context, reference string) (string, error)
}

type PaymentService struct {
	appointments AppointmentStore
	users        UserStore
	events       WebhookEventStore
	gateway      Gateway
}

func NewPaymentService(appointments AppointmentStore, users UserStore, events WebhookEventStore, gateway Gateway) *PaymentService {
	return &PaymentService{
		appointments: appointments,
		users:        users,
		events:       events,
		gateway:      gateway,
	}
}

// InitializeRequest is one booking-and-pay request from the mobile client.
type InitializeRequest struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Amount   int64  `json:"amount"`
	Service  string `json:"service"`
	Payer    string `json:"payer"`
}

type InitializeResult struct {
	Success       bool   `json:"success"`
	AppointmentID string `json:"appointmentId"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

type StatusResult struct {
	Status        string `json:"status"`
	AppointmentID string `json:"appointmentId,omitempty"`
	Message       string `json:"message,omitempty"`
}

// InitializePayment validates the request, creates the appointment with an
// initiated payment attempt, and only then asks MeSomb to collect. The
// appointment is written first so a failed collect still leaves an auditable
// record; it is annotated, never deleted.
func (s *PaymentService) InitializePayment(ctx context.Context, requester string, req InitializeRequest) (*InitializeResult, error) {
	if requester == "" {
		return nil, ErrUnauthenticated
	}
	if req.DoctorID == "" || req.Date == "" || req.Time == "" || req.Amount == 0 || req.Service == "" || req.Payer == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrInvalidArgument)
	}
	if !allowedServices[req.Service] {
		return nil, fmt.Errorf("%w: invalid service type", ErrInvalidArgument)
	}
	if !phonePattern.MatchString(req.Payer) {
		return nil, fmt.Errorf("%w: invalid phone number format", ErrInvalidArgument)
	}
	if req.Amount < minAmount || req.Amount > maxAmount {
		return nil, fmt.Errorf("%w: amount must be between 100 and 1,000,000 FCFA", ErrInvalidArgument)
	}

	doctor, err := s.users.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if req.Amount != doctor.BaseFee {
		return nil, fmt.Errorf("%w: amount does not match doctor fee", ErrInvalidArgument)
	}

	appt := &models.Appointment{
		UserID:        requester,
		DoctorID:      req.DoctorID,
		Date:          req.Date,
		Time:          req.Time,
		Amount:        req.Amount,
		Service:       req.Service,
		Payer:         req.Payer,
		Status:        models.StatusPendingPayment,
		PaymentStatus: models.PaymentInitiated,
	}
	apptID, err := s.appointments.Create(ctx, appt)
	if err != nil {
		return nil, err
	}

	// The appointment id is the external reference MeSomb echoes back on
	// the webhook. A single attempt only: the outcome of a lost collect is
	// unknown and re-sending could double-charge the payer.
	result, err := s.gateway.Collect(ctx, apptID, req.Amount, req.Service, req.Payer)
	if err != nil {
		if markErr := s.appointments.MarkInitiationFailure(ctx, apptID, err.Error()); markErr != nil {
			log.Printf("Failed to annotate collect failure on appointment %s: %v", apptID, markErr)
		}
		return nil, err
	}

	if err := appt.BeginProcessing(result.Reference, result.Raw); err != nil {
		log.Printf("Collect accepted but not applied: appointment=%s reference=%s: %v", apptID, result.Reference, err)
		return nil, err
	}
	if err := s.appointments.MarkProcessing(ctx, apptID, result.Reference, result.Raw); err != nil {
		// The collect went through; keep the reference recoverable so the
		// intent can be reconciled out-of-band.
		log.Printf("Collect accepted but not recorded: appointment=%s reference=%s: %v", apptID, result.Reference, err)
		return nil, err
	}

	log.Printf("Payment initiated: appointment=%s reference=%s", apptID, result.Reference)
	return &InitializeResult{
		Success:       true,
		AppointmentID: apptID,
		TransactionID: result.Reference,
		Message:       "Payment initiated. Please check your phone to confirm.",
	}, nil
}

// CheckPaymentStatus is the poll half of reconciliation. A terminal
// appointment answers without a gateway call; otherwise MeSomb is queried and
// the resulting report applied.
func (s *PaymentService) CheckPaymentStatus(ctx context.Context, requester, appointmentID string) (*StatusResult, error) {
	if requester == "" {
		return nil, ErrUnauthenticated
	}

	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.UserID != requester {
		return nil, ErrPermissionDenied
	}

	if appt.PaymentStatus.Terminal() {
		return statusResult(appt), nil
	}
	if appt.PaymentStatus != models.PaymentProcessing || appt.MesombTransactionID == "" {
		// Nothing to query: the collect was never accepted.
		return statusResult(appt), nil
	}

	report, err := s.gateway.QueryStatus(ctx, appt.MesombTransactionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.closeFromReport(ctx, appt, report, false); err != nil {
		return nil, err
	}
	return statusResult(appt), nil
}

// HandleWebhook is the push half of reconciliation. The caller has already
// authenticated the payload; trxID is the appointment id MeSomb echoes back.
// Duplicate and late deliveries are accepted as no-ops so the provider is not
// induced to retry an already-handled event.
func (s *PaymentService) HandleWebhook(ctx context.Context, status, trxID string) error {
	appt, err := s.appointments.Get(ctx, trxID)
	if err != nil {
		return err
	}

	applied, err := s.closeFromReport(ctx, appt, status, true)
	if err != nil {
		return err
	}

	event := &models.WebhookEvent{TrxID: trxID, Status: status, Applied: applied}
	if err := s.events.Record(ctx, event); err != nil {
		return err
	}

	log.Printf("Webhook processed: trxID=%s status=%s applied=%t", trxID, status, applied)
	return nil
}

// ListAppointments returns the requester's own appointments newest-first.
func (s *PaymentService) ListAppointments(ctx context.Context, requester string, paymentStatus string) ([]models.Appointment, error) {
	if requester == "" {
		return nil, ErrUnauthenticated
	}

	var filter *models.PaymentStatus
	if paymentStatus != "" {
		ps := models.PaymentStatus(paymentStatus)
		switch ps {
		case models.PaymentInitiated, models.PaymentProcessing, models.PaymentCompleted, models.PaymentFailed:
			filter = &ps
		default:
			return nil, fmt.Errorf("%w: invalid payment_status filter", ErrInvalidArgument)
		}
	}

	return s.appointments.ListByUser(ctx, requester, filter)
}

// GetAppointment returns one appointment, enforcing ownership.
func (s *PaymentService) GetAppointment(ctx context.Context, requester, appointmentID string) (*models.Appointment, error) {
	if requester == "" {
		return nil, ErrUnauthenticated
	}
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.UserID != requester {
		return nil, ErrPermissionDenied
	}
	return appt, nil
}

// closeFromReport is the single funnel both reconciliation paths share. It
// mutates appt in memory via the state machine and persists the transition
// with a conditional write, so two concurrent closers stay commutative: the
// loser sees applied=false and treats the entry as already closed.
func (s *PaymentService) closeFromReport(ctx context.Context, appt *models.Appointment, report string, viaWebhook bool) (bool, error) {
	changed, err := appt.ApplyGatewayReport(report, time.Now())
	if err != nil {
		if viaWebhook && errors.Is(err, models.ErrNotProcessing) {
			// Webhook arrived before the collect acceptance was recorded.
			// Leave the entry alone; the poll path can still close it.
			log.Printf("Webhook for appointment %s ignored: no accepted collect yet", appt.ID)
			return false, nil
		}
		return false, err
	}
	if !changed {
		return false, nil
	}

	applied, err := s.appointments.CloseIfProcessing(ctx, appt.ID, appt.PaymentStatus, appt.Status, appt.ConfirmedAt, viaWebhook)
	if err != nil {
		return false, err
	}
	if !applied {
		// A concurrent reconciler closed it first. Reload so the caller
		// reports the state that actually won.
		fresh, err := s.appointments.Get(ctx, appt.ID)
		if err != nil {
			return false, err
		}
		*appt = *fresh
		return false, nil
	}
	return true, nil
}

func statusResult(appt *models.Appointment) *StatusResult {
	switch appt.PaymentStatus {
	case models.PaymentCompleted:
		return &StatusResult{Status: "completed", AppointmentID: appt.ID}
	case models.PaymentFailed:
		return &StatusResult{Status: "failed", Message: "Payment failed"}
	case models.PaymentProcessing:
		return &StatusResult{Status: "processing", Message: "Payment is still processing"}
	default:
		return &StatusResult{Status: string(appt.PaymentStatus), AppointmentID: appt.ID}
	}
}
