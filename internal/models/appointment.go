package models

import (
	"errors"
	"time"
)

// Status is the business-workflow state of an appointment.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusCancelled      Status = "cancelled"
)

// PaymentStatus is the settlement state of the payment attempt. It is tracked
// alongside Status but lives on its own axis: an appointment can be cancelled
// for non-payment reasons while its payment attempt is still pending.
type PaymentStatus string

const (
	PaymentInitiated  PaymentStatus = "initiated"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

// Terminal reports whether no further payment transition is permitted.
func (p PaymentStatus) Terminal() bool {
	return p == PaymentCompleted || p == PaymentFailed
}

var (
	ErrAlreadyProcessing = errors.New("collect already accepted for this appointment")
	ErrNotProcessing     = errors.New("appointment has no accepted collect to reconcile")
)

// Appointment is one booking and its payment attempt, stored as a single
// document. It is never deleted; it is the permanent audit trail of the
// attempt.
type Appointment struct {
	ID                  string        `bson:"_id,omitempty" json:"id"`
	UserID              string        `bson:"user_id" json:"user_id"`
	DoctorID            string        `bson:"doctor_id" json:"doctor_id"`
	Date                string        `bson:"date" json:"date"`
	Time                string        `bson:"time" json:"time"`
	Amount              int64         `bson:"amount" json:"amount"`
	Service             string        `bson:"service" json:"service"`
	Payer               string        `bson:"payer" json:"payer"`
	Status              Status        `bson:"status" json:"status"`
	PaymentStatus       PaymentStatus `bson:"payment_status" json:"payment_status"`
	MesombTransactionID string        `bson:"mesomb_transaction_id,omitempty" json:"mesomb_transaction_id,omitempty"`
	MesombResponse      []byte        `bson:"mesomb_response,omitempty" json:"-"`
	FailureReason       string        `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	WebhookReceived     bool          `bson:"webhook_received" json:"webhook_received"`
	CreatedAt           time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `bson:"updated_at" json:"updated_at"`
	ConfirmedAt         *time.Time    `bson:"confirmed_at,omitempty" json:"confirmed_at,omitempty"`
}

// BeginProcessing records the gateway's acceptance of the collect request.
// Allowed exactly once, from initiated; the provider reference is write-once.
func (a *Appointment) BeginProcessing(reference string, raw []byte) error {
	if a.PaymentStatus != PaymentInitiated || a.MesombTransactionID != "" {
		return ErrAlreadyProcessing
	}
	a.MesombTransactionID = reference
	a.MesombResponse = raw
	a.PaymentStatus = PaymentProcessing
	return nil
}

// ApplyGatewayReport applies a reconciliation report (poll or webhook) to the
// payment state machine. A terminal entry is closed: re-applying any report
// is a no-op that returns changed=false with no error, so concurrent and
// duplicate reconcilers converge on the same document. Reports other than
// SUCCESS/FAILED leave the entry processing.
func (a *Appointment) ApplyGatewayReport(report string, now time.Time) (changed bool, err error) {
	if a.PaymentStatus.Terminal() {
		return false, nil
	}
	if a.PaymentStatus != PaymentProcessing || a.MesombTransactionID == "" {
		return false, ErrNotProcessing
	}
	switch report {
	case "SUCCESS":
		a.PaymentStatus = PaymentCompleted
		a.Status = StatusConfirmed
		a.ConfirmedAt = &now
	case "FAILED":
		a.PaymentStatus = PaymentFailed
		a.Status = StatusCancelled
	default:
		return false, nil
	}
	a.UpdatedAt = now
	return true, nil
}
