package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ihimbru-K/sheydoc/internal/models"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

// AppointmentStore persists appointments in the "appointments" collection.
// The appointment id doubles as the trxID sent to MeSomb, so webhook lookups
// by external reference are plain _id lookups.
type AppointmentStore struct {
	db *mongo.Database
}

func NewAppointmentStore(db *mongo.Database) *AppointmentStore {
	return &AppointmentStore{db: db}
}

func (s *AppointmentStore) collection() *mongo.Collection {
	return s.db.Collection("appointments")
}

// EnsureIndexes creates the indexes the read paths depend on.
func (s *AppointmentStore) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.M{"mesomb_transaction_id": 1}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.M{"payment_status": 1}},
	}
	_, err := s.collection().Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		log.Printf("Failed to create appointment indexes: %v", err)
		return fmt.Errorf("failed to create indexes: %v", err)
	}
	return nil
}

// Create inserts a new appointment and returns its generated id.
func (s *AppointmentStore) Create(ctx context.Context, appt *models.Appointment) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	appt.ID = primitive.NewObjectID().Hex()
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt

	if _, err := s.collection().InsertOne(ctx, appt); err != nil {
		log.Printf("Failed to save appointment: %v", err)
		return "", fmt.Errorf("failed to save appointment: %v", err)
	}
	return appt.ID, nil
}

// Get fetches one appointment by id.
func (s *AppointmentStore) Get(ctx context.Context, id string) (*models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var appt models.Appointment
	if err := s.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&appt); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		log.Printf("Failed to fetch appointment %s: %v", id, err)
		return nil, fmt.Errorf("failed to fetch appointment: %v", err)
	}
	return &appt, nil
}

// ListByUser returns a user's appointments newest-first, optionally filtered
// by payment status.
func (s *AppointmentStore) ListByUser(ctx context.Context, userID string, paymentStatus *models.PaymentStatus) ([]models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{"user_id": userID}
	if paymentStatus != nil {
		query["payment_status"] = *paymentStatus
	}

	cur, err := s.collection().Find(ctx, query, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		log.Printf("Failed to fetch appointments for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to fetch appointments: %v", err)
	}
	defer cur.Close(ctx)

	var appts []models.Appointment
	if err := cur.All(ctx, &appts); err != nil {
		log.Printf("Failed to decode appointments: %v", err)
		return nil, fmt.Errorf("failed to decode appointments: %v", err)
	}
	return appts, nil
}

// MarkProcessing records the accepted collect on an initiated appointment.
// The filter guards the write-once provider reference: a second acceptance
// for the same document matches nothing.
func (s *AppointmentStore) MarkProcessing(ctx context.Context, id, reference string, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"_id":                   id,
		"payment_status":        models.PaymentInitiated,
		"mesomb_transaction_id": bson.M{"$in": bson.A{nil, ""}},
	}
	update := bson.M{"$set": bson.M{
		"payment_status":        models.PaymentProcessing,
		"mesomb_transaction_id": reference,
		"mesomb_response":       raw,
		"updated_at":            time.Now(),
	}}

	res, err := s.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		log.Printf("Failed to mark appointment %s processing: %v", id, err)
		return fmt.Errorf("failed to update appointment: %v", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrAlreadyProcessing
	}
	return nil
}

// MarkInitiationFailure annotates an initiated appointment whose collect call
// failed. The document stays in its initiated state as the audit trail of the
// attempt; it is never deleted.
func (s *AppointmentStore) MarkInitiationFailure(ctx context.Context, id, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"failure_reason": reason,
		"updated_at":     time.Now(),
	}}
	if _, err := s.collection().UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		log.Printf("Failed to record initiation failure for appointment %s: %v", id, err)
		return fmt.Errorf("failed to update appointment: %v", err)
	}
	return nil
}

// CloseIfProcessing applies a terminal transition with a single conditional
// update keyed on the processing state. Concurrent poll and webhook writers
// race on the same filter; exactly one write matches and the loser observes
// applied=false, which the caller treats as an idempotent no-op.
func (s *AppointmentStore) CloseIfProcessing(ctx context.Context, id string, paymentStatus models.PaymentStatus, status models.Status, confirmedAt *time.Time, viaWebhook bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{
		"payment_status": paymentStatus,
		"status":         status,
		"updated_at":     time.Now(),
	}
	if confirmedAt != nil {
		set["confirmed_at"] = *confirmedAt
	}
	if viaWebhook {
		set["webhook_received"] = true
	}

	filter := bson.M{"_id": id, "payment_status": models.PaymentProcessing}
	res, err := s.collection().UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		log.Printf("Failed to close appointment %s: %v", id, err)
		return false, fmt.Errorf("failed to update appointment: %v", err)
	}
	return res.MatchedCount > 0, nil
}
