package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Ihimbru-K/sheydoc/internal/models"
)

// WebhookEventStore appends one row per authenticated webhook delivery.
type WebhookEventStore struct {
	db *mongo.Database
}

func NewWebhookEventStore(db *mongo.Database) *WebhookEventStore {
	return &WebhookEventStore{db: db}
}

// Record persists a delivery. A failure here is logged and surfaced, but the
// ledger transition it describes has already happened.
func (s *WebhookEventStore) Record(ctx context.Context, event *models.WebhookEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	event.ID = uuid.NewString()
	event.ReceivedAt = time.Now()

	if _, err := s.db.Collection("webhook_events").InsertOne(ctx, event); err != nil {
		log.Printf("Failed to record webhook event for trxID %s: %v", event.TrxID, err)
		return fmt.Errorf("failed to record webhook event: %v", err)
	}
	return nil
}
