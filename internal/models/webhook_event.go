package models

import "time"

// WebhookEvent is one authenticated webhook delivery, recorded before the
// receiver responds. Duplicate deliveries show up as rows with Applied=false.
type WebhookEvent struct {
	ID         string    `bson:"_id" json:"id"`
	TrxID      string    `bson:"trx_id" json:"trx_id"`
	Status     string    `bson:"status" json:"status"`
	Applied    bool      `bson:"applied" json:"applied"`
	ReceivedAt time.Time `bson:"received_at" json:"received_at"`
}
