package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User model. Doctors and patients share the collection; doctors carry the
// consultation fee a booking must pay.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName  string             `bson:"fullname" json:"fullname"`
	Email     string             `bson:"email" json:"email"`
	Role      string             `bson:"role" json:"role"`
	BaseFee   int64              `bson:"base_fee,omitempty" json:"base_fee,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
