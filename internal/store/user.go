package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Ihimbru-K/sheydoc/internal/models"
)

// UserStore reads the users collection. Registration and login live in the
// auth provider; this service only ever needs the doctor lookup.
type UserStore struct {
	db *mongo.Database
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{db: db}
}

// GetDoctor fetches a doctor by id for the fee check at booking time.
func (s *UserStore) GetDoctor(ctx context.Context, doctorID string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(doctorID)
	if err != nil {
		return nil, ErrNotFound
	}

	var user models.User
	if err := s.db.Collection("users").FindOne(ctx, bson.M{"_id": objID}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		log.Printf("Failed to fetch doctor %s: %v", doctorID, err)
		return nil, fmt.Errorf("failed to fetch doctor: %v", err)
	}
	return &user, nil
}
