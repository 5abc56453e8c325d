package handlers

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"snackstore/internal/models"
)

// userStore is the slice of user storage the auth handlers need. Lookups
// return (nil, nil) when no user matches.
type userStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Insert(ctx context.Context, user models.User) (primitive.ObjectID, error)
}

// refreshStore is the refresh-token bookkeeping the auth handlers need;
// *token.RefreshStore satisfies it.
type refreshStore interface {
	Save(ctx context.Context, userID primitive.ObjectID, raw string, expiresAt time.Time) (primitive.ObjectID, error)
	IsActive(ctx context.Context, raw string) (bool, error)
	Revoke(ctx context.Context, raw string) (bool, error)
	RevokeAndReplace(ctx context.Context, oldRaw string, replacement primitive.ObjectID) error
}

type mongoUserStore struct {
	db *mongo.Database
}

func (s mongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s mongoUserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s mongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.db.Collection("users").FindOne(ctx, filter).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s mongoUserStore) Insert(ctx context.Context, user models.User) (primitive.ObjectID, error) {
	res, err := s.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}
