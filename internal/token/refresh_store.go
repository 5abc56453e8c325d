package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"snackstore/internal/models"
)

// RefreshStore records issued refresh tokens so logout can revoke them
// server-side. Tokens are stored as sha256 hashes only.
type RefreshStore struct {
	coll *mongo.Collection
}

func NewRefreshStore(db *mongo.Database) *RefreshStore {
	return &RefreshStore{coll: db.Collection("refresh_tokens")}
}

// HashToken returns the hex sha256 of a raw token string.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Save records a freshly issued refresh token.
func (s *RefreshStore) Save(ctx context.Context, userID primitive.ObjectID, raw string, expiresAt time.Time) (primitive.ObjectID, error) {
	record := models.RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(raw),
		ExpiresAt: expiresAt,
		Revoked:   false,
		CreatedAt: time.Now(),
	}

	res, err := s.coll.InsertOne(ctx, record)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

// IsActive reports whether the raw token is known, unrevoked and unexpired.
func (s *RefreshStore) IsActive(ctx context.Context, raw string) (bool, error) {
	var record models.RefreshToken
	err := s.coll.FindOne(ctx, bson.M{
		"tokenHash": HashToken(raw),
		"revoked":   false,
	}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return time.Now().Before(record.ExpiresAt), nil
}

// Revoke marks the raw token revoked. Returns false if no active record
// matched.
func (s *RefreshStore) Revoke(ctx context.Context, raw string) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, bson.M{
		"tokenHash": HashToken(raw),
		"revoked":   false,
	}, bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// RevokeAndReplace revokes the old token and links it to its successor, so
// rotation leaves an audit trail.
func (s *RefreshStore) RevokeAndReplace(ctx context.Context, oldRaw string, replacement primitive.ObjectID) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{
		"tokenHash": HashToken(oldRaw),
	}, bson.M{"$set": bson.M{
		"revoked":         true,
		"replacedByToken": replacement,
	}})
	return err
}
