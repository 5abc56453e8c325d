package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"snackstore/internal/models"
)

func TestAppendReviewRejectsSecondReview(t *testing.T) {
	userID := primitive.NewObjectID()

	reviews, err := appendReview(nil, models.Review{UserID: userID, Rating: 4})
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	_, err = appendReview(reviews, models.Review{UserID: userID, Rating: 1})
	assert.ErrorIs(t, err, errAlreadyReviewed)

	reviews, err = appendReview(reviews, models.Review{UserID: primitive.NewObjectID(), Rating: 5})
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestReviewAggregate(t *testing.T) {
	rating, count := reviewAggregate(nil)
	assert.Equal(t, 0.0, rating)
	assert.Equal(t, 0, count)

	reviews := []models.Review{
		{UserID: primitive.NewObjectID(), Rating: 5},
		{UserID: primitive.NewObjectID(), Rating: 4},
		{UserID: primitive.NewObjectID(), Rating: 2},
	}
	rating, count = reviewAggregate(reviews)
	assert.InDelta(t, 11.0/3.0, rating, 1e-9)
	assert.Equal(t, 3, count)
}
