package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"snackstore/internal/middleware"
	"snackstore/internal/models"
)

var errAlreadyReviewed = errors.New("product already reviewed")

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// appendReview adds the user's review, enforcing one review per user.
func appendReview(reviews []models.Review, review models.Review) ([]models.Review, error) {
	for _, existing := range reviews {
		if existing.UserID == review.UserID {
			return reviews, errAlreadyReviewed
		}
	}
	return append(reviews, review), nil
}

// reviewAggregate recomputes the product's average rating and review count.
func reviewAggregate(reviews []models.Review) (float64, int) {
	if len(reviews) == 0 {
		return 0, 0
	}
	total := 0
	for _, review := range reviews {
		total += review.Rating
	}
	return float64(total) / float64(len(reviews)), len(reviews)
}

// AddProductReview records one review per user per product and refreshes
// the rating aggregate.
func AddProductReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}

		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		var product models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&product)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if err != nil {
			log.Println("[REVIEW] [ERROR] product lookup failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		review := models.Review{
			UserID:    user.ID,
			Rating:    req.Rating,
			Comment:   strings.TrimSpace(req.Comment),
			CreatedAt: time.Now(),
		}
		reviews, err := appendReview(product.Reviews, review)
		if errors.Is(err, errAlreadyReviewed) {
			c.JSON(http.StatusConflict, gin.H{"error": "product already reviewed"})
			return
		}
		rating, numReviews := reviewAggregate(reviews)

		// the filter re-checks the per-user uniqueness, so a concurrent
		// duplicate loses the race instead of slipping in
		res, err := db.Collection("products").UpdateOne(ctx,
			bson.M{
				"_id":            productID,
				"reviews.userId": bson.M{"$ne": user.ID},
			},
			bson.M{
				"$push": bson.M{"reviews": review},
				"$set": bson.M{
					"rating":     rating,
					"numReviews": numReviews,
					"updatedAt":  time.Now(),
				},
			},
		)
		if err != nil {
			log.Println("[REVIEW] [ERROR] add review failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "product already reviewed"})
			return
		}

		log.Println("[REVIEW] [INFO] review added:", productID.Hex(), "user:", user.ID.Hex())
		c.JSON(http.StatusCreated, gin.H{"review": review, "rating": rating, "numReviews": numReviews})
	}
}
