package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"snackstore/internal/middleware"
	"snackstore/internal/models"
)

type favoriteRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

// GetFavorites returns the full product documents for the user's favorite
// set, creating the set lazily.
func GetFavorites(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		favorite, err := loadOrCreateFavorites(ctx, db, user.ID)
		if err != nil {
			log.Println("[FAVORITE] [ERROR] load favorites failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		products := make([]models.Product, 0, len(favorite.Products))
		if len(favorite.Products) > 0 {
			cursor, err := db.Collection("products").Find(ctx, bson.M{
				"_id":       bson.M{"$in": favorite.Products},
				"isDeleted": bson.M{"$ne": true},
			})
			if err != nil {
				log.Println("[FAVORITE] [ERROR] list favorite products failed:", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
				return
			}
			defer cursor.Close(ctx)

			if err := cursor.All(ctx, &products); err != nil {
				log.Println("[FAVORITE] [ERROR] decode favorite products failed:", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"products": products})
	}
}

func AddFavorite(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req favoriteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ProductID))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid productId"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		if err := db.Collection("products").FindOne(ctx, bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
		}).Err(); err != nil {
			if err == mongo.ErrNoDocuments {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			log.Println("[FAVORITE] [ERROR] product lookup failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		// $addToSet keeps the favorites a set: re-adding is a no-op
		_, err = db.Collection("favorites").UpdateOne(ctx,
			bson.M{"userId": user.ID},
			bson.M{
				"$addToSet":    bson.M{"products": productID},
				"$set":         bson.M{"updatedAt": time.Now()},
				"$setOnInsert": bson.M{"userId": user.ID, "createdAt": time.Now()},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			log.Println("[FAVORITE] [ERROR] add favorite failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "favorite added"})
	}
}

func RemoveFavorite(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("productId")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid productId"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		_, err = db.Collection("favorites").UpdateOne(ctx,
			bson.M{"userId": user.ID},
			bson.M{
				"$pull": bson.M{"products": productID},
				"$set":  bson.M{"updatedAt": time.Now()},
			},
		)
		if err != nil {
			log.Println("[FAVORITE] [ERROR] remove favorite failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "favorite removed"})
	}
}

// CheckFavorite reports membership without mutating anything.
func CheckFavorite(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("productId")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid productId"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		var favorite models.Favorite
		err = db.Collection("favorites").FindOne(ctx, bson.M{"userId": user.ID}).Decode(&favorite)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusOK, gin.H{"isFavorite": false})
			return
		}
		if err != nil {
			log.Println("[FAVORITE] [ERROR] favorites lookup failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"isFavorite": favorite.Contains(productID)})
	}
}

func loadOrCreateFavorites(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (models.Favorite, error) {
	now := time.Now()
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var favorite models.Favorite
	err := db.Collection("favorites").FindOneAndUpdate(ctx,
		bson.M{"userId": userID},
		bson.M{"$setOnInsert": bson.M{
			"userId":    userID,
			"products":  []primitive.ObjectID{},
			"createdAt": now,
			"updatedAt": now,
		}},
		opts,
	).Decode(&favorite)
	if err != nil {
		return models.Favorite{}, err
	}
	return favorite, nil
}
