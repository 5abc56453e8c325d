package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"snackstore/internal/middleware"
	"snackstore/internal/models"
)

type addressRequest struct {
	Street    string `json:"street" binding:"required"`
	City      string `json:"city" binding:"required"`
	State     string `json:"state" binding:"required"`
	ZipCode   string `json:"zipCode" binding:"required"`
	IsDefault bool   `json:"isDefault"`
}

func (r addressRequest) toAddress() models.Address {
	return models.Address{
		Street:  strings.TrimSpace(r.Street),
		City:    strings.TrimSpace(r.City),
		State:   strings.TrimSpace(r.State),
		ZipCode: strings.TrimSpace(r.ZipCode),
	}
}

func CreateAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		address := req.toAddress()
		address.ID = uuid.NewString()
		user.Addresses = appendAddress(user.Addresses, address, req.IsDefault)

		if !persistAddresses(c, db, user) {
			return
		}

		log.Println("[ADDRESS] [INFO] address created:", address.ID)
		c.JSON(http.StatusCreated, gin.H{"address": user.Addresses[len(user.Addresses)-1]})
	}
}

func UpdateAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		addressID := strings.TrimSpace(c.Param("id"))
		if addressID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address id"})
			return
		}

		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if !replaceAddress(user.Addresses, addressID, req.toAddress(), req.IsDefault) {
			c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
			return
		}

		if !persistAddresses(c, db, user) {
			return
		}

		log.Println("[ADDRESS] [INFO] address updated:", addressID)
		c.JSON(http.StatusOK, gin.H{"address": user.Addresses[indexOfAddress(user.Addresses, addressID)]})
	}
}

func DeleteAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		addressID := strings.TrimSpace(c.Param("id"))
		remaining, found := removeAddress(user.Addresses, addressID)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
			return
		}
		user.Addresses = remaining

		if !persistAddresses(c, db, user) {
			return
		}

		log.Println("[ADDRESS] [INFO] address deleted:", addressID)
		c.JSON(http.StatusOK, gin.H{"message": "address deleted"})
	}
}

func SetDefaultAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		addressID := strings.TrimSpace(c.Param("id"))
		if !markDefaultAddress(user.Addresses, addressID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
			return
		}

		if !persistAddresses(c, db, user) {
			return
		}

		log.Println("[ADDRESS] [INFO] default address set:", addressID)
		c.JSON(http.StatusOK, gin.H{"address": user.Addresses[indexOfAddress(user.Addresses, addressID)]})
	}
}

// persistAddresses rewrites the embedded address list on the user document.
// Responds 500 itself and returns false on failure.
func persistAddresses(c *gin.Context, db *mongo.Database, user *models.User) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	user.UpdatedAt = time.Now()
	_, err := db.Collection("users").UpdateByID(ctx, user.ID, bson.M{
		"$set": bson.M{
			"addresses": user.Addresses,
			"updatedAt": user.UpdatedAt,
		},
	})
	if err != nil {
		log.Println("[ADDRESS] [ERROR] persist addresses failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return false
	}
	return true
}
