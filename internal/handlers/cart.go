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
	"go.mongodb.org/mongo-driver/mongo/options"

	"snackstore/internal/middleware"
	"snackstore/internal/models"
)

type cartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

func GetCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		cart, err := loadOrCreateCart(ctx, db, user.ID)
		if err != nil {
			log.Println("[CART] [ERROR] load cart failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		items, err := enrichCartItems(ctx, db, cart.Items)
		if err != nil {
			log.Println("[CART] [ERROR] enrich cart failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": cart.ID.Hex(), "items": items})
	}
}

// AddToCart upserts one line: an existing entry for the product gets its
// quantity replaced, not added to.
func AddToCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		mutateCartItem(c, db, false)
	}
}

// UpdateCartItem changes the quantity of an existing line; a quantity of
// zero or less removes it.
func UpdateCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		mutateCartItem(c, db, true)
	}
}

func mutateCartItem(c *gin.Context, db *mongo.Database, requireExisting bool) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if req.Quantity == 0 && !requireExisting {
		req.Quantity = 1
	}

	productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ProductID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid productId"})
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
		log.Println("[CART] [ERROR] product lookup failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	// live stock only; nothing is reserved until the order is placed
	if req.Quantity > 0 {
		if err := checkPurchasable(product, req.Quantity); err != nil {
			respondStockError(c, err)
			return
		}
	}

	cart, err := loadOrCreateCart(ctx, db, user.ID)
	if err != nil {
		log.Println("[CART] [ERROR] load cart failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	if requireExisting && cartItemIndex(cart.Items, productID) == -1 {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found in cart"})
		return
	}

	cart.Items = upsertCartItem(cart.Items, productID, req.Quantity)
	if !persistCartItems(c, db, cart) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": cart.ID.Hex(), "items": cart.Items})
}

func RemoveFromCart(db *mongo.Database) gin.HandlerFunc {
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

		cart, err := loadOrCreateCart(ctx, db, user.ID)
		if err != nil {
			log.Println("[CART] [ERROR] load cart failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		cart.Items, _ = removeCartItem(cart.Items, productID)
		if !persistCartItems(c, db, cart) {
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": cart.ID.Hex(), "items": cart.Items})
	}
}

func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		cart, err := loadOrCreateCart(ctx, db, user.ID)
		if err != nil {
			log.Println("[CART] [ERROR] load cart failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		cart.Items = []models.CartItem{}
		if !persistCartItems(c, db, cart) {
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
	}
}

// loadOrCreateCart fetches the user's cart, creating an empty one on first
// access. The unique userId index keeps concurrent first accesses down to a
// single document.
func loadOrCreateCart(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (models.Cart, error) {
	now := time.Now()
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var cart models.Cart
	err := db.Collection("carts").FindOneAndUpdate(ctx,
		bson.M{"userId": userID},
		bson.M{"$setOnInsert": bson.M{
			"userId":    userID,
			"items":     []models.CartItem{},
			"createdAt": now,
			"updatedAt": now,
		}},
		opts,
	).Decode(&cart)
	if err != nil {
		return models.Cart{}, err
	}
	return cart, nil
}

func persistCartItems(c *gin.Context, db *mongo.Database, cart models.Cart) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	_, err := db.Collection("carts").UpdateByID(ctx, cart.ID, bson.M{
		"$set": bson.M{
			"items":     cart.Items,
			"updatedAt": time.Now(),
		},
	})
	if err != nil {
		log.Println("[CART] [ERROR] persist cart failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return false
	}
	return true
}

// enrichCartItems joins each line with its live product document.
func enrichCartItems(ctx context.Context, db *mongo.Database, items []models.CartItem) ([]gin.H, error) {
	enriched := make([]gin.H, 0, len(items))
	if len(items) == 0 {
		return enriched, nil
	}

	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	cursor, err := db.Collection("products").Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	for _, item := range items {
		entry := gin.H{"productId": item.ProductID.Hex(), "quantity": item.Quantity}
		if product, ok := byID[item.ProductID]; ok {
			entry["product"] = product
		}
		enriched = append(enriched, entry)
	}
	return enriched, nil
}

func respondStockError(c *gin.Context, err error) {
	var unavailable productUnavailableError
	if errors.As(err, &unavailable) {
		c.JSON(http.StatusBadRequest, gin.H{"error": unavailable.Error(), "product": unavailable.Name})
		return
	}
	var stock insufficientStockError
	if errors.As(err, &stock) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     stock.Error(),
			"product":   stock.Name,
			"available": stock.Available,
			"requested": stock.Requested,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
