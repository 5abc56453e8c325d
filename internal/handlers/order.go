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

	"snackstore/internal/config"
	"snackstore/internal/middleware"
	"snackstore/internal/models"
)

var errOrderNotPending = errors.New("order is no longer pending")

type shippingAddressRequest struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	ZipCode string `json:"zipCode" binding:"required"`
}

type createOrderRequest struct {
	ShippingAddress shippingAddressRequest `json:"shippingAddress" binding:"required"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"required"`
}

type updateOrderStatusRequest struct {
	OrderStatus string `json:"orderStatus" binding:"required"`
}

// CreateOrder consumes the caller's cart: every line is re-validated
// against live product state, unit prices are snapshot, stock is
// decremented atomically, the order is persisted and the cart emptied —
// all inside one transaction, so a mid-sequence failure never leaves stock
// decremented without a persisted order.
func CreateOrder(db *mongo.Database, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if !models.ValidPaymentMethod(req.PaymentMethod) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment method"})
			return
		}

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		cart, err := loadOrCreateCart(ctx, db, user.ID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if len(cart.Items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
			return
		}

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		var order models.Order
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			items, total, err := buildOrderItems(sessCtx, mongoStockStore{db: db}, cart.Items)
			if err != nil {
				return nil, err
			}

			now := time.Now()
			order = models.Order{
				UserID: user.ID,
				Items:  items,
				ShippingAddress: models.OrderAddress{
					Street:  strings.TrimSpace(req.ShippingAddress.Street),
					City:    strings.TrimSpace(req.ShippingAddress.City),
					State:   strings.TrimSpace(req.ShippingAddress.State),
					ZipCode: strings.TrimSpace(req.ShippingAddress.ZipCode),
				},
				PaymentMethod: req.PaymentMethod,
				PaymentStatus: models.PaymentStatusPending,
				OrderStatus:   models.OrderStatusPending,
				TotalAmount:   total,
				CreatedAt:     now,
				UpdatedAt:     now,
			}

			res, err := db.Collection("orders").InsertOne(sessCtx, order)
			if err != nil {
				return nil, err
			}
			if id, ok := res.InsertedID.(primitive.ObjectID); ok {
				order.ID = id
			}

			// pull only the consumed lines; items added to the cart
			// concurrently are not silently discarded
			_, err = db.Collection("carts").UpdateByID(sessCtx, cart.ID, bson.M{
				"$pull": bson.M{"items": bson.M{"productId": bson.M{"$in": consumedProductIDs(items)}}},
				"$set":  bson.M{"updatedAt": now},
			})
			return nil, err
		})
		if err != nil {
			respondOrderError(c, route, err, !cfg.Production())
			return
		}

		log.Println("[ORDER] [INFO] order created:", order.ID.Hex(), "user:", user.ID.Hex())
		c.JSON(http.StatusCreated, gin.H{"order": order})
	}
}

func GetMyOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("orders").Find(ctx, bson.M{"userId": user.ID}, findOptions)
		if err != nil {
			log.Println("[ORDER] [ERROR] list orders failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		defer cursor.Close(ctx)

		orders := make([]models.Order, 0)
		if err := cursor.All(ctx, &orders); err != nil {
			log.Println("[ORDER] [ERROR] decode orders failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		order, ok := findOrder(c, ctx, db)
		if !ok {
			return
		}

		if order.UserID != user.ID && !user.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// UpdateOrderStatus moves an order one step along the fulfillment flow.
// Admin only; wired behind RequireAdmin.
func UpdateOrderStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		order, ok := findOrder(c, ctx, db)
		if !ok {
			return
		}

		if !canTransitionOrderStatus(order.OrderStatus, req.OrderStatus) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid status transition",
				"from":  order.OrderStatus,
				"to":    req.OrderStatus,
			})
			return
		}

		order.OrderStatus = req.OrderStatus
		order.UpdatedAt = time.Now()
		_, err := db.Collection("orders").UpdateByID(ctx, order.ID, bson.M{
			"$set": bson.M{"orderStatus": order.OrderStatus, "updatedAt": order.UpdatedAt},
		})
		if err != nil {
			log.Println("[ORDER] [ERROR] status update failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		log.Println("[ORDER] [INFO] order", order.ID.Hex(), "status:", order.OrderStatus)
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// CancelOrder is allowed to the order's owner or an admin, and only while
// the order is still pending. Stock taken by the order is restored.
func CancelOrder(db *mongo.Database, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/cancel"
		defer handlePanic(c, route)

		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		order, ok := findOrder(c, ctx, db)
		if !ok {
			return
		}

		if order.UserID != user.ID && !user.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		if order.OrderStatus != models.OrderStatusPending {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order cannot be cancelled", "orderStatus": order.OrderStatus})
			return
		}

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			// the conditional filter re-checks pending inside the
			// transaction, even if a concurrent admin update slipped in
			// after our read
			markCancelled := func(ctx context.Context) (bool, error) {
				res, err := db.Collection("orders").UpdateOne(ctx,
					bson.M{"_id": order.ID, "orderStatus": models.OrderStatusPending},
					bson.M{"$set": bson.M{"orderStatus": models.OrderStatusCancelled, "updatedAt": time.Now()}},
				)
				if err != nil {
					return false, err
				}
				return res.MatchedCount > 0, nil
			}
			return nil, cancelOrder(sessCtx, mongoStockStore{db: db}, order, markCancelled)
		})
		if err != nil {
			if errors.Is(err, errOrderNotPending) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "order cannot be cancelled"})
				return
			}
			respondInternalError(c, route, err, !cfg.Production())
			return
		}

		order.OrderStatus = models.OrderStatusCancelled
		log.Println("[ORDER] [INFO] order cancelled:", order.ID.Hex())
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// findOrder loads the order named by the :id param, responding 400/404
// itself on failure.
func findOrder(c *gin.Context, ctx context.Context, db *mongo.Database) (models.Order, bool) {
	orderID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return models.Order{}, false
	}

	var order models.Order
	err = db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return models.Order{}, false
	}
	if err != nil {
		log.Println("[ORDER] [ERROR] order lookup failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return models.Order{}, false
	}
	return order, true
}

func respondOrderError(c *gin.Context, route string, err error, development bool) {
	if errors.Is(err, errEmptyCart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		return
	}
	var notFound productNotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product not found", "productId": notFound.ProductID.Hex()})
		return
	}
	var unavailable productUnavailableError
	var stock insufficientStockError
	if errors.As(err, &unavailable) || errors.As(err, &stock) {
		respondStockError(c, err)
		return
	}
	respondInternalError(c, route, err, development)
}
