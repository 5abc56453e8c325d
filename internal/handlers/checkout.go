package handlers

import (
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"snackstore/internal/models"
)

var errEmptyCart = errors.New("cart is empty")

type productNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e productNotFoundError) Error() string {
	return "product not found"
}

// stockStore is the slice of product storage the checkout sequence needs.
// DecrementStock must be atomic and conditional on stock >= quantity; that
// single contract is what keeps concurrent checkouts from overselling.
type stockStore interface {
	Product(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (bool, error)
	RestoreStock(ctx context.Context, id primitive.ObjectID, quantity int) error
}

// buildOrderItems walks the cart against live product state: it validates
// availability, snapshots the unit price into the line item, and decrements
// stock. The first violation aborts the whole order; stock already taken by
// earlier lines is restored, so a failed order never leaves stock
// decremented.
func buildOrderItems(ctx context.Context, store stockStore, items []models.CartItem) ([]models.OrderItem, float64, error) {
	ordered := make([]models.OrderItem, 0, len(items))
	total := 0.0

	fail := func(err error) ([]models.OrderItem, float64, error) {
		for _, taken := range ordered {
			if restoreErr := store.RestoreStock(ctx, taken.ProductID, taken.Quantity); restoreErr != nil {
				log.Println("[ORDER] [ERROR] stock restore failed:", restoreErr)
			}
		}
		return nil, 0, err
	}

	for _, item := range items {
		product, err := store.Product(ctx, item.ProductID)
		if err != nil {
			return fail(err)
		}
		if err := checkPurchasable(product, item.Quantity); err != nil {
			return fail(err)
		}

		ok, err := store.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return fail(err)
		}
		if !ok {
			// someone else took the stock between the check and the
			// decrement; re-read for an accurate count in the error
			available := product.Stock
			if current, err := store.Product(ctx, item.ProductID); err == nil {
				available = current.Stock
			}
			return fail(insufficientStockError{
				Name:      product.Name,
				Available: available,
				Requested: item.Quantity,
			})
		}

		// price is snapshot at order time; later catalog changes must not
		// touch historical orders
		ordered = append(ordered, models.OrderItem{
			ProductID: item.ProductID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			Price:     product.Price,
		})
		total += product.Price * float64(item.Quantity)
	}

	if len(ordered) == 0 {
		return nil, 0, errEmptyCart
	}
	return ordered, total, nil
}

// cancelOrder restores the stock an order took and flips it to cancelled
// via markCancelled, which must match only while the order is still
// pending. Only pending orders may be cancelled; the caller runs both
// steps inside one transaction.
func cancelOrder(ctx context.Context, store stockStore, order models.Order, markCancelled func(context.Context) (bool, error)) error {
	if order.OrderStatus != models.OrderStatusPending {
		return errOrderNotPending
	}

	for _, item := range order.Items {
		if err := store.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	ok, err := markCancelled(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errOrderNotPending
	}
	return nil
}

// consumedProductIDs lists the product ids an order took from the cart.
// Cart cleanup pulls exactly these lines, so anything added to the cart
// while the order was in flight survives.
func consumedProductIDs(items []models.OrderItem) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// orderTotal recomputes the snapshot total of an order's line items.
func orderTotal(items []models.OrderItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// canTransitionOrderStatus enforces the forward-only fulfillment flow.
// Cancellation is a separate operation with its own rules.
func canTransitionOrderStatus(from, to string) bool {
	switch from {
	case models.OrderStatusPending:
		return to == models.OrderStatusProcessing
	case models.OrderStatusProcessing:
		return to == models.OrderStatusShipped
	case models.OrderStatusShipped:
		return to == models.OrderStatusDelivered
	}
	return false
}

// mongoStockStore is the production stockStore over the products
// collection. The context passed in may be a mongo session context, so the
// whole checkout shares one transaction.
type mongoStockStore struct {
	db *mongo.Database
}

func (s mongoStockStore) Product(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var product models.Product
	err := s.db.Collection("products").FindOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return models.Product{}, productNotFoundError{ProductID: id}
	}
	if err != nil {
		return models.Product{}, err
	}
	return product, nil
}

func (s mongoStockStore) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (bool, error) {
	res, err := s.db.Collection("products").UpdateOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
		"stock":     bson.M{"$gte": quantity},
	}, bson.M{"$inc": bson.M{"stock": -quantity}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s mongoStockStore) RestoreStock(ctx context.Context, id primitive.ObjectID, quantity int) error {
	_, err := s.db.Collection("products").UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"stock": quantity}},
	)
	return err
}
