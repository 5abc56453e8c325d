package handlers

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"snackstore/internal/models"
)

// productUnavailableError names the offending product so the client can
// show it.
type productUnavailableError struct {
	Name string
}

func (e productUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.Name)
}

type insufficientStockError struct {
	Name      string
	Available int
	Requested int
}

func (e insufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.Name)
}

// checkPurchasable validates a requested quantity against the live product
// state. Stock is not reserved here; it is only truly decremented at order
// time.
func checkPurchasable(product models.Product, quantity int) error {
	if !product.IsAvailable || product.IsDeleted {
		return productUnavailableError{Name: product.Name}
	}
	if product.Stock < quantity {
		return insufficientStockError{
			Name:      product.Name,
			Available: product.Stock,
			Requested: quantity,
		}
	}
	return nil
}

// upsertCartItem replaces the quantity for an existing line or appends a
// new one; a zero or negative quantity removes the line instead.
func upsertCartItem(items []models.CartItem, productID primitive.ObjectID, quantity int) []models.CartItem {
	if quantity <= 0 {
		updated, _ := removeCartItem(items, productID)
		return updated
	}

	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			return items
		}
	}
	return append(items, models.CartItem{ProductID: productID, Quantity: quantity})
}

func removeCartItem(items []models.CartItem, productID primitive.ObjectID) ([]models.CartItem, bool) {
	updated := make([]models.CartItem, 0, len(items))
	found := false
	for _, item := range items {
		if item.ProductID == productID {
			found = true
			continue
		}
		updated = append(updated, item)
	}
	return updated, found
}

func cartItemIndex(items []models.CartItem, productID primitive.ObjectID) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
