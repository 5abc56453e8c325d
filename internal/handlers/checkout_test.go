package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"snackstore/internal/models"
)

// memoryStockStore mirrors the conditional-decrement contract of the mongo
// store under a mutex, which makes concurrency behavior testable without a
// database.
type memoryStockStore struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
}

func newMemoryStockStore(products ...models.Product) *memoryStockStore {
	s := &memoryStockStore{products: make(map[primitive.ObjectID]models.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memoryStockStore) Product(_ context.Context, id primitive.ObjectID) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok || product.IsDeleted {
		return models.Product{}, productNotFoundError{ProductID: id}
	}
	return product, nil
}

func (s *memoryStockStore) DecrementStock(_ context.Context, id primitive.ObjectID, quantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok || product.IsDeleted || product.Stock < quantity {
		return false, nil
	}
	product.Stock -= quantity
	s.products[id] = product
	return true, nil
}

func (s *memoryStockStore) RestoreStock(_ context.Context, id primitive.ObjectID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product := s.products[id]
	product.Stock += quantity
	s.products[id] = product
	return nil
}

func (s *memoryStockStore) stock(id primitive.ObjectID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memoryStockStore) setPrice(id primitive.ObjectID, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product := s.products[id]
	product.Price = price
	s.products[id] = product
}

func testProduct(name string, price float64, stock int) models.Product {
	return models.Product{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Price:       price,
		Stock:       stock,
		IsAvailable: true,
	}
}

func TestBuildOrderItemsSnapshotsPrices(t *testing.T) {
	chips := testProduct("Banana Chips", 40, 10)
	laddu := testProduct("Besan Laddu", 120, 4)
	store := newMemoryStockStore(chips, laddu)

	items, total, err := buildOrderItems(context.Background(), store, []models.CartItem{
		{ProductID: chips.ID, Quantity: 3},
		{ProductID: laddu.ID, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Banana Chips", items[0].Name)
	assert.Equal(t, 40.0, items[0].Price)
	assert.Equal(t, 3*40.0+2*120.0, total)
	assert.Equal(t, total, orderTotal(items))

	assert.Equal(t, 7, store.stock(chips.ID))
	assert.Equal(t, 2, store.stock(laddu.ID))
}

func TestOrderTotalImmuneToLaterPriceChange(t *testing.T) {
	chips := testProduct("Banana Chips", 40, 10)
	store := newMemoryStockStore(chips)

	items, total, err := buildOrderItems(context.Background(), store, []models.CartItem{
		{ProductID: chips.ID, Quantity: 2},
	})
	require.NoError(t, err)

	store.setPrice(chips.ID, 90)

	assert.Equal(t, 80.0, total)
	assert.Equal(t, 80.0, orderTotal(items), "snapshot lines ignore catalog changes")
}

func TestBuildOrderItemsEmptyCart(t *testing.T) {
	store := newMemoryStockStore()

	_, _, err := buildOrderItems(context.Background(), store, nil)
	assert.ErrorIs(t, err, errEmptyCart)
}

func TestBuildOrderItemsUnknownProduct(t *testing.T) {
	store := newMemoryStockStore()

	_, _, err := buildOrderItems(context.Background(), store, []models.CartItem{
		{ProductID: primitive.NewObjectID(), Quantity: 1},
	})
	var notFound productNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestBuildOrderItemsRestoresStockOnFailure(t *testing.T) {
	chips := testProduct("Banana Chips", 40, 10)
	laddu := testProduct("Besan Laddu", 120, 1)
	store := newMemoryStockStore(chips, laddu)

	_, _, err := buildOrderItems(context.Background(), store, []models.CartItem{
		{ProductID: chips.ID, Quantity: 4}, // succeeds first
		{ProductID: laddu.ID, Quantity: 3}, // then fails
	})
	var stockErr insufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Besan Laddu", stockErr.Name)
	assert.Equal(t, 1, stockErr.Available)

	assert.Equal(t, 10, store.stock(chips.ID), "earlier decrement rolled back")
	assert.Equal(t, 1, store.stock(laddu.ID))
}

func TestBuildOrderItemsUnavailableProduct(t *testing.T) {
	chips := testProduct("Banana Chips", 40, 10)
	chips.IsAvailable = false
	store := newMemoryStockStore(chips)

	_, _, err := buildOrderItems(context.Background(), store, []models.CartItem{
		{ProductID: chips.ID, Quantity: 1},
	})
	var unavailable productUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 10, store.stock(chips.ID))
}

// Many buyers race for limited stock: the number of successful orders can
// never exceed stock/quantity, and the remaining stock must account exactly
// for what was sold.
func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	const (
		stock    = 10
		quantity = 3
		buyers   = 40
	)
	chips := testProduct("Banana Chips", 40, stock)
	store := newMemoryStockStore(chips)

	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := buildOrderItems(context.Background(), store, []models.CartItem{
				{ProductID: chips.ID, Quantity: quantity},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			var stockErr insufficientStockError
			assert.ErrorAs(t, err, &stockErr)
		}
	}

	assert.LessOrEqual(t, succeeded, stock/quantity)
	remaining := store.stock(chips.ID)
	assert.GreaterOrEqual(t, remaining, 0, "stock must never go negative")
	assert.Equal(t, stock-succeeded*quantity, remaining)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	chips := testProduct("Banana Chips", 40, 2)
	store := newMemoryStockStore(chips)

	order := models.Order{
		OrderStatus: models.OrderStatusPending,
		Items:       []models.OrderItem{{ProductID: chips.ID, Name: chips.Name, Quantity: 3, Price: 40}},
	}

	cancelled := false
	err := cancelOrder(context.Background(), store, order, func(context.Context) (bool, error) {
		cancelled = true
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Equal(t, 5, store.stock(chips.ID))
}

func TestCancelShippedOrderRejected(t *testing.T) {
	chips := testProduct("Banana Chips", 40, 2)
	store := newMemoryStockStore(chips)

	order := models.Order{
		OrderStatus: models.OrderStatusShipped,
		Items:       []models.OrderItem{{ProductID: chips.ID, Name: chips.Name, Quantity: 3, Price: 40}},
	}

	err := cancelOrder(context.Background(), store, order, func(context.Context) (bool, error) {
		t.Fatal("a shipped order must never be marked cancelled")
		return false, nil
	})
	assert.ErrorIs(t, err, errOrderNotPending)
	assert.Equal(t, 2, store.stock(chips.ID), "stock untouched on a refused cancellation")
}

func TestCancelOrderLosesRaceToStatusChange(t *testing.T) {
	chips := testProduct("Banana Chips", 40, 2)
	store := newMemoryStockStore(chips)

	order := models.Order{
		OrderStatus: models.OrderStatusPending,
		Items:       []models.OrderItem{{ProductID: chips.ID, Name: chips.Name, Quantity: 1, Price: 40}},
	}

	// the conditional update matched nothing: the order moved on between
	// our read and the write
	err := cancelOrder(context.Background(), store, order, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, errOrderNotPending)
}

func TestCartCleanupKeepsConcurrentLines(t *testing.T) {
	ordered := primitive.NewObjectID()
	concurrent := primitive.NewObjectID()

	cartItems := []models.CartItem{
		{ProductID: ordered, Quantity: 2},
		{ProductID: concurrent, Quantity: 1}, // added while the order was in flight
	}
	orderItems := []models.OrderItem{{ProductID: ordered, Quantity: 2, Price: 40}}

	for _, id := range consumedProductIDs(orderItems) {
		cartItems, _ = removeCartItem(cartItems, id)
	}

	require.Len(t, cartItems, 1)
	assert.Equal(t, concurrent, cartItems[0].ProductID)
}

func TestCanTransitionOrderStatus(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.OrderStatusPending, models.OrderStatusProcessing, true},
		{models.OrderStatusProcessing, models.OrderStatusShipped, true},
		{models.OrderStatusShipped, models.OrderStatusDelivered, true},
		{models.OrderStatusPending, models.OrderStatusShipped, false},
		{models.OrderStatusProcessing, models.OrderStatusPending, false},
		{models.OrderStatusDelivered, models.OrderStatusShipped, false},
		{models.OrderStatusDelivered, models.OrderStatusPending, false},
		{models.OrderStatusCancelled, models.OrderStatusProcessing, false},
		{models.OrderStatusPending, models.OrderStatusCancelled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, canTransitionOrderStatus(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
