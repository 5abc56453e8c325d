package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snackstore/internal/models"
)

func newAddress(street string) models.Address {
	return models.Address{
		ID:      uuid.NewString(),
		Street:  street,
		City:    "Ahmedabad",
		State:   "GJ",
		ZipCode: "380001",
	}
}

func defaultCount(addresses []models.Address) int {
	n := 0
	for _, addr := range addresses {
		if addr.IsDefault {
			n++
		}
	}
	return n
}

func TestAppendAddressFirstIsAlwaysDefault(t *testing.T) {
	addresses := appendAddress(nil, newAddress("12 Relief Rd"), false)
	require.Len(t, addresses, 1)
	assert.True(t, addresses[0].IsDefault)
}

func TestAppendAddressRequestedDefaultDemotesOthers(t *testing.T) {
	addresses := appendAddress(nil, newAddress("first"), false)
	addresses = appendAddress(addresses, newAddress("second"), true)

	require.Len(t, addresses, 2)
	assert.False(t, addresses[0].IsDefault)
	assert.True(t, addresses[1].IsDefault)
	assert.Equal(t, 1, defaultCount(addresses))
}

func TestAppendAddressNonDefaultKeepsCurrent(t *testing.T) {
	addresses := appendAddress(nil, newAddress("first"), false)
	addresses = appendAddress(addresses, newAddress("second"), false)

	assert.True(t, addresses[0].IsDefault)
	assert.False(t, addresses[1].IsDefault)
}

func TestReplaceAddressPromotion(t *testing.T) {
	addresses := appendAddress(nil, newAddress("first"), false)
	addresses = appendAddress(addresses, newAddress("second"), false)
	id := addresses[1].ID

	ok := replaceAddress(addresses, id, newAddress("second, renamed"), true)
	require.True(t, ok)
	assert.Equal(t, "second, renamed", addresses[1].Street)
	assert.Equal(t, id, addresses[1].ID, "id survives the overwrite")
	assert.True(t, addresses[1].IsDefault)
	assert.Equal(t, 1, defaultCount(addresses))
}

func TestReplaceAddressKeepsDefaultFlag(t *testing.T) {
	addresses := appendAddress(nil, newAddress("first"), false)

	ok := replaceAddress(addresses, addresses[0].ID, newAddress("edited"), false)
	require.True(t, ok)
	assert.True(t, addresses[0].IsDefault, "editing the default without the flag keeps it default")
}

func TestReplaceAddressUnknownID(t *testing.T) {
	addresses := appendAddress(nil, newAddress("first"), false)
	assert.False(t, replaceAddress(addresses, uuid.NewString(), newAddress("x"), true))
}

func TestRemoveAddressPromotesFirstRemaining(t *testing.T) {
	addresses := appendAddress(nil, newAddress("A"), false) // default
	addresses = appendAddress(addresses, newAddress("B"), false)
	addresses = appendAddress(addresses, newAddress("C"), false)

	remaining, ok := removeAddress(addresses, addresses[0].ID)
	require.True(t, ok)
	require.Len(t, remaining, 2)
	assert.Equal(t, "B", remaining[0].Street)
	assert.True(t, remaining[0].IsDefault)
	assert.Equal(t, 1, defaultCount(remaining))
}

func TestRemoveAddressNonDefaultLeavesDefaultAlone(t *testing.T) {
	addresses := appendAddress(nil, newAddress("A"), false)
	addresses = appendAddress(addresses, newAddress("B"), false)

	remaining, ok := removeAddress(addresses, addresses[1].ID)
	require.True(t, ok)
	require.Len(t, remaining, 1)
	assert.True(t, remaining[0].IsDefault)
}

func TestRemoveLastAddress(t *testing.T) {
	addresses := appendAddress(nil, newAddress("only"), false)

	remaining, ok := removeAddress(addresses, addresses[0].ID)
	require.True(t, ok)
	assert.Empty(t, remaining)
}

func TestRemoveAddressUnknownID(t *testing.T) {
	addresses := appendAddress(nil, newAddress("A"), false)
	_, ok := removeAddress(addresses, uuid.NewString())
	assert.False(t, ok)
}

func TestMarkDefaultAddressMovesFlag(t *testing.T) {
	addresses := appendAddress(nil, newAddress("A"), false)
	addresses = appendAddress(addresses, newAddress("B"), false)

	require.True(t, markDefaultAddress(addresses, addresses[1].ID))
	assert.False(t, addresses[0].IsDefault)
	assert.True(t, addresses[1].IsDefault)

	// idempotent
	require.True(t, markDefaultAddress(addresses, addresses[1].ID))
	assert.True(t, addresses[1].IsDefault)
	assert.Equal(t, 1, defaultCount(addresses))
}

func TestMarkDefaultAddressUnknownID(t *testing.T) {
	addresses := appendAddress(nil, newAddress("A"), false)
	assert.False(t, markDefaultAddress(addresses, uuid.NewString()))
}

// Re-adding after deleting the default must end with exactly one default,
// whatever order the operations arrive in.
func TestAddressInvariantAcrossSequence(t *testing.T) {
	addresses := appendAddress(nil, newAddress("A"), true)
	addresses = appendAddress(addresses, newAddress("B"), false)

	remaining, ok := removeAddress(addresses, addresses[0].ID)
	require.True(t, ok)
	assert.True(t, remaining[0].IsDefault, "B inherits the default once A goes away")

	remaining = appendAddress(remaining, newAddress("C"), true)
	assert.Equal(t, 1, defaultCount(remaining))
	assert.Equal(t, "C", remaining[len(remaining)-1].Street)
	assert.True(t, remaining[len(remaining)-1].IsDefault)
}
