package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Favorite is the per-user favorites document: a set of product ids with
// no duplicates and no ordering guarantee.
type Favorite struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID   `bson:"userId" json:"userId"`
	Products  []primitive.ObjectID `bson:"products" json:"products"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Contains reports set membership for a product id.
func (f *Favorite) Contains(productID primitive.ObjectID) bool {
	for _, id := range f.Products {
		if id == productID {
			return true
		}
	}
	return false
}
