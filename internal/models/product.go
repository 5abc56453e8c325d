package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductCategories enumerates the catalog categories accepted on create
// and update.
var ProductCategories = []string{"farsan", "sweets", "snacks", "beverages"}

// Review is one customer's verdict, embedded on the product. A user may
// review a product at most once.
type Review struct {
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	Category    string             `bson:"category" json:"category"`
	Stock       int                `bson:"stock" json:"stock"`
	Rating      float64            `bson:"rating" json:"rating"`
	NumReviews  int                `bson:"numReviews" json:"numReviews"`
	Reviews     []Review           `bson:"reviews,omitempty" json:"reviews,omitempty"`
	IsAvailable bool               `bson:"isAvailable" json:"isAvailable"`
	IsDeleted   bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt   *time.Time         `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ValidCategory reports whether the category is one of the known values.
func ValidCategory(category string) bool {
	for _, c := range ProductCategories {
		if c == category {
			return true
		}
	}
	return false
}
