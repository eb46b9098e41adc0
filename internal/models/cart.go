package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem is a single line; lines are unique by (product, size, color).
type CartItem struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Size     string             `bson:"size,omitempty" json:"size,omitempty"`
	Color    string             `bson:"color,omitempty" json:"color,omitempty"`
}

// Matches reports whether the line has the given merge key. Size and color
// compare case-insensitively.
func (i CartItem) Matches(product primitive.ObjectID, size, color string) bool {
	return i.Product == product &&
		strings.EqualFold(strings.TrimSpace(i.Size), strings.TrimSpace(size)) &&
		strings.EqualFold(strings.TrimSpace(i.Color), strings.TrimSpace(color))
}

// Cart is unique per user.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Items     []CartItem         `bson:"items" json:"items"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Find returns the index of the matching line or -1.
func (c *Cart) Find(product primitive.ObjectID, size, color string) int {
	for i, item := range c.Items {
		if item.Matches(product, size, color) {
			return i
		}
	}
	return -1
}

// QuantityOf sums all lines of a product regardless of size and color.
func (c *Cart) QuantityOf(product primitive.ObjectID) int {
	total := 0
	for _, item := range c.Items {
		if item.Product == product {
			total += item.Quantity
		}
	}
	return total
}
