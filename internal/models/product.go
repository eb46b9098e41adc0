package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MaxProductImages = 3

type Product struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Name          string              `bson:"name" json:"name"`
	Description   string              `bson:"description,omitempty" json:"description,omitempty"`
	Price         float64             `bson:"price" json:"price"`
	DiscountPrice float64             `bson:"discountPrice,omitempty" json:"discountPrice,omitempty"`
	IsOnSale      bool                `bson:"-" json:"isOnSale"`
	Category      primitive.ObjectID  `bson:"category" json:"category"`
	SubCategory   *primitive.ObjectID `bson:"subCategory,omitempty" json:"subCategory,omitempty"`
	Stock         int                 `bson:"stock" json:"stock"`
	InStock       bool                `bson:"-" json:"inStock"`
	Images        StringList          `bson:"images" json:"images"`
	Featured      bool                `bson:"featured" json:"featured"`
	Bestseller    bool                `bson:"bestseller" json:"bestseller"`
	Sizes         StringList          `bson:"sizes" json:"sizes"`
	Colors        StringList          `bson:"colors" json:"colors"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// OnSale reports whether the discount price currently applies.
func (p Product) OnSale() bool {
	return p.DiscountPrice > 0 && p.DiscountPrice < p.Price
}

// EffectivePrice is the unit price charged at checkout.
func (p Product) EffectivePrice() float64 {
	if p.OnSale() {
		return p.DiscountPrice
	}
	return p.Price
}

// Decorate fills the derived, non-persisted fields.
func (p *Product) Decorate() {
	p.IsOnSale = p.OnSale()
	p.InStock = p.Stock > 0
}

// PrimaryImage returns the first image url, if any.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
