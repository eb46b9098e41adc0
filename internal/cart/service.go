// Package cart manages the per-user shopping cart.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/keylock"
	"gamyacollections/internal/models"
	"gamyacollections/internal/store"
)

// Service edits carts under a per-user lock so concurrent changes to the
// same cart apply one after another.
type Service struct {
	carts    store.Carts
	products store.Products
	locks    *keylock.Mutex
}

func NewService(carts store.Carts, products store.Products) *Service {
	return &Service{carts: carts, products: products, locks: keylock.New()}
}

type ItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// Line is a cart line with its product expanded.
type Line struct {
	Product   models.Product `json:"product"`
	Quantity  int            `json:"quantity"`
	Size      string         `json:"size,omitempty"`
	Color     string         `json:"color,omitempty"`
	UnitPrice float64        `json:"unitPrice"`
	LineTotal float64        `json:"lineTotal"`
}

type View struct {
	ID          primitive.ObjectID `json:"_id"`
	User        primitive.ObjectID `json:"user"`
	Items       []Line             `json:"items"`
	TotalItems  int                `json:"totalItems"`
	TotalAmount float64            `json:"totalAmount"`
}

func (s *Service) load(ctx context.Context, user primitive.ObjectID) (*models.Cart, error) {
	cart, err := s.carts.FindByUser(ctx, user)
	if errors.Is(err, store.ErrNotFound) {
		return &models.Cart{User: user, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load cart", err)
	}
	return cart, nil
}

func (s *Service) product(ctx context.Context, ref string) (*models.Product, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, apperr.Validation("Invalid product id")
	}
	product, err := s.products.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Product not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}
	return product, nil
}

func (s *Service) Get(ctx context.Context, user primitive.ObjectID) (*View, error) {
	cart, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, cart), nil
}

// AddItem merges into an existing line with the same size and color.
func (s *Service) AddItem(ctx context.Context, user primitive.ObjectID, req ItemRequest) (*View, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		return nil, apperr.Validation("Quantity must be at least 1")
	}
	product, err := s.product(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(user.Hex())
	defer unlock()

	cart, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}

	if want := cart.QuantityOf(product.ID) + req.Quantity; want > product.Stock {
		return nil, insufficient(product, want)
	}

	size, color := strings.TrimSpace(req.Size), strings.TrimSpace(req.Color)
	if i := cart.Find(product.ID, size, color); i >= 0 {
		cart.Items[i].Quantity += req.Quantity
	} else {
		cart.Items = append(cart.Items, models.CartItem{Product: product.ID, Quantity: req.Quantity, Size: size, Color: color})
	}
	return s.save(ctx, cart)
}

func (s *Service) UpdateItem(ctx context.Context, user primitive.ObjectID, req ItemRequest) (*View, error) {
	if req.Quantity < 1 {
		return nil, apperr.Validation("Quantity must be at least 1")
	}
	product, err := s.product(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(user.Hex())
	defer unlock()

	cart, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}

	i := cart.Find(product.ID, req.Size, req.Color)
	if i < 0 {
		return nil, apperr.NotFound("Item not found in cart")
	}
	if want := cart.QuantityOf(product.ID) - cart.Items[i].Quantity + req.Quantity; want > product.Stock {
		return nil, insufficient(product, want)
	}
	cart.Items[i].Quantity = req.Quantity
	return s.save(ctx, cart)
}

// RemoveItem drops one line, or every line of the product when neither size
// nor color is given.
func (s *Service) RemoveItem(ctx context.Context, user primitive.ObjectID, productRef, size, color string) (*View, error) {
	id, err := primitive.ObjectIDFromHex(productRef)
	if err != nil {
		return nil, apperr.Validation("Invalid product id")
	}

	unlock := s.locks.Lock(user.Hex())
	defer unlock()

	cart, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}

	kept := cart.Items[:0]
	removed := false
	for _, item := range cart.Items {
		match := item.Product == id
		if size != "" || color != "" {
			match = item.Matches(id, size, color)
		}
		if match {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return nil, apperr.NotFound("Item not found in cart")
	}
	cart.Items = kept
	return s.save(ctx, cart)
}

func (s *Service) Clear(ctx context.Context, user primitive.ObjectID) error {
	unlock := s.locks.Lock(user.Hex())
	defer unlock()

	if err := s.carts.DeleteByUser(ctx, user); err != nil {
		return apperr.Internal("failed to clear cart", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, cart *models.Cart) (*View, error) {
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, apperr.Internal("failed to save cart", err)
	}
	return s.expand(ctx, cart), nil
}

func (s *Service) expand(ctx context.Context, cart *models.Cart) *View {
	view := &View{ID: cart.ID, User: cart.User, Items: make([]Line, 0, len(cart.Items))}
	total := decimal.Zero

	for _, item := range cart.Items {
		product, err := s.products.FindByID(ctx, item.Product)
		if err != nil {
			log.Println("[CART] [WARN] skipping line for missing product:", item.Product.Hex(), err)
			continue
		}
		unit := product.EffectivePrice()
		line := decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(item.Quantity)))
		lineTotal, _ := line.Float64()

		view.Items = append(view.Items, Line{
			Product:   *product,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		view.TotalItems += item.Quantity
		total = total.Add(line)
	}
	view.TotalAmount, _ = total.Round(2).Float64()
	return view
}

func insufficient(product *models.Product, want int) error {
	return apperr.New(apperr.KindInsufficientStock,
		fmt.Sprintf("Only %d of %s in stock (requested %d)", product.Stock, product.Name, want))
}
