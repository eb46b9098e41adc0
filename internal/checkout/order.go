package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/models"
	"gamyacollections/internal/store"
)

const fanoutStoreTimeout = 10 * time.Second

// ItemInput is a checkout line as sent by the storefront. Older clients send
// the product reference as productId.
type ItemInput struct {
	Product   string  `json:"product"`
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Size      string  `json:"size"`
	Color     string  `json:"color"`
}

func (i ItemInput) productRef() string {
	if i.Product != "" {
		return i.Product
	}
	return i.ProductID
}

type OrderData struct {
	Items           []ItemInput            `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	TotalAmount     float64                `json:"totalAmount"`
	PaymentMethod   models.PaymentMethod   `json:"paymentMethod"`
}

func (d OrderData) validate() error {
	if len(d.Items) == 0 {
		return apperr.Validation("Order must contain at least one item")
	}
	addr := d.ShippingAddress
	if strings.TrimSpace(addr.Name) == "" || strings.TrimSpace(addr.Phone) == "" {
		return apperr.Validation("Shipping address requires name and phone")
	}
	for _, item := range d.Items {
		if item.Quantity < 1 {
			return apperr.Validation("Item quantity must be at least 1")
		}
		if _, err := primitive.ObjectIDFromHex(item.productRef()); err != nil {
			return apperr.Validation("Invalid product id")
		}
	}
	return nil
}

// snapshot freezes each line at the product's current effective price. The
// client supplied prices and total are advisory only. With paid set the
// money is already captured, so a product missing from the catalog keeps
// the line as the client sent it instead of failing the order.
func (s *Service) snapshot(ctx context.Context, data OrderData, paid bool) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(data.Items))
	total := decimal.Zero

	for _, in := range data.Items {
		id, _ := primitive.ObjectIDFromHex(in.productRef())
		product, err := s.products.FindByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) && paid {
			log.Println("[ORDER] [WARN] product missing from catalog, keeping client line:", id.Hex(), in.Name, in.Price)
			items = append(items, clientLine(id, in))
			total = total.Add(decimal.NewFromFloat(in.Price).Mul(decimal.NewFromInt(int64(in.Quantity))))
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, decimal.Zero, apperr.NotFound(fmt.Sprintf("Product %s not found", in.productRef()))
		}
		if err != nil {
			return nil, decimal.Zero, apperr.Internal("failed to load product", err)
		}

		price := product.EffectivePrice()
		if in.Price > 0 && !decimal.NewFromFloat(in.Price).Equal(decimal.NewFromFloat(price)) {
			log.Println("[ORDER] [WARN] client price differs from catalog:", product.ID.Hex(), in.Price, "->", price)
		}

		image := product.PrimaryImage()
		if image == "" {
			image = in.Image
		}
		items = append(items, models.OrderItem{
			Product:  product.ID,
			Name:     product.Name,
			Image:    image,
			Quantity: in.Quantity,
			Price:    price,
			Size:     strings.TrimSpace(in.Size),
			Color:    strings.TrimSpace(in.Color),
		})
		total = total.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(in.Quantity))))
	}

	total = total.Round(2)
	if data.TotalAmount > 0 && !decimal.NewFromFloat(data.TotalAmount).Round(2).Equal(total) {
		log.Println("[ORDER] [WARN] client total", data.TotalAmount, "differs from computed total", total.String())
	}
	return items, total, nil
}

func clientLine(id primitive.ObjectID, in ItemInput) models.OrderItem {
	return models.OrderItem{
		Product:  id,
		Name:     strings.TrimSpace(in.Name),
		Image:    in.Image,
		Quantity: in.Quantity,
		Price:    in.Price,
		Size:     strings.TrimSpace(in.Size),
		Color:    strings.TrimSpace(in.Color),
	}
}

// newOrderID returns ORD<unix millis><4 hex chars>.
func newOrderID(now time.Time) string {
	return fmt.Sprintf("ORD%d%s", now.UnixMilli(), strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4]))
}

func (s *Service) newOrder(user *models.User, data OrderData, items []models.OrderItem, total decimal.Decimal) *models.Order {
	now := s.now()
	addr := data.ShippingAddress
	if addr.Email == "" {
		addr.Email = user.Email
	}
	if addr.Country == "" {
		addr.Country = "India"
	}
	totalAmount, _ := total.Float64()

	return &models.Order{
		OrderID:         newOrderID(now),
		User:            user.ID,
		UserName:        user.Name,
		UserEmail:       user.Email,
		Items:           items,
		TotalAmount:     totalAmount,
		ShippingAddress: addr,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// insert persists the order, regenerating the human id on the rare collision.
func (s *Service) insert(ctx context.Context, order *models.Order) error {
	for attempt := 0; attempt < 3; attempt++ {
		err := s.orders.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return apperr.Internal("failed to save order", err)
		}
		if order.RazorpayOrderID != "" {
			if _, findErr := s.orders.FindByGatewayOrderID(ctx, order.RazorpayOrderID); findErr == nil {
				return apperr.New(apperr.KindDuplicatePayment, "Payment has already been processed")
			}
		}
		order.OrderID = newOrderID(s.now())
	}
	return apperr.Internal("failed to save order", errors.New("could not allocate a unique order id"))
}

func (s *Service) clearCart(ctx context.Context, order *models.Order) {
	if err := s.carts.DeleteByUser(ctx, order.User); err != nil {
		log.Println("[ORDER] [ERROR] failed to clear cart after order:", order.OrderID, err)
	}
}

// afterPlacement runs the post-persist fan-out; nothing here can fail the
// order. It keeps going when the caller's context ends.
func (s *Service) afterPlacement(ctx context.Context, order *models.Order) *models.Order {
	ctx = context.WithoutCancel(ctx)

	cartCtx, cancel := context.WithTimeout(ctx, fanoutStoreTimeout)
	s.clearCart(cartCtx, order)
	cancel()

	s.outbox.Enqueue(ctx, order, models.JobCustomerEmail, models.JobAdminEmail, models.JobFulfillment)

	reloadCtx, cancel := context.WithTimeout(ctx, fanoutStoreTimeout)
	defer cancel()
	return s.reload(reloadCtx, order)
}
