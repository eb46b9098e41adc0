package checkout

import (
	"context"
	"fmt"
	"log"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/models"
)

// PlaceCashOrder is the non-gateway checkout: no signature, stock is
// reserved strictly and the order waits for payment on delivery.
func (s *Service) PlaceCashOrder(ctx context.Context, user *models.User, data OrderData) (*models.Order, error) {
	method := data.PaymentMethod
	if method == "" {
		method = models.PaymentMethodCash
	}
	if method != models.PaymentMethodCash && method != models.PaymentMethodUPI {
		return nil, apperr.Validation("Payment method must be CASH or UPI")
	}
	if err := data.validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(user.ID.Hex())
	defer unlock()

	items, total, err := s.snapshot(ctx, data, false)
	if err != nil {
		return nil, err
	}

	reserved := make([]models.OrderItem, 0, len(items))
	rollback := func() {
		for _, item := range reserved {
			if err := s.products.ReleaseStock(ctx, item.Product, item.Quantity); err != nil {
				log.Println("[ORDER] [ERROR] failed to release stock:", item.Product.Hex(), err)
			}
		}
	}
	for _, item := range items {
		ok, err := s.products.ReserveStock(ctx, item.Product, item.Quantity)
		if err != nil {
			rollback()
			return nil, apperr.Internal("failed to reserve stock", err)
		}
		if !ok {
			rollback()
			return nil, apperr.New(apperr.KindInsufficientStock, fmt.Sprintf("Insufficient stock for %s", item.Name))
		}
		reserved = append(reserved, item)
	}

	order := s.newOrder(user, data, items, total)
	order.PaymentMethod = method
	order.PaymentStatus = models.PaymentStatusPending
	order.OrderStatus = models.OrderStatusPending

	if err := s.insert(ctx, order); err != nil {
		rollback()
		return nil, err
	}
	log.Println("[ORDER] [INFO] cash order created:", order.OrderID, method)

	return s.afterPlacement(ctx, order), nil
}
