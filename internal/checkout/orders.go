package checkout

import (
	"context"
	"log"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/models"
	"gamyacollections/internal/store"
)

func (s *Service) MyOrders(ctx context.Context, user *models.User) ([]models.Order, error) {
	orders, err := s.orders.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal("failed to load orders", err)
	}
	return orders, nil
}

// GetOrder returns an order visible to its owner and to admins.
func (s *Service) GetOrder(ctx context.Context, user *models.User, ref string) (*models.Order, error) {
	order, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !canView(user, order) {
		return nil, apperr.Forbidden("Not authorized to view this order")
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, int64, error) {
	if filter.OrderStatus != "" && !filter.OrderStatus.IsValid() {
		return nil, 0, apperr.Validation("Invalid order status")
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.IsValid() {
		return nil, 0, apperr.Validation("Invalid payment status")
	}
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal("failed to list orders", err)
	}
	return orders, total, nil
}

// Track asks the shipping gateway for the latest tracking document.
func (s *Service) Track(ctx context.Context, user *models.User, ref string) (*models.Order, map[string]interface{}, error) {
	order, err := s.GetOrder(ctx, user, ref)
	if err != nil {
		return nil, nil, err
	}
	if order.ShiprocketShipmentID == "" {
		return nil, nil, apperr.NotFound("Shipment has not been created for this order yet")
	}
	tracking, err := s.shipping.Track(ctx, order.ShiprocketShipmentID)
	if err != nil {
		log.Println("[SHIPROCKET] [ERROR] tracking failed:", order.OrderID, err)
		return nil, nil, apperr.Wrap(apperr.KindGatewayUnavailable, "Tracking is unavailable right now", err)
	}
	return order, tracking, nil
}

type StatusUpdate struct {
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
}

// UpdateStatus is the admin transition. A paid order can only move to
// refunded.
func (s *Service) UpdateStatus(ctx context.Context, ref string, update StatusUpdate) (*models.Order, error) {
	if update.Status == "" && update.PaymentStatus == "" {
		return nil, apperr.Validation("Nothing to update")
	}
	if update.Status != "" && !update.Status.IsValid() {
		return nil, apperr.Validation("Invalid order status")
	}
	if update.PaymentStatus != "" && !update.PaymentStatus.IsValid() {
		return nil, apperr.Validation("Invalid payment status")
	}

	order, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentStatusPaid &&
		update.PaymentStatus != "" &&
		update.PaymentStatus != models.PaymentStatusPaid &&
		update.PaymentStatus != models.PaymentStatusRefunded {
		return nil, apperr.Conflict("A paid order can only be marked refunded")
	}

	updated, err := s.orders.UpdateStatus(ctx, order.ID, update.Status, update.PaymentStatus)
	if err != nil {
		return nil, apperr.Internal("failed to update order", err)
	}
	log.Println("[ORDER] [INFO] status updated:", updated.OrderID, updated.OrderStatus, updated.PaymentStatus)

	if update.Status == models.OrderStatusCancelled && order.OrderStatus != models.OrderStatusCancelled && order.ShiprocketOrderID != "" {
		if err := s.shipping.CancelOrders(ctx, []string{order.ShiprocketOrderID}); err != nil {
			log.Println("[SHIPROCKET] [ERROR] failed to cancel fulfillment:", order.OrderID, err)
		}
	}
	return updated, nil
}

func (s *Service) MarkSeen(ctx context.Context, ref string) (*models.Order, error) {
	order, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.orders.MarkSeen(ctx, order.ID); err != nil {
		return nil, apperr.Internal("failed to update order", err)
	}
	order.SeenByAdmin = true
	return order, nil
}

func (s *Service) Delete(ctx context.Context, ref string) error {
	order, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, order.ID); err != nil {
		return apperr.Internal("failed to delete order", err)
	}
	log.Println("[ORDER] [INFO] order deleted:", order.OrderID)
	return nil
}
