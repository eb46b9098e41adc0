package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gamyacollections/internal/models"
)

type MongoOrders struct {
	coll *mongo.Collection
}

func (r *MongoOrders) Create(ctx context.Context, order *models.Order) error {
	res, err := r.coll.InsertOne(ctx, order)
	if err != nil {
		return translate(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (r *MongoOrders) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	if err := r.coll.FindOne(ctx, filter).Decode(&order); err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *MongoOrders) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoOrders) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"orderId": orderID})
}

func (r *MongoOrders) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"razorpayOrderId": gatewayOrderID})
}

func (r *MongoOrders) ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.Order, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"user": user}, pageOptions(0, 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *MongoOrders) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	filter := bson.M{}
	if f.OrderStatus != "" {
		filter["orderStatus"] = f.OrderStatus
	}
	if f.PaymentStatus != "" {
		filter["paymentStatus"] = f.PaymentStatus
	}
	if f.Unseen {
		filter["seenByAdmin"] = false
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.coll.Find(ctx, filter, pageOptions(f.Page, f.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *MongoOrders) MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) (*models.Order, bool, error) {
	set := bson.M{
		"paymentStatus": models.PaymentStatusPaid,
		"orderStatus":   models.OrderStatusProcessing,
		"updatedAt":     time.Now(),
	}
	if paymentID != "" {
		set["razorpayPaymentId"] = paymentID
	}

	var updated models.Order
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{
			"razorpayOrderId": gatewayOrderID,
			"paymentStatus":   bson.M{"$ne": models.PaymentStatusPaid},
		},
		bson.M{"$set": set},
		returnAfter(),
	).Decode(&updated)
	if err == nil {
		return &updated, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	existing, err := r.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *MongoOrders) MarkFailed(ctx context.Context, gatewayOrderID string) (*models.Order, bool, error) {
	var updated models.Order
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{
			"razorpayOrderId": gatewayOrderID,
			"paymentStatus":   bson.M{"$ne": models.PaymentStatusPaid},
		},
		bson.M{"$set": bson.M{
			"paymentStatus": models.PaymentStatusFailed,
			"orderStatus":   models.OrderStatusCancelled,
			"updatedAt":     time.Now(),
		}},
		returnAfter(),
	).Decode(&updated)
	if err == nil {
		return &updated, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	existing, err := r.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *MongoOrders) UpdateStatus(ctx context.Context, id primitive.ObjectID, orderStatus models.OrderStatus, paymentStatus models.PaymentStatus) (*models.Order, error) {
	set := bson.M{"updatedAt": time.Now()}
	if orderStatus != "" {
		set["orderStatus"] = orderStatus
	}
	if paymentStatus != "" {
		set["paymentStatus"] = paymentStatus
	}

	var updated models.Order
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, returnAfter()).Decode(&updated)
	if err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

func (r *MongoOrders) SetFulfillment(ctx context.Context, id primitive.ObjectID, f Fulfillment) error {
	set := bson.M{
		"shiprocketOrderId":    f.ShiprocketOrderID,
		"shiprocketShipmentId": f.ShiprocketShipmentID,
		"updatedAt":            time.Now(),
	}
	if f.TrackingNumber != "" {
		set["trackingNumber"] = f.TrackingNumber
	}
	return r.update(ctx, id, set)
}

func (r *MongoOrders) MarkNotified(ctx context.Context, id primitive.ObjectID, kind models.JobKind) error {
	switch kind {
	case models.JobCustomerEmail:
		return r.update(ctx, id, bson.M{"userEmailSent": true})
	case models.JobAdminEmail:
		return r.update(ctx, id, bson.M{"adminEmailSent": true})
	default:
		return nil
	}
}

func (r *MongoOrders) MarkSeen(ctx context.Context, id primitive.ObjectID) error {
	return r.update(ctx, id, bson.M{"seenByAdmin": true})
}

func (r *MongoOrders) update(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoOrders) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
