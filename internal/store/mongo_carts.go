package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gamyacollections/internal/models"
)

type MongoCarts struct {
	coll *mongo.Collection
}

func (r *MongoCarts) FindByUser(ctx context.Context, user primitive.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.coll.FindOne(ctx, bson.M{"user": user}).Decode(&cart); err != nil {
		return nil, translate(err)
	}
	return &cart, nil
}

// Save upserts the cart keyed by its user.
func (r *MongoCarts) Save(ctx context.Context, cart *models.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	var saved models.Cart
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"user": cart.User},
		bson.M{
			"$set":         bson.M{"items": cart.Items, "updatedAt": cart.UpdatedAt},
			"$setOnInsert": bson.M{"createdAt": cart.CreatedAt},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&saved)
	if err != nil {
		return translate(err)
	}
	cart.ID = saved.ID
	return nil
}

func (r *MongoCarts) DeleteByUser(ctx context.Context, user primitive.ObjectID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"user": user})
	return err
}
