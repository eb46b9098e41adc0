package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gamyacollections/internal/store"
)

func EnsureUserIndexes(db *mongo.Database, names store.CollectionNames) error {
	return createIndexes(db.Collection(names.Users), "EnsureUserIndexes", mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_unique").SetUnique(true),
	})
}

func EnsureCartIndexes(db *mongo.Database, names store.CollectionNames) error {
	return createIndexes(db.Collection(names.Carts), "EnsureCartIndexes", mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}},
		Options: options.Index().SetName("user_unique").SetUnique(true),
	})
}

// EnsureOrderIndexes makes the gateway order id a natural idempotency key:
// a verified payment can only ever materialize one order.
func EnsureOrderIndexes(db *mongo.Database, names store.CollectionNames) error {
	return createIndexes(db.Collection(names.Orders), "EnsureOrderIndexes",
		mongo.IndexModel{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetName("orderId_unique").SetUnique(true),
		},
		mongo.IndexModel{
			Keys: bson.D{{Key: "razorpayOrderId", Value: 1}},
			Options: options.Index().
				SetName("razorpayOrderId_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"razorpayOrderId": bson.M{"$type": "string"},
				}),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("user_createdAt"),
		},
	)
}

func EnsureOutboxIndexes(db *mongo.Database, names store.CollectionNames) error {
	return createIndexes(db.Collection(names.Outbox), "EnsureOutboxIndexes", mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "nextAttemptAt", Value: 1}},
		Options: options.Index().SetName("status_nextAttemptAt"),
	})
}

func createIndexes(coll *mongo.Collection, caller string, models ...mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Printf("%s: creating %d index(es) on %s", caller, len(models), coll.Name())
	names, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		log.Printf("%s: index error: %v", caller, err)
		return err
	}
	log.Printf("%s: indexes ready: %v", caller, names)
	return nil
}

// EnsureIndexes creates every index the order workflow relies on.
func EnsureIndexes(db *mongo.Database, names store.CollectionNames) error {
	for _, ensure := range []func(*mongo.Database, store.CollectionNames) error{
		EnsureUserIndexes,
		EnsureCartIndexes,
		EnsureOrderIndexes,
		EnsureOutboxIndexes,
	} {
		if err := ensure(db, names); err != nil {
			return err
		}
	}
	return nil
}
