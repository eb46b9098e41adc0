package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo bundles the Mongo backed repositories.
type Mongo struct {
	Users    *MongoUsers
	Products *MongoProducts
	Carts    *MongoCarts
	Orders   *MongoOrders
	Outbox   *MongoOutbox
}

func NewMongo(db *mongo.Database, names CollectionNames) *Mongo {
	return &Mongo{
		Users:    &MongoUsers{coll: db.Collection(names.Users)},
		Products: &MongoProducts{coll: db.Collection(names.Products)},
		Carts:    &MongoCarts{coll: db.Collection(names.Carts)},
		Orders:   &MongoOrders{coll: db.Collection(names.Orders)},
		Outbox:   &MongoOutbox{coll: db.Collection(names.Outbox)},
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

func pageOptions(page, limit int64) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if page > 0 && limit > 0 {
		opts.SetSkip((page - 1) * limit).SetLimit(limit)
	}
	return opts
}

func returnAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}
