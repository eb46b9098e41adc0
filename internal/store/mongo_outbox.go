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

type MongoOutbox struct {
	coll *mongo.Collection
}

func (r *MongoOutbox) Insert(ctx context.Context, job *models.OutboxJob) error {
	res, err := r.coll.InsertOne(ctx, job)
	if err != nil {
		return translate(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		job.ID = id
	}
	return nil
}

func (r *MongoOutbox) Due(ctx context.Context, now, staleBefore time.Time, maxAttempts int, limit int64) ([]models.OutboxJob, error) {
	filter := bson.M{
		"attempts": bson.M{"$lt": maxAttempts},
		"$or": bson.A{
			bson.M{"status": models.JobFailed, "nextAttemptAt": bson.M{"$lte": now}},
			bson.M{"status": models.JobPending, "nextAttemptAt": bson.M{"$lte": staleBefore}},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "nextAttemptAt", Value: 1}}).
		SetLimit(limit)

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	jobs := make([]models.OutboxJob, 0)
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *MongoOutbox) MarkDone(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"status": models.JobDone, "updatedAt": time.Now()},
		"$inc":   bson.M{"attempts": 1},
		"$unset": bson.M{"lastError": ""},
	})
	return err
}

func (r *MongoOutbox) MarkFailed(ctx context.Context, id primitive.ObjectID, attempts int, lastError string, next time.Time) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":        models.JobFailed,
		"attempts":      attempts,
		"lastError":     lastError,
		"nextAttemptAt": next,
		"updatedAt":     time.Now(),
	}})
	return err
}
