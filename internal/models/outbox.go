package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobKind names a best-effort side effect of a placed order.
type JobKind string

const (
	JobCustomerEmail JobKind = "customer_email"
	JobAdminEmail    JobKind = "admin_email"
	JobFulfillment   JobKind = "fulfillment"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

type OutboxJob struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Order         primitive.ObjectID `bson:"order" json:"order"`
	OrderID       string             `bson:"orderId" json:"orderId"`
	Kind          JobKind            `bson:"kind" json:"kind"`
	Status        JobStatus          `bson:"status" json:"status"`
	Attempts      int                `bson:"attempts" json:"attempts"`
	LastError     string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
	NextAttemptAt time.Time          `bson:"nextAttemptAt" json:"nextAttemptAt"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
