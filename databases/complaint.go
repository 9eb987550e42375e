package databases

// go generate: mockery --name ComplaintDatabase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/swachhsnap-api/models"
)

// ComplaintCollection is the collection name, also used as the change channel key
const ComplaintCollection = "complaints"

// ErrStaleState is returned when a complaint left the expected status between read and write
var ErrStaleState = errors.New("complaint changed state, reload and retry")

// ComplaintDatabase contains the methods to use with the complaint database
type ComplaintDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Complaint, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Complaint, error)
	InsertOne(ctx context.Context, complaint models.Complaint) (InsertOneResultHelper, error)
	Apply(ctx context.Context, id primitive.ObjectID, patch models.ComplaintPatch) error
}

type complaintDatabase struct {
	db DatabaseHelper
}

// NewComplaintDatabase initializes a new instance of complaint database with the provided db connection
func NewComplaintDatabase(db DatabaseHelper) ComplaintDatabase {
	return &complaintDatabase{
		db: db,
	}
}

func (c *complaintDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Complaint, error) {
	complaint := models.Complaint{}
	err := c.db.Collection(ComplaintCollection).FindOne(ctx, filter, opts...).Decode(&complaint)
	if err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (c *complaintDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Complaint, error) {
	var complaints []models.Complaint
	cursor, err := c.db.Collection(ComplaintCollection).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cursor.Decode(&complaints)
	if err != nil {
		return nil, err
	}
	return complaints, nil
}

func (c *complaintDatabase) InsertOne(ctx context.Context, complaint models.Complaint) (InsertOneResultHelper, error) {
	return c.db.Collection(ComplaintCollection).InsertOne(ctx, complaint)
}

// Apply writes a lifecycle patch. The filter pins the status the patch was
// computed from, and an unset feedback when recording one, so the write is
// refused instead of producing a mixed state.
func (c *complaintDatabase) Apply(ctx context.Context, id primitive.ObjectID, patch models.ComplaintPatch) error {
	filter := bson.M{"_id": id, "status": patch.From}
	set := bson.M{"status": patch.Status, "updatedAt": time.Now().UTC()}
	if patch.AfterImage != nil {
		set["afterImage"] = *patch.AfterImage
	}
	if patch.AssignedSweeperID != nil {
		set["assignedSweeperId"] = *patch.AssignedSweeperID
	}
	if patch.AssignedSweeperName != nil {
		set["assignedSweeperName"] = *patch.AssignedSweeperName
	}
	if patch.Feedback != nil {
		set["feedback"] = *patch.Feedback
		filter["feedback"] = nil
	}

	res, err := c.db.Collection(ComplaintCollection).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// nothing matched: either the id is gone or someone moved it first
	if _, err := c.FindOne(ctx, bson.M{"_id": id}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("complaint %s: %w", id.Hex(), ErrNotFound)
		}
		return err
	}
	return ErrStaleState
}
