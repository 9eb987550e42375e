package databases

// go generate: mockery --name EventDatabase

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/swachhsnap-api/models"
)

// EventCollection is the collection name, also used as the change channel key
const EventCollection = "volunteer_events"

// EventDatabase contains the methods to use with the volunteer event database
type EventDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.VolunteerEvent, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.VolunteerEvent, error)
	InsertOne(ctx context.Context, event models.VolunteerEvent) (InsertOneResultHelper, error)
	ToggleParticipant(ctx context.Context, id primitive.ObjectID, userID string, joining bool) error
}

type eventDatabase struct {
	db DatabaseHelper
}

// NewEventDatabase initializes a new instance of event database with the provided db connection
func NewEventDatabase(db DatabaseHelper) EventDatabase {
	return &eventDatabase{
		db: db,
	}
}

func (e *eventDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.VolunteerEvent, error) {
	event := models.VolunteerEvent{}
	err := e.db.Collection(EventCollection).FindOne(ctx, filter, opts...).Decode(&event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (e *eventDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.VolunteerEvent, error) {
	var events []models.VolunteerEvent
	cursor, err := e.db.Collection(EventCollection).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cursor.Decode(&events)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (e *eventDatabase) InsertOne(ctx context.Context, event models.VolunteerEvent) (InsertOneResultHelper, error) {
	if event.Participants == nil {
		event.Participants = models.Participants{}
	}
	return e.db.Collection(EventCollection).InsertOne(ctx, event)
}

// ToggleParticipant adds or removes userID with $addToSet / $pull, both of
// which leave the set unchanged when there is nothing to do
func (e *eventDatabase) ToggleParticipant(ctx context.Context, id primitive.ObjectID, userID string, joining bool) error {
	op := "$pull"
	if joining {
		op = "$addToSet"
	}
	res, err := e.db.Collection(EventCollection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{op: bson.M{"participants": userID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("event %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}
