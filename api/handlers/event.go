package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/swachhsnap-api/api"
	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/geo"
	"github.com/linesmerrill/swachhsnap-api/models"
	"github.com/linesmerrill/swachhsnap-api/realtime"
)

// Event exported for testing purposes
type Event struct {
	DB       databases.EventDatabase
	Notifier realtime.Notifier
	Now      func() time.Time
}

// eventTime accepts RFC3339, a plain date or unix milliseconds
type eventTime struct {
	time.Time
}

func (t *eventTime) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if v, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised date %q", s)
}

type eventRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Date        eventTime `json:"date"`
	Description string    `json:"description" validate:"max=2000"`
	Location    struct {
		Name      string  `json:"name" validate:"required,max=200"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

type participationRequest struct {
	Joining *bool `json:"joining" validate:"required"`
}

// CreateEventHandler schedules a volunteer event
func (e Event) CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		config.ErrorStatus("failed to create event", statusFor(err), w, err)
		return
	}
	var req eventRequest
	if err := decodeJSON(w, r, &req, maxJSONBytes); err != nil {
		config.ErrorStatus("failed to create event", statusFor(err), w, err)
		return
	}
	if req.Date.IsZero() {
		config.ErrorStatus("failed to create event", http.StatusBadRequest, w, fmt.Errorf("%w: date is required", errBadRequest))
		return
	}
	loc := geo.Coordinate{Latitude: req.Location.Latitude, Longitude: req.Location.Longitude}
	if err := loc.Validate(); err != nil {
		config.ErrorStatus("failed to create event", statusFor(err), w, err)
		return
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	event := models.VolunteerEvent{
		ID:    primitive.NewObjectID(),
		Title: strings.TrimSpace(req.Title),
		Date:  req.Date.Time,
		Location: models.EventLocation{
			Name:      strings.TrimSpace(req.Location.Name),
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
		},
		Description:  strings.TrimSpace(req.Description),
		Participants: models.Participants{},
		CreatedBy:    id.ID,
		CreatedAt:    now().UTC(),
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	if _, err := e.DB.InsertOne(ctx, event); err != nil {
		config.ErrorStatus("failed to create event", http.StatusInternalServerError, w, err)
		return
	}
	notify(r.Context(), e.Notifier, databases.EventCollection)

	zap.S().Infow("event created", "eventId", event.ID.Hex(), "date", event.Date)
	writeJSON(w, http.StatusCreated, event)
}

func eventsByDate() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
}

// listEvents returns every event, soonest first
func listEvents(ctx context.Context, db databases.EventDatabase) ([]models.VolunteerEvent, error) {
	events, err := db.Find(ctx, bson.M{}, eventsByDate())
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.VolunteerEvent{}
	}
	return events, nil
}

// EventsHandler lists volunteer events by date
func (e Event) EventsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	events, err := listEvents(ctx, e.DB)
	if err != nil {
		config.ErrorStatus("failed to get events", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ToggleParticipantHandler joins or leaves an event for the caller. Repeating
// the same request leaves the participant set unchanged and notifies no one.
func (e Event) ToggleParticipantHandler(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		config.ErrorStatus("failed to update participation", statusFor(err), w, err)
		return
	}
	oid, err := objectID(mux.Vars(r)["event_id"])
	if err != nil {
		config.ErrorStatus("failed to update participation", http.StatusBadRequest, w, err)
		return
	}
	var req participationRequest
	if err := decodeJSON(w, r, &req, maxJSONBytes); err != nil {
		config.ErrorStatus("failed to update participation", statusFor(err), w, err)
		return
	}
	joining := *req.Joining

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	event, err := e.DB.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		config.ErrorStatus("failed to get event", statusFor(err), w, err)
		return
	}
	changed := event.Participants.Has(id.ID) != joining

	// $addToSet and $pull keep the stored set right even if the read above is stale
	if err := e.DB.ToggleParticipant(ctx, oid, id.ID, joining); err != nil {
		config.ErrorStatus("failed to update participation", statusFor(err), w, err)
		return
	}
	event.Participants = event.Participants.Toggle(id.ID, joining)

	if changed {
		notify(r.Context(), e.Notifier, databases.EventCollection)
		zap.S().Infow("event participation changed", "eventId", oid.Hex(), "userId", id.ID, "joining", joining)
	}
	writeJSON(w, http.StatusOK, event)
}
