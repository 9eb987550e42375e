package models

import (
	"encoding/json"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VolunteerEvent holds the structure for the volunteer_events collection in mongo
type VolunteerEvent struct {
	ID           primitive.ObjectID `json:"id" bson:"_id"`
	Title        string             `json:"title" bson:"title"`
	Date         time.Time          `json:"date" bson:"date"`
	Location     EventLocation      `json:"location" bson:"location"`
	Description  string             `json:"description" bson:"description"`
	Participants Participants       `json:"participants" bson:"participants"`
	CreatedBy    string             `json:"createdBy" bson:"createdBy"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
}

// EventLocation is where a volunteer event meets
type EventLocation struct {
	Name      string  `json:"name" bson:"name"`
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Participants is a set of user ids. The zero value is an empty set.
type Participants []string

// Has reports whether id is a member
func (p Participants) Has(id string) bool {
	for _, v := range p {
		if v == id {
			return true
		}
	}
	return false
}

// Toggle returns the set with id added when joining, or removed when leaving.
// Joining an existing member or leaving a non-member returns an equal set.
func (p Participants) Toggle(id string, joining bool) Participants {
	out := make(Participants, 0, len(p)+1)
	seen := make(map[string]struct{}, len(p)+1)
	for _, v := range p {
		if _, dup := seen[v]; dup || (!joining && v == id) {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if _, ok := seen[id]; joining && !ok {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON writes the set sorted and without duplicates, never as null
func (p Participants) MarshalJSON() ([]byte, error) {
	seen := make(map[string]struct{}, len(p))
	out := make([]string, 0, len(p))
	for _, v := range p {
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return json.Marshal(out)
}
